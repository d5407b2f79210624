package availability

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func weekdaySchedule() Schedule {
	// Mon-Fri 09:00-17:00.
	var weekly []WeeklyHours
	for wd := time.Monday; wd <= time.Friday; wd++ {
		weekly = append(weekly, WeeklyHours{Weekday: wd, StartMinute: 540, EndMinute: 1020})
	}
	return Schedule{Weekly: weekly}
}

func TestResolveOpenInterval_Weekly(t *testing.T) {
	s := weekdaySchedule()
	loc := time.UTC

	// 2026-09-02 is a Wednesday.
	open, ok := s.ResolveOpenInterval(mustDate(t, "2026-09-02"), loc)
	if !ok {
		t.Fatal("expected Wednesday to be open")
	}
	if open.Start.Hour() != 9 || open.End.Hour() != 17 {
		t.Fatalf("unexpected interval: %s - %s", open.Start, open.End)
	}

	// 2026-09-06 is a Sunday with no weekly entry.
	if _, ok := s.ResolveOpenInterval(mustDate(t, "2026-09-06"), loc); ok {
		t.Fatal("expected Sunday to be closed")
	}
}

func TestResolveOpenInterval_OverrideReplacesWeekly(t *testing.T) {
	s := weekdaySchedule()
	day := mustDate(t, "2026-09-02")
	s.Overrides = []DateOverride{{Day: day, StartMinute: 720, EndMinute: 900}} // 12:00-15:00

	open, ok := s.ResolveOpenInterval(day, time.UTC)
	if !ok {
		t.Fatal("expected override day to be open")
	}
	// Override replaces the weekly window entirely, no merging.
	if open.Start.Hour() != 12 || open.End.Hour() != 15 {
		t.Fatalf("override not applied: %s - %s", open.Start, open.End)
	}
}

func TestResolveOpenInterval_ClosedOverride(t *testing.T) {
	s := weekdaySchedule()
	day := mustDate(t, "2026-09-03")
	s.Overrides = []DateOverride{{Day: day, Closed: true}}

	if _, ok := s.ResolveOpenInterval(day, time.UTC); ok {
		t.Fatal("expected closed override to win over weekly hours")
	}
}

func TestResolveOpenInterval_TimeOffBeatsOverride(t *testing.T) {
	s := weekdaySchedule()
	day := mustDate(t, "2026-09-02")
	s.Overrides = []DateOverride{{Day: day, StartMinute: 600, EndMinute: 720}}
	s.TimeOff = []TimeOffRange{{Start: mustDate(t, "2026-09-01"), End: mustDate(t, "2026-09-04")}}

	if _, ok := s.ResolveOpenInterval(day, time.UTC); ok {
		t.Fatal("expected time off to close the day regardless of override")
	}
}

func TestTimeOffRange_InclusiveBounds(t *testing.T) {
	off := TimeOffRange{Start: mustDate(t, "2026-09-10"), End: mustDate(t, "2026-09-12")}
	for _, tc := range []struct {
		day  string
		want bool
	}{
		{"2026-09-09", false},
		{"2026-09-10", true},
		{"2026-09-12", true},
		{"2026-09-13", false},
	} {
		if got := off.Contains(mustDate(t, tc.day)); got != tc.want {
			t.Fatalf("Contains(%s) = %v, want %v", tc.day, got, tc.want)
		}
	}
}

func TestResolveOpenInterval_ProviderTimezone(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	s := weekdaySchedule()
	open, ok := s.ResolveOpenInterval(mustDate(t, "2026-09-02"), loc)
	if !ok {
		t.Fatal("expected open")
	}
	if open.Start.Location() != loc {
		t.Fatalf("interval not in provider zone: %s", open.Start.Location())
	}
	// 09:00 New York is 13:00 UTC during DST.
	if open.Start.UTC().Hour() != 13 {
		t.Fatalf("unexpected UTC hour %d", open.Start.UTC().Hour())
	}
}
