package handlers

import (
	"net/url"
	"testing"

	"github.com/slotline/slotline/internal/availability"
)

func TestScheduleWindow_DefaultsFromInjectedToday(t *testing.T) {
	today := availability.Date{Year: 2026, Month: 9, Day: 2}

	from, to, err := scheduleWindow(url.Values{}, today)
	if err != nil {
		t.Fatalf("scheduleWindow: %v", err)
	}
	if !from.Equal(today) {
		t.Fatalf("from = %s, want %s", from, today)
	}
	if want := today.AddDays(90); !to.Equal(want) {
		t.Fatalf("to = %s, want %s", to, want)
	}
}

func TestScheduleWindow_ExplicitBounds(t *testing.T) {
	today := availability.Date{Year: 2026, Month: 9, Day: 2}
	q := url.Values{"from": {"2026-10-01"}, "to": {"2026-10-15"}}

	from, to, err := scheduleWindow(q, today)
	if err != nil {
		t.Fatalf("scheduleWindow: %v", err)
	}
	if from.String() != "2026-10-01" || to.String() != "2026-10-15" {
		t.Fatalf("window = %s..%s", from, to)
	}
}

func TestScheduleWindow_RejectsBadInput(t *testing.T) {
	today := availability.Date{Year: 2026, Month: 9, Day: 2}

	if _, _, err := scheduleWindow(url.Values{"from": {"not-a-date"}}, today); err == nil {
		t.Fatal("malformed from must be rejected")
	}
	q := url.Values{"from": {"2026-10-15"}, "to": {"2026-10-01"}}
	if _, _, err := scheduleWindow(q, today); err == nil {
		t.Fatal("inverted window must be rejected")
	}
}
