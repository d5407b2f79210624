package availability

import (
	"testing"
	"time"
)

func openWindow(start, end int) OpenInterval {
	day := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	return OpenInterval{
		Start: day.Add(time.Duration(start) * time.Minute),
		End:   day.Add(time.Duration(end) * time.Minute),
	}
}

func TestGenerateSlots_LastSlotFitsExactly(t *testing.T) {
	// Open 09:00-17:00, 60-minute service, 30-minute step: last start is
	// 16:00, not 16:30.
	open := openWindow(540, 1020)
	past := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	slots := GenerateSlots(open, 60*time.Minute, 30*time.Minute, past)
	if len(slots) != 15 {
		t.Fatalf("expected 15 slots, got %d", len(slots))
	}
	if !slots[0].Equal(open.Start) {
		t.Fatalf("first slot %s, want %s", slots[0], open.Start)
	}
	last := slots[len(slots)-1]
	want := open.End.Add(-60 * time.Minute)
	if !last.Equal(want) {
		t.Fatalf("last slot %s, want %s", last, want)
	}
}

func TestGenerateSlots_NeverOutsideOpenInterval(t *testing.T) {
	open := openWindow(555, 750) // 09:15-12:30
	past := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	duration := 45 * time.Minute

	slots := GenerateSlots(open, duration, 30*time.Minute, past)
	if len(slots) == 0 {
		t.Fatal("expected slots")
	}
	for _, s := range slots {
		if s.Before(open.Start) || s.Add(duration).After(open.End) {
			t.Fatalf("slot %s falls outside open interval", s)
		}
	}
}

func TestGenerateSlots_ExcludesPastToday(t *testing.T) {
	open := openWindow(540, 660) // 09:00-11:00
	now := open.Start.Add(46 * time.Minute)

	slots := GenerateSlots(open, 30*time.Minute, 30*time.Minute, now)
	// 09:00 and 09:30 already started; 10:00 and 10:30 remain.
	if len(slots) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(slots))
	}
	if !slots[0].Equal(open.Start.Add(60 * time.Minute)) {
		t.Fatalf("first future slot %s", slots[0])
	}
}

func TestGenerateSlots_ServiceLongerThanWindow(t *testing.T) {
	open := openWindow(540, 570) // 30-minute window
	past := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	if slots := GenerateSlots(open, 60*time.Minute, 30*time.Minute, past); len(slots) != 0 {
		t.Fatalf("expected no slots, got %d", len(slots))
	}
}

func TestGenerateSlots_InvalidInputs(t *testing.T) {
	open := openWindow(540, 600)
	now := time.Time{}
	if slots := GenerateSlots(open, 0, 30*time.Minute, now); slots != nil {
		t.Fatal("zero duration must yield nil")
	}
	if slots := GenerateSlots(open, 30*time.Minute, 0, now); slots != nil {
		t.Fatal("zero step must yield nil")
	}
	if slots := GenerateSlots(OpenInterval{Start: open.End, End: open.Start}, 30*time.Minute, 30*time.Minute, now); slots != nil {
		t.Fatal("inverted interval must yield nil")
	}
}

func TestExcludeBusy(t *testing.T) {
	open := openWindow(540, 720) // 09:00-12:00
	past := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	duration := 30 * time.Minute

	slots := GenerateSlots(open, duration, 30*time.Minute, past)
	busy := []Interval{{Start: open.Start.Add(60 * time.Minute), End: open.Start.Add(90 * time.Minute)}} // 10:00-10:30

	free := ExcludeBusy(slots, duration, busy)
	if len(free) != len(slots)-1 {
		t.Fatalf("expected %d free slots, got %d", len(slots)-1, len(free))
	}
	for _, s := range free {
		if s.Equal(open.Start.Add(60 * time.Minute)) {
			t.Fatal("busy slot still present")
		}
	}
}

func TestExcludeBusy_BlockedRangeIncludesBuffer(t *testing.T) {
	open := openWindow(540, 720) // 09:00-12:00
	past := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	duration := 30 * time.Minute
	buffer := 15 * time.Minute

	slots := GenerateSlots(open, duration, 30*time.Minute, past)
	// Existing booking holds 10:00-10:30. A 09:30 start ends right at 10:00,
	// but its buffered range runs to 10:15 and would lose the reservation.
	busy := []Interval{{Start: open.Start.Add(60 * time.Minute), End: open.Start.Add(90 * time.Minute)}}
	adjacent := open.Start.Add(30 * time.Minute)

	free := ExcludeBusy(slots, duration, busy)
	found := false
	for _, s := range free {
		if s.Equal(adjacent) {
			found = true
		}
	}
	if !found {
		t.Fatal("without a buffer the adjacent slot must survive")
	}

	free = ExcludeBusy(slots, duration+buffer, busy)
	for _, s := range free {
		if s.Equal(adjacent) {
			t.Fatal("buffered trim must drop the slot the reservation would reject")
		}
	}
}
