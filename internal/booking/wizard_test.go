package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/slotline/slotline/internal/availability"
	"github.com/slotline/slotline/internal/model"
)

var (
	testDay   = availability.Date{Year: 2026, Month: time.September, Day: 2}
	testOpen  = availability.OpenInterval{Start: testDay.In(time.UTC).Add(9 * time.Hour), End: testDay.In(time.UTC).Add(17 * time.Hour)}
	longPast  = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	shortSvc  = model.Service{ID: "svc-30", ProviderID: "prov-1", Name: "Consult", DurationMinutes: 30, PriceCents: 5000, IsActive: true}
	longSvc   = model.Service{ID: "svc-90", ProviderID: "prov-1", Name: "Full session", DurationMinutes: 90, PriceCents: 12000, IsActive: true}
	wrongProv = model.Service{ID: "svc-x", ProviderID: "prov-2", Name: "Other", DurationMinutes: 30, PriceCents: 100, IsActive: true}
)

func candidatesFor(svc model.Service) []time.Time {
	return availability.GenerateSlots(testOpen, svc.Duration(), 30*time.Minute, longPast)
}

func expectValidation(t *testing.T, err error, step Step) *ValidationError {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Step != step {
		t.Fatalf("error on step %s, want %s", verr.Step, step)
	}
	return verr
}

func TestWizard_NoSkipAhead(t *testing.T) {
	w := NewWizard("sess-1", "prov-1")

	err := w.SelectTime(testDay, testOpen.Start, candidatesFor(shortSvc))
	expectValidation(t, err, StepTime)

	err = w.SetIdentity(model.RegisteredSubject("client-1"), false)
	expectValidation(t, err, StepIdentity)

	if err := w.CanCommit(); err == nil {
		t.Fatal("empty wizard must not be committable")
	}
}

func TestWizard_HappyPath(t *testing.T) {
	w := NewWizard("sess-1", "prov-1")

	if err := w.SelectService(shortSvc, nil); err != nil {
		t.Fatalf("SelectService: %v", err)
	}
	if w.Step != StepTime {
		t.Fatalf("step = %s after service selection", w.Step)
	}

	slot := testOpen.Start.Add(2 * time.Hour)
	if err := w.SelectTime(testDay, slot, candidatesFor(shortSvc)); err != nil {
		t.Fatalf("SelectTime: %v", err)
	}
	if w.Step != StepIdentity {
		t.Fatalf("step = %s after time selection", w.Step)
	}

	if err := w.SetIdentity(model.RegisteredSubject("client-1"), false); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}
	if w.Step != StepReview {
		t.Fatalf("step = %s after identity", w.Step)
	}
	if err := w.CanCommit(); err != nil {
		t.Fatalf("CanCommit: %v", err)
	}
}

func TestWizard_ServiceGate(t *testing.T) {
	w := NewWizard("sess-1", "prov-1")

	expectValidation(t, w.SelectService(wrongProv, nil), StepService)

	inactive := shortSvc
	inactive.IsActive = false
	expectValidation(t, w.SelectService(inactive, nil), StepService)
}

func TestWizard_ServiceChangeResetsTimeSelection(t *testing.T) {
	w := NewWizard("sess-1", "prov-1")
	if err := w.SelectService(shortSvc, nil); err != nil {
		t.Fatalf("SelectService: %v", err)
	}

	// 16:30 is the last start a 30-minute service fits in a 09:00-17:00 window.
	lateSlot := testOpen.End.Add(-30 * time.Minute)
	if err := w.SelectTime(testDay, lateSlot, candidatesFor(shortSvc)); err != nil {
		t.Fatalf("SelectTime: %v", err)
	}

	// Back to service selection, pick a 90-minute service instead.
	w.Back()
	w.Back()
	if err := w.SelectService(longSvc, nil); err != nil {
		t.Fatalf("SelectService(long): %v", err)
	}

	if w.SlotStart != nil || w.Date != nil {
		t.Fatal("time selection must be cleared by a service change")
	}
	if w.Step != StepTime {
		t.Fatalf("step = %s, want %s", w.Step, StepTime)
	}

	// The old slot no longer fits the longer duration.
	err := w.SelectTime(testDay, lateSlot, candidatesFor(longSvc))
	expectValidation(t, err, StepTime)
}

func TestWizard_ReselectingSameServiceKeepsTime(t *testing.T) {
	w := NewWizard("sess-1", "prov-1")
	if err := w.SelectService(shortSvc, nil); err != nil {
		t.Fatalf("SelectService: %v", err)
	}
	slot := testOpen.Start
	if err := w.SelectTime(testDay, slot, candidatesFor(shortSvc)); err != nil {
		t.Fatalf("SelectTime: %v", err)
	}

	w.Back()
	w.Back()
	if err := w.SelectService(shortSvc, nil); err != nil {
		t.Fatalf("SelectService again: %v", err)
	}
	if w.SlotStart == nil || !w.SlotStart.Equal(slot) {
		t.Fatal("re-selecting the same service must keep the chosen time")
	}
}

func TestWizard_IdentityGates(t *testing.T) {
	setup := func() *Wizard {
		w := NewWizard("sess-1", "prov-1")
		if err := w.SelectService(shortSvc, nil); err != nil {
			t.Fatalf("SelectService: %v", err)
		}
		if err := w.SelectTime(testDay, testOpen.Start, candidatesFor(shortSvc)); err != nil {
			t.Fatalf("SelectTime: %v", err)
		}
		return w
	}

	// Guest booking without operator bypass is a hard stop.
	w := setup()
	verr := expectValidation(t, w.SetIdentity(model.GuestSubject("Ann", "ann@example.com", "555-0100"), false), StepIdentity)
	if verr.Reason != "sign-in required" {
		t.Fatalf("reason = %q", verr.Reason)
	}

	// Guest with bypass but missing contact details.
	w = setup()
	expectValidation(t, w.SetIdentity(model.GuestSubject("Ann", "", "555-0100"), true), StepIdentity)

	// Guest with bypass and full contact details passes.
	w = setup()
	if err := w.SetIdentity(model.GuestSubject("Ann", "ann@example.com", "555-0100"), true); err != nil {
		t.Fatalf("guest with bypass: %v", err)
	}

	// Operator entry requires the bypass flag too.
	w = setup()
	expectValidation(t, w.SetIdentity(model.OperatorSubject(), false), StepIdentity)

	w = setup()
	if err := w.SetIdentity(model.OperatorSubject(), true); err != nil {
		t.Fatalf("operator with bypass: %v", err)
	}
}

func TestWizard_BackNeverInvalidatesEarlierSteps(t *testing.T) {
	w := NewWizard("sess-1", "prov-1")
	if err := w.SelectService(shortSvc, nil); err != nil {
		t.Fatalf("SelectService: %v", err)
	}
	if err := w.SelectTime(testDay, testOpen.Start, candidatesFor(shortSvc)); err != nil {
		t.Fatalf("SelectTime: %v", err)
	}
	if err := w.SetIdentity(model.RegisteredSubject("client-1"), false); err != nil {
		t.Fatalf("SetIdentity: %v", err)
	}

	w.Back() // review -> identity
	w.Back() // identity -> time
	if w.Service == nil || w.SlotStart == nil || w.Subject == nil {
		t.Fatal("back navigation must not clear earlier answers")
	}
	w.Back() // time -> service
	w.Back() // already at first step
	if w.Step != StepService {
		t.Fatalf("step = %s", w.Step)
	}
}

func TestWizard_ExcludedSlotFiltering(t *testing.T) {
	w := NewWizard("sess-1", "prov-1")
	if err := w.SelectService(shortSvc, nil); err != nil {
		t.Fatalf("SelectService: %v", err)
	}
	lost := testOpen.Start.Add(time.Hour)
	w.ExcludeSlot(lost)

	if w.Step != StepTime {
		t.Fatalf("step = %s after losing a slot", w.Step)
	}
	filtered := w.FilterExcluded(candidatesFor(shortSvc))
	for _, c := range filtered {
		if c.Equal(lost) {
			t.Fatal("lost slot still in candidate list")
		}
	}
	err := w.SelectTime(testDay, lost, candidatesFor(shortSvc))
	expectValidation(t, err, StepTime)
}
