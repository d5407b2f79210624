// Package booking drives the four-step booking flow and the terminal commit.
// The wizard is an explicit state machine carried by value through each
// transition; every step-gate invariant lives here, independent of any
// rendering or transport layer.
package booking

import (
	"strings"
	"time"

	"github.com/slotline/slotline/internal/availability"
	"github.com/slotline/slotline/internal/model"
	"github.com/slotline/slotline/internal/pricing"
)

type Step string

const (
	StepService  Step = "service_selection"
	StepTime     Step = "time_selection"
	StepIdentity Step = "identity"
	StepReview   Step = "review"
)

func (s Step) order() int {
	switch s {
	case StepService:
		return 0
	case StepTime:
		return 1
	case StepIdentity:
		return 2
	case StepReview:
		return 3
	}
	return -1
}

// Wizard is the ephemeral, session-scoped booking state. It is serialized
// into the session store between requests and destroyed on commit or
// abandonment; nothing here touches the database.
type Wizard struct {
	SessionID  string `json:"session_id"`
	ProviderID string `json:"provider_id"`
	Step       Step   `json:"step"`

	Service  *model.Service `json:"service,omitempty"`
	AddOnIDs []string       `json:"add_on_ids,omitempty"`

	Date      *availability.Date `json:"date,omitempty"`
	SlotStart *time.Time         `json:"slot_start,omitempty"`

	Subject *model.BookingSubject `json:"subject,omitempty"`
	Mode    model.PaymentMode     `json:"mode"`
	Notes   string                `json:"notes,omitempty"`

	Quote *pricing.Quote `json:"quote,omitempty"`

	// ExcludedStarts collects slots that lost a commit race during this
	// session; they are filtered from every later candidate list.
	ExcludedStarts []time.Time `json:"excluded_starts,omitempty"`
}

func NewWizard(sessionID, providerID string) *Wizard {
	return &Wizard{
		SessionID:  sessionID,
		ProviderID: providerID,
		Step:       StepService,
		Mode:       model.ModeFull,
	}
}

// SelectService passes the first gate. Choosing a different service clears
// any prior time selection: the new duration invalidates earlier slot math.
func (w *Wizard) SelectService(svc model.Service, addOnIDs []string) error {
	if svc.ProviderID != w.ProviderID {
		return invalid(StepService, "service", "does not belong to this provider")
	}
	if !svc.IsActive {
		return invalid(StepService, "service", "is no longer offered")
	}
	if svc.DurationMinutes <= 0 {
		return invalid(StepService, "service", "has no duration")
	}

	if w.Service != nil && w.Service.ID != svc.ID {
		w.clearTimeSelection()
	}
	w.Service = &svc
	w.AddOnIDs = addOnIDs
	if w.Step == StepService {
		w.Step = StepTime
	}
	return nil
}

// SelectTime passes the second gate. The start must come from the candidate
// list generated for this date and must not be a slot this session already
// lost a race on.
func (w *Wizard) SelectTime(date availability.Date, start time.Time, candidates []time.Time) error {
	if w.Service == nil {
		return invalid(StepTime, "service", "must be selected first")
	}
	for _, ex := range w.ExcludedStarts {
		if ex.Equal(start) {
			return invalid(StepTime, "slot", "was just booked by someone else")
		}
	}
	found := false
	for _, c := range candidates {
		if c.Equal(start) {
			found = true
			break
		}
	}
	if !found {
		return invalid(StepTime, "slot", "is not an available start time for this date")
	}

	d := date
	s := start
	w.Date = &d
	w.SlotStart = &s
	if w.Step == StepTime {
		w.Step = StepIdentity
	}
	return nil
}

// SetIdentity passes the third gate. Without an authenticated client this is
// a hard stop unless the provider runs in operator-bypass mode, which permits
// guest contact details or a bare operator entry.
func (w *Wizard) SetIdentity(subject model.BookingSubject, operatorBypass bool) error {
	if w.SlotStart == nil {
		return invalid(StepIdentity, "time", "must be selected first")
	}

	switch subject.Kind {
	case model.SubjectRegistered:
		if strings.TrimSpace(subject.ClientID) == "" {
			return invalid(StepIdentity, "client", "sign-in required")
		}
	case model.SubjectGuest:
		if !operatorBypass {
			return invalid(StepIdentity, "client", "sign-in required")
		}
		if strings.TrimSpace(subject.GuestName) == "" ||
			strings.TrimSpace(subject.GuestEmail) == "" ||
			strings.TrimSpace(subject.GuestPhone) == "" {
			return invalid(StepIdentity, "guest", "name, email, and phone are required")
		}
	case model.SubjectOperator:
		if !operatorBypass {
			return invalid(StepIdentity, "client", "sign-in required")
		}
	default:
		return invalid(StepIdentity, "client", "sign-in required")
	}

	w.Subject = &subject
	if w.Step == StepIdentity {
		w.Step = StepReview
	}
	return nil
}

// SetPaymentMode chooses how the charge is collected. Valid any time before
// commit; the quote is recomputed at review.
func (w *Wizard) SetPaymentMode(mode model.PaymentMode) error {
	if mode != model.ModeFull && mode != model.ModeFeeOnly {
		return invalid(StepReview, "payment_mode", "is not a supported mode")
	}
	w.Mode = mode
	w.Quote = nil
	return nil
}

// Back moves one step toward ServiceSelection. Earlier answers are kept;
// only a subsequent service change cascades into the time selection.
func (w *Wizard) Back() {
	switch w.Step {
	case StepReview:
		w.Step = StepIdentity
	case StepIdentity:
		w.Step = StepTime
	case StepTime:
		w.Step = StepService
	}
}

// CanCommit re-checks every gate in order; step N+1 is unreachable while
// step N is invalid.
func (w *Wizard) CanCommit() error {
	if w.Service == nil {
		return invalid(StepService, "service", "must be selected")
	}
	if w.Date == nil || w.SlotStart == nil {
		return invalid(StepTime, "time", "must be selected")
	}
	if w.Subject == nil {
		return invalid(StepIdentity, "client", "sign-in required")
	}
	return nil
}

// ExcludeSlot records a lost slot and forces the wizard back to
// TimeSelection, clearing the stale choice.
func (w *Wizard) ExcludeSlot(start time.Time) {
	w.ExcludedStarts = append(w.ExcludedStarts, start)
	w.SlotStart = nil
	w.Quote = nil
	w.Step = StepTime
}

// FilterExcluded trims this session's lost slots from a candidate list.
func (w *Wizard) FilterExcluded(candidates []time.Time) []time.Time {
	if len(w.ExcludedStarts) == 0 {
		return candidates
	}
	out := candidates[:0:0]
	for _, c := range candidates {
		excluded := false
		for _, ex := range w.ExcludedStarts {
			if ex.Equal(c) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, c)
		}
	}
	return out
}

func (w *Wizard) clearTimeSelection() {
	w.Date = nil
	w.SlotStart = nil
	w.Quote = nil
	if w.Step.order() > StepTime.order() {
		w.Step = StepTime
	}
}
