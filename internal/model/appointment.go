package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvariant marks programmer errors (negative duration, end <= start, ...).
// Values that fail these checks are rejected at construction and never persisted.
var ErrInvariant = errors.New("invariant violation")

type AppointmentStatus string

const (
	StatusPending           AppointmentStatus = "pending"
	StatusPaymentPending    AppointmentStatus = "payment_pending"
	StatusConfirmed         AppointmentStatus = "confirmed"
	StatusCompleted         AppointmentStatus = "completed"
	StatusCancelled         AppointmentStatus = "cancelled"
	StatusMissed            AppointmentStatus = "missed"
	StatusRefunded          AppointmentStatus = "refunded"
	StatusPartiallyRefunded AppointmentStatus = "partially_refunded"
	StatusFailed            AppointmentStatus = "failed"
	StatusExpired           AppointmentStatus = "expired"
)

// Blocks reports whether an appointment in this status holds its time range.
// Non-blocking statuses never participate in overlap checks; the same list is
// baked into the exclusion constraint on the appointments table.
func (s AppointmentStatus) Blocks() bool {
	switch s {
	case StatusCancelled, StatusMissed, StatusFailed, StatusExpired:
		return false
	}
	return true
}

type PaymentStatus string

const (
	PaymentPending           PaymentStatus = "pending"
	PaymentSucceeded         PaymentStatus = "succeeded"
	PaymentFailed            PaymentStatus = "failed"
	PaymentRefunded          PaymentStatus = "refunded"
	PaymentPartiallyRefunded PaymentStatus = "partially_refunded"
)

type PaymentMode string

const (
	// ModeFull charges the service price, add-ons, and the booking fee.
	ModeFull PaymentMode = "full"
	// ModeFeeOnly charges the fixed booking fee; the service price is settled
	// in person.
	ModeFeeOnly PaymentMode = "fee_only"
)

type SubjectKind string

const (
	SubjectRegistered SubjectKind = "registered"
	SubjectGuest      SubjectKind = "guest"
	SubjectOperator   SubjectKind = "operator"
)

// BookingSubject is a tagged variant identifying who the appointment is for:
// an authenticated client, a guest recorded by an operator-enabled provider,
// or the provider themselves logging a walk-in.
type BookingSubject struct {
	Kind       SubjectKind `json:"kind"`
	ClientID   string      `json:"client_id,omitempty"`
	GuestName  string      `json:"guest_name,omitempty"`
	GuestEmail string      `json:"guest_email,omitempty"`
	GuestPhone string      `json:"guest_phone,omitempty"`
}

func RegisteredSubject(clientID string) BookingSubject {
	return BookingSubject{Kind: SubjectRegistered, ClientID: clientID}
}

func GuestSubject(name, email, phone string) BookingSubject {
	return BookingSubject{Kind: SubjectGuest, GuestName: name, GuestEmail: email, GuestPhone: phone}
}

func OperatorSubject() BookingSubject {
	return BookingSubject{Kind: SubjectOperator}
}

func (s BookingSubject) Validate() error {
	switch s.Kind {
	case SubjectRegistered:
		if s.ClientID == "" {
			return fmt.Errorf("%w: registered subject requires client id", ErrInvariant)
		}
	case SubjectGuest:
		if s.GuestName == "" || s.GuestEmail == "" || s.GuestPhone == "" {
			return fmt.Errorf("%w: guest subject requires name, email, and phone", ErrInvariant)
		}
	case SubjectOperator:
	default:
		return fmt.Errorf("%w: unknown subject kind %q", ErrInvariant, s.Kind)
	}
	return nil
}

// AppointmentAddOn is the join row capturing the add-on name and price at the
// time of booking. Later catalog edits never alter these values.
type AppointmentAddOn struct {
	AddOnID    string
	Name       string
	PriceCents int64
}

type Appointment struct {
	ID         string
	ProviderID string
	ServiceID  string
	Subject    BookingSubject

	StartTime time.Time
	// EndTime is persisted redundantly (start + service duration) so reads
	// never recompute it from a possibly-edited service record.
	EndTime time.Time
	// BlockedUntil = EndTime + the provider's buffer at booking time. The
	// overlap constraint guards [StartTime, BlockedUntil).
	BlockedUntil time.Time

	Status        AppointmentStatus
	PaymentStatus PaymentStatus
	PaymentMode   PaymentMode

	BasePriceCents      int64
	AddOnTotalCents     int64
	TotalCents          int64
	PlatformFeeCents    int64
	ProviderPayoutCents int64

	AddOns []AppointmentAddOn

	Notes        string
	CancelledAt  *time.Time
	CancelReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Appointment) Validate() error {
	if a.ProviderID == "" || a.ServiceID == "" {
		return fmt.Errorf("%w: provider and service are required", ErrInvariant)
	}
	if !a.EndTime.After(a.StartTime) {
		return fmt.Errorf("%w: end time must be after start time", ErrInvariant)
	}
	if a.BlockedUntil.Before(a.EndTime) {
		return fmt.Errorf("%w: blocked-until must not precede end time", ErrInvariant)
	}
	if err := a.Subject.Validate(); err != nil {
		return err
	}
	if a.BasePriceCents < 0 || a.AddOnTotalCents < 0 || a.TotalCents < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvariant)
	}
	for _, ao := range a.AddOns {
		if ao.PriceCents < 0 {
			return fmt.Errorf("%w: negative add-on price", ErrInvariant)
		}
	}
	return nil
}

// CanTransition enumerates the status transitions writes are allowed to make.
// Appointments are never hard-deleted; cancellation is a transition.
func (a *Appointment) CanTransition(to AppointmentStatus) bool {
	switch to {
	case StatusCancelled:
		return a.Status == StatusPending || a.Status == StatusPaymentPending || a.Status == StatusConfirmed
	case StatusMissed:
		return a.Status == StatusConfirmed
	case StatusCompleted:
		return a.Status == StatusConfirmed
	case StatusConfirmed:
		return a.Status == StatusPaymentPending || a.Status == StatusPending
	case StatusFailed:
		return a.Status == StatusPaymentPending
	case StatusRefunded, StatusPartiallyRefunded:
		return a.Status == StatusConfirmed || a.Status == StatusCancelled || a.Status == StatusCompleted
	case StatusExpired:
		return a.Status == StatusPaymentPending
	}
	return false
}
