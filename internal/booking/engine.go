package booking

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/slotline/slotline/internal/clock"
	"github.com/slotline/slotline/internal/model"
	"github.com/slotline/slotline/internal/outbox"
	"github.com/slotline/slotline/internal/pricing"
)

// Reserver is the single authority on overlap. Implementations must evaluate
// the conflict check and insert the appointment as one atomic unit; the
// production implementation leans on a Postgres exclusion constraint. A
// *ConflictError return carries the appointments already holding the range.
type Reserver interface {
	Reserve(ctx context.Context, appt *model.Appointment, evt outbox.Event) (model.Appointment, error)
}

// Engine performs the wizard's terminal commit: re-reserve the interval,
// price the booking, and persist. Every slot list shown before this point was
// advisory only.
type Engine struct {
	reserver Reserver
	fees     pricing.Config
	clock    clock.Clock
	logger   *slog.Logger
}

func NewEngine(reserver Reserver, fees pricing.Config, clk clock.Clock, logger *slog.Logger) *Engine {
	return &Engine{reserver: reserver, fees: fees, clock: clk, logger: logger}
}

// Review computes (and caches on the wizard) the price breakdown shown on
// the final step. addOns must be the catalog records for w.AddOnIDs.
func (e *Engine) Review(w *Wizard, addOns []model.AddOn) (pricing.Quote, error) {
	if err := w.CanCommit(); err != nil {
		return pricing.Quote{}, err
	}
	quote, err := e.quoteFor(w, addOns)
	if err != nil {
		return pricing.Quote{}, err
	}
	w.Quote = &quote
	return quote, nil
}

// Commit runs the terminal sequence. On conflict the wizard is forced back
// to TimeSelection with the lost slot excluded for this session, and the
// ConflictError names the winners. On success the wizard state is spent and
// the caller must destroy the session.
func (e *Engine) Commit(ctx context.Context, w *Wizard, provider model.Provider, addOns []model.AddOn) (model.Appointment, error) {
	if err := w.CanCommit(); err != nil {
		return model.Appointment{}, err
	}
	if provider.ID != w.ProviderID {
		return model.Appointment{}, invalid(StepReview, "provider", "does not match this session")
	}
	if !provider.IsActive {
		return model.Appointment{}, invalid(StepReview, "provider", "is not accepting bookings")
	}

	start := *w.SlotStart
	if start.Before(e.clock.Now()) {
		w.ExcludeSlot(start)
		return model.Appointment{}, invalid(StepTime, "slot", "has already started")
	}

	quote, err := e.quoteFor(w, addOns)
	if err != nil {
		return model.Appointment{}, err
	}

	end := start.Add(w.Service.Duration())
	appt := model.Appointment{
		ProviderID:          provider.ID,
		ServiceID:           w.Service.ID,
		Subject:             *w.Subject,
		StartTime:           start,
		EndTime:             end,
		BlockedUntil:        end.Add(time.Duration(provider.BufferMinutes) * time.Minute),
		Status:              model.StatusPaymentPending,
		PaymentStatus:       model.PaymentPending,
		PaymentMode:         w.Mode,
		BasePriceCents:      quote.BasePriceCents,
		AddOnTotalCents:     quote.AddOnTotalCents,
		TotalCents:          quote.TotalCents,
		PlatformFeeCents:    quote.PlatformFeeCents,
		ProviderPayoutCents: quote.ProviderPayoutCents,
		Notes:               w.Notes,
	}
	if w.Subject.Kind == model.SubjectOperator {
		// No payment step: the appointment is confirmed outright and its
		// payment status never has to move.
		appt.Status = model.StatusConfirmed
	}
	for _, ao := range addOns {
		appt.AddOns = append(appt.AddOns, model.AppointmentAddOn{
			AddOnID:    ao.ID,
			Name:       ao.Name,
			PriceCents: ao.PriceCents,
		})
	}
	if err := appt.Validate(); err != nil {
		return model.Appointment{}, err
	}

	payload, err := json.Marshal(map[string]any{
		"provider_id":  appt.ProviderID,
		"service_id":   appt.ServiceID,
		"subject_kind": appt.Subject.Kind,
		"start_time":   appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":     appt.EndTime.UTC().Format(time.RFC3339),
		"total_cents":  appt.TotalCents,
		"status":       appt.Status,
	})
	if err != nil {
		return model.Appointment{}, err
	}

	reserved, err := e.reserver.Reserve(ctx, &appt, outbox.Event{
		AggregateType: "appointment",
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	})
	if err != nil {
		if conflict, ok := err.(*ConflictError); ok {
			e.logger.Info("booking lost slot race",
				"session_id", w.SessionID,
				"provider_id", w.ProviderID,
				"slot_start", start.UTC().Format(time.RFC3339),
				"conflicts", len(conflict.Overlapping),
			)
			w.ExcludeSlot(start)
		}
		return model.Appointment{}, err
	}
	return reserved, nil
}

func (e *Engine) quoteFor(w *Wizard, addOns []model.AddOn) (pricing.Quote, error) {
	prices := make([]int64, 0, len(addOns))
	for _, ao := range addOns {
		if ao.ProviderID != w.ProviderID {
			return pricing.Quote{}, invalid(StepService, "add_on", "does not belong to this provider")
		}
		prices = append(prices, ao.PriceCents)
	}
	operatorBypass := w.Subject != nil && w.Subject.Kind == model.SubjectOperator
	return e.fees.ComputeCharge(w.Service.PriceCents, prices, w.Mode, operatorBypass)
}
