// Package payments integrates the external payment collaborator. The booking
// engine never talks to the payment provider directly; it parks appointments
// in payment_pending and this webhook moves them forward or releases them.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/slotline/slotline/internal/model"
	"github.com/slotline/slotline/internal/outbox"
	"github.com/slotline/slotline/internal/storage"
)

type WebhookHandler struct {
	repo      *Repository
	appts     *storage.AppointmentRepository
	outbox    *outbox.Repository
	logger    *slog.Logger
	secret    string
	tolerance time.Duration
}

func NewWebhookHandler(repo *Repository, appts *storage.AppointmentRepository, outboxRepo *outbox.Repository, logger *slog.Logger, secret string, tolerance time.Duration) *WebhookHandler {
	if tolerance <= 0 {
		tolerance = 5 * time.Minute
	}
	return &WebhookHandler{repo: repo, appts: appts, outbox: outboxRepo, logger: logger, secret: secret, tolerance: tolerance}
}

// ServeHTTP handles Stripe webhooks (no session auth; signature verification
// is the auth). Processing and the replay-protection insert share one
// transaction, so a retried delivery either replays as a duplicate or
// reprocesses from scratch.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.TrimSpace(h.secret) == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.secret, h.tolerance)
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	evtType := string(evt.Type)
	h.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
	)

	tx, err := h.repo.Begin(r.Context())
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	// Idempotency: ignore replayed Stripe events.
	if err := h.repo.InsertProviderEvent(r.Context(), tx, ProviderEvent{
		Provider:        "stripe",
		ProviderEventID: evt.ID,
		EventType:       evtType,
		Payload:         body,
	}); err != nil {
		if errors.Is(err, ErrDuplicateProviderEvent) {
			h.logger.Info("payment provider event duplicate ignored", "provider_event_id", evt.ID, "event_type", evtType)
			_ = tx.Commit(r.Context())
			writeJSON(w, http.StatusOK, map[string]any{"status": "duplicate"})
			return
		}
		http.Error(w, "failed to record provider event", http.StatusInternalServerError)
		return
	}

	switch evtType {
	case "payment_intent.succeeded":
		err = h.applyIntent(r.Context(), tx, evt, model.PaymentSucceeded, model.StatusConfirmed)
	case "payment_intent.payment_failed":
		err = h.applyIntent(r.Context(), tx, evt, model.PaymentFailed, model.StatusFailed)
	case "charge.refunded":
		err = h.applyRefund(r.Context(), tx, evt)
	default:
		// Unrecognized event types are recorded and acknowledged.
	}
	if err != nil {
		h.logger.Error("payment event apply failed", "provider_event_id", evt.ID, "event_type", evtType, "err", err)
		http.Error(w, "failed to apply payment event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// applyIntent resolves a payment_pending appointment from the intent metadata
// and moves it to the outcome status. Appointments no longer waiting on
// payment (cancelled meanwhile, already resolved) are left alone.
func (h *WebhookHandler) applyIntent(ctx context.Context, tx pgx.Tx, evt stripe.Event, payment model.PaymentStatus, status model.AppointmentStatus) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &intent); err != nil {
		return err
	}
	apptID := strings.TrimSpace(intent.Metadata["appointment_id"])
	if apptID == "" {
		h.logger.Warn("stripe: payment intent without appointment_id metadata", "intent_id", intent.ID)
		return nil
	}

	appt, err := h.appts.LockByID(ctx, tx, apptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.logger.Warn("stripe: payment intent references unknown appointment", "appointment_id", apptID)
			return nil
		}
		return err
	}
	if !appt.CanTransition(status) {
		h.logger.Info("payment outcome ignored for appointment not awaiting payment",
			"appointment_id", apptID, "status", string(appt.Status))
		return nil
	}

	if err := h.appts.SetPaymentResult(ctx, tx, apptID, payment, status); err != nil {
		return err
	}
	return h.emitPaymentUpdated(ctx, tx, apptID, payment, status)
}

func (h *WebhookHandler) applyRefund(ctx context.Context, tx pgx.Tx, evt stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(evt.Data.Raw, &charge); err != nil {
		return err
	}
	apptID := strings.TrimSpace(charge.Metadata["appointment_id"])
	if apptID == "" {
		h.logger.Warn("stripe: refunded charge without appointment_id metadata", "charge_id", charge.ID)
		return nil
	}

	payment := model.PaymentPartiallyRefunded
	status := model.StatusPartiallyRefunded
	if charge.AmountRefunded >= charge.Amount {
		payment = model.PaymentRefunded
		status = model.StatusRefunded
	}

	appt, err := h.appts.LockByID(ctx, tx, apptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			h.logger.Warn("stripe: refund references unknown appointment", "appointment_id", apptID)
			return nil
		}
		return err
	}
	if !appt.CanTransition(status) {
		h.logger.Info("refund ignored for appointment in terminal state",
			"appointment_id", apptID, "status", string(appt.Status))
		return nil
	}

	if err := h.appts.SetPaymentResult(ctx, tx, apptID, payment, status); err != nil {
		return err
	}
	return h.emitPaymentUpdated(ctx, tx, apptID, payment, status)
}

func (h *WebhookHandler) emitPaymentUpdated(ctx context.Context, tx pgx.Tx, apptID string, payment model.PaymentStatus, status model.AppointmentStatus) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": apptID,
		"payment_status": string(payment),
		"status":         string(status),
	})
	if err != nil {
		return err
	}
	return h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   apptID,
		EventType:     outbox.EventPaymentUpdated,
		Payload:       payload,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
