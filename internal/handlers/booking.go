package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/slotline/slotline/internal/availability"
	"github.com/slotline/slotline/internal/booking"
	"github.com/slotline/slotline/internal/clock"
	"github.com/slotline/slotline/internal/model"
	"github.com/slotline/slotline/internal/outbox"
	"github.com/slotline/slotline/internal/storage"
)

type BookingHandler struct {
	appts    *storage.AppointmentRepository
	avail    *storage.AvailabilityRepository
	catalog  *storage.CatalogRepository
	sessions *booking.SessionStore
	engine   *booking.Engine
	outbox   *outbox.Repository
	verifier *Verifier
	clock    clock.Clock
	logger   *slog.Logger
}

func NewBookingHandler(
	appts *storage.AppointmentRepository,
	avail *storage.AvailabilityRepository,
	catalog *storage.CatalogRepository,
	sessions *booking.SessionStore,
	engine *booking.Engine,
	outboxRepo *outbox.Repository,
	verifier *Verifier,
	clk clock.Clock,
	logger *slog.Logger,
) *BookingHandler {
	return &BookingHandler{
		appts:    appts,
		avail:    avail,
		catalog:  catalog,
		sessions: sessions,
		engine:   engine,
		outbox:   outboxRepo,
		verifier: verifier,
		clock:    clk,
		logger:   logger,
	}
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type wizardState struct {
	SessionID  string   `json:"session_id"`
	ProviderID string   `json:"provider_id"`
	Step       string   `json:"step"`
	ServiceID  string   `json:"service_id,omitempty"`
	AddOnIDs   []string `json:"add_on_ids,omitempty"`
	Date       string   `json:"date,omitempty"`
	SlotStart  string   `json:"slot_start,omitempty"`
	Mode       string   `json:"payment_mode"`
	Quote      any      `json:"quote,omitempty"`
}

func stateOf(w *booking.Wizard) wizardState {
	st := wizardState{
		SessionID:  w.SessionID,
		ProviderID: w.ProviderID,
		Step:       string(w.Step),
		AddOnIDs:   w.AddOnIDs,
		Mode:       string(w.Mode),
	}
	if w.Service != nil {
		st.ServiceID = w.Service.ID
	}
	if w.Date != nil {
		st.Date = w.Date.String()
	}
	if w.SlotStart != nil {
		st.SlotStart = formatRFC3339(*w.SlotStart)
	}
	if w.Quote != nil {
		st.Quote = w.Quote
	}
	return st
}

// Slots lists candidate start times for one provider, service, and date. The
// list is advisory: it reflects the schedule and bookings at read time and
// carries no hold on any slot.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerID := strings.TrimSpace(r.URL.Query().Get("provider_id"))
	serviceID := strings.TrimSpace(r.URL.Query().Get("service_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if providerID == "" || serviceID == "" || dateStr == "" {
		http.Error(w, "provider_id, service_id, and date are required", http.StatusBadRequest)
		return
	}
	day, err := availability.ParseDate(dateStr)
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	provider, err := h.catalog.GetProvider(r.Context(), providerID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "provider not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}
	svc, err := h.catalog.GetService(r.Context(), providerID, serviceID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load service", http.StatusInternalServerError)
		return
	}
	if !svc.Bookable() {
		// A retired service is kept for old appointments but never advertised.
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}

	slots, err := h.candidateSlots(r.Context(), provider, svc, day)
	if err != nil {
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}

	resp := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, slotItem{
			StartTime: formatRFC3339(s),
			EndTime:   formatRFC3339(s.Add(svc.Duration())),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// candidateSlots resolves the open interval for the day in the provider's
// zone, generates boundary-inclusive starts, and trims starts colliding with
// booked ranges (buffer included). A closed day is an empty list, not an
// error.
func (h *BookingHandler) candidateSlots(ctx context.Context, provider model.Provider, svc model.Service, day availability.Date) ([]time.Time, error) {
	loc, err := provider.Location()
	if err != nil {
		return nil, err
	}
	sched, err := h.avail.LoadSchedule(ctx, provider.ID, day, day)
	if err != nil {
		return nil, err
	}
	open, ok := sched.ResolveOpenInterval(day, loc)
	if !ok {
		return nil, nil
	}

	slots := availability.GenerateSlots(open, svc.Duration(), availability.DefaultGranularity, h.clock.Now())
	if len(slots) == 0 {
		return nil, nil
	}

	booked, err := h.appts.ListBookedIntervals(ctx, provider.ID, open.Start, open.End)
	if err != nil {
		return nil, err
	}
	busy := make([]availability.Interval, 0, len(booked))
	for _, a := range booked {
		busy = append(busy, availability.Interval{Start: a.StartTime, End: a.BlockedUntil})
	}
	// Trim with the full blocked range, not the bare duration, so the list
	// matches what the reservation constraint will accept.
	blocked := svc.Duration() + time.Duration(provider.BufferMinutes)*time.Minute
	return availability.ExcludeBusy(slots, blocked, busy), nil
}

type startSessionRequest struct {
	ProviderID string `json:"provider_id"`
}

// StartSession opens a wizard session for one provider.
func (h *BookingHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if req.ProviderID == "" {
		http.Error(w, "provider_id required", http.StatusBadRequest)
		return
	}

	provider, err := h.catalog.GetProvider(r.Context(), req.ProviderID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "provider not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}
	if !provider.IsActive {
		http.Error(w, "provider is not accepting bookings", http.StatusUnprocessableEntity)
		return
	}

	wiz := booking.NewWizard(uuid.NewString(), provider.ID)
	if err := h.sessions.Save(r.Context(), wiz); err != nil {
		http.Error(w, "failed to save session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, stateOf(wiz))
}

func (h *BookingHandler) loadSession(w http.ResponseWriter, r *http.Request, sessionID string) (*booking.Wizard, bool) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return nil, false
	}
	wiz, ok, err := h.sessions.Load(r.Context(), sessionID)
	if err != nil {
		http.Error(w, "failed to load session", http.StatusInternalServerError)
		return nil, false
	}
	if !ok {
		http.Error(w, "session not found or expired", http.StatusNotFound)
		return nil, false
	}
	return wiz, true
}

func (h *BookingHandler) saveAndRespond(w http.ResponseWriter, r *http.Request, wiz *booking.Wizard) {
	if err := h.sessions.Save(r.Context(), wiz); err != nil {
		http.Error(w, "failed to save session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stateOf(wiz))
}

type selectServiceRequest struct {
	SessionID string   `json:"session_id"`
	ServiceID string   `json:"service_id"`
	AddOnIDs  []string `json:"add_on_ids"`
}

func (h *BookingHandler) SelectService(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req selectServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	wiz, ok := h.loadSession(w, r, req.SessionID)
	if !ok {
		return
	}

	svc, err := h.catalog.GetService(r.Context(), wiz.ProviderID, strings.TrimSpace(req.ServiceID))
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "service not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load service", http.StatusInternalServerError)
		return
	}
	if len(req.AddOnIDs) > 0 {
		addOns, err := h.catalog.ListAddOns(r.Context(), wiz.ProviderID, req.AddOnIDs)
		if err != nil {
			http.Error(w, "failed to load add-ons", http.StatusInternalServerError)
			return
		}
		if len(addOns) != len(req.AddOnIDs) {
			http.Error(w, "unknown add-on for this provider", http.StatusUnprocessableEntity)
			return
		}
	}

	if err := wiz.SelectService(svc, req.AddOnIDs); err != nil {
		writeBookingError(w, err)
		return
	}
	h.saveAndRespond(w, r, wiz)
}

type selectTimeRequest struct {
	SessionID string `json:"session_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

func (h *BookingHandler) SelectTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req selectTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	wiz, ok := h.loadSession(w, r, req.SessionID)
	if !ok {
		return
	}
	if wiz.Service == nil {
		writeBookingError(w, wiz.SelectTime(availability.Date{}, time.Time{}, nil))
		return
	}

	day, err := availability.ParseDate(strings.TrimSpace(req.Date))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		http.Error(w, "invalid start_time", http.StatusBadRequest)
		return
	}

	provider, err := h.catalog.GetProvider(r.Context(), wiz.ProviderID)
	if err != nil {
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}
	candidates, err := h.candidateSlots(r.Context(), provider, *wiz.Service, day)
	if err != nil {
		http.Error(w, "failed to compute slots", http.StatusInternalServerError)
		return
	}

	if err := wiz.SelectTime(day, start, wiz.FilterExcluded(candidates)); err != nil {
		writeBookingError(w, err)
		return
	}
	h.saveAndRespond(w, r, wiz)
}

type setIdentityRequest struct {
	SessionID string               `json:"session_id"`
	Subject   model.BookingSubject `json:"subject"`
}

// SetIdentity passes the identity gate. A registered identity comes from the
// verified bearer token, never from the request body; the operator bypass is
// derived from the provider record.
func (h *BookingHandler) SetIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req setIdentityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	wiz, ok := h.loadSession(w, r, req.SessionID)
	if !ok {
		return
	}

	if req.Subject.Kind == model.SubjectRegistered {
		claims, err := h.verifier.Claims(r)
		if err != nil {
			http.Error(w, "sign-in required", http.StatusUnauthorized)
			return
		}
		req.Subject = model.RegisteredSubject(claims.Sub)
		if _, err := h.catalog.GetClient(r.Context(), req.Subject.ClientID); err != nil {
			if storage.IsNotFound(err) {
				http.Error(w, "client not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to load client", http.StatusInternalServerError)
			return
		}
	}

	provider, err := h.catalog.GetProvider(r.Context(), wiz.ProviderID)
	if err != nil {
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}
	if err := wiz.SetIdentity(req.Subject, provider.IsOperator); err != nil {
		writeBookingError(w, err)
		return
	}
	h.saveAndRespond(w, r, wiz)
}

type setPaymentModeRequest struct {
	SessionID string `json:"session_id"`
	Mode      string `json:"payment_mode"`
	Notes     string `json:"notes"`
}

func (h *BookingHandler) SetPaymentMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req setPaymentModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	wiz, ok := h.loadSession(w, r, req.SessionID)
	if !ok {
		return
	}
	if err := wiz.SetPaymentMode(model.PaymentMode(strings.TrimSpace(req.Mode))); err != nil {
		writeBookingError(w, err)
		return
	}
	wiz.Notes = strings.TrimSpace(req.Notes)
	h.saveAndRespond(w, r, wiz)
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

func (h *BookingHandler) Back(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	wiz, ok := h.loadSession(w, r, req.SessionID)
	if !ok {
		return
	}
	wiz.Back()
	h.saveAndRespond(w, r, wiz)
}

// Review computes the price breakdown shown on the final step.
func (h *BookingHandler) Review(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	wiz, ok := h.loadSession(w, r, req.SessionID)
	if !ok {
		return
	}

	addOns, err := h.catalog.ListAddOns(r.Context(), wiz.ProviderID, wiz.AddOnIDs)
	if err != nil {
		http.Error(w, "failed to load add-ons", http.StatusInternalServerError)
		return
	}
	quote, err := h.engine.Review(wiz, addOns)
	if err != nil {
		writeBookingError(w, err)
		return
	}
	if err := h.sessions.Save(r.Context(), wiz); err != nil {
		http.Error(w, "failed to save session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type commitResponse struct {
	AppointmentID string `json:"appointment_id"`
	Status        string `json:"status"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	TotalCents    int64  `json:"total_cents"`
}

// Commit is the terminal step. On a lost slot race the session survives with
// the slot excluded and the wizard back on time selection; on success the
// session is destroyed.
func (h *BookingHandler) Commit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	wiz, ok := h.loadSession(w, r, req.SessionID)
	if !ok {
		return
	}

	provider, err := h.catalog.GetProvider(r.Context(), wiz.ProviderID)
	if err != nil {
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return
	}
	addOns, err := h.catalog.ListAddOns(r.Context(), wiz.ProviderID, wiz.AddOnIDs)
	if err != nil {
		http.Error(w, "failed to load add-ons", http.StatusInternalServerError)
		return
	}

	appt, err := h.engine.Commit(r.Context(), wiz, provider, addOns)
	if err != nil {
		// The wizard may have been forced back to time selection; persist
		// that before reporting so a retry sees the excluded slot.
		if saveErr := h.sessions.Save(r.Context(), wiz); saveErr != nil {
			h.logger.Error("failed to save session after commit error", "session_id", wiz.SessionID, "err", saveErr)
		}
		writeBookingError(w, err)
		return
	}

	if err := h.sessions.Delete(r.Context(), wiz.SessionID); err != nil {
		h.logger.Warn("failed to delete committed session", "session_id", wiz.SessionID, "err", err)
	}
	writeJSON(w, http.StatusCreated, commitResponse{
		AppointmentID: appt.ID,
		Status:        string(appt.Status),
		StartTime:     formatRFC3339(appt.StartTime),
		EndTime:       formatRFC3339(appt.EndTime),
		TotalCents:    appt.TotalCents,
	})
}

// Abandon destroys the session without booking anything. Nothing was ever
// reserved, so there is nothing else to release.
func (h *BookingHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID == "" {
		http.Error(w, "session_id required", http.StatusBadRequest)
		return
	}
	if err := h.sessions.Delete(r.Context(), req.SessionID); err != nil {
		http.Error(w, "failed to delete session", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}

func (h *BookingHandler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	wiz, ok := h.loadSession(w, r, r.URL.Query().Get("session_id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateOf(wiz))
}

type transitionRequest struct {
	ProviderID    string `json:"provider_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

// Cancel releases the appointment's time range. Cancellation is a status
// transition, never a delete; the row stays for history and calendars.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if hdr := strings.TrimSpace(r.Header.Get("X-Provider-Id")); hdr != "" {
		req.ProviderID = hdr
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	req.Reason = strings.TrimSpace(req.Reason)
	if req.ProviderID == "" || req.AppointmentID == "" {
		http.Error(w, "provider_id and appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.appts.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.appts.GetForUpdate(ctx, tx, req.ProviderID, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}

	if appt.Status == model.StatusCancelled && appt.CancelledAt != nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"appointment_id": appt.ID,
			"status":         string(model.StatusCancelled),
			"cancelled_at":   formatRFC3339(*appt.CancelledAt),
		})
		return
	}
	if !appt.CanTransition(model.StatusCancelled) {
		http.Error(w, "appointment cannot be cancelled", http.StatusConflict)
		return
	}

	cancelledAt, err := h.appts.Cancel(ctx, tx, req.ProviderID, appt.ID, req.Reason)
	if err != nil {
		http.Error(w, "failed to cancel appointment", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"provider_id":    appt.ProviderID,
		"service_id":     appt.ServiceID,
		"start_time":     formatRFC3339(appt.StartTime),
		"end_time":       formatRFC3339(appt.EndTime),
		"cancelled_at":   formatRFC3339(cancelledAt),
		"reason":         req.Reason,
	})
	if err != nil {
		http.Error(w, "failed to build cancellation event", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentCancelled,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"appointment_id": appt.ID,
		"status":         string(model.StatusCancelled),
		"cancelled_at":   formatRFC3339(cancelledAt),
	})
}

// Complete marks a confirmed appointment as held.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusCompleted, outbox.EventAppointmentCompleted)
}

// MarkMissed records a no-show. Missed is distinct from cancelled: it can
// only follow confirmed, and it reads as a no-show, not a release.
func (h *BookingHandler) MarkMissed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.StatusMissed, outbox.EventAppointmentMissed)
}

func (h *BookingHandler) transition(w http.ResponseWriter, r *http.Request, to model.AppointmentStatus, eventType string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	req.ProviderID = strings.TrimSpace(req.ProviderID)
	if hdr := strings.TrimSpace(r.Header.Get("X-Provider-Id")); hdr != "" {
		req.ProviderID = hdr
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.ProviderID == "" || req.AppointmentID == "" {
		http.Error(w, "provider_id and appointment_id required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	tx, err := h.appts.Begin(ctx)
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.appts.GetForUpdate(ctx, tx, req.ProviderID, req.AppointmentID)
	if err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "appointment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to load appointment", http.StatusInternalServerError)
		return
	}
	if appt.Status == to {
		writeJSON(w, http.StatusOK, map[string]string{"appointment_id": appt.ID, "status": string(to)})
		return
	}
	if !appt.CanTransition(to) {
		http.Error(w, "invalid status transition", http.StatusConflict)
		return
	}

	if err := h.appts.UpdateStatus(ctx, tx, appt.ID, to); err != nil {
		http.Error(w, "failed to update appointment", http.StatusInternalServerError)
		return
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"provider_id":    appt.ProviderID,
		"service_id":     appt.ServiceID,
		"start_time":     formatRFC3339(appt.StartTime),
		"end_time":       formatRFC3339(appt.EndTime),
		"status":         string(to),
	})
	if err != nil {
		http.Error(w, "failed to build event payload", http.StatusInternalServerError)
		return
	}
	if err := h.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		http.Error(w, "failed to write outbox event", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		http.Error(w, "failed to commit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"appointment_id": appt.ID, "status": string(to)})
}
