package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slotline/slotline/internal/calendar"
	"github.com/slotline/slotline/internal/clock"
	"github.com/slotline/slotline/internal/model"
	"github.com/slotline/slotline/internal/storage"
)

// CalendarHandler serves the projected event feeds. Temporal classification
// happens at read time against the current clock; nothing here is cached or
// stored.
type CalendarHandler struct {
	appts   *storage.AppointmentRepository
	catalog *storage.CatalogRepository
	clock   clock.Clock
	logger  *slog.Logger
}

func NewCalendarHandler(appts *storage.AppointmentRepository, catalog *storage.CatalogRepository, clk clock.Clock, logger *slog.Logger) *CalendarHandler {
	return &CalendarHandler{appts: appts, catalog: catalog, clock: clk, logger: logger}
}

// ProviderFeed returns the provider's calendar over a time window (default:
// 30 days back to 60 days ahead).
func (h *CalendarHandler) ProviderFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID := strings.TrimSpace(r.Header.Get("X-Provider-Id"))
	if providerID == "" {
		providerID = strings.TrimSpace(r.URL.Query().Get("provider_id"))
	}
	if providerID == "" {
		http.Error(w, "provider_id required", http.StatusBadRequest)
		return
	}

	now := h.clock.Now()
	from, to, err := feedWindow(r, now)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	appts, err := h.appts.ListByProvider(r.Context(), providerID, from, to)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	events, err := h.project(r, appts, calendar.ViewerProvider, now)
	if err != nil {
		http.Error(w, "failed to build calendar", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ClientFeed returns a registered client's appointments across providers.
func (h *CalendarHandler) ClientFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	clientID := strings.TrimSpace(r.Header.Get("X-Client-Id"))
	if clientID == "" {
		clientID = strings.TrimSpace(r.URL.Query().Get("client_id"))
	}
	if clientID == "" {
		http.Error(w, "client_id required", http.StatusBadRequest)
		return
	}

	appts, err := h.appts.ListByClient(r.Context(), clientID)
	if err != nil {
		http.Error(w, "failed to list appointments", http.StatusInternalServerError)
		return
	}
	events, err := h.project(r, appts, calendar.ViewerClient, h.clock.Now())
	if err != nil {
		http.Error(w, "failed to build calendar", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *CalendarHandler) project(r *http.Request, appts []model.Appointment, viewer calendar.ViewerRole, now time.Time) ([]calendar.Event, error) {
	serviceIDs := make([]string, 0, len(appts))
	clientIDs := make([]string, 0, len(appts))
	providerIDs := make([]string, 0, len(appts))
	seenSvc := map[string]bool{}
	seenClient := map[string]bool{}
	seenProv := map[string]bool{}
	for _, a := range appts {
		if !seenSvc[a.ServiceID] {
			seenSvc[a.ServiceID] = true
			serviceIDs = append(serviceIDs, a.ServiceID)
		}
		if !seenProv[a.ProviderID] {
			seenProv[a.ProviderID] = true
			providerIDs = append(providerIDs, a.ProviderID)
		}
		if a.Subject.Kind == model.SubjectRegistered && !seenClient[a.Subject.ClientID] {
			seenClient[a.Subject.ClientID] = true
			clientIDs = append(clientIDs, a.Subject.ClientID)
		}
	}

	services, err := h.catalog.GetServices(r.Context(), serviceIDs)
	if err != nil {
		return nil, err
	}
	clients, err := h.catalog.GetClients(r.Context(), clientIDs)
	if err != nil {
		return nil, err
	}
	providers := make([]model.Provider, 0, len(providerIDs))
	for _, id := range providerIDs {
		p, err := h.catalog.GetProvider(r.Context(), id)
		if err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		providers = append(providers, p)
	}

	events := calendar.Project(appts, services, providers, clients, viewer, now)
	if events == nil {
		events = []calendar.Event{}
	}
	return events, nil
}

func feedWindow(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	from := now.AddDate(0, 0, -30)
	to := now.AddDate(0, 0, 60)
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidWindow
		}
		from = t
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, time.Time{}, errInvalidWindow
		}
		to = t
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, errInvalidWindow
	}
	return from, to, nil
}

var errInvalidWindow = errors.New("invalid from/to window")
