package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/slotline/slotline/internal/availability"
	"github.com/slotline/slotline/internal/clock"
	"github.com/slotline/slotline/internal/storage"
)

// AvailabilityHandler manages a provider's schedule inputs. Schedule edits
// never touch existing appointments; they only shape future slot lists.
type AvailabilityHandler struct {
	avail   *storage.AvailabilityRepository
	catalog *storage.CatalogRepository
	clock   clock.Clock
	logger  *slog.Logger
}

func NewAvailabilityHandler(avail *storage.AvailabilityRepository, catalog *storage.CatalogRepository, clk clock.Clock, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{avail: avail, catalog: catalog, clock: clk, logger: logger}
}

func (h *AvailabilityHandler) providerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get("X-Provider-Id"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("provider_id"))
	}
	if id == "" {
		http.Error(w, "provider_id required", http.StatusBadRequest)
		return "", false
	}
	if _, err := h.catalog.GetProvider(r.Context(), id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "provider not found", http.StatusNotFound)
			return "", false
		}
		http.Error(w, "failed to load provider", http.StatusInternalServerError)
		return "", false
	}
	return id, true
}

type weeklyEntry struct {
	Weekday     int `json:"weekday"`
	StartMinute int `json:"start_minute"`
	EndMinute   int `json:"end_minute"`
}

type overrideEntry struct {
	Day         string `json:"day"`
	Closed      bool   `json:"closed"`
	StartMinute int    `json:"start_minute"`
	EndMinute   int    `json:"end_minute"`
}

type timeOffEntry struct {
	ID     string `json:"id,omitempty"`
	Start  string `json:"start"`
	End    string `json:"end"`
	Reason string `json:"reason,omitempty"`
}

type scheduleResponse struct {
	Weekly    []weeklyEntry   `json:"weekly"`
	Overrides []overrideEntry `json:"overrides"`
	TimeOff   []timeOffEntry  `json:"time_off"`
}

// scheduleWindow parses the optional from/to query bounds, defaulting to the
// 90 days starting today.
func scheduleWindow(q url.Values, today availability.Date) (availability.Date, availability.Date, error) {
	from := today
	to := from.AddDays(90)
	if raw := strings.TrimSpace(q.Get("from")); raw != "" {
		d, err := availability.ParseDate(raw)
		if err != nil {
			return from, to, errors.New("invalid from date")
		}
		from = d
	}
	if raw := strings.TrimSpace(q.Get("to")); raw != "" {
		d, err := availability.ParseDate(raw)
		if err != nil {
			return from, to, errors.New("invalid to date")
		}
		to = d
	}
	if to.Before(from) {
		return from, to, errors.New("to must not precede from")
	}
	return from, to, nil
}

// Schedule returns the provider's availability inputs over a date window
// (default: 90 days from today).
func (h *AvailabilityHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	from, to, err := scheduleWindow(r.URL.Query(), availability.DateOf(h.clock.Now().UTC()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sched, err := h.avail.LoadSchedule(r.Context(), providerID, from, to)
	if err != nil {
		http.Error(w, "failed to load schedule", http.StatusInternalServerError)
		return
	}

	resp := scheduleResponse{
		Weekly:    make([]weeklyEntry, 0, len(sched.Weekly)),
		Overrides: make([]overrideEntry, 0, len(sched.Overrides)),
		TimeOff:   make([]timeOffEntry, 0, len(sched.TimeOff)),
	}
	for _, wh := range sched.Weekly {
		resp.Weekly = append(resp.Weekly, weeklyEntry{Weekday: int(wh.Weekday), StartMinute: wh.StartMinute, EndMinute: wh.EndMinute})
	}
	for _, ov := range sched.Overrides {
		resp.Overrides = append(resp.Overrides, overrideEntry{Day: ov.Day.String(), Closed: ov.Closed, StartMinute: ov.StartMinute, EndMinute: ov.EndMinute})
	}
	for _, off := range sched.TimeOff {
		resp.TimeOff = append(resp.TimeOff, timeOffEntry{ID: off.ID, Start: off.Start.String(), End: off.End.String(), Reason: off.Reason})
	}
	writeJSON(w, http.StatusOK, resp)
}

// PutWeekly replaces the provider's whole recurring schedule. The submitted
// set is validated entry by entry before anything is written.
func (h *AvailabilityHandler) PutWeekly(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	var entries []weeklyEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	weekly := make([]availability.WeeklyHours, 0, len(entries))
	seen := make(map[time.Weekday]bool, len(entries))
	for _, e := range entries {
		wh := availability.WeeklyHours{Weekday: time.Weekday(e.Weekday), StartMinute: e.StartMinute, EndMinute: e.EndMinute}
		if err := wh.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if seen[wh.Weekday] {
			http.Error(w, "duplicate weekday entry", http.StatusUnprocessableEntity)
			return
		}
		seen[wh.Weekday] = true
		weekly = append(weekly, wh)
	}
	availability.SortWeekly(weekly)

	if err := h.avail.ReplaceWeekly(r.Context(), providerID, weekly); err != nil {
		http.Error(w, "failed to save schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"entries": len(weekly)})
}

// PutOverride sets or replaces the schedule exception for one day.
func (h *AvailabilityHandler) PutOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	var entry overrideEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	day, err := availability.ParseDate(strings.TrimSpace(entry.Day))
	if err != nil {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}
	ov := availability.DateOverride{Day: day, Closed: entry.Closed, StartMinute: entry.StartMinute, EndMinute: entry.EndMinute}
	if err := ov.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := h.avail.UpsertOverride(r.Context(), providerID, ov); err != nil {
		http.Error(w, "failed to save override", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"day": day.String()})
}

func (h *AvailabilityHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}
	day, err := availability.ParseDate(strings.TrimSpace(r.URL.Query().Get("day")))
	if err != nil {
		http.Error(w, "invalid day", http.StatusBadRequest)
		return
	}
	if err := h.avail.DeleteOverride(r.Context(), providerID, day); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "override not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete override", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"day": day.String()})
}

// AddTimeOff closes a whole-day range, both ends inclusive.
func (h *AvailabilityHandler) AddTimeOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}

	var entry timeOffEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	start, err := availability.ParseDate(strings.TrimSpace(entry.Start))
	if err != nil {
		http.Error(w, "invalid start date", http.StatusBadRequest)
		return
	}
	end, err := availability.ParseDate(strings.TrimSpace(entry.End))
	if err != nil {
		http.Error(w, "invalid end date", http.StatusBadRequest)
		return
	}
	if end.Before(start) {
		http.Error(w, "end must not precede start", http.StatusUnprocessableEntity)
		return
	}

	id, err := h.avail.AddTimeOff(r.Context(), providerID, availability.TimeOffRange{
		Start:  start,
		End:    end,
		Reason: strings.TrimSpace(entry.Reason),
	})
	if err != nil {
		http.Error(w, "failed to save time off", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *AvailabilityHandler) DeleteTimeOff(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	providerID, ok := h.providerID(w, r)
	if !ok {
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Error(w, "id required", http.StatusBadRequest)
		return
	}
	if err := h.avail.DeleteTimeOff(r.Context(), providerID, id); err != nil {
		if storage.IsNotFound(err) {
			http.Error(w, "time off not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete time off", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
