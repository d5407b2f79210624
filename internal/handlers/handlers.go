// Package handlers is the HTTP surface over the booking engine. Handlers
// translate transport concerns (JSON bodies, query params, status codes) and
// delegate every rule to the wizard, the engine, and the repositories.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/slotline/slotline/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeBookingError maps domain errors onto transport codes: failed step
// gates are 422 with the exact field and reason, lost slot races are 409
// naming the replacement step, store failures are opaque 500s.
func writeBookingError(w http.ResponseWriter, err error) {
	var verr *booking.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"step":   string(verr.Step),
			"field":  verr.Field,
			"reason": verr.Reason,
		})
		return
	}

	var conflict *booking.ConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": "time slot already booked",
			"step":  string(booking.StepTime),
		})
		return
	}

	var rerr *booking.RepositoryError
	if errors.As(err, &rerr) {
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func formatRFC3339(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
