package booking

import (
	"fmt"
	"strings"

	"github.com/slotline/slotline/internal/model"
)

// ValidationError is a failed step gate. The wizard stays on the current step
// and the caller reports the exact field and reason.
type ValidationError struct {
	Step   Step
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", e.Step, e.Field, e.Reason)
}

func invalid(step Step, field, reason string) *ValidationError {
	return &ValidationError{Step: step, Field: field, Reason: reason}
}

// ConflictError names the appointments that already hold the requested
// interval, so the caller can say "this time was just booked" instead of a
// generic failure.
type ConflictError struct {
	Overlapping []model.Appointment
}

func (e *ConflictError) Error() string {
	if len(e.Overlapping) == 0 {
		return "time slot already booked"
	}
	ids := make([]string, 0, len(e.Overlapping))
	for _, a := range e.Overlapping {
		ids = append(ids, a.ID)
	}
	return "time slot already booked (conflicts: " + strings.Join(ids, ", ") + ")"
}

// RepositoryError wraps a store failure. It is retryable by the caller; the
// engine never retries writes on its own to avoid duplicate submissions.
type RepositoryError struct {
	Op  string
	Err error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("repository %s: %v", e.Op, e.Err)
}

func (e *RepositoryError) Unwrap() error { return e.Err }
