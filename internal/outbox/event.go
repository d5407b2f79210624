package outbox

// Booking lifecycle topics. Consumers key on the event type; the payload is
// the JSON body written in the same transaction as the state change.
const (
	EventAppointmentBooked    = "booking.appointment.booked.v1"
	EventAppointmentCancelled = "booking.appointment.cancelled.v1"
	EventAppointmentCompleted = "booking.appointment.completed.v1"
	EventAppointmentMissed    = "booking.appointment.missed.v1"
	EventPaymentUpdated       = "booking.payment.updated.v1"
)

type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
