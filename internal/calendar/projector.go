// Package calendar projects raw appointment records into display-ready
// events. Projection is pure and recomputed on every read; temporal status is
// never stored.
package calendar

import (
	"time"

	"github.com/slotline/slotline/internal/model"
)

type ViewerRole string

const (
	// ViewerProvider sees the client (or guest) on each event.
	ViewerProvider ViewerRole = "provider"
	// ViewerClient sees the provider on each event.
	ViewerClient ViewerRole = "client"
)

type TemporalStatus string

const (
	TemporalUpcoming   TemporalStatus = "upcoming"
	TemporalInProgress TemporalStatus = "in_progress"
	TemporalPast       TemporalStatus = "past"
	TemporalCompleted  TemporalStatus = "completed"
	TemporalMissed     TemporalStatus = "missed"
)

// Event is the projection consumed by any rendering layer. Price fields are
// the values captured at commit time, immune to later catalog edits.
type Event struct {
	AppointmentID    string                  `json:"appointment_id"`
	Title            string                  `json:"title"`
	Start            time.Time               `json:"start"`
	End              time.Time               `json:"end"`
	Status           model.AppointmentStatus `json:"status"`
	PaymentStatus    model.PaymentStatus     `json:"payment_status"`
	Temporal         TemporalStatus          `json:"temporal"`
	ServiceName      string                  `json:"service_name"`
	AddOnNames       []string                `json:"add_on_names,omitempty"`
	CounterpartyName string                  `json:"counterparty_name"`
	IsGuest          bool                    `json:"is_guest"`

	BasePriceCents      int64 `json:"base_price_cents"`
	AddOnTotalCents     int64 `json:"add_on_total_cents"`
	TotalCents          int64 `json:"total_cents"`
	PlatformFeeCents    int64 `json:"platform_fee_cents"`
	ProviderPayoutCents int64 `json:"provider_payout_cents"`

	Notes string `json:"notes,omitempty"`
}

// Project joins appointments with their service, provider, and client records
// and classifies each one against now. Unresolvable references degrade to
// empty names rather than dropping the event.
func Project(appts []model.Appointment, services []model.Service, providers []model.Provider, clients []model.Client, viewer ViewerRole, now time.Time) []Event {
	svcByID := make(map[string]model.Service, len(services))
	for _, s := range services {
		svcByID[s.ID] = s
	}
	provByID := make(map[string]model.Provider, len(providers))
	for _, p := range providers {
		provByID[p.ID] = p
	}
	clientByID := make(map[string]model.Client, len(clients))
	for _, c := range clients {
		clientByID[c.ID] = c
	}

	events := make([]Event, 0, len(appts))
	for _, a := range appts {
		svc := svcByID[a.ServiceID]

		evt := Event{
			AppointmentID:       a.ID,
			Title:               svc.Name,
			Start:               a.StartTime,
			End:                 a.EndTime,
			Status:              a.Status,
			PaymentStatus:       a.PaymentStatus,
			Temporal:            classify(now, a.StartTime, a.EndTime, a.Status),
			ServiceName:         svc.Name,
			IsGuest:             a.Subject.Kind == model.SubjectGuest,
			BasePriceCents:      a.BasePriceCents,
			AddOnTotalCents:     a.AddOnTotalCents,
			TotalCents:          a.TotalCents,
			PlatformFeeCents:    a.PlatformFeeCents,
			ProviderPayoutCents: a.ProviderPayoutCents,
			Notes:               a.Notes,
		}
		for _, ao := range a.AddOns {
			evt.AddOnNames = append(evt.AddOnNames, ao.Name)
		}

		switch viewer {
		case ViewerClient:
			evt.CounterpartyName = provByID[a.ProviderID].DisplayName
		default:
			evt.CounterpartyName = counterpartyForProvider(a, clientByID)
		}

		events = append(events, evt)
	}
	return events
}

func counterpartyForProvider(a model.Appointment, clients map[string]model.Client) string {
	switch a.Subject.Kind {
	case model.SubjectGuest:
		return a.Subject.GuestName
	case model.SubjectRegistered:
		return clients[a.Subject.ClientID].DisplayName
	case model.SubjectOperator:
		return "Walk-in"
	}
	return ""
}

// classify is a pure function of (now, start, end, status). Missed and
// completed are persisted statuses and win outright; cancelled appointments
// classify by time like anything else, they are not no-shows.
func classify(now, start, end time.Time, status model.AppointmentStatus) TemporalStatus {
	switch status {
	case model.StatusMissed:
		return TemporalMissed
	case model.StatusCompleted:
		return TemporalCompleted
	}
	if now.Before(start) {
		return TemporalUpcoming
	}
	if now.Before(end) {
		return TemporalInProgress
	}
	return TemporalPast
}
