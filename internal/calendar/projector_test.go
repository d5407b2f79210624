package calendar

import (
	"testing"
	"time"

	"github.com/slotline/slotline/internal/model"
)

var (
	now = time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC)

	provider = model.Provider{ID: "prov-1", DisplayName: "Studio North"}
	client   = model.Client{ID: "client-1", DisplayName: "Avery Client"}
	service  = model.Service{ID: "svc-1", ProviderID: "prov-1", Name: "Deep Tissue", DurationMinutes: 60, PriceCents: 9000}
)

func appt(id string, start time.Time, status model.AppointmentStatus, subject model.BookingSubject) model.Appointment {
	return model.Appointment{
		ID:             id,
		ProviderID:     "prov-1",
		ServiceID:      "svc-1",
		Subject:        subject,
		StartTime:      start,
		EndTime:        start.Add(time.Hour),
		BlockedUntil:   start.Add(time.Hour),
		Status:         status,
		PaymentStatus:  model.PaymentSucceeded,
		PaymentMode:    model.ModeFull,
		BasePriceCents: 9000,
		TotalCents:     9338,
	}
}

func project(t *testing.T, a model.Appointment, viewer ViewerRole) Event {
	t.Helper()
	events := Project([]model.Appointment{a}, []model.Service{service}, []model.Provider{provider}, []model.Client{client}, viewer, now)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	return events[0]
}

func TestProject_TemporalClassification(t *testing.T) {
	for _, tc := range []struct {
		name   string
		start  time.Time
		status model.AppointmentStatus
		want   TemporalStatus
	}{
		{"upcoming", now.Add(2 * time.Hour), model.StatusConfirmed, TemporalUpcoming},
		{"in progress", now.Add(-30 * time.Minute), model.StatusConfirmed, TemporalInProgress},
		{"past", now.Add(-3 * time.Hour), model.StatusConfirmed, TemporalPast},
		{"completed wins over time", now.Add(-3 * time.Hour), model.StatusCompleted, TemporalCompleted},
		{"missed wins over time", now.Add(-3 * time.Hour), model.StatusMissed, TemporalMissed},
		{"cancelled in the past is not missed", now.Add(-3 * time.Hour), model.StatusCancelled, TemporalPast},
		{"cancelled in the future is upcoming", now.Add(3 * time.Hour), model.StatusCancelled, TemporalUpcoming},
	} {
		evt := project(t, appt("a-1", tc.start, tc.status, model.RegisteredSubject("client-1")), ViewerProvider)
		if evt.Temporal != tc.want {
			t.Fatalf("%s: temporal = %s, want %s", tc.name, evt.Temporal, tc.want)
		}
	}
}

func TestProject_CounterpartyByViewerRole(t *testing.T) {
	a := appt("a-1", now.Add(time.Hour), model.StatusConfirmed, model.RegisteredSubject("client-1"))

	asProvider := project(t, a, ViewerProvider)
	if asProvider.CounterpartyName != "Avery Client" {
		t.Fatalf("provider view counterparty = %q", asProvider.CounterpartyName)
	}

	asClient := project(t, a, ViewerClient)
	if asClient.CounterpartyName != "Studio North" {
		t.Fatalf("client view counterparty = %q", asClient.CounterpartyName)
	}
}

func TestProject_GuestAndOperatorSubjects(t *testing.T) {
	guest := project(t, appt("a-1", now.Add(time.Hour), model.StatusConfirmed,
		model.GuestSubject("Dana Guest", "dana@example.com", "555-0101")), ViewerProvider)
	if guest.CounterpartyName != "Dana Guest" || !guest.IsGuest {
		t.Fatalf("guest event: name=%q is_guest=%v", guest.CounterpartyName, guest.IsGuest)
	}

	walkIn := project(t, appt("a-2", now.Add(time.Hour), model.StatusConfirmed, model.OperatorSubject()), ViewerProvider)
	if walkIn.CounterpartyName != "Walk-in" || walkIn.IsGuest {
		t.Fatalf("operator event: name=%q is_guest=%v", walkIn.CounterpartyName, walkIn.IsGuest)
	}
}

func TestProject_CapturedPricesSurviveCatalogEdits(t *testing.T) {
	a := appt("a-1", now.Add(time.Hour), model.StatusConfirmed, model.RegisteredSubject("client-1"))
	a.AddOns = []model.AppointmentAddOn{{AddOnID: "ao-1", Name: "Hot stones", PriceCents: 1500}}
	a.AddOnTotalCents = 1500
	a.TotalCents = 9000 + 1500 + 338

	// The catalog price changed after booking; the projection must not care.
	repriced := service
	repriced.PriceCents = 20000

	events := Project([]model.Appointment{a}, []model.Service{repriced}, []model.Provider{provider}, []model.Client{client}, ViewerProvider, now)
	evt := events[0]
	if evt.BasePriceCents != 9000 {
		t.Fatalf("base price = %d, want captured 9000", evt.BasePriceCents)
	}
	if evt.TotalCents != 9000+1500+338 {
		t.Fatalf("total = %d", evt.TotalCents)
	}
	if len(evt.AddOnNames) != 1 || evt.AddOnNames[0] != "Hot stones" {
		t.Fatalf("add-on names = %v", evt.AddOnNames)
	}
}

func TestProject_UnknownReferencesDegradeGracefully(t *testing.T) {
	a := appt("a-1", now.Add(time.Hour), model.StatusConfirmed, model.RegisteredSubject("client-unknown"))
	events := Project([]model.Appointment{a}, nil, nil, nil, ViewerProvider, now)
	if len(events) != 1 {
		t.Fatalf("event dropped")
	}
	if events[0].ServiceName != "" || events[0].CounterpartyName != "" {
		t.Fatalf("expected empty names, got %+v", events[0])
	}
}
