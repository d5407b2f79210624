package model

import "testing"

func TestAppointment_CanTransition(t *testing.T) {
	cases := []struct {
		from AppointmentStatus
		to   AppointmentStatus
		want bool
	}{
		{StatusPaymentPending, StatusConfirmed, true},
		{StatusPaymentPending, StatusFailed, true},
		{StatusPaymentPending, StatusExpired, true},
		{StatusPaymentPending, StatusCancelled, true},
		{StatusPaymentPending, StatusCompleted, false},
		{StatusPaymentPending, StatusMissed, false},
		{StatusPaymentPending, StatusRefunded, false},

		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusFailed, false},
		{StatusPending, StatusExpired, false},

		{StatusConfirmed, StatusCompleted, true},
		{StatusConfirmed, StatusMissed, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusConfirmed, StatusRefunded, true},
		{StatusConfirmed, StatusPartiallyRefunded, true},
		{StatusConfirmed, StatusFailed, false},
		{StatusConfirmed, StatusExpired, false},

		// A refund can follow cancellation or a held appointment.
		{StatusCancelled, StatusRefunded, true},
		{StatusCancelled, StatusPartiallyRefunded, true},
		{StatusCompleted, StatusRefunded, true},
		{StatusCompleted, StatusPartiallyRefunded, true},
		{StatusCancelled, StatusConfirmed, false},
		{StatusCompleted, StatusCancelled, false},

		// Missed, failed, and expired are terminal.
		{StatusMissed, StatusRefunded, false},
		{StatusMissed, StatusConfirmed, false},
		{StatusFailed, StatusConfirmed, false},
		{StatusFailed, StatusCancelled, false},
		{StatusExpired, StatusConfirmed, false},
		{StatusExpired, StatusCancelled, false},

		{StatusRefunded, StatusConfirmed, false},
		{StatusPartiallyRefunded, StatusRefunded, false},
	}

	for _, tc := range cases {
		a := Appointment{Status: tc.from}
		if got := a.CanTransition(tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAppointmentStatus_Blocks(t *testing.T) {
	released := []AppointmentStatus{StatusCancelled, StatusMissed, StatusFailed, StatusExpired}
	for _, s := range released {
		if s.Blocks() {
			t.Fatalf("%s must release the time range", s)
		}
	}
	blocking := []AppointmentStatus{
		StatusPending, StatusPaymentPending, StatusConfirmed,
		StatusCompleted, StatusRefunded, StatusPartiallyRefunded,
	}
	for _, s := range blocking {
		if !s.Blocks() {
			t.Fatalf("%s must hold the time range", s)
		}
	}
}
