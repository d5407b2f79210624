package model

import "time"

// Provider is the service professional whose calendar is being booked.
type Provider struct {
	ID          string
	DisplayName string
	// Timezone is an IANA zone name, e.g. "America/New_York". Slot math and
	// past/upcoming classification happen in this zone.
	Timezone string
	// IsOperator lets the provider record appointments without a payment step
	// (walk-ins, phone bookings) and accept guest bookings.
	IsOperator bool
	IsActive   bool
	// BufferMinutes extends the blocked range after each appointment.
	BufferMinutes int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p Provider) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(p.Timezone)
}

// Client is a registered account the identity collaborator vouches for. Only
// the display fields live here; authentication is out of scope.
type Client struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
}

type Service struct {
	ID              string
	ProviderID      string
	Name            string
	DurationMinutes int
	PriceCents      int64
	IsActive        bool
	CreatedAt       time.Time
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

// Bookable reports whether the service may be offered to bookers. Inactive or
// zero-duration services stay on record for old appointments but are never
// listed.
func (s Service) Bookable() bool {
	return s.IsActive && s.DurationMinutes > 0
}

type AddOn struct {
	ID         string
	ProviderID string
	Name       string
	PriceCents int64
	CreatedAt  time.Time
}
