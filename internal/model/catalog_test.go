package model

import "testing"

func TestService_Bookable(t *testing.T) {
	svc := Service{ID: "svc-1", ProviderID: "prov-1", Name: "Cut", DurationMinutes: 30, IsActive: true}
	if !svc.Bookable() {
		t.Fatal("active service with a duration must be bookable")
	}

	retired := svc
	retired.IsActive = false
	if retired.Bookable() {
		t.Fatal("inactive service must not be bookable")
	}

	zero := svc
	zero.DurationMinutes = 0
	if zero.Bookable() {
		t.Fatal("zero-duration service must not be bookable")
	}
}
