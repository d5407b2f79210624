package pricing

import (
	"errors"
	"testing"

	"github.com/slotline/slotline/internal/model"
)

var testConfig = Config{
	BookingFeeCents:           338, // $3.38
	PlatformShareFullCents:    200,
	PlatformShareFeeOnlyCents: 88,
}

func TestComputeCharge_FullMode(t *testing.T) {
	q, err := testConfig.ComputeCharge(5000, []int64{1000, 500}, model.ModeFull, false)
	if err != nil {
		t.Fatalf("ComputeCharge: %v", err)
	}
	if q.TotalCents != 5000+1500+338 {
		t.Fatalf("total = %d, want %d", q.TotalCents, 5000+1500+338)
	}
	if q.AddOnTotalCents != 1500 {
		t.Fatalf("add-on total = %d", q.AddOnTotalCents)
	}
	if q.PlatformFeeCents != 200 {
		t.Fatalf("platform fee = %d", q.PlatformFeeCents)
	}
	if q.ProviderPayoutCents != q.TotalCents-q.PlatformFeeCents {
		t.Fatalf("payout %d != total %d - fee %d", q.ProviderPayoutCents, q.TotalCents, q.PlatformFeeCents)
	}
}

func TestComputeCharge_FeeOnlyIgnoresServicePrice(t *testing.T) {
	// $50 service, $3.38 fee: the charge is $3.38, not $53.38.
	q, err := testConfig.ComputeCharge(5000, nil, model.ModeFeeOnly, false)
	if err != nil {
		t.Fatalf("ComputeCharge: %v", err)
	}
	if q.TotalCents != 338 {
		t.Fatalf("total = %d, want 338", q.TotalCents)
	}
	if q.BasePriceCents != 5000 {
		t.Fatalf("base price must still be captured, got %d", q.BasePriceCents)
	}
	if q.ProviderPayoutCents != 338-88 {
		t.Fatalf("payout = %d, want %d", q.ProviderPayoutCents, 338-88)
	}
}

func TestComputeCharge_OperatorBypass(t *testing.T) {
	for _, mode := range []model.PaymentMode{model.ModeFull, model.ModeFeeOnly} {
		q, err := testConfig.ComputeCharge(5000, []int64{700}, mode, true)
		if err != nil {
			t.Fatalf("ComputeCharge(%s): %v", mode, err)
		}
		if q.TotalCents != 0 || q.PlatformFeeCents != 0 {
			t.Fatalf("bypass must charge nothing, got total=%d fee=%d", q.TotalCents, q.PlatformFeeCents)
		}
		if q.ProviderPayoutCents != 5000 {
			t.Fatalf("bypass payout = %d, want service price", q.ProviderPayoutCents)
		}
	}
}

func TestComputeCharge_RejectsNegativeAmounts(t *testing.T) {
	if _, err := testConfig.ComputeCharge(-1, nil, model.ModeFull, false); !errors.Is(err, model.ErrInvariant) {
		t.Fatalf("negative service price: got %v", err)
	}
	if _, err := testConfig.ComputeCharge(100, []int64{-5}, model.ModeFull, false); !errors.Is(err, model.ErrInvariant) {
		t.Fatalf("negative add-on price: got %v", err)
	}
}

func TestComputeCharge_UnknownMode(t *testing.T) {
	if _, err := testConfig.ComputeCharge(100, nil, model.PaymentMode("tab"), false); !errors.Is(err, model.ErrInvariant) {
		t.Fatalf("unknown mode: got %v", err)
	}
}
