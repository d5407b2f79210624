// Package pricing computes the charge split persisted on every appointment.
// All amounts are integer minor units (cents); formatting is someone else's
// problem.
package pricing

import (
	"fmt"

	"github.com/slotline/slotline/internal/model"
)

// Config carries the platform's fixed fee amounts.
type Config struct {
	// BookingFeeCents is charged on every electronic payment, and is the
	// entire charge in fee-only mode.
	BookingFeeCents int64
	// PlatformShareFullCents is the platform's cut of a full payment.
	PlatformShareFullCents int64
	// PlatformShareFeeOnlyCents is the reduced cut of a fee-only payment.
	PlatformShareFeeOnlyCents int64
}

func (c Config) Validate() error {
	if c.BookingFeeCents < 0 || c.PlatformShareFullCents < 0 || c.PlatformShareFeeOnlyCents < 0 {
		return fmt.Errorf("%w: negative fee configuration", model.ErrInvariant)
	}
	if c.PlatformShareFeeOnlyCents > c.BookingFeeCents {
		return fmt.Errorf("%w: fee-only platform share exceeds booking fee", model.ErrInvariant)
	}
	return nil
}

// Quote is the computed breakdown. The values are captured onto the
// appointment at commit time and never recomputed.
type Quote struct {
	BasePriceCents      int64 `json:"base_price_cents"`
	AddOnTotalCents     int64 `json:"add_on_total_cents"`
	TotalCents          int64 `json:"total_cents"`
	PlatformFeeCents    int64 `json:"platform_fee_cents"`
	ProviderPayoutCents int64 `json:"provider_payout_cents"`
}

// ComputeCharge prices a service plus selected add-ons under the given mode.
//
// Operator bypass overrides the mode entirely: nothing is charged, and the
// payout mirrors the service price purely for the provider's bookkeeping.
func (c Config) ComputeCharge(servicePriceCents int64, addOnPriceCents []int64, mode model.PaymentMode, operatorBypass bool) (Quote, error) {
	if err := c.Validate(); err != nil {
		return Quote{}, err
	}
	if servicePriceCents < 0 {
		return Quote{}, fmt.Errorf("%w: negative service price", model.ErrInvariant)
	}
	var addOnTotal int64
	for _, p := range addOnPriceCents {
		if p < 0 {
			return Quote{}, fmt.Errorf("%w: negative add-on price", model.ErrInvariant)
		}
		addOnTotal += p
	}

	if operatorBypass {
		return Quote{
			BasePriceCents:      servicePriceCents,
			AddOnTotalCents:     addOnTotal,
			TotalCents:          0,
			PlatformFeeCents:    0,
			ProviderPayoutCents: servicePriceCents,
		}, nil
	}

	switch mode {
	case model.ModeFull:
		total := servicePriceCents + addOnTotal + c.BookingFeeCents
		return Quote{
			BasePriceCents:      servicePriceCents,
			AddOnTotalCents:     addOnTotal,
			TotalCents:          total,
			PlatformFeeCents:    c.PlatformShareFullCents,
			ProviderPayoutCents: total - c.PlatformShareFullCents,
		}, nil
	case model.ModeFeeOnly:
		return Quote{
			BasePriceCents:      servicePriceCents,
			AddOnTotalCents:     addOnTotal,
			TotalCents:          c.BookingFeeCents,
			PlatformFeeCents:    c.PlatformShareFeeOnlyCents,
			ProviderPayoutCents: c.BookingFeeCents - c.PlatformShareFeeOnlyCents,
		}, nil
	default:
		return Quote{}, fmt.Errorf("%w: unknown payment mode %q", model.ErrInvariant, mode)
	}
}
