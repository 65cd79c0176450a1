package payments

import (
	"fmt"

	"github.com/smehubhq/payments-service/internal/models"
)

// Limits is the configured acceptance band for gross amounts, in minor units.
type Limits struct {
	Min int64
	Max int64
}

// FeeBreakdown is the immutable amount split computed at creation time.
type FeeBreakdown struct {
	Gross int64
	Fee   int64
	Net   int64
}

// ComputeFee splits a gross amount into platform fee and net payout.
// The fee rate is expressed in basis points (500 = 5%) so the arithmetic stays
// integral; the fee is truncated toward zero so the platform never collects
// more than the stated rate. Pure and deterministic.
func ComputeFee(gross, feeBps int64, lim Limits) (FeeBreakdown, error) {
	if gross <= 0 {
		return FeeBreakdown{}, fmt.Errorf("%w: gross must be positive, got %d", models.ErrInvalidAmount, gross)
	}
	if gross < lim.Min || gross > lim.Max {
		return FeeBreakdown{}, fmt.Errorf("%w: %d outside band [%d, %d]", models.ErrInvalidAmount, gross, lim.Min, lim.Max)
	}
	if feeBps < 0 || feeBps > 10_000 {
		return FeeBreakdown{}, fmt.Errorf("%w: fee %d bps out of range", models.ErrInvalidAmount, feeBps)
	}
	fee := gross * feeBps / 10_000
	return FeeBreakdown{Gross: gross, Fee: fee, Net: gross - fee}, nil
}
