package services

import (
	"fmt"
	"time"
)

// PriceQuote is the server-side price breakdown for one booking. All amounts
// are minor currency units. Total is always BasePrice + ServiceFee; the
// service fee rate is applied once to the base, never compounded.
type PriceQuote struct {
	BasePriceMinor  int64  `json:"basePriceMinor"`
	DurationUnits   int    `json:"durationUnits"`
	ServiceFeeMinor int64  `json:"serviceFeeMinor"`
	TotalMinor      int64  `json:"totalMinor"`
	Currency        string `json:"currency"`
}

// ComputePrice prices a booking from canonical subject pricing: unit price
// times duration (nights for stays, head count for activities) plus a
// round-half-up service fee. Deterministic, no side effects. The same
// computation runs on clients for display; this one is authoritative.
//
// A duration below 1 is clamped to 1 unit. Intent validation rejects
// zero-night stays before pricing, so the clamp only matters for direct
// callers; it masks an input error rather than surfacing it.
// TODO: drop the clamp once all quote callers validate the range themselves.
func ComputePrice(unitPriceMinor int64, durationOrCount int, feeRatePercent int) (PriceQuote, error) {
	if unitPriceMinor <= 0 {
		return PriceQuote{}, fmt.Errorf("unit price must be positive, got %d", unitPriceMinor)
	}
	if feeRatePercent < 0 || feeRatePercent >= 100 {
		return PriceQuote{}, fmt.Errorf("fee rate must be in [0,100), got %d", feeRatePercent)
	}

	if durationOrCount < 1 {
		durationOrCount = 1
	}

	base := unitPriceMinor * int64(durationOrCount)
	// round-half-up to the nearest minor unit, applied once
	fee := (base*int64(feeRatePercent) + 50) / 100

	return PriceQuote{
		BasePriceMinor:  base,
		DurationUnits:   durationOrCount,
		ServiceFeeMinor: fee,
		TotalMinor:      base + fee,
	}, nil
}

// Nights counts whole nights between check-in and check-out, clamped to a
// minimum of 1.
func Nights(checkIn, checkOut time.Time) int {
	nights := int(checkOut.Sub(checkIn).Hours() / 24)
	if nights < 1 {
		nights = 1
	}
	return nights
}
