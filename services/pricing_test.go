package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePriceStayExample(t *testing.T) {
	// 5000.00/night for 3 nights at 10% -> 15000.00 base + 1500.00 fee
	quote, err := ComputePrice(500000, 3, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(1500000), quote.BasePriceMinor)
	assert.Equal(t, int64(150000), quote.ServiceFeeMinor)
	assert.Equal(t, int64(1650000), quote.TotalMinor)
	assert.Equal(t, 3, quote.DurationUnits)
}

func TestComputePriceActivityExample(t *testing.T) {
	// 2500.00/person for 4 people at 10% -> 10000.00 base + 1000.00 fee
	quote, err := ComputePrice(250000, 4, 10)
	require.NoError(t, err)

	assert.Equal(t, int64(1000000), quote.BasePriceMinor)
	assert.Equal(t, int64(1100000), quote.TotalMinor)
}

func TestComputePriceTotalIsBasePlusFee(t *testing.T) {
	cases := []struct {
		unit     int64
		duration int
		fee      int
	}{
		{100, 1, 0},
		{333, 1, 10},
		{99999, 7, 15},
		{250000, 16, 12},
	}

	for _, tc := range cases {
		quote, err := ComputePrice(tc.unit, tc.duration, tc.fee)
		require.NoError(t, err)
		assert.Equal(t, quote.BasePriceMinor+quote.ServiceFeeMinor, quote.TotalMinor)
	}
}

func TestComputePriceRoundsFeeHalfUp(t *testing.T) {
	// base 333 at 10% is 33.3 -> 33
	quote, err := ComputePrice(333, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(33), quote.ServiceFeeMinor)

	// base 335 at 10% is 33.5 -> 34
	quote, err = ComputePrice(335, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(34), quote.ServiceFeeMinor)
}

func TestComputePriceIsDeterministic(t *testing.T) {
	first, err := ComputePrice(500000, 3, 10)
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		again, err := ComputePrice(500000, 3, 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestComputePriceZeroFeeRate(t *testing.T) {
	quote, err := ComputePrice(500000, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), quote.ServiceFeeMinor)
	assert.Equal(t, quote.BasePriceMinor, quote.TotalMinor)
}

func TestComputePriceClampsDurationToOne(t *testing.T) {
	quote, err := ComputePrice(500000, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, quote.DurationUnits)
	assert.Equal(t, int64(500000), quote.BasePriceMinor)
}

func TestComputePriceRejectsBadInputs(t *testing.T) {
	_, err := ComputePrice(0, 1, 10)
	assert.Error(t, err)

	_, err = ComputePrice(-100, 1, 10)
	assert.Error(t, err)

	_, err = ComputePrice(100, 1, 100)
	assert.Error(t, err)

	_, err = ComputePrice(100, 1, -1)
	assert.Error(t, err)
}

func TestNights(t *testing.T) {
	checkIn := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, Nights(checkIn, checkIn.AddDate(0, 0, 3)))
	assert.Equal(t, 1, Nights(checkIn, checkIn.AddDate(0, 0, 1)))
	// degenerate ranges clamp rather than go to zero
	assert.Equal(t, 1, Nights(checkIn, checkIn))
}
