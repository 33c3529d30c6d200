package curve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatRates quotes every recognized tenor so no pillar is left at zero.
func flatRates(rate float64) map[string]float64 {
	rates := make(map[string]float64, len(Tenors))
	for _, t := range Tenors {
		rates[string(t)] = rate
	}
	return rates
}

func upwardRates() map[string]float64 {
	return map[string]float64{
		"1M": 0.0380, "3M": 0.0385, "6M": 0.0390, "1Y": 0.0400,
		"2Y": 0.0410, "3Y": 0.0415, "5Y": 0.0420, "7Y": 0.0430,
		"10Y": 0.0440, "20Y": 0.0450, "30Y": 0.0460,
	}
}

func TestBuilderUnbuilt(t *testing.T) {
	b := NewBuilder()

	_, err := b.Curve()
	assert.ErrorIs(t, err, ErrUnbuilt)

	assert.Equal(t, 1.0, b.DiscountFactor(5))
	assert.Equal(t, 0.0, b.ZeroRate(5))
}

func TestBuilderBuildsAfterFirstTick(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.UpdateRates(upwardRates(), "2026-01-28"))

	c, err := b.Curve()
	require.NoError(t, err)

	assert.Equal(t, 1.0, c.DFYears(0))

	// DF decreases with maturity on an all-positive curve.
	prev := 1.0
	for _, years := range []float64{0.25, 1, 2, 5, 10, 20, 30} {
		df := c.DFYears(years)
		assert.Greater(t, df, 0.0)
		assert.Less(t, df, prev, "DF must decrease out to %.2fy", years)
		prev = df
	}
}

func TestBuilderRejectsBadCurveDate(t *testing.T) {
	b := NewBuilder()
	assert.Error(t, b.UpdateRates(upwardRates(), "not-a-date"))
}

func TestBuilderIgnoresUnknownTenors(t *testing.T) {
	b := NewBuilder()
	rates := upwardRates()
	rates["45Y"] = 0.05
	require.NoError(t, b.UpdateRates(rates, "2026-01-28"))

	_, err := b.Curve()
	require.NoError(t, err)
	assert.Nil(t, b.Quote("45Y"))
}

func TestBuilderReactsToQuoteMutation(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.UpdateRates(upwardRates(), "2026-01-28"))

	before := b.DiscountFactor(5)
	assert.False(t, b.Stale(), "reading the curve should clear staleness")

	b.Quote(Tenor5Y).Set(0.0470)
	assert.True(t, b.Stale())

	after := b.DiscountFactor(5)
	assert.Less(t, after, before, "raising the 5Y quote must lower DF(5)")
}

func TestQuoteSetSameValueKeepsCurve(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.UpdateRates(upwardRates(), "2026-01-28"))
	_, err := b.Curve()
	require.NoError(t, err)

	b.Quote(Tenor5Y).Set(0.0420)
	assert.False(t, b.Stale(), "setting an unchanged value must not invalidate")
}

func TestBuilderEvalDateChangeInvalidates(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.UpdateRates(upwardRates(), "2026-01-28"))
	_, err := b.Curve()
	require.NoError(t, err)

	require.NoError(t, b.UpdateRates(map[string]float64{}, "2026-01-29"))
	assert.True(t, b.Stale())
	_, err = b.Curve()
	require.NoError(t, err)
}

func TestZeroRateConsistentWithDiscount(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.UpdateRates(flatRates(0.0400), "2026-01-28"))

	for _, years := range []float64{1.0, 5.0, 10.0} {
		df := b.DiscountFactor(years)
		z := b.ZeroRate(years)

		// Annual compounding: df == (1+z)^-t.
		implied := 1.0
		for i := 0; i < int(years); i++ {
			implied /= 1 + z
		}
		assert.InDelta(t, df, implied, 1e-9)

		assert.Greater(t, z, 0.030, "flat 4%% curve should imply a zero near 4%% at %.0fy", years)
		assert.Less(t, z, 0.050)
	}
}

func TestFlatForwardExtrapolation(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.UpdateRates(flatRates(0.0400), "2026-01-28"))

	df30 := b.DiscountFactor(30)
	df40 := b.DiscountFactor(40)
	assert.Less(t, df40, df30, "extrapolated DF must keep decaying")
	assert.Greater(t, df40, 0.0)
}

func TestEmptyTickBuildsDegenerateCurve(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.UpdateRates(map[string]float64{}, "2026-01-28"))

	c, err := b.Curve()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.DFYears(10), 1e-9, "all-zero quotes bootstrap to unit discount factors")
}
