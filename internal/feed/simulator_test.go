package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, `
curve_type: US_TREASURY
interval_ms: 250
mean_reversion: 0.5
volatility: 0.001
seed: 42
rates:
  2Y: 0.042
  10Y: 0.0435
long_run:
  2Y: 0.04
`)
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "US_TREASURY", s.CurveType)
	assert.Equal(t, 250, s.IntervalMS)
	assert.Equal(t, 0.5, s.MeanReversion)
	assert.Equal(t, uint64(42), s.Seed)
	assert.Equal(t, 0.042, s.Rates["2Y"])
	assert.Equal(t, 0.04, s.LongRun["2Y"])
}

func TestLoadScenarioDefaults(t *testing.T) {
	path := writeScenario(t, "rates:\n  5Y: 0.041\n")
	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "USD_SOFR", s.CurveType)
	assert.Equal(t, 1000, s.IntervalMS)
	assert.Equal(t, 0.0005, s.Volatility)
}

func TestLoadScenarioRejectsBadInput(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "curve_type: USD_SOFR\n"))
	assert.ErrorContains(t, err, "no starting rates")

	_, err = LoadScenario(writeScenario(t, "rates:\n  5Y: 0.041\nmean_reversion: -1\n"))
	assert.ErrorContains(t, err, "mean_reversion")

	_, err = LoadScenario(writeScenario(t, "rates: [not a map"))
	assert.Error(t, err)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSimulatorDeterministicWithSeed(t *testing.T) {
	scenario := Scenario{
		CurveType:  "USD_SOFR",
		IntervalMS: 1000,
		Volatility: 0.01,
		Seed:       7,
		Rates:      map[string]float64{"2Y": 0.042, "10Y": 0.0435},
	}
	a := NewSimulator(scenario, zerolog.Nop())
	b := NewSimulator(scenario, zerolog.Nop())

	for i := 0; i < 10; i++ {
		a.step(time.Second)
		b.step(time.Second)
	}
	assert.Equal(t, a.rates, b.rates)
	assert.NotEqual(t, scenario.Rates, a.rates, "the walk moves the rates")
}

func TestSimulatorMeanReversionPullsTowardLongRun(t *testing.T) {
	scenario := Scenario{
		IntervalMS:    1000,
		MeanReversion: 0.5,
		Volatility:    0, // isolates the drift term
		Seed:          1,
		Rates:         map[string]float64{"2Y": 0.02},
		LongRun:       map[string]float64{"2Y": 0.05},
	}
	sim := NewSimulator(scenario, zerolog.Nop())

	sim.step(365 * 24 * time.Hour)
	assert.InDelta(t, 0.035, sim.rates["2Y"], 1e-12, "one year at kappa 0.5 closes half the gap")
}

func TestSimulatorRatesFlooredAtZero(t *testing.T) {
	scenario := Scenario{
		IntervalMS: 1000,
		Volatility: 100, // shocks far larger than the rate level
		Seed:       3,
		Rates:      map[string]float64{"2Y": 0.0001},
	}
	sim := NewSimulator(scenario, zerolog.Nop())

	for i := 0; i < 200; i++ {
		sim.step(time.Second)
		assert.GreaterOrEqual(t, sim.rates["2Y"], 0.0)
	}
}

func TestSimulatorRunEmitsTicks(t *testing.T) {
	scenario := Scenario{
		CurveType:  "USD_SOFR",
		IntervalMS: 5,
		Volatility: 0.001,
		Seed:       11,
		Rates:      map[string]float64{"2Y": 0.042},
	}
	sim := NewSimulator(scenario, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ticks []Tick
	err := sim.Run(ctx, func(tk Tick) error {
		ticks = append(ticks, tk)
		if len(ticks) == 3 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	require.GreaterOrEqual(t, len(ticks), 3)
	assert.Equal(t, "USD_SOFR", ticks[0].CurveType)
	assert.NotZero(t, ticks[0].Timestamp)
	assert.Contains(t, ticks[0].Rates, "2Y")

	// Each tick carries its own copy of the rate map.
	ticks[0].Rates["2Y"] = -1
	assert.NotEqual(t, -1.0, ticks[1].Rates["2Y"])
}
