package feed

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"
)

// Scenario configures the synthetic tick simulator: per-tenor starting rates
// with a mean-reverting random walk around optional long-run levels.
type Scenario struct {
	CurveType     string             `yaml:"curve_type"`
	IntervalMS    int                `yaml:"interval_ms"`
	MeanReversion float64            `yaml:"mean_reversion"`
	Volatility    float64            `yaml:"volatility"`
	Seed          uint64             `yaml:"seed"`
	Rates         map[string]float64 `yaml:"rates"`
	LongRun       map[string]float64 `yaml:"long_run"`
}

// LoadScenario reads and validates a yaml scenario file.
func LoadScenario(path string) (Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario: %w", err)
	}
	var s Scenario
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	if len(s.Rates) == 0 {
		return Scenario{}, fmt.Errorf("scenario has no starting rates")
	}
	if s.CurveType == "" {
		s.CurveType = "USD_SOFR"
	}
	if s.IntervalMS <= 0 {
		s.IntervalMS = 1000
	}
	if s.Volatility <= 0 {
		s.Volatility = 0.0005
	}
	if s.MeanReversion < 0 {
		return Scenario{}, fmt.Errorf("mean_reversion must be non-negative")
	}
	return s, nil
}

// Simulator emits synthetic curve ticks: each tenor follows an independent
// Ornstein-Uhlenbeck step toward its long-run level, floored at zero.
type Simulator struct {
	scenario Scenario
	rates    map[string]float64
	noise    distuv.Normal
	log      zerolog.Logger
}

func NewSimulator(s Scenario, log zerolog.Logger) *Simulator {
	rates := make(map[string]float64, len(s.Rates))
	for tenor, r := range s.Rates {
		rates[tenor] = r
	}
	seed := s.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulator{
		scenario: s,
		rates:    rates,
		noise:    distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed)},
		log:      log,
	}
}

// Run emits one tick per interval until the context is cancelled.
func (s *Simulator) Run(ctx context.Context, emit func(Tick) error) error {
	interval := time.Duration(s.scenario.IntervalMS) * time.Millisecond
	s.log.Info().
		Str("curve_type", s.scenario.CurveType).
		Dur("interval", interval).
		Int("tenors", len(s.rates)).
		Msg("starting synthetic feed")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.step(interval)
			if err := emit(s.tickAt(now)); err != nil {
				return err
			}
		}
	}
}

// step advances every tenor by dt years of the mean-reverting walk.
func (s *Simulator) step(interval time.Duration) {
	dt := interval.Seconds() / (365.0 * 24 * 3600)
	sqrtDt := math.Sqrt(dt)
	for tenor, r := range s.rates {
		theta := r
		if lr, ok := s.scenario.LongRun[tenor]; ok {
			theta = lr
		}
		drift := s.scenario.MeanReversion * (theta - r) * dt
		shock := s.scenario.Volatility * sqrtDt * s.noise.Rand()
		next := r + drift + shock
		if next < 0 {
			next = 0
		}
		s.rates[tenor] = next
	}
}

func (s *Simulator) tickAt(now time.Time) Tick {
	rates := make(map[string]float64, len(s.rates))
	for tenor, r := range s.rates {
		rates[tenor] = r
	}
	return Tick{
		Timestamp: now.UnixMilli(),
		CurveDate: now.Format("2006-01-02"),
		CurveType: s.scenario.CurveType,
		Rates:     rates,
	}
}
