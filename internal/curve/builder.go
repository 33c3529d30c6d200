package curve

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ratesdesk/riskpipe/internal/dates"
)

// ErrUnbuilt is returned when a curve is requested before the first tick has
// established an evaluation date.
var ErrUnbuilt = errors.New("yield curve not built")

const settlementLagDays = 2

// Builder owns the mutable quote vector and produces a consistent
// discount-factor curve on demand. Quote mutation and evaluation-date changes
// mark the curve stale; the next Curve call recalibrates. This mirrors the
// reactive quote/handle pattern of the upstream pricing library with a
// rebuild-on-first-access strategy.
//
// Builder is not safe for concurrent use; the pipeline drives it from a
// single goroutine.
type Builder struct {
	quotes   map[Tenor]*Quote
	evalDate time.Time
	cal      dates.CalendarID
	built    *Curve
	stale    bool
}

// NewBuilder creates a builder with every recognized tenor quoted at 0.0.
func NewBuilder() *Builder {
	b := &Builder{
		quotes: make(map[Tenor]*Quote, len(Tenors)),
		cal:    dates.USGovernmentBond,
	}
	for _, t := range Tenors {
		b.quotes[t] = &Quote{owner: b}
	}
	return b
}

func (b *Builder) invalidate() {
	b.stale = true
}

// UpdateRates sets the quote for each recognized tenor present in rates and
// moves the evaluation date to curveDate. Unknown tenors are ignored. The
// curve is (re)calibrated lazily on the next Curve call.
func (b *Builder) UpdateRates(rates map[string]float64, curveDate string) error {
	applied := 0
	for tenor, rate := range rates {
		q, ok := b.quotes[Tenor(tenor)]
		if !ok {
			continue
		}
		q.Set(rate)
		applied++
	}

	eval, err := dates.ParseDate(curveDate)
	if err != nil {
		return err
	}
	if !eval.Equal(b.evalDate) {
		b.evalDate = eval
		b.stale = true
	}

	log.Debug().Str("curve_date", curveDate).Int("tenors", applied).Msg("rates updated")
	return nil
}

// Stale reports whether a quote or evaluation-date change is pending
// recalibration.
func (b *Builder) Stale() bool {
	return b.stale
}

// Quote returns the mutable quote for a tenor, or nil for an unknown tenor.
func (b *Builder) Quote(t Tenor) *Quote {
	return b.quotes[t]
}

// EvalDate returns the current evaluation date (zero before the first update).
func (b *Builder) EvalDate() time.Time {
	return b.evalDate
}

// Curve returns the active discount curve, bootstrapping it if quotes or the
// evaluation date changed since the last call. It fails with ErrUnbuilt
// before the first UpdateRates.
func (b *Builder) Curve() (*Curve, error) {
	if b.evalDate.IsZero() {
		return nil, ErrUnbuilt
	}
	if b.built == nil || b.stale {
		settlement := dates.AddBusinessDays(b.cal, b.evalDate, settlementLagDays)
		c, err := bootstrap(settlement, b.cal, b.quoteValues())
		if err != nil {
			return nil, err
		}
		b.built = c
		b.stale = false
	}
	return b.built, nil
}

func (b *Builder) quoteValues() map[Tenor]float64 {
	vals := make(map[Tenor]float64, len(b.quotes))
	for t, q := range b.quotes {
		vals[t] = q.Value()
	}
	return vals
}

// DiscountFactor is a convenience readout; it returns 1.0 when the curve is
// unbuilt.
func (b *Builder) DiscountFactor(years float64) float64 {
	c, err := b.Curve()
	if err != nil {
		return 1.0
	}
	return c.DFYears(years)
}

// ZeroRate is a convenience readout; it returns 0.0 when the curve is unbuilt.
func (b *Builder) ZeroRate(years float64) float64 {
	c, err := b.Curve()
	if err != nil {
		return 0.0
	}
	return c.ZeroRateYears(years)
}
