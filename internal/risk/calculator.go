package risk

import (
	"fmt"

	"github.com/ratesdesk/riskpipe/internal/curve"
	"github.com/ratesdesk/riskpipe/internal/instrument"
	"github.com/ratesdesk/riskpipe/internal/pricing"
)

// DefaultBumpSize is one basis point in decimal.
const DefaultBumpSize = 0.0001

// KRDTenors are the key-rate pillars reported per instrument.
var KRDTenors = []curve.Tenor{curve.Tenor2Y, curve.Tenor5Y, curve.Tenor10Y, curve.Tenor30Y}

// Metrics holds the risk numbers for one instrument under the current curve.
// DV01 and KRD values are currency units per 1 bp; a long fixed-income
// position has positive DV01.
type Metrics struct {
	InstrumentID string
	NPV          float64
	DV01         float64
	KRD          map[curve.Tenor]float64
}

// Calculator computes metrics by bump-and-reprice against the builder's
// shared quote vector. Every bump path restores the quotes on exit, pricing
// errors included, so the vector is bit-for-bit identical after Calculate.
// The calculator borrows the quotes from the builder and must only run on
// the single pipeline goroutine.
type Calculator struct {
	builder *curve.Builder
	bump    float64
}

// NewCalculator creates a calculator; bump <= 0 selects the 1 bp default.
func NewCalculator(b *curve.Builder, bump float64) *Calculator {
	if bump <= 0 {
		bump = DefaultBumpSize
	}
	return &Calculator{builder: b, bump: bump}
}

// BumpSize returns the configured bump in decimal.
func (c *Calculator) BumpSize() float64 {
	return c.bump
}

// Calculate prices the instrument and derives DV01 and key-rate sensitivities
// by central difference. It fails with curve.ErrUnbuilt before the first tick
// and with *pricing.PricingError on instrument-level failures.
func (c *Calculator) Calculate(inst instrument.Instrument) (Metrics, error) {
	npv, err := c.price(inst)
	if err != nil {
		return Metrics{}, err
	}

	dv01, err := c.parallelDV01(inst)
	if err != nil {
		return Metrics{}, err
	}

	krd := make(map[curve.Tenor]float64, len(KRDTenors))
	for _, tenor := range KRDTenors {
		v, err := c.keyRate(inst, tenor)
		if err != nil {
			return Metrics{}, err
		}
		krd[tenor] = v
	}

	return Metrics{
		InstrumentID: inst.InstrumentID(),
		NPV:          npv,
		DV01:         dv01,
		KRD:          krd,
	}, nil
}

func (c *Calculator) price(inst instrument.Instrument) (float64, error) {
	cv, err := c.builder.Curve()
	if err != nil {
		return 0, err
	}
	switch v := inst.(type) {
	case instrument.Bond:
		return pricing.PriceBond(cv, v)
	case instrument.Swap:
		return pricing.PriceSwap(cv, v)
	default:
		return 0, fmt.Errorf("unsupported instrument kind %T", inst)
	}
}

// parallelDV01 shifts every recognized tenor up and down by the bump and
// returns (npvDown - npvUp) / 2.
func (c *Calculator) parallelDV01(inst instrument.Instrument) (dv01 float64, err error) {
	original := make(map[curve.Tenor]float64, len(curve.Tenors))
	for _, tenor := range curve.Tenors {
		original[tenor] = c.builder.Quote(tenor).Value()
	}
	defer func() {
		for tenor, v := range original {
			c.builder.Quote(tenor).Set(v)
		}
	}()

	for tenor, v := range original {
		c.builder.Quote(tenor).Set(v + c.bump)
	}
	npvUp, err := c.price(inst)
	if err != nil {
		return 0, err
	}

	for tenor, v := range original {
		c.builder.Quote(tenor).Set(v - c.bump)
	}
	npvDown, err := c.price(inst)
	if err != nil {
		return 0, err
	}

	return (npvDown - npvUp) / 2, nil
}

// keyRate shifts a single tenor up and down by the bump. Tenors missing from
// the curve contribute zero.
func (c *Calculator) keyRate(inst instrument.Instrument, tenor curve.Tenor) (krd float64, err error) {
	quote := c.builder.Quote(tenor)
	if quote == nil {
		return 0, nil
	}
	original := quote.Value()
	defer quote.Set(original)

	quote.Set(original + c.bump)
	npvUp, err := c.price(inst)
	if err != nil {
		return 0, err
	}

	quote.Set(original - c.bump)
	npvDown, err := c.price(inst)
	if err != nil {
		return 0, err
	}

	return (npvDown - npvUp) / 2, nil
}
