package pricing

import (
	"github.com/ratesdesk/riskpipe/internal/curve"
	"github.com/ratesdesk/riskpipe/internal/dates"
	"github.com/ratesdesk/riskpipe/internal/instrument"
)

// Leg day counts follow USD money-market convention: ACT/360 on both legs.
// The floating leg resets quarterly against the overnight compounded index
// projected off the same curve (single-curve framework).
const (
	swapLegDayCount = dates.Act360
	floatLegMonths  = 3
	swapScheduleCal = dates.USGovernmentBond
)

// PriceSwap values a vanilla fixed-vs-overnight-float swap on the curve. A
// PAY-fixed swap has negative NPV when the fixed rate exceeds market.
//
// Swaps whose floating leg began before curve settlement would need a
// historical index fixing the system does not carry; those fail rather than
// guess.
func PriceSwap(c *curve.Curve, s instrument.Swap) (float64, error) {
	settlement := c.Settlement()
	if s.EffectiveDate.Before(settlement) {
		return 0, pricingErr(s.ID, "effective %s predates curve settlement %s: historical fixing unavailable",
			dates.FormatDate(s.EffectiveDate), dates.FormatDate(settlement))
	}

	fixedPeriods, err := forwardAdjusted(s.EffectiveDate, s.MaturityDate, s.PaymentFrequency.Months(), swapScheduleCal)
	if err != nil {
		return 0, pricingErr(s.ID, "fixed leg schedule: %w", err)
	}
	floatPeriods, err := forwardAdjusted(s.EffectiveDate, s.MaturityDate, floatLegMonths, swapScheduleCal)
	if err != nil {
		return 0, pricingErr(s.ID, "float leg schedule: %w", err)
	}

	fixedPV := 0.0
	for _, p := range fixedPeriods {
		if !p.Pay.After(settlement) {
			continue
		}
		accrual := dates.YearFraction(p.Start, p.End, swapLegDayCount)
		fixedPV += s.Notional * s.FixedRate * accrual * c.DF(p.Pay)
	}

	floatPV := 0.0
	for _, p := range floatPeriods {
		if !p.Pay.After(settlement) {
			continue
		}
		accrual := dates.YearFraction(p.Start, p.End, swapLegDayCount)
		if accrual == 0 {
			continue
		}
		forward := (c.DF(p.Start)/c.DF(p.End) - 1.0) / accrual
		floatPV += s.Notional * forward * accrual * c.DF(p.Pay)
	}

	if s.Side == instrument.PayFixed {
		return floatPV - fixedPV, nil
	}
	return fixedPV - floatPV, nil
}
