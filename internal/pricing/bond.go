package pricing

import (
	"github.com/ratesdesk/riskpipe/internal/curve"
	"github.com/ratesdesk/riskpipe/internal/dates"
	"github.com/ratesdesk/riskpipe/internal/instrument"
)

// PriceBond values a fixed-rate bond by discounting its remaining coupon and
// principal cashflows on the curve. The payment schedule rolls backward from
// maturity at the bond's frequency, dates unadjusted; cashflows paying at or
// before curve settlement are outside the valuation.
func PriceBond(c *curve.Curve, b instrument.Bond) (float64, error) {
	periods, err := backwardUnadjusted(b.IssueDate, b.MaturityDate, b.PaymentFrequency.Months())
	if err != nil {
		return 0, pricingErr(b.ID, "bond schedule: %w", err)
	}

	settlement := c.Settlement()
	npv := 0.0
	for _, p := range periods {
		if !p.Pay.After(settlement) {
			continue
		}
		accrual := dates.YearFraction(p.Start, p.End, b.DayCount)
		npv += b.Notional * b.CouponRate * accrual * c.DF(p.Pay)
	}
	if b.MaturityDate.After(settlement) {
		npv += b.Notional * c.DF(b.MaturityDate)
	}
	return npv, nil
}
