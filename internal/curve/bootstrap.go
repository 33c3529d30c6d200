package curve

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ratesdesk/riskpipe/internal/dates"
)

// Bootstrap conventions: deposits accrue ACT/360 with Modified Following and
// the end-of-month rule; OIS fixed legs pay annual ACT/360 coupons; the curve
// time axis is ACT/365F with extrapolation past the longest pillar.
const (
	curveDayCount = dates.Act365F
	moneyMarketDC = dates.Act360

	newtonTolerance = 1e-12
	newtonMaxIter   = 50
)

type pillar struct {
	date time.Time
	df   float64
}

// bootstrap solves pillar discount factors from the quote vector, short end
// first via deposit helpers, long end via sequential OIS helpers, then fits
// the log-cubic interpolant through the solved pillars.
func bootstrap(settlement time.Time, cal dates.CalendarID, quotes map[Tenor]float64) (*Curve, error) {
	solved := []pillar{{date: settlement, df: 1.0}}

	for _, t := range DepositTenors {
		maturity := depositMaturity(settlement, cal, t.Months())
		alpha := dates.YearFraction(settlement, maturity, moneyMarketDC)
		df := 1.0 / (1.0 + quotes[t]*alpha)
		solved = append(solved, pillar{date: maturity, df: df})
	}

	for _, t := range OISTenors {
		maturity := dates.Adjust(cal, settlement.AddDate(0, t.Months(), 0))
		coupons := oisCoupons(settlement, cal, settlement.AddDate(0, t.Months(), 0))
		df, err := solveOISDiscountFactor(settlement, solved, maturity, coupons, quotes[t])
		if err != nil {
			return nil, fmt.Errorf("bootstrap %s: %w", t, err)
		}
		solved = append(solved, pillar{date: maturity, df: df})
	}

	sort.Slice(solved, func(i, j int) bool { return solved[i].date.Before(solved[j].date) })
	return newCurve(settlement, solved)
}

// depositMaturity advances settlement by the deposit period, Modified
// Following with the end-of-month rule.
func depositMaturity(settlement time.Time, cal dates.CalendarID, months int) time.Time {
	target := dates.AddMonth(settlement, months)
	if dates.IsEndOfMonth(cal, settlement) {
		return dates.LastBusinessDayOfMonth(cal, target)
	}
	return dates.Adjust(cal, target)
}

type oisCoupon struct {
	payDate time.Time
	accrual float64
}

// oisCoupons generates the annual fixed-leg coupons of an OIS from settlement
// to the unadjusted maturity, rolling backward so intermediate dates align
// with maturity.
func oisCoupons(settlement time.Time, cal dates.CalendarID, maturityUnadj time.Time) []oisCoupon {
	var unadjusted []time.Time
	current := maturityUnadj
	for current.After(settlement) {
		unadjusted = append([]time.Time{current}, unadjusted...)
		current = dates.AddMonth(current, -12)
	}
	unadjusted = append([]time.Time{settlement}, unadjusted...)

	coupons := make([]oisCoupon, 0, len(unadjusted)-1)
	for i := 0; i < len(unadjusted)-1; i++ {
		start := dates.Adjust(cal, unadjusted[i])
		end := dates.Adjust(cal, unadjusted[i+1])
		coupons = append(coupons, oisCoupon{
			payDate: end,
			accrual: dates.YearFraction(start, end, moneyMarketDC),
		})
	}
	return coupons
}

// solveOISDiscountFactor finds DF(maturity) such that the par OIS equation
// 1 = parRate * sum(alpha_i * DF(p_i)) + DF(maturity) holds, via
// Newton-Raphson. Coupons paying at or before the previous pillar use solved
// discount factors; later coupons are log-linearly interpolated against the
// unknown, with the interpolation derivative feeding the Newton step.
func solveOISDiscountFactor(settlement time.Time, solved []pillar, maturity time.Time, coupons []oisCoupon, parRate float64) (float64, error) {
	prev := solved[len(solved)-1]
	guess := prev.df

	for iter := 0; iter < newtonMaxIter; iter++ {
		pvFixed := 0.0
		derivative := 0.0

		for _, cpn := range coupons {
			var d, dPrime float64
			if !cpn.payDate.After(prev.date) {
				d = knownDF(settlement, solved, cpn.payDate)
			} else {
				d, dPrime = unknownDF(settlement, cpn.payDate, prev, maturity, guess)
			}
			pvFixed += d * cpn.accrual * parRate
			derivative += dPrime * cpn.accrual * parRate
		}

		fVal := pvFixed + guess - 1.0
		fPrime := derivative + 1.0

		if math.Abs(fVal) < newtonTolerance {
			return guess, nil
		}
		if math.Abs(fPrime) < 1e-15 {
			break
		}
		guess -= fVal / fPrime
		if math.IsNaN(guess) || guess <= 1e-9 {
			guess = 1e-9
		}
	}
	if math.IsNaN(guess) {
		return 0, fmt.Errorf("newton solve diverged at %s", dates.FormatDate(maturity))
	}
	return guess, nil
}

// knownDF interpolates log-linearly among already solved pillars.
func knownDF(settlement time.Time, solved []pillar, t time.Time) float64 {
	idx := sort.Search(len(solved), func(i int) bool { return !solved[i].date.Before(t) })
	if idx < len(solved) && solved[idx].date.Equal(t) {
		return solved[idx].df
	}
	lo, hi := bracketIndex(len(solved), idx)
	p1, p2 := solved[lo], solved[hi]

	t1 := dates.YearFraction(settlement, p1.date, curveDayCount)
	t2 := dates.YearFraction(settlement, p2.date, curveDayCount)
	tt := dates.YearFraction(settlement, t, curveDayCount)
	if t2 == t1 {
		return p1.df
	}
	fwd := math.Log(p1.df/p2.df) / (t2 - t1)
	return p1.df * math.Exp(-fwd*(tt-t1))
}

func bracketIndex(n, idx int) (int, int) {
	switch {
	case idx <= 0:
		return 0, 1
	case idx >= n:
		return n - 2, n - 1
	default:
		return idx - 1, idx
	}
}

// unknownDF interpolates DF at t where the endpoint DF(maturity) = x is the
// Newton unknown. Returns DF(t) and d(DF(t))/dx.
func unknownDF(settlement time.Time, t time.Time, prev pillar, maturity time.Time, x float64) (float64, float64) {
	if t.Equal(maturity) {
		return x, 1.0
	}
	t1 := dates.YearFraction(settlement, prev.date, curveDayCount)
	t2 := dates.YearFraction(settlement, maturity, curveDayCount)
	tt := dates.YearFraction(settlement, t, curveDayCount)
	if t2 == t1 {
		return prev.df, 0
	}
	ratio := (tt - t1) / (t2 - t1)
	if x <= 1e-9 {
		x = 1e-9
	}
	dfT := math.Pow(prev.df, 1.0-ratio) * math.Pow(x, ratio)
	return dfT, ratio * dfT / x
}
