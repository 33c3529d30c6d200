package curve

import (
	"fmt"
	"math"
	"time"

	"github.com/ratesdesk/riskpipe/internal/dates"
)

// Curve is an immutable bootstrapped discount-factor function over time,
// piecewise log-cubic on discount factors between pillars and flat-forward
// extrapolated beyond the longest one. Discount factors are 1.0 at or before
// settlement.
type Curve struct {
	settlement time.Time
	times      []float64 // pillar year fractions, times[0] == 0
	logDF      []float64 // log discount factors at pillars, logDF[0] == 0
	m          []float64 // natural-spline second derivatives of logDF
	lastSlope  float64   // d(logDF)/dt at the final pillar, for extrapolation
}

func newCurve(settlement time.Time, pillars []pillar) (*Curve, error) {
	if len(pillars) < 2 {
		return nil, fmt.Errorf("curve needs at least 2 pillars, have %d", len(pillars))
	}
	c := &Curve{
		settlement: settlement,
		times:      make([]float64, len(pillars)),
		logDF:      make([]float64, len(pillars)),
	}
	for i, p := range pillars {
		c.times[i] = dates.YearFraction(settlement, p.date, curveDayCount)
		if p.df <= 0 {
			return nil, fmt.Errorf("non-positive discount factor at %s", dates.FormatDate(p.date))
		}
		c.logDF[i] = math.Log(p.df)
	}
	c.m = naturalSpline(c.times, c.logDF)

	n := len(c.times) - 1
	h := c.times[n] - c.times[n-1]
	c.lastSlope = (c.logDF[n]-c.logDF[n-1])/h + h*(c.m[n-1]+2*c.m[n])/6
	return c, nil
}

// Settlement returns the curve's settlement date.
func (c *Curve) Settlement() time.Time {
	return c.settlement
}

// DF returns the discount factor for a date.
func (c *Curve) DF(t time.Time) float64 {
	return c.DFYears(dates.YearFraction(c.settlement, t, curveDayCount))
}

// DFYears returns the discount factor for a time measured in curve years.
func (c *Curve) DFYears(t float64) float64 {
	if t <= 0 {
		return 1.0
	}
	n := len(c.times) - 1
	if t >= c.times[n] {
		return math.Exp(c.logDF[n] + c.lastSlope*(t-c.times[n]))
	}
	return math.Exp(c.splineAt(t))
}

// ZeroRateYears returns the annually compounded zero rate at t years.
func (c *Curve) ZeroRateYears(t float64) float64 {
	if t <= 0 {
		return 0.0
	}
	df := c.DFYears(t)
	return math.Pow(1.0/df, 1.0/t) - 1.0
}

func (c *Curve) splineAt(t float64) float64 {
	i := segmentIndex(c.times, t)
	h := c.times[i+1] - c.times[i]
	a := (c.times[i+1] - t) / h
	b := (t - c.times[i]) / h
	return a*c.logDF[i] + b*c.logDF[i+1] +
		((a*a*a-a)*c.m[i]+(b*b*b-b)*c.m[i+1])*h*h/6
}

func segmentIndex(xs []float64, t float64) int {
	lo, hi := 0, len(xs)-2
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if xs[mid] <= t {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// naturalSpline solves for the second derivatives of a natural cubic spline
// through (xs, ys) via the standard tridiagonal sweep.
func naturalSpline(xs, ys []float64) []float64 {
	n := len(xs)
	m := make([]float64, n)
	if n < 3 {
		return m
	}

	sub := make([]float64, n)
	diag := make([]float64, n)
	sup := make([]float64, n)
	rhs := make([]float64, n)

	for i := 1; i < n-1; i++ {
		h0 := xs[i] - xs[i-1]
		h1 := xs[i+1] - xs[i]
		sub[i] = h0
		diag[i] = 2 * (h0 + h1)
		sup[i] = h1
		rhs[i] = 6 * ((ys[i+1]-ys[i])/h1 - (ys[i]-ys[i-1])/h0)
	}

	// Forward elimination, natural boundary: m[0] = m[n-1] = 0.
	for i := 2; i < n-1; i++ {
		factor := sub[i] / diag[i-1]
		diag[i] -= factor * sup[i-1]
		rhs[i] -= factor * rhs[i-1]
	}
	for i := n - 2; i >= 1; i-- {
		m[i] = (rhs[i] - sup[i]*m[i+1]) / diag[i]
	}
	return m
}
