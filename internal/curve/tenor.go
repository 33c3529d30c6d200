package curve

// Tenor is a symbolic term on the yield curve.
type Tenor string

const (
	Tenor1M  Tenor = "1M"
	Tenor3M  Tenor = "3M"
	Tenor6M  Tenor = "6M"
	Tenor1Y  Tenor = "1Y"
	Tenor2Y  Tenor = "2Y"
	Tenor3Y  Tenor = "3Y"
	Tenor5Y  Tenor = "5Y"
	Tenor7Y  Tenor = "7Y"
	Tenor10Y Tenor = "10Y"
	Tenor20Y Tenor = "20Y"
	Tenor30Y Tenor = "30Y"
)

// Tenors lists every recognized tenor in maturity order.
var Tenors = []Tenor{
	Tenor1M, Tenor3M, Tenor6M, Tenor1Y,
	Tenor2Y, Tenor3Y, Tenor5Y, Tenor7Y, Tenor10Y, Tenor20Y, Tenor30Y,
}

// DepositTenors are the short end of the curve, calibrated with deposit-rate
// helpers. OISTenors are the long end, calibrated with OIS helpers.
var (
	DepositTenors = []Tenor{Tenor1M, Tenor3M, Tenor6M, Tenor1Y}
	OISTenors     = []Tenor{Tenor2Y, Tenor3Y, Tenor5Y, Tenor7Y, Tenor10Y, Tenor20Y, Tenor30Y}
)

var tenorMonths = map[Tenor]int{
	Tenor1M: 1, Tenor3M: 3, Tenor6M: 6, Tenor1Y: 12,
	Tenor2Y: 24, Tenor3Y: 36, Tenor5Y: 60, Tenor7Y: 84,
	Tenor10Y: 120, Tenor20Y: 240, Tenor30Y: 360,
}

// Months returns the tenor's length in months, or 0 for an unknown tenor.
func (t Tenor) Months() int {
	return tenorMonths[t]
}

// Recognized reports whether t is part of the supported tenor set.
func Recognized(t Tenor) bool {
	_, ok := tenorMonths[t]
	return ok
}
