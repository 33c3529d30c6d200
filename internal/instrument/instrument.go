package instrument

import (
	"time"

	"github.com/ratesdesk/riskpipe/internal/dates"
)

// Kind discriminates the instrument variants.
type Kind string

const (
	KindBond Kind = "BOND"
	KindSwap Kind = "SWAP"
)

// Frequency enumerates fixed-leg payment frequencies.
type Frequency string

const (
	Annual     Frequency = "ANNUAL"
	SemiAnnual Frequency = "SEMI_ANNUAL"
	Quarterly  Frequency = "QUARTERLY"
	Monthly    Frequency = "MONTHLY"
)

// Months returns the payment period in months. Unknown frequencies fall back
// to semi-annual, matching the reference-data defaults.
func (f Frequency) Months() int {
	switch f {
	case Annual:
		return 12
	case SemiAnnual:
		return 6
	case Quarterly:
		return 3
	case Monthly:
		return 1
	default:
		return 6
	}
}

// Side is the fixed-leg direction of a swap.
type Side string

const (
	PayFixed     Side = "PAY"
	ReceiveFixed Side = "RECEIVE"
)

// Instrument is the sum type over bonds and swaps. Values are immutable for
// the lifetime of the worker; pricers dispatch on the concrete type.
type Instrument interface {
	InstrumentID() string
	NotionalAmount() float64
	InstrumentKind() Kind
}

// Bond is a fixed-rate bond position.
type Bond struct {
	ID               string
	ISIN             string
	Notional         float64
	Currency         string
	CouponRate       float64
	MaturityDate     time.Time
	IssueDate        time.Time
	PaymentFrequency Frequency
	DayCount         dates.DayCount
}

func (b Bond) InstrumentID() string    { return b.ID }
func (b Bond) NotionalAmount() float64 { return b.Notional }
func (b Bond) InstrumentKind() Kind    { return KindBond }

// Swap is a fixed-vs-overnight-float interest rate swap. The floating leg
// references an overnight compounded index projected off the active discount
// curve; its payment frequency is quarterly by construction.
type Swap struct {
	ID               string
	Notional         float64
	Currency         string
	FixedRate        float64
	Tenor            string
	TradeDate        time.Time
	MaturityDate     time.Time
	EffectiveDate    time.Time
	Side             Side
	FloatIndex       string
	PaymentFrequency Frequency
}

func (s Swap) InstrumentID() string    { return s.ID }
func (s Swap) NotionalAmount() float64 { return s.Notional }
func (s Swap) InstrumentKind() Kind    { return KindSwap }
