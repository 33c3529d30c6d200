package instrument

import (
	"encoding/json"
	"fmt"

	"github.com/ratesdesk/riskpipe/internal/dates"
)

// payload mirrors one item of the reference service's instrument listing.
// Bond and swap fields share the envelope; the discriminator picks the shape.
type payload struct {
	ID             string  `json:"id"`
	InstrumentType Kind    `json:"instrument_type"`
	Notional       float64 `json:"notional"`
	Currency       string  `json:"currency"`

	// Bond fields
	ISIN              string `json:"isin"`
	CouponRate        Number `json:"coupon_rate"`
	IssueDate         string `json:"issue_date"`
	DayCountConvention string `json:"day_count_convention"`

	// Swap fields
	FixedRate     Number `json:"fixed_rate"`
	Tenor         string `json:"tenor"`
	TradeDate     string `json:"trade_date"`
	EffectiveDate string `json:"effective_date"`
	PayReceive    string `json:"pay_receive"`
	FloatIndex    string `json:"float_index"`

	// Shared
	MaturityDate     string `json:"maturity_date"`
	PaymentFrequency string `json:"payment_frequency"`
}

// Number accepts JSON numbers delivered either as numerics or as strings,
// which the reference service does for decimal columns.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	if len(b) > 1 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		b = []byte(s)
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Parse validates one reference-data item and materializes the typed
// instrument. Records failing validation return an error; the loader drops
// them with a warning rather than aborting.
func Parse(raw json.RawMessage) (Instrument, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode instrument: %w", err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("instrument missing id")
	}
	if p.Notional <= 0 {
		return nil, fmt.Errorf("instrument %s: non-positive notional", p.ID)
	}

	switch p.InstrumentType {
	case KindBond:
		return parseBond(p)
	case KindSwap:
		return parseSwap(p)
	default:
		return nil, fmt.Errorf("instrument %s: unknown type %q", p.ID, p.InstrumentType)
	}
}

func parseBond(p payload) (Instrument, error) {
	maturity, err := dates.ParseDate(p.MaturityDate)
	if err != nil {
		return nil, fmt.Errorf("bond %s: maturity: %w", p.ID, err)
	}

	// Issue date defaults to maturity minus five years.
	issue := maturity.AddDate(-5, 0, 0)
	if p.IssueDate != "" {
		if issue, err = dates.ParseDate(p.IssueDate); err != nil {
			return nil, fmt.Errorf("bond %s: issue: %w", p.ID, err)
		}
	}

	freq := SemiAnnual
	if p.PaymentFrequency != "" {
		freq = Frequency(p.PaymentFrequency)
	}

	return Bond{
		ID:               p.ID,
		ISIN:             p.ISIN,
		Notional:         p.Notional,
		Currency:         p.Currency,
		CouponRate:       float64(p.CouponRate),
		MaturityDate:     maturity,
		IssueDate:        issue,
		PaymentFrequency: freq,
		DayCount:         ParseDayCount(p.DayCountConvention),
	}, nil
}

func parseSwap(p payload) (Instrument, error) {
	trade, err := dates.ParseDate(p.TradeDate)
	if err != nil {
		return nil, fmt.Errorf("swap %s: trade date: %w", p.ID, err)
	}
	maturity, err := dates.ParseDate(p.MaturityDate)
	if err != nil {
		return nil, fmt.Errorf("swap %s: maturity: %w", p.ID, err)
	}

	// Effective date defaults to trade + 2 business days.
	effective := dates.AddBusinessDays(dates.USGovernmentBond, trade, 2)
	if p.EffectiveDate != "" {
		if effective, err = dates.ParseDate(p.EffectiveDate); err != nil {
			return nil, fmt.Errorf("swap %s: effective: %w", p.ID, err)
		}
	}

	side := Side(p.PayReceive)
	switch side {
	case PayFixed, ReceiveFixed:
	case "PAY_FIXED":
		side = PayFixed
	case "RECEIVE_FIXED":
		side = ReceiveFixed
	default:
		return nil, fmt.Errorf("swap %s: unknown side %q", p.ID, p.PayReceive)
	}

	index := p.FloatIndex
	if index == "" {
		index = "SOFR"
	}
	freq := Quarterly
	if p.PaymentFrequency != "" {
		freq = Frequency(p.PaymentFrequency)
	}

	return Swap{
		ID:               p.ID,
		Notional:         p.Notional,
		Currency:         p.Currency,
		FixedRate:        float64(p.FixedRate),
		Tenor:            p.Tenor,
		TradeDate:        trade,
		MaturityDate:     maturity,
		EffectiveDate:    effective,
		Side:             side,
		FloatIndex:       index,
		PaymentFrequency: freq,
	}, nil
}

// ParseDayCount maps reference-data day-count strings (underscore or slash
// form) to the convention enum, defaulting to ACT/ACT.
func ParseDayCount(s string) dates.DayCount {
	switch s {
	case "ACT_360", "ACT/360":
		return dates.Act360
	case "ACT_365", "ACT/365":
		return dates.Act365
	case "30_360", "30/360":
		return dates.Dc30360
	default:
		return dates.ActAct
	}
}
