package pricing

import "fmt"

// PricingError wraps a per-instrument pricing failure. The coordinator logs
// it and skips the instrument for the current tick.
type PricingError struct {
	InstrumentID string
	Err          error
}

func (e *PricingError) Error() string {
	return fmt.Sprintf("pricing %s: %v", e.InstrumentID, e.Err)
}

func (e *PricingError) Unwrap() error {
	return e.Err
}

func pricingErr(id string, format string, args ...any) *PricingError {
	return &PricingError{InstrumentID: id, Err: fmt.Errorf(format, args...)}
}
