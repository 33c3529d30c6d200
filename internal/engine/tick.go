package engine

import (
	"encoding/json"
	"fmt"
)

// CurveTick is one yield-curve update from the market data feed.
type CurveTick struct {
	Timestamp int64              `json:"timestamp"`
	CurveDate string             `json:"curve_date"`
	CurveType string             `json:"curve_type"`
	Rates     map[string]float64 `json:"rates"`
}

// decodeTick parses a feed payload. Rates may be empty; a missing curve date
// is rejected so the builder never sees an undated tick.
func decodeTick(payload []byte) (CurveTick, error) {
	var tick CurveTick
	if err := json.Unmarshal(payload, &tick); err != nil {
		return CurveTick{}, fmt.Errorf("decode curve tick: %w", err)
	}
	if tick.CurveDate == "" {
		return CurveTick{}, fmt.Errorf("decode curve tick: missing curve_date")
	}
	if tick.Rates == nil {
		tick.Rates = map[string]float64{}
	}
	return tick, nil
}
