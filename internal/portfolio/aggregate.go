package portfolio

import (
	"strconv"
	"strings"

	"github.com/ratesdesk/riskpipe/internal/curve"
	"github.com/ratesdesk/riskpipe/internal/risk"
)

// Aggregates holds portfolio-level totals across all live trade hashes.
type Aggregates struct {
	TotalNPV        float64
	TotalDV01       float64
	InstrumentCount int
	KRD             map[curve.Tenor]float64
}

// Aggregate sums per-trade risk hashes as read back from the store. Entries
// with unparseable numbers are skipped; missing key-rate fields count as
// zero, so trades written before a pillar existed do not break the sums.
func Aggregate(trades map[string]map[string]string) Aggregates {
	agg := Aggregates{
		InstrumentCount: len(trades),
		KRD:             make(map[curve.Tenor]float64, len(risk.KRDTenors)),
	}
	for _, tenor := range risk.KRDTenors {
		agg.KRD[tenor] = 0
	}

	for _, data := range trades {
		npv, err := strconv.ParseFloat(data["npv"], 64)
		if err != nil {
			continue
		}
		dv01, err := strconv.ParseFloat(data["dv01"], 64)
		if err != nil {
			continue
		}
		agg.TotalNPV += npv
		agg.TotalDV01 += dv01

		for _, tenor := range risk.KRDTenors {
			field := "krd_" + strings.ToLower(string(tenor))
			if raw, ok := data[field]; ok {
				if v, err := strconv.ParseFloat(raw, 64); err == nil {
					agg.KRD[tenor] += v
				}
			}
		}
	}
	return agg
}
