package pricing

import (
	"fmt"
	"time"

	"github.com/ratesdesk/riskpipe/internal/dates"
)

// Period is one accrual period of a leg. Pay equals End for every schedule
// generated here (no payment lag).
type Period struct {
	Start time.Time
	End   time.Time
	Pay   time.Time
}

// backwardUnadjusted rolls period dates backward from maturity so that
// intermediate dates align with maturity, leaving a front stub at issue when
// the span is not a whole number of periods. Dates are not business-day
// adjusted (bond convention: Unadjusted roll).
func backwardUnadjusted(issue, maturity time.Time, months int) ([]Period, error) {
	if !maturity.After(issue) {
		return nil, fmt.Errorf("maturity %s not after issue %s",
			dates.FormatDate(maturity), dates.FormatDate(issue))
	}
	var ds []time.Time
	current := maturity
	for current.After(issue) {
		ds = append([]time.Time{current}, ds...)
		current = dates.AddMonth(current, -months)
	}
	ds = append([]time.Time{issue}, ds...)

	periods := make([]Period, 0, len(ds)-1)
	for i := 0; i < len(ds)-1; i++ {
		periods = append(periods, Period{Start: ds[i], End: ds[i+1], Pay: ds[i+1]})
	}
	return periods, nil
}

// forwardAdjusted rolls period dates forward from effective, Modified
// Following on the given calendar, with a short back stub at maturity when
// the span is not a whole number of periods (swap convention).
func forwardAdjusted(effective, maturity time.Time, months int, cal dates.CalendarID) ([]Period, error) {
	if !maturity.After(effective) {
		return nil, fmt.Errorf("maturity %s not after effective %s",
			dates.FormatDate(maturity), dates.FormatDate(effective))
	}
	adjMaturity := dates.Adjust(cal, maturity)

	var periods []Period
	prevAdj := dates.Adjust(cal, effective)
	for i := 1; ; i++ {
		next := dates.AddMonth(effective, months*i)
		if next.After(maturity) {
			next = maturity
		}
		adjNext := dates.Adjust(cal, next)
		if adjNext.After(adjMaturity) {
			adjNext = adjMaturity
		}
		if adjNext.After(prevAdj) {
			periods = append(periods, Period{Start: prevAdj, End: adjNext, Pay: adjNext})
			prevAdj = adjNext
		}
		if !next.Before(maturity) {
			break
		}
	}
	if len(periods) == 0 {
		return nil, fmt.Errorf("empty schedule %s to %s",
			dates.FormatDate(effective), dates.FormatDate(maturity))
	}
	return periods, nil
}
