package dates

import "time"

// DayCount enumerates the supported day-count conventions.
type DayCount string

const (
	ActAct  DayCount = "ACT/ACT"
	Act360  DayCount = "ACT/360"
	Act365  DayCount = "ACT/365"
	Act365F DayCount = "ACT/365F"
	Dc30360 DayCount = "30/360"
)

// YearFraction computes the year fraction between two dates under the given
// day-count convention. ACT/ACT follows the ISDA rule (calendar-year split,
// 365 or 366 denominators).
func YearFraction(start, end time.Time, convention DayCount) float64 {
	switch convention {
	case Act360:
		return Days(start, end) / 360.0
	case Act365, Act365F:
		return Days(start, end) / 365.0
	case Dc30360:
		d1 := start.Day()
		if d1 > 30 {
			d1 = 30
		}
		d2 := end.Day()
		if d2 > 30 && d1 == 30 {
			d2 = 30
		}
		y1, m1 := start.Year(), int(start.Month())
		y2, m2 := end.Year(), int(end.Month())
		return float64(360*(y2-y1)+30*(m2-m1)+(d2-d1)) / 360.0
	case ActAct:
		return actActISDA(start, end)
	default:
		return Days(start, end) / 365.0
	}
}

func actActISDA(start, end time.Time) float64 {
	if !start.Before(end) {
		return 0
	}
	if start.Year() == end.Year() {
		return Days(start, end) / yearBasis(start.Year())
	}
	frac := 0.0
	endOfStartYear := time.Date(start.Year()+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	frac += Days(start, endOfStartYear) / yearBasis(start.Year())
	frac += float64(end.Year() - start.Year() - 1)
	startOfEndYear := time.Date(end.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	frac += Days(startOfEndYear, end) / yearBasis(end.Year())
	return frac
}

func yearBasis(year int) float64 {
	if isLeap(year) {
		return 366.0
	}
	return 365.0
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Days returns the calendar-day count between two dates.
func Days(start, end time.Time) float64 {
	return end.Sub(start).Hours() / 24
}
