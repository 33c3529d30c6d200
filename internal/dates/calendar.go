package dates

import "time"

// CalendarID identifies a holiday calendar.
type CalendarID string

const (
	// USGovernmentBond is the US government bond market calendar (SIFMA).
	USGovernmentBond CalendarID = "US_GOVERNMENT_BOND"
)

func isHoliday(cal CalendarID, t time.Time) bool {
	switch cal {
	case USGovernmentBond:
		return isUSGovBondHoliday(t)
	default:
		return false
	}
}

// isUSGovBondHoliday applies the SIFMA holiday rules. Fixed-date holidays
// move to Monday when they fall on a Sunday and to Friday when they fall on
// a Saturday, except New Year's Day which only shifts forward.
func isUSGovBondHoliday(t time.Time) bool {
	y, m, d := t.Year(), t.Month(), t.Day()
	wd := t.Weekday()

	switch {
	// New Year's Day
	case m == time.January && (d == 1 || (d == 2 && wd == time.Monday)):
		return true
	// Martin Luther King Jr. Day: third Monday of January
	case m == time.January && wd == time.Monday && d >= 15 && d <= 21:
		return true
	// Washington's Birthday: third Monday of February
	case m == time.February && wd == time.Monday && d >= 15 && d <= 21:
		return true
	// Memorial Day: last Monday of May
	case m == time.May && wd == time.Monday && d >= 25:
		return true
	// Juneteenth (since 2022)
	case y >= 2022 && m == time.June && (d == 19 || (d == 20 && wd == time.Monday) || (d == 18 && wd == time.Friday)):
		return true
	// Independence Day
	case m == time.July && (d == 4 || (d == 5 && wd == time.Monday) || (d == 3 && wd == time.Friday)):
		return true
	// Labor Day: first Monday of September
	case m == time.September && wd == time.Monday && d <= 7:
		return true
	// Columbus Day: second Monday of October
	case m == time.October && wd == time.Monday && d >= 8 && d <= 14:
		return true
	// Veterans Day
	case m == time.November && (d == 11 || (d == 12 && wd == time.Monday) || (d == 10 && wd == time.Friday)):
		return true
	// Thanksgiving: fourth Thursday of November
	case m == time.November && wd == time.Thursday && d >= 22 && d <= 28:
		return true
	// Christmas Day
	case m == time.December && (d == 25 || (d == 26 && wd == time.Monday) || (d == 24 && wd == time.Friday)):
		return true
	}

	if m == time.March || m == time.April {
		gm, gd := goodFriday(y)
		if m == gm && d == gd {
			return true
		}
	}
	return false
}

// goodFriday returns the month and day of Good Friday using the anonymous
// Gregorian Easter algorithm.
func goodFriday(year int) (time.Month, int) {
	a := year % 19
	b := year / 100
	c := year % 100
	dd := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - dd - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	gf := easter.AddDate(0, 0, -2)
	return gf.Month(), gf.Day()
}

// IsBusinessDay checks weekends and the calendar's holiday rules.
func IsBusinessDay(cal CalendarID, t time.Time) bool {
	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday {
		return false
	}
	return !isHoliday(cal, t)
}

// Adjust applies Modified Following.
func Adjust(cal CalendarID, t time.Time) time.Time {
	origMonth := t.Month()
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, 1)
	}
	if t.Month() != origMonth {
		t = t.AddDate(0, 0, -1)
		for !IsBusinessDay(cal, t) {
			t = t.AddDate(0, 0, -1)
		}
	}
	return t
}

// AdjustFollowing applies a simple Following convention (no month preservation).
func AdjustFollowing(cal CalendarID, t time.Time) time.Time {
	for !IsBusinessDay(cal, t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// AddBusinessDays advances n business days (n can be negative).
func AddBusinessDays(cal CalendarID, t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step = -1
	}
	for n != 0 {
		t = t.AddDate(0, 0, step)
		if IsBusinessDay(cal, t) {
			n -= step
		}
	}
	return t
}

// LastBusinessDayOfMonth returns the last business day of the month containing t.
func LastBusinessDayOfMonth(cal CalendarID, t time.Time) time.Time {
	nextMonth := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return AddBusinessDays(cal, nextMonth, -1)
}

// IsEndOfMonth checks if t is the last business day of its month.
func IsEndOfMonth(cal CalendarID, t time.Time) bool {
	return t.Equal(LastBusinessDayOfMonth(cal, t))
}
