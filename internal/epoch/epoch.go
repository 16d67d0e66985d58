// Package epoch implements the element-set time encoding used throughout
// TLEscope: a single float64 holding (two-digit year * 1000) + day-of-year +
// fraction of day, e.g. 24001.5 is 2024-01-01 12:00 UTC.
//
// Two-digit years below 57 resolve to 20yy, the rest to 19yy, matching the
// TLE format. The representable range is therefore 1957 through 2056.
package epoch

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	pivotYear     = 57
	secondsPerDay = 86400.0
)

// Epoch is a yyddd.dddddddd timestamp. Values produced by this package are
// always normalized; values built by hand may carry day overflow until
// Normalize is applied.
type Epoch float64

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInYear returns 366 for leap years and 365 otherwise.
func DaysInYear(year int) int {
	if IsLeap(year) {
		return 366
	}
	return 365
}

// ResolveYear maps a two-digit year onto the four-digit year it encodes.
func ResolveYear(yy int) int {
	if yy < pivotYear {
		return 2000 + yy
	}
	return 1900 + yy
}

// New builds an epoch from a four-digit year and a 1-based fractional day of year.
func New(year int, dayOfYear float64) Epoch {
	return normalizeParts(year, dayOfYear)
}

// split decodes e without normalizing it.
func (e Epoch) split() (int, float64) {
	v := float64(e)
	yy := int(v / 1000.0)
	return ResolveYear(yy), math.Mod(v, 1000.0)
}

// Year returns the four-digit year of the normalized epoch.
func (e Epoch) Year() int {
	year, _ := e.Normalize().split()
	return year
}

// DayOfYear returns the 1-based fractional day of the normalized epoch.
func (e Epoch) DayOfYear() float64 {
	_, day := e.Normalize().split()
	return day
}

// Normalize carries day-of-year overflow and underflow across year
// boundaries until the day lies in [1, days-in-year+1).
func (e Epoch) Normalize() Epoch {
	v := float64(e)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return e
	}
	year, day := e.split()
	return normalizeParts(year, day)
}

// normalizeParts loops once per year of drift.
func normalizeParts(year int, day float64) Epoch {
	if math.IsNaN(day) || math.IsInf(day, 0) {
		return Epoch(day)
	}
	for {
		n := float64(DaysInYear(year))
		switch {
		case day >= n+1:
			day -= n
			year++
		case day < 1:
			year--
			day += float64(DaysInYear(year))
		default:
			v := float64(year%100)*1000.0 + day
			// Encoding can round a day just under the limit up onto it.
			if d := math.Mod(v, 1000.0); d >= n+1 {
				day = d
				continue
			}
			return Epoch(v)
		}
	}
}

// AdvanceBy returns e moved by seconds of simulated time. Negative values
// rewind the clock.
func (e Epoch) AdvanceBy(seconds float64) Epoch {
	year, day := e.split()
	return normalizeParts(year, day+seconds/secondsPerDay)
}

// AddDays is AdvanceBy in day units.
func (e Epoch) AddDays(days float64) Epoch {
	year, day := e.split()
	return normalizeParts(year, day+days)
}

// Unix returns seconds since 1970-01-01T00:00:00Z.
func (e Epoch) Unix() float64 {
	year, day := e.Normalize().split()
	start := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	return float64(start) + (day-1)*secondsPerDay
}

// Sub returns the number of seconds from b to a.
func Sub(a, b Epoch) float64 {
	return a.Unix() - b.Unix()
}

// Time converts e to a UTC time.Time.
func (e Epoch) Time() time.Time {
	year, day := e.Normalize().split()
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	return t.Add(time.Duration((day - 1) * float64(24*time.Hour)))
}

// FromTime encodes t (converted to UTC).
func FromTime(t time.Time) Epoch {
	t = t.UTC()
	secs := float64(t.Hour()*3600+t.Minute()*60+t.Second()) + float64(t.Nanosecond())/1e9
	return normalizeParts(t.Year(), float64(t.YearDay())+secs/secondsPerDay)
}

// Now returns the current wall-clock epoch.
func Now() Epoch {
	return FromTime(time.Now())
}

var daysInMonth = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// Calendar decomposes the normalized epoch into UTC calendar fields.
func (e Epoch) Calendar() (year, month, day, hour, min int, sec float64) {
	year, doy := e.Normalize().split()

	months := daysInMonth
	if IsLeap(year) {
		months[1] = 29
	}

	day = int(doy)
	frac := doy - float64(day)
	month = 12
	for i, n := range months {
		if day <= n {
			month = i + 1
			break
		}
		day -= n
	}

	hours := frac * 24.0
	hour = int(hours)
	minutes := (hours - float64(hour)) * 60.0
	min = int(minutes)
	sec = (minutes - float64(min)) * 60.0
	return year, month, day, hour, min, sec
}

// String renders the epoch as "YYYY-MM-DD HH:MM:SS UTC", rounded to the
// nearest second.
func (e Epoch) String() string {
	return e.Time().Round(time.Second).Format("2006-01-02 15:04:05") + " UTC"
}

// FormatDateTime is the display form used by the renderer.
func FormatDateTime(e Epoch) string {
	return e.String()
}

// Parse reads the 14-character epoch field of TLE line 1 (YYDDD.DDDDDDDD).
func Parse(s string) (Epoch, error) {
	s = strings.TrimSpace(s)
	if len(s) < 5 {
		return 0, fmt.Errorf("epoch string too short: %q", s)
	}

	yy, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid epoch year %q: %w", s[:2], err)
	}

	day, err := strconv.ParseFloat(strings.TrimSpace(s[2:]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid epoch day %q: %w", s[2:], err)
	}
	if !(day >= 1 && day < float64(DaysInYear(ResolveYear(yy))+1)) {
		return 0, fmt.Errorf("epoch day %v out of range", day)
	}

	return Epoch(float64(yy)*1000.0 + day), nil
}
