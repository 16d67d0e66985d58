package epoch

import (
	"math"

	"github.com/soniakeys/meeus/v3/julian"
)

// J2000 is the Julian Date of 2000-01-01 12:00 TT.
const J2000 = 2451545.0

// JulianDate converts the calendar decomposition of e to a Julian Date
// using the Gregorian calendar rules.
func (e Epoch) JulianDate() float64 {
	year, month, day, hour, min, sec := e.Calendar()
	frac := (float64(hour) + float64(min)/60.0 + sec/3600.0) / 24.0
	return julian.CalendarGregorianToJD(year, month, float64(day)+frac)
}

// DaysSinceJ2000 returns JD - 2451545.0.
func (e Epoch) DaysSinceJ2000() float64 {
	return e.JulianDate() - J2000
}

// GMST returns Greenwich Mean Sidereal Time in degrees in [0, 360).
//
// Linear form of the IAU-82 expression:
//
//	θ = 280.46061837 + 360.98564736629 * (JD - 2451545.0)
func (e Epoch) GMST() float64 {
	gmst := math.Mod(280.46061837+360.98564736629*e.DaysSinceJ2000(), 360.0)
	if gmst < 0 {
		gmst += 360.0
	}
	return gmst
}
