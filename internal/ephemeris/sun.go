package ephemeris

import (
	"math"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	sunObliquity = 23.43929111 * deg2rad

	// SunRadius is the solar radius in km.
	SunRadius = 695700.0
)

// SunEcliptic returns the Sun's geocentric ecliptic longitude in radians
// and its distance in km.
func SunEcliptic(e epoch.Epoch) (lon, distKm float64) {
	T := e.DaysSinceJ2000() / 36525.0

	M := unit.AngleFromDeg(357.5256 + 35999.049*T).Mod1().Rad()
	lonDeg := 282.94 + M/deg2rad + (6892.0/3600.0)*math.Sin(M) + (72.0/3600.0)*math.Sin(2*M)

	lon = unit.AngleFromDeg(lonDeg).Mod1().Rad()
	distKm = (149.619 - 2.499*math.Cos(M) - 0.021*math.Cos(2*M)) * 1e6
	return lon, distKm
}

// SunPosition returns the geocentric Sun position in km in the engine
// frame.
func SunPosition(e epoch.Epoch) r3.Vec {
	lon, dist := SunEcliptic(e)
	return propagation.ToEngine(eclipticToEquatorial(sphericalToCartesian(lon, 0, dist), sunObliquity))
}

// SunDirection is the unit vector toward the Sun in the engine frame.
func SunDirection(e epoch.Epoch) r3.Vec {
	return r3.Unit(SunPosition(e))
}
