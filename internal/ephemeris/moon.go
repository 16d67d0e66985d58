// Package ephemeris gives low-precision positions of the Moon and Sun in
// the engine frame, and classifies satellite illumination.
//
// The series here are good to a fraction of a degree, enough to place
// bodies and shade the Earth in a visualization. They are not suitable
// for observation planning.
package ephemeris

import (
	"math"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/propagation"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	deg2rad = math.Pi / 180.0

	// moonObliquity is the mean obliquity used for the Moon series.
	moonObliquity = 23.439 * deg2rad
)

// MoonEcliptic returns the Moon's geocentric ecliptic longitude and
// latitude in radians and its distance in km.
func MoonEcliptic(e epoch.Epoch) (lon, lat, distKm float64) {
	D := e.DaysSinceJ2000()

	L := math.Mod(218.316+13.176396*D, 360) * deg2rad
	M := math.Mod(134.963+13.064993*D, 360) * deg2rad
	F := math.Mod(93.272+13.229350*D, 360) * deg2rad

	lon = L + 6.289*deg2rad*math.Sin(M)
	lat = 5.128 * deg2rad * math.Sin(F)
	distKm = 385000.0 - 20905.0*math.Cos(M)
	return lon, lat, distKm
}

// MoonPosition returns the geocentric Moon position in km in the engine
// frame.
func MoonPosition(e epoch.Epoch) r3.Vec {
	lon, lat, dist := MoonEcliptic(e)
	return propagation.ToEngine(eclipticToEquatorial(sphericalToCartesian(lon, lat, dist), moonObliquity))
}

func sphericalToCartesian(lon, lat, r float64) r3.Vec {
	sinLon, cosLon := math.Sincos(lon)
	sinLat, cosLat := math.Sincos(lat)
	return r3.Vec{
		X: r * cosLat * cosLon,
		Y: r * cosLat * sinLon,
		Z: r * sinLat,
	}
}

// eclipticToEquatorial rotates about the equinox direction by the
// obliquity eps.
func eclipticToEquatorial(v r3.Vec, eps float64) r3.Vec {
	sinE, cosE := math.Sincos(eps)
	return r3.Vec{
		X: v.X,
		Y: v.Y*cosE - v.Z*sinE,
		Z: v.Y*sinE + v.Z*cosE,
	}
}
