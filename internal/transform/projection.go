// Package transform maps engine-frame positions onto the ground: the
// equirectangular map projection, marker placement, visibility
// footprints, the Earth-fixed frame and topocentric look angles.
//
// Positions are in km in the engine frame (Y is the polar axis, see
// propagation.ToEngine). Earth rotation enters as a GMST angle in degrees
// plus a fixed texture offset.
package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

const deg2rad = math.Pi / 180.0

// EarthRadius is the mean spherical radius (km) used for display geometry.
const EarthRadius = 6371.0

// Project maps a position onto a w×h equirectangular map centred on the
// origin: longitude zero at x = 0, north up (negative y). Longitude is
// measured in the rotating frame given by gmstDeg + offsetDeg. A zero
// vector projects to (0, 0).
func Project(pos r3.Vec, gmstDeg, offsetDeg, w, h float64) (x, y float64) {
	r := r3.Norm(pos)
	if r == 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return 0, 0
	}

	phi := math.Acos(clamp(pos.Y/r, -1, 1))
	v := phi / math.Pi

	theta := wrapPi(math.Atan2(-pos.Z, pos.X) - (gmstDeg+offsetDeg)*deg2rad)
	u := theta/(2*math.Pi) + 0.5

	return (u - 0.5) * w, (v - 0.5) * h
}

// MarkerMap places a ground marker on the same w×h map as Project.
func MarkerMap(latDeg, lonDeg, w, h float64) (x, y float64) {
	return lonDeg / 360.0 * w, -latDeg / 180.0 * h
}

// MarkerPosition returns the engine-frame position of a ground marker on
// a sphere of the given radius, rotated with the Earth.
func MarkerPosition(latDeg, lonDeg, gmstDeg, offsetDeg, radius float64) r3.Vec {
	lat := latDeg * deg2rad
	lon := (lonDeg + gmstDeg + offsetDeg) * deg2rad
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	return r3.Vec{
		X: cosLat * cosLon * radius,
		Y: sinLat * radius,
		Z: -cosLat * sinLon * radius,
	}
}

// WrapSeam returns the three horizontal draw positions of a map feature
// at x on a map of width w, so features near the date line can be drawn
// on both sides of the seam.
func WrapSeam(x, w float64) [3]float64 {
	return [3]float64{x - w, x, x + w}
}

// wrapPi reduces an angle into (-π, π].
func wrapPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a > math.Pi {
		a -= 2 * math.Pi
	} else if a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
