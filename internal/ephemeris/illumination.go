package ephemeris

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// EarthRadius is the equatorial radius (km) used for shadow geometry.
const EarthRadius = 6378.137

// Lighting classifies how much of the solar disc a satellite sees.
type Lighting int

const (
	Sunlit Lighting = iota
	Penumbra
	Umbra
)

func (l Lighting) String() string {
	switch l {
	case Penumbra:
		return "penumbra"
	case Umbra:
		return "umbra"
	default:
		return "sunlit"
	}
}

// MarshalText renders the lighting state as its name.
func (l Lighting) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Illumination compares the apparent radii of the Earth and Sun seen from
// the satellite with the angle between their centres. Positions are
// geocentric km in the same frame. The second result is the eclipse
// depth in radians: positive inside the umbra.
func Illumination(sat, sun r3.Vec) (Lighting, float64) {
	r := r3.Norm(sat)
	if !(r > EarthRadius) {
		return Umbra, 0
	}
	toSun := r3.Sub(sun, sat)
	dSun := r3.Norm(toSun)
	if dSun == 0 {
		return Sunlit, 0
	}

	earthAngle := math.Asin(EarthRadius / r)
	sunAngle := math.Asin(math.Min(1, SunRadius/dSun))
	sep := math.Acos(math.Max(-1, math.Min(1, r3.Cos(toSun, r3.Scale(-1, sat)))))

	depth := earthAngle - sunAngle - sep
	switch {
	case sep >= earthAngle+sunAngle:
		return Sunlit, depth
	case earthAngle > sunAngle && depth >= 0:
		return Umbra, depth
	default:
		return Penumbra, depth
	}
}
