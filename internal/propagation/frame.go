package propagation

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ToEngine maps an equatorial inertial vector (Z toward the north pole)
// into the engine frame, where Y is the polar axis: (x, y, z) -> (x, z, -y).
func ToEngine(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Z, Z: -v.Y}
}

// FromEngine is the inverse of ToEngine.
func FromEngine(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Y: -v.Z, Z: v.Y}
}

// PerifocalToInertial builds the 3-1-3 rotation R3(-Ω)·R1(-i)·R3(-ω) that
// takes perifocal coordinates to the equatorial inertial frame.
func PerifocalToInertial(raan, incl, argp float64) *r3.Mat {
	sO, cO := math.Sincos(raan)
	si, ci := math.Sincos(incl)
	sw, cw := math.Sincos(argp)

	return r3.NewMat([]float64{
		cO*cw - sO*sw*ci, -cO*sw - sO*cw*ci, sO * si,
		sO*cw + cO*sw*ci, -sO*sw + cO*cw*ci, -cO * si,
		sw * si, cw * si, ci,
	})
}

// WrapTwoPi reduces an angle into [0, 2π).
func WrapTwoPi(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a < 0 {
		a += 2 * math.Pi
	}
	// Mod of a tiny negative value can round up onto 2π.
	if a >= 2*math.Pi {
		a = 0
	}
	return a
}
