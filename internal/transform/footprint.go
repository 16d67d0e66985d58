package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Default footprint grid resolution.
const (
	FootprintRings  = 12
	FootprintPoints = 120
)

// Footprint is the region of the Earth's surface that can see a
// satellite, sampled as concentric rings around the sub-satellite point.
type Footprint struct {
	// HalfAngle is the Earth-central angle of the visibility edge, radians.
	HalfAngle float64
	// Grid[i][k] is point k of ring i. Ring 0 collapses onto the
	// sub-satellite point; the last ring is the visibility edge.
	Grid [][]r3.Vec
}

// Edge returns the outermost ring.
func (f *Footprint) Edge() []r3.Vec {
	if len(f.Grid) == 0 {
		return nil
	}
	return f.Grid[len(f.Grid)-1]
}

// ComputeFootprint samples the visibility region of a satellite at pos on
// a sphere of EarthRadius. It reports false when the satellite is at or
// below the surface. rings and points <= 0 select the defaults.
func ComputeFootprint(pos r3.Vec, rings, points int) (Footprint, bool) {
	r := r3.Norm(pos)
	if !(r > EarthRadius) {
		return Footprint{}, false
	}
	if rings <= 0 {
		rings = FootprintRings
	}
	if points <= 0 {
		points = FootprintPoints
	}

	theta := math.Acos(EarthRadius / r)

	s := r3.Unit(pos)
	up := r3.Vec{Y: 1}
	if math.Abs(s.Y) > 0.99 {
		up = r3.Vec{X: 1}
	}
	u := r3.Unit(r3.Cross(up, s))
	v := r3.Cross(s, u)

	grid := make([][]r3.Vec, rings+1)
	for i := 0; i <= rings; i++ {
		a := theta * float64(i) / float64(rings)
		d := EarthRadius * math.Cos(a)
		rc := EarthRadius * math.Sin(a)

		ring := make([]r3.Vec, points)
		for k := 0; k < points; k++ {
			sinA, cosA := math.Sincos(2 * math.Pi * float64(k) / float64(points))
			p := r3.Scale(d, s)
			p = r3.Add(p, r3.Scale(cosA*rc, u))
			p = r3.Add(p, r3.Scale(sinA*rc, v))
			ring[k] = p
		}
		grid[i] = ring
	}

	return Footprint{HalfAngle: theta, Grid: grid}, true
}

// ProjectPoints maps engine-frame points onto the w×h map.
func ProjectPoints(pts []r3.Vec, gmstDeg, offsetDeg, w, h float64) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		x, y := Project(p, gmstDeg, offsetDeg, w, h)
		out[i] = [2]float64{x, y}
	}
	return out
}
