package cache

import (
	"math"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"gonum.org/v1/gonum/spatial/r3"
)

// View selects the segment floor for a highlighted track.
type View int

const (
	View3D View = iota
	ViewMap
)

const (
	segmentsPerOrbit = 400
	maxSegments      = 4000
	minSegments3D    = 90
	minSegmentsMap   = 50
)

// Sample is one point of a highlighted track.
type Sample struct {
	At       epoch.Epoch
	Position r3.Vec
}

// Segments returns the number of track segments for orbits periods in
// view v.
func Segments(orbits float64, v View) int {
	lo := minSegments3D
	if v == ViewMap {
		lo = minSegmentsMap
	}
	n := int(segmentsPerOrbit * orbits)
	return min(maxSegments, max(lo, n))
}

// Highlighted samples el at full fidelity over orbits periods from ref.
// It returns Segments(orbits, v)+1 samples; the map view projects each
// with the GMST of its own epoch.
func Highlighted(strategy propagation.Strategy, el *tle.ElementSet, ref epoch.Epoch, orbits float64, v View) []Sample {
	if el == nil || !(el.MeanMotion > 0) {
		return nil
	}
	if !(orbits > 0) {
		orbits = 1
	}

	segments := Segments(orbits, v)
	period := 2 * math.Pi / el.MeanMotion / 86400.0
	step := period * orbits / float64(segments)

	out := make([]Sample, segments+1)
	for i := range out {
		at := ref.AddDays(float64(i) * step)
		out[i] = Sample{At: at, Position: strategy.Position(el, at)}
	}
	return out
}
