// Package cache keeps low-fidelity orbit rings for every satellite in the
// roster and refreshes them round-robin, a bounded batch per tick.
//
// Rings are owned by the simulation goroutine. Nothing here locks; the
// statistics are atomics so HTTP readers can sample them.
package cache

import (
	"math"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// DefaultSamples is the number of points in one orbit ring.
	DefaultSamples = 90

	// MinSamples is the smallest ring that still describes a closed path.
	MinSamples = 2
)

// Ring is one period of a satellite's orbit sampled from RefreshedAt.
// When Cached is true every point came from the same refresh.
type Ring struct {
	Elements    *tle.ElementSet
	Samples     int
	Cached      bool
	RefreshedAt epoch.Epoch
	Points      []r3.Vec
}

// NewRing returns an empty ring for el. samples below MinSamples are
// raised to it.
func NewRing(el *tle.ElementSet, samples int) *Ring {
	return &Ring{Elements: el, Samples: max(samples, MinSamples)}
}

// Invalidate drops the cached points so the next refresh rebuilds them.
func (r *Ring) Invalidate() {
	r.Cached = false
	r.Points = nil
}

// RefreshOne resamples r over one period starting at ref. The points are
// built in a new slice and swapped in whole.
func RefreshOne(strategy propagation.Strategy, r *Ring, ref epoch.Epoch) {
	n := max(r.Samples, MinSamples)
	el := r.Elements
	if el == nil || !(el.MeanMotion > 0) {
		r.Invalidate()
		return
	}

	period := 2 * math.Pi / el.MeanMotion / 86400.0
	step := period / float64(n-1)

	pts := make([]r3.Vec, n)
	for i := range pts {
		pts[i] = strategy.Position(el, ref.AddDays(float64(i)*step))
	}

	r.Points = pts
	r.RefreshedAt = ref
	r.Cached = true
}
