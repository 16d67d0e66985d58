// Package propagation turns mean orbital elements into Cartesian positions
// in the engine frame. Two strategies are available: an analytic
// Kepler solution with secular J2 drift (the default) and SGP4.
package propagation

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/tle"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// J2 is Earth's second zonal harmonic coefficient.
	J2 = 1.08262668e-3
	// EquatorialRadius is the WGS-84 equatorial radius in km.
	EquatorialRadius = 6378.137
)

// Strategy names accepted by New.
const (
	StrategyKepler = "kepler"
	StrategySGP4   = "sgp4"
)

// Strategy computes the position of a satellite at a target epoch.
//
// Implementations never fail: an unusable result is reported as the zero
// vector. Position must be safe for concurrent use, since element sets
// are immutable and shared between the sim loop and pass queries.
type Strategy interface {
	Name() string
	Position(el *tle.ElementSet, at epoch.Epoch) r3.Vec
}

// Pruner is implemented by strategies that keep per-element state. Prune
// drops the state of every element set not in keep.
type Pruner interface {
	Prune(keep []*tle.ElementSet)
}

// New returns the strategy registered under name. An empty name selects
// the Kepler strategy.
func New(name string, logger *slog.Logger) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyKepler:
		return Kepler{}, nil
	case StrategySGP4:
		return NewSGP4(logger), nil
	default:
		return nil, fmt.Errorf("unknown propagation strategy %q (want %q or %q)", name, StrategyKepler, StrategySGP4)
	}
}
