// Package apsis finds the next periapsis and apoapsis passages of a
// satellite and places markers for them.
//
// Passage times come from the linear mean-anomaly advance alone; the
// secular J2 drift of the perigee is not taken into account, so the
// marker can lead or lag the propagated track by the drift accumulated
// over less than one orbit.
package apsis

import (
	"math"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/aweeri/TLEscope/internal/transform"
	"gonum.org/v1/gonum/spatial/r3"
)

// Kind selects an apsis.
type Kind int

const (
	Periapsis Kind = iota
	Apoapsis
)

func (k Kind) String() string {
	if k == Apoapsis {
		return "apoapsis"
	}
	return "periapsis"
}

// MarshalText renders the kind as its name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// MeanAnomalyAt returns the mean anomaly at e in [0, 2π).
func MeanAnomalyAt(el *tle.ElementSet, e epoch.Epoch) float64 {
	dt := epoch.Sub(e, el.Epoch)
	return propagation.WrapTwoPi(el.MeanAnomaly + el.MeanMotion*dt)
}

// NextApsisTime returns the epoch of the next periapsis or apoapsis
// passage at or after now. A satellite sitting exactly on the apsis
// returns now.
func NextApsisTime(el *tle.ElementSet, now epoch.Epoch, wantApoapsis bool) epoch.Epoch {
	if !(el.MeanMotion > 0) {
		return now.Normalize()
	}
	target := 0.0
	if wantApoapsis {
		target = math.Pi
	}
	diff := propagation.WrapTwoPi(target - MeanAnomalyAt(el, now))
	return now.AddDays(diff / el.MeanMotion / 86400.0)
}

// View describes the 2D map the marker is placed on.
type View struct {
	EarthOffsetDeg float64
	MapWidth       float64
	MapHeight      float64
}

// Marker is an apsis ready for display.
type Marker struct {
	Kind       Kind    `json:"kind"`
	Epoch      float64 `json:"epoch"`
	DateTime   string  `json:"datetime"`
	Position   r3.Vec  `json:"position"`
	MapX       float64 `json:"map_x"`
	MapY       float64 `json:"map_y"`
	AltitudeKm float64 `json:"altitude_km"`
}

// Locate finds the next apsis of the given kind after now and positions
// it with strategy. The map point uses the Earth rotation at the apsis
// epoch, not at now.
func Locate(strategy propagation.Strategy, el *tle.ElementSet, now epoch.Epoch, kind Kind, view View) Marker {
	at := NextApsisTime(el, now, kind == Apoapsis)
	pos := strategy.Position(el, at)
	x, y := transform.Project(pos, at.GMST(), view.EarthOffsetDeg, view.MapWidth, view.MapHeight)

	return Marker{
		Kind:       kind,
		Epoch:      float64(at),
		DateTime:   at.String(),
		Position:   pos,
		MapX:       x,
		MapY:       y,
		AltitudeKm: r3.Norm(pos) - transform.EarthRadius,
	}
}

// Both returns the periapsis and apoapsis markers.
func Both(strategy propagation.Strategy, el *tle.ElementSet, now epoch.Epoch, view View) (peri, apo Marker) {
	return Locate(strategy, el, now, Periapsis, view), Locate(strategy, el, now, Apoapsis, view)
}
