package propagation

import (
	"math"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/tle"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	keplerMaxIter   = 10
	keplerTolerance = 1e-6
)

// SolveKepler solves M = E - e·sin E for the eccentric anomaly by
// Newton-Raphson, starting from E = M + e·sin M. When the iteration cap is
// reached the last estimate is returned with converged set to false.
func SolveKepler(meanAnomaly, ecc float64) (E float64, converged bool) {
	E = meanAnomaly + ecc*math.Sin(meanAnomaly)
	for i := 0; i < keplerMaxIter; i++ {
		sinE, cosE := math.Sincos(E)
		dE := (E - ecc*sinE - meanAnomaly) / (1 - ecc*cosE)
		E -= dE
		if math.Abs(dE) < keplerTolerance {
			return E, true
		}
	}
	return E, false
}

// SecularRates returns the J2 secular drift of the ascending node and the
// argument of perigee, in rad/s.
func SecularRates(el *tle.ElementSet) (raanDot, argpDot float64) {
	a, e := el.SemiMajorAxis, el.Eccentricity
	p := a * (1 - e*e)
	k := el.MeanMotion * J2 * (EquatorialRadius / p) * (EquatorialRadius / p)
	ci := math.Cos(el.Inclination)

	raanDot = -1.5 * k * ci
	argpDot = 0.75 * k * (5*ci*ci - 1)
	return raanDot, argpDot
}

// Kepler propagates two-body motion with secular J2 precession of the node
// and perigee. It carries no state.
type Kepler struct{}

// Name implements Strategy.
func (Kepler) Name() string { return StrategyKepler }

// Position implements Strategy.
func (Kepler) Position(el *tle.ElementSet, at epoch.Epoch) r3.Vec {
	n, a, e := el.MeanMotion, el.SemiMajorAxis, el.Eccentricity
	if !(n > 0) || !(a > 0) || e < 0 || e >= 1 {
		metrics.IncPropagationFailures(StrategyKepler)
		return r3.Vec{}
	}

	dt := epoch.Sub(at, el.Epoch)
	raanDot, argpDot := SecularRates(el)
	raan := el.RAAN + raanDot*dt
	argp := el.ArgPerigee + argpDot*dt
	M := WrapTwoPi(el.MeanAnomaly + n*dt)

	E, ok := SolveKepler(M, e)
	if !ok {
		metrics.IncKeplerNonConverged()
	}

	sinE, cosE := math.Sincos(E)
	perifocal := r3.Vec{
		X: a * (cosE - e),
		Y: a * math.Sqrt(1-e*e) * sinE,
	}

	inertial := PerifocalToInertial(raan, el.Inclination, argp).MulVec(perifocal)
	return ToEngine(inertial)
}
