package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// OmegaEarth is Earth's rotation rate in rad/s (IAU value).
const OmegaEarth = 7.292115146706979e-5

// InertialToECEF rotates an equatorial inertial vector (Z toward the
// pole) into the Earth-fixed frame: r_ECEF = R3(θ)·r. Only GMST is
// applied; polar motion and the equation of the equinoxes are ignored.
func InertialToECEF(v r3.Vec, thetaRad float64) r3.Vec {
	sinT, cosT := math.Sincos(thetaRad)
	return r3.Vec{
		X: v.X*cosT + v.Y*sinT,
		Y: -v.X*sinT + v.Y*cosT,
		Z: v.Z,
	}
}

// EngineToECEF converts an engine-frame position to Earth-fixed km. The
// rotation angle is gmstDeg + offsetDeg so results agree with Project and
// MarkerPosition; a zero offset gives true geography.
func EngineToECEF(pos r3.Vec, gmstDeg, offsetDeg float64) r3.Vec {
	// Engine (x, y, z) is inertial (x, -z, y).
	inertial := r3.Vec{X: pos.X, Y: -pos.Z, Z: pos.Y}
	return InertialToECEF(inertial, (gmstDeg+offsetDeg)*deg2rad)
}

// SubSatellite returns the WGS-84 geodetic point below pos, with altitude
// above the ellipsoid in meters.
func SubSatellite(pos r3.Vec, gmstDeg, offsetDeg float64) GeodeticPoint {
	return ECEFToGeodetic(EngineToECEF(pos, gmstDeg, offsetDeg))
}

// LookFrom computes azimuth, elevation and range from a ground observer to
// a satellite at engine-frame position pos.
func LookFrom(obs ObserverPosition, pos r3.Vec, gmstDeg, offsetDeg float64) LookAngles {
	return obs.Look(EngineToECEF(pos, gmstDeg, offsetDeg))
}
