package transform

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// WGS-84 ellipsoid in km.
const (
	wgs84A  = 6378.137
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// ObserverPosition is a ground marker with its Earth-fixed position and
// local south-east-zenith basis, built once and reused across pass scans.
type ObserverPosition struct {
	LatDeg, LonDeg, AltM float64
	ECEF                 r3.Vec // km

	south, east, zenith r3.Vec
}

// LookAngles is the direction and distance from a marker to a satellite.
type LookAngles struct {
	AzimuthDeg   float64 `json:"azimuth_deg"` // 0 = north, clockwise
	ElevationDeg float64 `json:"elevation_deg"`
	RangeKm      float64 `json:"range_km"`
}

// GeodeticPoint is a WGS-84 position; altitude is above the ellipsoid.
type GeodeticPoint struct {
	LatDeg float64 `json:"lat_deg"`
	LonDeg float64 `json:"lon_deg"`
	AltM   float64 `json:"alt_m"`
}

// primeVertical is the ellipsoid's radius of curvature in the prime
// vertical at the given latitude.
func primeVertical(sinLat float64) float64 {
	return wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
}

// NewObserverPosition places a marker given in degrees and meters above
// the ellipsoid.
func NewObserverPosition(latDeg, lonDeg, altM float64) ObserverPosition {
	sinLat, cosLat := math.Sincos(latDeg * deg2rad)
	sinLon, cosLon := math.Sincos(lonDeg * deg2rad)
	n := primeVertical(sinLat)
	h := altM / 1000

	return ObserverPosition{
		LatDeg: latDeg,
		LonDeg: lonDeg,
		AltM:   altM,
		ECEF: r3.Vec{
			X: (n + h) * cosLat * cosLon,
			Y: (n + h) * cosLat * sinLon,
			Z: (n*(1-wgs84E2) + h) * sinLat,
		},
		south:  r3.Vec{X: sinLat * cosLon, Y: sinLat * sinLon, Z: -cosLat},
		east:   r3.Vec{X: -sinLon, Y: cosLon},
		zenith: r3.Vec{X: cosLat * cosLon, Y: cosLat * sinLon, Z: sinLat},
	}
}

// Look returns the look angles from o to an Earth-fixed position in km.
// A satellite at the observer reads as straight up at zero range.
func (o ObserverPosition) Look(sat r3.Vec) LookAngles {
	d := r3.Sub(sat, o.ECEF)
	rng := r3.Norm(d)
	if rng == 0 {
		return LookAngles{ElevationDeg: 90}
	}

	s, e, z := r3.Dot(d, o.south), r3.Dot(d, o.east), r3.Dot(d, o.zenith)
	az := math.Atan2(e, -s)
	if az < 0 {
		az += 2 * math.Pi
	}
	return LookAngles{
		AzimuthDeg:   az / deg2rad,
		ElevationDeg: math.Asin(clamp(z/rng, -1, 1)) / deg2rad,
		RangeKm:      rng,
	}
}

// ECEFToGeodetic converts an Earth-fixed position in km to geodetic
// coordinates by Bowring's iteration.
func ECEFToGeodetic(v r3.Vec) GeodeticPoint {
	p := math.Hypot(v.X, v.Y)
	lat := math.Atan2(v.Z, p*(1-wgs84E2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		lat = math.Atan2(v.Z+wgs84E2*primeVertical(sinLat)*sinLat, p)
	}

	sinLat, cosLat := math.Sincos(lat)
	n := primeVertical(sinLat)
	var h float64
	if math.Abs(cosLat) > 1e-10 {
		h = p/cosLat - n
	} else {
		h = math.Abs(v.Z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}
	return GeodeticPoint{
		LatDeg: lat / deg2rad,
		LonDeg: math.Atan2(v.Y, v.X) / deg2rad,
		AltM:   h * 1000,
	}
}
