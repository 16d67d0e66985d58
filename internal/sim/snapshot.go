package sim

import (
	"github.com/aweeri/TLEscope/internal/apsis"
	"github.com/aweeri/TLEscope/internal/cache"
	"github.com/aweeri/TLEscope/internal/ephemeris"
	"github.com/aweeri/TLEscope/internal/epoch"
	"gonum.org/v1/gonum/spatial/r3"
)

// Snapshot is the read-only result of one tick. Nothing in it is shared
// with the Context except ring point slices, which are never written
// after a refresh.
type Snapshot struct {
	Epoch           epoch.Epoch     `json:"epoch"`
	DateTime        string          `json:"datetime"`
	GMST            float64         `json:"gmst_deg"`
	EarthOffsetDeg  float64         `json:"earth_offset_deg"`
	Multiplier      float64         `json:"multiplier"`
	Paused          bool            `json:"paused"`
	MapWidth        float64         `json:"map_width"`
	MapHeight       float64         `json:"map_height"`
	HideUnselected  bool            `json:"hide_unselected"`
	UnselectedAlpha float64         `json:"unselected_alpha"`
	Selected        string          `json:"selected,omitempty"`
	Hovered         string          `json:"hovered,omitempty"`
	Satellites      []SatelliteView `json:"satellites"`
	Markers         []MarkerView    `json:"markers"`
	Highlight       *Highlight      `json:"highlight,omitempty"`
	Moon            BodyView        `json:"moon"`
	Sun             BodyView        `json:"sun"`
	Cache           cache.Stats     `json:"orbit_cache"`
}

// SatelliteView is one satellite as of the snapshot epoch.
type SatelliteView struct {
	Name     string  `json:"name"`
	NORADID  int     `json:"norad_id"`
	Position r3.Vec  `json:"position"`
	MapX     float64 `json:"map_x"`
	MapY     float64 `json:"map_y"`
	Hidden   bool    `json:"hidden,omitempty"`
	Cached   bool    `json:"cached"`

	// Ring is the cached orbit ring, shared with the simulation.
	Ring []r3.Vec `json:"-"`
}

// MarkerView is a ground marker placed for the snapshot epoch.
type MarkerView struct {
	Marker
	Position r3.Vec  `json:"position"`
	MapX     float64 `json:"map_x"`
	MapY     float64 `json:"map_y"`
}

// BodyView places the Moon or Sun.
type BodyView struct {
	Position r3.Vec  `json:"position"`
	MapX     float64 `json:"map_x"`
	MapY     float64 `json:"map_y"`
}

// SubPoint is the ground point below a satellite.
type SubPoint struct {
	LatDeg     float64 `json:"lat_deg"`
	LonDeg     float64 `json:"lon_deg"`
	AltitudeKm float64 `json:"altitude_km"`
}

// Highlight carries the full-fidelity data for the hovered or selected
// satellite.
type Highlight struct {
	Name          string  `json:"name"`
	NORADID       int     `json:"norad_id"`
	PeriodMinutes float64 `json:"period_minutes"`
	SpeedKmS      float64 `json:"speed_km_s"`
	AltitudeKm    float64 `json:"altitude_km"`

	// Track is the 3D path; MapTrack is the same path on the map, split
	// into polylines where it crosses the seam.
	Track    []r3.Vec       `json:"track"`
	MapTrack [][][2]float64 `json:"map_track"`

	Periapsis apsis.Marker `json:"periapsis"`
	Apoapsis  apsis.Marker `json:"apoapsis"`

	FootprintHalfAngleDeg float64      `json:"footprint_half_angle_deg"`
	Footprint             []r3.Vec     `json:"footprint"`
	FootprintMap          [][2]float64 `json:"footprint_map"`

	SubSatellite SubPoint           `json:"sub_satellite"`
	Lighting     ephemeris.Lighting `json:"lighting"`
	EclipseDepth float64            `json:"eclipse_depth_rad"`
}

// Satellite returns the view with the given name.
func (s *Snapshot) Satellite(name string) (SatelliteView, bool) {
	for _, v := range s.Satellites {
		if v.Name == name {
			return v, true
		}
	}
	return SatelliteView{}, false
}

// Marker returns the marker view with the given name.
func (s *Snapshot) Marker(name string) (MarkerView, bool) {
	for _, m := range s.Markers {
		if m.Name == name {
			return m, true
		}
	}
	return MarkerView{}, false
}
