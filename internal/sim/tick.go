package sim

import (
	"context"
	"math"
	"time"

	"github.com/aweeri/TLEscope/internal/apsis"
	"github.com/aweeri/TLEscope/internal/cache"
	"github.com/aweeri/TLEscope/internal/ephemeris"
	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/aweeri/TLEscope/internal/transform"
	"gonum.org/v1/gonum/spatial/r3"
)

// seamFraction is the horizontal jump, as a share of map width, that
// splits a map track into separate polylines.
const seamFraction = 0.6

// Tick advances the simulation by frameSeconds of wall time and returns a
// snapshot of the new state.
func (c *Context) Tick(frameSeconds float64) *Snapshot {
	return c.TickContext(context.Background(), frameSeconds)
}

// TickContext is Tick with a context for the parallel propagation step.
// If ctx is cancelled mid-tick, positions keep their previous values.
func (c *Context) TickContext(ctx context.Context, frameSeconds float64) *Snapshot {
	start := time.Now()
	defer func() { metrics.ObserveSimTick(time.Since(start)) }()

	c.Clock.Advance(frameSeconds)
	now := c.Clock.Epoch

	c.scheduler.Tick(c.rings, now)
	c.propagate(ctx, now)
	c.updateFade(frameSeconds)

	gmst := now.GMST()
	off := c.config.EarthOffsetDeg
	w, h := c.config.MapWidth, c.config.MapHeight
	hiding := c.hideUnselected && c.selected != nil

	snap := &Snapshot{
		Epoch:           now,
		DateTime:        epoch.FormatDateTime(now),
		GMST:            gmst,
		EarthOffsetDeg:  off,
		Multiplier:      c.Clock.Multiplier,
		Paused:          c.Clock.Paused,
		MapWidth:        w,
		MapHeight:       h,
		HideUnselected:  c.hideUnselected,
		UnselectedAlpha: c.fade,
		Satellites:      make([]SatelliteView, len(c.satellites)),
		Markers:         make([]MarkerView, len(c.markers)),
		Cache:           c.scheduler.Stats(),
	}
	if c.selected != nil {
		snap.Selected = c.selected.Name
	}
	if c.hovered != nil {
		snap.Hovered = c.hovered.Name
	}

	for i, s := range c.satellites {
		x, y := transform.Project(s.Current, gmst, off, w, h)
		v := SatelliteView{
			Name:     s.Name,
			NORADID:  s.NORADID,
			Position: s.Current,
			MapX:     x,
			MapY:     y,
			Hidden:   hiding && s != c.selected,
			Cached:   s.Ring.Cached,
		}
		if s.Ring.Cached {
			v.Ring = s.Ring.Points
		}
		snap.Satellites[i] = v
	}

	for i, m := range c.markers {
		x, y := transform.MarkerMap(m.Lat, m.Lon, w, h)
		snap.Markers[i] = MarkerView{
			Marker:   m,
			Position: transform.MarkerPosition(m.Lat, m.Lon, gmst, off, transform.EarthRadius),
			MapX:     x,
			MapY:     y,
		}
	}

	moon := ephemeris.MoonPosition(now)
	sun := ephemeris.SunPosition(now)
	snap.Moon = c.body(moon, gmst)
	snap.Sun = c.body(sun, gmst)

	if hl := c.Highlighted(); hl != nil {
		snap.Highlight = c.highlight(hl, now, gmst, sun)
	}

	metrics.SetSimMultiplier(c.Clock.Multiplier)
	metrics.SetSimPaused(c.Clock.Paused)
	return snap
}

// propagate recomputes Current for the roster. When unselected satellites
// are hidden only the selection and the highlighted satellite move.
func (c *Context) propagate(ctx context.Context, now epoch.Epoch) {
	if c.hideUnselected && c.selected != nil {
		c.selected.Current = c.strategy.Position(c.selected.Elements, now)
		if hl := c.Highlighted(); hl != nil && hl != c.selected {
			hl.Current = c.strategy.Position(hl.Elements, now)
		}
		return
	}

	failed, err := c.pool.PropagateBatch(ctx, c.strategy, c.elements, now, c.positions)
	if err != nil {
		c.logger.Debug("tick propagation cancelled", "error", err)
		return
	}
	if failed > 0 {
		c.logger.Debug("propagation failures", "count", failed, "epoch", float64(now))
	}
	for i, s := range c.satellites {
		s.Current = c.positions[i]
	}
}

func (c *Context) updateFade(frameSeconds float64) {
	if math.IsNaN(frameSeconds) || frameSeconds < 0 {
		return
	}
	if c.hideUnselected && c.selected != nil {
		c.fade = math.Max(0, c.fade-fadeRate*frameSeconds)
	} else {
		c.fade = math.Min(1, c.fade+fadeRate*frameSeconds)
	}
}

func (c *Context) body(pos r3.Vec, gmst float64) BodyView {
	x, y := transform.Project(pos, gmst, c.config.EarthOffsetDeg, c.config.MapWidth, c.config.MapHeight)
	return BodyView{Position: pos, MapX: x, MapY: y}
}

func (c *Context) highlight(s *Satellite, now epoch.Epoch, gmst float64, sun r3.Vec) *Highlight {
	el := s.Elements
	off := c.config.EarthOffsetDeg
	w, h := c.config.MapWidth, c.config.MapHeight
	pos := s.Current

	hl := &Highlight{
		Name:          s.Name,
		NORADID:       s.NORADID,
		PeriodMinutes: el.PeriodSeconds() / 60,
		SpeedKmS:      visViva(el, r3.Norm(pos)),
		AltitudeKm:    r3.Norm(pos) - transform.EarthRadius,
	}

	track := cache.Highlighted(c.strategy, el, now, c.config.OrbitsToDraw, cache.View3D)
	hl.Track = make([]r3.Vec, len(track))
	for i, p := range track {
		hl.Track[i] = p.Position
	}
	hl.MapTrack = mapTrack(cache.Highlighted(c.strategy, el, now, c.config.OrbitsToDraw, cache.ViewMap), off, w, h)

	hl.Periapsis, hl.Apoapsis = apsis.Both(c.strategy, el, now, apsis.View{
		EarthOffsetDeg: off,
		MapWidth:       w,
		MapHeight:      h,
	})

	if fp, ok := transform.ComputeFootprint(pos, 0, 0); ok {
		hl.FootprintHalfAngleDeg = fp.HalfAngle * 180 / math.Pi
		hl.Footprint = fp.Edge()
		hl.FootprintMap = transform.ProjectPoints(hl.Footprint, gmst, off, w, h)
	}

	if pos != (r3.Vec{}) {
		geo := transform.SubSatellite(pos, gmst, off)
		hl.SubSatellite = SubPoint{LatDeg: geo.LatDeg, LonDeg: geo.LonDeg, AltitudeKm: geo.AltM / 1000}
	}
	hl.Lighting, hl.EclipseDepth = ephemeris.Illumination(pos, sun)
	return hl
}

// mapTrack projects each sample with the Earth rotation at its own epoch
// and breaks the line where it wraps around the map.
func mapTrack(samples []cache.Sample, off, w, h float64) [][][2]float64 {
	var (
		lines [][][2]float64
		cur   [][2]float64
	)
	for i, s := range samples {
		x, y := transform.Project(s.Position, s.At.GMST(), off, w, h)
		if i > 0 && math.Abs(x-cur[len(cur)-1][0]) >= w*seamFraction {
			lines = append(lines, cur)
			cur = nil
		}
		cur = append(cur, [2]float64{x, y})
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	return lines
}

// visViva returns the orbital speed in km/s at radius r.
func visViva(el *tle.ElementSet, r float64) float64 {
	if !(r > 0) || !(el.SemiMajorAxis > 0) {
		return 0
	}
	return math.Sqrt(math.Max(0, tle.MU*(2/r-1/el.SemiMajorAxis)))
}
