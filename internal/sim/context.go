// Package sim owns the simulation state: the satellite roster, ground
// markers, simulated clock and selection. A Context is driven by exactly
// one goroutine (see Runner); readers only ever see Snapshots.
package sim

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aweeri/TLEscope/internal/cache"
	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrCapacityExceeded is returned when the roster or marker list is full.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrUnknownSatellite is returned when a control names no roster entry.
var ErrUnknownSatellite = errors.New("unknown satellite")

// Defaults.
const (
	DefaultMaxSatellites = 2000
	DefaultMaxMarkers    = 100
	DefaultOrbitsToDraw  = 3.0
	DefaultMapWidth      = 2048.0
	DefaultMapHeight     = 1024.0

	// fadeRate is how fast unselected satellites fade, in alpha per second.
	fadeRate = 3.0
)

// Config holds simulation settings.
type Config struct {
	MaxSatellites  int
	MaxMarkers     int
	EarthOffsetDeg float64
	OrbitsToDraw   float64
	MapWidth       float64
	MapHeight      float64
	Workers        int
	Cache          cache.Config
}

func (c Config) withDefaults() Config {
	if c.MaxSatellites <= 0 {
		c.MaxSatellites = DefaultMaxSatellites
	}
	if c.MaxMarkers <= 0 {
		c.MaxMarkers = DefaultMaxMarkers
	}
	if !(c.OrbitsToDraw > 0) {
		c.OrbitsToDraw = DefaultOrbitsToDraw
	}
	if !(c.MapWidth > 0) {
		c.MapWidth = DefaultMapWidth
	}
	if !(c.MapHeight > 0) {
		c.MapHeight = DefaultMapHeight
	}
	return c
}

// Satellite is one roster entry. Elements never change after insertion;
// Current is recomputed every tick.
type Satellite struct {
	Name     string
	NORADID  int
	Elements *tle.ElementSet
	Ring     *cache.Ring
	Current  r3.Vec
}

// Marker is a named ground location.
type Marker struct {
	Name string  `json:"name" mapstructure:"name"`
	Lat  float64 `json:"lat" mapstructure:"lat"`
	Lon  float64 `json:"lon" mapstructure:"lon"`
}

// Context is the simulation state. It is not safe for concurrent use.
type Context struct {
	config    Config
	logger    *slog.Logger
	strategy  propagation.Strategy
	scheduler *cache.Scheduler
	pool      *propagation.WorkerPool

	Clock Clock

	satellites []*Satellite
	rings      []*cache.Ring
	elements   []*tle.ElementSet
	positions  []r3.Vec
	markers    []Marker

	selected       *Satellite
	hovered        *Satellite
	hideUnselected bool
	fade           float64
}

// NewContext creates an empty simulation starting at start.
func NewContext(config Config, strategy propagation.Strategy, start epoch.Epoch, logger *slog.Logger) *Context {
	config = config.withDefaults()
	logger.Info("sim config",
		"max_satellites", config.MaxSatellites,
		"max_markers", config.MaxMarkers,
		"earth_rotation_offset", config.EarthOffsetDeg,
		"orbits_to_draw", config.OrbitsToDraw,
		"strategy", strategy.Name(),
	)

	return &Context{
		config:    config,
		logger:    logger,
		strategy:  strategy,
		scheduler: cache.NewScheduler(strategy, config.Cache, logger),
		pool:      propagation.NewWorkerPool(config.Workers, logger),
		Clock:     NewClock(start),
		fade:      1,
	}
}

// Config returns the effective configuration.
func (c *Context) Config() Config { return c.config }

// Strategy returns the propagation strategy.
func (c *Context) Strategy() propagation.Strategy { return c.strategy }

// AddSatellite appends an entry to the roster.
func (c *Context) AddSatellite(e tle.Entry) (*Satellite, error) {
	if len(c.satellites) >= c.config.MaxSatellites {
		metrics.IncCapacityRejected("satellite")
		return nil, fmt.Errorf("%w: roster holds %d satellites", ErrCapacityExceeded, c.config.MaxSatellites)
	}

	el := e.Elements
	s := &Satellite{
		Name:     e.Name,
		NORADID:  e.NORADID,
		Elements: &el,
		Ring:     c.scheduler.NewRing(&el),
	}
	c.satellites = append(c.satellites, s)
	c.rings = append(c.rings, s.Ring)
	c.elements = append(c.elements, s.Elements)
	c.positions = append(c.positions, r3.Vec{})
	metrics.SetSimSatellites(len(c.satellites))
	return s, nil
}

// Load adds entries until the roster is full and returns how many were
// added. Entries past capacity are dropped with one warning.
func (c *Context) Load(entries []tle.Entry) int {
	added := 0
	for i, e := range entries {
		if _, err := c.AddSatellite(e); err != nil {
			c.logger.Warn("roster full, dropping remaining satellites",
				"added", added,
				"dropped", len(entries)-i,
				"error", err,
			)
			for range entries[i+1:] {
				metrics.IncCapacityRejected("satellite")
			}
			break
		}
		added++
	}
	return added
}

// AddMarker appends a ground marker.
func (c *Context) AddMarker(m Marker) error {
	if len(c.markers) >= c.config.MaxMarkers {
		metrics.IncCapacityRejected("marker")
		return fmt.Errorf("%w: %d markers", ErrCapacityExceeded, c.config.MaxMarkers)
	}
	c.markers = append(c.markers, m)
	metrics.SetSimMarkers(len(c.markers))
	return nil
}

// LoadMarkers adds markers until the list is full and returns how many
// were added.
func (c *Context) LoadMarkers(ms []Marker) int {
	added := 0
	for _, m := range ms {
		if err := c.AddMarker(m); err != nil {
			c.logger.Warn("marker list full", "added", added, "dropped", len(ms)-added, "error", err)
			break
		}
		added++
	}
	return added
}

// Satellites returns the roster. The slice must not be modified.
func (c *Context) Satellites() []*Satellite { return c.satellites }

// Markers returns the ground markers. The slice must not be modified.
func (c *Context) Markers() []Marker { return c.markers }

// Find returns the first satellite named name, or nil.
func (c *Context) Find(name string) *Satellite {
	for _, s := range c.satellites {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Select marks the named satellite as selected. An empty name clears the
// selection.
func (c *Context) Select(name string) error {
	if name == "" {
		c.selected = nil
		return nil
	}
	s := c.Find(name)
	if s == nil {
		return fmt.Errorf("%w: %q", ErrUnknownSatellite, name)
	}
	c.selected = s
	return nil
}

// Hover marks the named satellite as hovered. An empty name clears it.
func (c *Context) Hover(name string) error {
	if name == "" {
		c.hovered = nil
		return nil
	}
	s := c.Find(name)
	if s == nil {
		return fmt.Errorf("%w: %q", ErrUnknownSatellite, name)
	}
	c.hovered = s
	return nil
}

// SetHideUnselected toggles whether only the selected satellite is
// propagated.
func (c *Context) SetHideUnselected(hide bool) { c.hideUnselected = hide }

// HideUnselected reports the current setting.
func (c *Context) HideUnselected() bool { return c.hideUnselected }

// Highlighted returns the hovered satellite, else the selected one.
func (c *Context) Highlighted() *Satellite {
	if c.hovered != nil {
		return c.hovered
	}
	return c.selected
}

// Replace swaps the roster for entries, keeping selection and hover by
// name. Every ring starts uncached.
func (c *Context) Replace(entries []tle.Entry) int {
	var selName, hovName string
	if c.selected != nil {
		selName = c.selected.Name
	}
	if c.hovered != nil {
		hovName = c.hovered.Name
	}

	c.scheduler.Reset(c.rings)
	c.satellites, c.rings = nil, nil
	c.elements, c.positions = nil, nil
	c.selected, c.hovered = nil, nil

	n := c.Load(entries)
	if p, ok := c.strategy.(propagation.Pruner); ok {
		p.Prune(c.elements)
	}
	if selName != "" {
		c.selected = c.Find(selName)
	}
	if hovName != "" {
		c.hovered = c.Find(hovName)
	}
	metrics.SetSimSatellites(len(c.satellites))
	return n
}

// CacheStats returns the orbit cache statistics.
func (c *Context) CacheStats() cache.Stats { return c.scheduler.Stats() }
