package propagation

import (
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/tle"
	"gonum.org/v1/gonum/spatial/r3"
)

// SGP4 library choice: github.com/joshuaferrara/go-satellite
//
// Propagate() takes Satellite by value so SGP4 error codes are not visible
// to the caller. Failures are detected by checking the output for NaN/Inf
// and implausible magnitudes. The library takes whole seconds, so this
// strategy has one-second time resolution.

// sgp4Record is one initialized satellite. warned is set once a failure
// for it has been logged.
type sgp4Record struct {
	sat    satellite.Satellite
	err    error
	warned bool
}

// SGP4 propagates with the SGP4/SDP4 model. Initialized satellites are
// cached per element set.
type SGP4 struct {
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*sgp4Record
}

// NewSGP4 creates an SGP4 strategy with an empty init cache.
func NewSGP4(logger *slog.Logger) *SGP4 {
	return &SGP4{
		logger: logger,
		cache:  make(map[string]*sgp4Record),
	}
}

// Name implements Strategy.
func (s *SGP4) Name() string { return StrategySGP4 }

func recordKey(el *tle.ElementSet) string {
	return el.Line1 + "\n" + el.Line2
}

// Prune implements Pruner. Records for element sets still in use survive,
// so a refresh that repeats most lines does not re-initialize them.
func (s *SGP4) Prune(keep []*tle.ElementSet) {
	live := make(map[string]bool, len(keep))
	for _, el := range keep {
		live[recordKey(el)] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.cache)
	for key := range s.cache {
		if !live[key] {
			delete(s.cache, key)
		}
	}
	s.logger.Debug("sgp4 cache pruned", "before", before, "after", len(s.cache))
}

// record returns the cached init for el, building it on first use
// (double-checked locking).
func (s *SGP4) record(el *tle.ElementSet) *sgp4Record {
	key := recordKey(el)

	s.mu.RLock()
	rec, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return rec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.cache[key]; ok {
		return rec
	}

	rec = &sgp4Record{}
	if err := validateTLELines(el.Line1, el.Line2); err != nil {
		rec.err = err
	} else {
		rec.sat = satellite.TLEToSat(el.Line1, el.Line2, satellite.GravityWGS84)
		if rec.sat.Error != 0 {
			rec.err = fmt.Errorf("sgp4 init failed: code=%d %s", rec.sat.Error, rec.sat.ErrorStr)
		}
	}
	s.cache[key] = rec
	return rec
}

// fail counts a failure and logs it once per element set.
func (s *SGP4) fail(rec *sgp4Record, el *tle.ElementSet, err error) {
	metrics.IncPropagationFailures(StrategySGP4)

	s.mu.Lock()
	warned := rec.warned
	rec.warned = true
	s.mu.Unlock()
	if !warned {
		s.logger.Warn("sgp4 propagation failed", "epoch", el.Epoch.String(), "error", err)
	}
}

// Position implements Strategy. The TEME output is mapped to the engine
// frame.
func (s *SGP4) Position(el *tle.ElementSet, at epoch.Epoch) r3.Vec {
	rec := s.record(el)
	if rec.err != nil {
		s.fail(rec, el, rec.err)
		return r3.Vec{}
	}

	t := at.Time().Round(time.Second)
	pos, _ := satellite.Propagate(rec.sat, t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())

	v := r3.Vec{X: pos.X, Y: pos.Y, Z: pos.Z}
	if err := checkPosition(v); err != nil {
		s.fail(rec, el, err)
		return r3.Vec{}
	}
	return ToEngine(v)
}

// checkPosition rejects NaN/Inf output and magnitudes outside ~6200 km
// to ~500000 km.
func checkPosition(v r3.Vec) error {
	if math.IsNaN(v.X) || math.IsNaN(v.Y) || math.IsNaN(v.Z) ||
		math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0) {
		return fmt.Errorf("output is NaN/Inf")
	}
	if mag := r3.Norm(v); mag < 6200.0 || mag > 500000.0 {
		return fmt.Errorf("unreasonable position magnitude %.1f km", mag)
	}
	return nil
}

// validateTLELines performs basic format validation on TLE lines.
// go-satellite calls log.Fatal on parse errors, so garbage must never
// reach it.
func validateTLELines(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}
