package cache

import (
	"log/slog"
	"sync/atomic"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
)

// DefaultBatch is how many rings one tick refreshes.
const DefaultBatch = 50

// Config holds orbit cache settings.
type Config struct {
	Samples int // points per ring (default: 90)
	Batch   int // rings refreshed per tick (default: 50)
}

// Scheduler walks the roster with a cursor and refreshes a fixed batch of
// rings each tick.
type Scheduler struct {
	strategy propagation.Strategy
	config   Config
	logger   *slog.Logger

	cursor int

	// Counters (lock-free).
	refreshes atomic.Int64
	cached    atomic.Int64
	position  atomic.Int64
	ticks     atomic.Int64
}

// NewScheduler creates a scheduler. Zero config values take the defaults.
func NewScheduler(strategy propagation.Strategy, config Config, logger *slog.Logger) *Scheduler {
	if config.Samples < MinSamples {
		config.Samples = DefaultSamples
	}
	if config.Batch <= 0 {
		config.Batch = DefaultBatch
	}

	logger.Info("orbit cache initialized",
		"strategy", strategy.Name(),
		"samples", config.Samples,
		"batch", config.Batch,
	)

	return &Scheduler{
		strategy: strategy,
		config:   config,
		logger:   logger,
	}
}

// Config returns the effective configuration.
func (s *Scheduler) Config() Config {
	return s.config
}

// NewRing returns an empty ring for el sized for this scheduler.
func (s *Scheduler) NewRing(el *tle.ElementSet) *Ring {
	return NewRing(el, s.config.Samples)
}

// SetStrategy swaps the propagation strategy used for later refreshes.
func (s *Scheduler) SetStrategy(strategy propagation.Strategy) {
	s.strategy = strategy
}

// Tick refreshes up to Batch rings starting at the cursor, wrapping around
// the roster. Each ring is refreshed at most once per call. It returns the
// number of rings refreshed.
func (s *Scheduler) Tick(rings []*Ring, ref epoch.Epoch) int {
	n := len(rings)
	if n == 0 {
		s.cursor = 0
		return 0
	}
	if s.cursor >= n {
		s.cursor %= n
	}

	count := min(s.config.Batch, n)
	for k := 0; k < count; k++ {
		RefreshOne(s.strategy, rings[(s.cursor+k)%n], ref)
	}
	s.cursor = (s.cursor + count) % n

	cached := 0
	for _, r := range rings {
		if r.Cached {
			cached++
		}
	}

	s.refreshes.Add(int64(count))
	s.cached.Store(int64(cached))
	s.position.Store(int64(s.cursor))
	s.ticks.Add(1)

	metrics.AddOrbitCacheRefreshes(count)
	metrics.SetOrbitCacheCached(cached)
	metrics.SetOrbitCacheCursor(s.cursor)

	return count
}

// Reset rewinds the cursor and invalidates every ring, as after a dataset
// change.
func (s *Scheduler) Reset(rings []*Ring) {
	for _, r := range rings {
		r.Invalidate()
	}
	s.cursor = 0
	s.cached.Store(0)
	s.position.Store(0)
	metrics.SetOrbitCacheCached(0)
	metrics.SetOrbitCacheCursor(0)
	s.logger.Debug("orbit cache reset", "rings", len(rings))
}

// Stats returns current cache statistics.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Refreshes: s.refreshes.Load(),
		Cached:    int(s.cached.Load()),
		Cursor:    int(s.position.Load()),
		Ticks:     s.ticks.Load(),
	}
}

// Stats holds orbit cache statistics for the API.
type Stats struct {
	Refreshes int64 `json:"refreshes"`
	Cached    int   `json:"cached"`
	Cursor    int   `json:"cursor"`
	Ticks     int64 `json:"ticks"`
}
