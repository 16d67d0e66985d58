package cache

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func synthetic(revsPerDay float64) *tle.ElementSet {
	n := revsPerDay * 2 * math.Pi / 86400
	return &tle.ElementSet{
		Epoch:         24100.5,
		Inclination:   51.6 * math.Pi / 180,
		RAAN:          0.3,
		ArgPerigee:    1.1,
		MeanMotion:    n,
		SemiMajorAxis: tle.SemiMajorAxis(n),
	}
}

// countingStrategy records how often each element set is propagated.
type countingStrategy struct {
	calls map[*tle.ElementSet]int
}

func newCountingStrategy() *countingStrategy {
	return &countingStrategy{calls: make(map[*tle.ElementSet]int)}
}

func (c *countingStrategy) Name() string { return "counting" }

func (c *countingStrategy) Position(el *tle.ElementSet, _ epoch.Epoch) r3.Vec {
	c.calls[el]++
	return r3.Vec{X: 7000}
}

func roster(n, samples int) []*Ring {
	rings := make([]*Ring, n)
	for i := range rings {
		rings[i] = NewRing(synthetic(15.5), samples)
	}
	return rings
}

func TestRefreshOneSpansOnePeriod(t *testing.T) {
	el := synthetic(15.5)
	r := NewRing(el, DefaultSamples)
	if r.Cached || len(r.Points) != 0 {
		t.Fatalf("new ring should be empty, got cached=%v points=%d", r.Cached, len(r.Points))
	}

	ref := epoch.Epoch(24101.25)
	RefreshOne(propagation.Kepler{}, r, ref)

	if !r.Cached || r.RefreshedAt != ref {
		t.Fatalf("after refresh: cached=%v refreshed_at=%v", r.Cached, float64(r.RefreshedAt))
	}
	if len(r.Points) != DefaultSamples {
		t.Fatalf("len(Points) = %d, want %d", len(r.Points), DefaultSamples)
	}
	for i, p := range r.Points {
		if !scalar.EqualWithinRel(r3.Norm(p), el.SemiMajorAxis, 1e-9) {
			t.Fatalf("point %d radius %v, want %v", i, r3.Norm(p), el.SemiMajorAxis)
		}
	}

	// First and last samples are one period apart; only J2 drift separates them.
	if d := r3.Norm(r3.Sub(r.Points[0], r.Points[DefaultSamples-1])); d > 100 {
		t.Errorf("ring does not close: endpoints %v km apart", d)
	}
}

func TestRefreshOneSwapsWholeRing(t *testing.T) {
	r := NewRing(synthetic(15.5), 10)
	RefreshOne(propagation.Kepler{}, r, 24101.0)
	old := r.Points

	RefreshOne(propagation.Kepler{}, r, 24101.5)
	if &old[0] == &r.Points[0] {
		t.Fatal("refresh reused the previous backing array")
	}
	if len(r.Points) != 10 {
		t.Errorf("len(Points) = %d, want 10", len(r.Points))
	}
}

func TestRefreshOneDegenerateElements(t *testing.T) {
	el := synthetic(15.5)
	el.MeanMotion = 0
	r := NewRing(el, 10)
	RefreshOne(propagation.Kepler{}, r, 24101.0)
	if r.Cached || r.Points != nil {
		t.Errorf("degenerate ring cached=%v points=%d, want empty", r.Cached, len(r.Points))
	}
}

func TestNewRingMinimumSamples(t *testing.T) {
	if got := NewRing(synthetic(15.5), 0).Samples; got != MinSamples {
		t.Errorf("Samples = %d, want %d", got, MinSamples)
	}
}

func TestSchedulerCompleteness(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		batch int
	}{
		{"single", 1, 50},
		{"exact batch", 50, 50},
		{"one over", 51, 50},
		{"several batches", 123, 50},
		{"small batch", 17, 4},
		{"large roster", 2000, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rings := roster(tt.n, 4)
			s := NewScheduler(newCountingStrategy(), Config{Samples: 4, Batch: tt.batch}, testLogger())

			ticks := (tt.n + tt.batch - 1) / tt.batch
			for i := 0; i < ticks; i++ {
				s.Tick(rings, 24101.0)
				if i < ticks-1 && s.Stats().Cached == tt.n {
					t.Fatalf("all %d rings cached after only %d ticks", tt.n, i+1)
				}
			}
			for i, r := range rings {
				if !r.Cached {
					t.Fatalf("ring %d not cached after %d ticks", i, ticks)
				}
			}
			if got := s.Stats().Cached; got != tt.n {
				t.Errorf("Stats().Cached = %d, want %d", got, tt.n)
			}
			if got := s.Stats().Refreshes; got < int64(tt.n) {
				t.Errorf("Stats().Refreshes = %d, want >= %d", got, tt.n)
			}
		})
	}
}

func TestSchedulerBatchLargerThanRoster(t *testing.T) {
	rings := roster(3, 4)
	strategy := newCountingStrategy()
	s := NewScheduler(strategy, Config{Samples: 4, Batch: 50}, testLogger())

	if got := s.Tick(rings, 24101.0); got != 3 {
		t.Fatalf("Tick refreshed %d rings, want 3", got)
	}
	for i, r := range rings {
		if calls := strategy.calls[r.Elements]; calls != 4 {
			t.Errorf("ring %d propagated %d times in one tick, want 4", i, calls)
		}
	}
}

func TestSchedulerCursorWraps(t *testing.T) {
	rings := roster(7, 2)
	s := NewScheduler(newCountingStrategy(), Config{Samples: 2, Batch: 3}, testLogger())

	for _, want := range []int{3, 6, 2, 5, 1} {
		s.Tick(rings, 24101.0)
		if got := s.Stats().Cursor; got != want {
			t.Fatalf("cursor = %d, want %d", got, want)
		}
	}

	// A shrunken roster pulls the cursor back into range.
	if got := s.Tick(rings[:1], 24101.0); got != 1 {
		t.Errorf("Tick on one ring refreshed %d", got)
	}
	if got := s.Stats().Cursor; got != 0 {
		t.Errorf("cursor after shrink = %d, want 0", got)
	}
}

func TestSchedulerEmptyRoster(t *testing.T) {
	s := NewScheduler(newCountingStrategy(), Config{}, testLogger())
	if got := s.Tick(nil, 24101.0); got != 0 {
		t.Errorf("Tick(nil) = %d, want 0", got)
	}
	if cfg := s.Config(); cfg.Samples != DefaultSamples || cfg.Batch != DefaultBatch {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestSchedulerReset(t *testing.T) {
	rings := roster(5, 3)
	s := NewScheduler(newCountingStrategy(), Config{Samples: 3, Batch: 5}, testLogger())
	s.Tick(rings, 24101.0)

	s.Reset(rings)
	for i, r := range rings {
		if r.Cached {
			t.Errorf("ring %d still cached after reset", i)
		}
	}
	if st := s.Stats(); st.Cached != 0 || st.Cursor != 0 {
		t.Errorf("stats after reset = %+v", st)
	}
}

func TestSegments(t *testing.T) {
	tests := []struct {
		orbits float64
		view   View
		want   int
	}{
		{1, View3D, 400},
		{1, ViewMap, 400},
		{0.1, View3D, 90},
		{0.1, ViewMap, 50},
		{0.2, View3D, 90},
		{0.2, ViewMap, 80},
		{2.5, View3D, 1000},
		{20, ViewMap, 4000},
	}

	for _, tt := range tests {
		if got := Segments(tt.orbits, tt.view); got != tt.want {
			t.Errorf("Segments(%v, %v) = %d, want %d", tt.orbits, tt.view, got, tt.want)
		}
	}
}

func TestHighlighted(t *testing.T) {
	el := synthetic(15.5)
	ref := epoch.Epoch(24101.0)
	const orbits = 2.0

	track := Highlighted(propagation.Kepler{}, el, ref, orbits, ViewMap)
	if len(track) != Segments(orbits, ViewMap)+1 {
		t.Fatalf("len(track) = %d, want %d", len(track), Segments(orbits, ViewMap)+1)
	}
	if track[0].At != ref {
		t.Errorf("first sample at %v, want %v", float64(track[0].At), float64(ref))
	}
	span := epoch.Sub(track[len(track)-1].At, ref)
	if want := orbits * el.PeriodSeconds(); math.Abs(span-want) > 1e-3 {
		t.Errorf("track spans %v s, want %v", span, want)
	}
	if got := Highlighted(propagation.Kepler{}, nil, ref, orbits, View3D); got != nil {
		t.Errorf("nil elements gave %d samples", len(got))
	}
}
