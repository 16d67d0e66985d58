package passes

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/aweeri/TLEscope/internal/transform"
)

// Real ISS TLE (epoch Feb 2025, valid for testing pass geometry).
const (
	issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993"
	issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func issTarget(t testing.TB) Target {
	t.Helper()
	el, err := tle.ParseElements(issLine1, issLine2)
	if err != nil {
		t.Fatalf("ParseElements: %v", err)
	}
	return Target{Name: "ISS (ZARYA)", NORADID: 25544, Elements: &el}
}

// NYC marker.
var nycObserver = transform.NewObserverPosition(40.7128, -74.006, 10)

var feb14Noon = epoch.FromTime(time.Date(2025, 2, 14, 12, 0, 0, 0, time.UTC))

func TestPredictISS(t *testing.T) {
	strategies := []propagation.Strategy{propagation.Kepler{}, propagation.NewSGP4(testLogger())}

	for _, strategy := range strategies {
		t.Run(strategy.Name(), func(t *testing.T) {
			req := Request{
				Observer:     nycObserver,
				Targets:      []Target{issTarget(t)},
				Strategy:     strategy,
				Start:        feb14Noon,
				HorizonHours: 24,
				MinElevation: 0,
				MaxPasses:    10,
			}

			results := Predict(context.Background(), req)
			if len(results) != 1 {
				t.Fatalf("expected 1 satellite result, got %d", len(results))
			}

			sat := results[0]
			if sat.NORADID != 25544 || sat.Name != "ISS (ZARYA)" {
				t.Errorf("result identity = %d %q", sat.NORADID, sat.Name)
			}
			if sat.Error != "" {
				t.Fatalf("unexpected error: %s", sat.Error)
			}

			// ISS in LEO should have multiple passes over 24h from NYC.
			if len(sat.Passes) == 0 {
				t.Fatal("expected at least 1 ISS pass over NYC in 24h")
			}

			for i, p := range sat.Passes {
				if p.DurationSeconds < minPassDurSec {
					t.Errorf("pass %d: duration %.1fs too short", i, p.DurationSeconds)
				}
				if p.MaxElevation <= 0 || p.MaxElevation > 90 {
					t.Errorf("pass %d: max elevation %.2f out of (0, 90]", i, p.MaxElevation)
				}
				for _, az := range []float64{p.AzimuthAtMax, p.StartAzimuth, p.EndAzimuth} {
					if az < 0 || az >= 360 {
						t.Errorf("pass %d: azimuth %.2f out of range", i, az)
					}
				}
				if !p.StartTime.Before(p.MaxElevationTime) || !p.MaxElevationTime.Before(p.EndTime) {
					t.Errorf("pass %d: time ordering violated: start=%v max=%v end=%v", i, p.StartTime, p.MaxElevationTime, p.EndTime)
				}
				if d := p.StartEpoch.Time().Sub(p.StartTime); d > time.Millisecond || d < -time.Millisecond {
					t.Errorf("pass %d: start epoch and start time differ by %v", i, d)
				}

				if len(p.GroundTrack) == 0 {
					t.Errorf("pass %d: expected ground track points, got none", i)
				}
				for j, gt := range p.GroundTrack {
					if gt.Latitude < -90 || gt.Latitude > 90 || gt.Longitude < -180 || gt.Longitude > 180 {
						t.Errorf("pass %d gt %d: lat/lon %.2f/%.2f out of range", i, j, gt.Latitude, gt.Longitude)
					}
					if gt.Altitude < 100000 || gt.Altitude > 1000000 {
						t.Errorf("pass %d gt %d: altitude %.0f m out of LEO range", i, j, gt.Altitude)
					}
				}
			}
		})
	}
}

func TestPredictMinElevationFilter(t *testing.T) {
	base := Request{
		Observer:     nycObserver,
		Targets:      []Target{issTarget(t)},
		Start:        feb14Noon,
		HorizonHours: 48,
		MaxPasses:    20,
	}
	high := base
	high.MinElevation = 45

	nLow := len(Predict(context.Background(), base)[0].Passes)
	nHigh := len(Predict(context.Background(), high)[0].Passes)

	if nLow == 0 {
		t.Fatal("expected passes with min_elevation=0")
	}
	if nHigh >= nLow {
		t.Errorf("min_elevation=45 passes (%d) should be fewer than min_elevation=0 passes (%d)", nHigh, nLow)
	}
}

func TestPredictMaxPasses(t *testing.T) {
	req := Request{
		Observer:     nycObserver,
		Targets:      []Target{issTarget(t)},
		Start:        feb14Noon,
		HorizonHours: 48,
		MaxPasses:    2,
	}
	if n := len(Predict(context.Background(), req)[0].Passes); n > 2 {
		t.Errorf("got %d passes, want at most 2", n)
	}
}

func TestPredictCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := Request{
		Observer:     nycObserver,
		Targets:      []Target{issTarget(t)},
		Start:        epoch.Now(),
		HorizonHours: 24,
		MaxPasses:    10,
	}

	results := Predict(ctx, req)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestPredictInvalidElements(t *testing.T) {
	degenerate := issTarget(t)
	el := *degenerate.Elements
	el.MeanMotion = 0
	degenerate.Elements = &el
	degenerate.Name = "BAD SAT"

	req := Request{
		Observer:     nycObserver,
		Targets:      []Target{issTarget(t), degenerate, {Name: "EMPTY"}},
		Start:        feb14Noon,
		HorizonHours: 24,
		MaxPasses:    10,
	}

	results := Predict(context.Background(), req)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Error != "" {
		t.Errorf("ISS should succeed, got error: %s", results[0].Error)
	}
	for _, r := range results[1:] {
		if r.Error == "" {
			t.Errorf("%s should report an error", r.Name)
		}
	}
}

// haversineKm computes the great-circle distance (km) between two geodetic points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) + math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return R * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// maxGroundDistKm returns the maximum great-circle distance (km) between the
// marker and the sub-satellite point for an elevation (degrees) and altitude
// (meters): ρ = acos(R·cos(ε)/(R+h)) − ε.
func maxGroundDistKm(elevDeg, altM float64) float64 {
	const R = 6371.0
	elevRad := elevDeg * math.Pi / 180
	arg := math.Min(1, R*math.Cos(elevRad)/(R+altM/1000))
	return R * math.Max(0, math.Acos(arg)-elevRad)
}

func TestGroundTrackPhysicalConsistency(t *testing.T) {
	const obsLatDeg, obsLonDeg = 27.5867, -82.4251

	req := Request{
		Observer:     transform.NewObserverPosition(obsLatDeg, obsLonDeg, 0),
		Targets:      []Target{issTarget(t)},
		Strategy:     propagation.NewSGP4(testLogger()),
		Start:        epoch.FromTime(time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC)),
		HorizonHours: 24,
		MaxPasses:    20,
	}

	sat := Predict(context.Background(), req)[0]
	if sat.Error != "" {
		t.Fatalf("satellite error: %s", sat.Error)
	}
	if len(sat.Passes) == 0 {
		t.Fatal("no passes found in 24h")
	}

	for pi, p := range sat.Passes {
		for gi, gt := range p.GroundTrack {
			dist := haversineKm(obsLatDeg, obsLonDeg, gt.Latitude, gt.Longitude)
			maxPossible := maxGroundDistKm(gt.Elevation, gt.Altitude)
			if maxPossible > 0 && dist > maxPossible*1.5 {
				t.Errorf("pass %d gt[%d]: dist %.0fkm exceeds max physical %.0fkm (el=%.1f° alt=%.0fm)",
					pi, gi, dist, maxPossible, gt.Elevation, gt.Altitude)
			}
		}
	}
}

func BenchmarkPredict100Sats24h(b *testing.B) {
	iss := issTarget(b)
	targets := make([]Target, 100)
	for i := range targets {
		targets[i] = iss
		targets[i].NORADID = 25544 + i
	}

	req := Request{
		Observer:     nycObserver,
		Targets:      targets,
		Start:        feb14Noon,
		HorizonHours: 24,
		MinElevation: 10,
		MaxPasses:    10,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Predict(context.Background(), req)
	}
}
