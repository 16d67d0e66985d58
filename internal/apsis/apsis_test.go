package apsis

import (
	"math"
	"testing"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/aweeri/TLEscope/internal/transform"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func ellipse(ecc, meanAnomaly float64) *tle.ElementSet {
	n := 12.0 * 2 * math.Pi / 86400
	return &tle.ElementSet{
		Epoch:         24100.5,
		Inclination:   0.9,
		RAAN:          2.0,
		Eccentricity:  ecc,
		ArgPerigee:    0.4,
		MeanAnomaly:   meanAnomaly,
		MeanMotion:    n,
		SemiMajorAxis: tle.SemiMajorAxis(n),
	}
}

// angleDist is the circular distance between two angles.
func angleDist(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	return math.Min(d, 2*math.Pi-d)
}

func TestNextApsisTime(t *testing.T) {
	el := ellipse(0.15, 1.0)
	starts := []epoch.Epoch{el.Epoch, el.Epoch.AdvanceBy(1234), el.Epoch.AdvanceBy(-86400 * 3), 24365.99}

	for _, now := range starts {
		for _, apo := range []bool{false, true} {
			at := NextApsisTime(el, now, apo)

			dt := epoch.Sub(at, now)
			if dt < -1e-3 || dt >= el.PeriodSeconds() {
				t.Fatalf("now %v apo %v: passage %v s ahead, want [0, %v)", float64(now), apo, dt, el.PeriodSeconds())
			}

			want := 0.0
			if apo {
				want = math.Pi
			}
			if d := angleDist(MeanAnomalyAt(el, at), want); d > 1e-6 {
				t.Errorf("now %v apo %v: mean anomaly at passage off by %v rad", float64(now), apo, d)
			}
		}
	}
}

func TestNextApsisTimeAtApsis(t *testing.T) {
	el := ellipse(0.1, 0)
	if got := NextApsisTime(el, el.Epoch, false); got != el.Epoch {
		t.Errorf("NextApsisTime at periapsis = %v, want %v", float64(got), float64(el.Epoch))
	}

	// A quarter orbit past periapsis the next apoapsis is a quarter orbit away.
	el = ellipse(0.1, math.Pi/2)
	got := epoch.Sub(NextApsisTime(el, el.Epoch, true), el.Epoch)
	if !scalar.EqualWithinAbs(got, el.PeriodSeconds()/4, 1e-3) {
		t.Errorf("time to apoapsis = %v s, want %v", got, el.PeriodSeconds()/4)
	}
}

func TestApsisRadii(t *testing.T) {
	el := ellipse(0.2, 2.5)
	var k propagation.Kepler

	now := el.Epoch.AdvanceBy(5000)
	rp := r3.Norm(k.Position(el, NextApsisTime(el, now, false)))
	ra := r3.Norm(k.Position(el, NextApsisTime(el, now, true)))

	if !scalar.EqualWithinRel(rp, el.SemiMajorAxis*0.8, 1e-6) {
		t.Errorf("periapsis radius = %v, want %v", rp, el.SemiMajorAxis*0.8)
	}
	if !scalar.EqualWithinRel(ra, el.SemiMajorAxis*1.2, 1e-6) {
		t.Errorf("apoapsis radius = %v, want %v", ra, el.SemiMajorAxis*1.2)
	}
}

func TestLocate(t *testing.T) {
	el := ellipse(0.05, 4.0)
	view := View{EarthOffsetDeg: 7, MapWidth: 2048, MapHeight: 1024}
	now := el.Epoch.AdvanceBy(600)

	peri, apo := Both(propagation.Kepler{}, el, now, view)

	for _, m := range []Marker{peri, apo} {
		at := epoch.Epoch(m.Epoch)
		x, y := transform.Project(m.Position, at.GMST(), view.EarthOffsetDeg, view.MapWidth, view.MapHeight)
		if m.MapX != x || m.MapY != y {
			t.Errorf("%s map point (%v, %v), want (%v, %v)", m.Kind, m.MapX, m.MapY, x, y)
		}
		if !scalar.EqualWithinAbs(m.AltitudeKm, r3.Norm(m.Position)-transform.EarthRadius, 1e-9) {
			t.Errorf("%s altitude = %v", m.Kind, m.AltitudeKm)
		}
		if m.DateTime != at.String() {
			t.Errorf("%s DateTime = %q", m.Kind, m.DateTime)
		}
	}

	if peri.Kind != Periapsis || apo.Kind != Apoapsis {
		t.Errorf("kinds = %v, %v", peri.Kind, apo.Kind)
	}
	if apo.AltitudeKm <= peri.AltitudeKm {
		t.Errorf("apoapsis altitude %v not above periapsis %v", apo.AltitudeKm, peri.AltitudeKm)
	}
}

func TestKindText(t *testing.T) {
	b, _ := Apoapsis.MarshalText()
	if string(b) != "apoapsis" || Periapsis.String() != "periapsis" {
		t.Errorf("kind names = %q, %q", b, Periapsis.String())
	}
}
