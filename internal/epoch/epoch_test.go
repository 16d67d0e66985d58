package epoch

import (
	"math"
	"testing"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/julian"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Epoch
		want Epoch
	}{
		{"already normal", 24100.5, 24100.5},
		{"leap year last day stays", 24366.5, 24366.5},
		{"leap year overflow", 24367.5, 25001.5},
		{"common year overflow", 23366.25, 24001.25},
		{"underflow into previous year", 24000.5, 23365.5},
		{"underflow into leap year", 25000.75, 24366.75},
		{"century rollover backwards", 0.5, 99365.5},
		{"multi-year overflow", 23732.0, 25001.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize()
			if !scalar.EqualWithinAbs(float64(got), float64(tt.want), 1e-9) {
				t.Errorf("Normalize(%v) = %.8f, want %.8f", float64(tt.in), float64(got), float64(tt.want))
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for v := -2000.0; v < 60000.0; v += 137.123 {
		once := Epoch(v).Normalize()
		twice := once.Normalize()
		if once != twice {
			t.Fatalf("Normalize not idempotent for %v: %v then %v", v, float64(once), float64(twice))
		}
		day := once.DayOfYear()
		if day < 1 || day >= float64(DaysInYear(once.Year())+1) {
			t.Fatalf("Normalize(%v) left day %v out of range for %d", v, day, once.Year())
		}
	}
}

func TestNormalizeNonFinite(t *testing.T) {
	if got := Epoch(math.Inf(1)).Normalize(); !math.IsInf(float64(got), 1) {
		t.Errorf("Normalize(+Inf) = %v, want +Inf", float64(got))
	}
	if got := Epoch(math.NaN()).Normalize(); !math.IsNaN(float64(got)) {
		t.Errorf("Normalize(NaN) = %v, want NaN", float64(got))
	}
}

func TestCalendarNewYearNoon(t *testing.T) {
	e := Epoch(24001.5)
	year, month, day, hour, min, sec := e.Calendar()
	if year != 2024 || month != 1 || day != 1 || hour != 12 || min != 0 || math.Abs(sec) > 1e-6 {
		t.Errorf("Calendar = %d-%d-%d %d:%d:%f, want 2024-1-1 12:0:0", year, month, day, hour, min, sec)
	}
	if got := e.String(); got != "2024-01-01 12:00:00 UTC" {
		t.Errorf("String() = %q, want %q", got, "2024-01-01 12:00:00 UTC")
	}
}

func TestCalendarMonths(t *testing.T) {
	tests := []struct {
		in         Epoch
		year       int
		month, day int
	}{
		{24060.0, 2024, 2, 29},
		{23060.0, 2023, 3, 1},
		{24366.0, 2024, 12, 31},
		{99365.0, 1999, 12, 31},
		{57001.0, 1957, 1, 1},
		{56001.0, 2056, 1, 1},
	}

	for _, tt := range tests {
		year, month, day, _, _, _ := tt.in.Calendar()
		if year != tt.year || month != tt.month || day != tt.day {
			t.Errorf("Calendar(%v) = %d-%02d-%02d, want %d-%02d-%02d",
				float64(tt.in), year, month, day, tt.year, tt.month, tt.day)
		}
	}
}

func TestTimeRoundTrip(t *testing.T) {
	times := []time.Time{
		time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC),
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(1999, 12, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 2, 6, 4, 1, 30, 0, time.UTC),
	}

	for _, want := range times {
		got := FromTime(want).Time()
		if d := got.Sub(want); d > time.Millisecond || d < -time.Millisecond {
			t.Errorf("FromTime(%v).Time() = %v (diff %v)", want, got, d)
		}
		if u := FromTime(want).Unix(); math.Abs(u-float64(want.Unix())) > 1e-3 {
			t.Errorf("Unix() = %.3f, want %d", u, want.Unix())
		}
	}
}

func TestAdvanceBy(t *testing.T) {
	tests := []struct {
		name    string
		start   Epoch
		seconds float64
		want    Epoch
	}{
		{"zero delta", 24100.25, 0, 24100.25},
		{"half day forward", 24100.25, 43200, 24100.75},
		{"rewind across new year", 24001.25, -86400, 23365.25},
		{"forward across leap new year", 24366.75, 86400, 25001.75},
		{"rewind far", 2001.0, -3 * 365.25 * 86400, 99001.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.start.AdvanceBy(tt.seconds)
			if !scalar.EqualWithinAbs(float64(got), float64(tt.want), 1e-8) {
				t.Errorf("AdvanceBy(%v, %v) = %.8f, want %.8f", float64(tt.start), tt.seconds, float64(got), float64(tt.want))
			}
		})
	}
}

func TestSubMatchesAdvance(t *testing.T) {
	a := Epoch(24365.9)
	b := a.AdvanceBy(5 * 86400)
	if got := Sub(b, a); math.Abs(got-5*86400) > 1e-3 {
		t.Errorf("Sub = %v, want %v", got, 5*86400)
	}
}

func TestJulianDate(t *testing.T) {
	tests := []struct {
		name string
		in   Epoch
		want float64
	}{
		{"J2000.0", 1.5, 2451545.0},
		{"2024 new year noon", 24001.5, 2460311.0},
		{"Vallado example date", FromTime(time.Date(2004, 4, 6, 7, 51, 28, 386009000, time.UTC)), 2453101.827411875},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.JulianDate()
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("JulianDate(%v) = %.9f, want %.9f", float64(tt.in), got, tt.want)
			}
		})
	}
}

func TestJulianDateMatchesMeeus(t *testing.T) {
	for _, ts := range []time.Time{
		time.Date(1987, 6, 19, 12, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 18, 30, 0, 0, time.UTC),
		time.Date(2031, 11, 3, 0, 15, 0, 0, time.UTC),
	} {
		got := FromTime(ts).JulianDate()
		want := julian.TimeToJD(ts)
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("JulianDate(%v) = %.8f, meeus = %.8f", ts, got, want)
		}
	}
}

func angleDiffDeg(a, b float64) float64 {
	d := math.Mod(a-b, 360)
	if d > 180 {
		d -= 360
	} else if d < -180 {
		d += 360
	}
	return math.Abs(d)
}

func TestGMSTMatchesSGP4Library(t *testing.T) {
	for _, ts := range []time.Time{
		time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
		time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC),
		time.Date(2026, 2, 6, 4, 1, 0, 0, time.UTC),
	} {
		got := FromTime(ts).GMST()
		ref := satellite.GSTimeFromDate(ts.Year(), int(ts.Month()), ts.Day(), ts.Hour(), ts.Minute(), ts.Second()) * 180 / math.Pi
		if d := angleDiffDeg(got, ref); d > 1e-3 {
			t.Errorf("GMST(%v) = %.6f deg, go-satellite = %.6f deg", ts, got, ref)
		}
	}
}

func TestGMSTRangeAndWrap(t *testing.T) {
	const stepSec = 60.0
	wantStep := 360.98564736629 * stepSec / 86400.0

	e := Epoch(24100.0)
	prev := e.GMST()
	wraps := 0
	for i := 0; i < 1440; i++ {
		e = e.AdvanceBy(stepSec)
		g := e.GMST()
		if g < 0 || g >= 360 {
			t.Fatalf("GMST out of range: %v", g)
		}
		step := g - prev
		if step < 0 {
			wraps++
			step += 360
		}
		if math.Abs(step-wantStep) > 1e-5 {
			t.Fatalf("GMST step %d = %.8f deg, want %.8f", i, step, wantStep)
		}
		prev = g
	}
	if wraps < 1 || wraps > 2 {
		t.Errorf("GMST wrapped %d times in one day, want 1 or 2", wraps)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Epoch
		wantErr bool
	}{
		{"24100.50000000", 24100.5, false},
		{"98001.00000000", 98001.0, false},
		{" 24001.5", 24001.5, false},
		{"2", 0, true},
		{"AB100.5", 0, true},
		{"24ABC.5", 0, true},
		{"23366.5", 0, true},
		{"24000.5", 0, true},
		{"24NaN", 0, true},
		{"24+Inf", 0, true},
		{"24Infinity", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, float64(got), float64(tt.want))
			}
		})
	}
}
