package tle

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/aweeri/TLEscope/internal/epoch"
)

const deg2rad = math.Pi / 180.0

// Fixed column layout, 0-indexed [start, end).
var (
	colEpoch        = [2]int{18, 32}
	colInclination  = [2]int{8, 16}
	colRAAN         = [2]int{17, 25}
	colEccentricity = [2]int{26, 33}
	colArgPerigee   = [2]int{34, 42}
	colMeanAnomaly  = [2]int{43, 51}
	colMeanMotion   = [2]int{52, 63}
)

// column returns the trimmed contents of line[c[0]:c[1]].
func column(line string, c [2]int) (string, error) {
	if len(line) < c[1] {
		return "", fmt.Errorf("line length %d, need at least %d", len(line), c[1])
	}
	return strings.TrimSpace(line[c[0]:c[1]]), nil
}

func columnFloat(line string, c [2]int, field string) (float64, error) {
	s, err := column(line, c)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, s, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s %q: not finite", field, s)
	}
	return v, nil
}

// ParseElements extracts the mean elements from the two data lines of a
// record. Angles are converted to radians and mean motion to rad/s.
func ParseElements(line1, line2 string) (ElementSet, error) {
	epochStr, err := column(line1, colEpoch)
	if err != nil {
		return ElementSet{}, fmt.Errorf("epoch: %w", err)
	}
	ep, err := epoch.Parse(epochStr)
	if err != nil {
		return ElementSet{}, err
	}

	incl, err := columnFloat(line2, colInclination, "inclination")
	if err != nil {
		return ElementSet{}, err
	}
	raan, err := columnFloat(line2, colRAAN, "raan")
	if err != nil {
		return ElementSet{}, err
	}

	// Eccentricity is stored with an implied leading decimal point.
	eccStr, err := column(line2, colEccentricity)
	if err != nil {
		return ElementSet{}, fmt.Errorf("eccentricity: %w", err)
	}
	ecc, err := strconv.ParseFloat("0."+eccStr, 64)
	if err != nil {
		return ElementSet{}, fmt.Errorf("invalid eccentricity %q: %w", eccStr, err)
	}

	argp, err := columnFloat(line2, colArgPerigee, "argument of perigee")
	if err != nil {
		return ElementSet{}, err
	}
	ma, err := columnFloat(line2, colMeanAnomaly, "mean anomaly")
	if err != nil {
		return ElementSet{}, err
	}
	revs, err := columnFloat(line2, colMeanMotion, "mean motion")
	if err != nil {
		return ElementSet{}, err
	}

	switch {
	case incl < 0 || incl > 180:
		return ElementSet{}, fmt.Errorf("inclination %v out of range [0, 180]", incl)
	case !(ecc >= 0 && ecc < 1):
		return ElementSet{}, fmt.Errorf("eccentricity %v out of range [0, 1)", ecc)
	case revs <= 0:
		return ElementSet{}, fmt.Errorf("mean motion %v must be positive", revs)
	}

	n := revs * 2 * math.Pi / 86400.0
	return ElementSet{
		Epoch:         ep,
		Inclination:   incl * deg2rad,
		RAAN:          raan * deg2rad,
		Eccentricity:  ecc,
		ArgPerigee:    argp * deg2rad,
		MeanAnomaly:   ma * deg2rad,
		MeanMotion:    n,
		SemiMajorAxis: SemiMajorAxis(n),
		Line1:         line1,
		Line2:         line2,
	}, nil
}

// SemiMajorAxis derives a (km) from mean motion n (rad/s): a = (µ/n²)^(1/3).
func SemiMajorAxis(n float64) float64 {
	return math.Cbrt(MU / (n * n))
}
