package tle

import (
	"math"
	"time"

	"github.com/aweeri/TLEscope/internal/epoch"
)

// MU is Earth's gravitational parameter in km³/s².
const MU = 398600.4418

// ElementSet holds the mean orbital elements of one satellite. It is
// immutable once parsed.
type ElementSet struct {
	Epoch         epoch.Epoch
	Inclination   float64 // radians, [0, π]
	RAAN          float64 // radians
	Eccentricity  float64 // [0, 1)
	ArgPerigee    float64 // radians
	MeanAnomaly   float64 // radians, at Epoch
	MeanMotion    float64 // radians per second
	SemiMajorAxis float64 // km

	// Source lines, kept for strategies that consume raw TLEs (SGP4).
	Line1 string
	Line2 string
}

// PeriodSeconds returns the orbital period.
func (el *ElementSet) PeriodSeconds() float64 {
	return 2 * math.Pi / el.MeanMotion
}

// PeriodDays returns the orbital period in epoch-day units.
func (el *ElementSet) PeriodDays() float64 {
	return el.PeriodSeconds() / 86400.0
}

// RevsPerDay converts the mean motion back to revolutions per day.
func (el *ElementSet) RevsPerDay() float64 {
	return el.MeanMotion * 86400.0 / (2 * math.Pi)
}

// Entry is one parsed three-line record.
type Entry struct {
	NORADID  int
	Name     string
	Elements ElementSet
}

// Diagnostic describes one record skipped during ingestion.
type Diagnostic struct {
	Index  int    `json:"index"` // line index of the record's name line
	Name   string `json:"name"`  // trimmed name line, may be empty
	Reason string `json:"reason"`
}

// Report summarizes an ingestion run.
type Report struct {
	Parsed  int
	Skipped []Diagnostic
}

// EpochRange represents the minimum and maximum element epochs in a dataset.
type EpochRange struct {
	Min epoch.Epoch
	Max epoch.Epoch
}

// Dataset represents a complete set of element records from a source.
type Dataset struct {
	Source     string
	FetchedAt  time.Time
	EpochRange EpochRange
	Satellites []Entry
}

// NewDataset builds a dataset and computes its epoch range.
func NewDataset(source string, fetchedAt time.Time, entries []Entry) *Dataset {
	ds := &Dataset{
		Source:     source,
		FetchedAt:  fetchedAt,
		Satellites: entries,
	}
	if len(entries) == 0 {
		return ds
	}

	minEpoch := entries[0].Elements.Epoch
	maxEpoch := minEpoch
	for _, e := range entries[1:] {
		u := e.Elements.Epoch.Unix()
		if u < minEpoch.Unix() {
			minEpoch = e.Elements.Epoch
		}
		if u > maxEpoch.Unix() {
			maxEpoch = e.Elements.Epoch
		}
	}
	ds.EpochRange = EpochRange{Min: minEpoch, Max: maxEpoch}
	return ds
}
