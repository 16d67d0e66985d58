// Package passes predicts when satellites rise above a ground marker's
// horizon.
package passes

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/aweeri/TLEscope/internal/transform"
	"gonum.org/v1/gonum/spatial/r3"
)

// GroundTrackPoint is a sub-satellite position at a specific time during a pass.
type GroundTrackPoint struct {
	Time      time.Time `json:"time"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Altitude  float64   `json:"altitude"`
	Elevation float64   `json:"elevation"` // degrees above the marker's horizon (0-90)
}

// PassEvent describes a single satellite pass over a marker.
type PassEvent struct {
	StartTime        time.Time          `json:"start_time"`
	MaxElevationTime time.Time          `json:"max_elevation_time"`
	EndTime          time.Time          `json:"end_time"`
	StartEpoch       epoch.Epoch        `json:"start_epoch"`
	DurationSeconds  float64            `json:"duration_seconds"`
	MaxElevation     float64            `json:"max_elevation"`
	AzimuthAtMax     float64            `json:"azimuth_at_max"`
	StartAzimuth     float64            `json:"start_azimuth"`
	EndAzimuth       float64            `json:"end_azimuth"`
	GroundTrack      []GroundTrackPoint `json:"ground_track"`
}

// SatellitePasses holds the predicted passes for one satellite.
type SatellitePasses struct {
	Name    string      `json:"name"`
	NORADID int         `json:"norad_id"`
	Passes  []PassEvent `json:"passes"`
	Error   string      `json:"error,omitempty"`
}

// Target is one satellite to scan.
type Target struct {
	Name     string
	NORADID  int
	Elements *tle.ElementSet
}

// Request holds the parameters for a pass prediction request.
type Request struct {
	Observer       transform.ObserverPosition
	Targets        []Target
	Strategy       propagation.Strategy
	Start          epoch.Epoch
	HorizonHours   float64
	MinElevation   float64 // degrees
	MaxPasses      int
	EarthOffsetDeg float64
}

const (
	coarseStepSec      = 30 // seconds between coarse scan steps
	fineStepSec        = 1  // seconds between fine scan steps
	groundTrackStepSec = 10 // seconds between ground track samples
	minPassDurSec      = 10
)

var errPropagation = errors.New("propagation failed at start epoch")

// Predict computes satellite passes for the given request.
// Each satellite is processed in its own goroutine, bounded by a semaphore.
func Predict(ctx context.Context, req Request) []SatellitePasses {
	start := time.Now()
	defer func() { metrics.ObservePassPrediction(time.Since(start)) }()

	if req.Strategy == nil {
		req.Strategy = propagation.Kepler{}
	}

	results := make([]SatellitePasses, len(req.Targets))
	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, target := range req.Targets {
		wg.Add(1)
		go func(idx int, tg Target) {
			defer wg.Done()

			res := SatellitePasses{Name: tg.Name, NORADID: tg.NORADID}
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				res.Error = "cancelled"
				results[idx] = res
				return
			}

			passes, err := predictSatellite(ctx, req, tg.Elements)
			if err != nil {
				res.Error = err.Error()
			}
			res.Passes = passes
			results[idx] = res
		}(i, target)
	}

	wg.Wait()
	return results
}

// scanner evaluates look angles for one satellite.
type scanner struct {
	req Request
	el  *tle.ElementSet
}

// at returns the look angles and engine-frame position at offset seconds
// from the request start. ok is false when the strategy could not produce
// a position.
func (s scanner) at(offset float64) (transform.LookAngles, r3.Vec, epoch.Epoch, bool) {
	e := s.req.Start.AdvanceBy(offset)
	pos := s.req.Strategy.Position(s.el, e)
	if pos == (r3.Vec{}) {
		return transform.LookAngles{}, pos, e, false
	}
	return transform.LookFrom(s.req.Observer, pos, e.GMST(), s.req.EarthOffsetDeg), pos, e, true
}

// predictSatellite finds all passes for a single satellite.
func predictSatellite(ctx context.Context, req Request, el *tle.ElementSet) ([]PassEvent, error) {
	s := scanner{req: req, el: el}
	if el == nil {
		return nil, errPropagation
	}
	if _, _, _, ok := s.at(0); !ok {
		return nil, errPropagation
	}

	end := req.HorizonHours * 3600
	var passes []PassEvent

	// Coarse scan: step through the time range looking for elevation > 0.
	t := 0.0
	for t < end && len(passes) < req.MaxPasses {
		if ctx.Err() != nil {
			return passes, nil
		}

		la, _, _, ok := s.at(t)
		if !ok || la.ElevationDeg <= 0 {
			t += coarseStepSec
			continue
		}

		pass, windowEnd := s.refine(ctx, t, end)
		if pass != nil && pass.DurationSeconds >= minPassDurSec {
			passes = append(passes, *pass)
		}
		t = windowEnd + coarseStepSec
	}

	return passes, nil
}

// refine does a fine-grained scan around a coarse-detected above-horizon
// region. It backs up to find the actual rise, then scans forward to find
// set. Returns the pass event and the offset at which the window ends.
func (s scanner) refine(ctx context.Context, coarseHit, end float64) (*PassEvent, float64) {
	t := max(coarseHit-coarseStepSec, 0)

	var (
		riseT, setT     float64
		riseAz, setAz   float64
		maxEl, maxElT   float64
		maxElAz         float64
		wasAbove        bool
		foundRise, done bool
		groundTrack     []GroundTrackPoint
	)

	for ; t < end; t += fineStepSec {
		if ctx.Err() != nil {
			break
		}

		la, pos, e, ok := s.at(t)
		if !ok {
			continue
		}
		el := la.ElevationDeg
		above := el >= s.req.MinElevation

		if above && !wasAbove {
			riseT, riseAz = t, la.AzimuthDeg
			foundRise = true
			maxEl, maxElT, maxElAz = el, t, la.AzimuthDeg
		}

		if above && foundRise {
			if el > maxEl {
				maxEl, maxElT, maxElAz = el, t, la.AzimuthDeg
			}
			if int(t-riseT)%groundTrackStepSec == 0 {
				geo := transform.SubSatellite(pos, e.GMST(), s.req.EarthOffsetDeg)
				groundTrack = append(groundTrack, GroundTrackPoint{
					Time:      e.Time(),
					Latitude:  geo.LatDeg,
					Longitude: geo.LonDeg,
					Altitude:  geo.AltM,
					Elevation: el,
				})
			}
		}

		if !above && wasAbove && foundRise {
			setT, setAz = t, la.AzimuthDeg
			done = true
			break
		}

		wasAbove = above
	}

	// Still above at the end of the horizon: close the pass there.
	if foundRise && !done && wasAbove {
		setT = t
		if la, _, _, ok := s.at(t); ok {
			setAz = la.AzimuthDeg
			if la.ElevationDeg > maxEl {
				maxEl, maxElT, maxElAz = la.ElevationDeg, t, la.AzimuthDeg
			}
		}
		done = true
	}

	if !foundRise || !done {
		return nil, t
	}

	startEpoch := s.req.Start.AdvanceBy(riseT)
	return &PassEvent{
		StartTime:        startEpoch.Time(),
		MaxElevationTime: s.req.Start.AdvanceBy(maxElT).Time(),
		EndTime:          s.req.Start.AdvanceBy(setT).Time(),
		StartEpoch:       startEpoch,
		DurationSeconds:  setT - riseT,
		MaxElevation:     maxEl,
		AzimuthAtMax:     maxElAz,
		StartAzimuth:     riseAz,
		EndAzimuth:       setAz,
		GroundTrack:      groundTrack,
	}, setT
}
