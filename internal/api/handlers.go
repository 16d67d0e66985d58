package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/aweeri/TLEscope/internal/apsis"
	"github.com/aweeri/TLEscope/internal/passes"
	"github.com/aweeri/TLEscope/internal/sim"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/aweeri/TLEscope/internal/transform"
	"gonum.org/v1/gonum/spatial/r3"
)

const maxControlBody = 4096

var (
	errNoSnapshot = errors.New("no snapshot published")
	errNoDataset  = errors.New("no element dataset loaded")
)

type handlers struct {
	deps   Deps
	logger *slog.Logger
}

// writeJSON encodes v before touching the response so that an encoding
// failure becomes a 500 instead of a truncated 200 body.
func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encoding response", "error", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func (h *handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handlers) snapshotReady() error {
	if h.deps.Runner == nil || h.deps.Runner.Snapshot() == nil {
		return errNoSnapshot
	}
	return nil
}

func (h *handlers) datasetReady() error {
	if h.deps.Store == nil || h.deps.Store.Get() == nil {
		return errNoDataset
	}
	return nil
}

func (h *handlers) snapshotOrNil() *sim.Snapshot {
	if h.deps.Runner == nil {
		return nil
	}
	return h.deps.Runner.Snapshot()
}

// current returns the latest snapshot or writes 503.
func (h *handlers) current(w http.ResponseWriter) *sim.Snapshot {
	if err := h.snapshotReady(); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return nil
	}
	return h.deps.Runner.Snapshot()
}

// entry looks a satellite up by name, or by NORAD id when the path value
// is numeric and no name matches.
func (h *handlers) entry(w http.ResponseWriter, r *http.Request) *tle.Entry {
	if h.deps.Store.Get() == nil {
		h.writeError(w, http.StatusServiceUnavailable, errNoDataset.Error())
		return nil
	}
	key := r.PathValue("name")
	e, ok := h.deps.Store.Lookup(key)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown satellite %q", key))
		return nil
	}
	return e
}

// GET /api/v1/snapshot
func (h *handlers) snapshot(w http.ResponseWriter, r *http.Request) {
	if snap := h.current(w); snap != nil {
		h.writeJSON(w, http.StatusOK, snap)
	}
}

type satelliteSummary struct {
	Name           string  `json:"name"`
	NORADID        int     `json:"norad_id"`
	Epoch          float64 `json:"epoch"`
	InclinationDeg float64 `json:"inclination_deg"`
	RAANDeg        float64 `json:"raan_deg"`
	Eccentricity   float64 `json:"eccentricity"`
	ArgPerigeeDeg  float64 `json:"arg_perigee_deg"`
	MeanAnomalyDeg float64 `json:"mean_anomaly_deg"`
	RevsPerDay     float64 `json:"revs_per_day"`
	SemiMajorAxis  float64 `json:"semi_major_axis_km"`
	PeriodMinutes  float64 `json:"period_minutes"`
	Cached         bool    `json:"cached"`
}

// GET /api/v1/satellites
func (h *handlers) satellites(w http.ResponseWriter, r *http.Request) {
	ds := h.deps.Store.Get()
	if ds == nil {
		h.writeError(w, http.StatusServiceUnavailable, errNoDataset.Error())
		return
	}

	cached := map[string]bool{}
	if snap := h.snapshotOrNil(); snap != nil {
		for _, v := range snap.Satellites {
			cached[v.Name] = v.Cached
		}
	}

	const rad2deg = 180 / math.Pi
	out := make([]satelliteSummary, len(ds.Satellites))
	for i := range ds.Satellites {
		e := &ds.Satellites[i]
		el := &e.Elements
		out[i] = satelliteSummary{
			Name:           e.Name,
			NORADID:        e.NORADID,
			Epoch:          float64(el.Epoch),
			InclinationDeg: el.Inclination * rad2deg,
			RAANDeg:        el.RAAN * rad2deg,
			Eccentricity:   el.Eccentricity,
			ArgPerigeeDeg:  el.ArgPerigee * rad2deg,
			MeanAnomalyDeg: el.MeanAnomaly * rad2deg,
			RevsPerDay:     el.RevsPerDay(),
			SemiMajorAxis:  el.SemiMajorAxis,
			PeriodMinutes:  el.PeriodSeconds() / 60,
			Cached:         cached[e.Name],
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":      len(out),
		"satellites": out,
	})
}

// GET /api/v1/satellites/{name}/apsis
func (h *handlers) apsis(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	e := h.entry(w, r)
	if e == nil {
		return
	}

	peri, apo := apsis.Both(h.deps.Strategy, &e.Elements, snap.Epoch, apsis.View{
		EarthOffsetDeg: snap.EarthOffsetDeg,
		MapWidth:       snap.MapWidth,
		MapHeight:      snap.MapHeight,
	})
	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":      e.Name,
		"norad_id":  e.NORADID,
		"epoch":     float64(snap.Epoch),
		"periapsis": peri,
		"apoapsis":  apo,
	})
}

// GET /api/v1/satellites/{name}/ring
func (h *handlers) ring(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	e := h.entry(w, r)
	if e == nil {
		return
	}

	v, ok := snap.Satellite(e.Name)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("satellite %q is not in the simulation", e.Name))
		return
	}
	points := v.Ring
	if points == nil {
		points = []r3.Vec{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"name":     v.Name,
		"norad_id": v.NORADID,
		"cached":   v.Cached,
		"points":   points,
	})
}

// passQuery holds validated pass-prediction parameters.
type passQuery struct {
	observer     transform.ObserverPosition
	observerName string
	hours        float64
	minElevation float64
	maxPasses    int
}

func floatParam(r *http.Request, key string, def, lo, hi float64) (float64, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || !(f >= lo && f <= hi) {
		return 0, fmt.Errorf("invalid %s parameter, must be %g-%g", key, lo, hi)
	}
	return f, nil
}

func parsePassQuery(r *http.Request, snap *sim.Snapshot) (passQuery, error) {
	var q passQuery
	var err error

	if q.hours, err = floatParam(r, "hours", 24, 1, 168); err != nil {
		return q, err
	}
	if q.minElevation, err = floatParam(r, "min_elevation", 10, 0, 90); err != nil {
		return q, err
	}
	maxPasses, err := floatParam(r, "max", 10, 1, 100)
	if err != nil {
		return q, err
	}
	q.maxPasses = int(maxPasses)

	if name := r.URL.Query().Get("marker"); name != "" {
		m, ok := snap.Marker(name)
		if !ok {
			return q, fmt.Errorf("unknown marker %q", name)
		}
		q.observer = transform.NewObserverPosition(m.Lat, m.Lon, 0)
		q.observerName = m.Name
		return q, nil
	}

	if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lon") == "" {
		return q, errors.New("marker or lat and lon parameters are required")
	}
	lat, err := floatParam(r, "lat", 0, -90, 90)
	if err != nil {
		return q, err
	}
	lon, err := floatParam(r, "lon", 0, -180, 180)
	if err != nil {
		return q, err
	}
	alt, err := floatParam(r, "alt", 0, -500, 9000)
	if err != nil {
		return q, err
	}
	q.observer = transform.NewObserverPosition(lat, lon, alt)
	return q, nil
}

// GET /api/v1/satellites/{name}/passes?marker=&hours=&min_elevation=&max=
func (h *handlers) passes(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	e := h.entry(w, r)
	if e == nil {
		return
	}

	q, err := parsePassQuery(r, snap)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	results := passes.Predict(r.Context(), passes.Request{
		Observer:       q.observer,
		Targets:        []passes.Target{{Name: e.Name, NORADID: e.NORADID, Elements: &e.Elements}},
		Strategy:       h.deps.Strategy,
		Start:          snap.Epoch,
		HorizonHours:   q.hours,
		MinElevation:   q.minElevation,
		MaxPasses:      q.maxPasses,
		EarthOffsetDeg: snap.EarthOffsetDeg,
	})
	if err := r.Context().Err(); err != nil {
		return
	}

	h.logger.Debug("passes predicted",
		"name", e.Name,
		"marker", q.observerName,
		"hours", q.hours,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	result := results[0]
	if result.Passes == nil {
		result.Passes = []passes.PassEvent{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"marker":        q.observerName,
		"start":         snap.DateTime,
		"hours":         q.hours,
		"min_elevation": q.minElevation,
		"result":        result,
	})
}

// GET /api/v1/markers
func (h *handlers) markers(w http.ResponseWriter, r *http.Request) {
	snap := h.current(w)
	if snap == nil {
		return
	}
	markers := snap.Markers
	if markers == nil {
		markers = []sim.MarkerView{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(markers),
		"markers": markers,
	})
}

type controlRequest struct {
	Action  string `json:"action"`
	Name    string `json:"name"`
	Enabled *bool  `json:"enabled"`
}

// POST /api/v1/control
func (h *handlers) control(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxControlBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid control body")
		return
	}

	action, err := sim.ParseAction(req.Action)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err = h.deps.Runner.Do(r.Context(), sim.Command{Action: action, Name: req.Name, Enabled: req.Enabled})
	switch {
	case err == nil:
	case errors.Is(err, sim.ErrUnknownSatellite):
		h.writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, sim.ErrStopped):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	default:
		if r.Context().Err() != nil {
			return
		}
		h.logger.Warn("control failed", "action", action, "error", err)
		h.writeError(w, http.StatusInternalServerError, "control failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "action": action, "name": req.Name})
}

// GET /api/v1/tle/metadata
func (h *handlers) tleMetadata(w http.ResponseWriter, r *http.Request) {
	ds := h.deps.Store.Get()
	if ds == nil {
		h.writeError(w, http.StatusServiceUnavailable, errNoDataset.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"source":          ds.Source,
		"fetched_at":      ds.FetchedAt.UTC().Format(time.RFC3339),
		"age_seconds":     int(h.deps.Store.AgeSeconds()),
		"satellite_count": len(ds.Satellites),
		"epoch_min":       ds.EpochRange.Min.String(),
		"epoch_max":       ds.EpochRange.Max.String(),
	})
}

// GET /api/v1/tle/groups
func (h *handlers) tleGroups(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"groups": tle.Groups()})
}

// GET /api/v1/settings
func (h *handlers) settings(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.deps.Settings)
}
