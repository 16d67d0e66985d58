// Package stream pushes simulation snapshots to remote renderers over
// Server-Sent Events (GET /api/v1/stream/snapshots) and websockets
// (GET /api/v1/ws). Both transports poll the runner's latest snapshot on
// their own ticker and never block the simulation.
//
// SSE message format:
//
//	data: {"type":"snapshot","seq":12,"snapshot":{...}}\n\n
//
// First message on every connection is metadata:
//
//	data: {"type":"metadata","dataset_epoch":"...","tle_age_seconds":1800,"satellites":120}\n\n
//
// Keep-alive comments (:\n\n) are sent every KeepaliveInterval when no
// snapshot went out. Snapshots that would exceed the per-stream bandwidth
// budget are dropped rather than queued.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aweeri/TLEscope/internal/sim"
	"github.com/aweeri/TLEscope/internal/tle"
)

// Config holds streaming configuration.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 10).
	BandwidthLimit     int           // Bytes per second per stream (default: 1048576).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 30s).
	Interval           time.Duration // Default snapshot push interval (default: 100ms).
	ControlRate        float64       // Websocket control messages per second (default: 20).
	TrustProxy         bool          // Honour X-Forwarded-For when keying limits.
}

func (c Config) withDefaults() Config {
	if c.MaxConcurrentPerIP <= 0 {
		c.MaxConcurrentPerIP = 10
	}
	if c.BandwidthLimit <= 0 {
		c.BandwidthLimit = 1048576
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = 30 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = 100 * time.Millisecond
	}
	if c.ControlRate <= 0 {
		c.ControlRate = 20
	}
	return c
}

// Source provides the latest published snapshot.
type Source interface {
	Snapshot() *sim.Snapshot
}

// Controller applies control commands to the simulation.
type Controller interface {
	Do(ctx context.Context, cmd sim.Command) error
}

// Handler manages SSE and websocket streaming connections.
type Handler struct {
	source  Source
	control Controller
	store   *tle.Store
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a streaming handler. control may be nil, in which
// case websocket control messages are rejected.
func NewHandler(source Source, control Controller, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	config = config.withDefaults()
	return &Handler{
		source:  source,
		control: control,
		store:   store,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP),
		logger:  logger,
	}
}

const (
	minInterval = 10 * time.Millisecond
	maxInterval = 10 * time.Second
)

// interval reads the optional interval_ms query parameter.
func (h *Handler) interval(r *http.Request) (time.Duration, bool) {
	v := r.URL.Query().Get("interval_ms")
	if v == "" {
		return h.config.Interval, true
	}
	d, err := time.ParseDuration(v + "ms")
	if err != nil || d < minInterval || d > maxInterval {
		return 0, false
	}
	return d, true
}

func (h *Handler) metadata() *metadataMessage {
	ds := h.store.Get()
	if ds == nil {
		return nil
	}
	return &metadataMessage{
		Type:         "metadata",
		Source:       ds.Source,
		DatasetEpoch: ds.FetchedAt.UTC().Format(time.RFC3339),
		TLEAge:       int(time.Since(ds.FetchedAt).Seconds()),
		Satellites:   len(ds.Satellites),
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// Message payload types.

type metadataMessage struct {
	Type         string `json:"type"`
	Source       string `json:"source"`
	DatasetEpoch string `json:"dataset_epoch"`
	TLEAge       int    `json:"tle_age_seconds"`
	Satellites   int    `json:"satellites"`
}

type snapshotMessage struct {
	Type     string        `json:"type"`
	Seq      uint64        `json:"seq"`
	Snapshot *sim.Snapshot `json:"snapshot"`
}

func newSnapshotMessage(seq uint64, s *sim.Snapshot) snapshotMessage {
	return snapshotMessage{Type: "snapshot", Seq: seq, Snapshot: s}
}

// controlMessage is sent by websocket clients.
type controlMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Action  string `json:"action"`
	Name    string `json:"name,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
}

type ackMessage struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
