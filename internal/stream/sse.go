package stream

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/aweeri/TLEscope/internal/httputil"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/sim"
)

const transportSSE = "sse"

// HandleSnapshots serves the SSE snapshot stream.
// GET /api/v1/stream/snapshots?interval_ms=100
func (h *Handler) HandleSnapshots(w http.ResponseWriter, r *http.Request) {
	interval, ok := h.interval(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid interval_ms parameter, must be 10-10000")
		return
	}

	// Rate limiting: enforce concurrent stream limit per IP.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		metrics.IncStreamConnections(transportSSE, "rejected")
		h.logger.Warn("stream rate limit exceeded",
			"transport", transportSSE,
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamConnections(transportSSE, "connect")
	metrics.IncStreamsActive(transportSSE)

	startTime := time.Now()
	h.logger.Info("stream connected",
		"transport", transportSSE,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval_ms", interval.Milliseconds(),
	)

	c := &client{
		w:      w,
		ip:     ip,
		logger: h.logger,
		bw:     newBandwidth(h.config.BandwidthLimit),
	}

	// Cleanup on disconnect: release rate limit slot and update metrics.
	defer func() {
		h.limiter.release(ip)
		metrics.IncStreamConnections(transportSSE, "disconnect")
		metrics.DecStreamsActive(transportSSE)
		h.logger.Info("stream disconnected",
			"transport", transportSSE,
			"remote_ip", ip,
			"duration_seconds", int(time.Since(startTime).Seconds()),
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
			"dropped", c.dropped,
		)
	}()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	c.flusher = flusher

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's default WriteTimeout for this connection.
	c.rc = http.NewResponseController(w)
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry interval (3-7s) so restarts do not cause a
	// reconnection storm.
	fmt.Fprintf(w, "retry: %d\n\n", 3000+rand.Intn(4000))
	flusher.Flush()

	if meta := h.metadata(); meta != nil {
		if err := c.sendJSON(meta); err != nil {
			metrics.IncStreamErrors("send_error")
			h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
			return
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	keepaliveTicker := time.NewTicker(h.config.KeepaliveInterval)
	defer keepaliveTicker.Stop()

	var (
		last *sim.Snapshot
		seq  uint64
	)
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			snap := h.source.Snapshot()
			if snap == nil || snap == last {
				continue
			}
			last = snap
			seq++

			data, err := json.Marshal(newSnapshotMessage(seq, snap))
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				h.logger.Warn("stream marshal error", "remote_ip", ip, "error", err)
				continue
			}
			if !c.bw.allow(len(data)) {
				c.dropped++
				metrics.IncStreamErrors("throttled")
				continue
			}
			if err := c.sendRaw(data); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream send error", "remote_ip", ip, "error", err)
				return
			}

			keepaliveTicker.Reset(h.config.KeepaliveInterval)

		case <-keepaliveTicker.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}
