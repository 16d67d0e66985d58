package stream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/aweeri/TLEscope/internal/httputil"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/sim"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	transportWS = "ws"

	maxControlMessage = 4096
	controlTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
	// Renderers are served from anywhere; auth is handled by middleware.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWebSocket serves snapshot pushes and accepts control messages.
// GET /api/v1/ws?interval_ms=100
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	interval, ok := h.interval(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid interval_ms parameter, must be 10-10000")
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		metrics.IncStreamConnections(transportWS, "rejected")
		h.logger.Warn("stream rate limit exceeded",
			"transport", transportWS,
			"remote_ip", ip,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}
	defer h.limiter.release(ip)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		metrics.IncStreamErrors("upgrade_error")
		h.logger.Warn("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}
	defer conn.Close()

	metrics.IncStreamConnections(transportWS, "connect")
	metrics.IncStreamsActive(transportWS)
	startTime := time.Now()
	h.logger.Info("stream connected",
		"transport", transportWS,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"interval_ms", interval.Milliseconds(),
	)

	s := &wsSession{
		h:       h,
		conn:    conn,
		ip:      ip,
		bw:      newBandwidth(h.config.BandwidthLimit),
		control: rate.NewLimiter(rate.Limit(h.config.ControlRate), int(h.config.ControlRate)+1),
		acks:    make(chan ackMessage, 16),
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.readLoop(ctx, cancel)
	s.writeLoop(ctx, interval)

	metrics.IncStreamConnections(transportWS, "disconnect")
	metrics.DecStreamsActive(transportWS)
	h.logger.Info("stream disconnected",
		"transport", transportWS,
		"remote_ip", ip,
		"duration_seconds", int(time.Since(startTime).Seconds()),
		"messages", s.messagesSent,
		"bytes", s.bytesSent,
		"dropped", s.dropped,
	)
}

// wsSession is one websocket connection. Only writeLoop writes to conn.
type wsSession struct {
	h       *Handler
	conn    *websocket.Conn
	ip      string
	bw      *bandwidth
	control *rate.Limiter
	acks    chan ackMessage

	messagesSent int64
	bytesSent    int64
	dropped      int64
}

func (s *wsSession) pongWait() time.Duration {
	return 2 * s.h.config.KeepaliveInterval
}

// readLoop decodes control messages until the peer goes away.
func (s *wsSession) readLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()

	s.conn.SetReadLimit(maxControlMessage)
	s.conn.SetReadDeadline(time.Now().Add(s.pongWait()))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.pongWait()))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				metrics.IncStreamErrors("read_error")
				s.h.logger.Warn("websocket read error", "remote_ip", s.ip, "error", err)
			}
			return
		}
		s.conn.SetReadDeadline(time.Now().Add(s.pongWait()))

		ack := s.handleControl(ctx, data)
		select {
		case s.acks <- ack:
		case <-ctx.Done():
			return
		}
	}
}

func (s *wsSession) handleControl(ctx context.Context, data []byte) ackMessage {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ackMessage{Type: "ack", Error: "invalid message"}
	}
	ack := ackMessage{Type: "ack", ID: msg.ID}

	if !s.control.Allow() {
		metrics.IncStreamErrors("control_rate_limit")
		ack.Error = "rate limited"
		return ack
	}
	if s.h.control == nil {
		ack.Error = "control not available"
		return ack
	}
	action, err := sim.ParseAction(msg.Action)
	if err != nil {
		ack.Error = err.Error()
		return ack
	}

	cctx, cancel := context.WithTimeout(ctx, controlTimeout)
	defer cancel()
	if err := s.h.control.Do(cctx, sim.Command{Action: action, Name: msg.Name, Enabled: msg.Enabled}); err != nil {
		ack.Error = err.Error()
		return ack
	}
	ack.OK = true
	return ack
}

// writeLoop pushes snapshots, acks and pings until ctx ends or a write
// fails.
func (s *wsSession) writeLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	pingTicker := time.NewTicker(s.h.config.KeepaliveInterval)
	defer pingTicker.Stop()

	if meta := s.h.metadata(); meta != nil {
		if err := s.writeJSON(meta); err != nil {
			return
		}
	}

	var (
		last *sim.Snapshot
		seq  uint64
	)
	for {
		select {
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return

		case ack := <-s.acks:
			if err := s.writeJSON(ack); err != nil {
				return
			}

		case <-ticker.C:
			snap := s.h.source.Snapshot()
			if snap == nil || snap == last {
				continue
			}
			last = snap
			seq++

			data, err := json.Marshal(newSnapshotMessage(seq, snap))
			if err != nil {
				metrics.IncStreamErrors("marshal_error")
				continue
			}
			if !s.bw.allow(len(data)) {
				s.dropped++
				metrics.IncStreamErrors("throttled")
				continue
			}
			if err := s.write(data); err != nil {
				return
			}

		case <-pingTicker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				metrics.IncStreamErrors("send_error")
				return
			}
		}
	}
}

func (s *wsSession) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.write(data)
}

func (s *wsSession) write(data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if !errors.Is(err, websocket.ErrCloseSent) {
			metrics.IncStreamErrors("send_error")
			s.h.logger.Warn("websocket send error", "remote_ip", s.ip, "error", err)
		}
		return err
	}
	s.messagesSent++
	s.bytesSent += int64(len(data))
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(len(data))
	return nil
}
