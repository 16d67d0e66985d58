// Package metrics holds the Prometheus instrumentation for the engine and
// its HTTP surface. All collectors are registered on the default registry.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlescope_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tlescope_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	// Element ingest.
	tleDatasetCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tlescope_tle_dataset_satellites",
		Help: "Number of satellites in the loaded element dataset.",
	})
	tleDatasetAge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tlescope_tle_dataset_age_seconds",
		Help: "Age of the loaded element dataset.",
	})
	tleSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tlescope_tle_records_skipped_total",
		Help: "Malformed element records skipped during ingestion.",
	})
	tleFetchErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tlescope_tle_fetch_errors_total",
		Help: "Failed element downloads.",
	})

	// Propagation.
	propagationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlescope_propagation_failures_total",
			Help: "Propagations that produced no usable position.",
		},
		[]string{"strategy"},
	)
	keplerNonConverged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tlescope_kepler_nonconverged_total",
		Help: "Kepler solves that hit the iteration cap.",
	})

	// Orbit cache.
	orbitCacheRefreshes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tlescope_orbit_cache_refreshes_total",
		Help: "Orbit rings recomputed by the scheduler.",
	})
	orbitCacheCached = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tlescope_orbit_cache_cached",
		Help: "Satellites whose orbit ring is cached.",
	})
	orbitCacheCursor = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tlescope_orbit_cache_cursor",
		Help: "Round-robin position of the orbit cache scheduler.",
	})

	// Simulation loop.
	simTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tlescope_sim_tick_duration_seconds",
		Help:    "Wall time spent in one simulation tick.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
	})
	simSatellites = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tlescope_sim_satellites",
		Help: "Satellites in the simulation roster.",
	})
	simMarkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tlescope_sim_markers",
		Help: "Ground markers in the simulation.",
	})
	simMultiplier = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tlescope_sim_time_multiplier",
		Help: "Current simulated-time multiplier.",
	})
	simPaused = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tlescope_sim_paused",
		Help: "1 while the simulation clock is paused.",
	})
	simCapacityRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlescope_sim_capacity_rejected_total",
			Help: "Satellites or markers rejected because the context is full.",
		},
		[]string{"kind"},
	)
	simCutovers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tlescope_sim_dataset_cutovers_total",
		Help: "Roster rebuilds after a dataset change.",
	})

	// Passes.
	passPredictionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tlescope_pass_prediction_duration_seconds",
		Help:    "Wall time spent predicting passes for one request.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	// Streaming.
	streamConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlescope_stream_connections_total",
			Help: "Stream connection attempts by transport and result.",
		},
		[]string{"transport", "result"},
	)
	streamsActive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tlescope_streams_active",
			Help: "Currently open streams.",
		},
		[]string{"transport"},
	)
	streamMessages = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tlescope_stream_messages_total",
		Help: "Snapshot messages written to stream clients.",
	})
	streamBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tlescope_stream_bytes_total",
		Help: "Bytes written to stream clients.",
	})
	streamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tlescope_stream_errors_total",
			Help: "Stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		tleDatasetCount,
		tleDatasetAge,
		tleSkippedTotal,
		tleFetchErrorsTotal,
		propagationFailures,
		keplerNonConverged,
		orbitCacheRefreshes,
		orbitCacheCached,
		orbitCacheCursor,
		simTickDuration,
		simSatellites,
		simMarkers,
		simMultiplier,
		simPaused,
		simCapacityRejected,
		simCutovers,
		passPredictionDuration,
		streamConnections,
		streamsActive,
		streamMessages,
		streamBytes,
		streamErrors,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func SetTLEDatasetCount(n int)         { tleDatasetCount.Set(float64(n)) }
func SetTLEDatasetAge(seconds float64) { tleDatasetAge.Set(seconds) }
func AddTLESkipped(n int)              { tleSkippedTotal.Add(float64(n)) }
func IncTLEFetchErrors()               { tleFetchErrorsTotal.Inc() }

func IncPropagationFailures(strategy string) { propagationFailures.WithLabelValues(strategy).Inc() }
func IncKeplerNonConverged()                 { keplerNonConverged.Inc() }

func AddOrbitCacheRefreshes(n int) { orbitCacheRefreshes.Add(float64(n)) }
func SetOrbitCacheCached(n int)    { orbitCacheCached.Set(float64(n)) }
func SetOrbitCacheCursor(n int)    { orbitCacheCursor.Set(float64(n)) }

func ObserveSimTick(d time.Duration) { simTickDuration.Observe(d.Seconds()) }
func SetSimSatellites(n int)         { simSatellites.Set(float64(n)) }
func SetSimMarkers(n int)            { simMarkers.Set(float64(n)) }
func SetSimMultiplier(m float64)     { simMultiplier.Set(m) }

func SetSimPaused(paused bool) {
	if paused {
		simPaused.Set(1)
		return
	}
	simPaused.Set(0)
}

// IncCapacityRejected counts rejections; kind is "satellite" or "marker".
func IncCapacityRejected(kind string) { simCapacityRejected.WithLabelValues(kind).Inc() }
func IncSimCutovers()                 { simCutovers.Inc() }

func ObservePassPrediction(d time.Duration) { passPredictionDuration.Observe(d.Seconds()) }

// IncStreamConnections counts connection events. result is "connect",
// "disconnect" or "rejected".
func IncStreamConnections(transport, result string) {
	streamConnections.WithLabelValues(transport, result).Inc()
}
func IncStreamsActive(transport string) { streamsActive.WithLabelValues(transport).Inc() }
func DecStreamsActive(transport string) { streamsActive.WithLabelValues(transport).Dec() }
func IncStreamMessages()                { streamMessages.Inc() }
func AddStreamBytes(n int)              { streamBytes.Add(float64(n)) }
func IncStreamErrors(reason string)     { streamErrors.WithLabelValues(reason).Inc() }

// knownRoutes are exact paths that keep their own label.
var knownRoutes = map[string]bool{
	"/":                        true,
	"/healthz":                 true,
	"/readyz":                  true,
	"/metrics":                 true,
	"/api/v1/snapshot":         true,
	"/api/v1/satellites":       true,
	"/api/v1/markers":          true,
	"/api/v1/control":          true,
	"/api/v1/tle/metadata":     true,
	"/api/v1/tle/groups":       true,
	"/api/v1/stream/snapshots": true,
	"/api/v1/ws":               true,
	"/api/v1/settings":         true,
}

const satellitesPrefix = "/api/v1/satellites/"

// normalizeRoute collapses request paths to a bounded label set so that
// satellite names and scanner traffic cannot explode series cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, satellitesPrefix); ok {
		name, action, found := strings.Cut(rest, "/")
		if found && name != "" {
			switch action {
			case "apsis", "passes", "ring":
				return satellitesPrefix + "{name}/" + action
			}
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack lets websocket upgrades through the wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(rw.ResponseWriter).Hijack()
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
