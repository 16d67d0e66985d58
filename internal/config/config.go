// Package config loads TLEscope settings from a JSON settings file and
// TLESCOPE_* environment variables. Invalid values fall back to their
// defaults with a warning; only an unreadable explicit settings file or
// an incomplete auth setup is an error.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/aweeri/TLEscope/internal/auth"
	"github.com/aweeri/TLEscope/internal/cache"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/sim"
	"github.com/aweeri/TLEscope/internal/stream"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "TLESCOPE"

// DefaultSettingsFile is read from the working directory when no path is
// given.
const DefaultSettingsFile = "settings.json"

// Config is the full service configuration.
type Config struct {
	HTTPAddr   string
	LogLevel   slog.Level
	Strategy   string
	TrustProxy bool

	// Pass prediction is CPU heavy and limited per client IP.
	PassesRate  float64
	PassesBurst int

	Auth    auth.Config
	Sim     sim.Config
	Runner  sim.RunnerConfig
	Markers []sim.Marker
	TLE     TLE
	Stream  stream.Config
	Display Display
}

// TLE holds element-set ingestion settings.
type TLE struct {
	DataFile        string
	EnableFetch     bool
	SourceURL       string
	ExtraSourceURLs []string
	Groups          []int
	CacheDir        string
	MaxFiles        int
	MaxAge          time.Duration
}

// Display carries renderer settings through to API clients untouched.
type Display struct {
	WindowWidth     int               `json:"window_width"`
	WindowHeight    int               `json:"window_height"`
	UIScale         float64           `json:"ui_scale"`
	ShowClouds      bool              `json:"show_clouds"`
	ShowNightLights bool              `json:"show_night_lights"`
	Theme           string            `json:"theme"`
	Colors          map[string]string `json:"colors"`
}

// Keys of the settings file. Environment overrides use the upper-case
// form with the TLESCOPE_ prefix, e.g. TLESCOPE_HTTP_ADDR.
const (
	keyHTTPAddr      = "http_addr"
	keyLogLevel      = "log_level"
	keyStrategy      = "propagator"
	keyTrustProxy    = "trust_proxy"
	keyPassesRate    = "passes_rate"
	keyPassesBurst   = "passes_burst"
	keyAuthEnabled   = "auth_enabled"
	keyAuthToken     = "auth_token"
	keyTargetFPS     = "target_fps"
	keyEarthOffset   = "earth_rotation_offset"
	keyOrbitsToDraw  = "orbits_to_draw"
	keyMaxSatellites = "max_satellites"
	keyMaxMarkers    = "max_markers"
	keyOrbitSamples  = "orbit_cache_samples"
	keyOrbitBatch    = "orbit_cache_batch"
	keyWorkers       = "workers"
	keyMarkers       = "markers"

	keyDataFile    = "tle_data_file"
	keyEnableFetch = "tle_enable_fetch"
	keySourceURL   = "tle_source_url"
	keyExtraURLs   = "tle_extra_urls"
	keyGroups      = "tle_groups"
	keyCacheDir    = "tle_cache_dir"
	keyMaxFiles    = "tle_max_files"
	keyMaxAge      = "tle_max_age"

	keyStreamMaxConcurrent = "stream_max_concurrent"
	keyStreamBandwidth     = "stream_bandwidth_limit"
	keyStreamKeepalive     = "stream_keepalive_interval"
	keyStreamInterval      = "stream_interval_ms"
	keyStreamControlRate   = "stream_control_rate"

	keyWindowWidth     = "window_width"
	keyWindowHeight    = "window_height"
	keyUIScale         = "ui_scale"
	keyShowClouds      = "show_clouds"
	keyShowNightLights = "show_night_lights"
	keyTheme           = "theme"
)

// colorKeys are the renderer palette entries.
var colorKeys = []string{
	"bg_color", "orbit_normal", "orbit_highlighted", "sat_normal", "sat_highlighted",
	"sat_selected", "text_main", "text_secondary", "ui_bg", "periapsis", "apoapsis",
	"footprint_bg", "footprint_border",
}

var defaultColors = map[string]string{
	"bg_color":          "#000000",
	"orbit_normal":      "#3C6E9680",
	"orbit_highlighted": "#FFD200",
	"sat_normal":        "#C8C8C8",
	"sat_highlighted":   "#FFD200",
	"sat_selected":      "#FF5050",
	"text_main":         "#FFFFFF",
	"text_secondary":    "#A0A0A0",
	"ui_bg":             "#141414DC",
	"periapsis":         "#50C8FF",
	"apoapsis":          "#FF8C50",
	"footprint_bg":      "#FFD20020",
	"footprint_border":  "#FFD20080",
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyHTTPAddr, ":8080")
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyStrategy, propagation.StrategyKepler)
	v.SetDefault(keyTrustProxy, false)
	v.SetDefault(keyPassesRate, 1.0)
	v.SetDefault(keyPassesBurst, 5)
	v.SetDefault(keyAuthEnabled, false)
	v.SetDefault(keyTargetFPS, 120)
	v.SetDefault(keyEarthOffset, 0.0)
	v.SetDefault(keyOrbitsToDraw, sim.DefaultOrbitsToDraw)
	v.SetDefault(keyMaxSatellites, sim.DefaultMaxSatellites)
	v.SetDefault(keyMaxMarkers, sim.DefaultMaxMarkers)
	v.SetDefault(keyOrbitSamples, cache.DefaultSamples)
	v.SetDefault(keyOrbitBatch, cache.DefaultBatch)
	v.SetDefault(keyWorkers, runtime.NumCPU())

	v.SetDefault(keyDataFile, "data.tle")
	v.SetDefault(keyEnableFetch, false)
	v.SetDefault(keyCacheDir, "/tmp/tlescope/tle")
	v.SetDefault(keyMaxFiles, 5)
	v.SetDefault(keyMaxAge, 86400)

	v.SetDefault(keyStreamMaxConcurrent, 10)
	v.SetDefault(keyStreamBandwidth, 1048576)
	v.SetDefault(keyStreamKeepalive, 30)
	v.SetDefault(keyStreamInterval, 100)
	v.SetDefault(keyStreamControlRate, 20)

	v.SetDefault(keyWindowWidth, 1280)
	v.SetDefault(keyWindowHeight, 720)
	v.SetDefault(keyUIScale, 1.0)
	v.SetDefault(keyShowClouds, false)
	v.SetDefault(keyShowNightLights, true)
	v.SetDefault(keyTheme, "default")
}

// New returns a viper instance with defaults and environment overrides
// registered but no settings file read.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

// Load reads the settings file at path and applies environment
// overrides. An empty path uses TLESCOPE_CONFIG, then settings.json in
// the working directory; a missing default file is not an error.
func Load(path string, logger *slog.Logger) (Config, error) {
	v := New()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvPrefix + "_CONFIG")
		explicit = path != ""
	}
	if !explicit {
		path = DefaultSettingsFile
	}

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		if explicit || !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("reading settings %s: %w", path, err)
		}
		logger.Info("no settings file, using defaults", "path", path)
	} else {
		logger.Info("settings loaded", "path", v.ConfigFileUsed())
	}

	return FromViper(v, logger)
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper, logger *slog.Logger) (Config, error) {
	var cfg Config

	cfg.HTTPAddr = v.GetString(keyHTTPAddr)
	cfg.LogLevel = logLevel(v, logger)
	cfg.Strategy = strategy(v, logger)
	cfg.TrustProxy = boolValue(v, keyTrustProxy, false, logger)
	cfg.PassesRate = positiveFloat(v, keyPassesRate, 1, logger)
	cfg.PassesBurst = positiveInt(v, keyPassesBurst, 5, logger)

	auth, err := authConfig(v)
	if err != nil {
		return Config{}, err
	}
	cfg.Auth = auth

	cfg.Sim = sim.Config{
		MaxSatellites:  positiveInt(v, keyMaxSatellites, sim.DefaultMaxSatellites, logger),
		MaxMarkers:     positiveInt(v, keyMaxMarkers, sim.DefaultMaxMarkers, logger),
		EarthOffsetDeg: finiteFloat(v, keyEarthOffset, 0, logger),
		OrbitsToDraw:   positiveFloat(v, keyOrbitsToDraw, sim.DefaultOrbitsToDraw, logger),
		Workers:        positiveInt(v, keyWorkers, runtime.NumCPU(), logger),
		Cache: cache.Config{
			Samples: atLeast(v, keyOrbitSamples, cache.MinSamples, cache.DefaultSamples, logger),
			Batch:   positiveInt(v, keyOrbitBatch, cache.DefaultBatch, logger),
		},
	}
	cfg.Runner = sim.RunnerConfig{TargetFPS: positiveInt(v, keyTargetFPS, 120, logger)}
	cfg.Markers = markers(v, cfg.Sim.MaxMarkers, logger)

	cfg.TLE = TLE{
		DataFile:        v.GetString(keyDataFile),
		EnableFetch:     boolValue(v, keyEnableFetch, false, logger),
		SourceURL:       v.GetString(keySourceURL),
		ExtraSourceURLs: stringList(v, keyExtraURLs),
		Groups:          intList(v, keyGroups, logger),
		CacheDir:        v.GetString(keyCacheDir),
		MaxFiles:        positiveInt(v, keyMaxFiles, 5, logger),
		MaxAge:          time.Duration(positiveInt(v, keyMaxAge, 86400, logger)) * time.Second,
	}

	cfg.Stream = stream.Config{
		MaxConcurrentPerIP: positiveInt(v, keyStreamMaxConcurrent, 10, logger),
		BandwidthLimit:     positiveInt(v, keyStreamBandwidth, 1048576, logger),
		KeepaliveInterval:  time.Duration(positiveInt(v, keyStreamKeepalive, 30, logger)) * time.Second,
		Interval:           time.Duration(positiveInt(v, keyStreamInterval, 100, logger)) * time.Millisecond,
		ControlRate:        positiveFloat(v, keyStreamControlRate, 20, logger),
		TrustProxy:         cfg.TrustProxy,
	}

	cfg.Display = Display{
		WindowWidth:     positiveInt(v, keyWindowWidth, 1280, logger),
		WindowHeight:    positiveInt(v, keyWindowHeight, 720, logger),
		UIScale:         clampFloat(v, keyUIScale, 0.5, 4, logger),
		ShowClouds:      boolValue(v, keyShowClouds, false, logger),
		ShowNightLights: boolValue(v, keyShowNightLights, true, logger),
		Theme:           v.GetString(keyTheme),
		Colors:          colors(v, logger),
	}

	logger.Info("sim config",
		"target_fps", cfg.Runner.TargetFPS,
		"propagator", cfg.Strategy,
		"earth_rotation_offset", cfg.Sim.EarthOffsetDeg,
		"orbits_to_draw", cfg.Sim.OrbitsToDraw,
		"max_satellites", cfg.Sim.MaxSatellites,
		"max_markers", cfg.Sim.MaxMarkers,
		"markers", len(cfg.Markers),
		"orbit_cache_samples", cfg.Sim.Cache.Samples,
		"orbit_cache_batch", cfg.Sim.Cache.Batch,
	)
	logger.Info("tle config",
		"data_file", cfg.TLE.DataFile,
		"enable_fetch", cfg.TLE.EnableFetch,
		"source_url", cfg.TLE.SourceURL,
		"extra_urls", cfg.TLE.ExtraSourceURLs,
		"groups", cfg.TLE.Groups,
		"cache_dir", cfg.TLE.CacheDir,
	)
	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.Stream.MaxConcurrentPerIP,
		"bandwidth_limit", cfg.Stream.BandwidthLimit,
		"keepalive_interval_seconds", cfg.Stream.KeepaliveInterval.Seconds(),
		"interval_ms", cfg.Stream.Interval.Milliseconds(),
	)

	return cfg, nil
}

func authConfig(v *viper.Viper) (auth.Config, error) {
	cfg := auth.Config{}

	enabled, err := strconv.ParseBool(v.GetString(keyAuthEnabled))
	if err != nil {
		return cfg, errors.New("TLESCOPE_AUTH_ENABLED must be a boolean value (true/false/1/0)")
	}
	cfg.Enabled = enabled

	if cfg.Enabled {
		cfg.Token = v.GetString(keyAuthToken)
		if cfg.Token == "" {
			return cfg, errors.New("TLESCOPE_AUTH_TOKEN is required when auth is enabled")
		}
	}
	return cfg, nil
}

func logLevel(v *viper.Viper, logger *slog.Logger) slog.Level {
	var level slog.Level
	raw := v.GetString(keyLogLevel)
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		logger.Warn("invalid log level, using default", "key", keyLogLevel, "value", raw, "default", "info")
		return slog.LevelInfo
	}
	return level
}

func strategy(v *viper.Viper, logger *slog.Logger) string {
	raw := strings.ToLower(strings.TrimSpace(v.GetString(keyStrategy)))
	switch raw {
	case propagation.StrategyKepler, propagation.StrategySGP4:
		return raw
	}
	logger.Warn("invalid propagator, using default", "key", keyStrategy, "value", raw, "default", propagation.StrategyKepler)
	return propagation.StrategyKepler
}

func positiveInt(v *viper.Viper, key string, def int, logger *slog.Logger) int {
	return atLeast(v, key, 1, def, logger)
}

func atLeast(v *viper.Viper, key string, lo, def int, logger *slog.Logger) int {
	raw := v.GetString(key)
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		// JSON numbers arrive as float64.
		f, ferr := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if ferr != nil || f != float64(int(f)) {
			logger.Warn("invalid integer, using default", "key", key, "value", raw, "default", def)
			return def
		}
		n = int(f)
	}
	if n < lo {
		logger.Warn("value out of range, using default", "key", key, "value", n, "min", lo, "default", def)
		return def
	}
	return n
}

func parseFloat(v *viper.Viper, key string) (float64, string, error) {
	raw := v.GetString(key)
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	return f, raw, err
}

func finiteFloat(v *viper.Viper, key string, def float64, logger *slog.Logger) float64 {
	f, raw, err := parseFloat(v, key)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		logger.Warn("invalid number, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return f
}

func positiveFloat(v *viper.Viper, key string, def float64, logger *slog.Logger) float64 {
	f := finiteFloat(v, key, def, logger)
	if !(f > 0) {
		logger.Warn("value must be positive, using default", "key", key, "value", f, "default", def)
		return def
	}
	return f
}

func clampFloat(v *viper.Viper, key string, lo, hi float64, logger *slog.Logger) float64 {
	f := finiteFloat(v, key, 1, logger)
	if f < lo || f > hi {
		c := min(max(f, lo), hi)
		logger.Warn("value out of range, clamping", "key", key, "value", f, "clamped", c)
		return c
	}
	return f
}

func boolValue(v *viper.Viper, key string, def bool, logger *slog.Logger) bool {
	raw := v.GetString(key)
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		logger.Warn("invalid boolean, using default", "key", key, "value", raw, "default", def)
		return def
	}
	return b
}

// stringList accepts a JSON array or a comma-separated string.
func stringList(v *viper.Viper, key string) []string {
	var parts []string
	switch raw := v.Get(key).(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(raw, ",")
	default:
		parts = v.GetStringSlice(key)
	}

	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func intList(v *viper.Viper, key string, logger *slog.Logger) []int {
	var out []int
	for _, s := range stringList(v, key) {
		n, err := strconv.Atoi(s)
		if err != nil {
			logger.Warn("ignoring invalid list entry", "key", key, "value", s)
			continue
		}
		out = append(out, n)
	}
	return out
}

func markers(v *viper.Viper, limit int, logger *slog.Logger) []sim.Marker {
	var raw []sim.Marker
	if err := v.UnmarshalKey(keyMarkers, &raw); err != nil {
		logger.Warn("invalid markers, ignoring", "error", err)
		return nil
	}

	out := make([]sim.Marker, 0, len(raw))
	for i, m := range raw {
		switch {
		case strings.TrimSpace(m.Name) == "":
			logger.Warn("skipping marker without a name", "index", i)
			continue
		case m.Lat < -90 || m.Lat > 90 || m.Lon < -180 || m.Lon > 180:
			logger.Warn("skipping marker with out-of-range coordinates", "name", m.Name, "lat", m.Lat, "lon", m.Lon)
			continue
		}
		if len(out) >= limit {
			logger.Warn("too many markers, dropping the rest", "max", limit, "dropped", len(raw)-i)
			break
		}
		out = append(out, m)
	}
	return out
}

func colors(v *viper.Viper, logger *slog.Logger) map[string]string {
	out := make(map[string]string, len(colorKeys))
	for _, k := range colorKeys {
		c := defaultColors[k]
		if v.IsSet(k) {
			raw := v.GetString(k)
			if hexColor.MatchString(raw) {
				c = raw
			} else {
				logger.Warn("invalid color, using default", "key", k, "value", raw, "default", c)
			}
		}
		out[k] = c
	}
	return out
}
