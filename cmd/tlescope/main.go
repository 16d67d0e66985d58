// Command tlescope runs the satellite orbit engine and its HTTP API, and
// offers offline tools for element data.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aweeri/TLEscope/internal/config"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "tlescope",
	Short: "Satellite orbit engine driven by NORAD two-line element sets",
	Long: `tlescope propagates satellites from TLE data, projects them onto a 3D
globe and a 2D map, and serves snapshots to renderers over HTTP.

Settings are read from settings.json (or --config / TLESCOPE_CONFIG) and can
be overridden with TLESCOPE_* environment variables.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default settings.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, fetchCmd, inspectCmd, groupsCmd, passesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads settings and returns a JSON logger at the configured level.
// Logs go to stderr so command output on stdout stays clean.
func setup() (config.Config, *slog.Logger, error) {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(configPath, logger)
	if err != nil {
		return cfg, logger, err
	}
	level.Set(cfg.LogLevel)

	if logLevel != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(logLevel)); err != nil {
			return cfg, logger, fmt.Errorf("invalid --log-level %q", logLevel)
		}
		level.Set(l)
	}
	return cfg, logger, nil
}

// fetchSources returns the primary download URL and the extras: configured
// sources first, then the selected CelesTrak groups.
func fetchSources(cfg config.Config, groupIDs []string) (string, []string, error) {
	if len(groupIDs) == 0 {
		for _, id := range cfg.TLE.Groups {
			groupIDs = append(groupIDs, fmt.Sprint(id))
		}
	}
	found, unknown := tle.LookupGroups(groupIDs)
	if len(unknown) > 0 {
		return "", nil, fmt.Errorf("unknown TLE groups %v (see 'tlescope groups')", unknown)
	}

	urls := append([]string{}, cfg.TLE.ExtraSourceURLs...)
	urls = append(urls, tle.GroupURLs(found)...)

	primary := cfg.TLE.SourceURL
	if primary == "" && len(urls) > 0 {
		primary, urls = urls[0], urls[1:]
	}
	return primary, urls, nil
}

// newLoader wires the element loader from settings. fetch forces
// downloads on regardless of tle_enable_fetch.
func newLoader(cfg config.Config, logger *slog.Logger, fetch bool, groupIDs []string) (*tle.Loader, error) {
	l := &tle.Loader{
		DataFile: cfg.TLE.DataFile,
		Logger:   logger,
	}
	if !fetch && !cfg.TLE.EnableFetch {
		return l, nil
	}

	primary, extras, err := fetchSources(cfg, groupIDs)
	if err != nil {
		return nil, err
	}
	l.Fetcher = tle.NewFetcher(primary, logger, extras...)
	l.Cache = tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles)
	return l, nil
}
