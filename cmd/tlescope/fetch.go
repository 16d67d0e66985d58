package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/spf13/cobra"
)

var (
	fetchGroups []string
	fetchOut    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download element sets into the cache and the data file",
	Long: `Download element sets from the configured source, the extra URLs and the
selected CelesTrak groups. The raw download is written to the TLE cache
directory and to the data file (tle_data_file, or --out).`,
	Example: `  tlescope fetch --group 2 --group 20
  tlescope fetch --out stations.tle`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().StringSliceVar(&fetchGroups, "group", nil, "CelesTrak group id (repeatable, overrides tle_groups)")
	fetchCmd.Flags().StringVar(&fetchOut, "out", "", "write the download here instead of tle_data_file")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	primary, extras, err := fetchSources(cfg, fetchGroups)
	if err != nil {
		return err
	}
	fetcher := tle.NewFetcher(primary, logger, extras...)

	data, err := fetcher.Fetch(cmd.Context())
	if err != nil {
		return err
	}
	entries, report, err := tle.Parse(bytes.NewReader(data), logger)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w from %v", tle.ErrNoData, fetcher.Sources())
	}

	manifest := tle.Manifest{
		Source:    strings.Join(fetcher.Sources(), " "),
		FetchedAt: time.Now(),
		Parsed:    report.Parsed,
		Skipped:   report.Skipped,
	}
	if err := tle.NewCache(cfg.TLE.CacheDir, cfg.TLE.MaxFiles).Write(data, manifest); err != nil {
		logger.Warn("failed to write TLE cache", "dir", cfg.TLE.CacheDir, "error", err)
	}

	out := fetchOut
	if out == "" {
		out = cfg.TLE.DataFile
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Fetched %d satellites (%d skipped) from %d source(s) into %s\n",
		len(entries), len(report.Skipped), len(fetcher.Sources()), out)
	for _, d := range report.Skipped {
		fmt.Fprintf(w, "  skipped line %d %q: %s\n", d.Index, d.Name, d.Reason)
	}
	return nil
}
