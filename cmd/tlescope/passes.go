package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/passes"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/aweeri/TLEscope/internal/transform"
	"github.com/spf13/cobra"
)

var (
	passMarker string
	passLat    float64
	passLon    float64
	passAlt    float64
	passHours  float64
	passMinEl  float64
	passMax    int
	passNames  []string
	passLimit  int
)

var passesCmd = &cobra.Command{
	Use:   "passes",
	Short: "Predict satellite passes over a ground marker",
	Long: `Predict passes over a configured marker (--marker) or an explicit location
(--lat/--lon). Satellites come from tle_data_file; narrow them with --name
or --limit.`,
	Example: `  tlescope passes --marker Warsaw --name "ISS (ZARYA)"
  tlescope passes --lat 39.7392 --lon -104.9903 --alt 1609 --hours 72 --min-el 1 --limit 5`,
	Args: cobra.NoArgs,
	RunE: runPasses,
}

func init() {
	f := passesCmd.Flags()
	f.StringVar(&passMarker, "marker", "", "configured marker name")
	f.Float64Var(&passLat, "lat", 0, "observer latitude in degrees")
	f.Float64Var(&passLon, "lon", 0, "observer longitude in degrees")
	f.Float64Var(&passAlt, "alt", 0, "observer altitude in meters")
	f.Float64Var(&passHours, "hours", 24, "prediction window in hours")
	f.Float64Var(&passMinEl, "min-el", 10, "minimum peak elevation in degrees")
	f.IntVar(&passMax, "max", 10, "maximum passes per satellite")
	f.StringSliceVar(&passNames, "name", nil, "satellite name (repeatable)")
	f.IntVar(&passLimit, "limit", 0, "only the first N satellites (0 = all)")
	passesCmd.MarkFlagsMutuallyExclusive("marker", "lat")
	passesCmd.MarkFlagsRequiredTogether("lat", "lon")
}

func runPasses(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	var obs transform.ObserverPosition
	switch {
	case passMarker != "":
		found := false
		for _, m := range cfg.Markers {
			if m.Name == passMarker {
				obs = transform.NewObserverPosition(m.Lat, m.Lon, 0)
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("unknown marker %q", passMarker)
		}
	case cmd.Flags().Changed("lat"):
		obs = transform.NewObserverPosition(passLat, passLon, passAlt)
	default:
		return fmt.Errorf("either --marker or --lat and --lon is required")
	}

	ds, _, err := (&tle.Loader{DataFile: cfg.TLE.DataFile, Logger: logger}).Load(cmd.Context())
	if err != nil {
		return err
	}

	var targets []passes.Target
	for i := range ds.Satellites {
		e := &ds.Satellites[i]
		if len(passNames) > 0 && !contains(passNames, e.Name) {
			continue
		}
		targets = append(targets, passes.Target{Name: e.Name, NORADID: e.NORADID, Elements: &e.Elements})
		if passLimit > 0 && len(targets) == passLimit {
			break
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("no satellites selected from %s", ds.Source)
	}

	strategy, err := propagation.New(cfg.Strategy, logger)
	if err != nil {
		return err
	}

	start := epoch.Now()
	results := passes.Predict(cmd.Context(), passes.Request{
		Observer:       obs,
		Targets:        targets,
		Strategy:       strategy,
		Start:          start,
		HorizonHours:   passHours,
		MinElevation:   passMinEl,
		MaxPasses:      passMax,
		EarthOffsetDeg: cfg.Sim.EarthOffsetDeg,
	})

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Prediction start: %s, %d satellite(s), %.0f h\n", start, len(targets), passHours)
	total := 0
	for _, sat := range results {
		if sat.Error != "" {
			fmt.Fprintf(w, "  %s (%d): ERROR %s\n", sat.Name, sat.NORADID, sat.Error)
			continue
		}
		fmt.Fprintf(w, "  %s (%d): %d passes\n", sat.Name, sat.NORADID, len(sat.Passes))
		total += len(sat.Passes)
		for j, p := range sat.Passes {
			fmt.Fprintf(w, "    pass %d: start=%s maxEl=%.1f° az %.0f°→%.0f° dur=%.0fs\n",
				j, p.StartTime.Format(time.RFC3339), p.MaxElevation, p.StartAzimuth, p.EndAzimuth, p.DurationSeconds)
		}
	}
	fmt.Fprintf(w, "\nTotal passes found: %d\n", total)
	return nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}
