package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"text/tabwriter"

	"github.com/aweeri/TLEscope/internal/apsis"
	"github.com/aweeri/TLEscope/internal/config"
	"github.com/aweeri/TLEscope/internal/ephemeris"
	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/aweeri/TLEscope/internal/transform"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/spatial/r3"
)

var inspectName string

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Parse an element file and summarize its satellites",
	Long: `Parse an element file (default tle_data_file), list every satellite with
its orbit shape and report skipped records. With --name, also show where the
satellite is now: sub-satellite point, lighting and the next apsides.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectName, "name", "", "show live state for this satellite")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		cfg.TLE.DataFile = args[0]
	}

	ds, report, err := (&tle.Loader{DataFile: cfg.TLE.DataFile, Logger: logger}).Load(context.Background())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s: %d satellites, %d skipped, epochs %s .. %s\n\n",
		ds.Source, len(ds.Satellites), len(report.Skipped), ds.EpochRange.Min, ds.EpochRange.Max)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "NORAD\tNAME\tEPOCH\tINC°\tECC\tPERIOD min\tPERI km\tAPO km\t")
	for _, e := range ds.Satellites {
		el := &e.Elements
		fmt.Fprintf(tw, "%d\t%s\t%.8f\t%.4f\t%.7f\t%.2f\t%.1f\t%.1f\t\n",
			e.NORADID, e.Name, float64(el.Epoch), el.Inclination*180/math.Pi, el.Eccentricity,
			el.PeriodSeconds()/60,
			el.SemiMajorAxis*(1-el.Eccentricity)-transform.EarthRadius,
			el.SemiMajorAxis*(1+el.Eccentricity)-transform.EarthRadius,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(report.Skipped) > 0 {
		fmt.Fprintln(w, "\nSkipped records:")
		for _, d := range report.Skipped {
			fmt.Fprintf(w, "  line %d %q: %s\n", d.Index, d.Name, d.Reason)
		}
	}

	if inspectName == "" {
		return nil
	}
	for i := range ds.Satellites {
		if ds.Satellites[i].Name == inspectName {
			return printLive(cmd, cfg, logger, &ds.Satellites[i])
		}
	}
	return fmt.Errorf("satellite %q not found in %s", inspectName, ds.Source)
}

func printLive(cmd *cobra.Command, cfg config.Config, logger *slog.Logger, e *tle.Entry) error {
	strategy, err := propagation.New(cfg.Strategy, logger)
	if err != nil {
		return err
	}

	now := epoch.Now()
	gmst := now.GMST()
	pos := strategy.Position(&e.Elements, now)
	if pos == (r3.Vec{}) {
		return fmt.Errorf("propagation failed for %s", e.Name)
	}

	sub := transform.SubSatellite(pos, gmst, cfg.Sim.EarthOffsetDeg)
	light, depth := ephemeris.Illumination(pos, ephemeris.SunPosition(now))
	peri, apo := apsis.Both(strategy, &e.Elements, now, apsis.View{
		EarthOffsetDeg: cfg.Sim.EarthOffsetDeg,
		MapWidth:       2048,
		MapHeight:      1024,
	})

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\n%s (%d) at %s using %s\n", e.Name, e.NORADID, now, strategy.Name())
	fmt.Fprintf(w, "  sub-satellite  lat %.3f°  lon %.3f°  alt %.1f km\n", sub.LatDeg, sub.LonDeg, sub.AltM/1000)
	fmt.Fprintf(w, "  lighting       %s (depth %.4f rad)\n", light, depth)
	fmt.Fprintf(w, "  periapsis      %s  alt %.1f km\n", peri.DateTime, peri.AltitudeKm)
	fmt.Fprintf(w, "  apoapsis       %s  alt %.1f km\n", apo.DateTime, apo.AltitudeKm)
	return nil
}
