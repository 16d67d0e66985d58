package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/aweeri/TLEscope/internal/api"
	"github.com/aweeri/TLEscope/internal/epoch"
	"github.com/aweeri/TLEscope/internal/httputil"
	"github.com/aweeri/TLEscope/internal/metrics"
	"github.com/aweeri/TLEscope/internal/propagation"
	"github.com/aweeri/TLEscope/internal/sim"
	"github.com/aweeri/TLEscope/internal/stream"
	"github.com/aweeri/TLEscope/internal/tle"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation and serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader, err := newLoader(cfg, logger, false, nil)
	if err != nil {
		return err
	}
	store := tle.NewStore()
	if ds, _, err := loader.Load(ctx); err != nil {
		if loader.Fetcher == nil {
			return err
		}
		logger.Warn("starting without TLE data, waiting for refresh", "error", err)
	} else {
		store.Set(ds)
	}

	strategy, err := propagation.New(cfg.Strategy, logger)
	if err != nil {
		return err
	}

	simCtx := sim.NewContext(cfg.Sim, strategy, epoch.Now(), logger)
	simCtx.LoadMarkers(cfg.Markers)
	runner := sim.NewRunner(simCtx, store, cfg.Runner, logger)

	streamHandler := stream.NewHandler(runner, runner, store, cfg.Stream, logger)
	srv := api.NewServer(cfg.HTTPAddr, api.Deps{
		Runner:        runner,
		Store:         store,
		Strategy:      strategy,
		Stream:        streamHandler,
		Settings:      cfg.Display,
		PassesLimiter: httputil.NewIPRateLimiter(rate.Limit(cfg.PassesRate), cfg.PassesBurst),
		TrustProxy:    cfg.TrustProxy,
	}, logger, cfg.Auth)

	runnerErr := make(chan error, 1)
	go func() { runnerErr <- runner.Run(ctx) }()

	if loader.Fetcher != nil {
		go loader.RunRefresh(ctx, store, cfg.TLE.MaxAge)
	}

	// Background goroutine to update TLE dataset age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetTLEDatasetAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"auth_enabled", cfg.Auth.Enabled,
			"tle_fetch_enabled", loader.Fetcher != nil,
			"propagator", strategy.Name(),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		if err != nil {
			logger.Error("server listen error", "error", err)
		}
		stop()
	case err = <-runnerErr:
		logRunnerExit(logger, err)
		stop()
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil && !errors.Is(serr, context.DeadlineExceeded) {
		logger.Error("server shutdown error", "error", serr)
		return serr
	}

	logger.Info("server stopped")
	return err
}

// logRunnerExit reports the sim runner returning before shutdown. A nil
// error is a clean exit and is not logged as a failure.
func logRunnerExit(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("sim runner stopped", "error", err)
		return
	}
	logger.Info("sim runner stopped")
}
