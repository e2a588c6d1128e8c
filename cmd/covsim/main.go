// Command covsim runs the satellite coverage engine as an HTTP service or from
// the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SizovOleg/eo-services/internal/api"
	"github.com/SizovOleg/eo-services/internal/cache"
	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/health"
	"github.com/SizovOleg/eo-services/internal/jobs"
	"github.com/SizovOleg/eo-services/internal/optimize"
	"github.com/SizovOleg/eo-services/internal/sweep"
)

var (
	cfgFile  string
	logLevel string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "covsim",
		Short:        "Earth-observation constellation coverage simulator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		newServeCmd(),
		newSimulateCmd(),
		newOptimizeCmd(),
		newSweepCmd(),
		newRegionsCmd(),
		newOrbitCmd(),
		newSeedCmd(),
	)
	return root
}

// newLogger returns the JSON logger used by every component.
func newLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(newLogger(os.Stdout))
		},
	}
}

func serve(logger *slog.Logger) error {
	cfg, err := loadConfig(cfgFile, logger)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	sim := coverage.NewSimulator(logger)
	mgr := jobs.NewManager(jobs.Config{
		MaxActive:     cfg.Jobs.MaxActive,
		Retention:     cfg.Jobs.Retention,
		PruneInterval: cfg.Jobs.PruneInterval,
	}, logger)
	var results *cache.ResultCache
	if cfg.Cache.Enabled {
		results = cache.New(cache.Config{MaxEntries: cfg.Cache.MaxEntries, TTL: cfg.Cache.TTL}, logger)
	}
	ready := &health.Readiness{}

	srv := api.NewServer(api.Config{
		Addr:          cfg.Server.Addr,
		RunTimeout:    cfg.Server.RunTimeout,
		MaxSweep:      cfg.Server.MaxSweep,
		RatePerMinute: cfg.Server.RatePerMinute,
		RateBurst:     cfg.Server.RateBurst,
		TrustProxy:    cfg.Server.TrustProxy,
		Auth:          cfg.Auth,
	}, api.Deps{
		Simulator: sim,
		Optimizer: optimize.New(sim, logger),
		Sweeper:   sweep.NewWorkerPool(cfg.Jobs.SweepWorkers, sim, logger),
		Jobs:      mgr,
		Cache:     results,
		Ready:     ready,
	}, logger)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background workers: cache expiry, job pruning and idle rate-limit state.
	if results != nil {
		go results.Start(ctx)
	}
	jobsDone := make(chan struct{})
	go func() {
		mgr.Start(ctx)
		close(jobsDone)
	}()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.ForgetIdleClients(10 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.Server.Addr, "auth_enabled", cfg.Auth.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	ready.SetReady(true)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server listen error", "error", err)
		return err
	}
	ready.SetReady(false)
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	<-jobsDone

	logger.Info("server stopped")
	return nil
}
