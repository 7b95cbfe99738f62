package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/runnerr0/domaintime/internal/browser"
	"github.com/runnerr0/domaintime/internal/config"
	"github.com/runnerr0/domaintime/internal/daemon"
	"github.com/runnerr0/domaintime/internal/logging"
	"github.com/runnerr0/domaintime/internal/tracker"
)

// Execute implements the go-flags Commander interface for ServeCommand.
func (c *ServeCommand) Execute(args []string) error {
	cfg, err := c.env.config()
	if err != nil {
		return err
	}
	c.applyOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.serve(ctx, cfg, logger)
}

func (c *ServeCommand) applyOverrides(cfg *config.Config) {
	if c.Host != "" {
		cfg.Daemon.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Daemon.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.env.globals != nil && c.env.globals.Verbose {
		cfg.Logging.Level = "debug"
	}
}

// serve runs the tracker loop and the daemon until ctx is cancelled or
// either fails. The tracker credits the open session and flushes its
// writes before the store is closed.
func (c *ServeCommand) serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	s, err := c.env.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	hub := browser.NewHub(logger.With("component", "hub"))
	registry := browser.NewRegistry(hub)

	tr, err := tracker.New(tracker.Options{
		Platform:             registry,
		Indicator:            hub,
		Accrual:              s.accrual.WithLogger(logger.With("component", "storage")),
		Logger:               logger.With("component", "tracker"),
		IdleDetectionSeconds: cfg.Tracking.IdleDetectionSeconds,
		PollInterval:         cfg.Tracking.FocusPollInterval(),
		CreditOnSwitch:       cfg.Tracking.CreditOnSwitch,
		IgnoreDomains:        cfg.Tracking.IgnoreDomains,
	})
	if err != nil {
		return err
	}

	srv, err := daemon.New(daemon.Options{
		Tracker:        tr,
		Registry:       registry,
		Hub:            hub,
		Logger:         logger.With("component", "daemon"),
		AuthToken:      cfg.Daemon.AuthToken,
		MaxRequestSize: int64(cfg.Daemon.MaxRequestSize),
		Version:        c.env.version,
	})
	if err != nil {
		return err
	}

	logger.Info("domaintime starting",
		"version", c.env.version, "db", s.path, "addr", cfg.Daemon.Addr())
	if err := s.kv.Audit(ctx, "serve", "daemon started on "+cfg.Daemon.Addr()); err != nil {
		logger.Warn("audit write failed", "action", "serve", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tr.Run(gctx) })
	g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Daemon.Addr()) })
	tr.Startup("startup")

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("domaintime stopped")
	return nil
}
