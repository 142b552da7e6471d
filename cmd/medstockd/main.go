// Package main is the entrypoint for the medstockd server.
// The server exposes the inventory ledger over HTTP, runs the scheduled
// alert checker, and emails digests of critical alerts when configured.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/alerts"
	"github.com/medstock-labs/medstock/internal/auth"
	"github.com/medstock-labs/medstock/internal/config"
	"github.com/medstock-labs/medstock/internal/gateway"
	"github.com/medstock-labs/medstock/internal/notify"
	"github.com/medstock-labs/medstock/internal/observability"
	"github.com/medstock-labs/medstock/internal/reports"
	"github.com/medstock-labs/medstock/internal/storage"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "medstockd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "config file path")
		addr       = flag.String("addr", "", "HTTP listen address (overrides config)")
		devMode    = flag.Bool("dev", false, "development mode (in-memory store, default token)")
		showVer    = flag.Bool("version", false, "show version")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("medstockd %s (commit: %s, built: %s)\n", version, commit, date)
		return nil
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger, err := observability.NewLogger(cfg.Logging, os.Stderr)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	clk := clock.New()

	var store storage.Store
	if *devMode {
		logger.Warn("development mode: using in-memory store, data is not persisted")
		store = storage.NewMemoryStore()
	} else {
		driver, dsn, err := cfg.Database.DSN()
		if err != nil {
			return err
		}
		sqlStore, err := storage.Open(ctx, driver, dsn)
		if err != nil {
			return err
		}
		store = sqlStore
		logger.Info("connected to database", zap.String("driver", driver))
	}
	defer store.Close()

	if cfg.Auth.Token == "" && len(cfg.Auth.Users) == 0 {
		if !*devMode {
			return fmt.Errorf("no auth tokens configured: set auth.token or auth.users (use -dev for development mode)")
		}
		// Development mode runs without configured tokens.
		cfg.Auth.Token = "dev"
		logger.Warn("development mode: using token \"dev\"")
	}
	authenticator := auth.FromConfig(cfg.Auth)

	metrics := observability.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return err
	}

	checker := alerts.NewChecker(store, logger, metrics, clk,
		cfg.Alerts.ExpiryWindowDays, cfg.Alerts.RetentionDays)

	srv := gateway.NewServer(gateway.Options{
		Store:            store,
		Authenticator:    authenticator,
		Logger:           logger,
		Metrics:          metrics,
		Registry:         registry,
		Checker:          checker,
		Reports:          reports.NewGenerator(store, clk, cfg.Alerts.ExpiryWindowDays),
		Clock:            clk,
		ExpiryWindowDays: cfg.Alerts.ExpiryWindowDays,
		Version:          version,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  parseDuration(cfg.Server.ReadTimeout, 30*time.Second),
		WriteTimeout: parseDuration(cfg.Server.WriteTimeout, 30*time.Second),
		IdleTimeout:  60 * time.Second,
	}

	schedCtx, stopSched := context.WithCancel(ctx)
	defer stopSched()
	if cfg.Alerts.Schedule != "" {
		scheduler, err := alerts.NewScheduler(checker, cfg.Alerts.Schedule, logger, clk)
		if err != nil {
			return fmt.Errorf("invalid alert schedule: %w", err)
		}
		if cfg.Alerts.Email {
			mailer := notify.NewMailer(cfg.SMTP, cfg.Pharmacy.Name, logger)
			if mailer.Configured() {
				scheduler.Notify = func(ctx context.Context, result *alerts.CheckResult) {
					critical, err := checker.CriticalAlerts(ctx)
					if err != nil || len(critical) == 0 {
						return
					}
					if err := mailer.SendAlertDigest(ctx, critical); err != nil {
						logger.Error("alert digest failed", zap.Error(err))
					}
				}
			} else {
				logger.Warn("alert email enabled but SMTP is not configured")
			}
		}
		go func() {
			if err := scheduler.Run(schedCtx); err != nil && err != context.Canceled {
				logger.Error("alert scheduler stopped", zap.Error(err))
			}
		}()
		logger.Info("alert scheduler started", zap.String("schedule", cfg.Alerts.Schedule))
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		logger.Info("shutting down")
		stopSched()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
		close(done)
	}()

	logger.Info("medstockd starting",
		zap.String("addr", cfg.Server.Addr),
		zap.String("version", version),
		zap.String("commit", commit))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	<-done
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
