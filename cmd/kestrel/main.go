// Kestrel - Real-time transaction fraud screening.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/archive"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/rules"
	"github.com/opensource-finance/kestrel/internal/seed"
	"github.com/opensource-finance/kestrel/internal/signals"
	"github.com/opensource-finance/kestrel/internal/store"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := loadConfig()

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"velocity", cfg.Velocity.Backend,
		"eventbus", cfg.EventBus.Type,
		"archive_enabled", cfg.Archive.Enabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// In-memory stores: process-lifetime state, lost on restart by design.
	transactions := store.NewTransactionStore(cfg.Store.TransactionCapacity)
	alerts := store.NewAlertStore()

	// Signal providers
	velocityCounter, err := signals.NewVelocityCounter(cfg.Velocity)
	if err != nil {
		slog.Error("failed to initialize velocity counter", "error", err)
		os.Exit(1)
	}
	profiles := signals.NewUserProfiles()
	slog.Info("signal providers initialized", "velocity_backend", cfg.Velocity.Backend)

	// Rule engine
	engine := rules.NewEngine(rules.Providers{
		Velocity:    velocityCounter,
		Locations:   profiles,
		AccountAges: profiles,
	})
	if len(cfg.CustomRules) > 0 {
		if err := rules.RegisterConfigured(engine, cfg.CustomRules); err != nil {
			slog.Error("failed to register custom rules", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("rule engine initialized",
		"rules_count", engine.TotalCount(),
		"enabled_count", engine.EnabledCount(),
		"custom_count", len(cfg.CustomRules),
	)

	// Event bus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Optional archive + worker
	var archiveImpl domain.Archiver
	var archiveWorker *archive.Worker
	if cfg.Archive.Enabled {
		archiveImpl, err = archive.New(cfg.Archive)
		if err != nil {
			slog.Error("failed to initialize archive", "error", err)
			os.Exit(1)
		}
		defer archiveImpl.Close()

		archiveWorker = archive.NewWorker(busImpl, archiveImpl)
		if err := archiveWorker.Start(); err != nil {
			slog.Error("failed to start archive worker", "error", err)
			os.Exit(1)
		}
		slog.Info("archive initialized", "driver", cfg.Archive.Driver)
	}

	// Metrics
	m := metrics.New(transactions.Count, alerts.Count)

	// Sample data for dashboards
	if cfg.SeedSampleData {
		for _, tx := range seed.Transactions(100) {
			stored := transactions.Add(tx)
			profiles.Observe(stored.UserID, stored.Location)
		}
		slog.Info("sample data loaded", "count", transactions.Count())
	}

	handler := api.NewHandler(transactions, alerts, engine, busImpl, archiveImpl, m, velocityCounter, profiles, Version)
	srv := api.NewServer(cfg.Server, handler, m.Handler())

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if archiveWorker != nil {
		if err := archiveWorker.Stop(); err != nil {
			slog.Error("failed to stop archive worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// loadConfig builds the configuration from defaults and environment
// overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()

	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if port := os.Getenv("KESTREL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if os.Getenv("KESTREL_SEED") == "true" {
		cfg.SeedSampleData = true
	}
	if os.Getenv("KESTREL_ARCHIVE") == "true" {
		cfg.Archive.Enabled = true
	}
	if path := os.Getenv("KESTREL_ARCHIVE_SQLITE_PATH"); path != "" {
		cfg.Archive.SQLitePath = path
	}
	if addr := os.Getenv("KESTREL_REDIS_ADDR"); addr != "" {
		cfg.Velocity.RedisAddr = addr
	}
	if url := os.Getenv("KESTREL_NATS_URL"); url != "" {
		cfg.EventBus.NATSUrl = url
	}
	if path := os.Getenv("KESTREL_RULES_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Error("failed to read rules file", "path", path, "error", err)
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &cfg.CustomRules); err != nil {
			slog.Error("failed to parse rules file", "path", path, "error", err)
			os.Exit(1)
		}
	}

	return cfg
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  KESTREL - Transaction Fraud Screening")
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /api/transactions          - Screen a transaction")
	fmt.Println("    POST /api/transactions/analyze  - Evaluate without storing")
	fmt.Println("    GET  /api/alerts                - List fraud alerts")
	fmt.Println("    GET  /api/rules                 - Rule configuration")
	fmt.Println("    GET  /api/stats                 - Aggregate statistics")
	fmt.Println()
}
