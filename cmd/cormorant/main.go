// Cormorant - Reservation fraud scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.travel
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-travel/cormorant/internal/api"
	"github.com/opensource-travel/cormorant/internal/bus"
	"github.com/opensource-travel/cormorant/internal/cache"
	"github.com/opensource-travel/cormorant/internal/detector"
	"github.com/opensource-travel/cormorant/internal/domain"
	"github.com/opensource-travel/cormorant/internal/model"
	"github.com/opensource-travel/cormorant/internal/notify"
	"github.com/opensource-travel/cormorant/internal/rules"
	"github.com/opensource-travel/cormorant/internal/velocity"
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
	if os.Getenv("CORMORANT_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting cormorant",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := loadConfig()

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"model_dir", cfg.Model.Dir,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize velocity tracker for same-day booking counts
	tracker := velocity.NewTracker(cacheImpl, velocity.DefaultWindow)

	// Initialize supplemental rule engine and load the rules file if present
	engine, err := rules.NewEngine()
	if err != nil {
		slog.Error("failed to initialize rule engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ruleCount, err := engine.LoadFile(cfg.Rules.File)
	if err != nil {
		slog.Error("failed to load rules file", "file", cfg.Rules.File, "error", err)
		os.Exit(1)
	}
	slog.Info("rule engine initialized", "rules_count", ruleCount)

	// Load the trained model bundle. A missing or broken bundle is not
	// fatal, scoring degrades to the rule table.
	var modelScorer *model.Scorer
	bundle, err := model.Load(cfg.Model.Dir)
	if err != nil {
		slog.Warn("model bundle not loaded - using rule-based detection",
			"dir", cfg.Model.Dir,
			"error", err,
		)
		modelScorer = model.NewScorer(nil)
	} else {
		slog.Info("model bundle loaded",
			"dir", cfg.Model.Dir,
			"features", len(bundle.Order().Names),
			"version", bundle.Version(),
		)
		modelScorer = model.NewScorer(bundle)
	}

	det := detector.New(rules.NewScorer(engine), modelScorer)

	// Start the alert notification worker when SMTP is configured
	var notifyWorker *notify.Worker
	if cfg.Notifier.SMTPHost != "" {
		sender := notify.NewSMTPSender(cfg.Notifier)
		notifyWorker = notify.NewWorker(busImpl, sender, cfg.Notifier)

		tenantIDs := []string{api.DefaultTenantID}
		if envTenants := os.Getenv("CORMORANT_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		if err := notifyWorker.Start(tenantIDs); err != nil {
			slog.Error("failed to start notification worker", "error", err)
		}
	} else {
		slog.Info("notification worker disabled - no SMTP host configured")
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, cacheImpl, busImpl, det, engine, tracker, cfg.Rules.File, cfg.Cache.LocalTTL, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("cormorant is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"model_loaded", det.ModelAvailable(),
	)

	printBanner(cfg, Version, det.ModelAvailable())

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	if notifyWorker != nil {
		notifyWorker.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("cormorant shutdown complete")
}

// loadConfig builds the configuration from tier defaults plus environment
// overrides.
func loadConfig() *domain.Config {
	cfg := domain.DefaultConfig()

	if os.Getenv("CORMORANT_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if dir := os.Getenv("CORMORANT_MODEL_DIR"); dir != "" {
		cfg.Model.Dir = dir
	}
	if file := os.Getenv("CORMORANT_RULES_FILE"); file != "" {
		cfg.Rules.File = file
	}
	if addr := os.Getenv("CORMORANT_REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}
	if url := os.Getenv("CORMORANT_NATS_URL"); url != "" {
		cfg.EventBus.NATSUrl = url
	}

	cfg.Notifier.SMTPHost = os.Getenv("CORMORANT_SMTP_HOST")
	if port := os.Getenv("CORMORANT_SMTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Notifier.SMTPPort = p
		}
	} else if cfg.Notifier.SMTPHost != "" {
		cfg.Notifier.SMTPPort = 587
	}
	cfg.Notifier.Username = os.Getenv("CORMORANT_SMTP_USERNAME")
	cfg.Notifier.Password = os.Getenv("CORMORANT_SMTP_PASSWORD")
	cfg.Notifier.From = os.Getenv("CORMORANT_SMTP_FROM")
	cfg.Notifier.OwnerEmail = os.Getenv("CORMORANT_OWNER_EMAIL")

	return cfg
}

func printBanner(cfg *domain.Config, version string, modelLoaded bool) {
	scoring := "rule-based"
	if modelLoaded {
		scoring = "ML model + rule fallback"
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               CORMORANT                   ║")
	fmt.Println("  ║     Reservation Fraud Scoring Engine      ║")
	fmt.Println("  ║       Eyes on every booking.              ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Scoring:  %s\n", scoring)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /predict           - Score a booking for fraud")
	fmt.Println("    GET  /evaluations/{id}  - Get a recent evaluation")
	fmt.Println("    POST /compare-patterns  - Compare user vs industry patterns")
	fmt.Println("    POST /analyze-bookings  - Analyze a booking burst")
	fmt.Println("    GET  /rules             - List supplemental rules")
	fmt.Println("    POST /rules             - Add a supplemental rule")
	fmt.Println("    POST /rules/reload      - Reload rules from file")
	fmt.Println("    GET  /status            - Service status")
	fmt.Println("    GET  /health            - Health check")
	fmt.Println()
}
