// Heron - Healthcare claims adjudication that deploys in 60 seconds.
// Copyright (c) 2025 openhealth-claims
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/openhealth-claims/heron/internal/api"
	"github.com/openhealth-claims/heron/internal/bus"
	"github.com/openhealth-claims/heron/internal/cache"
	"github.com/openhealth-claims/heron/internal/domain"
	"github.com/openhealth-claims/heron/internal/engine"
	"github.com/openhealth-claims/heron/internal/network"
	"github.com/openhealth-claims/heron/internal/repository"
	"github.com/openhealth-claims/heron/internal/screening"
	"github.com/openhealth-claims/heron/internal/worker"
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
	if os.Getenv("HERON_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting heron",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("HERON_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
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

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

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

	// Initialize Screening Engine
	screen, err := screening.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize screening engine", "error", err)
		os.Exit(1)
	}
	defer screen.Close()

	// Load screening rules from database (no hardcoded defaults - configure via API)
	if err := loadScreeningRulesFromDatabase(ctx, repo, screen); err != nil {
		slog.Error("failed to load screening rules", "error", err)
		os.Exit(1)
	}
	slog.Info("screening engine initialized", "rules_count", screen.RulesCount())

	// Initialize provider network directory. Until a directory feed is
	// configured, every provider counts as in-network.
	providerNetwork := network.NewAllowAll()

	// Initialize Adjudicator. Benefit reads go through the cache; member
	// and claim-history reads always hit the repository.
	lookups := cache.NewCachedLookups(repo, cacheImpl, 5*time.Minute)
	adjudicator := engine.New(lookups, providerNetwork, screen, cfg.Adjudication)
	slog.Info("adjudicator initialized", "engine_version", engine.Version)

	// Initialize async Worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HERON_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, adjudicator)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := []string{}
		if envTenants := os.Getenv("HERON_TENANTS"); envTenants != "" {
			tenantIDs = strings.Split(envTenants, ",")
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, adjudicator, screen, Version)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("heron is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("heron shutdown complete")
}

// GlobalTenantID is used for screening rules that apply to all tenants.
const GlobalTenantID = "*"

// loadScreeningRulesFromDatabase loads screening rules into the engine.
// All rules must be configured via POST /screening/rules - no hardcoded defaults.
func loadScreeningRulesFromDatabase(ctx context.Context, repo domain.Repository, screen *screening.Engine) error {
	dbRules, err := repo.ListScreeningRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list screening rules from database", "error", err)
		return nil // Start with empty rules - they can be added via API
	}

	if len(dbRules) > 0 {
		slog.Info("loading screening rules from database", "count", len(dbRules))
		return screen.ReloadRules(dbRules)
	}

	slog.Info("no screening rules in database - configure via POST /screening/rules")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║                 HERON                     ║")
	fmt.Println("  ║      Claims Adjudication Engine           ║")
	fmt.Println("  ║      Every claim, quickly decided.        ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /claims/evaluate          - Adjudicate a claim synchronously")
	fmt.Println("    POST /claims                   - Submit a claim for async adjudication")
	fmt.Println("    GET  /claims                   - List claims")
	fmt.Println("    GET  /claims/{id}              - Get claim by ID")
	fmt.Println("    GET  /outcomes/{id}            - Get validation outcome by ID")
	fmt.Println("    PUT  /members                  - Create or update a member")
	fmt.Println("    GET  /members/{id}             - Get member by ID")
	fmt.Println("    PUT  /benefits                 - Create or update a benefit")
	fmt.Println("    GET  /schemes/{id}/benefits    - List scheme benefits")
	fmt.Println("    GET  /screening/rules          - List screening rules")
	fmt.Println("    POST /screening/rules          - Create a screening rule")
	fmt.Println("    POST /screening/rules/reload   - Hot-reload screening rules")
	fmt.Println("    GET  /health                   - Health check")
	fmt.Println()
}
