package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mlenko/flightpath/internal/airports"
	"github.com/mlenko/flightpath/internal/api"
	"github.com/mlenko/flightpath/internal/cache"
	"github.com/mlenko/flightpath/internal/config"
	"github.com/mlenko/flightpath/internal/progress"
	"github.com/mlenko/flightpath/internal/provider"
	"github.com/mlenko/flightpath/internal/quota"
	"github.com/mlenko/flightpath/internal/refresh"
	"github.com/mlenko/flightpath/internal/storage/sqlite"
	"github.com/mlenko/flightpath/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting flightpath server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Open SQLite storage for quota state and the call audit log
	if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dir))
			os.Exit(1)
		}
	}
	db, err := sqlite.Open(cfg.Storage.SQLitePath)
	if err != nil {
		log.Error("Failed to open SQLite database", logger.Error(err), logger.String("path", cfg.Storage.SQLitePath))
		os.Exit(1)
	}
	defer db.Close()

	quotaStore, err := sqlite.NewQuotaStore(db, log)
	if err != nil {
		log.Error("Failed to create quota store", logger.Error(err))
		os.Exit(1)
	}
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	// Airport reference data
	var airportDB *airports.DB
	if cfg.Airports.DBPath != "" {
		airportDB, err = airports.Load(cfg.Airports.DBPath, log)
		if err != nil {
			log.Warn("Airport database unavailable, route geometry disabled", logger.Error(err))
			airportDB = nil
		}
	}

	// Quota governor over the persisted counter
	governor := quota.NewGovernor(cfg.Quota.MonthlyLimit, quotaStore, log)
	if status, err := governor.Status(); err == nil {
		log.Info("Quota state loaded",
			logger.String("month", status.Month),
			logger.Int("used", status.Used),
			logger.Int("remaining", status.Remaining))
	}

	// Adaptive TTL cache
	statusCache := cache.New(cfg.Cache.MaxEntries, log)

	// Upstream provider
	prov := provider.NewAeroDataBox(provider.AeroDataBoxConfig{
		BaseURL:           cfg.Provider.BaseURL,
		APIHost:           cfg.Provider.APIHost,
		APIKey:            cfg.Provider.APIKey,
		Timeout:           time.Duration(cfg.Provider.TimeoutSecs) * time.Second,
		RequestsPerMinute: cfg.Provider.RequestsPerMinute,
	}, log)

	// Progress engine heuristics
	progressCfg := progress.DefaultConfig()
	progressCfg.StalePositionMaxAge = time.Duration(cfg.Progress.StalePositionMaxAgeSecs) * time.Second
	progressCfg.ArrivalRadiusNM = cfg.Progress.ArrivalRadiusNM
	progressCfg.ApproachRadiusNM = cfg.Progress.ApproachRadiusNM
	progressCfg.ApproachMaxAltFt = cfg.Progress.ApproachMaxAltFt
	progressCfg.SmoothingWindow = cfg.Progress.SmoothingWindow
	progressCfg.TimeFallbackMonotonic = cfg.Progress.TimeFallbackMonotonic

	// Refresh orchestrator; no live position feed is wired in this
	// deployment, so the time fallback carries schedule-only providers.
	var resolver refresh.AirportResolver
	if airportDB != nil {
		resolver = airportDB
	}
	refreshSvc := refresh.NewService(
		statusCache,
		governor,
		prov,
		nil,
		resolver,
		progressCfg,
		refresh.Config{
			ProviderTimeout: time.Duration(cfg.Provider.TimeoutSecs) * time.Second,
			Workers:         cfg.Refresh.WorkerCount,
		},
		quotaStore,
		log,
	)

	// HTTP server
	router := api.NewRouter(refreshSvc, governor, statusCache, cfg, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.Error(err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}

	log.Info("Server fully stopped")
}
