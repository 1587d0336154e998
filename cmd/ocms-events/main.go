// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata" // zone data for OCMS_EVENTS_TIMEZONE on minimal images

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/ocms-events/internal/cache"
	"github.com/olegiv/ocms-events/internal/config"
	"github.com/olegiv/ocms-events/internal/handler/api"
	"github.com/olegiv/ocms-events/internal/i18n"
	"github.com/olegiv/ocms-events/internal/logging"
	"github.com/olegiv/ocms-events/internal/middleware"
	"github.com/olegiv/ocms-events/internal/module"
	"github.com/olegiv/ocms-events/internal/notify"
	"github.com/olegiv/ocms-events/internal/scheduler"
	"github.com/olegiv/ocms-events/internal/store"
	"github.com/olegiv/ocms-events/internal/version"
	"github.com/olegiv/ocms-events/modules/events"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "ocms-events - event calendars for oCMS\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_ADMIN_API_KEY             Admin API key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_PATH                   SQLite database path (default: ./data/ocms-events.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SERVER_PORT               Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SITE_URL                  Public base URL for feeds and the sitemap (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_EVENTS_TIMEZONE           Time zone sessions are shown in (default: UTC)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_EVENTS_SEED_FILE          YAML fixtures imported into an empty database (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_REDIS_URL                 Redis URL for distributed caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_KAFKA_BROKERS             Kafka brokers for change notifications (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Printf("ocms-events %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	logLevel := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := i18n.Init(logger); err != nil {
		return fmt.Errorf("initializing i18n: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	// Copy warnings and errors into the audit log from here on
	logger = slog.New(logging.NewAuditLogHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}), db))
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := store.SeedAdminKey(ctx, db, cfg.AdminAPIKey); err != nil {
		return fmt.Errorf("seeding admin key: %w", err)
	}

	cacheConfig := cache.DefaultConfig()
	cacheConfig.RedisURL = cfg.RedisURL
	cacheConfig.Prefix = cfg.CachePrefix
	cacheConfig.DefaultTTL = time.Duration(cfg.CacheTTL) * time.Second
	cacheConfig.MaxSize = cfg.CacheMaxSize
	appCache, err := cache.NewCache(cacheConfig, logger)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = appCache.Close() }()

	publisher := notify.New(notify.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
	defer func() { _ = publisher.Close() }()

	schedulerRegistry := scheduler.NewRegistry(db, logger)
	sched := scheduler.New(db, schedulerRegistry, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	hookRegistry := module.NewHookRegistry(logger)
	moduleRegistry := module.NewRegistry(logger)

	moduleCtx := &module.Context{
		DB:                db,
		Store:             store.New(db),
		Logger:            logger,
		Config:            cfg,
		Cache:             appCache,
		Hooks:             hookRegistry,
		SchedulerRegistry: schedulerRegistry,
		Publisher:         publisher,
	}

	if err := moduleRegistry.Register(events.New()); err != nil {
		return fmt.Errorf("registering events module: %w", err)
	}

	if err := moduleRegistry.InitAll(moduleCtx); err != nil {
		return fmt.Errorf("initializing modules: %w", err)
	}
	defer func() {
		if err := moduleRegistry.ShutdownAll(); err != nil {
			slog.Error("error shutting down modules", "error", err)
		}
	}()

	hookRegistry.SetIsModuleActive(moduleRegistry.IsActive)
	slog.Info("module system initialized", "modules", moduleRegistry.Count())

	publicRateLimiter := middleware.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-pruneCtx.Done():
				return
			case <-ticker.C:
				if publicRateLimiter.Prune() {
					slog.Debug("rate limiter clients pruned")
				}
			}
		}
	}()

	apiHandler := api.NewHandler(api.Deps{
		DB:        db,
		Modules:   moduleRegistry,
		Hooks:     hookRegistry,
		Scheduler: schedulerRegistry,
		Cache:     appCache,
		Version:   versionInfo,
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment())))

	r.Get("/health", apiHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(publicRateLimiter.Middleware())
		moduleRegistry.RouteAll(r)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(db))
		r.Use(middleware.APIRateLimit(10, 20)) // per API key
		apiHandler.Routes(r)
		moduleRegistry.AdminRouteAll(r)
	})

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", versionInfo.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
