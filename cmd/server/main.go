package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	_ "github.com/tropicaldog17/mangaguard/docs"
	"github.com/tropicaldog17/mangaguard/internal/cache"
	"github.com/tropicaldog17/mangaguard/internal/classifier"
	"github.com/tropicaldog17/mangaguard/internal/config"
	"github.com/tropicaldog17/mangaguard/internal/db"
	"github.com/tropicaldog17/mangaguard/internal/handlers"
	"github.com/tropicaldog17/mangaguard/internal/logger"
	"github.com/tropicaldog17/mangaguard/internal/moderation"
	"github.com/tropicaldog17/mangaguard/internal/repositories"
	"github.com/tropicaldog17/mangaguard/internal/services"
)

const shutdownTimeout = 15 * time.Second

// @title MangaGuard API
// @version 1.0
// @description Moderation pipeline for user posts about manga works.
// @BasePath /api
func main() {
	loaded := config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration:", err)
	}

	zl, err := logger.New(cfg.LogEnv, cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer zl.Sync()
	if len(loaded) > 0 {
		zl.Info("Loaded env files", zap.Strings("files", loaded))
	}

	if err := run(cfg, zl); err != nil {
		zl.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection
	database, err := db.Connect(&cfg.DB)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, database.Close()) }()

	if !database.IsPostgres() {
		if err := database.Migrate(); err != nil {
			return err
		}
	}
	zl.Info("Database connection established", zap.String("driver", cfg.DB.Driver))

	reportCache, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		// reports are served uncached
		zl.Warn("Redis unavailable, report caching disabled", zap.Error(err))
		reportCache = cache.NewService(nil)
	}
	defer func() { err = multierr.Append(err, reportCache.Close()) }()

	clf, err := classifier.New(cfg.Classifier, zl)
	if err != nil {
		return err
	}
	engine, err := moderation.NewEngine(cfg.Thresholds)
	if err != nil {
		return err
	}

	// Initialize repositories and services
	postRepo := repositories.NewPostRepository(database)
	reportRepo := repositories.NewReportingRepository(database)

	moderationService := services.NewModerationService(postRepo, clf, engine, zl)
	reportingService := services.NewReportingService(postRepo, reportRepo, reportCache, cfg.ReportCacheTTL, zl)

	checks := map[string]handlers.HealthCheck{
		"database": func(context.Context) error { return database.Health() },
	}
	if reportCache.IsAvailable() {
		checks["redis"] = reportCache.Ping
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Posts:      handlers.NewPostHandler(moderationService, zl),
		Moderation: handlers.NewModerationHandler(moderationService, zl),
		Reporting:  handlers.NewReportingHandler(reportingService, zl),
		Checks:     checks,
		Logger:     zl,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		zl.Info("Server starting", zap.String("port", cfg.Port),
			zap.String("classifier", cfg.Classifier.Provider))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zl.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
