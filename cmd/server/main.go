package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/examkb/internal/config"
	"github.com/stemsi/examkb/internal/database"
	"github.com/stemsi/examkb/internal/handler"
	"github.com/stemsi/examkb/internal/logger"
	"github.com/stemsi/examkb/internal/middleware"
	"github.com/stemsi/examkb/internal/repository"
	"github.com/stemsi/examkb/internal/router"
	"github.com/stemsi/examkb/internal/service"
	"github.com/stemsi/examkb/internal/validator"
	"github.com/stemsi/examkb/internal/worker"
)

// progressSource joins job status with the Redis progress channel.
type progressSource struct {
	*service.ImportJobService
	*repository.ImportRepository
}

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("db_driver", cfg.DBDriver).
		Str("log_level", cfg.LogLevel).
		Msg("Starting exam knowledge base server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Open Question Store ───────────────────────────────────────────
	store, closeStore, err := repository.OpenQuestionStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open question store")
	}
	defer closeStore()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Services ──────────────────────────────────────────
	pipeline, err := service.NewPipeline(cfg, store, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build import pipeline")
	}
	importRepo := repository.NewImportRepository(rdb, cfg.ReportTTL)
	authService := service.NewAuthService(cfg)
	jobService := service.NewImportJobService(importRepo, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"store": store.Ping,
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		Import:   handler.NewImportHandler(jobService, log),
		Question: handler.NewQuestionHandler(store),
		WS:       handler.NewWSHandler(progressSource{jobService, importRepo}, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	importWorker := worker.NewImportWorker(importRepo, pipeline.Batch, log)
	go func() {
		importWorker.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	var importLimiter *middleware.RateLimiter
	if cfg.ImportRatePerMinute > 0 {
		importLimiter = middleware.NewRateLimiter(cfg.ImportRatePerMinute, time.Minute)
		defer importLimiter.Stop()
	}
	r := router.SetupRouter(authService, handlers, importLimiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the import worker. A running batch stops between questions
	// and records its partial report.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(cfg.StoreTimeout + 5*time.Second):
		log.Warn().Msg("Import worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
