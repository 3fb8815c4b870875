// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"persona-workers/internal/api"
	"persona-workers/internal/common/config"
	"persona-workers/internal/common/database"
	"persona-workers/internal/common/logger"
	"persona-workers/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting API server...")

	ctx := context.Background()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres failed", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.Ping(ctx); err != nil {
		zapLog.Fatal("postgres ping failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	redis, err := database.NewRedis(cfg.Database.Redis)
	if err != nil {
		zapLog.Fatal("redis failed", zap.Error(err))
	}
	defer redis.Close()
	if err := redis.Ping(ctx); err != nil {
		zapLog.Fatal("redis ping failed", zap.Error(err))
	}
	zapLog.Info("Redis connected successfully")

	taskStore := store.NewTaskStore(pg.DB)
	demographicsStore := store.NewDemographicsStore(pg.DB)
	stimulusStore := store.NewStimulusStore(pg.DB)

	handler := api.NewHandler(
		taskStore, taskStore, demographicsStore, stimulusStore,
		redis.Client, "", log,
	)
	router := api.NewRouter(handler)

	srv := &http.Server{
		Addr:         cfg.API.ListenAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zapLog.Info("API server listening", zap.String("address", cfg.API.ListenAddress))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("API server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining connections...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("API server shutdown failed", zap.Error(err))
	}

	zapLog.Info("API server stopped gracefully")
}
