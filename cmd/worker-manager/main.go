// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"persona-workers/internal/aggregation"
	"persona-workers/internal/common/config"
	"persona-workers/internal/common/database"
	"persona-workers/internal/common/logger"
	"persona-workers/internal/generation"
	"persona-workers/internal/personas"
	"persona-workers/internal/provider"
	"persona-workers/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Response Provider ---
	prov, err := provider.New(cfg.Provider)
	if err != nil {
		zapLog.Fatal("provider init failed",
			zap.String("provider", cfg.Provider.Name),
			zap.Error(err),
		)
	}
	zapLog.Info("Response provider initialized", zap.String("provider", prov.Name()))

	// --- Init Stores ---
	taskStore := store.NewTaskStore(pg.DB)
	demographicsStore := store.NewDemographicsStore(pg.DB)
	personaStore := store.NewPersonaStore(pg.DB)
	stimulusStore := store.NewStimulusStore(pg.DB)
	responseStore := store.NewResponseStore(pg.DB)

	// --- Init Persona Factory & Ingester ---
	factory := personas.NewFactory(
		personas.Config{
			ChunkWorkers: cfg.Generation.ChunkWorkers,
			CallTimeout:  config.GetDuration(cfg.Provider.Timeout),
		},
		prov, personaStore, log,
	)
	ingester := personas.NewIngester(factory, demographicsStore, personaStore)

	// --- Init Workers ---
	generationWorker := generation.NewWorker(
		generation.Config{
			PollInterval: config.GetDuration(cfg.Generation.PollInterval),
		},
		taskStore, demographicsStore, factory, ingester, log,
	)

	aggregationWorker := aggregation.NewWorker(
		aggregation.Config{
			PollInterval: config.GetDuration(cfg.Aggregation.PollInterval),
			City:         cfg.Aggregation.City,
			CallTimeout:  config.GetDuration(cfg.Provider.Timeout),
			SummaryTTL:   time.Duration(cfg.Aggregation.SummaryTTL) * time.Second,
		},
		taskStore, personaStore, demographicsStore, stimulusStore, responseStore,
		prov, redis.Client, log,
	)

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	go generationWorker.Start(workerCtx)
	go aggregationWorker.Start(workerCtx)
	zapLog.Info("Generation and aggregation workers started")

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.ListenAddress))
		if err := http.ListenAndServe(cfg.Metrics.ListenAddress, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	cancelWorkers()
	generationWorker.Stop()
	aggregationWorker.Stop()

	zapLog.Info("Worker manager stopped gracefully")
}
