// Package main provides the entrypoint for the GroundScanner refresh worker.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/comparison"
	"github.com/groundscanner/groundscanner/internal/config"
	"github.com/groundscanner/groundscanner/internal/database"
	"github.com/groundscanner/groundscanner/internal/fares"
	"github.com/groundscanner/groundscanner/internal/groundapi"
	"github.com/groundscanner/groundscanner/internal/provider/resilience"
	"github.com/groundscanner/groundscanner/internal/telemetry"
	"github.com/groundscanner/groundscanner/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "groundscanner-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting GroundScanner worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize provider metrics")
	}

	var tokens *groundapi.TokenSource
	if cfg.UpstreamSigningKey != "" {
		tokens = groundapi.NewTokenSource(groundapi.TokenConfig{
			SigningKey: cfg.UpstreamSigningKey,
			Issuer:     cfg.UpstreamIssuer,
		})
	}

	upstream := groundapi.NewClient(groundapi.ClientConfig{
		BaseURL:  cfg.UpstreamBaseURL,
		Timeout:  cfg.UpstreamTimeout,
		Tokens:   tokens,
		Registry: resilience.NewRegistry(),
		Recorder: providerMetrics,
		Logger:   log,
	})

	// Without shared storage a refresh only warms this process, which serves
	// no traffic; the snapshot side is skipped in that case.
	var store comparison.SnapshotStore
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		store = comparison.NewRedisSnapshotStore(rdb, cfg.SnapshotTTL)
	} else {
		log.Warn().Msg("REDIS_ADDRESS not set - snapshot refresh disabled")
	}

	var fareRepo fares.Repository = fares.NewInMemoryRepository()
	if cfg.DatabaseEnabled {
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply database schema")
		}
		fareRepo = fares.NewPostgresRepository(pool)
	} else {
		log.Warn().Msg("DB_HOST not set - fare refresh disabled")
	}

	refreshCfg := worker.DefaultRefreshConfig()
	refreshCfg.Airports = cfg.WorkerAirports
	refreshCfg.Passengers = cfg.WorkerPassengers
	refreshCfg.Cities = cfg.WorkerCities
	refreshCfg.RefreshSnapshots = store != nil
	refreshCfg.RefreshFares = cfg.DatabaseEnabled

	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: refreshCfg,
		Logger: log,
		Snapshots: comparison.NewService(comparison.ServiceConfig{
			Upstream:      upstream,
			Store:         store,
			SnapshotTTL:   cfg.SnapshotTTL,
			DefaultMethod: cfg.DefaultMethod,
			Metrics:       providerMetrics,
			Logger:        log,
		}),
		Fares: fares.NewService(fares.ServiceConfig{
			Repository: fareRepo,
			Fetcher:    upstream,
			Logger:     log,
		}),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "healthy",
			"version": Version,
			"metrics": job.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	if cfg.PubSubProjectID != "" {
		handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubSubProjectID,
			SubscriptionName: cfg.PubSubSubscription,
			RefreshJob:       job,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pubsub handler")
		}
		defer func() { _ = handler.Close() }()

		go func() {
			if err := handler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	go job.Loop(ctx, cfg.WorkerInterval)
	log.Info().
		Dur("interval", cfg.WorkerInterval).
		Int("targets", refreshCfg.TotalTargets()).
		Msg("refresh loop started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
