// Package main provides the entrypoint for the GroundScanner API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/airports"
	"github.com/groundscanner/groundscanner/internal/api"
	"github.com/groundscanner/groundscanner/internal/api/handler"
	"github.com/groundscanner/groundscanner/internal/api/middleware"
	"github.com/groundscanner/groundscanner/internal/comparison"
	"github.com/groundscanner/groundscanner/internal/config"
	"github.com/groundscanner/groundscanner/internal/database"
	"github.com/groundscanner/groundscanner/internal/fares"
	"github.com/groundscanner/groundscanner/internal/featureflags"
	"github.com/groundscanner/groundscanner/internal/groundapi"
	"github.com/groundscanner/groundscanner/internal/provider/resilience"
	"github.com/groundscanner/groundscanner/internal/telemetry"
	"github.com/groundscanner/groundscanner/internal/transport"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "groundscanner-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting GroundScanner API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if !cfg.IsProduction() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Float64("sample_ratio", cfg.OTelSampleRatio).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}
	providerMetrics, err := telemetry.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		os.Exit(1)
	}

	registry := resilience.NewRegistry()

	var tokens *groundapi.TokenSource
	if cfg.UpstreamSigningKey != "" {
		tokens = groundapi.NewTokenSource(groundapi.TokenConfig{
			SigningKey: cfg.UpstreamSigningKey,
			Issuer:     cfg.UpstreamIssuer,
		})
	} else {
		log.Warn().Msg("UPSTREAM_SIGNING_KEY not set - upstream requests are unauthenticated")
	}

	upstream := groundapi.NewClient(groundapi.ClientConfig{
		BaseURL:  cfg.UpstreamBaseURL,
		Timeout:  cfg.UpstreamTimeout,
		Tokens:   tokens,
		Registry: registry,
		Recorder: providerMetrics,
		Logger:   log,
	})

	directory := airports.NewDirectory(airports.DirectoryConfig{
		Source: upstream,
		Logger: log,
	})
	go func() {
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := directory.Load(loadCtx); err != nil {
			log.Warn().Err(err).Msg("airport directory not loaded, will retry on first search")
		}
	}()

	var checks []handler.ReadinessCheck
	checks = append(checks, handler.ReadinessCheck{
		Name:  "airports",
		Check: directory.Load,
	})

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		pool     *pgxpool.Pool
		fareRepo fares.Repository = fares.NewInMemoryRepository()
		flagRepo featureflags.Repository = featureflags.NewInMemoryRepository()
	)
	if cfg.DatabaseEnabled {
		pool, err = database.Connect(ctx, cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			log.Fatal().Err(err).Msg("failed to apply database schema")
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")

		fareRepo = fares.NewPostgresRepository(pool)
		flagRepo = featureflags.NewPostgresRepository(pool)
		checks = append(checks, handler.ReadinessCheck{Name: "database", Check: pool.Ping})
	} else {
		log.Warn().Msg("DB_HOST not set - fares and feature flags are kept in memory")
	}

	if cfg.FaresSeedFile != "" {
		n, err := fares.LoadSeed(ctx, cfg.FaresSeedFile, fareRepo)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.FaresSeedFile).Msg("failed to load fare seed")
		}
		log.Info().Int("cities", n).Msg("fare seed loaded")
	}

	fareService := fares.NewService(fares.ServiceConfig{
		Repository: fareRepo,
		Fetcher:    upstream,
		Logger:     log,
	})

	ffService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: flagRepo,
		Logger:     log,
		CacheTTL:   1 * time.Minute,
	})
	log.Info().Msg("feature flags service initialized")

	var store comparison.SnapshotStore
	if cfg.RedisAddress != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()
		store = comparison.NewRedisSnapshotStore(rdb, cfg.SnapshotTTL)
		checks = append(checks, handler.ReadinessCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		log.Info().Str("addr", cfg.RedisAddress).Msg("redis snapshot store enabled")
	}

	comparisons := comparison.NewService(comparison.ServiceConfig{
		Upstream:    upstream,
		Store:       store,
		SnapshotTTL: cfg.SnapshotTTL,
		Normalizer: transport.NewNormalizer(transport.NormalizerConfig{
			CentralStops: transport.NewCentralStops(cfg.CentralStops...),
		}),
		Directory:     directory,
		FeatureFlags:  ffService,
		DefaultMethod: cfg.DefaultMethod,
		Metrics:       providerMetrics,
		Logger:        log,
	})

	var adminVerifier middleware.TokenVerifier
	if cfg.AdminSigningKey != "" {
		adminVerifier = groundapi.NewTokenSource(groundapi.TokenConfig{
			SigningKey: cfg.AdminSigningKey,
			Issuer:     "groundscanner-ops",
			Audience:   "groundscanner-admin",
		})
	} else {
		log.Warn().Msg("ADMIN_SIGNING_KEY not set - admin routes disabled")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:       Version,
		BuildTime:     BuildTime,
		Logger:        log,
		ServiceName:   serviceName,
		Metrics:       metrics,
		RequireTLS:    cfg.RequireTLS,
		Comparisons:   comparisons,
		Sessions:      comparison.NewSessions(comparisons, 0),
		Directory:     directory,
		Fares:         fareService,
		Transfers:     upstream,
		FeatureFlags:  ffService,
		Registry:      registry,
		Checks:        checks,
		AdminVerifier: adminVerifier,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
