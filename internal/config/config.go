// Package config reads process configuration from the environment. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/groundscanner/groundscanner/internal/database"
	"github.com/groundscanner/groundscanner/internal/transport"
)

// Config is the configuration shared by cmd/api and cmd/worker.
type Config struct {
	Port        string
	Environment string
	RequireTLS  bool

	OTelEnabled     bool
	OTLPEndpoint    string
	OTelSampleRatio float64

	UpstreamBaseURL    string
	UpstreamTimeout    time.Duration
	UpstreamSigningKey string
	UpstreamIssuer     string

	// AdminSigningKey enables the admin routes when set.
	AdminSigningKey string

	// Database is only used when DatabaseEnabled.
	Database        database.Config
	DatabaseEnabled bool

	// RedisAddress enables the shared snapshot cache when set.
	RedisAddress  string
	RedisPassword string
	RedisDB       int

	FaresSeedFile string
	SnapshotTTL   time.Duration

	DefaultMethod transport.EmissionMethod
	CentralStops  []string

	WorkerAirports     []string
	WorkerCities       []string
	WorkerPassengers   []int
	WorkerInterval     time.Duration
	PubSubProjectID    string
	PubSubSubscription string
}

// Load reads .env (if any) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:               getEnvOrDefault("APP_PORT", "8080"),
		Environment:        getEnvOrDefault("APP_ENV", "development"),
		RequireTLS:         os.Getenv("REQUIRE_TLS") == "true",
		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		UpstreamBaseURL:    getEnvOrDefault("UPSTREAM_BASE_URL", "http://localhost:8000"),
		UpstreamSigningKey: os.Getenv("UPSTREAM_SIGNING_KEY"),
		UpstreamIssuer:     getEnvOrDefault("UPSTREAM_ISSUER", "groundscanner"),
		AdminSigningKey:    os.Getenv("ADMIN_SIGNING_KEY"),
		Database:           database.ConfigFromEnv(),
		DatabaseEnabled:    os.Getenv("DB_HOST") != "",
		RedisAddress:       os.Getenv("REDIS_ADDRESS"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		FaresSeedFile:      os.Getenv("FARES_SEED_FILE"),
		CentralStops:       splitList(os.Getenv("CENTRAL_STOPS")),
		WorkerAirports:     splitList(getEnvOrDefault("WORKER_AIRPORTS", "LHR,LGW,STN,LTN,LCY")),
		WorkerCities:       splitList(getEnvOrDefault("WORKER_CITIES", "London")),
		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubSubscription: getEnvOrDefault("PUBSUB_SUBSCRIPTION", "groundscanner-refresh"),
	}

	var err error
	if cfg.UpstreamTimeout, err = durationEnv("UPSTREAM_TIMEOUT", "15s"); err != nil {
		return Config{}, err
	}
	if cfg.SnapshotTTL, err = durationEnv("SNAPSHOT_TTL", "10m"); err != nil {
		return Config{}, err
	}
	if cfg.WorkerInterval, err = durationEnv("WORKER_INTERVAL", "15m"); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = intEnv("REDIS_DB", "0"); err != nil {
		return Config{}, err
	}
	ratio, err := strconv.ParseFloat(getEnvOrDefault("OTEL_SAMPLE_RATIO", "1"), 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return Config{}, fmt.Errorf("OTEL_SAMPLE_RATIO: must be between 0 and 1")
	}
	cfg.OTelSampleRatio = ratio

	method := getEnvOrDefault("DEFAULT_EMISSION_METHOD", string(transport.DefaultMethod))
	m, ok := transport.ParseMethod(method)
	if !ok {
		return Config{}, fmt.Errorf("DEFAULT_EMISSION_METHOD: unknown method %q", method)
	}
	cfg.DefaultMethod = m

	for _, raw := range splitList(getEnvOrDefault("WORKER_PASSENGERS", "1,2")) {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 10 {
			return Config{}, fmt.Errorf("WORKER_PASSENGERS: invalid passenger count %q", raw)
		}
		cfg.WorkerPassengers = append(cfg.WorkerPassengers, n)
	}

	return cfg, nil
}

// IsProduction reports whether APP_ENV is "production".
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key, defaultValue string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func intEnv(key, defaultValue string) (int, error) {
	n, err := strconv.Atoi(getEnvOrDefault(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// splitList splits a comma list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
