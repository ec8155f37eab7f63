// Package api provides the HTTP API of GroundScanner.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/airports"
	"github.com/groundscanner/groundscanner/internal/api/handler"
	"github.com/groundscanner/groundscanner/internal/api/middleware"
	"github.com/groundscanner/groundscanner/internal/comparison"
	"github.com/groundscanner/groundscanner/internal/fares"
	"github.com/groundscanner/groundscanner/internal/featureflags"
	"github.com/groundscanner/groundscanner/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	RequireTLS  bool

	Comparisons  *comparison.Service
	Sessions     *comparison.Sessions
	Directory    *airports.Directory
	Fares        *fares.Service
	Transfers    handler.TransferSource
	FeatureFlags *featureflags.Service
	Registry     *resilience.Registry
	Checks       []handler.ReadinessCheck

	// AdminVerifier guards /v1/admin and /v1/ops/status. Without it the admin
	// routes are not mounted and the status endpoint is public.
	AdminVerifier middleware.TokenVerifier
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "groundscanner-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsHandlerConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Checks:    cfg.Checks,
		Flags:     cfg.FeatureFlags,
	})
	airportsHandler := handler.NewAirportsHandler(handler.AirportsHandlerConfig{
		Comparisons: cfg.Comparisons,
		Sessions:    cfg.Sessions,
		Directory:   cfg.Directory,
		Transfers:   cfg.Transfers,
		Logger:      cfg.Logger,
	})
	faresHandler := handler.NewFaresHandler(cfg.Fares, cfg.FeatureFlags, cfg.Logger)

	// One limiter per budget, shared by the routes it guards.
	comparisonLimit := middleware.RateLimit(middleware.ComparisonRateLimit)
	lookupLimit := middleware.RateLimit(middleware.LookupRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			if cfg.AdminVerifier != nil {
				r.With(middleware.Auth(cfg.AdminVerifier)).Get("/status", opsHandler.SystemStatus)
			} else {
				r.Get("/status", opsHandler.SystemStatus)
			}
		})

		r.Route("/airports", func(r chi.Router) {
			r.With(lookupLimit).Get("/", airportsHandler.Search)
			r.Route("/{code}", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(comparisonLimit)
					r.Get("/options", airportsHandler.Options)
					r.Get("/options/{optionId}/topology", airportsHandler.Topology)
					r.Get("/insights", airportsHandler.Insights)
				})
				r.With(lookupLimit).Get("/terminal-transfers", airportsHandler.TerminalTransfers)
			})
		})

		r.With(lookupLimit).Get("/cities/{city}/fares", faresHandler.CityFares)

		if cfg.AdminVerifier != nil && cfg.FeatureFlags != nil {
			featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlags, cfg.Logger)
			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.Auth(cfg.AdminVerifier))
				r.Use(middleware.RateLimit(middleware.AdminRateLimit))
				r.Use(middleware.RequireJSON)

				r.Route("/feature-flags", func(r chi.Router) {
					r.Get("/", featureFlagsHandler.ListFeatureFlags)
					r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
					r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
				})
			})
		}
	})

	return r
}
