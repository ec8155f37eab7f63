// Package handler provides the HTTP handlers of the GroundScanner API.
package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/groundscanner/groundscanner/internal/api/models"
	"github.com/groundscanner/groundscanner/internal/api/response"
	"github.com/groundscanner/groundscanner/internal/featureflags"
	"github.com/groundscanner/groundscanner/internal/provider/resilience"
)

// readinessTimeout bounds each readiness check.
const readinessTimeout = 2 * time.Second

// ReadinessCheck probes one dependency. A nil error means ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsHandlerConfig holds the dependencies of an OpsHandler.
type OpsHandlerConfig struct {
	Version   string
	BuildTime string
	Registry  *resilience.Registry
	Checks    []ReadinessCheck
	Flags     *featureflags.Service
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	version   string
	buildTime string
	registry  *resilience.Registry
	checks    []ReadinessCheck
	flags     *featureflags.Service
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsHandlerConfig) *OpsHandler {
	return &OpsHandler{
		version:   cfg.Version,
		buildTime: cfg.BuildTime,
		registry:  cfg.Registry,
		checks:    cfg.Checks,
		flags:     cfg.Flags,
	}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.version,
			"buildTime": h.buildTime,
		},
	}
	response.JSON(w, r, http.StatusOK, health)
}

// ReadinessCheck handles GET /v1/ops/ready. Any failing check answers 503.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())

	status := models.HealthStatusOK
	details := make(map[string]interface{}, len(subsystems))
	for _, s := range subsystems {
		details[s.Name] = s.Status
		if s.Status != models.HealthStatusOK {
			status = models.HealthStatusFail
		}
	}

	code := http.StatusOK
	if status != models.HealthStatusOK {
		code = http.StatusServiceUnavailable
	}
	response.JSON(w, r, code, models.Health{
		Status:  status,
		Time:    models.Timestamp(time.Now()),
		Details: details,
	})
}

// SystemStatus handles GET /v1/ops/status - subsystem checks, upstream
// circuit states and the flags currently switched on.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	subsystems := h.runChecks(r.Context())
	providers := h.providerStatuses()

	overall := models.HealthStatusOK
	for _, s := range subsystems {
		overall = worse(overall, s.Status)
	}
	for _, p := range providers {
		overall = worse(overall, p.Status)
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:      overall,
		Time:        models.Timestamp(time.Now()),
		Subsystems:  subsystems,
		Providers:   providers,
		ActiveFlags: h.activeFlags(r.Context()),
	})
}

func (h *OpsHandler) runChecks(ctx context.Context) []models.SubsystemStatus {
	return iter.Map(h.checks, func(c *ReadinessCheck) models.SubsystemStatus {
		checkCtx, cancel := context.WithTimeout(ctx, readinessTimeout)
		defer cancel()

		if err := c.Check(checkCtx); err != nil {
			detail := err.Error()
			return models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusFail, Detail: &detail}
		}
		return models.SubsystemStatus{Name: c.Name, Status: models.HealthStatusOK}
	})
}

func (h *OpsHandler) providerStatuses() []models.ProviderStatus {
	if h.registry == nil {
		return []models.ProviderStatus{}
	}

	snapshot := h.registry.Snapshot()
	out := make([]models.ProviderStatus, 0, len(snapshot))
	for _, ph := range snapshot {
		out = append(out, models.ProviderStatus{
			Provider:            ph.Name,
			Status:              providerHealthStatus(ph.Status()),
			CircuitState:        ph.State.String(),
			ConsecutiveFailures: ph.ConsecutiveFailures,
			LastSuccessAt:       models.OptionalTimestamp(ph.LastSuccess),
			LastFailureAt:       models.OptionalTimestamp(ph.LastFailure),
			LastError:           ph.LastError,
		})
	}
	return out
}

func (h *OpsHandler) activeFlags(ctx context.Context) []string {
	if h.flags == nil {
		return nil
	}
	var active []string
	for _, f := range h.flags.All(ctx) {
		switch v := f.Value.(type) {
		case bool:
			if v {
				active = append(active, f.Key)
			}
		case string:
			if v != "" {
				active = append(active, f.Key)
			}
		}
	}
	sort.Strings(active)
	return active
}

func providerHealthStatus(s resilience.Status) models.HealthStatus {
	switch s {
	case resilience.StatusUnhealthy:
		return models.HealthStatusFail
	case resilience.StatusDegraded:
		return models.HealthStatusDegraded
	default:
		return models.HealthStatusOK
	}
}

// worse folds b into the running status a. Any failing subsystem or
// upstream degrades the service as a whole rather than failing it.
func worse(a, b models.HealthStatus) models.HealthStatus {
	if b != models.HealthStatusOK {
		return models.HealthStatusDegraded
	}
	return a
}
