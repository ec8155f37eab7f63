package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/api/middleware"
	"github.com/groundscanner/groundscanner/internal/api/models"
	"github.com/groundscanner/groundscanner/internal/api/response"
	"github.com/groundscanner/groundscanner/internal/featureflags"
)

// maxFlagBody bounds the body of a flag update.
const maxFlagBody = 64 << 10

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, logger: logger}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags - every flag with its
// current value, sorted by key.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	all := h.service.All(r.Context())

	list := models.FeatureFlagList{Flags: make([]models.FeatureFlag, len(all))}
	for i, f := range all {
		list.Flags[i] = models.FeatureFlag{
			Key:         f.Key,
			Value:       f.Value,
			Description: featureflags.Description(f.Key),
			UpdatedBy:   f.UpdatedBy,
			UpdatedAt:   models.OptionalTimestamp(f.UpdatedAt),
		}
	}
	response.JSON(w, r, http.StatusOK, list)
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags. Every value is
// validated before any is stored.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req featureflags.FlagUpdateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFlagBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.Invalid(w, r, "request body must be a JSON flag update", nil)
		return
	}

	keys := make([]string, 0, len(req.Flags))
	for key := range req.Flags {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs fieldErrors
	if len(keys) == 0 {
		errs.add("flags", "REQUIRED", "at least one flag is required")
	}
	for _, key := range keys {
		if err := featureflags.Validate(key, req.Flags[key]); err != nil {
			errs.add("flags."+key, "INVALID_VALUE", "%s", err.Error())
		}
	}
	if writeFieldErrors(w, r, errs) {
		return
	}

	subject := middleware.GetSubject(r.Context())
	if err := h.service.Update(r.Context(), subject, req.Flags); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Strs("flags", keys).
		Str("reason", req.Reason).
		Str("subject", subject).
		Msg("feature flags updated")
	response.NoContent(w, r)
}

// InvalidateCache handles POST /v1/admin/feature-flags/invalidate.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.Invalidate()
	response.NoContent(w, r)
}
