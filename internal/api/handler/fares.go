package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/api/models"
	"github.com/groundscanner/groundscanner/internal/api/response"
	"github.com/groundscanner/groundscanner/internal/fares"
	"github.com/groundscanner/groundscanner/internal/featureflags"
	"github.com/groundscanner/groundscanner/internal/transport"
)

// FaresHandler serves city fare summaries.
type FaresHandler struct {
	service *fares.Service
	flags   *featureflags.Service
	logger  zerolog.Logger
}

// NewFaresHandler creates a new FaresHandler. flags may be nil.
func NewFaresHandler(service *fares.Service, flags *featureflags.Service, logger zerolog.Logger) *FaresHandler {
	return &FaresHandler{service: service, flags: flags, logger: logger}
}

// CityFares handles GET /v1/cities/{city}/fares?mode= - the summary of a city
// plus the payment badges of one mode. Without a mode no badges are derived.
func (h *FaresHandler) CityFares(w http.ResponseWriter, r *http.Request) {
	var errs fieldErrors
	city := strings.TrimSpace(chi.URLParam(r, "city"))
	if city == "" || len(city) > 64 {
		errs.add("city", "INVALID_FORMAT", "city must be 1 to 64 characters")
	}

	var (
		mode    transport.Mode
		hasMode bool
	)
	if raw := r.URL.Query().Get("mode"); raw != "" {
		m, ok := transport.ParseMode(raw)
		if !ok {
			errs.add("mode", "INVALID_VALUE", "unknown transport mode %q", raw)
		}
		mode, hasMode = m, ok
	}
	if writeFieldErrors(w, r, errs) {
		return
	}

	summary, err := h.service.Get(r.Context(), city)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	body := models.FaresResponse{
		City:    summary.City,
		Badges:  []fares.Badge{},
		Summary: summary,
	}
	if hasMode {
		body.Mode = string(mode)
		body.FareKey = fares.ModeKey(mode)
		if !h.flags.FareBadgesDisabled(r.Context()) {
			body.Badges = summary.BadgesForMode(mode)
		}
	}
	response.JSON(w, r, http.StatusOK, body)
}
