package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/airports"
	"github.com/groundscanner/groundscanner/internal/api/middleware"
	"github.com/groundscanner/groundscanner/internal/api/models"
	"github.com/groundscanner/groundscanner/internal/api/response"
	"github.com/groundscanner/groundscanner/internal/comparison"
	"github.com/groundscanner/groundscanner/internal/groundapi"
)

// TransferSource returns the terminal transfer guidance of an airport.
// groundapi.Client satisfies it.
type TransferSource interface {
	GetTerminalTransfers(ctx context.Context, code string) (*groundapi.TerminalTransfers, error)
}

// AirportsHandler serves the airport directory and comparison endpoints.
type AirportsHandler struct {
	comparisons *comparison.Service
	sessions    *comparison.Sessions
	directory   *airports.Directory
	transfers   TransferSource
	logger      zerolog.Logger
}

// AirportsHandlerConfig holds the dependencies of an AirportsHandler.
type AirportsHandlerConfig struct {
	Comparisons *comparison.Service
	// Sessions, when set, serves requests carrying a session header latest-wins.
	Sessions  *comparison.Sessions
	Directory *airports.Directory
	Transfers TransferSource
	Logger    zerolog.Logger
}

// NewAirportsHandler creates a new AirportsHandler.
func NewAirportsHandler(cfg AirportsHandlerConfig) *AirportsHandler {
	return &AirportsHandler{
		comparisons: cfg.Comparisons,
		sessions:    cfg.Sessions,
		directory:   cfg.Directory,
		transfers:   cfg.Transfers,
		logger:      cfg.Logger,
	}
}

// Search handles GET /v1/airports?q= - directory search. An empty query
// lists every airport.
func (h *AirportsHandler) Search(w http.ResponseWriter, r *http.Request) {
	if err := h.directory.Load(r.Context()); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	var found []airports.Airport
	if q == "" {
		found = h.directory.All()
	} else {
		found = h.directory.Search(q)
	}

	list := models.AirportList{Query: q, Airports: make([]models.Airport, len(found))}
	for i, a := range found {
		list.Airports[i] = models.NewAirport(a)
	}
	response.JSON(w, r, http.StatusOK, list)
}

// Options handles GET /v1/airports/{code}/options - the evaluated comparison.
// A request whose session has moved on to a newer query gets 204.
func (h *AirportsHandler) Options(w http.ResponseWriter, r *http.Request) {
	var errs fieldErrors
	query := r.URL.Query()
	q := comparison.Query{
		Airport:    airportCode(r, &errs),
		Passengers: passengers(query, &errs),
		Method:     method(query, &errs),
		Tab:        tab(query, &errs),
		Filter:     filterParams(query, &errs),
	}
	if writeFieldErrors(w, r, errs) {
		return
	}

	var (
		res *comparison.Result
		err error
	)
	if id := middleware.GetSessionID(r); id != "" && h.sessions != nil {
		res, err = h.sessions.Get(id).Compare(r.Context(), q)
	} else {
		res, err = h.comparisons.Compare(r.Context(), q)
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.NewOptionsResponse(res))
}

// Topology handles GET /v1/airports/{code}/options/{optionId}/topology.
func (h *AirportsHandler) Topology(w http.ResponseWriter, r *http.Request) {
	var errs fieldErrors
	code := airportCode(r, &errs)
	n := passengers(r.URL.Query(), &errs)
	optionID := strings.TrimSpace(chi.URLParam(r, "optionId"))
	if optionID == "" {
		errs.add("optionId", "REQUIRED", "option id is required")
	}
	if writeFieldErrors(w, r, errs) {
		return
	}

	plan, opt, err := h.comparisons.Topology(r.Context(), code, n, optionID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.TopologyResponse{
		OptionID: opt.ID,
		Mode:     opt.Mode,
		Route:    opt.Route,
		Plan:     plan,
	})
}

// Insights handles GET /v1/airports/{code}/insights - summary cards over
// every option of the airport, unfiltered.
func (h *AirportsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	var errs fieldErrors
	query := r.URL.Query()
	code := airportCode(r, &errs)
	n := passengers(query, &errs)
	m := method(query, &errs)
	if writeFieldErrors(w, r, errs) {
		return
	}

	in, err := h.comparisons.Insights(r.Context(), code, n, m)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, models.InsightsResponse{
		Airport:    code,
		Passengers: n,
		Insights:   *in,
	})
}

// TerminalTransfers handles GET /v1/airports/{code}/terminal-transfers.
func (h *AirportsHandler) TerminalTransfers(w http.ResponseWriter, r *http.Request) {
	var errs fieldErrors
	code := airportCode(r, &errs)
	if writeFieldErrors(w, r, errs) {
		return
	}

	transfers, err := h.transfers.GetTerminalTransfers(r.Context(), code)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	response.JSON(w, r, http.StatusOK, transfers)
}
