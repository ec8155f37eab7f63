package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/groundscanner/groundscanner/internal/airports"
	"github.com/groundscanner/groundscanner/internal/api/models"
	"github.com/groundscanner/groundscanner/internal/comparison"
	"github.com/groundscanner/groundscanner/internal/ranking"
	"github.com/groundscanner/groundscanner/internal/transport"
)

// Passenger bounds of a comparison query.
const (
	MinPassengers = 1
	MaxPassengers = 10
)

// fieldErrors collects query parameter violations.
type fieldErrors []models.FieldError

func (e *fieldErrors) add(field, code, format string, args ...any) {
	*e = append(*e, models.FieldError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

// airportCode reads and validates the {code} URL parameter.
func airportCode(r *http.Request, errs *fieldErrors) string {
	raw := chi.URLParam(r, "code")
	if !airports.ValidCode(raw) {
		errs.add("code", "INVALID_FORMAT", "airport code must be 3 letters")
		return ""
	}
	return airports.NormalizeCode(raw)
}

func passengers(q url.Values, errs *fieldErrors) int {
	raw := q.Get("passengers")
	if raw == "" {
		return MinPassengers
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < MinPassengers || n > MaxPassengers {
		errs.add("passengers", "OUT_OF_RANGE", "must be an integer between %d and %d", MinPassengers, MaxPassengers)
		return MinPassengers
	}
	return n
}

// method returns "" when absent so the service default applies.
func method(q url.Values, errs *fieldErrors) transport.EmissionMethod {
	raw := q.Get("method")
	if raw == "" {
		return ""
	}
	m, ok := transport.ParseMethod(raw)
	if !ok {
		errs.add("method", "INVALID_VALUE", "must be %s or %s", transport.MethodFuelCombustion, transport.MethodWellToTank)
	}
	return m
}

func tab(q url.Values, errs *fieldErrors) ranking.Tab {
	raw := q.Get("tab")
	if raw == "" {
		return ranking.TabBest
	}
	t, ok := ranking.ParseTab(raw)
	if !ok {
		errs.add("tab", "INVALID_VALUE", "must be one of best, cheapest, fastest, eco")
		return ranking.TabBest
	}
	return t
}

// filterParams reads the filter query. A present but empty modes parameter
// disables every mode.
func filterParams(q url.Values, errs *fieldErrors) comparison.FilterParams {
	var p comparison.FilterParams

	if _, ok := q["modes"]; ok {
		p.Modes = []transport.Mode{}
		for _, raw := range strings.Split(q.Get("modes"), ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			m, ok := transport.ParseMode(raw)
			if !ok {
				errs.add("modes", "INVALID_VALUE", "unknown transport mode %q", raw)
				continue
			}
			p.Modes = append(p.Modes, m)
		}
	}

	if raw := q.Get("maxPrice"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs.add("maxPrice", "INVALID_FORMAT", "must be a number")
		} else {
			p.MaxPrice = &v
		}
	}
	p.MaxTime = optionalInt(q, "maxTime", 0, -1, errs)
	p.DepartFrom = optionalInt(q, "departFrom", 0, 24, errs)
	p.DepartTo = optionalInt(q, "departTo", 0, 24, errs)

	p.Direct = flag(q, "direct", errs)
	p.OneOrMore = flag(q, "oneOrMore", errs)
	p.FlexibleOnly = flag(q, "flexibleOnly", errs)
	p.FirstClassOnly = flag(q, "firstClassOnly", errs)
	return p
}

// optionalInt parses an integer parameter in [lo, hi]. A negative hi means
// no upper bound and lo is then not enforced either.
func optionalInt(q url.Values, name string, lo, hi int, errs *fieldErrors) *int {
	raw := q.Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		errs.add(name, "INVALID_FORMAT", "must be an integer")
		return nil
	}
	if hi >= 0 && (v < lo || v > hi) {
		errs.add(name, "OUT_OF_RANGE", "must be between %d and %d", lo, hi)
		return nil
	}
	return &v
}

func flag(q url.Values, name string, errs *fieldErrors) bool {
	raw := q.Get(name)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		errs.add(name, "INVALID_FORMAT", "must be true or false")
		return false
	}
	return v
}
