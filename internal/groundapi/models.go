// Package groundapi provides a client for the upstream ground-transport
// backend: airports, transport records, city fares and terminal transfers.
package groundapi

import (
	"encoding/json"
	"errors"

	"github.com/groundscanner/groundscanner/internal/airports"
	"github.com/groundscanner/groundscanner/internal/fares"
)

// Sentinel errors for upstream operations.
var (
	// ErrUpstreamUnavailable indicates the backend is down, timing out or the circuit breaker is open.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrRateLimited indicates the backend rejected the call with 429.
	ErrRateLimited = errors.New("upstream rate limit exceeded")
	// ErrNotFound indicates the backend has no data for the requested airport or city.
	ErrNotFound = errors.New("upstream data not found")
	// ErrInvalidRequest indicates the request was rejected before or by the backend as malformed.
	ErrInvalidRequest = errors.New("invalid upstream request")
	// ErrMalformedResponse indicates the backend answered with an undecodable body.
	ErrMalformedResponse = errors.New("malformed upstream response")
)

// Error provides detailed error information from the upstream backend.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrUpstreamUnavailable) || errors.Is(e.Err, ErrRateLimited)
}

// TransferSection is one group of terminal transfer tips.
type TransferSection struct {
	Name string   `json:"name"`
	Tips []string `json:"tips"`
}

// TerminalTransfers is the terminal-to-terminal guidance of an airport.
type TerminalTransfers struct {
	IATA     string            `json:"iata"`
	Sections []TransferSection `json:"sections"`
}

type airportsResponse struct {
	Airports []airports.Airport `json:"airports"`
}

type transportsResponse struct {
	Transports json.RawMessage `json:"transports"`
}

type faresResponse struct {
	City        string         `json:"city"`
	FareSummary *fares.Summary `json:"fare_summary"`
}

type errorResponse struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

func (e errorResponse) text() string {
	if e.Detail != "" {
		return e.Detail
	}
	return e.Message
}
