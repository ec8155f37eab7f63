package groundapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/groundscanner/groundscanner/internal/airports"
	"github.com/groundscanner/groundscanner/internal/fares"
	"github.com/groundscanner/groundscanner/internal/provider/resilience"
	"github.com/groundscanner/groundscanner/internal/transport"
)

const (
	// ProviderName identifies the upstream backend.
	ProviderName = "groundscanner-backend"

	// DefaultBaseURL is the local backend address.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 15 * time.Second

	// MinPassengers and MaxPassengers bound the passenger count.
	MinPassengers = 1
	MaxPassengers = 10

	// maxBodyBytes caps upstream response bodies.
	maxBodyBytes = 8 << 20
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the upstream client.
type ClientConfig struct {
	// BaseURL is the backend base URL (optional, defaults to localhost).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the per-attempt timeout (optional, defaults to 15s).
	Timeout time.Duration

	// Tokens signs bearer tokens (optional). Without it requests are unauthenticated.
	Tokens *TokenSource

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Recorder receives upstream call metrics (optional).
	Recorder resilience.Recorder

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is the upstream backend client.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	tokens     *TokenSource
	logger     zerolog.Logger
}

// NewClient creates a new upstream client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		clientCfg.Registry = cfg.Registry
		clientCfg.Recorder = cfg.Recorder
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     cfg.Tokens,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// GetAirports lists every airport known to the backend.
func (c *Client) GetAirports(ctx context.Context) ([]airports.Airport, error) {
	var resp airportsResponse
	if err := c.getJSON(ctx, "airports", "/airports", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Airports == nil {
		return []airports.Airport{}, nil
	}
	return resp.Airports, nil
}

// GetTransports fetches the raw transport records of an airport.
func (c *Client) GetTransports(ctx context.Context, code string, passengers int) ([]transport.Record, error) {
	code, err := validCode(code)
	if err != nil {
		return nil, err
	}
	if passengers < MinPassengers || passengers > MaxPassengers {
		return nil, &Error{
			Provider: ProviderName,
			Code:     "INVALID_PASSENGERS",
			Message:  fmt.Sprintf("passengers must be between %d and %d", MinPassengers, MaxPassengers),
			Err:      ErrInvalidRequest,
		}
	}

	query := url.Values{"passengers": {strconv.Itoa(passengers)}}
	var resp transportsResponse
	if err := c.getJSON(ctx, "transports", "/airports/"+url.PathEscape(code)+"/transports", query, &resp); err != nil {
		return nil, err
	}
	if len(resp.Transports) == 0 || string(resp.Transports) == "null" {
		return []transport.Record{}, nil
	}

	records, err := transport.DecodeRecords(resp.Transports)
	if err != nil {
		return nil, &Error{
			Provider: ProviderName,
			Code:     "MALFORMED_TRANSPORTS",
			Message:  "transport payload could not be decoded",
			Err:      errors.Join(ErrMalformedResponse, err),
		}
	}

	c.logger.Debug().
		Str("airport", code).
		Int("passengers", passengers).
		Int("records", len(records)).
		Msg("received transports from upstream")
	return records, nil
}

// GetFareSummary fetches the fare summary of a city.
func (c *Client) GetFareSummary(ctx context.Context, city string) (*fares.Summary, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, &Error{Provider: ProviderName, Code: "INVALID_CITY", Message: "city is required", Err: ErrInvalidRequest}
	}

	var resp faresResponse
	if err := c.getJSON(ctx, "fares", "/cities/"+url.PathEscape(city)+"/fares", nil, &resp); err != nil {
		return nil, err
	}
	if resp.FareSummary == nil {
		return nil, &Error{Provider: ProviderName, Code: "NO_FARES", Message: "no fare summary for " + city, Err: ErrNotFound}
	}

	summary := resp.FareSummary
	if summary.City == "" {
		summary.City = resp.City
	}
	if summary.City == "" {
		summary.City = city
	}
	summary.City = fares.CityKey(summary.City)
	return summary, nil
}

// GetTerminalTransfers fetches terminal transfer guidance for an airport.
func (c *Client) GetTerminalTransfers(ctx context.Context, code string) (*TerminalTransfers, error) {
	code, err := validCode(code)
	if err != nil {
		return nil, err
	}

	var resp TerminalTransfers
	if err := c.getJSON(ctx, "terminal_transfers", "/airports/"+url.PathEscape(code)+"/terminal-transfers", nil, &resp); err != nil {
		return nil, err
	}
	if resp.IATA == "" {
		resp.IATA = code
	}
	if resp.Sections == nil {
		resp.Sections = []TransferSection{}
	}
	return &resp, nil
}

func validCode(code string) (string, error) {
	code = airports.NormalizeCode(code)
	if !airports.ValidCode(code) {
		return "", &Error{
			Provider: ProviderName,
			Code:     "INVALID_AIRPORT",
			Message:  "airport code must be three letters",
			Err:      ErrInvalidRequest,
		}
	}
	return code, nil
}

// getJSON issues a GET and decodes a 200 body into out.
func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	ctx = resilience.WithOperation(ctx, operation)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("signing upstream token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug().Str("operation", operation).Str("path", path).Msg("requesting upstream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", operation, ctxErr)
		}
		code := "REQUEST_FAILED"
		if errors.Is(err, resilience.ErrCircuitOpen) {
			code = "CIRCUIT_OPEN"
		}
		c.logger.Warn().Err(err).Str("operation", operation).Msg("upstream request failed")
		return &Error{
			Provider: ProviderName,
			Code:     code,
			Message:  "failed to reach upstream backend",
			Err:      errors.Join(ErrUpstreamUnavailable, err),
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &Error{
			Provider: ProviderName,
			Code:     "READ_FAILED",
			Message:  "failed to read upstream response",
			Err:      errors.Join(ErrUpstreamUnavailable, err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Provider: ProviderName,
			Code:     "MALFORMED_RESPONSE",
			Message:  "upstream response could not be decoded",
			Err:      errors.Join(ErrMalformedResponse, err),
		}
	}
	return nil
}

// handleErrorResponse maps backend error responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var upstreamErr errorResponse
	_ = json.Unmarshal(body, &upstreamErr) //nolint:errcheck // detail is optional
	detail := upstreamErr.text()

	switch {
	case statusCode == http.StatusTooManyRequests:
		return &Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "upstream rate limit exceeded, please try again later",
			Err:      ErrRateLimited,
		}
	case statusCode == http.StatusNotFound:
		msg := detail
		if msg == "" {
			msg = "no upstream data for this request"
		}
		return &Error{Provider: ProviderName, Code: "NOT_FOUND", Message: msg, Err: ErrNotFound}
	case statusCode == http.StatusBadRequest || statusCode == http.StatusUnprocessableEntity:
		msg := detail
		if msg == "" {
			msg = "upstream rejected the request"
		}
		return &Error{Provider: ProviderName, Code: "BAD_REQUEST", Message: msg, Err: ErrInvalidRequest}
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "upstream access denied - check signing key configuration",
			Err:      ErrUpstreamUnavailable,
		}
	case statusCode >= 500:
		return &Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("SERVER_%d", statusCode),
			Message:  "upstream backend is temporarily unavailable",
			Err:      ErrUpstreamUnavailable,
		}
	default:
		return &Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("upstream returned status %d", statusCode),
			Err:      ErrUpstreamUnavailable,
		}
	}
}

// Ensure Client satisfies the interfaces it is wired into.
var (
	_ airports.Source = (*Client)(nil)
	_ fares.Fetcher   = (*Client)(nil)
)
