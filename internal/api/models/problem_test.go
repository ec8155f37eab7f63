package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundscanner/groundscanner/internal/api/models"
)

func TestProblemCatalogue(t *testing.T) {
	kinds := []models.ProblemKind{
		models.ProblemValidation,
		models.ProblemUnauthorized,
		models.ProblemTLSRequired,
		models.ProblemNotFound,
		models.ProblemUnsupportedMedia,
		models.ProblemRateLimited,
		models.ProblemInternal,
		models.ProblemUnavailable,
	}
	seen := map[string]bool{}
	for _, k := range kinds {
		assert.False(t, seen[k.Slug], "duplicate slug %s", k.Slug)
		seen[k.Slug] = true
		assert.NotEmpty(t, k.Title)
		assert.GreaterOrEqual(t, k.Status, 400)
		assert.Equal(t, "https://api.groundscanner.dev/problems/"+k.Slug, k.URI())
	}
	assert.True(t, models.ProblemUnavailable.Retryable)
	assert.True(t, models.ProblemRateLimited.Retryable)
	assert.False(t, models.ProblemNotFound.Retryable)
}

func TestNewProblem(t *testing.T) {
	p := models.NewProblem(models.ProblemUnavailable, "gs_1", "upstream unavailable")

	assert.Equal(t, models.ProblemUnavailable.URI(), p.Type)
	assert.Equal(t, "Service unavailable", p.Title)
	assert.Equal(t, http.StatusServiceUnavailable, p.Status)
	assert.Equal(t, "upstream unavailable", p.Detail)
	assert.Equal(t, "gs_1", p.TraceID)
	assert.True(t, p.Retryable)
	assert.Empty(t, p.Instance)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewProblem(models.ProblemValidation, "gs_1", "invalid input").WithErrors([]models.FieldError{
		{Field: "method", Message: "must be fuel_combustion or well_to_tank", Code: "INVALID_VALUE"},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/airports/LHR/options", nil)
	w := httptest.NewRecorder()
	p.Write(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Equal(t, "gs_1", w.Header().Get("X-Request-Id"))
	assert.Empty(t, w.Header().Get("Retry-After"))

	var got models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.ProblemValidation.URI(), got.Type)
	assert.Equal(t, "/v1/airports/LHR/options", got.Instance)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "method", got.Errors[0].Field)
	assert.False(t, got.Retryable)
	assert.NotContains(t, w.Body.String(), "retryable")
}

func TestProblem_WriteKeepsExplicitInstance(t *testing.T) {
	p := models.NewProblem(models.ProblemNotFound, "", "airport not found")
	p.Instance = "/v1/airports/XXX"

	w := httptest.NewRecorder()
	p.Write(w, httptest.NewRequest(http.MethodGet, "/other", nil))

	var got models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "/v1/airports/XXX", got.Instance)
	assert.Empty(t, w.Header().Get("X-Request-Id"))
}

func TestProblem_RetryAfter(t *testing.T) {
	tests := []struct {
		after time.Duration
		want  string
	}{
		{0, ""},
		{30 * time.Second, "30"},
		{1500 * time.Millisecond, "2"},
		{-time.Second, ""},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		models.NewProblem(models.ProblemUnavailable, "gs_1", "later").
			WithRetryAfter(tt.after).
			Write(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, tt.want, w.Header().Get("Retry-After"), "after %v", tt.after)
		assert.Contains(t, w.Body.String(), `"retryable":true`)
		assert.NotContains(t, w.Body.String(), "RetryAfter")
	}
}
