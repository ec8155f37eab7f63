package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundscanner/groundscanner/internal/provider/resilience"
)

func register(registry *resilience.Registry, name string) *resilience.Client {
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}

func TestRegistry_NewClientRegisters(t *testing.T) {
	registry := resilience.NewRegistry()
	register(registry, "groundscanner-backend")

	h, ok := registry.Health("groundscanner-backend")
	require.True(t, ok)
	assert.Equal(t, "groundscanner-backend", h.Name)
	assert.Equal(t, gobreaker.StateClosed, h.State)
	assert.True(t, h.LastSuccess.IsZero())
	assert.True(t, h.LastFailure.IsZero())
	assert.Equal(t, resilience.StatusHealthy, h.Status())
}

func TestRegistry_RecordTracksStreak(t *testing.T) {
	registry := resilience.NewRegistry()
	register(registry, "groundscanner-backend")

	registry.Record("groundscanner-backend", errors.New("502 Bad Gateway"))
	registry.Record("groundscanner-backend", errors.New("timeout"))

	h, _ := registry.Health("groundscanner-backend")
	assert.Equal(t, 2, h.ConsecutiveFailures)
	assert.Equal(t, "timeout", h.LastError)
	assert.WithinDuration(t, time.Now(), h.LastFailure, time.Second)
	assert.Equal(t, resilience.StatusDegraded, h.Status())

	registry.Record("groundscanner-backend", nil)

	h, _ = registry.Health("groundscanner-backend")
	assert.Zero(t, h.ConsecutiveFailures)
	assert.Equal(t, "timeout", h.LastError, "last error is kept for the ops view")
	assert.False(t, h.LastSuccess.IsZero())
	assert.Equal(t, resilience.StatusHealthy, h.Status())
}

func TestRegistry_SnapshotSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"fares", "airports", "transports"} {
		register(registry, name)
	}

	var names []string
	for _, h := range registry.Snapshot() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"airports", "fares", "transports"}, names)
}

func TestRegistry_UnknownNames(t *testing.T) {
	registry := resilience.NewRegistry()

	assert.NotPanics(t, func() { registry.Record("missing", assert.AnError) })
	_, ok := registry.Health("missing")
	assert.False(t, ok)
	assert.Empty(t, registry.Snapshot())
}

func TestHealth_Status(t *testing.T) {
	tests := []struct {
		state    gobreaker.State
		failures int
		want     resilience.Status
	}{
		{gobreaker.StateClosed, 0, resilience.StatusHealthy},
		{gobreaker.StateClosed, 1, resilience.StatusDegraded},
		{gobreaker.StateHalfOpen, 0, resilience.StatusDegraded},
		{gobreaker.StateOpen, 0, resilience.StatusUnhealthy},
		{gobreaker.StateOpen, 7, resilience.StatusUnhealthy},
	}
	for _, tt := range tests {
		h := resilience.Health{State: tt.state, ConsecutiveFailures: tt.failures}
		assert.Equal(t, tt.want, h.Status(), "%s with %d failures", tt.state, tt.failures)
	}
}
