package worker_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundscanner/groundscanner/internal/worker"
)

func newDispatcher(snapshots *mockSnapshots, faresRefresher *mockFares) *worker.Dispatcher {
	job := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config: worker.RefreshConfig{
			Airports:         []string{"LHR", "LGW"},
			Passengers:       []int{1},
			Cities:           []string{"London"},
			RefreshSnapshots: true,
			RefreshFares:     true,
		},
		Logger:    zerolog.Nop(),
		Snapshots: snapshots,
		Fares:     faresRefresher,
	})
	return worker.NewDispatcher(job, zerolog.Nop())
}

func TestDispatcher_SnapshotRefresh(t *testing.T) {
	snapshots, faresRefresher := &mockSnapshots{}, &mockFares{}
	d := newDispatcher(snapshots, faresRefresher)

	require.NoError(t, d.Handle(context.Background(), []byte(`{"job_type":"snapshot_refresh"}`)))

	assert.Equal(t, int32(2), snapshots.calls.Load())
	assert.Equal(t, int32(1), faresRefresher.calls.Load())
}

func TestDispatcher_NarrowedRefresh(t *testing.T) {
	snapshots, faresRefresher := &mockSnapshots{}, &mockFares{}
	d := newDispatcher(snapshots, faresRefresher)

	err := d.Handle(context.Background(), []byte(`{"job_type":"snapshot_refresh","airports":["MAN"],"passengers":[3]}`))
	require.NoError(t, err)

	assert.Equal(t, []string{"MAN:3"}, snapshots.keys)
	assert.Zero(t, faresRefresher.calls.Load())
}

func TestDispatcher_RefreshFailure(t *testing.T) {
	snapshots := &mockSnapshots{fail: map[string]bool{"LHR:1": true, "LGW:1": true}}
	d := newDispatcher(snapshots, &mockFares{})

	err := d.Handle(context.Background(), []byte(`{"job_type":"snapshot_refresh"}`))
	assert.ErrorContains(t, err, "too many refresh failures")
}

func TestDispatcher_HealthCheck(t *testing.T) {
	snapshots := &mockSnapshots{}
	d := newDispatcher(snapshots, &mockFares{})

	require.NoError(t, d.Handle(context.Background(), []byte(`{"job_type":"health_check"}`)))
	assert.Equal(t, []string{"LHR:1"}, snapshots.keys)

	failing := newDispatcher(&mockSnapshots{fail: map[string]bool{"LHR:1": true}}, &mockFares{})
	assert.ErrorContains(t, failing.Handle(context.Background(), []byte(`{"job_type":"health_check"}`)), "health check failed")
}

func TestDispatcher_BadMessages(t *testing.T) {
	d := newDispatcher(&mockSnapshots{}, &mockFares{})

	assert.ErrorIs(t, d.Handle(context.Background(), []byte(`{"job_type":"alert_evaluation"}`)), worker.ErrUnknownJob)
	assert.ErrorIs(t, d.Handle(context.Background(), []byte(`not json`)), worker.ErrMalformedMessage)
}
