package comparison_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundscanner/groundscanner/internal/comparison"
)

func TestSession_LatestQueryWins(t *testing.T) {
	upstream := newMockUpstream(t)
	upstream.gate = make(chan struct{})
	svc := newService(upstream, nil)
	session := comparison.NewSession(svc)

	stale := make(chan error, 1)
	go func() {
		_, err := session.Compare(context.Background(), comparison.Query{Airport: "LHR", Passengers: 1})
		stale <- err
	}()
	require.Eventually(t, func() bool { return session.Generation() == 1 }, time.Second, 5*time.Millisecond)

	type outcome struct {
		res *comparison.Result
		err error
	}
	latest := make(chan outcome, 1)
	go func() {
		res, err := session.Compare(context.Background(), comparison.Query{Airport: "LHR", Passengers: 3})
		latest <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return session.Generation() == 2 }, time.Second, 5*time.Millisecond)

	close(upstream.gate)
	got := <-latest
	require.NoError(t, got.err)
	assert.Equal(t, 3, got.res.Passengers)
	assert.Equal(t, "LHR:3", session.Key())

	assert.ErrorIs(t, <-stale, comparison.ErrSuperseded)
	assert.Equal(t, uint64(2), session.Generation())
}

func TestSession_SingleQueryCompletes(t *testing.T) {
	session := comparison.NewSession(newService(newMockUpstream(t), nil))

	res, err := session.Compare(context.Background(), comparison.Query{Airport: "LHR", Passengers: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
}

func TestSessions_GetReturnsSameSession(t *testing.T) {
	sessions := comparison.NewSessions(newService(newMockUpstream(t), nil), time.Minute)

	a := sessions.Get("client-a")
	assert.Same(t, a, sessions.Get("client-a"))
	assert.NotSame(t, a, sessions.Get("client-b"))
	assert.Equal(t, 2, sessions.Len())
}
