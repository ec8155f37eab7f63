package latch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLatch_RunsOnce(t *testing.T) {
	var l Latch
	var calls atomic.Int32

	for i := 0; i < 3; i++ {
		if err := l.Do(context.Background(), func(context.Context) error {
			calls.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if l.State() != Done {
		t.Errorf("expected Done, got %s", l.State())
	}
}

func TestLatch_ConcurrentCallersShareExecution(t *testing.T) {
	var l Latch
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- l.Do(context.Background(), func(context.Context) error {
				calls.Add(1)
				<-release
				return nil
			})
		}()
	}

	for l.State() != InFlight {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestLatch_FailureAllowsRetry(t *testing.T) {
	var l Latch
	boom := errors.New("boom")

	if err := l.Do(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if l.State() != NotStarted {
		t.Fatalf("expected NotStarted after failure, got %s", l.State())
	}

	if err := l.Do(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if l.State() != Done {
		t.Errorf("expected Done, got %s", l.State())
	}
}

func TestLatch_WaiterHonoursContext(t *testing.T) {
	var l Latch
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- l.Do(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()
	for l.State() != InFlight {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := l.Do(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("unexpected error from running execution: %v", err)
	}
	if l.State() != Done {
		t.Errorf("expected Done, got %s", l.State())
	}
}

func TestLatch_CanceledLeaderDoesNotFailWaiters(t *testing.T) {
	var l Latch
	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(ctx context.Context) error {
		calls.Add(1)
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leader := make(chan error, 1)
	go func() { leader <- l.Do(leaderCtx, fn) }()
	for l.State() != InFlight {
		time.Sleep(time.Millisecond)
	}

	waiter := make(chan error, 1)
	go func() { waiter <- l.Do(context.Background(), fn) }()

	cancelLeader()
	if err := <-leader; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the leader to see its own cancellation, got %v", err)
	}

	close(release)
	if err := <-waiter; err != nil {
		t.Errorf("expected waiter to share the successful execution, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
	if l.State() != Done {
		t.Errorf("expected Done, got %s", l.State())
	}
}
