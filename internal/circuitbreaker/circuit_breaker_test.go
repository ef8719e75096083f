package circuitbreaker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestBreaker(clock *fakeClock, maxFailures int) *CircuitBreaker {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(Config{
		Name:        "test",
		MaxFailures: maxFailures,
		OpenTimeout: time.Minute,
		MaxProbes:   1,
		Now:         clock.Now,
	}, logger)
}

var errRemote = errors.New("remote failure")

func failing(context.Context) error    { return errRemote }
func succeeding(context.Context) error { return nil }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := newTestBreaker(clock, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, failing); !errors.Is(err, errRemote) {
			t.Fatalf("call %d: expected remote error, got %v", i, err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open, got %s", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Fatal("guarded function ran while open")
	}
}

func TestSuccessResetsFailureCount(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, 2)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, succeeding)
	_ = cb.Execute(ctx, failing)

	if cb.State() != StateClosed {
		t.Fatalf("expected closed, got %s", cb.State())
	}
}

func TestHalfOpenProbe(t *testing.T) {
	tests := []struct {
		name  string
		probe func(context.Context) error
		want  State
	}{
		{"probe_succeeds", succeeding, StateClosed},
		{"probe_fails", failing, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Now()}
			cb := newTestBreaker(clock, 1)
			ctx := context.Background()

			_ = cb.Execute(ctx, failing)
			clock.Advance(time.Minute)

			if cb.State() != StateHalfOpen {
				t.Fatalf("expected half-open, got %s", cb.State())
			}

			_ = cb.Execute(ctx, tt.probe)

			if got := cb.State(); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestHalfOpenLimitsProbes(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, 1)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	clock.Advance(2 * time.Minute)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := cb.Execute(ctx, succeeding); !errors.Is(err, ErrOpen) {
		t.Errorf("expected second probe to be rejected, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed after probe, got %s", cb.State())
	}
}

func TestCancelledCallIsNotAFailure(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("expected closed, got %s", cb.State())
	}
}

func TestSnapshotAndReset(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, 2)
	ctx := context.Background()

	_ = cb.Execute(ctx, succeeding)
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, failing)
	_ = cb.Execute(ctx, succeeding)

	snap := cb.Snapshot()
	if snap.State != "open" {
		t.Errorf("expected open, got %s", snap.State)
	}
	if snap.Calls != 3 || snap.Failed != 2 || snap.Rejected != 1 {
		t.Errorf("unexpected counters: %+v", snap)
	}
	if snap.StateChanges != 1 {
		t.Errorf("expected 1 state change, got %d", snap.StateChanges)
	}

	cb.Reset()
	if cb.State() != StateClosed {
		t.Errorf("expected closed after reset, got %s", cb.State())
	}
	if err := cb.Execute(ctx, succeeding); err != nil {
		t.Errorf("expected call after reset to pass, got %v", err)
	}
}

func TestStateChangeCallback(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	changes := make(chan [2]State, 1)

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cb := New(Config{
		Name:        "callback",
		MaxFailures: 1,
		Now:         clock.Now,
		OnStateChange: func(name string, from, to State) {
			changes <- [2]State{from, to}
		},
	}, logger)

	_ = cb.Execute(context.Background(), failing)

	select {
	case got := <-changes:
		if got != [2]State{StateClosed, StateOpen} {
			t.Errorf("unexpected transition %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("state change callback not called")
	}
}

func TestConfigDefaults(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cb := New(Config{MaxFailures: -1}, logger)

	if cb.name != "unnamed" {
		t.Errorf("expected unnamed, got %s", cb.name)
	}
	if cb.maxFailures != DefaultMaxFailures {
		t.Errorf("expected %d, got %d", DefaultMaxFailures, cb.maxFailures)
	}
	if cb.openTimeout != DefaultOpenTimeout {
		t.Errorf("expected %s, got %s", DefaultOpenTimeout, cb.openTimeout)
	}
	if cb.maxProbes != DefaultMaxProbes {
		t.Errorf("expected %d, got %d", DefaultMaxProbes, cb.maxProbes)
	}
}
