package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errFail = errors.New("fail")

// fakeClock returns a breaker whose clock is advanced by hand.
func fakeClock(cb *CircuitBreaker) *time.Time {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return &now
}

func fail(context.Context) error    { return errFail }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Second)
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker(3, time.Second)
	fakeClock(cb)

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail); err != errFail {
			t.Fatalf("expected errFail, got %v", err)
		}
	}
	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after 3 failures, got %v", cb.CurrentState())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if err != ErrCircuitOpen || called {
		t.Errorf("expected rejected call, got err=%v called=%v", err, called)
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker(2, time.Second)
	now := fakeClock(cb)

	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)
	if cb.CurrentState() != StateOpen {
		t.Fatal("expected Open")
	}

	*now = now.Add(2 * time.Second)
	if err := cb.Execute(ctx, succeed); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed after successful probe, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_HalfOpenFailure(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker(2, time.Second)
	now := fakeClock(cb)

	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)

	*now = now.Add(2 * time.Second)
	cb.Execute(ctx, fail)
	if cb.CurrentState() != StateOpen {
		t.Errorf("expected Open after failed probe, got %v", cb.CurrentState())
	}

	// The reset timeout restarts from the failed probe.
	*now = now.Add(500 * time.Millisecond)
	if err := cb.Execute(ctx, succeed); err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_SingleProbe(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker(1, time.Second)
	now := fakeClock(cb)
	cb.Execute(ctx, fail)
	*now = now.Add(2 * time.Second)

	var inner error
	cb.Execute(ctx, func(context.Context) error {
		inner = cb.Execute(ctx, succeed)
		return nil
	})
	if inner != ErrCircuitOpen {
		t.Errorf("concurrent call during probe: got %v, want ErrCircuitOpen", inner)
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	cb := NewCircuitBreaker(3, time.Second)

	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)
	cb.Execute(ctx, succeed)
	cb.Execute(ctx, fail)
	cb.Execute(ctx, fail)

	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed (counter should have reset), got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_CancelledCallerDoesNotTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cb := NewCircuitBreaker(1, time.Second)

	cb.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected Closed, got %v", cb.CurrentState())
	}
}

func TestCircuitBreaker_OnStateChangeCallback(t *testing.T) {
	ctx := context.Background()
	var transitions []State
	cb := NewCircuitBreaker(1, time.Second)
	now := fakeClock(cb)
	cb.OnStateChange = func(from, to State) {
		transitions = append(transitions, to)
	}

	cb.Execute(ctx, fail)
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("expected [Open], got %v", transitions)
	}

	*now = now.Add(2 * time.Second)
	cb.Execute(ctx, succeed)

	if len(transitions) != 3 {
		t.Fatalf("expected 3 transitions, got %d: %v", len(transitions), transitions)
	}
	if transitions[1] != StateHalfOpen || transitions[2] != StateClosed {
		t.Errorf("expected [Open, HalfOpen, Closed], got %v", transitions)
	}
}
