package resilience

import (
	"errors"
	"testing"
	"time"
)

var errBackend = errors.New("backend down")

// fakeClock lets tests advance the breaker cooldown without sleeping.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clk := &fakeClock{t: time.Unix(1700000000, 0)}
	cfg.now = clk.now
	return NewCircuitBreaker(cfg), clk
}

// trip drives the breaker into the open state.
func trip(t *testing.T, cb *CircuitBreaker, failures int) {
	t.Helper()
	for i := 0; i < failures; i++ {
		_ = cb.Execute(func() error { return errBackend })
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v after %d failures, want open", cb.State(), failures)
	}
}

func TestBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "stt"})
	if cb.maxFails != 5 {
		t.Errorf("maxFails = %d, want 5", cb.maxFails)
	}
	if cb.cooldown != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", cb.cooldown)
	}
	if cb.probeMax != 3 {
		t.Errorf("probeMax = %d, want 3", cb.probeMax)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestBreakerClosedForwardsCalls(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{Name: "stt", MaxFailures: 3})

	called := false
	if err := cb.Execute(func() error { called = true; return nil }); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestBreakerOpensAfterFailureRun(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{Name: "stt", MaxFailures: 3})
	trip(t, cb, 3)

	err := cb.Execute(func() error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestBreakerSuccessResetsRun(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{Name: "stt", MaxFailures: 3})

	_ = cb.Execute(func() error { return errBackend })
	_ = cb.Execute(func() error { return errBackend })
	_ = cb.Execute(func() error { return nil })
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after interleaved success", cb.State())
	}

	_ = cb.Execute(func() error { return errBackend })
	_ = cb.Execute(func() error { return errBackend })
	if cb.State() != StateClosed {
		t.Fatal("two failures after a success must not open a MaxFailures=3 breaker")
	}
}

func TestBreakerCooldownLeadsToHalfOpen(t *testing.T) {
	cb, clk := newTestBreaker(CircuitBreakerConfig{
		Name:         "stt",
		MaxFailures:  2,
		ResetTimeout: time.Minute,
	})
	trip(t, cb, 2)

	clk.advance(time.Minute)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after cooldown", cb.State())
	}
}

func TestBreakerClosesAfterSuccessfulProbes(t *testing.T) {
	cb, clk := newTestBreaker(CircuitBreakerConfig{
		Name:         "stt",
		MaxFailures:  2,
		ResetTimeout: time.Minute,
		HalfOpenMax:  2,
	})
	trip(t, cb, 2)
	clk.advance(time.Minute)

	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return nil }); err != nil {
			t.Fatalf("probe %d: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after successful probes", cb.State())
	}
}

func TestBreakerReopensOnProbeFailure(t *testing.T) {
	cb, clk := newTestBreaker(CircuitBreakerConfig{
		Name:         "stt",
		MaxFailures:  2,
		ResetTimeout: time.Minute,
		HalfOpenMax:  3,
	})
	trip(t, cb, 2)
	clk.advance(time.Minute)

	if err := cb.Execute(func() error { return errBackend }); err == nil {
		t.Fatal("expected error from failing probe")
	}

	// The cooldown restarted, so reads report open again.
	if got := cb.State(); got != StateOpen {
		t.Fatalf("state = %v, want open after probe failure", got)
	}
}

func TestBreakerManualReset(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		Name:         "stt",
		MaxFailures:  2,
		ResetTimeout: time.Hour,
	})
	trip(t, cb, 2)

	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after reset", cb.State())
	}
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("Execute after reset: %v", err)
	}
}

func TestStateString(t *testing.T) {
	cases := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(99), "unknown"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
