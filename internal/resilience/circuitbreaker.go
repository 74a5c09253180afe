// Package resilience guards the external speech and language providers with
// circuit breakers and ordered failover.
//
// [CircuitBreaker] is the classic three-state breaker: a run of failures
// opens it, a cooldown moves it to half-open, and successful probes close it
// again. [FallbackGroup] strings several providers of one kind together with
// a breaker per entry, so a dead primary is skipped instead of stalling the
// pipeline.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// is open and the cooldown has not elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the cooldown
	// elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through to decide
	// whether the backend has recovered.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero values select the
// defaults noted per field.
type CircuitBreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// MaxFailures is the failure run length that opens a closed breaker.
	// Default 5.
	MaxFailures int

	// ResetTimeout is the open-state cooldown before probing resumes.
	// Default 30s.
	ResetTimeout time.Duration

	// HalfOpenMax bounds concurrent-and-total probe calls in half-open.
	// That many successful probes close the breaker; one failure re-opens
	// it. Default 3.
	HalfOpenMax int

	// now overrides the clock in tests.
	now func() time.Time
}

// CircuitBreaker implements the three-state breaker pattern.
type CircuitBreaker struct {
	name     string
	maxFails int
	cooldown time.Duration
	probeMax int
	now      func() time.Time

	mu         sync.Mutex
	state      State
	failRun    int       // consecutive failures while closed
	lastFailAt time.Time // start of the open cooldown
	probes     int       // probe calls issued while half-open
	probeFails int
}

// NewCircuitBreaker builds a breaker from cfg, applying defaults for zero
// fields.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &CircuitBreaker{
		name:     cfg.Name,
		maxFails: cfg.MaxFailures,
		cooldown: cfg.ResetTimeout,
		probeMax: cfg.HalfOpenMax,
		now:      cfg.now,
		state:    StateClosed,
	}
}

// Execute runs fn unless the breaker rejects the call, and folds fn's result
// back into the breaker state. Open breakers whose cooldown has elapsed move
// to half-open before deciding.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure(probe)
	} else {
		cb.onSuccess(probe)
	}
	return err
}

// admit decides whether a call may proceed. It reports whether the call
// counts as a half-open probe.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailAt) < cb.cooldown {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("circuit breaker transitioning to half-open", "name", cb.name)

	case StateHalfOpen:
		if cb.probes >= cb.probeMax {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probes++
		return true, nil
	}
	return false, nil
}

// onFailure must be called with cb.mu held.
func (cb *CircuitBreaker) onFailure(probe bool) {
	cb.lastFailAt = cb.now()

	if probe {
		cb.probeFails++
		cb.state = StateOpen
		cb.failRun = cb.maxFails
		slog.Warn("circuit breaker re-opened from half-open", "name", cb.name)
		return
	}

	cb.failRun++
	if cb.failRun >= cb.maxFails {
		cb.state = StateOpen
		slog.Warn("circuit breaker opened",
			"name", cb.name,
			"consecutive_failures", cb.failRun)
	}
}

// onSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) onSuccess(probe bool) {
	if !probe {
		cb.failRun = 0
		return
	}
	if cb.probes-cb.probeFails >= cb.probeMax {
		cb.state = StateClosed
		cb.failRun = 0
		cb.probes = 0
		cb.probeFails = 0
		slog.Info("circuit breaker closed after successful probes", "name", cb.name)
	}
}

// State returns the breaker's effective state. An open breaker whose cooldown
// has elapsed reports [StateHalfOpen]; the stored transition happens on the
// next [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.lastFailAt) >= cb.cooldown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker back to [StateClosed] and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failRun = 0
	cb.probes = 0
	cb.probeFails = 0
	slog.Info("circuit breaker manually reset", "name", cb.name)
}
