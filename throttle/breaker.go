package throttle

import (
	"context"
	"log"
	"sync"
	"time"

	"ytingest/youtube"
)

// BreakerState is the circuit breaker state. There is no half-open
// state: the breaker is self-healing and closes unconditionally after
// its cooldown, because the upstream gives no cheap probe request to
// test with.
type BreakerState int

const (
	// BreakerClosed is the normal state; attempts proceed.
	BreakerClosed BreakerState = iota
	// BreakerOpen suspends all attempts until the cooldown elapses.
	BreakerOpen
)

// String returns the string representation of a breaker state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreaker accumulates consecutive rate-limit failures and, at a
// threshold, opens to pause the whole run for a cooldown. Guard blocks
// through the cooldown and then resets; there is no manual reset.
//
// One breaker belongs to one import run; the sequential loop gives it
// global visibility into consecutive failures.
type CircuitBreaker struct {
	mu          sync.Mutex
	threshold   int
	cooldown    time.Duration
	sleep       SleepFunc
	consecutive int
	state       BreakerState
	tripped     bool
}

// NewCircuitBreaker creates a breaker from the throttle configuration.
func NewCircuitBreaker(cfg Config) *CircuitBreaker {
	return NewCircuitBreakerWithSleep(cfg, RealSleep)
}

// NewCircuitBreakerWithSleep creates a breaker with an injected sleep
// function so tests can simulate the cooldown without real waits.
func NewCircuitBreakerWithSleep(cfg Config, sleep SleepFunc) *CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		sleep:     sleep,
	}
}

// Guard blocks while the circuit is open. When the cooldown elapses the
// breaker resets itself: consecutive failures return to zero and the
// circuit closes. Call before every extraction attempt.
func (cb *CircuitBreaker) Guard(ctx context.Context) error {
	cb.mu.Lock()
	open := cb.state == BreakerOpen
	cooldown := cb.cooldown
	cb.mu.Unlock()

	if !open {
		return nil
	}

	log.Printf("throttle: circuit open, pausing %s before resuming", cooldown)
	if err := cb.sleep(ctx, cooldown); err != nil {
		return err
	}

	cb.mu.Lock()
	cb.state = BreakerClosed
	cb.consecutive = 0
	cb.mu.Unlock()
	return nil
}

// RecordResult updates the breaker from one extraction outcome. Only
// rate-limit signals count as failures; a usable result (real or
// content extract) without a blocking signal resets the counter.
// Returns true when this result opened the circuit.
func (cb *CircuitBreaker) RecordResult(rateLimited bool) bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !rateLimited {
		cb.consecutive = 0
		return false
	}

	cb.consecutive++
	if cb.state == BreakerClosed && cb.consecutive >= cb.threshold {
		cb.state = BreakerOpen
		cb.tripped = true
		log.Printf("throttle: %d consecutive rate-limit failures, opening circuit", cb.consecutive)
		return true
	}
	return false
}

// RecordError is a convenience for call sites holding an error rather
// than an extraction result.
func (cb *CircuitBreaker) RecordError(err error) bool {
	return cb.RecordResult(youtube.IsRateLimitSignal(err))
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ConsecutiveFailures returns the current consecutive failure count.
func (cb *CircuitBreaker) ConsecutiveFailures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutive
}

// Tripped reports whether the circuit opened at any point in its
// lifetime, for run summaries.
func (cb *CircuitBreaker) Tripped() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.tripped
}
