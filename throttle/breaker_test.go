package throttle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ytingest/youtube"
)

// sleepRecorder collects requested sleep durations without waiting.
type sleepRecorder struct {
	slept []time.Duration
	err   error
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if r.err != nil {
		return r.err
	}
	r.slept = append(r.slept, d)
	return nil
}

func testBreaker(rec *sleepRecorder) *CircuitBreaker {
	return NewCircuitBreakerWithSleep(Config{
		FailureThreshold: 5,
		Cooldown:         time.Minute,
	}, rec.sleep)
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	cb := testBreaker(&sleepRecorder{})

	for i := 0; i < 4; i++ {
		if opened := cb.RecordResult(true); opened {
			t.Fatalf("circuit opened after %d failures, want 5", i+1)
		}
	}
	if cb.State() != BreakerClosed {
		t.Fatalf("State() = %v after 4 failures, want closed", cb.State())
	}

	if opened := cb.RecordResult(true); !opened {
		t.Fatal("fifth consecutive failure did not open the circuit")
	}
	if cb.State() != BreakerOpen {
		t.Errorf("State() = %v, want open", cb.State())
	}
	if !cb.Tripped() {
		t.Error("Tripped() = false after opening")
	}
}

func TestBreakerSuccessResetsCounter(t *testing.T) {
	cb := testBreaker(&sleepRecorder{})

	for i := 0; i < 4; i++ {
		cb.RecordResult(true)
	}
	cb.RecordResult(false)
	if got := cb.ConsecutiveFailures(); got != 0 {
		t.Fatalf("ConsecutiveFailures() = %d after success, want 0", got)
	}

	// The full threshold is needed again.
	for i := 0; i < 4; i++ {
		cb.RecordResult(true)
	}
	if cb.State() != BreakerClosed {
		t.Error("circuit opened before reaching the threshold again")
	}
	if cb.Tripped() {
		t.Error("Tripped() = true though the circuit never opened")
	}
}

func TestBreakerGuardSelfHeals(t *testing.T) {
	rec := &sleepRecorder{}
	cb := testBreaker(rec)

	// Closed circuit: no waiting.
	if err := cb.Guard(context.Background()); err != nil {
		t.Fatalf("Guard() error = %v", err)
	}
	if len(rec.slept) != 0 {
		t.Fatalf("Guard() slept %v on a closed circuit", rec.slept)
	}

	for i := 0; i < 5; i++ {
		cb.RecordResult(true)
	}

	if err := cb.Guard(context.Background()); err != nil {
		t.Fatalf("Guard() error = %v", err)
	}
	if len(rec.slept) != 1 || rec.slept[0] != time.Minute {
		t.Errorf("Guard() slept %v, want one cooldown of 1m", rec.slept)
	}
	if cb.State() != BreakerClosed {
		t.Errorf("State() = %v after cooldown, want closed", cb.State())
	}
	if got := cb.ConsecutiveFailures(); got != 0 {
		t.Errorf("ConsecutiveFailures() = %d after reset, want 0", got)
	}
	// Tripped is a lifetime flag for run summaries.
	if !cb.Tripped() {
		t.Error("Tripped() = false after the circuit had opened")
	}
}

func TestBreakerGuardInterrupted(t *testing.T) {
	rec := &sleepRecorder{err: context.Canceled}
	cb := testBreaker(rec)
	for i := 0; i < 5; i++ {
		cb.RecordResult(true)
	}

	if err := cb.Guard(context.Background()); !errors.Is(err, context.Canceled) {
		t.Fatalf("Guard() error = %v, want context.Canceled", err)
	}
	if cb.State() != BreakerOpen {
		t.Error("interrupted Guard() must leave the circuit open")
	}
}

func TestBreakerRecordError(t *testing.T) {
	cb := testBreaker(&sleepRecorder{})

	cb.RecordError(fmt.Errorf("fetch: %w", youtube.ErrRateLimited))
	if got := cb.ConsecutiveFailures(); got != 1 {
		t.Errorf("ConsecutiveFailures() = %d after rate-limit error, want 1", got)
	}

	cb.RecordError(errors.New("row scan failed"))
	if got := cb.ConsecutiveFailures(); got != 0 {
		t.Errorf("ConsecutiveFailures() = %d after unrelated error, want 0", got)
	}
}

func TestBreakerStateString(t *testing.T) {
	if BreakerClosed.String() != "closed" || BreakerOpen.String() != "open" {
		t.Errorf("unexpected state strings: %q, %q", BreakerClosed, BreakerOpen)
	}
}
