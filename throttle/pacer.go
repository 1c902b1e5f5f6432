// Package throttle spaces out caption extraction attempts and halts
// them entirely when the provider shows sustained blocking. Delays are
// deliberate and long; the upstream throttling is undocumented, so the
// defaults are empirically tuned floor values, not correctness
// requirements.
package throttle

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Default pacing values, tuned against observed throttling behavior.
const (
	// DefaultBaseDelay is the floor delay before every attempt after
	// the first in a run.
	DefaultBaseDelay = 15 * time.Second
	// DefaultFailurePenalty is added per consecutive failure.
	DefaultFailurePenalty = 25 * time.Second
	// DefaultPositionPenalty is added per position within the current
	// batch, so later items in a batch slow down slightly.
	DefaultPositionPenalty = 5 * time.Second
	// DefaultMaxDelay caps the per-attempt delay.
	DefaultMaxDelay = 3 * time.Minute
	// DefaultBatchSize is the number of videos processed between the
	// longer inter-batch pauses.
	DefaultBatchSize = 4
	// DefaultBatchDelay is the base inter-batch pause.
	DefaultBatchDelay = 45 * time.Second
	// DefaultBatchJitter is the maximum random addition to the
	// inter-batch pause.
	DefaultBatchJitter = 15 * time.Second
	// DefaultFailureThreshold is the consecutive rate-limit failure
	// count that opens the circuit.
	DefaultFailureThreshold = 5
	// DefaultCooldown is how long the circuit stays open before
	// self-resetting.
	DefaultCooldown = 60 * time.Second
	// DefaultRequestFloor is the hard requests-per-second ceiling
	// enforced underneath all the delay logic.
	DefaultRequestFloor = 0.5
)

// Config tunes the pacer and circuit breaker.
type Config struct {
	BaseDelay        time.Duration
	FailurePenalty   time.Duration
	PositionPenalty  time.Duration
	MaxDelay         time.Duration
	BatchSize        int
	BatchDelay       time.Duration
	BatchJitter      time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	// RequestFloor is the token-bucket rate (requests/second) enforced
	// in addition to the explicit delays. Zero disables the bucket.
	RequestFloor float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		BaseDelay:        DefaultBaseDelay,
		FailurePenalty:   DefaultFailurePenalty,
		PositionPenalty:  DefaultPositionPenalty,
		MaxDelay:         DefaultMaxDelay,
		BatchSize:        DefaultBatchSize,
		BatchDelay:       DefaultBatchDelay,
		BatchJitter:      DefaultBatchJitter,
		FailureThreshold: DefaultFailureThreshold,
		Cooldown:         DefaultCooldown,
		RequestFloor:     DefaultRequestFloor,
	}
}

// SleepFunc waits for a duration or until the context ends. Tests
// inject a recording implementation to simulate elapsed time.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RealSleep waits on a timer.
func RealSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pacer computes and applies the inter-attempt and inter-batch delays
// of a processing run. It is not safe for concurrent use; runs are
// strictly sequential by design.
type Pacer struct {
	cfg     Config
	sleep   SleepFunc
	limiter *rate.Limiter
	rnd     *rand.Rand
	first   bool
}

// NewPacer creates a pacer with the given configuration.
func NewPacer(cfg Config) *Pacer {
	return newPacer(cfg, RealSleep)
}

// NewPacerWithSleep creates a pacer with an injected sleep function.
func NewPacerWithSleep(cfg Config, sleep SleepFunc) *Pacer {
	return newPacer(cfg, sleep)
}

func newPacer(cfg Config, sleep SleepFunc) *Pacer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	p := &Pacer{
		cfg:   cfg,
		sleep: sleep,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		first: true,
	}
	if cfg.RequestFloor > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestFloor), 1)
	}
	return p
}

// BatchSize returns the configured batch size.
func (p *Pacer) BatchSize() int { return p.cfg.BatchSize }

// BeforeAttempt applies the per-attempt delay. position is the item's
// index within the current batch; consecutiveFailures is the run-wide
// count maintained by the circuit breaker. The first attempt of a run
// is not delayed.
func (p *Pacer) BeforeAttempt(ctx context.Context, position, consecutiveFailures int) error {
	if p.first {
		p.first = false
		return p.reserve(ctx)
	}

	delay := p.cfg.BaseDelay +
		time.Duration(consecutiveFailures)*p.cfg.FailurePenalty +
		time.Duration(position)*p.cfg.PositionPenalty
	if delay > p.cfg.MaxDelay {
		delay = p.cfg.MaxDelay
	}

	if err := p.sleep(ctx, delay); err != nil {
		return err
	}
	return p.reserve(ctx)
}

// BetweenBatches applies the longer inter-batch pause with jitter.
func (p *Pacer) BetweenBatches(ctx context.Context) error {
	delay := p.cfg.BatchDelay
	if p.cfg.BatchJitter > 0 {
		delay += time.Duration(p.rnd.Int63n(int64(p.cfg.BatchJitter)))
	}
	return p.sleep(ctx, delay)
}

// reserve waits on the request-floor token bucket.
func (p *Pacer) reserve(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	return p.limiter.Wait(ctx)
}
