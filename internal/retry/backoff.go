package retry

import (
	"math"
	"math/rand"
	"time"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// FixedBackoff waits a constant interval between attempts.
// It is the default policy for the broker and store clients: fan-out is
// narrow and the configured wait is what operators reason about.
type FixedBackoff struct {
	maxAttempts int
	initialWait time.Duration
	wait        time.Duration
}

// NewFixedBackoff creates a fixed policy. initialWait precedes the first
// attempt, wait precedes every later attempt. maxAttempts below 1 is raised to 1.
func NewFixedBackoff(maxAttempts int, initialWait, wait time.Duration) *FixedBackoff {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &FixedBackoff{
		maxAttempts: maxAttempts,
		initialWait: initialWait,
		wait:        wait,
	}
}

// NextDelay returns initialWait for attempt 0 and wait afterwards.
func (b *FixedBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return b.initialWait
	}
	return b.wait
}

// MaxAttempts returns the total number of attempts.
func (b *FixedBackoff) MaxAttempts() int {
	return b.maxAttempts
}

// ExponentialBackoff grows the wait between attempts geometrically, with
// jitter and a floor. Attempt 0 waits firstDelay; retry n waits
// initialDelay * multiplier^(n-1) with jitter, capped at maxDelay.
type ExponentialBackoff struct {
	firstDelay   time.Duration
	initialDelay time.Duration
	maxDelay     time.Duration

	// minDelay is applied after jitter so a configured wait stays a lower bound.
	minDelay time.Duration

	multiplier  float64
	maxAttempts int

	// jitter of 0.1 means +/- 10%.
	jitter     float64
	jitterFunc func() float64
}

// BackoffOption configures an ExponentialBackoff.
type BackoffOption func(*ExponentialBackoff)

// WithFirstDelay sets the wait before the first attempt.
func WithFirstDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.firstDelay = d
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.initialDelay = d
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.maxDelay = d
	}
}

// WithMinDelay sets a floor for every retry delay, applied after jitter.
func WithMinDelay(d time.Duration) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.minDelay = d
	}
}

func WithMultiplier(m float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.multiplier = m
	}
}

func WithJitter(j float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitter = j
	}
}

// WithJitterFunc replaces the random source, which must return values in [0, 1).
func WithJitterFunc(f func() float64) BackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitterFunc = f
	}
}

// NewExponentialBackoff creates an exponential policy. Without options it
// starts at 100ms, doubles, caps at 30s and jitters by 10%.
func NewExponentialBackoff(maxAttempts int, opts ...BackoffOption) *ExponentialBackoff {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	b := &ExponentialBackoff{
		initialDelay: 100 * time.Millisecond,
		maxDelay:     30 * time.Second,
		multiplier:   2.0,
		maxAttempts:  maxAttempts,
		jitter:       0.1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NextDelay calculates the delay before the given attempt.
func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return b.firstDelay
	}

	maxMs := float64(b.maxDelay.Milliseconds())
	delayMs := math.Min(float64(b.initialDelay.Milliseconds())*math.Pow(b.multiplier, float64(attempt-1)), maxMs)

	if b.jitter > 0 {
		random := b.jitterFunc
		if random == nil {
			random = rand.Float64
		}
		// [0,1) mapped to [-1,1)
		delayMs = math.Min(delayMs*(1.0+b.jitter*((random()-0.5)*2.0)), maxMs)
	}

	delay := time.Duration(delayMs) * time.Millisecond
	if delay < b.minDelay {
		delay = b.minDelay
	}
	return delay
}

// MaxAttempts returns the total number of attempts.
func (b *ExponentialBackoff) MaxAttempts() int {
	return b.maxAttempts
}

// NewBrokerBackoff builds the connection policy selected by cfg.Backoff.
// The exponential policy starts from wait_time, never waits less than it
// and stops growing at max_wait.
func NewBrokerBackoff(cfg ingestgate.BrokerConfig) ingestgate.BackoffStrategy {
	if cfg.Backoff != ingestgate.BackoffExponential {
		return NewFixedBackoff(cfg.MaxRetry, cfg.InitialWait, cfg.WaitTime)
	}
	opts := []BackoffOption{
		WithFirstDelay(cfg.InitialWait),
		WithMinDelay(cfg.WaitTime),
	}
	if cfg.WaitTime > 0 {
		opts = append(opts, WithInitialDelay(cfg.WaitTime))
	}
	if cfg.MaxWait > 0 {
		opts = append(opts, WithMaxDelay(cfg.MaxWait))
	}
	return NewExponentialBackoff(cfg.MaxRetry, opts...)
}

// Exhausted reports whether attempt (zero-indexed) is at or beyond the
// strategy's attempt budget.
func Exhausted(strategy ingestgate.BackoffStrategy, attempt int) bool {
	return attempt >= strategy.MaxAttempts()
}
