package retry

import (
	"testing"
	"time"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

func TestFixedBackoff_NextDelay(t *testing.T) {
	strategy := NewFixedBackoff(3, 50*time.Millisecond, time.Second)

	tests := []struct {
		attempt       int
		expectedDelay time.Duration
	}{
		{attempt: 0, expectedDelay: 50 * time.Millisecond},
		{attempt: 1, expectedDelay: time.Second},
		{attempt: 2, expectedDelay: time.Second},
	}

	for _, tt := range tests {
		if delay := strategy.NextDelay(tt.attempt); delay != tt.expectedDelay {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, delay, tt.expectedDelay)
		}
	}
}

func TestFixedBackoff_MaxAttemptsFloor(t *testing.T) {
	for _, n := range []int{-1, 0, 1} {
		if got := NewFixedBackoff(n, 0, 0).MaxAttempts(); got != 1 {
			t.Errorf("NewFixedBackoff(%d).MaxAttempts() = %d, want 1", n, got)
		}
	}
	if got := NewFixedBackoff(5, 0, 0).MaxAttempts(); got != 5 {
		t.Errorf("MaxAttempts() = %d, want 5", got)
	}
}

func TestFixedBackoff_ZeroWait(t *testing.T) {
	strategy := NewFixedBackoff(3, 0, 0)
	for attempt := 0; attempt < 3; attempt++ {
		if delay := strategy.NextDelay(attempt); delay != 0 {
			t.Errorf("NextDelay(%d) = %v, want 0", attempt, delay)
		}
	}
}

func TestExponentialBackoff_Defaults(t *testing.T) {
	strategy := NewExponentialBackoff(3, WithJitter(0))

	if got := strategy.MaxAttempts(); got != 3 {
		t.Errorf("MaxAttempts() = %d, want 3", got)
	}
	if got := strategy.NextDelay(0); got != 0 {
		t.Errorf("NextDelay(0) = %v, want 0", got)
	}
	if got := strategy.NextDelay(1); got != 100*time.Millisecond {
		t.Errorf("NextDelay(1) = %v, want 100ms", got)
	}
	if got := strategy.NextDelay(20); got != 30*time.Second {
		t.Errorf("NextDelay(20) = %v, want 30s cap", got)
	}
}

func TestExponentialBackoff_FirstDelay(t *testing.T) {
	strategy := NewExponentialBackoff(3, WithFirstDelay(250*time.Millisecond), WithJitter(0))

	if got := strategy.NextDelay(0); got != 250*time.Millisecond {
		t.Errorf("NextDelay(0) = %v, want 250ms", got)
	}
	if got := strategy.NextDelay(1); got != 100*time.Millisecond {
		t.Errorf("NextDelay(1) = %v, want 100ms", got)
	}
}

func TestExponentialBackoff_NextDelay_WithoutJitter(t *testing.T) {
	strategy := NewExponentialBackoff(5,
		WithInitialDelay(100*time.Millisecond),
		WithMultiplier(2.0),
		WithJitter(0),
	)

	tests := []struct {
		attempt       int
		expectedDelay time.Duration
	}{
		{attempt: 0, expectedDelay: 0},
		{attempt: 1, expectedDelay: 100 * time.Millisecond},
		{attempt: 2, expectedDelay: 200 * time.Millisecond},
		{attempt: 3, expectedDelay: 400 * time.Millisecond},
		{attempt: 4, expectedDelay: 800 * time.Millisecond},
	}

	for _, tt := range tests {
		delay := strategy.NextDelay(tt.attempt)
		if delay != tt.expectedDelay {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, delay, tt.expectedDelay)
		}
	}
}

func TestExponentialBackoff_NextDelay_MaxDelayCap(t *testing.T) {
	strategy := NewExponentialBackoff(100,
		WithInitialDelay(100*time.Millisecond),
		WithMultiplier(2.0),
		WithMaxDelay(time.Second),
		WithJitter(0),
	)

	for attempt := 0; attempt < 100; attempt++ {
		delay := strategy.NextDelay(attempt)
		if delay > time.Second {
			t.Errorf("Attempt %d: delay %v exceeds cap", attempt, delay)
		}
		if attempt > 10 && delay != time.Second {
			t.Errorf("Attempt %d: expected delay capped at 1s, got %v", attempt, delay)
		}
	}
}

func TestExponentialBackoff_NextDelay_WithJitter(t *testing.T) {
	tests := []struct {
		name   string
		random float64
		want   time.Duration
	}{
		{name: "lower bound", random: 0.0, want: 90 * time.Millisecond},
		{name: "midpoint", random: 0.5, want: 100 * time.Millisecond},
		{name: "upper half", random: 0.75, want: 105 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strategy := NewExponentialBackoff(3,
				WithInitialDelay(100*time.Millisecond),
				WithJitter(0.1),
				WithJitterFunc(func() float64 { return tt.random }),
			)
			if got := strategy.NextDelay(1); got != tt.want {
				t.Errorf("NextDelay(1) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExponentialBackoff_MinDelayFloor(t *testing.T) {
	strategy := NewExponentialBackoff(5,
		WithInitialDelay(10*time.Millisecond),
		WithMinDelay(time.Second),
		WithMaxDelay(time.Minute),
		WithJitter(0),
	)

	if got := strategy.NextDelay(0); got != 0 {
		t.Errorf("NextDelay(0) = %v, want 0", got)
	}
	for attempt := 1; attempt < 5; attempt++ {
		if got := strategy.NextDelay(attempt); got < time.Second {
			t.Errorf("NextDelay(%d) = %v, below floor", attempt, got)
		}
	}
}

func TestExponentialBackoff_MaxAttemptsFloor(t *testing.T) {
	if got := NewExponentialBackoff(0).MaxAttempts(); got != 1 {
		t.Errorf("MaxAttempts() = %d, want 1", got)
	}
	if got := NewExponentialBackoff(-3).MaxAttempts(); got != 1 {
		t.Errorf("MaxAttempts() = %d, want 1", got)
	}
}

func TestExhausted(t *testing.T) {
	strategy := NewFixedBackoff(3, 0, 0)

	for attempt, want := range []bool{false, false, false, true, true} {
		if got := Exhausted(strategy, attempt); got != want {
			t.Errorf("Exhausted(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestNewBrokerBackoff(t *testing.T) {
	fixed := NewBrokerBackoff(ingestgate.BrokerConfig{MaxRetry: 4, InitialWait: time.Millisecond, WaitTime: time.Second})
	if _, ok := fixed.(*FixedBackoff); !ok {
		t.Fatalf("default policy = %T, want *FixedBackoff", fixed)
	}
	if fixed.MaxAttempts() != 4 || fixed.NextDelay(0) != time.Millisecond || fixed.NextDelay(2) != time.Second {
		t.Errorf("unexpected fixed policy: attempts=%d first=%v later=%v",
			fixed.MaxAttempts(), fixed.NextDelay(0), fixed.NextDelay(2))
	}

	exp := NewBrokerBackoff(ingestgate.BrokerConfig{
		MaxRetry:    5,
		InitialWait: 0,
		WaitTime:    time.Second,
		MaxWait:     3 * time.Second,
		Backoff:     ingestgate.BackoffExponential,
	})
	if _, ok := exp.(*ExponentialBackoff); !ok {
		t.Fatalf("exponential policy = %T, want *ExponentialBackoff", exp)
	}
	if got := exp.MaxAttempts(); got != 5 {
		t.Errorf("MaxAttempts() = %d, want 5", got)
	}
	if got := exp.NextDelay(0); got != 0 {
		t.Errorf("NextDelay(0) = %v, want 0", got)
	}
	for attempt := 1; attempt < 5; attempt++ {
		got := exp.NextDelay(attempt)
		if got < time.Second {
			t.Errorf("NextDelay(%d) = %v, below wait_time", attempt, got)
		}
		if got > 3*time.Second {
			t.Errorf("NextDelay(%d) = %v, above max_wait", attempt, got)
		}
	}
}
