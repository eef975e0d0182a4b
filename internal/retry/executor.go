package retry

import (
	"context"
	"time"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// Executor orchestrates attempts with backoff and error classification.
//
// Thread Safety:
// The Executor itself is safe for concurrent use when calling Execute().
// WithOnFailure() returns a NEW instance with the callback configured,
// so each caller can attach its own hook without shared state.
type Executor struct {
	classifier ingestgate.ErrorClassifier
	strategy   ingestgate.BackoffStrategy
	onFailure  func(attempt int, err error, class ingestgate.ErrorClass)
}

// Stats describes a finished Execute call.
type Stats struct {
	Attempts int
	Waited   time.Duration
}

// NewExecutor creates a new executor with the given configuration.
// Panics if classifier or strategy is nil.
func NewExecutor(
	classifier ingestgate.ErrorClassifier,
	strategy ingestgate.BackoffStrategy,
) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{
		classifier: classifier,
		strategy:   strategy,
	}
}

// WithOnFailure returns a new Executor that calls callback once per failed
// attempt, before deciding whether to continue.
//
// This method does NOT modify the receiver.
func (e *Executor) WithOnFailure(callback func(attempt int, err error, class ingestgate.ErrorClass)) *Executor {
	clone := *e
	clone.onFailure = callback
	return &clone
}

// Execute runs the operation up to MaxAttempts times. Non-transient failures
// are returned at once; after the last attempt the last failure is returned
// as-is. Cancelling ctx while waiting returns ctx.Err().
func (e *Executor) Execute(ctx context.Context, operation func(ctx context.Context) error) error {
	_, err := e.ExecuteWithStats(ctx, operation)
	return err
}

// ExecuteWithStats is Execute that also reports how many attempts were made
// and how long was spent waiting between them.
func (e *Executor) ExecuteWithStats(ctx context.Context, operation func(ctx context.Context) error) (Stats, error) {
	var (
		stats   Stats
		lastErr error
	)
	for attempt := 0; !Exhausted(e.strategy, attempt); attempt++ {
		if delay := e.strategy.NextDelay(attempt); delay > 0 {
			if err := wait(ctx, delay); err != nil {
				return stats, err
			}
			stats.Waited += delay
		} else if err := ctx.Err(); err != nil {
			return stats, err
		}

		stats.Attempts++
		lastErr = operation(ctx)
		if lastErr == nil {
			return stats, nil
		}

		class := e.classifier.Classify(lastErr)
		if e.onFailure != nil {
			e.onFailure(attempt, lastErr, class)
		}
		if !class.Retryable() {
			return stats, lastErr
		}
	}

	return stats, lastErr
}

func wait(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
