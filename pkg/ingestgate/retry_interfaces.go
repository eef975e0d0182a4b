package ingestgate

import (
	"fmt"
	"time"
)

// ErrorClass is the outcome of classifying a failure raised by a client library.
type ErrorClass int

const (
	// ClassUnknown is an unrecognized failure. It is treated as fatal.
	ClassUnknown ErrorClass = iota

	// ClassTransientInfrastructure is a temporary downstream outage; retryable.
	ClassTransientInfrastructure

	// ClassPermanentConfiguration must be fixed by an operator; never retried.
	ClassPermanentConfiguration

	// ClassPermanentApplication is an expected domain outcome; passed through unchanged.
	ClassPermanentApplication
)

// String returns a stable, lower-case name suitable for logs and metric dimensions.
func (c ErrorClass) String() string {
	switch c {
	case ClassUnknown:
		return "unknown"
	case ClassTransientInfrastructure:
		return "transient_infrastructure"
	case ClassPermanentConfiguration:
		return "permanent_configuration"
	case ClassPermanentApplication:
		return "permanent_application"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Retryable reports whether a failure of this class may be retried.
func (c ErrorClass) Retryable() bool {
	return c == ClassTransientInfrastructure
}

// ErrorClassifier maps a raw failure into an ErrorClass.
// Implementations must be pure: no state, no I/O.
type ErrorClassifier interface {
	Classify(err error) ErrorClass
}

// BackoffStrategy calculates the delay before each attempt.
type BackoffStrategy interface {
	// NextDelay returns the duration to wait before the given attempt.
	// attempt is zero-indexed (0 = first attempt, 1 = first retry, etc.)
	NextDelay(attempt int) time.Duration

	// MaxAttempts returns the total number of attempts permitted (at least 1).
	MaxAttempts() int
}
