package ingestgate

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
//
// Example usage:
//
//	err := publisher.PublishBatch(ctx, messages)
//	if errors.Is(err, ingestgate.ErrMessagingUnavailable) {
//	    // respond with a retriable status
//	}
var (
	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates a connection to a downstream system failed.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrMessagingUnavailable indicates the message queue could not accept a publish.
	ErrMessagingUnavailable = errors.New("message queue unavailable")

	// ErrPublisherClosed indicates the publisher was closed while a connection
	// attempt for the call was in flight.
	ErrPublisherClosed = errors.New("publisher closed")

	// ErrRepository indicates the relational store engine could not be created.
	ErrRepository = errors.New("repository unavailable")

	// ErrDoesNotExist indicates the requested entity does not exist.
	ErrDoesNotExist = errors.New("entity does not exist")

	// ErrAlreadyExists indicates the entity being created already exists.
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidUpdate indicates an update would violate an entity invariant.
	ErrInvalidUpdate = errors.New("invalid update")
)

// MessagingUnavailableError is returned by publishers when a message or batch
// could not be handed to the broker. It matches ErrMessagingUnavailable and
// unwraps to the raw broker failure.
type MessagingUnavailableError struct {
	Topic string
	Cause error
}

func (e *MessagingUnavailableError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s (topic %q)", ErrMessagingUnavailable, e.Topic)
	}
	return fmt.Sprintf("%s (topic %q): %v", ErrMessagingUnavailable, e.Topic, e.Cause)
}

// Is reports whether target is ErrMessagingUnavailable.
func (e *MessagingUnavailableError) Is(target error) bool {
	return target == ErrMessagingUnavailable
}

// Unwrap returns the raw broker failure.
func (e *MessagingUnavailableError) Unwrap() error {
	return e.Cause
}

// RepositoryError is returned when the store engine cannot be constructed.
// It matches ErrRepository and unwraps to the underlying cause.
type RepositoryError struct {
	Cause error
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %v", ErrRepository, e.Cause)
}

// Is reports whether target is ErrRepository.
func (e *RepositoryError) Is(target error) bool {
	return target == ErrRepository
}

// Unwrap returns the underlying cause.
func (e *RepositoryError) Unwrap() error {
	return e.Cause
}

// IsDomainError reports whether err is an expected business outcome
// (does-not-exist, already-exists, invalid-update).
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDoesNotExist) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidUpdate)
}

// usageErrorPatterns are cobra/pflag messages for command line misuse.
var usageErrorPatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"requires at least",
	"required flag",
	"invalid argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrRepository), errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrMessagingUnavailable):
		return ExitMessagingUnavailable
	}

	errStr := err.Error()
	for _, pattern := range usageErrorPatterns {
		if strings.Contains(errStr, pattern) {
			return ExitUsageError
		}
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
