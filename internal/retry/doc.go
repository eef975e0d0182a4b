// Package retry provides bounded retry with backoff for transient failures
// of external dependencies.
//
// The package supports pluggable error classification and backoff strategies.
//
// # Example Usage
//
//	classifier := retry.NewBrokerErrorClassifier()
//	strategy := retry.NewFixedBackoff(3, 0, time.Second)
//	executor := retry.NewExecutor(classifier, strategy)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return connectToBroker(ctx)
//	})
//
// # Error Classification
//
// An ErrorClassifier maps an error to an ErrorClass. Only
// ClassTransientInfrastructure is retried. BrokerErrorClassifier recognizes
// an unreachable cluster and a missing partition leader. StoreErrorClassifier
// recognizes domain errors, the known driver defect, connection failures and
// configuration mistakes.
//
// # Backoff Strategies
//
// MaxAttempts is the total number of attempts, not the number of retries.
// FixedBackoff waits an initial delay before the first attempt and a fixed
// delay before each later one. ExponentialBackoff grows the delay between
// attempts up to a cap. NewBrokerBackoff picks one from a BrokerConfig.
//
// # Thread Safety
//
// Executor instances are safe for concurrent use. Use WithOnFailure() to create
// independent configurations per caller.
package retry
