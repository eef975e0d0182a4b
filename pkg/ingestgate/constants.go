package ingestgate

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess              = 0  // Command completed successfully
	ExitGeneralError         = 1  // Unknown or unclassified error
	ExitUsageError           = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic                = 3  // Internal panic (unexpected crash)
	ExitConfigError          = 10 // Invalid configuration
	ExitConnectionError      = 11 // Store engine or connection failure
	ExitMessagingUnavailable = 15 // Broker could not accept messages
)

const (
	// DefaultMaxRetry is the default number of connection attempts per initialization.
	DefaultMaxRetry = 3

	// DefaultInitialWait is the wait before the first connection attempt.
	DefaultInitialWait = 0 * time.Second

	// DefaultWaitTime is the wait between connection attempts.
	DefaultWaitTime = 1 * time.Second

	// DefaultMaxWait caps the exponential wait between connection attempts.
	DefaultMaxWait = 30 * time.Second

	// DefaultAckTime is the default broker acknowledgement timeout.
	DefaultAckTime = 20 * time.Second

	// DefaultConnectTimeout bounds a single dial to the broker or store.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultMaxDefectRetries caps silent re-issues of a call that hit the
	// known driver protocol defect.
	DefaultMaxDefectRetries = 3

	// DefaultPartitions is used when a topic is created on demand.
	DefaultPartitions = 1

	// DefaultMetricsListen is the default address of the metrics endpoint.
	DefaultMetricsListen = ":9102"
)

// Sample rates for success and failure samples.
// Successful publishes are sampled sparsely to keep the hot path cheap.
const (
	SampleRateSingleSuccess = 0.01
	SampleRateBatchSuccess  = 0.1
	SampleRateAlways        = 1.0
)

// Metric names emitted by this layer.
const (
	// MetricKafkaProducerErrors counts publish outcomes (0 on success, 1 on failure).
	MetricKafkaProducerErrors = "kafka.producer.errors"

	// MetricKafkaProducerInitErrors counts failed connection or producer initializations.
	MetricKafkaProducerInitErrors = "kafka.producer.init_errors"

	// MetricKafkaProducerDropped counts messages dropped after a failed batch.
	MetricKafkaProducerDropped = "kafka.producer.dropped"

	// MetricPublishTime is the time needed to publish a metric batch.
	MetricPublishTime = "api.metrics.publish_time_ms"

	// MetricConfigDBErrors counts store access outcomes (0 on success, 1 on failure).
	MetricConfigDBErrors = "api.configdb.errors"

	// MetricConfigDBTime is the store access time.
	MetricConfigDBTime = "api.configdb.time_ms"
)

// DimensionTopic is the dimension key carrying the broker topic.
const DimensionTopic = "topic"
