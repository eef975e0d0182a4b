package ingestgate

import (
	"fmt"
	"time"
)

// BrokerDriver selects the broker client implementation.
type BrokerDriver string

const (
	BrokerDriverKafka BrokerDriver = "kafka"
	BrokerDriverRedis BrokerDriver = "redis"
)

// BackoffKind selects the wait policy between broker connection attempts.
type BackoffKind string

const (
	BackoffFixed       BackoffKind = "fixed"
	BackoffExponential BackoffKind = "exponential"
)

// BrokerConfig is the immutable configuration of a broker publisher.
type BrokerConfig struct {
	Driver BrokerDriver

	// URI is a comma-separated list of broker addresses (Kafka) or a
	// redis:// URL (Redis Streams).
	URI string

	// Group is the consumer group label carried for collaborators.
	Group string

	// InitialWait precedes the first connection attempt; WaitTime precedes each retry.
	InitialWait time.Duration
	WaitTime    time.Duration

	// Backoff picks fixed waits or exponential growth from WaitTime up to MaxWait.
	Backoff BackoffKind
	MaxWait time.Duration

	// Async selects fire-and-forget publishing instead of waiting for acks.
	Async bool

	// AckTime bounds the wait for broker acknowledgement.
	AckTime time.Duration

	// ConnectTimeout bounds a single dial attempt.
	ConnectTimeout time.Duration

	// MaxRetry is the number of connection attempts per initialization.
	MaxRetry int

	AutoCommit bool
	Compact    bool
	Partitions int

	// DropData allows a failed batch to be dropped after it was counted.
	DropData bool
}

// Normalize fills zero values with defaults.
func (c BrokerConfig) Normalize() BrokerConfig {
	if c.Driver == "" {
		c.Driver = BrokerDriverKafka
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = DefaultMaxRetry
	}
	if c.WaitTime < 0 {
		c.WaitTime = DefaultWaitTime
	}
	if c.InitialWait < 0 {
		c.InitialWait = DefaultInitialWait
	}
	if c.Backoff == "" {
		c.Backoff = BackoffFixed
	}
	if c.MaxWait <= 0 {
		c.MaxWait = DefaultMaxWait
	}
	if c.AckTime <= 0 {
		c.AckTime = DefaultAckTime
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Partitions <= 0 {
		c.Partitions = DefaultPartitions
	}
	return c
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
func (c BrokerConfig) Validate() error {
	if c.URI == "" {
		return fmt.Errorf("%w: broker uri is required, for example uri=192.168.1.191:9092", ErrInvalidConfig)
	}
	return c.ValidateOptions()
}

// ValidateOptions checks everything but the endpoint, so a configuration
// without a broker can still be validated.
func (c BrokerConfig) ValidateOptions() error {
	switch c.Driver {
	case "", BrokerDriverKafka, BrokerDriverRedis:
	default:
		return fmt.Errorf("%w: unknown broker driver %q", ErrInvalidConfig, c.Driver)
	}
	if c.MaxRetry < 0 {
		return fmt.Errorf("%w: max_retry must not be negative", ErrInvalidConfig)
	}
	switch c.Backoff {
	case "", BackoffFixed, BackoffExponential:
	default:
		return fmt.Errorf("%w: unknown backoff %q, use fixed or exponential", ErrInvalidConfig, c.Backoff)
	}
	if c.Async && c.Driver == BrokerDriverRedis {
		return fmt.Errorf("%w: async publishing is not supported by the redis driver", ErrInvalidConfig)
	}
	return nil
}

// StoreDriver selects the relational client.
type StoreDriver string

const (
	StoreDriverMySQL    StoreDriver = "mysql"
	StoreDriverPostgres StoreDriver = "postgres"
)

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// ParseAuthMethod maps a configuration value to an AuthMethod.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch s {
	case "", "standard":
		return AuthMethodStandard, nil
	case "aws-iam", "aws":
		return AuthMethodAWSIAM, nil
	case "google-iam", "google":
		return AuthMethodGoogleIAM, nil
	case "azure-entra", "azure":
		return AuthMethodAzureEntraID, nil
	default:
		return AuthMethodStandard, fmt.Errorf("%w: %q", ErrUnsupportedAuthMethod, s)
	}
}

// StoreConfig describes how to reach the relational configuration store.
// Either the discrete fields or URL may be set, never both.
type StoreConfig struct {
	Driver StoreDriver

	Username     string
	Password     string
	Hostname     string
	Port         int
	DatabaseName string

	// URL is a full connection URL (mysql://, postgres://, postgresql://).
	URL string

	AuthMethod AuthMethod

	// Cloud authentication parameters (PostgreSQL only).
	AWSRegion         string
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
	GoogleInstance    string

	SSLMode        string
	ConnectTimeout time.Duration
	MaxOpenConns   int
	MaxIdleConns   int

	// DefectSignatures are message substrings identifying the known driver
	// protocol defect. Empty means the built-in signatures.
	DefectSignatures []string

	// MaxDefectRetries caps silent re-issues after the driver defect.
	MaxDefectRetries int
}

// HasDiscreteFields reports whether any of the discrete connection fields is set.
func (c StoreConfig) HasDiscreteFields() bool {
	return c.Username != "" || c.Password != "" || c.Hostname != "" || c.DatabaseName != "" || c.Port != 0
}

// Validate reports configuration errors wrapped in ErrInvalidConfig.
func (c StoreConfig) Validate() error {
	if c.URL != "" && c.HasDiscreteFields() {
		return fmt.Errorf("%w: database url and discrete connection fields are mutually exclusive", ErrInvalidConfig)
	}
	if c.URL == "" && c.DatabaseName == "" && c.AuthMethod != AuthMethodGoogleIAM {
		return fmt.Errorf("%w: database url or database_name is required", ErrInvalidConfig)
	}
	switch c.Driver {
	case "", StoreDriverMySQL, StoreDriverPostgres:
	default:
		return fmt.Errorf("%w: unknown database driver %q", ErrInvalidConfig, c.Driver)
	}
	if !c.AuthMethod.IsValid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedAuthMethod, c.AuthMethod)
	}
	if c.AuthMethod != AuthMethodStandard && c.Driver == StoreDriverMySQL {
		return fmt.Errorf("%w: %s authentication requires the postgres driver", ErrUnsupportedAuthMethod, c.AuthMethod)
	}
	if c.MaxDefectRetries < 0 {
		return fmt.Errorf("%w: max_defect_retries must not be negative", ErrInvalidConfig)
	}
	return nil
}
