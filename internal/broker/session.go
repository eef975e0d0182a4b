package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// Dialer opens broker sessions. Implementations must honor ctx and their
// own connect timeout; they must not retry.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Session, error)
}

// Session is a live connection to the broker cluster.
type Session interface {
	NewProducer(opts ProducerOptions) (Producer, error)
	Close() error
}

// Producer sends messages on a Session.
type Producer interface {
	// Send delivers messages to topic as one unit. With more than one
	// message the call fails if any message fails.
	Send(ctx context.Context, topic string, messages ...[]byte) error
	Close() error
}

// TopicAdmin is implemented by sessions that can create topics.
type TopicAdmin interface {
	EnsureTopic(ctx context.Context, topic string, partitions int, compact bool) error
}

// ProducerOptions configures a Producer.
type ProducerOptions struct {
	// Async hands messages to the client without waiting for acks.
	Async bool

	// AckTimeout bounds the wait for broker acknowledgement.
	AckTimeout time.Duration

	// OnAsyncError receives delivery failures of async producers.
	OnAsyncError func(topic string, err error)
}

// NewDialer returns the dialer for the configured driver.
func NewDialer(cfg ingestgate.BrokerConfig) (Dialer, error) {
	switch cfg.Normalize().Driver {
	case ingestgate.BrokerDriverKafka:
		return NewKafkaDialer(cfg), nil
	case ingestgate.BrokerDriverRedis:
		return NewRedisStreamDialer(cfg), nil
	default:
		return nil, fmt.Errorf("%w: unknown broker driver %q", ingestgate.ErrInvalidConfig, cfg.Driver)
	}
}
