package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// RedisStreamField is the stream entry field holding the message body.
const RedisStreamField = "data"

// RedisStreamDialer publishes to Redis Streams, one stream per topic.
type RedisStreamDialer struct {
	connectTimeout time.Duration
	ackTimeout     time.Duration
}

// NewRedisStreamDialer builds a dialer from the broker configuration.
func NewRedisStreamDialer(cfg ingestgate.BrokerConfig) *RedisStreamDialer {
	cfg = cfg.Normalize()
	return &RedisStreamDialer{
		connectTimeout: cfg.ConnectTimeout,
		ackTimeout:     cfg.AckTime,
	}
}

// Dial connects and verifies the server with PING.
func (d *RedisStreamDialer) Dial(ctx context.Context, endpoint string) (Session, error) {
	opts, err := redisOptions(endpoint)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = d.connectTimeout
	opts.ReadTimeout = d.ackTimeout
	opts.WriteTimeout = d.connectTimeout
	opts.MaxRetries = -1

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, d.connectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &redisSession{client: client}, nil
}

func redisOptions(endpoint string) (*redis.Options, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: redis endpoint is empty", ingestgate.ErrInvalidConfig)
	}
	if !strings.Contains(endpoint, "://") {
		return &redis.Options{Addr: endpoint}, nil
	}
	opts, err := redis.ParseURL(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ingestgate.ErrInvalidConfig, err)
	}
	return opts, nil
}

type redisSession struct {
	client *redis.Client
}

// NewProducer returns a producer that waits for every XADD reply.
// BrokerConfig.Validate rejects async mode for this driver.
func (s *redisSession) NewProducer(opts ProducerOptions) (Producer, error) {
	if opts.Async {
		return nil, fmt.Errorf("%w: async publishing is not supported by the redis driver", ingestgate.ErrInvalidConfig)
	}
	return &redisProducer{client: s.client}, nil
}

func (s *redisSession) Close() error {
	if err := s.client.Close(); err != nil && err != redis.ErrClosed {
		return err
	}
	return nil
}

type redisProducer struct {
	client *redis.Client
}

// Send appends every message to the stream in one pipeline round trip.
func (p *redisProducer) Send(ctx context.Context, topic string, messages ...[]byte) error {
	if len(messages) == 1 {
		return p.client.XAdd(ctx, xaddArgs(topic, messages[0])).Err()
	}

	pipe := p.client.Pipeline()
	for _, m := range messages {
		pipe.XAdd(ctx, xaddArgs(topic, m))
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (p *redisProducer) Close() error {
	return nil
}

func xaddArgs(stream string, message []byte) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{RedisStreamField: message},
	}
}
