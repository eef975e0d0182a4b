package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

const kafkaClientID = "ingestgate"

// KafkaDialer opens sarama clients. Every network timeout is bounded by the
// configured connect timeout and sarama's own retries are disabled.
type KafkaDialer struct {
	config *sarama.Config
}

// NewKafkaDialer builds a dialer from the broker configuration.
func NewKafkaDialer(cfg ingestgate.BrokerConfig) *KafkaDialer {
	cfg = cfg.Normalize()

	sc := sarama.NewConfig()
	sc.ClientID = kafkaClientID
	sc.Version = sarama.V2_8_0_0

	sc.Net.DialTimeout = cfg.ConnectTimeout
	sc.Net.ReadTimeout = cfg.ConnectTimeout + cfg.AckTime
	sc.Net.WriteTimeout = cfg.ConnectTimeout

	sc.Metadata.Retry.Max = 0
	sc.Metadata.Full = false

	sc.Producer.RequiredAcks = sarama.WaitForLocal
	sc.Producer.Timeout = cfg.AckTime
	sc.Producer.Retry.Max = 0
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true

	return &KafkaDialer{config: sc}
}

// Config exposes the sarama configuration for adjustments before the first dial.
func (d *KafkaDialer) Config() *sarama.Config {
	return d.config
}

// Dial connects to the brokers listed in endpoint and returns once the
// cluster has answered a metadata request.
func (d *KafkaDialer) Dial(ctx context.Context, endpoint string) (Session, error) {
	brokers := ParseBrokerList(endpoint)
	if len(brokers) == 0 {
		return nil, fmt.Errorf("%w: no kafka brokers in %q", ingestgate.ErrInvalidConfig, endpoint)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		client sarama.Client
		err    error
	}
	done := make(chan result, 1)
	go func() {
		client, err := connectKafka(brokers, d.config)
		done <- result{client: client, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return &kafkaSession{client: r.client}, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.client != nil {
				_ = r.client.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// connectKafka opens a client and resolves the cluster controller. With
// Metadata.Full off sarama.NewClient does no I/O, so the controller lookup is
// what reaches the brokers; an unreachable cluster fails here with
// ErrOutOfBrokers.
func connectKafka(brokers []string, config *sarama.Config) (sarama.Client, error) {
	client, err := sarama.NewClient(brokers, config)
	if err != nil {
		return nil, err
	}
	if _, err := client.Controller(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// ParseBrokerList splits a comma-separated broker list, dropping an optional
// kafka:// scheme and empty entries.
func ParseBrokerList(endpoint string) []string {
	var brokers []string
	for _, part := range strings.Split(endpoint, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "kafka://")
		if part != "" {
			brokers = append(brokers, part)
		}
	}
	return brokers
}

type kafkaSession struct {
	client sarama.Client
}

func (s *kafkaSession) NewProducer(opts ProducerOptions) (Producer, error) {
	if opts.Async {
		ap, err := sarama.NewAsyncProducerFromClient(s.client)
		if err != nil {
			return nil, fmt.Errorf("failed to create async producer: %w", err)
		}
		return newKafkaAsyncProducer(ap, opts.OnAsyncError), nil
	}

	sp, err := sarama.NewSyncProducerFromClient(s.client)
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}
	return &kafkaSyncProducer{producer: sp}, nil
}

// EnsureTopic creates topic if it does not exist yet.
func (s *kafkaSession) EnsureTopic(ctx context.Context, topic string, partitions int, compact bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// Closing the admin would close the shared client, so it is left open.
	admin, err := sarama.NewClusterAdminFromClient(s.client)
	if err != nil {
		return fmt.Errorf("failed to create cluster admin: %w", err)
	}

	detail := &sarama.TopicDetail{
		NumPartitions:     int32(partitions),
		ReplicationFactor: -1,
	}
	if compact {
		policy := "compact"
		detail.ConfigEntries = map[string]*string{"cleanup.policy": &policy}
	}

	err = admin.CreateTopic(topic, detail, false)
	if err == nil || errors.Is(err, sarama.ErrTopicAlreadyExists) {
		return nil
	}
	var topicErr *sarama.TopicError
	if errors.As(err, &topicErr) && topicErr.Err == sarama.ErrTopicAlreadyExists {
		return nil
	}
	return err
}

func (s *kafkaSession) Close() error {
	if err := s.client.Close(); err != nil && !errors.Is(err, sarama.ErrClosedClient) {
		return err
	}
	return nil
}

type kafkaSyncProducer struct {
	producer sarama.SyncProducer
}

func (p *kafkaSyncProducer) Send(ctx context.Context, topic string, messages ...[]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(messages) == 1 {
		_, _, err := p.producer.SendMessage(newMessage(topic, messages[0]))
		return err
	}

	batch := make([]*sarama.ProducerMessage, len(messages))
	for i, m := range messages {
		batch[i] = newMessage(topic, m)
	}
	return p.producer.SendMessages(batch)
}

func (p *kafkaSyncProducer) Close() error {
	return p.producer.Close()
}

type kafkaAsyncProducer struct {
	producer sarama.AsyncProducer
	wg       sync.WaitGroup
}

func newKafkaAsyncProducer(ap sarama.AsyncProducer, onError func(string, error)) *kafkaAsyncProducer {
	p := &kafkaAsyncProducer{producer: ap}
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		for range ap.Successes() {
		}
	}()
	go func() {
		defer p.wg.Done()
		for pe := range ap.Errors() {
			if onError != nil {
				topic := ""
				if pe.Msg != nil {
					topic = pe.Msg.Topic
				}
				onError(topic, pe.Err)
			}
		}
	}()
	return p
}

func (p *kafkaAsyncProducer) Send(ctx context.Context, topic string, messages ...[]byte) error {
	for _, m := range messages {
		select {
		case p.producer.Input() <- newMessage(topic, m):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (p *kafkaAsyncProducer) Close() error {
	p.producer.AsyncClose()
	p.wg.Wait()
	return nil
}

func newMessage(topic string, value []byte) *sarama.ProducerMessage {
	return &sarama.ProducerMessage{
		Topic:     topic,
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	}
}
