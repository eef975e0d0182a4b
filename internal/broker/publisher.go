package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/vvka-141/ingestgate/internal/logging"
	"github.com/vvka-141/ingestgate/internal/metrics"
	"github.com/vvka-141/ingestgate/internal/retry"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// State is the connection state of a Publisher.
type State int

const (
	StateAbsent State = iota
	StateConnecting
	StateLive
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Deps are the collaborators of a Publisher. Nil fields get no-op or
// default implementations.
type Deps struct {
	Logger     ingestgate.Logger
	Sink       ingestgate.MetricsSink
	Classifier ingestgate.ErrorClassifier
}

// Publisher publishes to a single topic. Safe for concurrent use.
type Publisher struct {
	cfg        ingestgate.BrokerConfig
	topic      string
	dialer     Dialer
	logger     ingestgate.Logger
	classifier ingestgate.ErrorClassifier
	executor   *retry.Executor

	sendErrors ingestgate.Counter
	initErrors ingestgate.Counter
	dropped    ingestgate.Counter
	timer      ingestgate.Timer

	// lifecycle admits one connecting caller at a time; others wait on ctx.
	lifecycle *semaphore.Weighted

	mu           sync.Mutex
	state        State
	session      Session
	producer     Producer
	generation   uint64
	topicEnsured bool
}

var _ ingestgate.Publisher = (*Publisher)(nil)

// NewPublisher creates a publisher for topic. No connection is made until
// the first publish.
func NewPublisher(cfg ingestgate.BrokerConfig, topic string, dialer Dialer, deps Deps) (*Publisher, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ingestgate.ErrInvalidConfig)
	}
	if dialer == nil {
		return nil, fmt.Errorf("%w: broker dialer is required", ingestgate.ErrInvalidConfig)
	}

	if deps.Logger == nil {
		deps.Logger = logging.NewNullLogger()
	}
	if deps.Sink == nil {
		deps.Sink = metrics.Nop()
	}
	if deps.Classifier == nil {
		deps.Classifier = retry.NewBrokerErrorClassifier()
	}

	dims := map[string]string{ingestgate.DimensionTopic: topic}
	p := &Publisher{
		cfg:        cfg,
		topic:      topic,
		dialer:     dialer,
		logger:     deps.Logger,
		classifier: deps.Classifier,
		executor:   retry.NewExecutor(deps.Classifier, retry.NewBrokerBackoff(cfg)),
		sendErrors: deps.Sink.Counter(ingestgate.MetricKafkaProducerErrors, dims),
		initErrors: deps.Sink.Counter(ingestgate.MetricKafkaProducerInitErrors, dims),
		dropped:    deps.Sink.Counter(ingestgate.MetricKafkaProducerDropped, dims),
		timer:      deps.Sink.Timer(),
		lifecycle:  semaphore.NewWeighted(1),
	}

	p.logger.Verbose("publisher for topic %s: driver=%s group=%q auto_commit=%t async=%t max_retry=%d backoff=%s",
		topic, cfg.Driver, cfg.Group, cfg.AutoCommit, cfg.Async, cfg.MaxRetry, cfg.Backoff)
	return p, nil
}

// Topic returns the topic this publisher writes to.
func (p *Publisher) Topic() string {
	return p.topic
}

// State reports the current connection state.
func (p *Publisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PublishOne publishes a single message.
func (p *Publisher) PublishOne(ctx context.Context, message []byte) error {
	return p.publish(ctx, [][]byte{message}, ingestgate.SampleRateSingleSuccess)
}

// PublishBatch publishes messages as one unit. An empty batch is a no-op.
// With drop_data enabled a failed batch is counted as dropped and nil is
// returned.
func (p *Publisher) PublishBatch(ctx context.Context, messages [][]byte) error {
	if len(messages) == 0 {
		return nil
	}

	stop := p.timer.Time(ingestgate.MetricPublishTime, ingestgate.SampleRateAlways)
	defer stop()

	err := p.publish(ctx, messages, ingestgate.SampleRateBatchSuccess)
	if err == nil || !p.cfg.DropData || errors.Is(err, ingestgate.ErrPublisherClosed) {
		return err
	}

	p.logger.Error("dropping batch of %d messages for topic %s: %v", len(messages), p.topic, err)
	p.dropped.Increment(float64(len(messages)), ingestgate.SampleRateAlways)
	return nil
}

// Ping ensures a live connection, connecting if needed.
func (p *Publisher) Ping(ctx context.Context) error {
	_, _, err := p.ensureLive(ctx)
	return err
}

// Close releases the producer and session and leaves the publisher in
// StateAbsent; the next publish connects again. A connection attempt still in
// flight is discarded. Safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	producer, session := p.producer, p.session
	p.producer, p.session = nil, nil
	p.state = StateAbsent
	p.generation++
	p.mu.Unlock()

	return closeAll(producer, session)
}

func (p *Publisher) publish(ctx context.Context, messages [][]byte, successRate float64) error {
	producer, generation, err := p.ensureLive(ctx)
	if err != nil {
		p.sendErrors.Increment(1, ingestgate.SampleRateAlways)
		return err
	}

	if err := producer.Send(ctx, p.topic, messages...); err != nil {
		p.sendErrors.Increment(1, ingestgate.SampleRateAlways)
		class := p.classifier.Classify(err)
		p.logger.Error("failed to publish %d message(s) to topic %s (%s): %v", len(messages), p.topic, class, err)
		if class == ingestgate.ClassTransientInfrastructure {
			p.invalidate(generation)
		}
		return &ingestgate.MessagingUnavailableError{Topic: p.topic, Cause: err}
	}

	p.sendErrors.Increment(0, successRate)
	return nil
}

// ensureLive returns the current producer, connecting first when there is none.
func (p *Publisher) ensureLive(ctx context.Context) (Producer, uint64, error) {
	if producer, generation := p.current(); producer != nil {
		return producer, generation, nil
	}

	if err := p.lifecycle.Acquire(ctx, 1); err != nil {
		return nil, 0, &ingestgate.MessagingUnavailableError{Topic: p.topic, Cause: err}
	}
	defer p.lifecycle.Release(1)

	// Another caller may have connected while we waited.
	if producer, generation := p.current(); producer != nil {
		return producer, generation, nil
	}

	return p.connect(ctx)
}

func (p *Publisher) current() (Producer, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.producer, p.generation
}

// connect runs the initialization loop. Callers hold the lifecycle slot.
func (p *Publisher) connect(ctx context.Context) (Producer, uint64, error) {
	p.mu.Lock()
	p.state = StateConnecting
	epoch := p.generation
	p.mu.Unlock()

	executor := p.executor.WithOnFailure(func(attempt int, err error, class ingestgate.ErrorClass) {
		p.initErrors.Increment(1, ingestgate.SampleRateAlways)
		p.logger.Error("broker connection attempt %d/%d for topic %s failed (%s): %v",
			attempt+1, p.cfg.MaxRetry, p.topic, class, err)
	})

	var session Session
	err := executor.Execute(ctx, func(ctx context.Context) error {
		p.dropSession()
		s, err := p.dialer.Dial(ctx, p.cfg.URI)
		if err != nil {
			return err
		}
		p.mu.Lock()
		p.session = s
		p.mu.Unlock()
		session = s
		return nil
	})
	if err != nil {
		p.dropSession()
		p.setState(StateAbsent)
		return nil, 0, &ingestgate.MessagingUnavailableError{Topic: p.topic, Cause: err}
	}

	p.ensureTopic(ctx, session)

	producer, err := session.NewProducer(ProducerOptions{
		Async:        p.cfg.Async,
		AckTimeout:   p.cfg.AckTime,
		OnAsyncError: p.onAsyncError,
	})
	if err != nil {
		p.initErrors.Increment(1, ingestgate.SampleRateAlways)
		p.logger.Error("failed to create producer for topic %s: %v", p.topic, err)
		p.dropSession()
		p.setState(StateAbsent)
		return nil, 0, &ingestgate.MessagingUnavailableError{Topic: p.topic, Cause: err}
	}

	p.mu.Lock()
	if p.generation != epoch {
		if p.session == session {
			p.session = nil
		}
		p.mu.Unlock()
		_ = closeAll(producer, session)
		p.logger.Verbose("discarded connection for topic %s: publisher closed while connecting", p.topic)
		return nil, 0, &ingestgate.MessagingUnavailableError{Topic: p.topic, Cause: ingestgate.ErrPublisherClosed}
	}
	p.generation++
	p.producer = producer
	p.state = StateLive
	generation := p.generation
	p.mu.Unlock()

	p.logger.Info("connected to broker for topic %s", p.topic)
	return producer, generation, nil
}

// invalidate drops the connection if it is still the one identified by
// generation. A caller holding an older producer cannot tear down a newer one.
func (p *Publisher) invalidate(generation uint64) {
	p.mu.Lock()
	if p.generation != generation || p.producer == nil {
		p.mu.Unlock()
		return
	}
	producer, session := p.producer, p.session
	p.producer, p.session = nil, nil
	p.state = StateAbsent
	p.mu.Unlock()

	p.logger.Info("invalidated broker connection for topic %s", p.topic)
	if err := closeAll(producer, session); err != nil {
		p.logger.Verbose("closing invalidated connection for topic %s: %v", p.topic, err)
	}
}

func (p *Publisher) dropSession() {
	p.mu.Lock()
	session := p.session
	p.session = nil
	p.mu.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			p.logger.Verbose("closing stale broker session for topic %s: %v", p.topic, err)
		}
	}
}

func (p *Publisher) ensureTopic(ctx context.Context, session Session) {
	admin, ok := session.(TopicAdmin)
	if !ok {
		return
	}
	p.mu.Lock()
	done := p.topicEnsured
	p.mu.Unlock()
	if done {
		return
	}

	if err := admin.EnsureTopic(ctx, p.topic, p.cfg.Partitions, p.cfg.Compact); err != nil {
		p.logger.Error("failed to ensure topic %s exists: %v", p.topic, err)
		return
	}
	p.mu.Lock()
	p.topicEnsured = true
	p.mu.Unlock()
}

func (p *Publisher) onAsyncError(topic string, err error) {
	p.logger.Error("async delivery to topic %s failed: %v", topic, err)
	p.dropped.Increment(1, ingestgate.SampleRateAlways)
}

func (p *Publisher) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func closeAll(producer Producer, session Session) error {
	var errs []error
	if producer != nil {
		if err := producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close producer: %w", err))
		}
	}
	if session != nil {
		if err := session.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session: %w", err))
		}
	}
	return errors.Join(errs...)
}
