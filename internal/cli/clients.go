package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/vvka-141/ingestgate/internal/broker"
	"github.com/vvka-141/ingestgate/internal/config"
	"github.com/vvka-141/ingestgate/internal/metrics"
	"github.com/vvka-141/ingestgate/internal/retry"
	"github.com/vvka-141/ingestgate/internal/store"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// clients holds the process-wide collaborators shared by every client a
// command builds.
type clients struct {
	cfg      *config.Config
	logger   ingestgate.Logger
	sink     ingestgate.MetricsSink
	registry *prometheus.Registry
	shutdown func(context.Context) error
}

func newClients(cfg *config.Config, logger ingestgate.Logger) (*clients, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sink, shutdown, err := metrics.NewSink(cfg.Metrics.Backend, registry, nil, metrics.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &clients{cfg: cfg, logger: logger, sink: sink, registry: registry, shutdown: shutdown}, nil
}

func (r *clients) close(ctx context.Context) {
	if err := r.shutdown(ctx); err != nil {
		r.logger.Error("flush metrics: %v", err)
	}
}

// publisher builds a publisher for topic, falling back to kafka.topic.
func (r *clients) publisher(topic string) (*broker.Publisher, error) {
	if topic == "" {
		topic = r.cfg.Kafka.Topic
	}
	brokerCfg := r.cfg.Broker()
	if err := brokerCfg.Validate(); err != nil {
		return nil, err
	}
	dialer, err := broker.NewDialer(brokerCfg)
	if err != nil {
		return nil, err
	}
	return broker.NewPublisher(brokerCfg, topic, dialer, broker.Deps{
		Logger:     r.logger,
		Sink:       r.sink,
		Classifier: retry.NewBrokerErrorClassifier(),
	})
}

func (r *clients) gateway(ctx context.Context) (*store.Gateway, error) {
	storeCfg, err := r.cfg.Store()
	if err != nil {
		return nil, err
	}
	return store.NewGateway(ctx, storeCfg, nil, store.Deps{
		Logger:     r.logger,
		Sink:       r.sink,
		Classifier: retry.NewStoreErrorClassifier(storeCfg.DefectSignatures...),
	})
}

// storeConfigured reports whether the database section names an endpoint.
func (r *clients) storeConfigured() bool {
	d := r.cfg.Database
	return d.URL != "" || d.DatabaseName != "" || d.GoogleInstance != ""
}

func describeBroker(cfg ingestgate.BrokerConfig) string {
	return fmt.Sprintf("%s at %s", cfg.Driver, cfg.URI)
}
