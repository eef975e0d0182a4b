package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/vvka-141/ingestgate/internal/db"
	"github.com/vvka-141/ingestgate/internal/logging"
	"github.com/vvka-141/ingestgate/internal/metrics"
	"github.com/vvka-141/ingestgate/internal/retry"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// DefectClassifier classifies store errors and recognizes the driver
// protocol defect that is safe to re-issue.
type DefectClassifier interface {
	ingestgate.ErrorClassifier
	IsDriverDefect(err error) bool
}

// Deps are the collaborators of a Gateway. Zero values get defaults.
type Deps struct {
	Logger     ingestgate.Logger
	Sink       ingestgate.MetricsSink
	Classifier DefectClassifier
}

func (d Deps) withDefaults(cfg ingestgate.StoreConfig) Deps {
	if d.Logger == nil {
		d.Logger = logging.NewNullLogger()
	}
	if d.Sink == nil {
		d.Sink = metrics.Nop()
	}
	if d.Classifier == nil {
		d.Classifier = retry.NewStoreErrorClassifier(cfg.DefectSignatures...)
	}
	return d
}

// Operation is one logical store call executed against q.
type Operation[T any] func(ctx context.Context, q sqlx.ExtContext) (T, error)

// Gateway owns the store engine and the metrics every wrapped call reports.
type Gateway struct {
	db         *sqlx.DB
	connector  db.Connector
	logger     ingestgate.Logger
	timer      ingestgate.Timer
	errors     ingestgate.Counter
	classifier DefectClassifier

	maxDefectRetries int

	closeOnce sync.Once
	closeErr  error
}

// NewGateway builds the engine through connector (or one created from cfg
// when connector is nil). Construction failures are logged once and returned
// as *ingestgate.RepositoryError.
func NewGateway(ctx context.Context, cfg ingestgate.StoreConfig, connector db.Connector, deps Deps) (*Gateway, error) {
	deps = deps.withDefaults(cfg)

	if connector == nil {
		c, err := db.NewConnector(cfg, deps.Logger)
		if err != nil {
			deps.Logger.Error("failed to create store connector: %v", err)
			return nil, &ingestgate.RepositoryError{Cause: err}
		}
		connector = c
	}

	engine, err := connector.Connect(ctx)
	if err != nil {
		deps.Logger.Error("failed to connect to store: %v", err)
		if cerr := connector.Close(); cerr != nil {
			deps.Logger.Verbose("closing connector after failed connect: %v", cerr)
		}
		return nil, &ingestgate.RepositoryError{Cause: err}
	}

	g := newGateway(engine, cfg, deps)
	g.connector = connector
	return g, nil
}

// NewGatewayFromDB wraps an engine owned by the caller.
func NewGatewayFromDB(engine *sqlx.DB, cfg ingestgate.StoreConfig, deps Deps) *Gateway {
	return newGateway(engine, cfg, deps.withDefaults(cfg))
}

func newGateway(engine *sqlx.DB, cfg ingestgate.StoreConfig, deps Deps) *Gateway {
	maxDefect := cfg.MaxDefectRetries
	if maxDefect <= 0 {
		maxDefect = ingestgate.DefaultMaxDefectRetries
	}
	return &Gateway{
		db:               engine,
		logger:           deps.Logger,
		timer:            deps.Sink.Timer(),
		errors:           deps.Sink.Counter(ingestgate.MetricConfigDBErrors, nil),
		classifier:       deps.Classifier,
		maxDefectRetries: maxDefect,
	}
}

// DB returns the underlying engine.
func (g *Gateway) DB() *sqlx.DB {
	return g.db
}

// Ping checks the engine is reachable. It goes through the same error
// accounting as any other store call.
func (g *Gateway) Ping(ctx context.Context) error {
	_, err := Do(ctx, g, "ping", func(ctx context.Context, _ sqlx.ExtContext) (struct{}, error) {
		return struct{}{}, g.db.PingContext(ctx)
	})
	return err
}

// Close releases the engine and any connector resources. Safe to call more
// than once.
func (g *Gateway) Close() error {
	g.closeOnce.Do(func() {
		var errs []error
		if g.db != nil {
			if err := g.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close store engine: %w", err))
			}
		}
		if g.connector != nil {
			if err := g.connector.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close store connector: %w", err))
			}
		}
		g.closeErr = errors.Join(errs...)
	})
	return g.closeErr
}

// Wrap returns op decorated with timing, error accounting and driver defect
// re-issue. Errors are always returned unchanged.
func Wrap[T any](g *Gateway, name string, op Operation[T]) Operation[T] {
	return func(ctx context.Context, q sqlx.ExtContext) (T, error) {
		stop := g.timer.Time(ingestgate.MetricConfigDBTime, ingestgate.SampleRateAlways)
		defer stop()

		for reissues := 0; ; reissues++ {
			result, err := op(ctx, q)
			if err == nil {
				g.errors.Increment(0, ingestgate.SampleRateAlways)
				return result, nil
			}

			if ingestgate.IsDomainError(err) {
				return result, err
			}

			if g.classifier.IsDriverDefect(err) {
				g.errors.Increment(1, ingestgate.SampleRateAlways)
				if reissues >= g.maxDefectRetries || ctx.Err() != nil {
					g.logger.Error("%s: driver defect persisted after %d re-issues: %v", name, reissues, err)
					return result, err
				}
				g.logger.Verbose("%s: driver defect, re-issuing: %v", name, err)
				continue
			}

			class := g.classifier.Classify(err)
			g.logger.Error("%s failed (%s): %v", name, class, err)
			g.errors.Increment(1, ingestgate.SampleRateAlways)
			return result, err
		}
	}
}

// Do runs op once through Wrap against the gateway's engine.
func Do[T any](ctx context.Context, g *Gateway, name string, op Operation[T]) (T, error) {
	return Wrap(g, name, op)(ctx, g.db)
}
