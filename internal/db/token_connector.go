package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/vvka-141/ingestgate/internal/logging"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// TokenConnector connects to PostgreSQL with short-lived cloud tokens as the
// password (AWS IAM, Azure Entra ID). Every new pooled connection takes the
// current token from the cache, so a long-lived engine keeps reconnecting
// after the first token expired.
type TokenConnector struct {
	endpoint Endpoint
	config   ingestgate.StoreConfig
	source   *CachedTokenSource
	logger   ingestgate.Logger
	pool     *pgxpool.Pool
}

// NewTokenConnector creates a connector that authenticates with source.
func NewTokenConnector(ep Endpoint, cfg ingestgate.StoreConfig, source TokenSource, logger ingestgate.Logger) *TokenConnector {
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &TokenConnector{
		endpoint: ep,
		config:   cfg,
		source:   NewCachedTokenSource(source, DefaultTokenRefreshMargin),
		logger:   logger,
	}
}

// Connect acquires a token and opens a pgx pool whose BeforeConnect hook sets
// the password from the cached token before every new physical connection.
func (c *TokenConnector) Connect(ctx context.Context) (*sqlx.DB, error) {
	tok, err := c.source.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire token from %s: %w", c.source, err)
	}
	c.logger.Verbose("token from %s valid until %s", c.source, tok.ExpiresAt.Format("15:04:05"))

	ep := c.endpoint
	ep.Password = tok.Value

	poolConfig, err := pgxpool.ParseConfig(BuildPostgresURL(ep, c.config.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	configurePool(poolConfig, c.config)
	poolConfig.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
		tok, err := c.source.Token(ctx)
		if err != nil {
			c.logger.Error("refresh token from %s: %v", c.source, err)
			return err
		}
		cc.Password = tok.Value
		return nil
	}

	db, pool, err := openPostgres(ctx, poolConfig, c.config.ConnectTimeout)
	if err != nil {
		return nil, wrapConnectionError(err, c.endpoint)
	}
	c.pool = pool
	return db, nil
}

// Close releases the pgx pool.
func (c *TokenConnector) Close() error {
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	return nil
}

func newAWSConnector(ep Endpoint, cfg ingestgate.StoreConfig, logger ingestgate.Logger) (Connector, error) {
	source, err := NewRDSTokenSource(ep.Addr(), cfg.AWSRegion, ep.Username)
	if err != nil {
		return nil, err
	}
	return NewTokenConnector(ep, cfg, source, logger), nil
}

func newAzureConnector(ep Endpoint, cfg ingestgate.StoreConfig, logger ingestgate.Logger) (Connector, error) {
	source, err := NewEntraTokenSource(cfg)
	if err != nil {
		return nil, err
	}
	return NewTokenConnector(ep, cfg, source, logger), nil
}
