package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"

	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

// EntraPostgreSQLScope is the OAuth scope for Azure Database for PostgreSQL.
const EntraPostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"

// rdsTokenLifetime is how long an RDS IAM token is accepted by the server.
const rdsTokenLifetime = 15 * time.Minute

// DefaultTokenRefreshMargin is how long before expiry a cached token is
// replaced.
const DefaultTokenRefreshMargin = 2 * time.Minute

// Token is a short-lived database password issued by a cloud identity service.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenSource issues database tokens. String must not include secrets.
type TokenSource interface {
	Token(ctx context.Context) (Token, error)
	String() string
}

// CachedTokenSource hands out the same token until it is within the refresh
// margin of its expiry. Safe for concurrent use.
type CachedTokenSource struct {
	source TokenSource
	margin time.Duration
	now    func() time.Time

	mu      sync.Mutex
	current Token
}

// NewCachedTokenSource wraps source. A non-positive margin uses
// DefaultTokenRefreshMargin.
func NewCachedTokenSource(source TokenSource, margin time.Duration) *CachedTokenSource {
	if margin <= 0 {
		margin = DefaultTokenRefreshMargin
	}
	return &CachedTokenSource{source: source, margin: margin, now: time.Now}
}

// Token returns the cached token or fetches a new one.
func (c *CachedTokenSource) Token(ctx context.Context) (Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Value != "" && c.now().Add(c.margin).Before(c.current.ExpiresAt) {
		return c.current, nil
	}
	tok, err := c.source.Token(ctx)
	if err != nil {
		return Token{}, err
	}
	c.current = tok
	return tok, nil
}

func (c *CachedTokenSource) String() string {
	return c.source.String()
}

// rdsTokenSource signs RDS IAM authentication tokens with the default AWS
// credential chain.
type rdsTokenSource struct {
	endpoint string
	region   string
	username string
}

// NewRDSTokenSource creates a token source for RDS IAM authentication.
// endpoint is host:port of the instance.
func NewRDSTokenSource(endpoint, region, username string) (TokenSource, error) {
	switch {
	case endpoint == "":
		return nil, fmt.Errorf("%w: AWS IAM auth requires endpoint (host:port)", ingestgate.ErrInvalidConfig)
	case region == "":
		return nil, fmt.Errorf("%w: AWS IAM auth requires region (set database.aws_region or $AWS_REGION)", ingestgate.ErrInvalidConfig)
	case username == "":
		return nil, fmt.Errorf("%w: AWS IAM auth requires database username", ingestgate.ErrInvalidConfig)
	}
	return &rdsTokenSource{endpoint: endpoint, region: region, username: username}, nil
}

func (s *rdsTokenSource) Token(ctx context.Context) (Token, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(s.region))
	if err != nil {
		return Token{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	issued := time.Now()
	value, err := auth.BuildAuthToken(ctx, s.endpoint, s.region, s.username, cfg.Credentials)
	if err != nil {
		return Token{}, fmt.Errorf("failed to build RDS auth token: %w", err)
	}
	return Token{Value: value, ExpiresAt: issued.Add(rdsTokenLifetime)}, nil
}

func (s *rdsTokenSource) String() string {
	return fmt.Sprintf("rds-iam(endpoint=%s, region=%s, user=%s)", s.endpoint, s.region, s.username)
}

// entraTokenSource requests Entra ID access tokens for PostgreSQL.
type entraTokenSource struct {
	credential azcore.TokenCredential
	desc       string
}

// NewEntraTokenSource uses the service principal from cfg when any of its
// fields is set (all three are then required) and the default Azure
// credential chain otherwise.
func NewEntraTokenSource(cfg ingestgate.StoreConfig) (TokenSource, error) {
	tenant, client, secret := cfg.AzureTenantID, cfg.AzureClientID, cfg.AzureClientSecret
	if tenant == "" && client == "" && secret == "" {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure default credential: %w", err)
		}
		return &entraTokenSource{credential: cred, desc: "entra(default-chain)"}, nil
	}

	if tenant == "" || client == "" || secret == "" {
		return nil, fmt.Errorf("%w: azure service principal requires azure_tenant_id, azure_client_id and azure_client_secret", ingestgate.ErrInvalidConfig)
	}
	cred, err := azidentity.NewClientSecretCredential(tenant, client, secret, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return &entraTokenSource{
		credential: cred,
		desc:       fmt.Sprintf("entra(tenant=%s, client=%s)", tenant, client),
	}, nil
}

func (s *entraTokenSource) Token(ctx context.Context) (Token, error) {
	tok, err := s.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{EntraPostgreSQLScope}})
	if err != nil {
		return Token{}, fmt.Errorf("azure token acquisition failed: %w", err)
	}
	return Token{Value: tok.Token, ExpiresAt: tok.ExpiresOn}, nil
}

func (s *entraTokenSource) String() string {
	return s.desc
}
