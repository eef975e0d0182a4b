// Package testinfra starts throwaway backing services for integration tests.
package testinfra

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/vvka-141/ingestgate/pkg/ingestgate"
)

const (
	PostgresImage    = "postgres:17-alpine"
	PostgresUser     = "ingestgate"
	PostgresPassword = "ingestgate"
	PostgresDB       = "config"

	RedisImage = "redis:7-alpine"
)

type PostgresContainer struct {
	*postgres.PostgresContainer
	Host string
	Port int
}

// StoreConfig returns discrete connection settings for the container.
func (c *PostgresContainer) StoreConfig() ingestgate.StoreConfig {
	return ingestgate.StoreConfig{
		Driver:       ingestgate.StoreDriverPostgres,
		Username:     PostgresUser,
		Password:     PostgresPassword,
		Hostname:     c.Host,
		Port:         c.Port,
		DatabaseName: PostgresDB,
		SSLMode:      "disable",
		AuthMethod:   ingestgate.AuthMethodStandard,
	}
}

func StartPostgres(ctx context.Context) (*PostgresContainer, error) {
	ctr, err := postgres.Run(ctx,
		PostgresImage,
		postgres.WithUsername(PostgresUser),
		postgres.WithPassword(PostgresPassword),
		postgres.WithDatabase(PostgresDB),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres: %w", err)
	}

	host, port, err := endpoint(ctx, ctr)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, err
	}
	return &PostgresContainer{PostgresContainer: ctr, Host: host, Port: port}, nil
}

type RedisContainer struct {
	testcontainers.Container
	Addr string
}

func StartRedis(ctx context.Context) (*RedisContainer, error) {
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        RedisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		return nil, fmt.Errorf("start redis: %w", err)
	}

	host, port, err := endpoint(ctx, ctr)
	if err != nil {
		ctr.Terminate(ctx) //nolint:errcheck
		return nil, err
	}
	return &RedisContainer{Container: ctr, Addr: fmt.Sprintf("%s:%d", host, port)}, nil
}

// endpoint returns the host and mapped port of the container's single
// exposed port.
func endpoint(ctx context.Context, ctr testcontainers.Container) (string, int, error) {
	hostPort, err := ctr.Endpoint(ctx, "")
	if err != nil {
		return "", 0, fmt.Errorf("get container endpoint: %w", err)
	}
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return "", 0, fmt.Errorf("parse container endpoint %q: %w", hostPort, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("parse container port %q: %w", portStr, err)
	}
	return host, port, nil
}
