package clickhousetesting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
)

type DBConfig struct {
	Database       string
	Username       string
	Password       string
	Port           string
	ContainerImage string
}

func (cfg *DBConfig) Validate() error {
	if cfg.Database == "" {
		cfg.Database = "test"
	}
	if cfg.Username == "" {
		cfg.Username = "default"
	}
	if cfg.Password == "" {
		cfg.Password = "password"
	}
	if cfg.Port == "" {
		cfg.Port = "9000"
	}
	if cfg.ContainerImage == "" {
		cfg.ContainerImage = "clickhouse/clickhouse-server:latest"
	}
	return nil
}

// DB is a ClickHouse container shared by the tests of one package.
type DB struct {
	log       *slog.Logger
	cfg       *DBConfig
	addr      string
	container *tcch.ClickHouseContainer
}

// Addr returns the ClickHouse native protocol address (host:port).
func (db *DB) Addr() string {
	return db.addr
}

// ClientConfig returns connection settings for the given database.
func (db *DB) ClientConfig(database string) clickhouse.ClientConfig {
	return clickhouse.ClientConfig{
		Addr:     db.addr,
		Database: database,
		Username: db.cfg.Username,
		Password: db.cfg.Password,
	}
}

// MigrationConfig returns a MigrationConfig for the given database name.
func (db *DB) MigrationConfig(database string) clickhouse.MigrationConfig {
	return db.ClientConfig(database)
}

func (db *DB) Close() {
	terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.container.Terminate(terminateCtx); err != nil {
		db.log.Error("failed to terminate ClickHouse container", "error", err)
	}
}

// TestClientInfo holds a test client and its database name.
type TestClientInfo struct {
	Client   clickhouse.Client
	Database string
}

// NewTestClientWithInfo creates a client bound to a fresh random database that is
// dropped when the test ends.
func NewTestClientWithInfo(t *testing.T, db *DB) (*TestClientInfo, error) {
	adminClient, err := connectWithRetry(t.Context(), db.log, db.ClientConfig(db.cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to create ClickHouse admin client: %w", err)
	}

	databaseName := "test_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	adminConn, err := adminClient.Conn(t.Context())
	require.NoError(t, err)
	require.NoError(t, adminConn.Exec(t.Context(), fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", databaseName)))

	testClient, err := connectWithRetry(t.Context(), db.log, db.ClientConfig(databaseName))
	if err != nil {
		return nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
	}

	t.Cleanup(func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, adminConn.Exec(dropCtx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", databaseName)))
		testClient.Close()
		adminClient.Close()
	})

	return &TestClientInfo{Client: testClient, Database: databaseName}, nil
}

// connectWithRetry retries the first connection since the server may not accept
// connections right after the container reports ready.
func connectWithRetry(ctx context.Context, log *slog.Logger, cfg clickhouse.ClientConfig) (clickhouse.Client, error) {
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		c, err := clickhouse.NewClient(ctx, log, cfg)
		if err == nil {
			return c, nil
		}
		lastErr = err
		if !isRetryableConnectionErr(err) {
			break
		}
		time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
	}
	return nil, lastErr
}

func NewDB(ctx context.Context, log *slog.Logger, cfg *DBConfig) (*DB, error) {
	if cfg == nil {
		cfg = &DBConfig{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate DB config: %w", err)
	}

	var container *tcch.ClickHouseContainer
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		var err error
		container, err = tcch.Run(ctx,
			cfg.ContainerImage,
			tcch.WithDatabase(cfg.Database),
			tcch.WithUsername(cfg.Username),
			tcch.WithPassword(cfg.Password),
		)
		if err == nil {
			break
		}
		lastErr = err
		if !isRetryableContainerStartErr(err) || attempt == 3 {
			return nil, fmt.Errorf("failed to start ClickHouse container after retries: %w", lastErr)
		}
		time.Sleep(time.Duration(attempt) * 750 * time.Millisecond)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get ClickHouse container host: %w", err)
	}

	mappedPort, err := container.MappedPort(ctx, nat.Port(cfg.Port+"/tcp"))
	if err != nil {
		return nil, fmt.Errorf("failed to get ClickHouse container mapped port: %w", err)
	}

	return &DB{
		log:       log,
		cfg:       cfg,
		addr:      fmt.Sprintf("%s:%s", host, mappedPort.Port()),
		container: container,
	}, nil
}

func isRetryableContainerStartErr(err error) bool {
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded")
}

func isRetryableConnectionErr(err error) bool {
	s := err.Error()
	return strings.Contains(s, "handshake") ||
		strings.Contains(s, "unexpected packet") ||
		strings.Contains(s, "failed to ping") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "dial tcp")
}
