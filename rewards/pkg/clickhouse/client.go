package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const (
	DefaultDatabase = "default"

	defaultDialTimeout      = 5 * time.Second
	defaultMaxExecutionTime = 60 // seconds
)

// ContextWithSyncInsert disables async inserts for writes made with the returned
// context, so a following read sees them.
func ContextWithSyncInsert(ctx context.Context) context.Context {
	return clickhouse.Context(ctx, clickhouse.WithSettings(clickhouse.Settings{
		"async_insert":                  0,
		"wait_for_async_insert":         1,
		"insert_deduplicate":            0,
		"select_sequential_consistency": 1,
	}))
}

// Client owns the pooled driver connection.
type Client interface {
	Conn(ctx context.Context) (Connection, error)
	Close() error
}

// Connection is the subset of the driver the audit store and admin tool use.
type Connection interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
	PrepareBatch(ctx context.Context, query string) (driver.Batch, error)
	Close() error
}

// ClientConfig holds the connection settings shared by the server and the admin tool.
type ClientConfig struct {
	Addr     string
	Database string
	Username string
	Password string
	// Secure enables TLS, as required by ClickHouse Cloud on 9440.
	Secure bool
}

func (cfg ClientConfig) database() string {
	if cfg.Database == "" {
		return DefaultDatabase
	}
	return cfg.Database
}

// options builds driver options for both the native client and the database/sql
// handle goose uses.
func (cfg ClientConfig) options() *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.database(),
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: defaultDialTimeout,
	}
	if cfg.Secure {
		opts.TLS = &tls.Config{}
	}
	return opts
}

type client struct {
	conn driver.Conn
}

// sharedConn hands out the pooled connection; closing it is a no-op.
type sharedConn struct {
	driver.Conn
}

func (c sharedConn) PrepareBatch(ctx context.Context, query string) (driver.Batch, error) {
	return c.Conn.PrepareBatch(ctx, query)
}

func (sharedConn) Close() error { return nil }

// NewClient opens a connection and pings it before returning.
func NewClient(ctx context.Context, log *slog.Logger, cfg ClientConfig) (Client, error) {
	opts := cfg.options()
	opts.Settings = clickhouse.Settings{
		"max_execution_time": defaultMaxExecutionTime,
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("clickhouse: client initialized", "addr", cfg.Addr, "database", cfg.database(), "secure", cfg.Secure)
	return &client{conn: conn}, nil
}

func (c *client) Conn(ctx context.Context) (Connection, error) {
	return sharedConn{Conn: c.conn}, nil
}

func (c *client) Close() error {
	return c.conn.Close()
}
