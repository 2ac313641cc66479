// Package questdb implements the time-series sink contracts against QuestDB
// over its PostgreSQL wire protocol using pgx.
package questdb

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// ClientConfig holds connection parameters for QuestDB's PG wire endpoint.
type ClientConfig struct {
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
	MaxConns  int
	RunSchema bool
}

// DSN builds the QuestDB connection string from the given config.
func DSN(cfg ClientConfig) string {
	port := cfg.Port
	if port == 0 {
		port = 8812
	}
	db := cfg.Database
	if db == "" {
		db = "qdb"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, port, db,
	)
}

// Client wraps a pgxpool.Pool against QuestDB and manages the market_data
// table schema.
type Client struct {
	pool *pgxpool.Pool
}

// New connects to QuestDB and, when RunSchema is set, ensures the market_data
// table exists. The table
// is declared with DEDUP UPSERT KEYS(timestamp, symbol), which makes repeated
// writes of the same (symbol, timestamp) row idempotent.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("questdb: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("questdb: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("questdb: ping: %w", err)
	}

	if cfg.RunSchema {
		if _, err := pool.Exec(ctx, schemaSQL); err != nil {
			pool.Close()
			return nil, fmt.Errorf("questdb: ensure schema: %w", err)
		}
	}

	return &Client{pool: pool}, nil
}

// Pool exposes the underlying connection pool.
func (c *Client) Pool() *pgxpool.Pool { return c.pool }

// Close releases the connection pool.
func (c *Client) Close() { c.pool.Close() }
