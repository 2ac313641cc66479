// Package redis implements domain.CheckpointStore using go-redis/v9. Each
// workflow instance is stored as one JSON blob under its identity key; a
// single-key SET is atomic on the server, so a crash mid-write never leaves a
// partially written checkpoint readable.
package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client wraps a go-redis Client and provides connectivity helpers.
type Client struct {
	rdb *redis.Client
}

// New creates a Redis Client and pings it to verify connectivity.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CheckpointStore persists workflow instances under "workflow:{broker}:{symbol}".
type CheckpointStore struct {
	rdb *redis.Client
}

// NewCheckpointStore creates a CheckpointStore backed by the given Client.
func NewCheckpointStore(c *Client) *CheckpointStore {
	return &CheckpointStore{rdb: c.rdb}
}

func checkpointKey(id domain.WorkflowID) string {
	return "workflow:" + id.Key()
}

// Save marshals the instance and writes it with a single SET. Checkpoints
// never expire: a workflow identity is persisted indefinitely.
func (s *CheckpointStore) Save(ctx context.Context, id domain.WorkflowID, inst *domain.WorkflowInstance) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return fmt.Errorf("redis: marshal checkpoint %s: %w", id.Key(), err)
	}
	if err := s.rdb.Set(ctx, checkpointKey(id), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: save checkpoint %s: %w", id.Key(), err)
	}
	return nil
}

// Load returns the last saved instance, or domain.ErrNotFound when the
// identity has never been checkpointed.
func (s *CheckpointStore) Load(ctx context.Context, id domain.WorkflowID) (*domain.WorkflowInstance, error) {
	data, err := s.rdb.Get(ctx, checkpointKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: load checkpoint %s: %w", id.Key(), err)
	}

	var inst domain.WorkflowInstance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("redis: unmarshal checkpoint %s: %w", id.Key(), err)
	}
	return &inst, nil
}

// Compile-time interface check.
var _ domain.CheckpointStore = (*CheckpointStore)(nil)
