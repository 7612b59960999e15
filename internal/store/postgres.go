package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DBPool abstracts pgxpool.Pool so the store can be exercised with pgxmock.
type DBPool interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const (
	sqlCreateKV = `
        CREATE TABLE IF NOT EXISTS cadence_kv (
            key        TEXT PRIMARY KEY,
            value      JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
    `
	sqlGetKV = `SELECT value FROM cadence_kv WHERE key = $1;`
	sqlSetKV = `
        INSERT INTO cadence_kv (key, value, updated_at)
        VALUES ($1, $2, now())
        ON CONFLICT (key) DO UPDATE SET
            value = EXCLUDED.value,
            updated_at = EXCLUDED.updated_at;
    `
)

// Postgres keeps keys in a shared PostgreSQL table.
type Postgres struct {
	pool DBPool
	log  *zap.Logger
}

// OpenPostgres connects to url, verifies the connection and ensures the
// table exists.
func OpenPostgres(ctx context.Context, url string, logger *zap.Logger) (*Postgres, error) {
	if url == "" {
		return nil, errors.New("store: postgres backend requires a connection url")
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: failed to create connection pool: %w", err)
	}
	s, err := NewPostgres(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres wraps an existing pool and verifies the connection.
func NewPostgres(ctx context.Context, pool DBPool, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool, log: logger.Named("store.postgres")}, nil
}

// Migrate creates the key/value table if it is missing.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateKV); err != nil {
		return fmt.Errorf("failed to create cadence_kv table: %w", err)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, key string, dst any) (bool, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, sqlGetKV, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrap("get", key, err)
	}
	return true, decode(key, raw, dst)
}

func (s *Postgres) Set(ctx context.Context, key string, value any) error {
	data, err := encode(key, value)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, sqlSetKV, key, data)
	if err != nil {
		return wrap("set", key, err)
	}
	s.log.Debug("Upserted key", zap.String("key", key), zap.Int64("rows", tag.RowsAffected()))
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
