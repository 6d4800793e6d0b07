package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"voicedesk/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcript_history (
    id          UUID PRIMARY KEY,
    session_id  TEXT NOT NULL,
    text        TEXT NOT NULL,
    duration_ms BIGINT NOT NULL,
    model_name  TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL
)`

// pool is the subset of pgxpool.Pool the store uses.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresStore implements ports.HistoryStore on PostgreSQL.
type PostgresStore struct {
	pool pool
}

// Config controls the connection pool.
type Config struct {
	DSN         string
	MaxConns    int32
	MaxConnIdle time.Duration
}

// NewPostgresStore connects, pings and makes sure the table exists.
func NewPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse history DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnIdle > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdle
	}
	poolConfig.HealthCheckPeriod = time.Minute

	p, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create history pool: %w", err)
	}
	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	store := &PostgresStore{pool: p}
	if err := store.migrate(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, entry ports.HistoryEntry) error {
	if entry.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		entry.ID = id.String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcript_history (id, session_id, text, duration_ms, model_name, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.SessionID, entry.Text, entry.Duration.Milliseconds(), entry.ModelName, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]ports.HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultMemoryLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, text, duration_ms, model_name, created_at
         FROM transcript_history
         ORDER BY created_at DESC
         LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []ports.HistoryEntry
	for rows.Next() {
		var entry ports.HistoryEntry
		var durationMS int64
		if err := rows.Scan(&entry.ID, &entry.SessionID, &entry.Text, &durationMS, &entry.ModelName, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
