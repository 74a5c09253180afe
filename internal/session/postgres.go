package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Compile-time interface assertion.
var _ Store = (*PostgresStore)(nil)

// PostgresStore is a [Store] backed by a conversation_turns table. All
// methods are safe for concurrent use.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore establishes a connection pool to the PostgreSQL database
// at dsn, verifies connectivity, and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("session store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("session store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session store: ping: %w", err)
	}

	if err := migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session store: migrate: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// migrate ensures the conversation_turns table and its session index exist.
func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS conversation_turns (
		    id         BIGSERIAL PRIMARY KEY,
		    session_id TEXT        NOT NULL,
		    role       TEXT        NOT NULL,
		    content    TEXT        NOT NULL,
		    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS conversation_turns_session_idx
		    ON conversation_turns (session_id, created_at);`

	if _, err := pool.Exec(ctx, ddl); err != nil {
		return err
	}
	return nil
}

// Append implements [Store]. Entries are written in order within one batch.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	const q = `
		INSERT INTO conversation_turns (session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4)`

	batch := &pgx.Batch{}
	for _, e := range entries {
		createdAt := e.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		batch.Queue(q, sessionID, e.Role, e.Content, createdAt)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("session store: append: %w", err)
	}
	return nil
}

// Recent implements [Store]. The most recent limit turns are returned oldest
// first so they can be injected into a prompt as-is.
func (s *PostgresStore) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	q := `
		SELECT role, content, created_at
		FROM   conversation_turns
		WHERE  session_id = $1
		ORDER  BY created_at DESC, id DESC`
	args := []any{sessionID}

	if limit > 0 {
		q += "\nLIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("session store: recent: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		err := row.Scan(&e.Role, &e.Content, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("session store: scan rows: %w", err)
	}

	// Query returned newest first; reverse into chronological order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Ping verifies database connectivity, for readiness checks.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}
