package counter

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxConn is the subset of *pgxpool.Pool the store needs.
type PgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const pgSchema = `
CREATE TABLE IF NOT EXISTS delivery_counters (
	scope           TEXT        NOT NULL,
	recipient       TEXT        NOT NULL,
	conversation_id TEXT        NOT NULL DEFAULT '',
	value           BIGINT      NOT NULL DEFAULT 0 CHECK (value >= 0),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (scope, recipient, conversation_id)
)`

const (
	pgIncrement = `
INSERT INTO delivery_counters (scope, recipient, conversation_id, value)
VALUES ($1, $2, $3, 1)
ON CONFLICT (scope, recipient, conversation_id)
DO UPDATE SET value = delivery_counters.value + 1, updated_at = now()
RETURNING value`

	pgReset = `
UPDATE delivery_counters SET value = 0, updated_at = now()
WHERE scope = $1 AND recipient = $2 AND conversation_id = $3`

	pgGet = `
SELECT value FROM delivery_counters
WHERE scope = $1 AND recipient = $2 AND conversation_id = $3`
)

// PostgresStore relies on INSERT .. ON CONFLICT for the atomic upsert.
type PostgresStore struct {
	db PgxConn
}

func NewPostgresStore(db PgxConn) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, pgSchema); err != nil {
		return unavailable(err, "ensure_schema", Key{})
	}
	return nil
}

func (s *PostgresStore) Increment(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	var v int64
	if err := s.db.QueryRow(ctx, pgIncrement, string(key.Scope), key.Recipient, key.ConversationID).Scan(&v); err != nil {
		return 0, unavailable(err, "increment", key)
	}
	return v, nil
}

func (s *PostgresStore) Reset(ctx context.Context, key Key) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, pgReset, string(key.Scope), key.Recipient, key.ConversationID); err != nil {
		return unavailable(err, "reset", key)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}
	var v int64
	err := s.db.QueryRow(ctx, pgGet, string(key.Scope), key.Recipient, key.ConversationID).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable(err, "get", key)
	}
	return v, nil
}
