// internal/store/postgres.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MatchRecord is the summary of a finished match.
type MatchRecord struct {
	ID         string
	PlayerID   string
	Winner     string
	Rounds     int
	PlayerHP   int
	OpponentHP int
	Seed       uint64
	StartedAt  time.Time
	EndedAt    time.Time
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresHistory records finished matches.
type PostgresHistory struct {
	db execer
}

const schemaSQL = `CREATE TABLE IF NOT EXISTS match_history (
	id          UUID PRIMARY KEY,
	player_id   TEXT NOT NULL,
	winner      TEXT NOT NULL,
	rounds      INT NOT NULL,
	player_hp   INT NOT NULL,
	opponent_hp INT NOT NULL,
	seed        BIGINT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL
)`

const insertSQL = `INSERT INTO match_history
	(id, player_id, winner, rounds, player_hp, opponent_hp, seed, started_at, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING`

// NewPostgresHistory wraps an existing pool.
func NewPostgresHistory(pool *pgxpool.Pool) *PostgresHistory {
	return &PostgresHistory{db: pool}
}

// ConnectPostgres opens a pool for dsn and pings it.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the history table if needed.
func (h *PostgresHistory) EnsureSchema(ctx context.Context) error {
	if _, err := h.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Record inserts r. Recording the same match twice is a no-op.
func (h *PostgresHistory) Record(ctx context.Context, r MatchRecord) error {
	_, err := h.db.Exec(ctx, insertSQL,
		r.ID, r.PlayerID, r.Winner, r.Rounds, r.PlayerHP, r.OpponentHP,
		int64(r.Seed), r.StartedAt, r.EndedAt)
	if err != nil {
		return fmt.Errorf("record match %s: %w", r.ID, err)
	}
	return nil
}
