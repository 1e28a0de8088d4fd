// Package storage is the Postgres-backed persistence layer for Series
// records. It implements series.Saver and series.Finder; the engine itself
// never imports pgx directly.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchengine/series"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS series (
	id UUID PRIMARY KEY,
	player1_id TEXT NOT NULL,
	player2_id TEXT NOT NULL,
	status TEXT NOT NULL,
	data JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_series_player1 ON series(player1_id);
CREATE INDEX IF NOT EXISTS idx_series_player2 ON series(player2_id);
CREATE INDEX IF NOT EXISTS idx_series_status ON series(status);
`

// alterSeriesAddUpdatedAt backfills updated_at for databases migrated from
// an earlier schema revision that lacked it.
const alterSeriesAddUpdatedAt = `
ALTER TABLE series ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ NOT NULL DEFAULT now();
`

// Store persists Series records as JSONB, keyed by id. Player/status columns
// are denormalized for indexed lookup; data is always the source of truth.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the series table exists. If
// databaseURL is empty, NewStore returns (nil, nil) and no persistence
// occurs — callers must treat a nil *Store as "no database configured".
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, alterSeriesAddUpdatedAt); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool. Safe to call on a nil *Store.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// SaveSeries upserts s by id.
func (s *Store) SaveSeries(ctx context.Context, sr *series.Series) error {
	if s == nil || s.pool == nil {
		return nil
	}
	blob, err := json.Marshal(sr)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO series (id, player1_id, player2_id, status, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			player1_id = EXCLUDED.player1_id,
			player2_id = EXCLUDED.player2_id,
			status = EXCLUDED.status,
			data = EXCLUDED.data,
			updated_at = now()`,
		sr.ID, sr.Player1ID, sr.Player2ID, string(sr.Status), blob)
	return err
}

// FindSeries loads a Series by id. Returns (nil, nil) if absent.
func (s *Store) FindSeries(ctx context.Context, seriesID string) (*series.Series, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}
	var blob []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM series WHERE id = $1`, seriesID).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var sr series.Series
	if err := json.Unmarshal(blob, &sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// ListByPlayer returns every series (any status) involving playerID, newest
// first, for history/profile queries.
func (s *Store) ListByPlayer(ctx context.Context, playerID string) ([]*series.Series, error) {
	if s == nil || s.pool == nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM series
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY created_at DESC`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*series.Series
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var sr series.Series
		if err := json.Unmarshal(blob, &sr); err != nil {
			return nil, err
		}
		out = append(out, &sr)
	}
	return out, rows.Err()
}
