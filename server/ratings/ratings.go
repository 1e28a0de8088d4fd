// Package ratings is the external rating collaborator: it resolves a
// player's MindPoint (MP) and rank for series.PlayerFetcher, and separately
// applies the MP deltas the engine reports but never applies itself (see
// series.Series.LoserMPChange, carried by EndGameResult / AbandonResult).
package ratings

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"matchengine/series"
)

const (
	// MPK is the K-factor for the MindPoint update formula.
	MPK = 32
	// InitialMP is assigned to a player with no prior rating row.
	InitialMP = 1000
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS player_ratings (
	user_id      TEXT PRIMARY KEY,
	mindpoint    INT  NOT NULL DEFAULT 1000,
	rank         TEXT NOT NULL DEFAULT 'unranked',
	wins         INT  NOT NULL DEFAULT 0,
	losses       INT  NOT NULL DEFAULT 0,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_player_ratings_mindpoint ON player_ratings(mindpoint DESC);
`

// Store is a Postgres-backed series.PlayerFetcher and MP-change applier.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the player_ratings table
// exists. A nil *Store (empty databaseURL) always reports InitialMP for
// every player and treats MP changes as no-ops.
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
	slog.Info("connected to Postgres", "tag", "ratings")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool. Safe on a nil *Store.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// FetchPlayer implements series.PlayerFetcher. A player with no rating row
// is treated as a fresh InitialMP/unranked entrant, not a lookup failure.
func (s *Store) FetchPlayer(ctx context.Context, playerID string) (*series.PlayerInfo, error) {
	if s == nil || s.pool == nil {
		return &series.PlayerInfo{UserID: playerID, MindPoint: InitialMP, CurrentRank: "unranked"}, nil
	}
	var mp int
	var rank string
	err := s.pool.QueryRow(ctx, `SELECT mindpoint, rank FROM player_ratings WHERE user_id = $1`, playerID).Scan(&mp, &rank)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &series.PlayerInfo{UserID: playerID, MindPoint: InitialMP, CurrentRank: "unranked"}, nil
		}
		return nil, err
	}
	return &series.PlayerInfo{UserID: playerID, MindPoint: mp, CurrentRank: rank}, nil
}

// ApplyMPChange adds delta to playerID's MindPoint, creating a fresh row at
// InitialMP+delta if none exists. This is the external consumer of the
// engine-reported loserMpChange field; the engine never calls it itself.
func (s *Store) ApplyMPChange(ctx context.Context, playerID string, delta int) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO player_ratings (user_id, mindpoint) VALUES ($1, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			mindpoint = player_ratings.mindpoint + $2,
			updated_at = now()`,
		playerID, delta, InitialMP+delta)
	return err
}

// ApplyGameResult updates both players' MindPoint via the logistic formula
// after a single game (not a whole series) completes. Games reported as
// drawn are out of scope for Swap2/Bo3 play, so there is no draw branch.
func (s *Store) ApplyGameResult(ctx context.Context, winnerID, loserID string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, id := range []string{winnerID, loserID} {
		if _, err := tx.Exec(ctx, `INSERT INTO player_ratings (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, id); err != nil {
			return err
		}
	}

	var winnerMP, loserMP int
	if err := tx.QueryRow(ctx, `SELECT mindpoint FROM player_ratings WHERE user_id = $1`, winnerID).Scan(&winnerMP); err != nil {
		return err
	}
	if err := tx.QueryRow(ctx, `SELECT mindpoint FROM player_ratings WHERE user_id = $1`, loserID).Scan(&loserMP); err != nil {
		return err
	}

	newWinnerMP, newLoserMP := computeMPUpdates(winnerMP, loserMP, true)

	if _, err := tx.Exec(ctx, `UPDATE player_ratings SET mindpoint = $1, wins = wins + 1, updated_at = now() WHERE user_id = $2`, newWinnerMP, winnerID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE player_ratings SET mindpoint = $1, losses = losses + 1, updated_at = now() WHERE user_id = $2`, newLoserMP, loserID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// computeMPUpdates returns the new MindPoint for both players given their
// current ratings and which one won (p0Wins selects the perspective).
// Standard logistic rating update, K=MPK.
func computeMPUpdates(mp0, mp1 int, p0Wins bool) (newMP0, newMP1 int) {
	var score0, score1 float64
	if p0Wins {
		score0, score1 = 1, 0
	} else {
		score0, score1 = 0, 1
	}
	e0 := 1 / (1 + math.Pow(10, float64(mp1-mp0)/400))
	e1 := 1 - e0
	delta0 := MPK * (score0 - e0)
	delta1 := MPK * (score1 - e1)
	newMP0 = mp0 + int(math.Round(delta0))
	newMP1 = mp1 + int(math.Round(delta1))
	if newMP0 < 0 {
		newMP0 = 0
	}
	if newMP1 < 0 {
		newMP1 = 0
	}
	return newMP0, newMP1
}
