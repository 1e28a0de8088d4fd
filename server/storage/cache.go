package storage

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"matchengine/series"
)

// cacheTTL bounds how long a series snapshot can go stale in Redis relative
// to Postgres; SaveSeries always refreshes it on write, so this only
// matters if a write-through update is ever lost.
const cacheTTL = 10 * time.Minute

func seriesCacheKey(seriesID string) string { return "series:" + seriesID + ":state" }

// CachedStore wraps a Store with a Redis read-through/write-through cache.
// It implements series.Saver and series.Finder; a cache miss or Redis
// outage falls back to Postgres, so Redis is never a hard dependency for
// correctness, only for latency.
type CachedStore struct {
	store *Store
	rdb   *redis.Client
	log   *slog.Logger
}

// NewCachedStore wraps store with a Redis cache at redisURL. If redisURL is
// empty, NewCachedStore returns store wrapped around a nil client, and every
// operation passes straight through to Postgres.
func NewCachedStore(ctx context.Context, store *Store, redisURL string, log *slog.Logger) (*CachedStore, error) {
	if log == nil {
		log = slog.Default()
	}
	cs := &CachedStore{store: store, log: log.With("tag", "storage-cache")}
	if redisURL == "" {
		return cs, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	cs.rdb = rdb
	cs.log.Info("connected to Redis")
	return cs, nil
}

// Close releases the Redis connection, if any.
func (c *CachedStore) Close() {
	if c.rdb != nil {
		c.rdb.Close()
	}
}

// Underlying returns the raw Redis client, or nil if no Redis is
// configured, for collaborators (like RedisRematchStore) that need direct
// access beyond the series.Saver/Finder surface.
func (c *CachedStore) Underlying() *redis.Client {
	return c.rdb
}

// SaveSeries writes through to Postgres, then refreshes the cache entry.
// A cache write failure is logged but never fails the call: Postgres is the
// source of truth.
func (c *CachedStore) SaveSeries(ctx context.Context, sr *series.Series) error {
	if err := c.store.SaveSeries(ctx, sr); err != nil {
		return err
	}
	if c.rdb == nil {
		return nil
	}
	blob, err := json.Marshal(sr)
	if err != nil {
		return nil
	}
	if err := c.rdb.Set(ctx, seriesCacheKey(sr.ID), blob, cacheTTL).Err(); err != nil {
		c.log.Warn("cache write failed", "seriesId", sr.ID, "error", err)
	}
	return nil
}

// FindSeries reads from the cache first, falling back to Postgres on a miss
// or a Redis error, and repopulating the cache on a fallback hit.
func (c *CachedStore) FindSeries(ctx context.Context, seriesID string) (*series.Series, error) {
	if c.rdb != nil {
		blob, err := c.rdb.Get(ctx, seriesCacheKey(seriesID)).Bytes()
		if err == nil {
			var sr series.Series
			if err := json.Unmarshal(blob, &sr); err == nil {
				return &sr, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache read failed", "seriesId", seriesID, "error", err)
		}
	}

	sr, err := c.store.FindSeries(ctx, seriesID)
	if err != nil || sr == nil {
		return sr, err
	}
	if c.rdb != nil {
		if blob, err := json.Marshal(sr); err == nil {
			c.rdb.Set(ctx, seriesCacheKey(seriesID), blob, cacheTTL)
		}
	}
	return sr, nil
}
