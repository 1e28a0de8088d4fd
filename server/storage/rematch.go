package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"matchengine/series"
)

var _ series.RematchStore = (*RedisRematchStore)(nil)

// rematchScript implements series.RematchStore's take-both-or-insert-one
// contract as a single round trip: if no entry exists, register playerId
// and report unmatched; if the existing entry is opponentId, consume it and
// report matched. Run as a Lua script so the read-compare-write is atomic
// against concurrent requests from both players.
var rematchScript = redis.NewScript(`
local key = KEYS[1]
local playerId = ARGV[1]
local opponentId = ARGV[2]
local existing = redis.call("GET", key)
if existing == opponentId then
	redis.call("DEL", key)
	return 1
end
if existing == false then
	redis.call("SET", key, playerId, "EX", ARGV[3])
end
return 0
`)

func rematchKey(seriesID string) string { return "rematch:" + seriesID }

// RedisRematchStore is a series.RematchStore backed by Redis, for engines
// running multiple instances behind a load balancer where the in-memory
// default can't see requests landing on a different process.
type RedisRematchStore struct {
	rdb    *redis.Client
	log    *slog.Logger
	window time.Duration
}

// NewRedisRematchStore wraps an existing Redis client. windowSeconds bounds
// how long a pending entry waits for the opponent before Redis expires it;
// 0 falls back to series.DefaultRematchWindowSeconds.
func NewRedisRematchStore(rdb *redis.Client, windowSeconds int, log *slog.Logger) *RedisRematchStore {
	if log == nil {
		log = slog.Default()
	}
	if windowSeconds <= 0 {
		windowSeconds = series.DefaultRematchWindowSeconds
	}
	return &RedisRematchStore{rdb: rdb, log: log.With("tag", "storage-rematch"), window: time.Duration(windowSeconds) * time.Second}
}

// TakeOrRegister implements series.RematchStore.
func (r *RedisRematchStore) TakeOrRegister(seriesID, playerID, opponentID string) (bool, error) {
	ctx := context.Background()
	res, err := rematchScript.Run(ctx, r.rdb, []string{rematchKey(seriesID)}, playerID, opponentID, int(r.window.Seconds())).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
