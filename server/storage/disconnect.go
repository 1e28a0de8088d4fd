package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"matchengine/disconnect"
)

var _ disconnect.EntryStore = (*RedisEntryStore)(nil)

const disconnectKeyPrefix = "disconnect:"

func disconnectKey(seriesID string) string { return disconnectKeyPrefix + seriesID }

// RedisEntryStore is a disconnect.EntryStore backed by Redis, so every
// instance behind a load balancer sees the same set of active disconnects.
type RedisEntryStore struct {
	rdb *redis.Client
}

// NewRedisEntryStore wraps an existing Redis client.
func NewRedisEntryStore(rdb *redis.Client) *RedisEntryStore {
	return &RedisEntryStore{rdb: rdb}
}

func (r *RedisEntryStore) Set(seriesID string, e disconnect.Entry) error {
	ctx := context.Background()
	value := e.PlayerID + "|" + strconv.FormatInt(e.DisconnectedAt, 10)
	return r.rdb.Set(ctx, disconnectKey(seriesID), value, 0).Err()
}

func (r *RedisEntryStore) Get(seriesID string) (disconnect.Entry, bool, error) {
	ctx := context.Background()
	val, err := r.rdb.Get(ctx, disconnectKey(seriesID)).Result()
	if err == redis.Nil {
		return disconnect.Entry{}, false, nil
	}
	if err != nil {
		return disconnect.Entry{}, false, err
	}
	return parseDisconnectEntry(val), true, nil
}

func (r *RedisEntryStore) Delete(seriesID string) error {
	ctx := context.Background()
	return r.rdb.Del(ctx, disconnectKey(seriesID)).Err()
}

func (r *RedisEntryStore) Keys() ([]string, error) {
	ctx := context.Background()
	keys, err := r.rdb.Keys(ctx, disconnectKeyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = strings.TrimPrefix(k, disconnectKeyPrefix)
	}
	return ids, nil
}

func parseDisconnectEntry(val string) disconnect.Entry {
	playerID, tsStr, _ := strings.Cut(val, "|")
	ts, _ := strconv.ParseInt(tsStr, 10, 64)
	return disconnect.Entry{PlayerID: playerID, DisconnectedAt: ts}
}
