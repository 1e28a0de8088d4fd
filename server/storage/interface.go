package storage

import (
	"context"

	"matchengine/series"
)

// SeriesStore combines series.Saver and series.Finder with Close; the
// Postgres-backed Store and the Redis-cached CachedStore both satisfy it.
// Kept as an explicit interface so callers can substitute a fake in tests
// without depending on pgx.
type SeriesStore interface {
	series.Saver
	series.Finder
	Close()
}

var _ SeriesStore = (*Store)(nil)
var _ SeriesStore = (*CachedStore)(nil)
