// Package disconnect implements the timed forfeit/abandon watchdog. It
// carries no clock of its own: time and series mutation are both injected,
// and timeouts are discovered only when the caller polls CheckTimeout.
package disconnect

import (
	"context"
	"log/slog"

	"matchengine/series"
)

// TimeoutSeconds is the disconnect grace period before a forfeit.
const TimeoutSeconds = 60

// Entry is the at-most-one-per-series disconnect record.
type Entry struct {
	PlayerID       string
	DisconnectedAt int64
}

// EntryStore backs the watchdog's per-series disconnect records. The
// default is an in-memory map; Redis-backed EntryStore implementations let
// the watchdog see disconnects recorded by a different instance behind a
// load balancer.
type EntryStore interface {
	Set(seriesID string, e Entry) error
	Get(seriesID string) (Entry, bool, error)
	Delete(seriesID string) error
	Keys() ([]string, error)
}

// SeriesForfeiter is the subset of series.Manager the watchdog drives.
type SeriesForfeiter interface {
	ForfeitCurrentGame(ctx context.Context, seriesID, forfeitingPlayerID string) (*series.EndGameResult, error)
	AbandonSeries(ctx context.Context, seriesID, abandoningPlayerID string) (*series.AbandonResult, error)
}

// Clock returns monotonic seconds.
type Clock func() int64

// PausedStatus is handleDisconnect's success payload.
type PausedStatus struct {
	Status               string `json:"status"`
	DisconnectedPlayerID string `json:"disconnectedPlayerId"`
	RemainingSeconds     int    `json:"remainingSeconds"`
}

// TimeoutResult is checkTimeout's return shape.
type TimeoutResult struct {
	HasTimeout         bool
	Forfeited          bool
	ForfeitingPlayerID string
	SeriesState        *series.Series
	IsSeriesComplete   bool
}

// Handler tracks disconnects across series, keyed by series id. Operations
// on distinct series ids are independent.
type Handler struct {
	seriesMgr      SeriesForfeiter
	clock          Clock
	log            *slog.Logger
	entries        EntryStore
	timeoutSeconds int
}

// NewHandler wires a watchdog against seriesMgr, using clock as its time
// source (production passes one backed by time.Now().Unix(); tests inject a
// deterministic one). Entries are held in an in-memory store by default;
// call SetEntryStore to use a Redis-backed one. timeoutSeconds is the grace
// period before a disconnect forfeits; 0 falls back to the default
// TimeoutSeconds (60).
func NewHandler(seriesMgr SeriesForfeiter, clock Clock, timeoutSeconds int, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if timeoutSeconds <= 0 {
		timeoutSeconds = TimeoutSeconds
	}
	return &Handler{
		seriesMgr:      seriesMgr,
		clock:          clock,
		log:            log.With("tag", "disconnect"),
		entries:        newMemoryEntryStore(),
		timeoutSeconds: timeoutSeconds,
	}
}

// SetEntryStore overrides the disconnect-record backing store.
func (h *Handler) SetEntryStore(s EntryStore) {
	h.entries = s
}

// HandleDisconnect records a disconnect, overwriting any prior one for the
// same series. Idempotent for repeated calls by the same player.
func (h *Handler) HandleDisconnect(seriesID, playerID string) PausedStatus {
	h.entries.Set(seriesID, Entry{PlayerID: playerID, DisconnectedAt: h.clock()})
	h.log.Info("player disconnected", "seriesId", seriesID, "player", playerID)
	return PausedStatus{
		Status:               "paused",
		DisconnectedPlayerID: playerID,
		RemainingSeconds:     h.timeoutSeconds,
	}
}

// HandleReconnect clears an active disconnect for playerID if it is still
// within the grace period. Returns true whenever no action is required or
// reconnection succeeded; false only when the disconnected player
// reconnects after the timeout has already elapsed.
func (h *Handler) HandleReconnect(seriesID, playerID string) bool {
	e, ok, _ := h.entries.Get(seriesID)
	if !ok || e.PlayerID != playerID {
		return true
	}
	if h.clock()-e.DisconnectedAt < int64(h.timeoutSeconds) {
		h.entries.Delete(seriesID)
		h.log.Info("player reconnected", "seriesId", seriesID, "player", playerID)
		return true
	}
	return false
}

// GetRemainingTimeout returns timeoutSeconds-elapsed; negative once expired.
// Returns 0 when no disconnect is active.
func (h *Handler) GetRemainingTimeout(seriesID string) int {
	e, ok, _ := h.entries.Get(seriesID)
	if !ok {
		return 0
	}
	return h.timeoutSeconds - int(h.clock()-e.DisconnectedAt)
}

// IsPlayerDisconnected reports whether playerID is the currently recorded
// disconnected player for seriesID.
func (h *Handler) IsPlayerDisconnected(seriesID, playerID string) bool {
	e, ok, _ := h.entries.Get(seriesID)
	return ok && e.PlayerID == playerID
}

// ActiveSeriesIDs returns the ids of every series with a disconnect
// currently recorded. Callers poll this to know which series to pass to
// CheckTimeout; the handler keeps no timer or background goroutine of its
// own.
func (h *Handler) ActiveSeriesIDs() []string {
	ids, err := h.entries.Keys()
	if err != nil {
		h.log.Warn("listing active disconnects failed", "error", err)
		return nil
	}
	return ids
}

// CheckTimeout forfeits the disconnected player's current game if the grace
// period has elapsed, clearing the disconnect state. Within the grace period
// the disconnect state is left in place.
func (h *Handler) CheckTimeout(ctx context.Context, seriesID string) (*TimeoutResult, error) {
	e, ok, err := h.entries.Get(seriesID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &TimeoutResult{HasTimeout: false, Forfeited: false}, nil
	}
	elapsed := h.clock() - e.DisconnectedAt
	if elapsed <= int64(h.timeoutSeconds) {
		return &TimeoutResult{HasTimeout: false, Forfeited: false}, nil
	}
	forfeitingPlayerID := e.PlayerID
	h.entries.Delete(seriesID)

	result, err := h.seriesMgr.ForfeitCurrentGame(ctx, seriesID, forfeitingPlayerID)
	if err != nil {
		return nil, err
	}
	h.log.Info("forfeit on timeout", "seriesId", seriesID, "player", forfeitingPlayerID)
	return &TimeoutResult{
		HasTimeout:         true,
		Forfeited:          true,
		ForfeitingPlayerID: forfeitingPlayerID,
		SeriesState:        result.Series,
		IsSeriesComplete:   result.IsComplete,
	}, nil
}

// HandleAbandon delegates to the series manager and clears any disconnect
// state for the series, regardless of who is recorded as disconnected.
func (h *Handler) HandleAbandon(ctx context.Context, seriesID, playerID string) (*series.AbandonResult, error) {
	result, err := h.seriesMgr.AbandonSeries(ctx, seriesID, playerID)
	if err != nil {
		return nil, err
	}
	h.entries.Delete(seriesID)
	return result, nil
}
