package series

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"matchengine/apperr"
	"matchengine/idgen"
	"matchengine/swap2"
)

// Clock returns monotonic seconds, matching the engine-wide timeProvider
// contract. Tests inject a fake; production uses time.Now().Unix().
type Clock func() int64

func systemClock() int64 { return time.Now().Unix() }

// EndGameResult is the shape returned by EndGame and PrepareNextSeriesGame.
type EndGameResult struct {
	Series         *Series
	IsComplete     bool
	NextGameReady  bool
	Swap2State     *swap2.State
	GameID         string
}

// AbandonResult is the shape returned by AbandonSeries.
type AbandonResult struct {
	Series   *Series
	WinnerID string
	LoserID  string
}

// Manager implements the Bo3 series lifecycle. It performs no I/O itself;
// every persistence or rating lookup goes through its injected collaborators.
type Manager struct {
	fetcher    PlayerFetcher
	saver      Saver
	finder     Finder
	swap2      *swap2.Manager
	ids        idgen.Generator
	clock      Clock
	log        *slog.Logger
	gamesToWin int

	rematch RematchStore
}

// NewManager wires a SeriesManager from its collaborators. swap2Mgr must
// outlive the Manager; it owns the per-game opening registry. gamesToWin is
// the win count that ends a series; 0 falls back to the default GamesToWin
// (2, best-of-three). rematchWindowSeconds bounds how long the in-memory
// rematch handshake waits for the opponent; 0 falls back to
// DefaultRematchWindowSeconds. It has no effect once SetRematchStore
// installs a Redis-backed store, which carries its own window.
func NewManager(fetcher PlayerFetcher, saver Saver, finder Finder, swap2Mgr *swap2.Manager, gamesToWin, rematchWindowSeconds int, ids idgen.Generator, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if ids == nil {
		ids = idgen.Default
	}
	if gamesToWin <= 0 {
		gamesToWin = GamesToWin
	}
	return &Manager{
		fetcher:    fetcher,
		saver:      saver,
		finder:     finder,
		swap2:      swap2Mgr,
		ids:        ids,
		clock:      systemClock,
		log:        log.With("tag", "series"),
		gamesToWin: gamesToWin,
		rematch:    newInMemoryRematchStore(rematchWindowSeconds),
	}
}

// SetRematchStore overrides the rematch handshake backing store. Production
// leaves the in-memory default in place for a single instance, or injects a
// Redis-backed one when running multiple instances behind a load balancer.
func (m *Manager) SetRematchStore(r RematchStore) {
	m.rematch = r
}

// CreateSeries fetches both players' ratings, stamps the series, and opens
// game 1's Swap2 state.
func (m *Manager) CreateSeries(ctx context.Context, p1ID, p2ID string) (*Series, error) {
	if p1ID == p2ID {
		return nil, apperr.New(apperr.Validation, "player1Id and player2Id must differ")
	}
	p1, err := m.fetcher.FetchPlayer(ctx, p1ID)
	if err != nil {
		return nil, err
	}
	if p1 == nil {
		return nil, apperr.New(apperr.Validation, "player %s not found", p1ID)
	}
	p2, err := m.fetcher.FetchPlayer(ctx, p2ID)
	if err != nil {
		return nil, err
	}
	if p2 == nil {
		return nil, apperr.New(apperr.Validation, "player %s not found", p2ID)
	}

	now := m.clock()
	gameID := m.ids.NewID()
	s := &Series{
		ID:                 m.ids.NewID(),
		Player1ID:          p1ID,
		Player2ID:          p2ID,
		Player1InitialMP:   p1.MindPoint,
		Player2InitialMP:   p2.MindPoint,
		Player1InitialRank: p1.CurrentRank,
		Player2InitialRank: p2.CurrentRank,
		Player1Wins:        0,
		Player2Wins:        0,
		GamesToWin:         m.gamesToWin,
		CurrentGame:        1,
		Status:             StatusInProgress,
		CreatedAt:          now,
		StartedAt:          now,
		GameID:             gameID,
	}

	st, err := m.swap2.InitializeSwap2(gameID, p1ID, p2ID)
	if err != nil {
		return nil, err
	}
	s.Swap2State = st

	if err := m.saver.SaveSeries(ctx, s); err != nil {
		return nil, err
	}
	m.log.Info("series created", "seriesId", s.ID, "player1", p1ID, "player2", p2ID)
	return s, nil
}

// SetClock overrides the time source. Production leaves the system clock in
// place; tests inject a deterministic one.
func (m *Manager) SetClock(c Clock) {
	m.clock = c
}

// GetSeriesState is a pure read.
func (m *Manager) GetSeriesState(ctx context.Context, seriesID string) (*Series, bool, error) {
	s, err := m.finder.FindSeries(ctx, seriesID)
	if err != nil {
		return nil, false, err
	}
	if s == nil {
		return nil, false, apperr.New(apperr.NotFound, "series %s not found", seriesID)
	}
	return s, s.Status == StatusCompleted, nil
}

// EndGame reports a winner for the series's current game.
func (m *Manager) EndGame(ctx context.Context, seriesID, winnerID string) (*EndGameResult, error) {
	s, err := m.finder.FindSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, apperr.New(apperr.NotFound, "series %s not found", seriesID)
	}
	if s.Status != StatusInProgress {
		return nil, apperr.New(apperr.InvalidState, "series %s is not in_progress", seriesID)
	}
	if !s.IsParticipant(winnerID) {
		return nil, apperr.New(apperr.Validation, "winner %s is not a series participant", winnerID)
	}

	switch winnerID {
	case s.Player1ID:
		s.Player1Wins++
	case s.Player2ID:
		s.Player2Wins++
	}

	if s.Player1Wins == s.GamesToWin || s.Player2Wins == s.GamesToWin {
		m.finalize(s, winnerID, false)
		m.swap2.ClearState(s.GameID)
		if err := m.saver.SaveSeries(ctx, s); err != nil {
			return nil, err
		}
		m.log.Info("series completed", "seriesId", s.ID, "winner", winnerID, "score", *s.FinalScore)
		return &EndGameResult{Series: s, IsComplete: true}, nil
	}

	m.swap2.ClearState(s.GameID)
	result, err := m.advanceToNextGame(ctx, s)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// PrepareNextSeriesGame advances an in_progress series to its next game
// without mutating the score, used when a game result was applied directly
// against the store out-of-band.
func (m *Manager) PrepareNextSeriesGame(ctx context.Context, seriesID string) (*EndGameResult, error) {
	s, err := m.finder.FindSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, apperr.New(apperr.NotFound, "series %s not found", seriesID)
	}
	if s.Status != StatusInProgress {
		return nil, apperr.New(apperr.InvalidState, "series %s is not in_progress", seriesID)
	}
	return m.advanceToNextGame(ctx, s)
}

func (m *Manager) advanceToNextGame(ctx context.Context, s *Series) (*EndGameResult, error) {
	s.CurrentGame++
	s.GameID = m.ids.NewID()
	st, err := m.swap2.InitializeSwap2(s.GameID, s.Player1ID, s.Player2ID)
	if err != nil {
		return nil, err
	}
	s.Swap2State = st

	if err := m.saver.SaveSeries(ctx, s); err != nil {
		return nil, err
	}
	return &EndGameResult{
		Series:        s,
		IsComplete:    false,
		NextGameReady: true,
		Swap2State:    st,
		GameID:        s.GameID,
	}, nil
}

// finalize stamps the terminal fields on a series that has just reached its
// win threshold (or been abandoned). abandoned=true applies the extra -10
// penalty on top of the standard loss.
func (m *Manager) finalize(s *Series, winnerID string, abandoned bool) {
	loserID := s.Opponent(winnerID)
	now := m.clock()
	if abandoned {
		s.Status = StatusAbandoned
	} else {
		s.Status = StatusCompleted
	}
	s.WinnerID = &winnerID
	s.LoserID = &loserID
	s.EndedAt = &now

	score := formatScore(s.Player1Wins, s.Player2Wins)
	s.FinalScore = &score

	change := StandardLossMP
	if abandoned {
		change += AbandonPenaltyMP
	}
	s.LoserMPChange = &change
}

func formatScore(p1Wins, p2Wins int) string {
	return strconv.Itoa(p1Wins) + "-" + strconv.Itoa(p2Wins)
}

// ForfeitCurrentGame is EndGame with the opponent of forfeitingPlayerID as
// the winner.
func (m *Manager) ForfeitCurrentGame(ctx context.Context, seriesID, forfeitingPlayerID string) (*EndGameResult, error) {
	s, err := m.finder.FindSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, apperr.New(apperr.NotFound, "series %s not found", seriesID)
	}
	opponent := s.Opponent(forfeitingPlayerID)
	if opponent == "" {
		return nil, apperr.New(apperr.Validation, "player %s is not a series participant", forfeitingPlayerID)
	}
	return m.EndGame(ctx, seriesID, opponent)
}

// AbandonSeries ends the series immediately regardless of score, naming the
// opponent the series winner and applying the abandon MP penalty. The win
// counters are left as they were.
func (m *Manager) AbandonSeries(ctx context.Context, seriesID, abandoningPlayerID string) (*AbandonResult, error) {
	s, err := m.finder.FindSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, apperr.New(apperr.NotFound, "series %s not found", seriesID)
	}
	if !s.IsParticipant(abandoningPlayerID) {
		return nil, apperr.New(apperr.Unauthorized, "player %s is not a series participant", abandoningPlayerID)
	}
	opponent := s.Opponent(abandoningPlayerID)

	m.finalize(s, opponent, true)
	m.swap2.ClearState(s.GameID)
	if err := m.saver.SaveSeries(ctx, s); err != nil {
		return nil, err
	}
	m.log.Info("series abandoned", "seriesId", s.ID, "abandoner", abandoningPlayerID)
	return &AbandonResult{Series: s, WinnerID: opponent, LoserID: abandoningPlayerID}, nil
}

// RequestRematch records X's rematch intent on a completed series. If the
// opponent's intent is already pending, both are consumed and a fresh
// series is created atomically; otherwise the caller is told to wait.
func (m *Manager) RequestRematch(ctx context.Context, seriesID, playerID string) (waiting bool, newSeries *Series, err error) {
	s, err := m.finder.FindSeries(ctx, seriesID)
	if err != nil {
		return false, nil, err
	}
	if s == nil {
		return false, nil, apperr.New(apperr.NotFound, "series %s not found", seriesID)
	}
	if s.Status != StatusCompleted {
		return false, nil, apperr.New(apperr.InvalidState, "series %s is not completed", seriesID)
	}
	if !s.IsParticipant(playerID) {
		return false, nil, apperr.New(apperr.Unauthorized, "player %s is not a series participant", playerID)
	}

	opponent := s.Opponent(playerID)

	matched, err := m.rematch.TakeOrRegister(seriesID, playerID, opponent)
	if err != nil {
		return false, nil, err
	}
	if !matched {
		return true, nil, nil
	}

	fresh, err := m.CreateSeries(ctx, s.Player1ID, s.Player2ID)
	if err != nil {
		return false, nil, err
	}
	m.log.Info("rematch created", "previousSeriesId", seriesID, "newSeriesId", fresh.ID)
	return false, fresh, nil
}
