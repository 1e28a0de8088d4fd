package series

import (
	"context"
	"testing"

	"matchengine/swap2"
)

type fakePlayers struct {
	ratings map[string]*PlayerInfo
}

func (f *fakePlayers) FetchPlayer(ctx context.Context, playerID string) (*PlayerInfo, error) {
	return f.ratings[playerID], nil
}

type fakeStore struct {
	byID map[string]*Series
}

func newFakeStore() *fakeStore {
	return &fakeStore{byID: make(map[string]*Series)}
}

func (f *fakeStore) SaveSeries(ctx context.Context, s *Series) error {
	cp := *s
	f.byID[s.ID] = &cp
	return nil
}

func (f *fakeStore) FindSeries(ctx context.Context, seriesID string) (*Series, error) {
	s, ok := f.byID[seriesID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func newTestSetup(t *testing.T) (*Manager, *fakeStore) {
	t.Helper()
	fetcher := &fakePlayers{ratings: map[string]*PlayerInfo{
		"p1": {UserID: "p1", MindPoint: 1500, CurrentRank: "gold"},
		"p2": {UserID: "p2", MindPoint: 1500, CurrentRank: "gold"},
	}}
	store := newFakeStore()
	swapMgr := swap2.NewManager(0, nil)
	mgr := NewManager(fetcher, store, store, swapMgr, 0, 0, nil, nil)
	return mgr, store
}

func TestCreateSeriesRejectsSamePlayer(t *testing.T) {
	mgr, _ := newTestSetup(t)
	if _, err := mgr.CreateSeries(context.Background(), "p1", "p1"); err == nil {
		t.Fatalf("expected error for identical players")
	}
}

func TestCreateSeriesInitializesState(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, err := mgr.CreateSeries(context.Background(), "p1", "p2")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if s.Status != StatusInProgress || s.CurrentGame != 1 {
		t.Fatalf("unexpected initial series state: %+v", s)
	}
	if s.Player1Wins != 0 || s.Player2Wins != 0 {
		t.Fatalf("expected zero tallies")
	}
	if s.Swap2State == nil || s.Swap2State.Phase != swap2.PhasePlacement {
		t.Fatalf("expected an initialized swap2 state")
	}
}

func TestEndGameAdvancesWithoutCompletion(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")

	result, err := mgr.EndGame(context.Background(), s.ID, "p1")
	if err != nil {
		t.Fatalf("end game: %v", err)
	}
	if result.IsComplete {
		t.Fatalf("series should not be complete after 1-0")
	}
	if !result.NextGameReady {
		t.Fatalf("expected next game to be readied")
	}
	if result.Series.Player1Wins != 1 || result.Series.CurrentGame != 2 {
		t.Fatalf("unexpected tally/currentGame: %+v", result.Series)
	}
}

func TestEndGameCompletesSeriesAtTwoWins(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")

	if _, err := mgr.EndGame(context.Background(), s.ID, "p1"); err != nil {
		t.Fatalf("first win: %v", err)
	}
	result, err := mgr.EndGame(context.Background(), s.ID, "p1")
	if err != nil {
		t.Fatalf("second win: %v", err)
	}
	if !result.IsComplete {
		t.Fatalf("expected series to complete at 2 wins")
	}
	if result.Series.Status != StatusCompleted {
		t.Fatalf("expected status completed, got %s", result.Series.Status)
	}
	if result.Series.WinnerID == nil || *result.Series.WinnerID != "p1" {
		t.Fatalf("expected p1 to be the winner")
	}
	if result.Series.FinalScore == nil || *result.Series.FinalScore != "2-0" {
		t.Fatalf("expected final score 2-0, got %v", result.Series.FinalScore)
	}
	if result.Series.LoserMPChange == nil || *result.Series.LoserMPChange != StandardLossMP {
		t.Fatalf("expected standard loss mp change")
	}
}

func TestEndGameFailsWhenNotInProgress(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")
	mgr.EndGame(context.Background(), s.ID, "p1")
	mgr.EndGame(context.Background(), s.ID, "p1")

	if _, err := mgr.EndGame(context.Background(), s.ID, "p1"); err == nil {
		t.Fatalf("expected error ending an already-completed series")
	}
}

func TestForfeitCurrentGameCreditsOpponent(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")

	result, err := mgr.ForfeitCurrentGame(context.Background(), s.ID, "p1")
	if err != nil {
		t.Fatalf("forfeit: %v", err)
	}
	if result.Series.Player2Wins != 1 {
		t.Fatalf("expected opponent (p2) to be credited a win")
	}
}

func TestDoubleForfeitCompletesSeries(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")

	mgr.ForfeitCurrentGame(context.Background(), s.ID, "p1")
	result, err := mgr.ForfeitCurrentGame(context.Background(), s.ID, "p1")
	if err != nil {
		t.Fatalf("second forfeit: %v", err)
	}
	if result.Series.Status != StatusCompleted {
		t.Fatalf("expected status completed after double forfeit, got %s", result.Series.Status)
	}
	if *result.Series.FinalScore != "0-2" {
		t.Fatalf("expected final score 0-2, got %s", *result.Series.FinalScore)
	}
}

func TestAbandonSeries(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")

	result, err := mgr.AbandonSeries(context.Background(), s.ID, "p1")
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if result.Series.Status != StatusAbandoned {
		t.Fatalf("expected status abandoned, got %s", result.Series.Status)
	}
	if result.WinnerID != "p2" || result.LoserID != "p1" {
		t.Fatalf("unexpected winner/loser: %+v", result)
	}
	if *result.Series.LoserMPChange != StandardLossMP+AbandonPenaltyMP {
		t.Fatalf("expected -25 loser mp change, got %d", *result.Series.LoserMPChange)
	}
}

func TestAbandonRejectsNonParticipant(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")
	if _, err := mgr.AbandonSeries(context.Background(), s.ID, "p3"); err == nil {
		t.Fatalf("expected error for non-participant abandon")
	}
}

func TestRematchHandshake(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")
	mgr.EndGame(context.Background(), s.ID, "p1")
	result, _ := mgr.EndGame(context.Background(), s.ID, "p1")
	if !result.IsComplete {
		t.Fatalf("setup: expected completed series")
	}

	waiting, fresh, err := mgr.RequestRematch(context.Background(), s.ID, "p1")
	if err != nil {
		t.Fatalf("first rematch request: %v", err)
	}
	if !waiting || fresh != nil {
		t.Fatalf("expected to be waiting for opponent")
	}

	waiting, fresh, err = mgr.RequestRematch(context.Background(), s.ID, "p2")
	if err != nil {
		t.Fatalf("second rematch request: %v", err)
	}
	if waiting || fresh == nil {
		t.Fatalf("expected a fresh series once both players requested a rematch")
	}
	if fresh.ID == s.ID {
		t.Fatalf("expected a distinct series id")
	}
	if fresh.Status != StatusInProgress || fresh.CurrentGame != 1 {
		t.Fatalf("unexpected fresh series state: %+v", fresh)
	}
	if fresh.Player1Wins != 0 || fresh.Player2Wins != 0 {
		t.Fatalf("expected zero tallies on the rematch")
	}
}

func TestRematchRejectsNonCompletedSeries(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")
	if _, _, err := mgr.RequestRematch(context.Background(), s.ID, "p1"); err == nil {
		t.Fatalf("expected error requesting a rematch on an in-progress series")
	}
}

func TestRematchRejectsNonParticipant(t *testing.T) {
	mgr, _ := newTestSetup(t)
	s, _ := mgr.CreateSeries(context.Background(), "p1", "p2")
	mgr.EndGame(context.Background(), s.ID, "p1")
	mgr.EndGame(context.Background(), s.ID, "p1")

	if _, _, err := mgr.RequestRematch(context.Background(), s.ID, "p3"); err == nil {
		t.Fatalf("expected error for non-participant rematch request")
	}
}
