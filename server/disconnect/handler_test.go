package disconnect

import (
	"context"
	"testing"

	"matchengine/series"
)

type fakeSeriesMgr struct {
	forfeits int
	abandons int
	wins     map[string]int
}

func newFakeSeriesMgr() *fakeSeriesMgr {
	return &fakeSeriesMgr{wins: map[string]int{"p1": 0, "p2": 0}}
}

func (f *fakeSeriesMgr) ForfeitCurrentGame(ctx context.Context, seriesID, forfeitingPlayerID string) (*series.EndGameResult, error) {
	f.forfeits++
	opponent := "p2"
	if forfeitingPlayerID == "p2" {
		opponent = "p1"
	}
	f.wins[opponent]++

	s := &series.Series{ID: seriesID, Player1ID: "p1", Player2ID: "p2", Player1Wins: f.wins["p1"], Player2Wins: f.wins["p2"]}
	isComplete := f.wins[opponent] >= 2
	if isComplete {
		s.Status = series.StatusCompleted
		score := "0-2"
		if opponent == "p1" {
			score = "2-0"
		}
		s.FinalScore = &score
		s.WinnerID = &opponent
	} else {
		s.Status = series.StatusInProgress
		s.CurrentGame = 2
	}
	return &series.EndGameResult{Series: s, IsComplete: isComplete}, nil
}

func (f *fakeSeriesMgr) AbandonSeries(ctx context.Context, seriesID, abandoningPlayerID string) (*series.AbandonResult, error) {
	f.abandons++
	opponent := "p2"
	if abandoningPlayerID == "p2" {
		opponent = "p1"
	}
	change := -25
	return &series.AbandonResult{
		Series: &series.Series{
			ID:            seriesID,
			Status:        series.StatusAbandoned,
			WinnerID:      &opponent,
			LoserID:       &abandoningPlayerID,
			LoserMPChange: &change,
		},
		WinnerID: opponent,
		LoserID:  abandoningPlayerID,
	}, nil
}

func clockAt(seconds int64) Clock {
	return func() int64 { return seconds }
}

func TestHandleDisconnectReportsPaused(t *testing.T) {
	h := NewHandler(newFakeSeriesMgr(), clockAt(1000), 0, nil)
	status := h.HandleDisconnect("s1", "p1")
	if status.Status != "paused" || status.DisconnectedPlayerID != "p1" || status.RemainingSeconds != 60 {
		t.Fatalf("unexpected paused status: %+v", status)
	}
}

func TestReconnectWithinWindowClears(t *testing.T) {
	h := NewHandler(newFakeSeriesMgr(), clockAt(1000), 0, nil)
	h.HandleDisconnect("s1", "p1")

	h.clock = clockAt(1030)
	if ok := h.HandleReconnect("s1", "p1"); !ok {
		t.Fatalf("expected reconnect within window to succeed")
	}
	if h.IsPlayerDisconnected("s1", "p1") {
		t.Fatalf("expected disconnect state to be cleared")
	}
}

func TestReconnectAfterWindowFails(t *testing.T) {
	h := NewHandler(newFakeSeriesMgr(), clockAt(1000), 0, nil)
	h.HandleDisconnect("s1", "p1")

	h.clock = clockAt(1070)
	if ok := h.HandleReconnect("s1", "p1"); ok {
		t.Fatalf("expected reconnect after window to fail")
	}
}

func TestReconnectByNonDisconnectedPlayerIsNoop(t *testing.T) {
	h := NewHandler(newFakeSeriesMgr(), clockAt(1000), 0, nil)
	h.HandleDisconnect("s1", "p1")

	if ok := h.HandleReconnect("s1", "p2"); !ok {
		t.Fatalf("expected reconnect by the non-disconnected player to no-op true")
	}
	if !h.IsPlayerDisconnected("s1", "p1") {
		t.Fatalf("expected disconnect state to persist")
	}
}

func TestCheckTimeoutNoActiveDisconnect(t *testing.T) {
	h := NewHandler(newFakeSeriesMgr(), clockAt(1000), 0, nil)
	result, err := h.CheckTimeout(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("check timeout: %v", err)
	}
	if result.HasTimeout || result.Forfeited || result.SeriesState != nil {
		t.Fatalf("expected no-timeout result, got %+v", result)
	}
}

func TestGetRemainingTimeout(t *testing.T) {
	h := NewHandler(newFakeSeriesMgr(), clockAt(1000000), 0, nil)
	h.HandleDisconnect("s1", "p1")
	h.clock = clockAt(1000030)
	if got := h.GetRemainingTimeout("s1"); got != 30 {
		t.Fatalf("expected 30 remaining seconds, got %d", got)
	}
}

func TestTimeoutForfeit(t *testing.T) {
	mgr := newFakeSeriesMgr()
	h := NewHandler(mgr, clockAt(1000000), 0, nil)
	h.HandleDisconnect("s1", "p1")

	h.clock = clockAt(1000061)
	result, err := h.CheckTimeout(context.Background(), "s1")
	if err != nil {
		t.Fatalf("check timeout: %v", err)
	}
	if !result.HasTimeout || !result.Forfeited {
		t.Fatalf("expected a forfeit, got %+v", result)
	}
	if result.ForfeitingPlayerID != "p1" {
		t.Fatalf("expected p1 to have forfeited")
	}
	if result.SeriesState.Player2Wins != 1 {
		t.Fatalf("expected p2 to be credited the win")
	}
	if h.IsPlayerDisconnected("s1", "p1") {
		t.Fatalf("expected disconnect state cleared after forfeit")
	}
}

func TestDoubleForfeitCompletesSeries(t *testing.T) {
	mgr := newFakeSeriesMgr()
	h := NewHandler(mgr, clockAt(1000000), 0, nil)
	h.HandleDisconnect("s1", "p1")
	h.clock = clockAt(1000061)
	h.CheckTimeout(context.Background(), "s1")

	h.clock = clockAt(1000100)
	h.HandleDisconnect("s1", "p1")
	h.clock = clockAt(1000161)
	result, err := h.CheckTimeout(context.Background(), "s1")
	if err != nil {
		t.Fatalf("check timeout: %v", err)
	}
	if !result.IsSeriesComplete {
		t.Fatalf("expected series to complete after the second forfeit")
	}
	if result.SeriesState.Status != series.StatusCompleted {
		t.Fatalf("expected status completed, got %s", result.SeriesState.Status)
	}
	if *result.SeriesState.FinalScore != "0-2" {
		t.Fatalf("expected final score 0-2, got %s", *result.SeriesState.FinalScore)
	}
}

func TestHandleAbandonClearsDisconnectState(t *testing.T) {
	mgr := newFakeSeriesMgr()
	h := NewHandler(mgr, clockAt(1000000), 0, nil)
	h.HandleDisconnect("s1", "p1")

	result, err := h.HandleAbandon(context.Background(), "s1", "p1")
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if result.Series.Status != series.StatusAbandoned {
		t.Fatalf("expected abandoned status")
	}
	if *result.Series.LoserMPChange != -25 {
		t.Fatalf("expected -25 loser mp change")
	}
	if h.IsPlayerDisconnected("s1", "p1") {
		t.Fatalf("expected disconnect state cleared after abandon")
	}
}

func TestActiveSeriesIDs(t *testing.T) {
	mgr := newFakeSeriesMgr()
	h := NewHandler(mgr, clockAt(1000000), 0, nil)
	h.HandleDisconnect("s1", "p1")
	h.HandleDisconnect("s2", "p2")

	ids := h.ActiveSeriesIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 active series, got %d", len(ids))
	}

	h.HandleReconnect("s1", "p1")
	ids = h.ActiveSeriesIDs()
	if len(ids) != 1 || ids[0] != "s2" {
		t.Fatalf("expected only s2 active after s1 reconnects, got %v", ids)
	}
}
