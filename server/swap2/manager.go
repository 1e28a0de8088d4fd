package swap2

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"matchengine/apperr"
)

// entry pairs a State with the mutex serializing every mutating operation on
// it; each game's opening is its own unit of serializability.
type entry struct {
	mu    sync.Mutex
	state *State
}

// Manager owns the in-memory Swap2 registry, keyed by gameId. It is safe for
// concurrent use across distinct gameIds; operations on the same gameId are
// serialized by the per-entry mutex.
type Manager struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	now       func() time.Time
	log       *slog.Logger
	boardSize int
}

// NewManager creates an empty registry. boardSize sets the bound on stone
// coordinates for every game it opens; 0 falls back to the default
// BoardSize (15x15).
func NewManager(boardSize int, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if boardSize <= 0 {
		boardSize = BoardSize
	}
	return &Manager{
		entries:   make(map[string]*entry),
		now:       time.Now,
		log:       log.With("tag", "swap2"),
		boardSize: boardSize,
	}
}

func (m *Manager) getEntry(gameID string) (*entry, bool) {
	m.mu.RLock()
	e, ok := m.entries[gameID]
	m.mu.RUnlock()
	return e, ok
}

// InitializeSwap2 creates fresh state with phase=placement, activePlayer=p1,
// stoneCount=0. Fails InvalidArgument (modeled as ValidationError) if p1==p2.
func (m *Manager) InitializeSwap2(gameID, p1, p2 string) (*State, error) {
	if p1 == p2 {
		return nil, apperr.New(apperr.Validation, "player1Id and player2Id must differ")
	}
	st := &State{
		GameID:         gameID,
		Player1ID:      p1,
		Player2ID:      p2,
		Phase:          PhasePlacement,
		ActivePlayerID: p1,
	}
	e := &entry{state: st}
	m.mu.Lock()
	m.entries[gameID] = e
	m.mu.Unlock()
	m.log.Info("initialized swap2", "gameId", gameID, "player1", p1, "player2", p2)
	return st.Clone(), nil
}

// GetState returns the current state for gameID, or false if absent.
func (m *Manager) GetState(gameID string) (*State, bool) {
	e, ok := m.getEntry(gameID)
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone(), true
}

// ClearState removes gameID from the registry. No-op if absent.
func (m *Manager) ClearState(gameID string) {
	m.mu.Lock()
	delete(m.entries, gameID)
	m.mu.Unlock()
}

// PlaceStone appends a tentative stone placement, validating actor, bounds,
// and occupancy, then advances the phase once the 3rd or 5th stone lands.
func (m *Manager) PlaceStone(gameID, playerID string, x, y int) (*State, error) {
	e, ok := m.getEntry(gameID)
	if !ok {
		return nil, apperr.New(apperr.NotFound, "no swap2 state for game %s", gameID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state

	if st.Phase != PhasePlacement && st.Phase != PhaseExtra {
		return nil, apperr.New(apperr.InvalidState, "cannot place a stone in phase %s", st.Phase)
	}
	if playerID != st.ActivePlayerID {
		return nil, apperr.New(apperr.InvalidActor, "player %s is not the active player", playerID)
	}
	if x < 0 || x >= m.boardSize || y < 0 || y >= m.boardSize {
		return nil, apperr.New(apperr.InvalidPos, "coordinates (%d,%d) out of bounds", x, y)
	}
	for _, s := range st.TentativeStones {
		if s.X == x && s.Y == y {
			return nil, apperr.New(apperr.InvalidPos, "position (%d,%d) already occupied", x, y)
		}
	}

	stone := Stone{
		X:               x,
		Y:               y,
		PlacedBy:        playerID,
		PlacementOrder:  len(st.TentativeStones) + 1,
		PhaseWhenPlaced: st.Phase,
	}
	st.TentativeStones = append(st.TentativeStones, stone)
	st.Actions = append(st.Actions, ActionEntry{
		Type:      "place_stone",
		Actor:     playerID,
		Payload:   stone,
		Timestamp: m.now(),
	})

	switch len(st.TentativeStones) {
	case 3:
		st.Phase = PhaseChoice
		st.ActivePlayerID = st.Player2ID
	case 5:
		st.Phase = PhaseFinalChoice
		st.ActivePlayerID = st.Player1ID
	}

	m.log.Debug("stone placed", "gameId", gameID, "player", playerID, "x", x, "y", y, "phase", st.Phase)
	return st.Clone(), nil
}

// MakeChoice resolves a choice or final_choice action: the chooser takes
// the named color (place_more is only valid from the choice phase).
func (m *Manager) MakeChoice(gameID, playerID string, choice Color) (*State, error) {
	e, ok := m.getEntry(gameID)
	if !ok {
		return nil, apperr.New(apperr.NotFound, "no swap2 state for game %s", gameID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state

	switch st.Phase {
	case PhaseChoice:
		if playerID != st.Player2ID {
			return nil, apperr.New(apperr.InvalidActor, "only player2 chooses in the choice phase")
		}
		switch choice {
		case Black, White:
			m.assignColors(st, playerID, choice)
		case PlaceMore:
			st.Phase = PhaseExtra
			st.ActivePlayerID = st.Player2ID
		default:
			return nil, apperr.New(apperr.Validation, "unknown choice %q", choice)
		}
	case PhaseFinalChoice:
		if playerID != st.Player1ID {
			return nil, apperr.New(apperr.InvalidActor, "only player1 chooses in the final_choice phase")
		}
		switch choice {
		case Black, White:
			m.assignColors(st, playerID, choice)
		case PlaceMore:
			return nil, apperr.New(apperr.InvalidState, "place_more is not allowed in final_choice")
		default:
			return nil, apperr.New(apperr.Validation, "unknown choice %q", choice)
		}
	default:
		return nil, apperr.New(apperr.InvalidState, "cannot make a choice in phase %s", st.Phase)
	}

	st.Actions = append(st.Actions, ActionEntry{
		Type:      "choice",
		Actor:     playerID,
		Payload:   choice,
		Timestamp: m.now(),
	})

	m.log.Debug("choice made", "gameId", gameID, "player", playerID, "choice", choice, "phase", st.Phase)
	return st.Clone(), nil
}

// assignColors resolves a black/white choice into final color assignments:
// chooser takes the color they name, the other player takes the rest. Used
// from both the choice and final_choice phases.
func (m *Manager) assignColors(st *State, chooser string, choice Color) {
	opponent := st.Player1ID
	if chooser == st.Player1ID {
		opponent = st.Player2ID
	}
	black, white := chooser, opponent
	if choice == White {
		black, white = opponent, chooser
	}
	st.BlackPlayerID = &black
	st.WhitePlayerID = &white
	st.Phase = PhaseComplete
	finalChoice := choice
	st.FinalChoice = &finalChoice
}

// IsComplete reports whether state has reached the terminal phase.
func IsComplete(state *State) bool {
	return state != nil && state.Phase == PhaseComplete
}

// GetFinalAssignments is defined only when state.Phase == complete.
func GetFinalAssignments(state *State) (Assignments, error) {
	if !IsComplete(state) {
		return Assignments{}, apperr.New(apperr.InvalidState, "swap2 state is not complete")
	}
	return Assignments{
		BlackPlayerID: *state.BlackPlayerID,
		WhitePlayerID: *state.WhitePlayerID,
		FirstMover:    *state.BlackPlayerID,
	}, nil
}

// GetSwap2History is undefined unless state.Phase == complete.
func GetSwap2History(state *State) (History, error) {
	assignments, err := GetFinalAssignments(state)
	if err != nil {
		return History{}, err
	}
	return History{
		Actions:         state.Actions,
		TentativeStones: state.TentativeStones,
		FinalChoice:     *state.FinalChoice,
		FinalAssignment: assignments,
	}, nil
}

// SerializeState produces a round-trippable representation of state.
func SerializeState(state *State) ([]byte, error) {
	return json.Marshal(state)
}

// DeserializeState is the inverse of SerializeState.
func DeserializeState(blob []byte) (*State, error) {
	var st State
	if err := json.Unmarshal(blob, &st); err != nil {
		return nil, apperr.New(apperr.Validation, "invalid swap2 state blob: %v", err)
	}
	return &st, nil
}

// RestoreStateForReconnection re-registers a previously serialized state
// under gameID, e.g. after a process restart or a disconnect/reconnect cycle
// that required the caller to persist and rehydrate it externally.
func (m *Manager) RestoreStateForReconnection(gameID string, blob []byte) (*State, error) {
	st, err := DeserializeState(blob)
	if err != nil {
		return nil, err
	}
	if st.GameID != gameID {
		st.GameID = gameID
	}
	e := &entry{state: st}
	m.mu.Lock()
	m.entries[gameID] = e
	m.mu.Unlock()
	return st.Clone(), nil
}
