// Package series implements the best-of-three series lifecycle: score
// tallying, game sequencing, rematch handshakes, and completion with
// rating-impact fields. It composes swap2 for each game's opening and is in
// turn composed by the disconnect watchdog.
package series

import "matchengine/swap2"

// GamesToWin is the default win threshold, 2 (first to two wins takes the
// series); NewManager uses it when passed 0.
const GamesToWin = 2

// StandardLossMP is the MP change recorded for the loser of a normally
// completed series.
const StandardLossMP = -15

// AbandonPenaltyMP is the additional MP penalty folded into an abandon's
// loserMpChange, on top of StandardLossMP.
const AbandonPenaltyMP = -10

// Status is the lifecycle stage of a Series.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Series is the Bo3 record for a pair of players. It persists across
// termination for historical query; Saver/Finder own its
// storage, the manager only mutates the in-memory value it is handed.
type Series struct {
	ID                 string       `json:"id"`
	Player1ID          string       `json:"player1_id"`
	Player2ID          string       `json:"player2_id"`
	Player1InitialMP   int          `json:"player1_initial_mp"`
	Player2InitialMP   int          `json:"player2_initial_mp"`
	Player1InitialRank string       `json:"player1_initial_rank"`
	Player2InitialRank string       `json:"player2_initial_rank"`
	Player1Side        string       `json:"player1_side"`
	Player2Side        string       `json:"player2_side"`
	Player1Wins        int          `json:"player1_wins"`
	Player2Wins        int          `json:"player2_wins"`
	GamesToWin         int          `json:"games_to_win"`
	CurrentGame        int          `json:"current_game"`
	Status             Status       `json:"status"`
	WinnerID           *string      `json:"winner_id,omitempty"`
	LoserID            *string      `json:"loser_id,omitempty"`
	FinalScore         *string      `json:"final_score,omitempty"`
	CreatedAt          int64        `json:"created_at"`
	StartedAt          int64        `json:"started_at"`
	EndedAt            *int64       `json:"ended_at,omitempty"`
	LoserMPChange      *int         `json:"loser_mp_change,omitempty"`
	GameID             string       `json:"game_id"`
	Swap2State         *swap2.State `json:"swap2_state,omitempty"`
}

// Opponent returns the player id other than playerID, or "" if playerID is
// not a participant.
func (s *Series) Opponent(playerID string) string {
	switch playerID {
	case s.Player1ID:
		return s.Player2ID
	case s.Player2ID:
		return s.Player1ID
	default:
		return ""
	}
}

// IsParticipant reports whether playerID is one of the two series players.
func (s *Series) IsParticipant(playerID string) bool {
	return playerID == s.Player1ID || playerID == s.Player2ID
}

// WinsFor returns the current win counter for playerID, or -1 if playerID is
// not a participant.
func (s *Series) WinsFor(playerID string) int {
	switch playerID {
	case s.Player1ID:
		return s.Player1Wins
	case s.Player2ID:
		return s.Player2Wins
	default:
		return -1
	}
}
