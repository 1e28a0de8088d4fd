// Package api exposes the match engine over HTTP: series lifecycle,
// rematch handshakes, and the disconnect watchdog. Swap2 placement/choice
// actions ride the same router so a game can be played without a
// websocket connection.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"matchengine/apperr"
	"matchengine/auth"
	"matchengine/config"
	"matchengine/disconnect"
	"matchengine/series"
	"matchengine/swap2"
	"matchengine/ws"
)

const bearerPrefix = "Bearer "

// Handler holds the collaborators every route needs.
type Handler struct {
	cfg        *config.Config
	seriesMgr  *series.Manager
	swap2Mgr   *swap2.Manager
	disconnect *disconnect.Handler
	hub        *ws.Hub
	log        *slog.Logger
}

// NewHandler wires an API handler against the engine's managers.
func NewHandler(cfg *config.Config, seriesMgr *series.Manager, swap2Mgr *swap2.Manager, disc *disconnect.Handler, hub *ws.Hub, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		cfg:        cfg,
		seriesMgr:  seriesMgr,
		swap2Mgr:   swap2Mgr,
		disconnect: disc,
		hub:        hub,
		log:        log.With("tag", "api"),
	}
}

// Router builds the chi mux for every engine route.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(h.corsMiddleware)

	r.Post("/series", h.CreateSeries)
	r.Get("/series/{id}", h.GetSeries)
	r.Post("/series/{id}/end-game", h.EndGame)
	r.Post("/series/{id}/rematch", h.Rematch)
	r.Post("/series/{id}/disconnect", h.Disconnect)
	r.Post("/series/{id}/reconnect", h.Reconnect)
	r.Post("/series/{id}/swap2/place-stone", h.PlaceStone)
	r.Post("/series/{id}/swap2/choice", h.MakeChoice)

	return r
}

// corsMiddleware sets permissive CORS headers and short-circuits preflight
// OPTIONS requests before they reach a route handler.
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// extractUserID validates the Authorization header and returns the user id,
// or "" if absent/invalid.
func (h *Handler) extractUserID(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return ""
	}
	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	claims, err := auth.ValidateSessionToken(h.cfg.AuthBaseURL, token)
	if err != nil {
		return ""
	}
	return auth.UserIDFromClaims(claims)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeErr maps an apperr.Kind to its HTTP status and writes the body.
func writeErr(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
		return
	}
	status := http.StatusInternalServerError
	switch ae.Kind {
	case apperr.Validation:
		status = http.StatusUnprocessableEntity
	case apperr.NotFound:
		status = http.StatusNotFound
	case apperr.InvalidState:
		status = http.StatusBadRequest
	case apperr.InvalidActor, apperr.InvalidPos:
		status = http.StatusBadRequest
	case apperr.Unauthorized:
		status = http.StatusForbidden
	}
	writeJSON(w, status, errorBody{Error: string(ae.Kind)})
}

// broadcastSeries pushes the current state to every subscriber, if a hub is
// wired. Handlers that mutate a series call this after a successful save.
func (h *Handler) broadcastSeries(s *series.Series) {
	if h.hub != nil {
		h.hub.Broadcast(s)
	}
}

type createSeriesRequest struct {
	Player1ID string `json:"player1_id"`
	Player2ID string `json:"player2_id"`
}

// CreateSeries handles POST /series.
func (h *Handler) CreateSeries(w http.ResponseWriter, r *http.Request) {
	var req createSeriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: string(apperr.Validation)})
		return
	}
	s, err := h.seriesMgr.CreateSeries(r.Context(), req.Player1ID, req.Player2ID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.broadcastSeries(s)
	writeJSON(w, http.StatusCreated, s)
}

type seriesStateResponse struct {
	Series     *series.Series `json:"series"`
	IsComplete bool           `json:"is_complete"`
}

// GetSeries handles GET /series/{id}.
func (h *Handler) GetSeries(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, isComplete, err := h.seriesMgr.GetSeriesState(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seriesStateResponse{Series: s, IsComplete: isComplete})
}

type endGameRequest struct {
	MatchID  string `json:"match_id"`
	WinnerID string `json:"winner_id"`
	Duration int    `json:"duration"`
}

type endGameResponse struct {
	Series        *series.Series `json:"series"`
	IsComplete    bool           `json:"is_complete"`
	NextGameReady bool           `json:"next_game_ready,omitempty"`
}

// EndGame handles POST /series/{id}/end-game.
func (h *Handler) EndGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req endGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: string(apperr.Validation)})
		return
	}
	result, err := h.seriesMgr.EndGame(r.Context(), id, req.WinnerID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.broadcastSeries(result.Series)
	writeJSON(w, http.StatusOK, endGameResponse{
		Series:        result.Series,
		IsComplete:    result.IsComplete,
		NextGameReady: result.NextGameReady,
	})
}

type rematchRequest struct {
	PlayerID string `json:"player_id"`
}

type rematchResponse struct {
	RematchAccepted   bool           `json:"rematch_accepted"`
	WaitingForOpponent bool          `json:"waiting_for_opponent,omitempty"`
	NewSeries         *series.Series `json:"new_series,omitempty"`
}

// Rematch handles POST /series/{id}/rematch.
func (h *Handler) Rematch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req rematchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: string(apperr.Validation)})
		return
	}
	waiting, fresh, err := h.seriesMgr.RequestRematch(r.Context(), id, req.PlayerID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if fresh != nil {
		h.broadcastSeries(fresh)
	}
	writeJSON(w, http.StatusOK, rematchResponse{
		RematchAccepted:    !waiting,
		WaitingForOpponent: waiting,
		NewSeries:          fresh,
	})
}

type playerRequest struct {
	PlayerID string `json:"player_id"`
}

// Disconnect handles POST /series/{id}/disconnect.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: string(apperr.Validation)})
		return
	}
	if _, _, err := h.seriesMgr.GetSeriesState(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	status := h.disconnect.HandleDisconnect(id, req.PlayerID)
	writeJSON(w, http.StatusOK, status)
}

// Reconnect handles POST /series/{id}/reconnect.
func (h *Handler) Reconnect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req playerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: string(apperr.Validation)})
		return
	}
	if _, _, err := h.seriesMgr.GetSeriesState(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	ok := h.disconnect.HandleReconnect(id, req.PlayerID)
	writeJSON(w, http.StatusOK, ok)
}

type placeStoneRequest struct {
	PlayerID string `json:"player_id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

// PlaceStone handles POST /series/{id}/swap2/place-stone. The game id is
// resolved from the series' current game, so callers only need the series id.
func (h *Handler) PlaceStone(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req placeStoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: string(apperr.Validation)})
		return
	}
	s, _, err := h.seriesMgr.GetSeriesState(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	st, err := h.swap2Mgr.PlaceStone(s.GameID, req.PlayerID, req.X, req.Y)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type makeChoiceRequest struct {
	PlayerID string      `json:"player_id"`
	Choice   swap2.Color `json:"choice"`
}

// MakeChoice handles POST /series/{id}/swap2/choice.
func (h *Handler) MakeChoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req makeChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: string(apperr.Validation)})
		return
	}
	s, _, err := h.seriesMgr.GetSeriesState(r.Context(), id)
	if err != nil {
		writeErr(w, err)
		return
	}
	st, err := h.swap2Mgr.MakeChoice(s.GameID, req.PlayerID, req.Choice)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
