package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mchmarny/bowler/pkg/data"
	"github.com/mchmarny/bowler/pkg/game"
	"github.com/mchmarny/bowler/pkg/score"
)

const (
	maxRequestBytes = 1 << 16
	maxListLimit    = 500
)

type gameService interface {
	Start(ctx context.Context) (*data.Game, error)
	Get(ctx context.Context, id int64) (*game.View, error)
	List(ctx context.Context, limit int) ([]*data.Game, error)
	Score(ctx context.Context, id int64, rolls []int) (score.GameState, error)
}

type startGameResponse struct {
	Success bool   `json:"success"`
	GameID  int64  `json:"game_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type scoreRequest struct {
	GameID int64 `json:"game_id"`
	Rolls  []any `json:"rolls"`
}

type scoreResponse struct {
	Success   bool             `json:"success"`
	GameState *score.GameState `json:"game_state,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func healthAPIHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func startGameAPIHandler(svc gameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := svc.Start(r.Context())
		if err != nil {
			slog.Error("failed to start game", "error", err)
			writeJSON(w, http.StatusInternalServerError, startGameResponse{Error: "error starting game"})
			return
		}
		writeJSON(w, http.StatusOK, startGameResponse{Success: true, GameID: g.ID})
	}
}

func calculateScoreAPIHandler(svc gameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
		dec.UseNumber()

		var req scoreRequest
		if err := dec.Decode(&req); err != nil {
			slog.Debug("error decoding score request", "error", err)
			writeJSON(w, http.StatusBadRequest, scoreResponse{Error: "invalid request body"})
			return
		}

		rolls, err := parseJSONRolls(req.Rolls)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, scoreResponse{Error: err.Error()})
			return
		}

		state, err := svc.Score(r.Context(), req.GameID, rolls)
		if err != nil {
			if errors.Is(err, score.ErrInvalidRoll) {
				writeJSON(w, http.StatusBadRequest, scoreResponse{Error: err.Error()})
				return
			}
			slog.Error("failed to score rolls", "game", req.GameID, "error", err)
			writeJSON(w, http.StatusInternalServerError, scoreResponse{Error: "error scoring rolls"})
			return
		}

		slog.Debug("rolls scored", "game", req.GameID, "rolls", len(rolls), "total", state.TotalScore, "over", state.GameOver)
		writeJSON(w, http.StatusOK, scoreResponse{Success: true, GameState: &state})
	}
}

func listGamesAPIHandler(svc gameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryParamInt(r, "limit", data.ListLimitDefault)
		list, err := svc.List(r.Context(), limit)
		if err != nil {
			slog.Error("failed to list games", "error", err)
			writeError(w, http.StatusInternalServerError, "error listing games")
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func getGameAPIHandler(svc gameService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseGameID(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		v, err := svc.Get(r.Context(), id)
		if err != nil {
			if game.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "game not found")
				return
			}
			slog.Error("failed to get game", "game", id, "error", err)
			writeError(w, http.StatusInternalServerError, "error getting game")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

// parseJSONRolls accepts only integral JSON numbers; strings, booleans,
// fractions, and nulls are invalid rolls.
func parseJSONRolls(vals []any) ([]int, error) {
	rolls := make([]int, 0, len(vals))
	for i, v := range vals {
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: roll %d is not a number", score.ErrInvalidRoll, i+1)
		}
		r, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("%w: roll %d is not a whole number: %s", score.ErrInvalidRoll, i+1, n)
		}
		if r < 0 || r > score.MaxPins {
			return nil, fmt.Errorf("%w: roll %d is %d, must be between 0 and %d", score.ErrInvalidRoll, i+1, r, score.MaxPins)
		}
		rolls = append(rolls, int(r))
	}
	return rolls, nil
}

func queryParamInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Debug("error converting query string to int", "value", v, "error", err)
		return def
	}

	if i < 1 || i > maxListLimit {
		return def
	}

	return i
}
