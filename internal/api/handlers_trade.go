package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/trading-simulator/internal/service"
)

// ExecuteTradeRequest is the body of POST /api/trade/execute
type ExecuteTradeRequest struct {
	TeamID        string   `json:"teamId"`
	CompetitionID string   `json:"competitionId"`
	FromToken     string   `json:"fromToken"`
	ToToken       string   `json:"toToken"`
	FromAmount    float64  `json:"fromAmount"`
	Slippage      *float64 `json:"slippage,omitempty"`
}

// handleExecuteTrade handles POST /api/trade/execute
func (s *Server) handleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	var req ExecuteTradeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body", nil)
		return
	}
	if req.TeamID == "" || req.FromToken == "" || req.ToToken == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "teamId, fromToken and toToken are required", nil)
		return
	}
	if req.FromToken == req.ToToken {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "fromToken and toToken must differ", nil)
		return
	}
	if req.FromAmount <= 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "fromAmount must be positive", nil)
		return
	}
	if req.Slippage != nil && (*req.Slippage < 0 || *req.Slippage >= 1) {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "slippage must be in [0, 1)", nil)
		return
	}

	competitionID := req.CompetitionID
	if competitionID == "" {
		active, err := s.competitionService.GetActiveCompetition(r.Context())
		if err != nil {
			respondServiceError(w, err)
			return
		}
		if active == nil {
			respondError(w, http.StatusConflict, "NO_ACTIVE_COMPETITION", "no competition is currently active", nil)
			return
		}
		competitionID = active.ID
	}

	result, err := s.tradeService.ExecuteTrade(r.Context(), &service.ExecuteTradeInput{
		TeamID:        req.TeamID,
		CompetitionID: competitionID,
		FromToken:     req.FromToken,
		ToToken:       req.ToToken,
		FromAmount:    req.FromAmount,
		Slippage:      req.Slippage,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	// Rejected trades are a normal outcome, not an HTTP error.
	respondJSON(w, http.StatusOK, result)
}

// handleGetTeamTrades handles GET /api/teams/:teamId/trades
func (s *Server) handleGetTeamTrades(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]
	if teamID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "teamId is required", nil)
		return
	}

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	trades, err := s.tradeService.GetTeamTrades(r.Context(), teamID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"teamId": teamID,
		"trades": trades,
	})
}

// handleGetCompetitionTrades handles GET /api/competitions/:id/trades
func (s *Server) handleGetCompetitionTrades(w http.ResponseWriter, r *http.Request) {
	competitionID := mux.Vars(r)["id"]

	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	trades, err := s.tradeService.GetCompetitionTrades(r.Context(), competitionID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"competitionId": competitionID,
		"trades":        trades,
	})
}

// handleGetTeamBalances handles GET /api/teams/:teamId/balances
func (s *Server) handleGetTeamBalances(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]
	if teamID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "teamId is required", nil)
		return
	}

	balances, err := s.balances.GetAllBalances(r.Context(), teamID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"teamId":   teamID,
		"balances": balances,
	})
}

// parseLimit reads the optional limit query parameter. A zero limit lets the
// repository default apply.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "limit must be a non-negative integer", nil)
		return 0, false
	}
	return limit, true
}
