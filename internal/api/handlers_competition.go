package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// CreateCompetitionRequest is the body of POST /api/competitions
type CreateCompetitionRequest struct {
	Name string `json:"name"`
}

// StartCompetitionRequest is the body of POST /api/competitions/:id/start
type StartCompetitionRequest struct {
	TeamIDs []string `json:"teamIds"`
}

// handleCreateCompetition handles POST /api/competitions
func (s *Server) handleCreateCompetition(w http.ResponseWriter, r *http.Request) {
	var req CreateCompetitionRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body", nil)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "name is required", nil)
		return
	}

	competition, err := s.competitionService.CreateCompetition(r.Context(), req.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, competition)
}

// handleStartCompetition handles POST /api/competitions/:id/start
func (s *Server) handleStartCompetition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req StartCompetitionRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid request body", nil)
		return
	}
	if len(req.TeamIDs) == 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "teamIds must not be empty", nil)
		return
	}

	competition, err := s.competitionService.StartCompetition(r.Context(), id, req.TeamIDs)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, competition)
}

// handleEndCompetition handles POST /api/competitions/:id/end
func (s *Server) handleEndCompetition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	competition, err := s.competitionService.EndCompetition(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, competition)
}

// handleGetCompetition handles GET /api/competitions/:id
func (s *Server) handleGetCompetition(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	competition, err := s.competitionService.GetCompetition(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, competition)
}

// handleGetActiveCompetition handles GET /api/competitions/active
func (s *Server) handleGetActiveCompetition(w http.ResponseWriter, r *http.Request) {
	competition, err := s.competitionService.GetActiveCompetition(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if competition == nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no competition is currently active", nil)
		return
	}

	respondJSON(w, http.StatusOK, competition)
}

// handleGetLeaderboard handles GET /api/competitions/:id/leaderboard
func (s *Server) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	entries, err := s.competitionService.GetLeaderboard(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"competitionId": id,
		"leaderboard":   entries,
	})
}

// handleGetTeamSnapshots handles GET /api/teams/:teamId/snapshots
func (s *Server) handleGetTeamSnapshots(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["teamId"]
	competitionID := r.URL.Query().Get("competitionId")
	if competitionID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "competitionId is required", nil)
		return
	}

	snapshots, err := s.competitionService.GetTeamSnapshots(r.Context(), competitionID, teamID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"teamId":        teamID,
		"competitionId": competitionID,
		"snapshots":     snapshots,
	})
}
