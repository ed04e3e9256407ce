package api

import (
	"net/http"
	"strconv"

	"github.com/trading-simulator/internal/types"
)

// handleGetPrice handles GET /api/price
func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "token is required", nil)
		return
	}

	family := types.ChainFamily(r.URL.Query().Get("chain"))
	specific := types.SpecificChain(r.URL.Query().Get("specificChain"))

	price, err := s.priceService.GetPrice(r.Context(), token, family, specific)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if price == nil {
		respondError(w, http.StatusNotFound, "PRICE_NOT_FOUND", "no price available for token", map[string]interface{}{
			"token": token,
		})
		return
	}

	respondJSON(w, http.StatusOK, price)
}

// handleGetTokenInfo handles GET /api/price/token-info
func (s *Server) handleGetTokenInfo(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "token is required", nil)
		return
	}

	family := types.ChainFamily(r.URL.Query().Get("chain"))
	specific := types.SpecificChain(r.URL.Query().Get("specificChain"))

	info, err := s.priceService.GetTokenInfo(r.Context(), token, family, specific)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if info == nil {
		respondError(w, http.StatusNotFound, "PRICE_NOT_FOUND", "no price available for token", map[string]interface{}{
			"token": token,
		})
		return
	}

	respondJSON(w, http.StatusOK, info)
}

// handleGetPriceHistory handles GET /api/price/history
func (s *Server) handleGetPriceHistory(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "token is required", nil)
		return
	}

	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "hours must be a positive integer", nil)
			return
		}
		hours = parsed
	}

	points, err := s.priceService.GetPriceHistory(r.Context(), token, hours, true)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":   token,
		"hours":   hours,
		"history": points,
	})
}
