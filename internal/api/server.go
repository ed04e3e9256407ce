// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/trading-simulator/internal/logging"
	"github.com/trading-simulator/internal/models"
	"github.com/trading-simulator/internal/service"
	"github.com/trading-simulator/internal/types"
)

// Service interfaces for dependency injection and testing

// PriceServiceInterface defines the interface for price resolution operations
type PriceServiceInterface interface {
	GetPrice(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) (*models.Price, error)
	GetTokenInfo(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) (*models.TokenInfo, error)
	GetPriceHistory(ctx context.Context, token string, hours int, allowSynthetic bool) ([]*models.PricePoint, error)
	IsSupported(ctx context.Context, token string) bool
}

// TradeServiceInterface defines the interface for trade operations
type TradeServiceInterface interface {
	ExecuteTrade(ctx context.Context, input *service.ExecuteTradeInput) (*service.TradeResult, error)
	GetTeamTrades(ctx context.Context, teamID string, limit int) ([]*models.Trade, error)
	GetCompetitionTrades(ctx context.Context, competitionID string, limit int) ([]*models.Trade, error)
}

// CompetitionServiceInterface defines the interface for competition operations
type CompetitionServiceInterface interface {
	CreateCompetition(ctx context.Context, name string) (*models.Competition, error)
	StartCompetition(ctx context.Context, id string, teamIDs []string) (*models.Competition, error)
	EndCompetition(ctx context.Context, id string) (*models.Competition, error)
	GetCompetition(ctx context.Context, id string) (*models.Competition, error)
	GetActiveCompetition(ctx context.Context) (*models.Competition, error)
	GetLeaderboard(ctx context.Context, competitionID string) ([]*service.LeaderboardEntry, error)
	GetTeamSnapshots(ctx context.Context, competitionID, teamID string) ([]*models.PortfolioSnapshot, error)
}

// BalanceReader defines the read-only balance access handlers need
type BalanceReader interface {
	GetAllBalances(ctx context.Context, teamID string) ([]*models.Balance, error)
}

// Server represents the HTTP API server.
type Server struct {
	router             *mux.Router
	httpServer         *http.Server
	priceService       PriceServiceInterface
	tradeService       TradeServiceInterface
	competitionService CompetitionServiceInterface
	balances           BalanceReader
	config             *ServerConfig
	logger             *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	priceService PriceServiceInterface,
	tradeService TradeServiceInterface,
	competitionService CompetitionServiceInterface,
	balances BalanceReader,
) *Server {
	s := &Server{
		router:             mux.NewRouter(),
		priceService:       priceService,
		tradeService:       tradeService,
		competitionService: competitionService,
		balances:           balances,
		config:             config,
		logger:             logging.GetGlobalLogger().WithField("component", "api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	// Set up middleware (order matters!)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()

	// Price endpoints
	api.HandleFunc("/price", s.handleGetPrice).Methods("GET")
	api.HandleFunc("/price/token-info", s.handleGetTokenInfo).Methods("GET")
	api.HandleFunc("/price/history", s.handleGetPriceHistory).Methods("GET")

	// Trade endpoints
	api.HandleFunc("/trade/execute", s.handleExecuteTrade).Methods("POST")

	// Competition endpoints
	api.HandleFunc("/competitions", s.handleCreateCompetition).Methods("POST")
	api.HandleFunc("/competitions/active", s.handleGetActiveCompetition).Methods("GET")
	api.HandleFunc("/competitions/{id}", s.handleGetCompetition).Methods("GET")
	api.HandleFunc("/competitions/{id}/start", s.handleStartCompetition).Methods("POST")
	api.HandleFunc("/competitions/{id}/end", s.handleEndCompetition).Methods("POST")
	api.HandleFunc("/competitions/{id}/leaderboard", s.handleGetLeaderboard).Methods("GET")
	api.HandleFunc("/competitions/{id}/trades", s.handleGetCompetitionTrades).Methods("GET")

	// Team endpoints
	api.HandleFunc("/teams/{teamId}/trades", s.handleGetTeamTrades).Methods("GET")
	api.HandleFunc("/teams/{teamId}/balances", s.handleGetTeamBalances).Methods("GET")
	api.HandleFunc("/teams/{teamId}/snapshots", s.handleGetTeamSnapshots).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "trading-simulator",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the underlying router for tests
func (s *Server) Router() http.Handler {
	return s.router
}
