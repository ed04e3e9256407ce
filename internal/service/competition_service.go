package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/trading-simulator/internal/config"
	apperrors "github.com/trading-simulator/internal/errors"
	"github.com/trading-simulator/internal/logging"
	"github.com/trading-simulator/internal/models"
	"github.com/trading-simulator/internal/storage"
	"github.com/trading-simulator/internal/types"
)

// CompetitionStore is the persistent competition/snapshot collaborator
type CompetitionStore interface {
	Create(ctx context.Context, competition *models.Competition) error
	Update(ctx context.Context, competition *models.Competition) error
	FindByID(ctx context.Context, id string) (*models.Competition, error)
	FindActive(ctx context.Context) (*models.Competition, error)
	AddTeamToCompetition(ctx context.Context, competitionID, teamID string) error
	GetCompetitionTeams(ctx context.Context, competitionID string) ([]string, error)
	CreatePortfolioSnapshot(ctx context.Context, snapshot *models.PortfolioSnapshot) error
	CreatePortfolioTokenValue(ctx context.Context, value *models.PortfolioTokenValue) error
	GetLatestPortfolioSnapshots(ctx context.Context, competitionID string) ([]*models.PortfolioSnapshot, error)
	GetTeamPortfolioSnapshots(ctx context.Context, competitionID, teamID string) ([]*models.PortfolioSnapshot, error)
	GetPortfolioTokenValues(ctx context.Context, snapshotID int64) ([]*models.PortfolioTokenValue, error)
}

// LeaderboardEntry is one ranked team
type LeaderboardEntry struct {
	TeamID string  `json:"teamId"`
	Value  float64 `json:"value"`
	// Live marks values computed on demand because no snapshot existed yet.
	Live bool `json:"live,omitempty"`
}

// CompetitionService owns the competition lifecycle, the single-active
// invariant, and periodic portfolio snapshots.
type CompetitionService struct {
	competitions CompetitionStore
	balances     BalanceStore
	price        *PriceService
	history      PriceHistoryStore
	cfg          config.CompetitionConfig
	logger       *logging.Logger

	mu       sync.Mutex
	activeID string // cached active competition, empty when none
}

// NewCompetitionService creates a competition manager
func NewCompetitionService(
	competitions CompetitionStore,
	balances BalanceStore,
	price *PriceService,
	history PriceHistoryStore,
	cfg config.CompetitionConfig,
) *CompetitionService {
	return &CompetitionService{
		competitions: competitions,
		balances:     balances,
		price:        price,
		history:      history,
		cfg:          cfg,
		logger:       logging.GetGlobalLogger().WithField("service", "competition"),
	}
}

// CreateCompetition creates a competition in the pending state
func (s *CompetitionService) CreateCompetition(ctx context.Context, name string) (*models.Competition, error) {
	if name == "" {
		return nil, apperrors.NewValidationError("INVALID_NAME", "competition name must not be empty")
	}

	competition := &models.Competition{
		Name:   name,
		Status: types.CompetitionPending,
	}
	if err := s.competitions.Create(ctx, competition); err != nil {
		return nil, apperrors.NewDatabaseError("create competition", err)
	}

	s.logger.WithField("competition", competition.ID).Info("competition created")
	return competition, nil
}

// StartCompetition transitions a pending competition to active with the given
// participants. Every team's balances are reset to the configured initial
// allocation and an initial snapshot is taken.
func (s *CompetitionService) StartCompetition(ctx context.Context, id string, teamIDs []string) (*models.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	competition, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find competition", err)
	}
	if competition == nil {
		return nil, apperrors.NewNotFoundError("competition", id)
	}
	if competition.Status != types.CompetitionPending {
		return nil, apperrors.NewConflictError("COMPETITION_NOT_PENDING",
			fmt.Sprintf("competition %s is %s, only pending competitions can start", id, competition.Status))
	}
	if len(teamIDs) == 0 {
		return nil, apperrors.NewValidationError("NO_TEAMS", "at least one team is required to start a competition")
	}

	active, err := s.competitions.FindActive(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find active competition", err)
	}
	if active != nil {
		return nil, apperrors.NewConflictError("COMPETITION_ALREADY_ACTIVE",
			fmt.Sprintf("competition %s is already active", active.ID))
	}

	for _, teamID := range teamIDs {
		if err := s.balances.ResetTeamBalances(ctx, teamID, s.cfg.InitialBalances); err != nil {
			return nil, apperrors.NewDatabaseError("reset team balances", err)
		}
		if err := s.competitions.AddTeamToCompetition(ctx, id, teamID); err != nil {
			return nil, apperrors.NewDatabaseError("register team", err)
		}
	}

	now := time.Now().UTC()
	competition.Status = types.CompetitionActive
	competition.StartDate = &now
	if err := s.competitions.Update(ctx, competition); err != nil {
		// The storage-level unique constraint is the authoritative guard
		// against two concurrent starts.
		if errors.Is(err, storage.ErrActiveCompetitionExists) {
			return nil, apperrors.NewConflictError("COMPETITION_ALREADY_ACTIVE",
				"another competition is already active")
		}
		return nil, apperrors.NewDatabaseError("activate competition", err)
	}

	s.activeID = competition.ID
	s.logger.WithFields(map[string]interface{}{
		"competition": competition.ID,
		"teams":       len(teamIDs),
	}).Info("competition started")

	if err := s.TakePortfolioSnapshots(ctx, competition.ID); err != nil {
		s.logger.WithError(err).Warn("initial snapshot failed")
	}

	return competition, nil
}

// EndCompetition transitions the active competition to completed after taking
// a final snapshot.
func (s *CompetitionService) EndCompetition(ctx context.Context, id string) (*models.Competition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	competition, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find competition", err)
	}
	if competition == nil {
		return nil, apperrors.NewNotFoundError("competition", id)
	}
	if competition.Status != types.CompetitionActive {
		return nil, apperrors.NewConflictError("COMPETITION_NOT_ACTIVE",
			fmt.Sprintf("competition %s is %s, only the active competition can end", id, competition.Status))
	}
	if s.activeID != "" && s.activeID != id {
		return nil, apperrors.NewConflictError("COMPETITION_NOT_ACTIVE",
			fmt.Sprintf("competition %s is not the cached active competition", id))
	}

	if err := s.TakePortfolioSnapshots(ctx, id); err != nil {
		s.logger.WithError(err).Warn("final snapshot failed")
	}

	now := time.Now().UTC()
	competition.Status = types.CompetitionCompleted
	competition.EndDate = &now
	if err := s.competitions.Update(ctx, competition); err != nil {
		return nil, apperrors.NewDatabaseError("complete competition", err)
	}

	s.activeID = ""
	s.logger.WithField("competition", id).Info("competition ended")
	return competition, nil
}

// GetCompetition returns a competition by ID
func (s *CompetitionService) GetCompetition(ctx context.Context, id string) (*models.Competition, error) {
	competition, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		return nil, apperrors.NewDatabaseError("find competition", err)
	}
	if competition == nil {
		return nil, apperrors.NewNotFoundError("competition", id)
	}
	return competition, nil
}

// GetActiveCompetition returns the active competition, or nil when none is
func (s *CompetitionService) GetActiveCompetition(ctx context.Context) (*models.Competition, error) {
	return s.competitions.FindActive(ctx)
}

// TakePortfolioSnapshots values every participating team's holdings and
// persists one snapshot per team plus one row per priced token. Unpriced
// tokens are excluded from the total and logged, never fatal.
func (s *CompetitionService) TakePortfolioSnapshots(ctx context.Context, competitionID string) error {
	teams, err := s.competitions.GetCompetitionTeams(ctx, competitionID)
	if err != nil {
		return apperrors.NewDatabaseError("get competition teams", err)
	}

	for _, teamID := range teams {
		if err := s.snapshotTeam(ctx, competitionID, teamID); err != nil {
			s.logger.WithError(err).WithField("team", teamID).Warn("failed to snapshot team")
		}
	}
	return nil
}

func (s *CompetitionService) snapshotTeam(ctx context.Context, competitionID, teamID string) error {
	balances, err := s.balances.GetAllBalances(ctx, teamID)
	if err != nil {
		return fmt.Errorf("failed to read balances: %w", err)
	}

	type pricedHolding struct {
		balance *models.Balance
		price   *models.Price
	}

	var holdings []pricedHolding
	var totalValue float64
	for _, balance := range balances {
		if balance.Amount <= 0 {
			continue
		}
		price := s.snapshotPrice(ctx, balance.Token)
		if price == nil {
			s.logger.WithFields(map[string]interface{}{
				"team":  teamID,
				"token": balance.Token,
			}).Warn("token unpriced, excluded from snapshot")
			continue
		}
		holdings = append(holdings, pricedHolding{balance: balance, price: price})
		totalValue += balance.Amount * price.Price
	}

	snapshot := &models.PortfolioSnapshot{
		TeamID:        teamID,
		CompetitionID: competitionID,
		Timestamp:     time.Now().UTC(),
		TotalValue:    totalValue,
	}
	if err := s.competitions.CreatePortfolioSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to persist snapshot: %w", err)
	}

	for _, h := range holdings {
		value := &models.PortfolioTokenValue{
			SnapshotID:    snapshot.ID,
			Token:         h.balance.Token,
			Amount:        h.balance.Amount,
			Price:         h.price.Price,
			ValueUSD:      h.balance.Amount * h.price.Price,
			SpecificChain: h.price.SpecificChain,
		}
		if err := s.competitions.CreatePortfolioTokenValue(ctx, value); err != nil {
			s.logger.WithError(err).WithField("token", h.balance.Token).Warn("failed to persist token value")
		}
	}

	return nil
}

// snapshotPrice resolves a price for snapshot purposes with the reuse
// optimization: a fresh-enough history record is reused outright; a known
// specific network is passed on as a hint to skip chain discovery; otherwise
// a full resolve runs.
func (s *CompetitionService) snapshotPrice(ctx context.Context, token string) *models.Price {
	latest, err := s.history.GetLatestPrice(ctx, token)
	if err != nil {
		s.logger.WithError(err).WithField("token", token).Debug("history lookup failed during snapshot")
	}

	if latest != nil && time.Since(latest.Timestamp) < s.cfg.PriceFreshness {
		return latest
	}

	var family types.ChainFamily
	var specific types.SpecificChain
	if latest != nil && latest.SpecificChain != "" {
		specific = latest.SpecificChain
		family = types.FamilyOf(specific)
	}

	price, err := s.price.GetPrice(ctx, token, family, specific)
	if err != nil || price == nil {
		return nil
	}
	return price
}

// GetLeaderboard ranks teams by portfolio value, descending. The most recent
// snapshot per team is preferred; before any snapshots exist, live portfolio
// values are computed on demand.
func (s *CompetitionService) GetLeaderboard(ctx context.Context, competitionID string) ([]*LeaderboardEntry, error) {
	snapshots, err := s.competitions.GetLatestPortfolioSnapshots(ctx, competitionID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get latest snapshots", err)
	}

	var entries []*LeaderboardEntry
	if len(snapshots) > 0 {
		for _, snapshot := range snapshots {
			entries = append(entries, &LeaderboardEntry{
				TeamID: snapshot.TeamID,
				Value:  snapshot.TotalValue,
			})
		}
	} else {
		teams, err := s.competitions.GetCompetitionTeams(ctx, competitionID)
		if err != nil {
			return nil, apperrors.NewDatabaseError("get competition teams", err)
		}
		for _, teamID := range teams {
			entries = append(entries, &LeaderboardEntry{
				TeamID: teamID,
				Value:  s.liveValue(ctx, teamID),
				Live:   true,
			})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	return entries, nil
}

// liveValue computes a team's current portfolio value, skipping unpriced
// tokens.
func (s *CompetitionService) liveValue(ctx context.Context, teamID string) float64 {
	balances, err := s.balances.GetAllBalances(ctx, teamID)
	if err != nil {
		s.logger.WithError(err).WithField("team", teamID).Warn("failed to read balances for live valuation")
		return 0
	}

	var total float64
	for _, balance := range balances {
		if balance.Amount <= 0 {
			continue
		}
		price, err := s.price.GetPrice(ctx, balance.Token, "", "")
		if err != nil || price == nil {
			continue
		}
		total += balance.Amount * price.Price
	}
	return total
}

// GetTeamSnapshots returns one team's snapshot series in a competition
func (s *CompetitionService) GetTeamSnapshots(ctx context.Context, competitionID, teamID string) ([]*models.PortfolioSnapshot, error) {
	snapshots, err := s.competitions.GetTeamPortfolioSnapshots(ctx, competitionID, teamID)
	if err != nil {
		return nil, apperrors.NewDatabaseError("get team snapshots", err)
	}
	return snapshots, nil
}
