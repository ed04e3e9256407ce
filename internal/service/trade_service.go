package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trading-simulator/internal/config"
	"github.com/trading-simulator/internal/logging"
	"github.com/trading-simulator/internal/models"
)

// BalanceStore is the balance ledger collaborator
type BalanceStore interface {
	GetBalance(ctx context.Context, teamID, token string) (float64, error)
	GetAllBalances(ctx context.Context, teamID string) ([]*models.Balance, error)
	AddAmount(ctx context.Context, teamID, token string, amount float64) error
	SubtractAmount(ctx context.Context, teamID, token string, amount float64) error
	ResetTeamBalances(ctx context.Context, teamID string, allocation map[string]float64) error
}

// TradeStore is the trade record collaborator
type TradeStore interface {
	Create(ctx context.Context, trade *models.Trade) error
	GetTeamTrades(ctx context.Context, teamID string, limit int) ([]*models.Trade, error)
	GetCompetitionTrades(ctx context.Context, competitionID string, limit int) ([]*models.Trade, error)
	Count(ctx context.Context) (int64, error)
}

// Trade validation error messages, surfaced directly to users.
const (
	errAmountTooSmall      = "Trade amount too small"
	errInsufficientBalance = "Insufficient balance"
	errPriceUnavailable    = "Unable to determine price"
	errMaxTradeSize        = "Trade exceeds maximum trade size"
)

// maxSlippage bounds the modeled market impact for absurdly large trades.
const maxSlippage = 0.5

// ExecuteTradeInput describes one simulated swap request
type ExecuteTradeInput struct {
	TeamID        string
	CompetitionID string
	FromToken     string
	ToToken       string
	FromAmount    float64
	// Slippage, when set, overrides the modeled slippage rate entirely.
	Slippage *float64
}

// TradeResult is the structured outcome of a trade attempt. Validation
// failures land here with Success=false; only infrastructure faults surface
// as Go errors.
type TradeResult struct {
	Success bool          `json:"success"`
	Trade   *models.Trade `json:"trade,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// TradeService validates and executes simulated swaps against the balance
// ledger. Execution is serialized per team so the balance check and the
// debit/credit cannot interleave between two trades of the same team.
type TradeService struct {
	price    *PriceService
	balances BalanceStore
	trades   TradeStore
	cfg      config.TradingConfig
	logger   *logging.Logger

	teamLocks sync.Map // teamID -> *sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewTradeService creates a trade simulator
func NewTradeService(price *PriceService, balances BalanceStore, trades TradeStore, cfg config.TradingConfig) *TradeService {
	return &TradeService{
		price:    price,
		balances: balances,
		trades:   trades,
		cfg:      cfg,
		logger:   logging.GetGlobalLogger().WithField("service", "trade"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 - jitter, not crypto
	}
}

// ExecuteTrade runs the full swap simulation. It never propagates a panic or
// a raw fault: every failure becomes a structured result.
func (s *TradeService) ExecuteTrade(ctx context.Context, input *ExecuteTradeInput) (result *TradeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", fmt.Sprint(r)).Error("trade execution panicked")
			result = &TradeResult{Success: false, Error: fmt.Sprintf("trade execution failed: %v", r)}
			err = nil
		}
	}()

	unlock := s.lockTeam(input.TeamID)
	defer unlock()

	// 1. Minimum tradable unit.
	if input.FromAmount < s.cfg.MinTradeAmount {
		return &TradeResult{Success: false, Error: errAmountTooSmall}, nil
	}
	if input.FromToken == input.ToToken {
		return &TradeResult{Success: false, Error: "Cannot trade a token for itself"}, nil
	}

	// 2. Balance sufficiency.
	balance, err := s.balances.GetBalance(ctx, input.TeamID, input.FromToken)
	if err != nil {
		return &TradeResult{Success: false, Error: fmt.Sprintf("failed to read balance: %v", err)}, nil
	}
	if balance < input.FromAmount {
		return &TradeResult{Success: false, Error: errInsufficientBalance}, nil
	}

	// 3. Price resolution for both legs.
	fromPrice, err := s.price.GetPrice(ctx, input.FromToken, "", "")
	if err != nil {
		return &TradeResult{Success: false, Error: fmt.Sprintf("failed to resolve price: %v", err)}, nil
	}
	toPrice, err := s.price.GetPrice(ctx, input.ToToken, "", "")
	if err != nil {
		return &TradeResult{Success: false, Error: fmt.Sprintf("failed to resolve price: %v", err)}, nil
	}
	if fromPrice == nil || toPrice == nil {
		return s.failTrade(ctx, input, errPriceUnavailable), nil
	}

	// 4. Trade size limit against total portfolio value.
	fromValueUSD := input.FromAmount * fromPrice.Price
	portfolioValue, err := s.portfolioValue(ctx, input.TeamID)
	if err != nil {
		return &TradeResult{Success: false, Error: fmt.Sprintf("failed to value portfolio: %v", err)}, nil
	}
	maxTradeValue := portfolioValue * s.cfg.MaxTradePortfolioPct / 100
	if fromValueUSD > maxTradeValue {
		return s.failTrade(ctx, input, errMaxTradeSize), nil
	}

	// 5-6. Slippage and resulting amount.
	slippage := s.computeSlippage(fromValueUSD, input.Slippage)
	effectiveUSD := fromValueUSD * (1 - slippage)
	toAmount := effectiveUSD / toPrice.Price

	// 7. Move balances and record the trade.
	if err := s.balances.SubtractAmount(ctx, input.TeamID, input.FromToken, input.FromAmount); err != nil {
		return &TradeResult{Success: false, Error: errInsufficientBalance}, nil
	}
	if err := s.balances.AddAmount(ctx, input.TeamID, input.ToToken, toAmount); err != nil {
		// Re-credit the debited leg so a half-applied trade does not leak.
		if refundErr := s.balances.AddAmount(ctx, input.TeamID, input.FromToken, input.FromAmount); refundErr != nil {
			s.logger.WithError(refundErr).WithField("team", input.TeamID).Error("failed to refund after credit failure")
		}
		return &TradeResult{Success: false, Error: fmt.Sprintf("failed to credit balance: %v", err)}, nil
	}

	trade := &models.Trade{
		ID:            uuid.New().String(),
		TeamID:        input.TeamID,
		CompetitionID: input.CompetitionID,
		FromToken:     input.FromToken,
		ToToken:       input.ToToken,
		FromAmount:    input.FromAmount,
		ToAmount:      toAmount,
		Price:         toAmount / input.FromAmount,
		Success:       true,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.trades.Create(ctx, trade); err != nil {
		// The balances already moved; the trade stands even if its record
		// could not be written.
		s.logger.WithError(err).WithField("team", input.TeamID).Error("failed to persist trade record")
	}

	s.logger.WithFields(map[string]interface{}{
		"team":       input.TeamID,
		"fromToken":  input.FromToken,
		"toToken":    input.ToToken,
		"fromAmount": input.FromAmount,
		"toAmount":   toAmount,
		"slippage":   slippage,
	}).Info("trade executed")

	return &TradeResult{Success: true, Trade: trade}, nil
}

// failTrade records a failed attempt that reached price resolution and
// returns the structured failure.
func (s *TradeService) failTrade(ctx context.Context, input *ExecuteTradeInput, reason string) *TradeResult {
	trade := &models.Trade{
		ID:            uuid.New().String(),
		TeamID:        input.TeamID,
		CompetitionID: input.CompetitionID,
		FromToken:     input.FromToken,
		ToToken:       input.ToToken,
		FromAmount:    input.FromAmount,
		Success:       false,
		Error:         reason,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.trades.Create(ctx, trade); err != nil {
		s.logger.WithError(err).Warn("failed to persist failed trade record")
	}
	return &TradeResult{Success: false, Error: reason}
}

// portfolioValue sums the USD value of every balance the team holds.
// Unpriced tokens are skipped, not fatal.
func (s *TradeService) portfolioValue(ctx context.Context, teamID string) (float64, error) {
	balances, err := s.balances.GetAllBalances(ctx, teamID)
	if err != nil {
		return 0, err
	}

	var total float64
	for _, b := range balances {
		if b.Amount <= 0 {
			continue
		}
		price, err := s.price.GetPrice(ctx, b.Token, "", "")
		if err != nil || price == nil {
			s.logger.WithField("token", b.Token).Debug("skipping unpriced token in portfolio valuation")
			continue
		}
		total += b.Amount * price.Price
	}
	return total, nil
}

// computeSlippage models market impact: a base rate proportional to the trade
// USD value, jittered by a bounded random multiplier so the formula is not
// perfectly gameable. An explicit override replaces the model entirely.
func (s *TradeService) computeSlippage(fromValueUSD float64, override *float64) float64 {
	if override != nil {
		return clampSlippage(*override)
	}
	base := baseSlippage(fromValueUSD)
	jittered := base * (0.9 + 0.2*s.randFloat())
	return clampSlippage(jittered)
}

// baseSlippage is the deterministic part of the slippage model: 5% per
// $10,000 of trade value.
func baseSlippage(fromValueUSD float64) float64 {
	return fromValueUSD / 10000 * 0.05
}

func clampSlippage(slippage float64) float64 {
	if slippage < 0 {
		return 0
	}
	if slippage > maxSlippage {
		return maxSlippage
	}
	return slippage
}

func (s *TradeService) randFloat() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// lockTeam serializes trade execution per team.
func (s *TradeService) lockTeam(teamID string) func() {
	mu, _ := s.teamLocks.LoadOrStore(teamID, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	lock.Lock()
	return lock.Unlock
}

// GetTeamTrades returns a team's trade history, newest first
func (s *TradeService) GetTeamTrades(ctx context.Context, teamID string, limit int) ([]*models.Trade, error) {
	return s.trades.GetTeamTrades(ctx, teamID, limit)
}

// GetCompetitionTrades returns a competition's trade history, newest first
func (s *TradeService) GetCompetitionTrades(ctx context.Context, competitionID string, limit int) ([]*models.Trade, error) {
	return s.trades.GetCompetitionTrades(ctx, competitionID, limit)
}
