package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/trading-simulator/internal/adapter"
	"github.com/trading-simulator/internal/config"
	"github.com/trading-simulator/internal/models"
)

// memBalances is an in-memory BalanceStore
type memBalances struct {
	mu       sync.Mutex
	balances map[string]map[string]float64 // teamID -> token -> amount
}

func newMemBalances() *memBalances {
	return &memBalances{balances: make(map[string]map[string]float64)}
}

func (m *memBalances) set(teamID, token string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[teamID] == nil {
		m.balances[teamID] = make(map[string]float64)
	}
	m.balances[teamID][token] = amount
}

func (m *memBalances) GetBalance(ctx context.Context, teamID, token string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[teamID][token], nil
}

func (m *memBalances) GetAllBalances(ctx context.Context, teamID string) ([]*models.Balance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Balance
	for token, amount := range m.balances[teamID] {
		out = append(out, &models.Balance{TeamID: teamID, Token: token, Amount: amount})
	}
	return out, nil
}

func (m *memBalances) AddAmount(ctx context.Context, teamID, token string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[teamID] == nil {
		m.balances[teamID] = make(map[string]float64)
	}
	m.balances[teamID][token] += amount
	return nil
}

func (m *memBalances) SubtractAmount(ctx context.Context, teamID, token string, amount float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[teamID][token] < amount {
		return fmt.Errorf("insufficient balance")
	}
	m.balances[teamID][token] -= amount
	return nil
}

func (m *memBalances) ResetTeamBalances(ctx context.Context, teamID string, allocation map[string]float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fresh := make(map[string]float64, len(allocation))
	for token, amount := range allocation {
		fresh[token] = amount
	}
	m.balances[teamID] = fresh
	return nil
}

// memTrades is an in-memory TradeStore
type memTrades struct {
	mu     sync.Mutex
	trades []*models.Trade
}

func (m *memTrades) Create(ctx context.Context, trade *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *trade
	m.trades = append(m.trades, &cp)
	return nil
}

func (m *memTrades) GetTeamTrades(ctx context.Context, teamID string, limit int) ([]*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trade
	for i := len(m.trades) - 1; i >= 0; i-- {
		if m.trades[i].TeamID == teamID {
			out = append(out, m.trades[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memTrades) GetCompetitionTrades(ctx context.Context, competitionID string, limit int) ([]*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trade
	for i := len(m.trades) - 1; i >= 0; i-- {
		if m.trades[i].CompetitionID == competitionID {
			out = append(out, m.trades[i])
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memTrades) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.trades)), nil
}

func defaultTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		MinTradeAmount:       0.000001,
		MaxTradePortfolioPct: 25,
	}
}

func setupTradeService(prices map[string]float64) (*TradeService, *memBalances, *memTrades) {
	src := aggregatorStub(prices)
	priceSvc := NewPriceService([]adapter.PriceSource{src}, newMemPriceCache(), &memHistory{})
	balances := newMemBalances()
	trades := &memTrades{}
	return NewTradeService(priceSvc, balances, trades, defaultTradingConfig()), balances, trades
}

func TestExecuteTradeSuccess(t *testing.T) {
	// 100 A at $2 = $200 traded; USDC holdings keep the trade under the
	// portfolio percentage cap.
	svc, balances, trades := setupTradeService(map[string]float64{
		testSOL:  2.0,
		testWETH: 4.0,
		testUSDC: 1.0,
	})
	balances.set("team-1", testSOL, 100)
	balances.set("team-1", testUSDC, 1000)

	zero := 0.0
	result, err := svc.ExecuteTrade(context.Background(), &ExecuteTradeInput{
		TeamID:        "team-1",
		CompetitionID: "comp-1",
		FromToken:     testSOL,
		ToToken:       testWETH,
		FromAmount:    100,
		Slippage:      &zero,
	})
	if err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error %q", result.Error)
	}

	// $200 at zero slippage buys exactly 50 of the $4 token.
	if result.Trade.ToAmount != 50 {
		t.Errorf("Expected to amount 50, got %v", result.Trade.ToAmount)
	}
	if result.Trade.Price != 0.5 {
		t.Errorf("Expected realized rate 0.5, got %v", result.Trade.Price)
	}

	fromBalance, _ := balances.GetBalance(context.Background(), "team-1", testSOL)
	if fromBalance != 0 {
		t.Errorf("Expected from balance 0, got %v", fromBalance)
	}
	toBalance, _ := balances.GetBalance(context.Background(), "team-1", testWETH)
	if toBalance != 50 {
		t.Errorf("Expected to balance 50, got %v", toBalance)
	}

	count, _ := trades.Count(context.Background())
	if count != 1 {
		t.Errorf("Expected 1 trade record, got %d", count)
	}
}

func TestExecuteTradeModeledSlippageReducesProceeds(t *testing.T) {
	svc, balances, _ := setupTradeService(map[string]float64{
		testSOL:  2.0,
		testWETH: 4.0,
		testUSDC: 1.0,
	})
	balances.set("team-1", testSOL, 100)
	balances.set("team-1", testUSDC, 1000)

	result, err := svc.ExecuteTrade(context.Background(), &ExecuteTradeInput{
		TeamID:        "team-1",
		CompetitionID: "comp-1",
		FromToken:     testSOL,
		ToToken:       testWETH,
		FromAmount:    100,
	})
	if err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got error %q", result.Error)
	}

	// $200 trade: base slippage 0.1%, jitter bounded to [0.9x, 1.1x].
	ideal := 50.0
	if result.Trade.ToAmount >= ideal {
		t.Errorf("Expected slippage to reduce proceeds below %v, got %v", ideal, result.Trade.ToAmount)
	}
	minAcceptable := ideal * (1 - baseSlippage(200)*1.1)
	if result.Trade.ToAmount < minAcceptable {
		t.Errorf("Slippage exceeded the jitter bound: got %v, floor %v", result.Trade.ToAmount, minAcceptable)
	}
}

func TestExecuteTradeInsufficientBalance(t *testing.T) {
	svc, balances, trades := setupTradeService(map[string]float64{
		testSOL:  2.0,
		testWETH: 4.0,
	})
	balances.set("team-1", testSOL, 10)

	result, err := svc.ExecuteTrade(context.Background(), &ExecuteTradeInput{
		TeamID:        "team-1",
		CompetitionID: "comp-1",
		FromToken:     testSOL,
		ToToken:       testWETH,
		FromAmount:    50,
	})
	if err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if result.Success {
		t.Fatal("Expected failure for insufficient balance")
	}
	if result.Error != "Insufficient balance" {
		t.Errorf("Expected insufficient balance error, got %q", result.Error)
	}

	// Nothing moved, nothing recorded: the attempt never reached pricing.
	balance, _ := balances.GetBalance(context.Background(), "team-1", testSOL)
	if balance != 10 {
		t.Errorf("Expected untouched balance 10, got %v", balance)
	}
	count, _ := trades.Count(context.Background())
	if count != 0 {
		t.Errorf("Expected no trade record, got %d", count)
	}
}

func TestExecuteTradeAmountTooSmall(t *testing.T) {
	svc, balances, _ := setupTradeService(map[string]float64{testSOL: 2.0, testWETH: 4.0})
	balances.set("team-1", testSOL, 100)

	result, err := svc.ExecuteTrade(context.Background(), &ExecuteTradeInput{
		TeamID:        "team-1",
		CompetitionID: "comp-1",
		FromToken:     testSOL,
		ToToken:       testWETH,
		FromAmount:    0.0000001,
	})
	if err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if result.Success || result.Error != "Trade amount too small" {
		t.Errorf("Expected amount-too-small rejection, got %+v", result)
	}
}

func TestExecuteTradeSameTokenRejected(t *testing.T) {
	svc, balances, _ := setupTradeService(map[string]float64{testSOL: 2.0})
	balances.set("team-1", testSOL, 100)

	result, err := svc.ExecuteTrade(context.Background(), &ExecuteTradeInput{
		TeamID:        "team-1",
		CompetitionID: "comp-1",
		FromToken:     testSOL,
		ToToken:       testSOL,
		FromAmount:    1,
	})
	if err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if result.Success {
		t.Fatal("Expected same-token trade to be rejected")
	}
}

func TestExecuteTradeExceedsMaxSize(t *testing.T) {
	// The whole portfolio is the from token, so any trade above 25% of it
	// must be rejected without touching balances.
	svc, balances, trades := setupTradeService(map[string]float64{
		testSOL:  2.0,
		testWETH: 4.0,
	})
	balances.set("team-1", testSOL, 100)

	result, err := svc.ExecuteTrade(context.Background(), &ExecuteTradeInput{
		TeamID:        "team-1",
		CompetitionID: "comp-1",
		FromToken:     testSOL,
		ToToken:       testWETH,
		FromAmount:    100,
	})
	if err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if result.Success {
		t.Fatal("Expected failure for oversized trade")
	}
	if result.Error != "Trade exceeds maximum trade size" {
		t.Errorf("Expected max size error, got %q", result.Error)
	}

	balance, _ := balances.GetBalance(context.Background(), "team-1", testSOL)
	if balance != 100 {
		t.Errorf("Expected untouched balance 100, got %v", balance)
	}

	// The rejection reached price resolution, so a failed record exists.
	recorded, _ := trades.GetTeamTrades(context.Background(), "team-1", 0)
	if len(recorded) != 1 || recorded[0].Success {
		t.Errorf("Expected one failed trade record, got %+v", recorded)
	}
}

func TestExecuteTradeUnpricedTokenFailsAndIsRecorded(t *testing.T) {
	svc, balances, trades := setupTradeService(map[string]float64{testSOL: 2.0})
	balances.set("team-1", testSOL, 100)

	result, err := svc.ExecuteTrade(context.Background(), &ExecuteTradeInput{
		TeamID:        "team-1",
		CompetitionID: "comp-1",
		FromToken:     testSOL,
		ToToken:       testWETH,
		FromAmount:    1,
	})
	if err != nil {
		t.Fatalf("ExecuteTrade failed: %v", err)
	}
	if result.Success || result.Error != "Unable to determine price" {
		t.Errorf("Expected price-unavailable rejection, got %+v", result)
	}

	recorded, _ := trades.GetTeamTrades(context.Background(), "team-1", 0)
	if len(recorded) != 1 || recorded[0].Success {
		t.Errorf("Expected one failed trade record, got %+v", recorded)
	}
}

func TestBaseSlippageGrowsWithTradeValue(t *testing.T) {
	values := []float64{100, 1000, 10000, 50000}
	prev := -1.0
	for _, v := range values {
		slip := baseSlippage(v)
		if slip <= prev {
			t.Errorf("Expected slippage to grow with trade value, %v -> %v", prev, slip)
		}
		prev = slip
	}

	if baseSlippage(10000) != 0.05 {
		t.Errorf("Expected 5%% per $10k, got %v", baseSlippage(10000))
	}
}

func TestClampSlippage(t *testing.T) {
	if got := clampSlippage(-0.1); got != 0 {
		t.Errorf("Expected negative slippage clamped to 0, got %v", got)
	}
	if got := clampSlippage(0.75); got != maxSlippage {
		t.Errorf("Expected clamp at %v, got %v", maxSlippage, got)
	}
	if got := clampSlippage(0.1); got != 0.1 {
		t.Errorf("Expected 0.1 unchanged, got %v", got)
	}
}

func TestExecuteTradeSerializesPerTeam(t *testing.T) {
	svc, balances, _ := setupTradeService(map[string]float64{
		testSOL:  1.0,
		testWETH: 1.0,
		testUSDC: 1.0,
	})
	balances.set("team-1", testSOL, 100)
	balances.set("team-1", testUSDC, 10000)

	// 20 concurrent trades of 10 SOL each: only 10 can succeed on a 100 SOL
	// balance, never more.
	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	zero := 0.0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.ExecuteTrade(context.Background(), &ExecuteTradeInput{
				TeamID:        "team-1",
				CompetitionID: "comp-1",
				FromToken:     testSOL,
				ToToken:       testWETH,
				FromAmount:    10,
				Slippage:      &zero,
			})
			if err != nil {
				t.Errorf("ExecuteTrade failed: %v", err)
				return
			}
			if result.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 10 {
		t.Errorf("Expected exactly 10 successful trades, got %d", successes)
	}
	balance, _ := balances.GetBalance(context.Background(), "team-1", testSOL)
	if balance != 0 {
		t.Errorf("Expected drained balance, got %v", balance)
	}
}
