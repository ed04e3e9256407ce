package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/trading-simulator/internal/adapter"
	"github.com/trading-simulator/internal/models"
	"github.com/trading-simulator/internal/types"
)

const (
	testUSDC = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	testWETH = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	testSOL  = "So11111111111111111111111111111111111111112"
)

// Mock collaborators for testing

// stubSource is a scriptable price source
type stubSource struct {
	name     string
	families []types.ChainFamily
	reports  map[string]*adapter.PriceReport
	err      error
	calls    int
	// lastSpecific records the hint the source received on its last call.
	lastSpecific types.SpecificChain
}

func (s *stubSource) Name() string                  { return s.name }
func (s *stubSource) Families() []types.ChainFamily { return s.families }

func (s *stubSource) Supports(ctx context.Context, token string) bool {
	family, _ := types.ClassifyToken(token)
	return adapter.ServesFamily(s, family)
}

func (s *stubSource) GetPrice(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) (*adapter.PriceReport, error) {
	s.calls++
	s.lastSpecific = specific
	if s.err != nil {
		return nil, s.err
	}
	return s.reports[token], nil
}

func aggregatorStub(prices map[string]float64) *stubSource {
	reports := make(map[string]*adapter.PriceReport, len(prices))
	for token, price := range prices {
		family, specific := types.ClassifyToken(token)
		if family == types.FamilyEVM {
			specific = types.ChainEthereum
		}
		reports[token] = &adapter.PriceReport{
			Token:         token,
			Price:         price,
			Timestamp:     time.Now().UTC(),
			Chain:         family,
			SpecificChain: specific,
		}
	}
	return &stubSource{
		name:     "aggregator",
		families: []types.ChainFamily{types.FamilyEVM, types.FamilySVM},
		reports:  reports,
	}
}

// memPriceCache is an in-memory PriceCache without expiry
type memPriceCache struct {
	mu      sync.Mutex
	entries map[string]*models.Price
}

func newMemPriceCache() *memPriceCache {
	return &memPriceCache{entries: make(map[string]*models.Price)}
}

func (c *memPriceCache) key(family types.ChainFamily, token string) string {
	return fmt.Sprintf("%s:%s", family, token)
}

func (c *memPriceCache) Get(ctx context.Context, family types.ChainFamily, token string) (*models.Price, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	price, ok := c.entries[c.key(family, token)]
	return price, ok, nil
}

func (c *memPriceCache) Set(ctx context.Context, price *models.Price) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[c.key(price.Chain, price.Token)] = price
	return nil
}

func (c *memPriceCache) TTL() time.Duration { return time.Minute }

// memHistory is an in-memory PriceHistoryStore
type memHistory struct {
	mu      sync.Mutex
	records []*models.Price
	err     error
}

func (h *memHistory) Create(ctx context.Context, price *models.Price) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	cp := *price
	h.records = append(h.records, &cp)
	return nil
}

func (h *memHistory) GetLatestPrice(ctx context.Context, token string) (*models.Price, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	var latest *models.Price
	for _, rec := range h.records {
		if rec.Token != token {
			continue
		}
		if latest == nil || rec.Timestamp.After(latest.Timestamp) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (h *memHistory) GetPriceHistory(ctx context.Context, token string, hours int) ([]*models.Price, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	var out []*models.Price
	for _, rec := range h.records {
		if rec.Token == token && rec.Timestamp.After(cutoff) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (h *memHistory) Count(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return int64(len(h.records)), nil
}

func TestGetPriceCacheHitSkipsSources(t *testing.T) {
	src := aggregatorStub(map[string]float64{testUSDC: 1.0})
	cache := newMemPriceCache()
	history := &memHistory{}
	svc := NewPriceService([]adapter.PriceSource{src}, cache, history)

	cached := &models.Price{
		Token:     testUSDC,
		Price:     0.9995,
		Timestamp: time.Now().UTC(),
		Chain:     types.FamilyEVM,
	}
	if err := cache.Set(context.Background(), cached); err != nil {
		t.Fatalf("cache.Set failed: %v", err)
	}

	price, err := svc.GetPrice(context.Background(), testUSDC, "", "")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if price == nil || price.Price != 0.9995 {
		t.Fatalf("Expected cached price 0.9995, got %+v", price)
	}
	if src.calls != 0 {
		t.Errorf("Expected 0 source calls on cache hit, got %d", src.calls)
	}
}

func TestGetPriceCachesAndPersistsFreshAnswer(t *testing.T) {
	src := aggregatorStub(map[string]float64{testUSDC: 1.0001})
	cache := newMemPriceCache()
	history := &memHistory{}
	svc := NewPriceService([]adapter.PriceSource{src}, cache, history)

	price, err := svc.GetPrice(context.Background(), testUSDC, "", "")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if price == nil || price.Price != 1.0001 {
		t.Fatalf("Expected fresh price 1.0001, got %+v", price)
	}
	if price.Stale {
		t.Error("Fresh answer must not be flagged stale")
	}

	// Second call serves from cache.
	if _, err := svc.GetPrice(context.Background(), testUSDC, "", ""); err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("Expected a single source call, got %d", src.calls)
	}

	count, _ := history.Count(context.Background())
	if count != 1 {
		t.Errorf("Expected 1 history record, got %d", count)
	}
}

func TestGetPriceSourcePriority(t *testing.T) {
	// The aggregator has no answer; the specialist does.
	first := &stubSource{
		name:     "aggregator",
		families: []types.ChainFamily{types.FamilyEVM, types.FamilySVM},
	}
	second := aggregatorStub(map[string]float64{testSOL: 150.5})
	second.name = "jupiter"
	second.families = []types.ChainFamily{types.FamilySVM}

	svc := NewPriceService([]adapter.PriceSource{first, second}, newMemPriceCache(), &memHistory{})

	price, err := svc.GetPrice(context.Background(), testSOL, "", "")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if price == nil || price.Price != 150.5 {
		t.Fatalf("Expected specialist answer 150.5, got %+v", price)
	}
	if first.calls != 1 {
		t.Errorf("Expected the aggregator to be consulted first, calls=%d", first.calls)
	}
}

func TestGetPriceSkipsSourcesOfOtherFamilies(t *testing.T) {
	svmOnly := &stubSource{
		name:     "jupiter",
		families: []types.ChainFamily{types.FamilySVM},
	}
	svc := NewPriceService([]adapter.PriceSource{svmOnly}, newMemPriceCache(), &memHistory{})

	price, err := svc.GetPrice(context.Background(), testUSDC, "", "")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if price != nil {
		t.Fatalf("Expected nil price, got %+v", price)
	}
	if svmOnly.calls != 0 {
		t.Errorf("Expected SVM-only source to be skipped for an EVM token, calls=%d", svmOnly.calls)
	}
}

func TestGetPriceStaleFallback(t *testing.T) {
	failing := &stubSource{
		name:     "aggregator",
		families: []types.ChainFamily{types.FamilyEVM, types.FamilySVM},
		err:      errors.New("connection refused"),
	}
	history := &memHistory{}
	old := &models.Price{
		Token:     testWETH,
		Price:     3400,
		Timestamp: time.Now().UTC().Add(-3 * time.Hour),
		Chain:     types.FamilyEVM,
	}
	if err := history.Create(context.Background(), old); err != nil {
		t.Fatalf("history.Create failed: %v", err)
	}

	svc := NewPriceService([]adapter.PriceSource{failing}, newMemPriceCache(), history)

	price, err := svc.GetPrice(context.Background(), testWETH, "", "")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if price == nil {
		t.Fatal("Expected stale fallback, got nil")
	}
	if !price.Stale {
		t.Error("Expected fallback price to be flagged stale")
	}
	if price.Price != 3400 {
		t.Errorf("Expected stale price 3400, got %v", price.Price)
	}
}

func TestGetPriceNilWhenNothingKnown(t *testing.T) {
	empty := &stubSource{
		name:     "aggregator",
		families: []types.ChainFamily{types.FamilyEVM, types.FamilySVM},
	}
	svc := NewPriceService([]adapter.PriceSource{empty}, newMemPriceCache(), &memHistory{})

	price, err := svc.GetPrice(context.Background(), testUSDC, "", "")
	if err != nil {
		t.Fatalf("Expected nil error for unavailable price, got %v", err)
	}
	if price != nil {
		t.Fatalf("Expected nil price, got %+v", price)
	}
}

func TestGetPriceCircuitBreakerShedsFailingSource(t *testing.T) {
	failing := &stubSource{
		name:     "aggregator",
		families: []types.ChainFamily{types.FamilyEVM, types.FamilySVM},
		err:      errors.New("timeout"),
	}
	svc := NewPriceService([]adapter.PriceSource{failing}, newMemPriceCache(), &memHistory{})

	// Five consecutive failures trip the breaker.
	for i := 0; i < 5; i++ {
		if _, err := svc.GetPrice(context.Background(), testUSDC, "", ""); err != nil {
			t.Fatalf("GetPrice failed: %v", err)
		}
	}
	if failing.calls != 5 {
		t.Fatalf("Expected 5 source calls before the breaker trips, got %d", failing.calls)
	}

	if _, err := svc.GetPrice(context.Background(), testUSDC, "", ""); err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if failing.calls != 5 {
		t.Errorf("Expected the open breaker to shed the call, calls=%d", failing.calls)
	}
}

func TestGetPriceDropsContradictoryHint(t *testing.T) {
	src := aggregatorStub(map[string]float64{testUSDC: 1.0})
	svc := NewPriceService([]adapter.PriceSource{src}, newMemPriceCache(), &memHistory{})

	// An EVM token with an SVM network hint: the hint must not reach the source.
	if _, err := svc.GetPrice(context.Background(), testUSDC, types.FamilyEVM, types.ChainSVM); err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if src.lastSpecific != "" {
		t.Errorf("Expected contradictory hint to be dropped, source saw %q", src.lastSpecific)
	}
}

func TestGetTokenInfoSVMNetworkIsFixed(t *testing.T) {
	src := aggregatorStub(map[string]float64{testSOL: 150.5})
	svc := NewPriceService([]adapter.PriceSource{src}, newMemPriceCache(), &memHistory{})

	info, err := svc.GetTokenInfo(context.Background(), testSOL, "", "")
	if err != nil {
		t.Fatalf("GetTokenInfo failed: %v", err)
	}
	if info == nil {
		t.Fatal("Expected token info, got nil")
	}
	if info.Chain != types.FamilySVM || info.SpecificChain != types.ChainSVM {
		t.Errorf("Expected svm/svm identity, got %s/%s", info.Chain, info.SpecificChain)
	}
}

func TestGetPriceHistoryPrefersPersistedRecords(t *testing.T) {
	history := &memHistory{}
	for i := 0; i < 3; i++ {
		rec := &models.Price{
			Token:     testUSDC,
			Price:     1.0 + float64(i)*0.001,
			Timestamp: time.Now().UTC().Add(-time.Duration(i) * time.Hour),
			Chain:     types.FamilyEVM,
		}
		if err := history.Create(context.Background(), rec); err != nil {
			t.Fatalf("history.Create failed: %v", err)
		}
	}

	svc := NewPriceService(nil, newMemPriceCache(), history)

	points, err := svc.GetPriceHistory(context.Background(), testUSDC, 24, true)
	if err != nil {
		t.Fatalf("GetPriceHistory failed: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("Expected 3 persisted points, got %d", len(points))
	}
	for _, p := range points {
		if p.Synthetic {
			t.Error("Persisted points must not be marked synthetic")
		}
	}
}

func TestGetPriceHistorySyntheticFallback(t *testing.T) {
	src := aggregatorStub(map[string]float64{testUSDC: 1.0})
	svc := NewPriceService([]adapter.PriceSource{src}, newMemPriceCache(), &memHistory{})

	// The history write from the anchor resolve lands after the lookback
	// query, so the timeline is generated.
	points, err := svc.GetPriceHistory(context.Background(), testUSDC, 24, true)
	if err != nil {
		t.Fatalf("GetPriceHistory failed: %v", err)
	}
	if len(points) != syntheticHistoryPoints {
		t.Fatalf("Expected %d synthetic points, got %d", syntheticHistoryPoints, len(points))
	}
	for _, p := range points {
		if !p.Synthetic {
			t.Error("Expected every generated point to be marked synthetic")
		}
	}

	last := points[len(points)-1]
	if last.Price != 1.0 {
		t.Errorf("Expected the walk to be anchored at the current price, got %v", last.Price)
	}
	for i := 1; i < len(points); i++ {
		if !points[i].Timestamp.After(points[i-1].Timestamp) {
			t.Fatal("Expected strictly increasing timestamps")
		}
		ratio := points[i].Price / points[i-1].Price
		if ratio < 0.95 || ratio > 1.05 {
			t.Errorf("Step %d moved more than the perturbation bound: ratio %v", i, ratio)
		}
	}
}

func TestGetPriceHistoryWithoutSyntheticPermission(t *testing.T) {
	src := aggregatorStub(map[string]float64{testUSDC: 1.0})
	svc := NewPriceService([]adapter.PriceSource{src}, newMemPriceCache(), &memHistory{})

	points, err := svc.GetPriceHistory(context.Background(), testUSDC, 24, false)
	if err != nil {
		t.Fatalf("GetPriceHistory failed: %v", err)
	}
	if points != nil {
		t.Errorf("Expected nil without synthetic permission, got %d points", len(points))
	}
}

func TestIsSupported(t *testing.T) {
	svmOnly := &stubSource{
		name:     "jupiter",
		families: []types.ChainFamily{types.FamilySVM},
	}
	svc := NewPriceService([]adapter.PriceSource{svmOnly}, newMemPriceCache(), &memHistory{})

	if !svc.IsSupported(context.Background(), testSOL) {
		t.Error("Expected SVM token to be supported")
	}
	if svc.IsSupported(context.Background(), testUSDC) {
		t.Error("Expected EVM token to be unsupported with only an SVM source")
	}
}
