// Package service implements the core price resolution, trade simulation and
// competition management logic.
package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/trading-simulator/internal/adapter"
	"github.com/trading-simulator/internal/circuitbreaker"
	"github.com/trading-simulator/internal/logging"
	"github.com/trading-simulator/internal/models"
	"github.com/trading-simulator/internal/types"
)

// PriceHistoryStore is the persistent price history collaborator
type PriceHistoryStore interface {
	Create(ctx context.Context, price *models.Price) error
	GetLatestPrice(ctx context.Context, token string) (*models.Price, error)
	GetPriceHistory(ctx context.Context, token string, hours int) ([]*models.Price, error)
	Count(ctx context.Context) (int64, error)
}

// PriceCache is the short-lived price cache collaborator
type PriceCache interface {
	Get(ctx context.Context, family types.ChainFamily, token string) (*models.Price, bool, error)
	Set(ctx context.Context, price *models.Price) error
	TTL() time.Duration
}

// syntheticHistoryPoints is the fixed length of a generated fallback timeline.
const syntheticHistoryPoints = 24

// PriceService is the sole authority for token prices. It walks price sources
// in priority order behind a TTL cache, persists every fresh answer to the
// price history store, and falls back to the latest history record when no
// source answers.
type PriceService struct {
	sources  []adapter.PriceSource
	cache    PriceCache
	history  PriceHistoryStore
	breakers map[string]*circuitbreaker.CircuitBreaker
	logger   *logging.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewPriceService creates a price resolver. Sources are consulted in the
// given order; the multi-network aggregator is expected first.
func NewPriceService(sources []adapter.PriceSource, cache PriceCache, history PriceHistoryStore) *PriceService {
	breakers := make(map[string]*circuitbreaker.CircuitBreaker, len(sources))
	for _, src := range sources {
		breakers[src.Name()] = circuitbreaker.New(src.Name(), 5, 30*time.Second)
	}

	return &PriceService{
		sources:  sources,
		cache:    cache,
		history:  history,
		breakers: breakers,
		logger:   logging.GetGlobalLogger().WithField("service", "price"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 - jitter, not crypto
	}
}

// GetPrice resolves the current USD price of a token. A nil price with nil
// error means the price is unavailable; callers must treat that as an
// expected condition, not a fault.
func (s *PriceService) GetPrice(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) (*models.Price, error) {
	family, specific = s.resolveChain(token, family, specific)

	// Fresh cache entry wins outright: no provider calls inside the TTL.
	if cached, found, err := s.cache.Get(ctx, family, token); err != nil {
		s.logger.WithError(err).Warn("price cache read failed")
	} else if found {
		return cached, nil
	}

	if price := s.querySources(ctx, token, family, specific); price != nil {
		if err := s.cache.Set(ctx, price); err != nil {
			s.logger.WithError(err).Warn("price cache write failed")
		}
		if err := s.history.Create(ctx, price); err != nil {
			s.logger.WithError(err).WithField("token", token).Warn("failed to persist price record")
		}
		return price, nil
	}

	// No live source answered: serve the newest history record regardless of
	// age, flagged stale so callers can tell it apart from a fresh quote.
	latest, err := s.history.GetLatestPrice(ctx, token)
	if err != nil {
		s.logger.WithError(err).WithField("token", token).Warn("price history lookup failed")
		return nil, nil
	}
	if latest != nil {
		stale := *latest
		stale.Stale = true
		s.logger.WithFields(map[string]interface{}{
			"token": token,
			"age":   time.Since(latest.Timestamp).String(),
		}).Warn("serving stale price from history, no live source answered")
		return &stale, nil
	}

	return nil, nil
}

// querySources walks the sources in priority order, skipping sources that do
// not serve the token's family and sources with an open circuit breaker. The
// first non-nil answer wins.
func (s *PriceService) querySources(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) *models.Price {
	for _, src := range s.sources {
		if !adapter.ServesFamily(src, family) {
			continue
		}

		breaker := s.breakers[src.Name()]
		if err := breaker.Allow(); err != nil {
			s.logger.WithField("source", src.Name()).Debug("skipping source, circuit open")
			continue
		}

		report, err := src.GetPrice(ctx, token, family, specific)
		if err != nil {
			breaker.RecordFailure()
			s.logger.WithError(err).WithFields(map[string]interface{}{
				"source": src.Name(),
				"token":  token,
			}).Warn("price source failed")
			continue
		}
		breaker.RecordSuccess()

		if report == nil {
			continue
		}

		return &models.Price{
			Token:         report.Token,
			Price:         report.Price,
			Timestamp:     report.Timestamp,
			Chain:         report.Chain,
			SpecificChain: report.SpecificChain,
		}
	}
	return nil
}

// GetTokenInfo returns a token's current price together with its best-known
// chain identity. For SVM tokens the specific network is always the single
// SVM network; for EVM tokens it is whatever network the winning source
// resolved against, possibly empty when only a stale record was available.
func (s *PriceService) GetTokenInfo(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) (*models.TokenInfo, error) {
	price, err := s.GetPrice(ctx, token, family, specific)
	if err != nil || price == nil {
		return nil, err
	}

	info := &models.TokenInfo{
		Token:         token,
		Price:         price.Price,
		Chain:         price.Chain,
		SpecificChain: price.SpecificChain,
	}
	if info.Chain == types.FamilySVM {
		info.SpecificChain = types.ChainSVM
	}
	return info, nil
}

// IsSupported reports whether any source can serve the token's family.
func (s *PriceService) IsSupported(ctx context.Context, token string) bool {
	family, _ := types.ClassifyToken(token)
	for _, src := range s.sources {
		if adapter.ServesFamily(src, family) && src.Supports(ctx, token) {
			return true
		}
	}
	return false
}

// GetPriceHistory returns the token's persisted price timeline for the
// lookback window. When no history exists and allowSynthetic is set, a
// fixed-length randomly perturbed walk anchored to the current price is
// generated instead, with every point marked synthetic. Without permission to
// fabricate, absent history yields nil.
func (s *PriceService) GetPriceHistory(ctx context.Context, token string, hours int, allowSynthetic bool) ([]*models.PricePoint, error) {
	if hours <= 0 {
		hours = 24
	}

	records, err := s.history.GetPriceHistory(ctx, token, hours)
	if err != nil {
		s.logger.WithError(err).WithField("token", token).Warn("price history query failed")
	}
	if len(records) > 0 {
		points := make([]*models.PricePoint, 0, len(records))
		for _, rec := range records {
			points = append(points, &models.PricePoint{Timestamp: rec.Timestamp, Price: rec.Price})
		}
		return points, nil
	}

	if !allowSynthetic {
		return nil, nil
	}

	current, err := s.GetPrice(ctx, token, "", "")
	if err != nil || current == nil {
		return nil, err
	}

	return s.syntheticWalk(current.Price, hours), nil
}

// syntheticWalk generates a fixed-length backward random walk ending at the
// anchor price, spread evenly across the lookback window.
func (s *PriceService) syntheticWalk(anchor float64, hours int) []*models.PricePoint {
	now := time.Now().UTC()
	step := time.Duration(hours) * time.Hour / syntheticHistoryPoints

	points := make([]*models.PricePoint, syntheticHistoryPoints)
	price := anchor
	for i := syntheticHistoryPoints - 1; i >= 0; i-- {
		points[i] = &models.PricePoint{
			Timestamp: now.Add(-time.Duration(syntheticHistoryPoints-1-i) * step),
			Price:     price,
			Synthetic: true,
		}
		// Perturb by up to ±2% walking backwards in time.
		price *= 1 + (s.randFloat()-0.5)*0.04
	}
	return points
}

func (s *PriceService) randFloat() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

// resolveChain fills in the chain family (and, for SVM, the specific network)
// from the token's shape when the caller did not supply them.
func (s *PriceService) resolveChain(token string, family types.ChainFamily, specific types.SpecificChain) (types.ChainFamily, types.SpecificChain) {
	if family == "" {
		inferredFamily, inferredSpecific := types.ClassifyToken(token)
		family = inferredFamily
		if specific == "" {
			specific = inferredSpecific
		}
	}
	if specific != "" && types.FamilyOf(specific) != family {
		// A contradictory hint is dropped rather than trusted.
		specific = ""
	}
	return family, specific
}
