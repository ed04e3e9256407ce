package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/trading-simulator/internal/logging"
	"github.com/trading-simulator/internal/retry"
	"github.com/trading-simulator/internal/types"
)

// DexScreenerClient is the multi-network aggregator source. For EVM tokens it
// can discover which network a token lives on by probing networks in liquidity
// order; a specific-network hint skips discovery. It also answers for the SVM
// network.
type DexScreenerClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retry   *retry.Config
	logger  *logging.Logger
}

// dexScreenerChainIDs maps our specific chains to DexScreener chain
// identifiers.
var dexScreenerChainIDs = map[types.SpecificChain]string{
	types.ChainEthereum: "ethereum",
	types.ChainPolygon:  "polygon",
	types.ChainBSC:      "bsc",
	types.ChainArbitrum: "arbitrum",
	types.ChainBase:     "base",
	types.ChainOptimism: "optimism",
	types.ChainSVM:      "solana",
}

// dexScreenerPair is one trading pair in a DexScreener token response
type dexScreenerPair struct {
	ChainID   string `json:"chainId"`
	BaseToken struct {
		Address string `json:"address"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

// NewDexScreenerClient creates a DexScreener price source
func NewDexScreenerClient(baseURL string, requestTimeout time.Duration, rps float64) *DexScreenerClient {
	if rps <= 0 {
		rps = 3
	}
	return &DexScreenerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retry:   retry.ProviderConfig(),
		logger:  logging.GetGlobalLogger().WithField("source", "dexscreener"),
	}
}

// Name identifies the source
func (c *DexScreenerClient) Name() string {
	return "dexscreener"
}

// Families lists the chain families this source serves
func (c *DexScreenerClient) Families() []types.ChainFamily {
	return []types.ChainFamily{types.FamilyEVM, types.FamilySVM}
}

// Supports always returns true: the aggregator covers every family we know.
func (c *DexScreenerClient) Supports(ctx context.Context, token string) bool {
	return token != ""
}

// GetPrice resolves a token price, probing EVM networks when no hint is given.
// Networks where the token is unknown yield no answer and the probe moves on.
func (c *DexScreenerClient) GetPrice(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) (*PriceReport, error) {
	chains := c.probeOrder(family, specific)

	var lastErr error
	for _, chain := range chains {
		report, err := c.fetchChainPrice(ctx, token, chain)
		if err != nil {
			lastErr = err
			c.logger.WithFields(map[string]interface{}{
				"token": token,
				"chain": string(chain),
			}).WithError(err).Debug("DexScreener probe failed")
			continue
		}
		if report != nil {
			return report, nil
		}
	}

	// All probes answered "unknown token": a clean no-answer.
	if lastErr == nil {
		return nil, nil
	}
	return nil, lastErr
}

// probeOrder returns the specific networks to try, hint first when present.
func (c *DexScreenerClient) probeOrder(family types.ChainFamily, specific types.SpecificChain) []types.SpecificChain {
	if specific != "" {
		return []types.SpecificChain{specific}
	}
	if family == types.FamilySVM {
		return []types.SpecificChain{types.ChainSVM}
	}
	return types.EVMChains
}

// fetchChainPrice queries one network. A missing token returns (nil, nil).
func (c *DexScreenerClient) fetchChainPrice(ctx context.Context, token string, chain types.SpecificChain) (*PriceReport, error) {
	chainID, ok := dexScreenerChainIDs[chain]
	if !ok {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, chainID, token)

	var pairs []dexScreenerPair
	err := retry.WithExponentialBackoff(ctx, c.retry, func(ctx context.Context, attempt int) error {
		return c.getJSON(ctx, url, &pairs)
	})
	if err != nil {
		return nil, err
	}

	pair := bestPair(pairs, token)
	if pair == nil {
		return nil, nil
	}

	price, err := strconv.ParseFloat(pair.PriceUSD, 64)
	if err != nil || price <= 0 {
		return nil, nil
	}

	return &PriceReport{
		Token:         token,
		Price:         price,
		Timestamp:     time.Now().UTC(),
		Chain:         types.FamilyOf(chain),
		SpecificChain: chain,
	}, nil
}

// bestPair picks the deepest pool quoting the token as base asset.
func bestPair(pairs []dexScreenerPair, token string) *dexScreenerPair {
	var best *dexScreenerPair
	for i := range pairs {
		p := &pairs[i]
		if !strings.EqualFold(p.BaseToken.Address, token) || p.PriceUSD == "" {
			continue
		}
		if best == nil || p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best
}

// getJSON performs a GET request and decodes the JSON body into dest.
func (c *DexScreenerClient) getJSON(ctx context.Context, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	if resp.StatusCode == http.StatusNotFound {
		// Unknown token on this network: decode target stays empty.
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
