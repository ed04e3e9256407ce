package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/trading-simulator/internal/retry"
	"github.com/trading-simulator/internal/types"
)

// RaydiumClient is a specialized price source for the SVM network, used as a
// fallback behind Jupiter.
type RaydiumClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retry   *retry.Config
}

// raydiumPriceResponse is the response of the Raydium mint price API. Prices
// are decimal strings keyed by mint address; unknown mints map to null.
type raydiumPriceResponse struct {
	Success bool               `json:"success"`
	Data    map[string]*string `json:"data"`
}

// NewRaydiumClient creates a Raydium price source
func NewRaydiumClient(baseURL string, requestTimeout time.Duration, rps float64) *RaydiumClient {
	if rps <= 0 {
		rps = 3
	}
	return &RaydiumClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retry:   retry.ProviderConfig(),
	}
}

// Name identifies the source
func (c *RaydiumClient) Name() string {
	return "raydium"
}

// Families lists the chain families this source serves
func (c *RaydiumClient) Families() []types.ChainFamily {
	return []types.ChainFamily{types.FamilySVM}
}

// Supports reports whether the token classifies as SVM-family.
func (c *RaydiumClient) Supports(ctx context.Context, token string) bool {
	family, _ := types.ClassifyToken(token)
	return family == types.FamilySVM
}

// GetPrice resolves an SVM token price via the Raydium mint price endpoint.
func (c *RaydiumClient) GetPrice(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) (*PriceReport, error) {
	if family != types.FamilySVM {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/mint/price?mints=%s", c.baseURL, url.QueryEscape(token))

	var parsed raydiumPriceResponse
	err := retry.WithExponentialBackoff(ctx, c.retry, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close() // nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !parsed.Success {
		return nil, nil
	}
	raw, ok := parsed.Data[token]
	if !ok || raw == nil {
		return nil, nil
	}

	price, err := strconv.ParseFloat(*raw, 64)
	if err != nil || price <= 0 {
		return nil, nil
	}

	return &PriceReport{
		Token:         token,
		Price:         price,
		Timestamp:     time.Now().UTC(),
		Chain:         types.FamilySVM,
		SpecificChain: types.ChainSVM,
	}, nil
}
