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

// JupiterClient is a specialized price source for the SVM network.
type JupiterClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retry   *retry.Config
}

// jupiterPriceResponse is the response of the Jupiter price API
type jupiterPriceResponse struct {
	Data map[string]struct {
		ID    string `json:"id"`
		Price string `json:"price"`
	} `json:"data"`
}

// NewJupiterClient creates a Jupiter price source
func NewJupiterClient(baseURL string, requestTimeout time.Duration, rps float64) *JupiterClient {
	if rps <= 0 {
		rps = 3
	}
	return &JupiterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		retry:   retry.ProviderConfig(),
	}
}

// Name identifies the source
func (c *JupiterClient) Name() string {
	return "jupiter"
}

// Families lists the chain families this source serves
func (c *JupiterClient) Families() []types.ChainFamily {
	return []types.ChainFamily{types.FamilySVM}
}

// Supports reports whether the token classifies as SVM-family.
func (c *JupiterClient) Supports(ctx context.Context, token string) bool {
	family, _ := types.ClassifyToken(token)
	return family == types.FamilySVM
}

// GetPrice resolves an SVM token price. Tokens outside the source's scope and
// tokens Jupiter does not know yield a no-answer, never an error.
func (c *JupiterClient) GetPrice(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) (*PriceReport, error) {
	if family != types.FamilySVM {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/price/v2?ids=%s", c.baseURL, url.QueryEscape(token))

	var parsed jupiterPriceResponse
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

	entry, ok := parsed.Data[token]
	if !ok || entry.Price == "" {
		return nil, nil
	}

	price, err := strconv.ParseFloat(entry.Price, 64)
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
