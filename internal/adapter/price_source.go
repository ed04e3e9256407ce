// Package adapter provides price source clients for external market data APIs.
package adapter

import (
	"context"
	"time"

	"github.com/trading-simulator/internal/types"
)

// PriceReport is a single price answer from a source, including the specific
// network the source resolved the token on when it knows it.
type PriceReport struct {
	Token         string
	Price         float64
	Timestamp     time.Time
	Chain         types.ChainFamily
	SpecificChain types.SpecificChain
}

// PriceSource is the capability every price provider implements. GetPrice
// returns (nil, nil) when the source has no answer for the token; errors are
// reserved for infrastructure failures (network, malformed responses).
// Implementations never panic and never error on out-of-scope tokens.
type PriceSource interface {
	// Name identifies the source in logs and circuit breakers.
	Name() string

	// Families lists the chain families this source can serve.
	Families() []types.ChainFamily

	// Supports reports whether the source could answer for the token. It is
	// a cheap applicability check, not a guarantee of an answer.
	Supports(ctx context.Context, token string) bool

	// GetPrice resolves the token's current USD price. The family is always
	// supplied by the caller; specific may be empty, in which case
	// multi-network sources discover the network themselves.
	GetPrice(ctx context.Context, token string, family types.ChainFamily, specific types.SpecificChain) (*PriceReport, error)
}

// ServesFamily reports whether the source can answer for the given family.
func ServesFamily(s PriceSource, family types.ChainFamily) bool {
	for _, f := range s.Families() {
		if f == family {
			return true
		}
	}
	return false
}
