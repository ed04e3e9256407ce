package models

import (
	"time"

	"github.com/trading-simulator/internal/types"
)

// Price represents a resolved USD price for a token. Records are immutable
// once written to the price history store.
type Price struct {
	Token         string              `json:"token" db:"token"`
	Price         float64             `json:"price" db:"price"`
	Timestamp     time.Time           `json:"timestamp" db:"timestamp"`
	Chain         types.ChainFamily   `json:"chain" db:"chain"`
	SpecificChain types.SpecificChain `json:"specificChain,omitempty" db:"specific_chain"`
	// Stale is set when the price was served from history because no live
	// source answered. Never persisted.
	Stale bool `json:"stale,omitempty" db:"-"`
}

// TokenInfo combines a token's current price with its best-known chain identity.
type TokenInfo struct {
	Token         string              `json:"token"`
	Price         float64             `json:"price"`
	Chain         types.ChainFamily   `json:"chain"`
	SpecificChain types.SpecificChain `json:"specificChain,omitempty"`
}

// PricePoint is a single entry in a token's price timeline.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	// Synthetic marks points generated by the fallback walk rather than
	// observed from a provider.
	Synthetic bool `json:"synthetic,omitempty"`
}
