package models

import (
	"time"

	"github.com/trading-simulator/internal/types"
)

// PortfolioSnapshot is a timestamped record of a team's total portfolio value
// within a competition. Snapshots are never mutated after creation.
type PortfolioSnapshot struct {
	ID            int64     `json:"id" db:"id"`
	TeamID        string    `json:"teamId" db:"team_id"`
	CompetitionID string    `json:"competitionId" db:"competition_id"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	TotalValue    float64   `json:"totalValue" db:"total_value"`
}

// PortfolioTokenValue is one priced holding inside a snapshot.
type PortfolioTokenValue struct {
	ID            int64               `json:"id" db:"id"`
	SnapshotID    int64               `json:"snapshotId" db:"snapshot_id"`
	Token         string              `json:"token" db:"token"`
	Amount        float64             `json:"amount" db:"amount"`
	Price         float64             `json:"price" db:"price"`
	ValueUSD      float64             `json:"valueUsd" db:"value_usd"`
	SpecificChain types.SpecificChain `json:"specificChain,omitempty" db:"specific_chain"`
}
