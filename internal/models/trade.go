package models

import "time"

// Trade represents a single simulated swap attempt. A record is created once
// per execution attempt that reaches price resolution and is immutable after
// creation.
type Trade struct {
	ID            string    `json:"id" db:"id"`
	TeamID        string    `json:"teamId" db:"team_id"`
	CompetitionID string    `json:"competitionId" db:"competition_id"`
	FromToken     string    `json:"fromToken" db:"from_token"`
	ToToken       string    `json:"toToken" db:"to_token"`
	FromAmount    float64   `json:"fromAmount" db:"from_amount"`
	ToAmount      float64   `json:"toAmount" db:"to_amount"`
	// Price is the realized exchange rate, toAmount/fromAmount.
	Price     float64   `json:"price" db:"price"`
	Success   bool      `json:"success" db:"success"`
	Error     string    `json:"error,omitempty" db:"error"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
