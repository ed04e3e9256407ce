package models

import "time"

// Balance represents a team's holding of a single token. Amounts are always
// non-negative; only the trade simulator and competition start mutate them.
type Balance struct {
	TeamID    string    `json:"teamId" db:"team_id"`
	Token     string    `json:"token" db:"token"`
	Amount    float64   `json:"amount" db:"amount"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
