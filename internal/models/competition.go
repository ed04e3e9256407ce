package models

import (
	"time"

	"github.com/trading-simulator/internal/types"
)

// Competition represents a trading competition. At most one competition may be
// active system-wide at any time.
type Competition struct {
	ID        string                  `json:"id" db:"id"`
	Name      string                  `json:"name" db:"name"`
	Status    types.CompetitionStatus `json:"status" db:"status"`
	StartDate *time.Time              `json:"startDate,omitempty" db:"start_date"`
	EndDate   *time.Time              `json:"endDate,omitempty" db:"end_date"`
	CreatedAt time.Time               `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time               `json:"updatedAt" db:"updated_at"`
}
