package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/trading-simulator/internal/models"
	"github.com/trading-simulator/internal/types"
)

// PriceHistoryRepository persists immutable price records in ClickHouse. The
// table is append-only; rows are never updated after creation.
type PriceHistoryRepository struct {
	db *ClickHouseDB
}

// NewPriceHistoryRepository creates a new price history repository
func NewPriceHistoryRepository(db *ClickHouseDB) *PriceHistoryRepository {
	return &PriceHistoryRepository{db: db}
}

// Create appends a price record to the history
func (r *PriceHistoryRepository) Create(ctx context.Context, price *models.Price) error {
	query := `
		INSERT INTO price_history (token, price, timestamp, chain, specific_chain)
		VALUES (?, ?, ?, ?, ?)
	`

	err := r.db.Conn().Exec(ctx, query,
		price.Token,
		price.Price,
		price.Timestamp,
		string(price.Chain),
		string(price.SpecificChain),
	)
	if err != nil {
		return fmt.Errorf("failed to insert price record: %w", err)
	}

	return nil
}

// GetLatestPrice returns the most recent price record for a token regardless
// of age, or nil when no history exists.
func (r *PriceHistoryRepository) GetLatestPrice(ctx context.Context, token string) (*models.Price, error) {
	query := `
		SELECT token, price, timestamp, chain, specific_chain
		FROM price_history
		WHERE token = ?
		ORDER BY timestamp DESC
		LIMIT 1
	`

	rows, err := r.db.Conn().Query(ctx, query, token)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest price: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	price, err := scanPrice(rows.Scan)
	if err != nil {
		return nil, err
	}
	return price, rows.Err()
}

// GetPriceHistory returns price records for a token within the lookback
// window, oldest first.
func (r *PriceHistoryRepository) GetPriceHistory(ctx context.Context, token string, hours int) ([]*models.Price, error) {
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	query := `
		SELECT token, price, timestamp, chain, specific_chain
		FROM price_history
		WHERE token = ? AND timestamp >= ?
		ORDER BY timestamp ASC
	`

	rows, err := r.db.Conn().Query(ctx, query, token, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer rows.Close()

	var prices []*models.Price
	for rows.Next() {
		price, err := scanPrice(rows.Scan)
		if err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price history: %w", err)
	}

	return prices, nil
}

// Count returns the total number of stored price records
func (r *PriceHistoryRepository) Count(ctx context.Context) (int64, error) {
	var count uint64
	row := r.db.Conn().QueryRow(ctx, `SELECT count() FROM price_history`)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count price records: %w", err)
	}
	return int64(count), nil // #nosec G115 - row counts fit in int64
}

// scanPrice scans one price_history row
func scanPrice(scan func(dest ...interface{}) error) (*models.Price, error) {
	var price models.Price
	var chain, specificChain string

	if err := scan(&price.Token, &price.Price, &price.Timestamp, &chain, &specificChain); err != nil {
		return nil, fmt.Errorf("failed to scan price record: %w", err)
	}

	price.Chain = types.ChainFamily(chain)
	price.SpecificChain = types.SpecificChain(specificChain)
	return &price, nil
}
