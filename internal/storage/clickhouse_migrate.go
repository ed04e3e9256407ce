package storage

import (
	"context"
	"fmt"
)

// priceHistoryDDL creates the append-only price history table. Records are
// never updated or deleted, so MergeTree ordered by (token, timestamp) serves
// both latest-price lookups and timeline scans.
const priceHistoryDDL = `
CREATE TABLE IF NOT EXISTS price_history (
	token          String,
	price          Float64,
	timestamp      DateTime64(3, 'UTC'),
	chain          LowCardinality(String),
	specific_chain LowCardinality(String)
) ENGINE = MergeTree()
ORDER BY (token, timestamp)
`

// MigrateClickHouse creates the ClickHouse schema if it does not exist
func MigrateClickHouse(ctx context.Context, db *ClickHouseDB) error {
	if err := db.Exec(ctx, priceHistoryDDL); err != nil {
		return fmt.Errorf("failed to create price_history table: %w", err)
	}
	return nil
}
