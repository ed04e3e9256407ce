package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trading-simulator/internal/models"
)

// TradeRepository persists trade records. Trades are immutable after creation.
type TradeRepository struct {
	db *PostgresDB
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *PostgresDB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create stores a new trade record
func (r *TradeRepository) Create(ctx context.Context, trade *models.Trade) error {
	if trade.ID == "" {
		trade.ID = uuid.New().String()
	}
	if trade.Timestamp.IsZero() {
		trade.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO trades (
			id, team_id, competition_id, from_token, to_token,
			from_amount, to_amount, price, success, error, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		trade.ID,
		trade.TeamID,
		trade.CompetitionID,
		trade.FromToken,
		trade.ToToken,
		trade.FromAmount,
		trade.ToAmount,
		trade.Price,
		trade.Success,
		nullableString(trade.Error),
		trade.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	return nil
}

// GetTeamTrades returns a team's trades, newest first
func (r *TradeRepository) GetTeamTrades(ctx context.Context, teamID string, limit int) ([]*models.Trade, error) {
	query := tradeSelect + `
		WHERE team_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	return r.queryTrades(ctx, query, teamID, normalizeLimit(limit))
}

// GetCompetitionTrades returns a competition's trades, newest first
func (r *TradeRepository) GetCompetitionTrades(ctx context.Context, competitionID string, limit int) ([]*models.Trade, error) {
	query := tradeSelect + `
		WHERE competition_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	return r.queryTrades(ctx, query, competitionID, normalizeLimit(limit))
}

// Count returns the total number of trade records
func (r *TradeRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool().QueryRow(ctx, `SELECT COUNT(*) FROM trades`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count trades: %w", err)
	}
	return count, nil
}

const tradeSelect = `
		SELECT id, team_id, competition_id, from_token, to_token,
		       from_amount, to_amount, price, success, error, timestamp
		FROM trades
`

func (r *TradeRepository) queryTrades(ctx context.Context, query string, args ...interface{}) ([]*models.Trade, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		var t models.Trade
		var tradeErr *string
		err := rows.Scan(
			&t.ID, &t.TeamID, &t.CompetitionID, &t.FromToken, &t.ToToken,
			&t.FromAmount, &t.ToAmount, &t.Price, &t.Success, &tradeErr, &t.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		if tradeErr != nil {
			t.Error = *tradeErr
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return 100
	}
	return limit
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
