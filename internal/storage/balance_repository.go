package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/trading-simulator/internal/models"
)

// BalanceRepository is the balance ledger: it owns every team's virtual token
// holdings. Amounts never go negative.
type BalanceRepository struct {
	db *PostgresDB
}

// NewBalanceRepository creates a new balance repository
func NewBalanceRepository(db *PostgresDB) *BalanceRepository {
	return &BalanceRepository{db: db}
}

// GetBalance returns the team's balance for a token; zero when no row exists.
func (r *BalanceRepository) GetBalance(ctx context.Context, teamID, token string) (float64, error) {
	query := `
		SELECT amount
		FROM balances
		WHERE team_id = $1 AND token = $2
	`

	var amount float64
	err := r.db.Pool().QueryRow(ctx, query, teamID, token).Scan(&amount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}

	return amount, nil
}

// GetAllBalances returns every balance row for a team
func (r *BalanceRepository) GetAllBalances(ctx context.Context, teamID string) ([]*models.Balance, error) {
	query := `
		SELECT team_id, token, amount, updated_at
		FROM balances
		WHERE team_id = $1
		ORDER BY token
	`

	rows, err := r.db.Pool().Query(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to query balances: %w", err)
	}
	defer rows.Close()

	var balances []*models.Balance
	for rows.Next() {
		var b models.Balance
		if err := rows.Scan(&b.TeamID, &b.Token, &b.Amount, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}
		balances = append(balances, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balances: %w", err)
	}

	return balances, nil
}

// AddAmount credits a token balance, creating the row if needed
func (r *BalanceRepository) AddAmount(ctx context.Context, teamID, token string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("amount must be non-negative, got %f", amount)
	}

	query := `
		INSERT INTO balances (team_id, token, amount, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, token)
		DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.Pool().Exec(ctx, query, teamID, token, amount, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to add amount: %w", err)
	}
	return nil
}

// SubtractAmount debits a token balance. The WHERE guard keeps the row from
// ever going negative even under concurrent debits.
func (r *BalanceRepository) SubtractAmount(ctx context.Context, teamID, token string, amount float64) error {
	if amount < 0 {
		return fmt.Errorf("amount must be non-negative, got %f", amount)
	}

	query := `
		UPDATE balances
		SET amount = amount - $3, updated_at = $4
		WHERE team_id = $1 AND token = $2 AND amount >= $3
	`

	tag, err := r.db.Pool().Exec(ctx, query, teamID, token, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to subtract amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("insufficient balance for team %s token %s", teamID, token)
	}
	return nil
}

// ResetTeamBalances replaces all of a team's balances with the given
// allocation in one transaction.
func (r *BalanceRepository) ResetTeamBalances(ctx context.Context, teamID string, allocation map[string]float64) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, `DELETE FROM balances WHERE team_id = $1`, teamID); err != nil {
		return fmt.Errorf("failed to clear balances: %w", err)
	}

	now := time.Now().UTC()
	for token, amount := range allocation {
		if amount <= 0 {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO balances (team_id, token, amount, updated_at) VALUES ($1, $2, $3, $4)`,
			teamID, token, amount, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert initial balance: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit balance reset: %w", err)
	}
	return nil
}
