package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/trading-simulator/internal/models"
	"github.com/trading-simulator/internal/types"
)

// ErrActiveCompetitionExists is returned when a status update would violate
// the single-active-competition constraint.
var ErrActiveCompetitionExists = errors.New("another competition is already active")

// CompetitionRepository persists competitions, their participating teams and
// their portfolio snapshots.
type CompetitionRepository struct {
	db *PostgresDB
}

// NewCompetitionRepository creates a new competition repository
func NewCompetitionRepository(db *PostgresDB) *CompetitionRepository {
	return &CompetitionRepository{db: db}
}

// Create stores a new competition
func (r *CompetitionRepository) Create(ctx context.Context, competition *models.Competition) error {
	if competition.ID == "" {
		competition.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	competition.CreatedAt = now
	competition.UpdatedAt = now
	if competition.Status == "" {
		competition.Status = types.CompetitionPending
	}

	query := `
		INSERT INTO competitions (id, name, status, start_date, end_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		competition.ID,
		competition.Name,
		string(competition.Status),
		competition.StartDate,
		competition.EndDate,
		competition.CreatedAt,
		competition.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert competition: %w", err)
	}

	return nil
}

// Update persists competition changes. The partial unique index on active
// competitions turns a second activation into ErrActiveCompetitionExists.
func (r *CompetitionRepository) Update(ctx context.Context, competition *models.Competition) error {
	competition.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE competitions
		SET name = $2, status = $3, start_date = $4, end_date = $5, updated_at = $6
		WHERE id = $1
	`

	tag, err := r.db.Pool().Exec(ctx, query,
		competition.ID,
		competition.Name,
		string(competition.Status),
		competition.StartDate,
		competition.EndDate,
		competition.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveCompetitionExists
		}
		return fmt.Errorf("failed to update competition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("competition not found: %s", competition.ID)
	}

	return nil
}

// FindByID retrieves a competition by ID, or nil when it does not exist
func (r *CompetitionRepository) FindByID(ctx context.Context, id string) (*models.Competition, error) {
	query := competitionSelect + ` WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// FindActive retrieves the currently active competition, or nil when none is
func (r *CompetitionRepository) FindActive(ctx context.Context) (*models.Competition, error) {
	query := competitionSelect + ` WHERE status = $1`
	return r.queryOne(ctx, query, string(types.CompetitionActive))
}

const competitionSelect = `
		SELECT id, name, status, start_date, end_date, created_at, updated_at
		FROM competitions
`

func (r *CompetitionRepository) queryOne(ctx context.Context, query string, args ...interface{}) (*models.Competition, error) {
	var c models.Competition
	var status string

	err := r.db.Pool().QueryRow(ctx, query, args...).Scan(
		&c.ID, &c.Name, &status, &c.StartDate, &c.EndDate, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query competition: %w", err)
	}

	c.Status = types.CompetitionStatus(status)
	return &c, nil
}

// AddTeamToCompetition registers a team as a participant
func (r *CompetitionRepository) AddTeamToCompetition(ctx context.Context, competitionID, teamID string) error {
	query := `
		INSERT INTO competition_teams (competition_id, team_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (competition_id, team_id) DO NOTHING
	`

	if _, err := r.db.Pool().Exec(ctx, query, competitionID, teamID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to add team to competition: %w", err)
	}
	return nil
}

// GetCompetitionTeams returns the IDs of all participating teams
func (r *CompetitionRepository) GetCompetitionTeams(ctx context.Context, competitionID string) ([]string, error) {
	query := `
		SELECT team_id
		FROM competition_teams
		WHERE competition_id = $1
		ORDER BY joined_at
	`

	rows, err := r.db.Pool().Query(ctx, query, competitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query competition teams: %w", err)
	}
	defer rows.Close()

	var teams []string
	for rows.Next() {
		var teamID string
		if err := rows.Scan(&teamID); err != nil {
			return nil, fmt.Errorf("failed to scan team id: %w", err)
		}
		teams = append(teams, teamID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating competition teams: %w", err)
	}

	return teams, nil
}

// CreatePortfolioSnapshot stores a snapshot row and fills in its generated ID
func (r *CompetitionRepository) CreatePortfolioSnapshot(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	if snapshot.Timestamp.IsZero() {
		snapshot.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO portfolio_snapshots (team_id, competition_id, timestamp, total_value)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	err := r.db.Pool().QueryRow(ctx, query,
		snapshot.TeamID,
		snapshot.CompetitionID,
		snapshot.Timestamp,
		snapshot.TotalValue,
	).Scan(&snapshot.ID)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio snapshot: %w", err)
	}

	return nil
}

// CreatePortfolioTokenValue stores one priced holding of a snapshot
func (r *CompetitionRepository) CreatePortfolioTokenValue(ctx context.Context, value *models.PortfolioTokenValue) error {
	query := `
		INSERT INTO portfolio_token_values (snapshot_id, token, amount, price, value_usd, specific_chain)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err := r.db.Pool().QueryRow(ctx, query,
		value.SnapshotID,
		value.Token,
		value.Amount,
		value.Price,
		value.ValueUSD,
		string(value.SpecificChain),
	).Scan(&value.ID)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio token value: %w", err)
	}

	return nil
}

// GetLatestPortfolioSnapshots returns the most recent snapshot per team for a
// competition.
func (r *CompetitionRepository) GetLatestPortfolioSnapshots(ctx context.Context, competitionID string) ([]*models.PortfolioSnapshot, error) {
	query := `
		SELECT DISTINCT ON (team_id) id, team_id, competition_id, timestamp, total_value
		FROM portfolio_snapshots
		WHERE competition_id = $1
		ORDER BY team_id, timestamp DESC
	`
	return r.querySnapshots(ctx, query, competitionID)
}

// GetTeamPortfolioSnapshots returns every snapshot of one team in a
// competition, oldest first.
func (r *CompetitionRepository) GetTeamPortfolioSnapshots(ctx context.Context, competitionID, teamID string) ([]*models.PortfolioSnapshot, error) {
	query := `
		SELECT id, team_id, competition_id, timestamp, total_value
		FROM portfolio_snapshots
		WHERE competition_id = $1 AND team_id = $2
		ORDER BY timestamp ASC
	`
	return r.querySnapshots(ctx, query, competitionID, teamID)
}

func (r *CompetitionRepository) querySnapshots(ctx context.Context, query string, args ...interface{}) ([]*models.PortfolioSnapshot, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.PortfolioSnapshot
	for rows.Next() {
		var s models.PortfolioSnapshot
		if err := rows.Scan(&s.ID, &s.TeamID, &s.CompetitionID, &s.Timestamp, &s.TotalValue); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

// GetPortfolioTokenValues returns the priced holdings of a snapshot
func (r *CompetitionRepository) GetPortfolioTokenValues(ctx context.Context, snapshotID int64) ([]*models.PortfolioTokenValue, error) {
	query := `
		SELECT id, snapshot_id, token, amount, price, value_usd, specific_chain
		FROM portfolio_token_values
		WHERE snapshot_id = $1
		ORDER BY value_usd DESC
	`

	rows, err := r.db.Pool().Query(ctx, query, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to query token values: %w", err)
	}
	defer rows.Close()

	var values []*models.PortfolioTokenValue
	for rows.Next() {
		var v models.PortfolioTokenValue
		var specificChain string
		if err := rows.Scan(&v.ID, &v.SnapshotID, &v.Token, &v.Amount, &v.Price, &v.ValueUSD, &specificChain); err != nil {
			return nil, fmt.Errorf("failed to scan token value: %w", err)
		}
		v.SpecificChain = types.SpecificChain(specificChain)
		values = append(values, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating token values: %w", err)
	}

	return values, nil
}
