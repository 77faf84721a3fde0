package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coino/database"
	"coino/models"
	"coino/service"

	"github.com/jackc/pgx/v5"
)

const roundColumns = `id, scope, status, start_time, duration_ms, bet_count, total_amount,
	winning_outcome, processed, completed_at, house_share, unallocated_amount, created_at`

// RoundRepository implements the RoundRepository interface
type RoundRepository struct {
	q queryable
}

var _ service.RoundRepository = (*RoundRepository)(nil)

// NewRoundRepository creates a new round repository
func NewRoundRepository(db *database.DB) *RoundRepository {
	return &RoundRepository{q: db.Pool}
}

// newRoundRepositoryWithTx creates a new round repository with a transaction
func newRoundRepositoryWithTx(tx queryable) *RoundRepository {
	return &RoundRepository{q: tx}
}

func scanRound(row pgx.Row) (*models.Round, error) {
	var (
		round       models.Round
		scope       string
		status      string
		durationMs  int64
		outcome     *string
		completedAt *time.Time
	)

	err := row.Scan(
		&round.ID,
		&scope,
		&status,
		&round.StartTime,
		&durationMs,
		&round.BetCount,
		&round.TotalAmount,
		&outcome,
		&round.Processed,
		&completedAt,
		&round.HouseShare,
		&round.UnallocatedAmount,
		&round.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	round.Scope = models.Scope(scope)
	round.Status = models.RoundStatus(status)
	round.Duration = time.Duration(durationMs) * time.Millisecond
	round.CompletedAt = completedAt
	if outcome != nil {
		o := models.Outcome(*outcome)
		round.WinningOutcome = &o
	}

	return &round, nil
}

func (r *RoundRepository) queryRounds(ctx context.Context, query string, args ...any) ([]*models.Round, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, round)
	}

	return rounds, rows.Err()
}

func (r *RoundRepository) queryRound(ctx context.Context, query string, args ...any) (*models.Round, error) {
	round, err := scanRound(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return round, err
}

// LockScope takes a transaction-scoped advisory lock on the scope
func (r *RoundRepository) LockScope(ctx context.Context, scope models.Scope) error {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(scope)); err != nil {
		return storeError(err, "failed to lock scope %s", scope)
	}
	return nil
}

// FindActiveRound returns the newest active round of the scope
func (r *RoundRepository) FindActiveRound(ctx context.Context, scope models.Scope) (*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE scope = $1 AND status = 'active'
		ORDER BY id DESC
		LIMIT 1
	`

	round, err := r.queryRound(ctx, query, string(scope))
	if err != nil {
		return nil, storeError(err, "failed to find active round for scope %s", scope)
	}
	return round, nil
}

// FindActiveRounds returns all active rounds of the scope, newest first
func (r *RoundRepository) FindActiveRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE scope = $1 AND status = 'active'
		ORDER BY id DESC
	`

	rounds, err := r.queryRounds(ctx, query, string(scope))
	if err != nil {
		return nil, storeError(err, "failed to find active rounds for scope %s", scope)
	}
	return rounds, nil
}

// CreateRound inserts a new active round starting now
func (r *RoundRepository) CreateRound(ctx context.Context, scope models.Scope, duration time.Duration) (*models.Round, error) {
	query := `
		INSERT INTO rounds (scope, status, start_time, duration_ms)
		VALUES ($1, 'active', NOW(), $2)
		RETURNING ` + roundColumns

	round, err := scanRound(r.q.QueryRow(ctx, query, string(scope), duration.Milliseconds()))
	if err != nil {
		return nil, storeError(err, "failed to create round for scope %s", scope)
	}
	return round, nil
}

// GetByID retrieves a round by its ID
func (r *RoundRepository) GetByID(ctx context.Context, roundID int64) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1`

	round, err := r.queryRound(ctx, query, roundID)
	if err != nil {
		return nil, storeError(err, "failed to get round %d", roundID)
	}
	return round, nil
}

// GetByIDForUpdate retrieves a round and locks the row
func (r *RoundRepository) GetByIDForUpdate(ctx context.Context, roundID int64) (*models.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE id = $1 FOR UPDATE`

	round, err := r.queryRound(ctx, query, roundID)
	if err != nil {
		return nil, storeError(err, "failed to lock round %d", roundID)
	}
	return round, nil
}

// MarkCompleted records the outcome of an active round. Only one caller can win
// this transition; the others see false.
func (r *RoundRepository) MarkCompleted(ctx context.Context, roundID int64, outcome models.Outcome) (bool, error) {
	query := `
		UPDATE rounds
		SET status = 'completed', winning_outcome = $2, completed_at = NOW()
		WHERE id = $1 AND status = 'active'
	`

	result, err := r.q.Exec(ctx, query, roundID, string(outcome))
	if err != nil {
		return false, storeError(err, "failed to complete round %d", roundID)
	}
	return result.RowsAffected() == 1, nil
}

// IncrementAggregates adds bets to the round totals
func (r *RoundRepository) IncrementAggregates(ctx context.Context, roundID int64, betCount, amount int64) (*models.Round, error) {
	query := `
		UPDATE rounds
		SET bet_count = bet_count + $2, total_amount = total_amount + $3
		WHERE id = $1
		RETURNING ` + roundColumns

	round, err := r.queryRound(ctx, query, roundID, betCount, amount)
	if err != nil {
		return nil, storeError(err, "failed to update aggregates for round %d", roundID)
	}
	if round == nil {
		return nil, fmt.Errorf("round %d: %w", roundID, service.ErrRoundNotFound)
	}
	return round, nil
}

// MarkProcessed flags the round as fully settled
func (r *RoundRepository) MarkProcessed(ctx context.Context, roundID int64, houseShare, unallocated int64) (bool, error) {
	query := `
		UPDATE rounds
		SET processed = TRUE, house_share = $2, unallocated_amount = $3
		WHERE id = $1 AND status = 'completed' AND NOT processed
	`

	result, err := r.q.Exec(ctx, query, roundID, houseShare, unallocated)
	if err != nil {
		return false, storeError(err, "failed to mark round %d processed", roundID)
	}
	return result.RowsAffected() == 1, nil
}

// FindCompletedUnprocessed returns rounds left between draw and final settlement
func (r *RoundRepository) FindCompletedUnprocessed(ctx context.Context, scope models.Scope) ([]*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE scope = $1 AND status = 'completed' AND NOT processed
		ORDER BY id
	`

	rounds, err := r.queryRounds(ctx, query, string(scope))
	if err != nil {
		return nil, storeError(err, "failed to find unsettled rounds for scope %s", scope)
	}
	return rounds, nil
}

// GetCompletedHistory returns recent completed rounds, newest first
func (r *RoundRepository) GetCompletedHistory(ctx context.Context, scope models.Scope, limit int) ([]*models.Round, error) {
	query := `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE scope = $1 AND status = 'completed'
		ORDER BY id DESC
		LIMIT $2
	`

	rounds, err := r.queryRounds(ctx, query, string(scope), limit)
	if err != nil {
		return nil, storeError(err, "failed to get round history for scope %s", scope)
	}
	return rounds, nil
}

// FindScopesWithOpenWork lists scopes needing scheduler attention
func (r *RoundRepository) FindScopesWithOpenWork(ctx context.Context) ([]models.Scope, error) {
	query := `
		SELECT scope FROM rounds
		WHERE status = 'active' OR (status = 'completed' AND NOT processed)
		UNION
		SELECT scope FROM bets
		WHERE status = 'waiting'
	`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, storeError(err, "failed to find scopes with open work")
	}
	defer rows.Close()

	var scopes []models.Scope
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, fmt.Errorf("failed to scan scope: %w", err)
		}
		scopes = append(scopes, models.Scope(scope))
	}

	if err := rows.Err(); err != nil {
		return nil, storeError(err, "failed to iterate scopes")
	}
	return scopes, nil
}
