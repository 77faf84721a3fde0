package repository

import (
	"context"
	"errors"
	"fmt"

	"coino/database"
	"coino/models"
	"coino/service"

	"github.com/jackc/pgx/v5"
)

const betColumns = `id, user_id, scope, round_id, outcome, amount, status, debited,
	win_amount, lost_amount, returned_amount, processed, created_at, settled_at`

// BetRepository implements the BetRepository interface
type BetRepository struct {
	q queryable
}

var _ service.BetRepository = (*BetRepository)(nil)

// NewBetRepository creates a new bet repository
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

// newBetRepositoryWithTx creates a new bet repository with a transaction
func newBetRepositoryWithTx(tx queryable) *BetRepository {
	return &BetRepository{q: tx}
}

func scanBet(row pgx.Row) (*models.Bet, error) {
	var (
		bet     models.Bet
		scope   string
		outcome string
		status  string
	)

	err := row.Scan(
		&bet.ID,
		&bet.UserID,
		&scope,
		&bet.RoundID,
		&outcome,
		&bet.Amount,
		&status,
		&bet.Debited,
		&bet.WinAmount,
		&bet.LostAmount,
		&bet.ReturnedAmount,
		&bet.Processed,
		&bet.CreatedAt,
		&bet.SettledAt,
	)
	if err != nil {
		return nil, err
	}

	bet.Scope = models.Scope(scope)
	bet.Outcome = models.Outcome(outcome)
	bet.Status = models.BetStatus(status)
	return &bet, nil
}

func (r *BetRepository) queryBets(ctx context.Context, query string, args ...any) ([]*models.Bet, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, bet)
	}

	return bets, rows.Err()
}

func (r *BetRepository) queryBet(ctx context.Context, query string, args ...any) (*models.Bet, error) {
	bet, err := scanBet(r.q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return bet, err
}

// Create inserts a bet and fills in its ID and creation time
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	query := `
		INSERT INTO bets (user_id, scope, round_id, outcome, amount, status, debited)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.q.QueryRow(ctx, query,
		bet.UserID,
		string(bet.Scope),
		bet.RoundID,
		string(bet.Outcome),
		bet.Amount,
		string(bet.Status),
		bet.Debited,
	).Scan(&bet.ID, &bet.CreatedAt)
	if err != nil {
		return storeError(err, "failed to create bet for user %s in scope %s", bet.UserID, bet.Scope)
	}

	return nil
}

// GetByID retrieves a bet by its ID
func (r *BetRepository) GetByID(ctx context.Context, id int64) (*models.Bet, error) {
	bet, err := r.queryBet(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id)
	if err != nil {
		return nil, storeError(err, "failed to get bet %d", id)
	}
	return bet, nil
}

// FindPendingForRound returns the unsettled bets of a round in the scope
func (r *BetRepository) FindPendingForRound(ctx context.Context, scope models.Scope, roundID int64) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE scope = $1 AND round_id = $2 AND status = 'pending'
		ORDER BY id
	`

	bets, err := r.queryBets(ctx, query, string(scope), roundID)
	if err != nil {
		return nil, storeError(err, "failed to find pending bets for round %d", roundID)
	}
	return bets, nil
}

// FindByRound returns every bet of a round
func (r *BetRepository) FindByRound(ctx context.Context, roundID int64) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE round_id = $1
		ORDER BY id
	`

	bets, err := r.queryBets(ctx, query, roundID)
	if err != nil {
		return nil, storeError(err, "failed to find bets for round %d", roundID)
	}
	return bets, nil
}

// FindByUserAndRound returns the user's pending bet in the round
func (r *BetRepository) FindByUserAndRound(ctx context.Context, userID string, roundID int64) (*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE user_id = $1 AND round_id = $2 AND status = 'pending'
	`

	bet, err := r.queryBet(ctx, query, userID, roundID)
	if err != nil {
		return nil, storeError(err, "failed to find bet of user %s in round %d", userID, roundID)
	}
	return bet, nil
}

// FindWaitingByUser returns the user's waiting bet in a room scope
func (r *BetRepository) FindWaitingByUser(ctx context.Context, userID string, scope models.Scope) (*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE user_id = $1 AND scope = $2 AND status = 'waiting'
	`

	bet, err := r.queryBet(ctx, query, userID, string(scope))
	if err != nil {
		return nil, storeError(err, "failed to find waiting bet of user %s in scope %s", userID, scope)
	}
	return bet, nil
}

// CountWaitingParticipants counts distinct users waiting in the scope
func (r *BetRepository) CountWaitingParticipants(ctx context.Context, scope models.Scope) (int, error) {
	query := `SELECT COUNT(DISTINCT user_id) FROM bets WHERE scope = $1 AND status = 'waiting'`

	var count int
	if err := r.q.QueryRow(ctx, query, string(scope)).Scan(&count); err != nil {
		return 0, storeError(err, "failed to count waiting bets in scope %s", scope)
	}
	return count, nil
}

// AttachWaitingToRound moves all waiting bets of the scope onto the round
func (r *BetRepository) AttachWaitingToRound(ctx context.Context, scope models.Scope, roundID int64) (int64, int64, error) {
	query := `
		WITH moved AS (
			UPDATE bets
			SET round_id = $2, status = 'pending'
			WHERE scope = $1 AND status = 'waiting'
			RETURNING amount
		)
		SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM moved
	`

	var count, total int64
	if err := r.q.QueryRow(ctx, query, string(scope), roundID).Scan(&count, &total); err != nil {
		return 0, 0, storeError(err, "failed to attach waiting bets of scope %s to round %d", scope, roundID)
	}
	return count, total, nil
}

// BatchUpdateStatus writes settlement results for bets that are still
// unprocessed. Bets already settled by a concurrent caller are skipped and
// left out of the returned IDs.
func (r *BetRepository) BatchUpdateStatus(ctx context.Context, updates []models.BetUpdate) ([]int64, error) {
	if len(updates) == 0 {
		return nil, nil
	}

	query := `
		UPDATE bets
		SET status = $2, win_amount = $3, lost_amount = $4, returned_amount = $5,
		    processed = TRUE, settled_at = NOW()
		WHERE id = $1 AND NOT processed AND status = 'pending'
		RETURNING id
	`

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(query, u.BetID, string(u.Status), u.WinAmount, u.LostAmount, u.ReturnedAmount)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()

	claimed := make([]int64, 0, len(updates))
	for _, u := range updates {
		var id int64
		err := results.QueryRow().Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, storeError(err, "failed to settle bet %d", u.BetID)
		}
		claimed = append(claimed, id)
	}

	return claimed, nil
}

// CountUnprocessed counts bets of the round not yet settled
func (r *BetRepository) CountUnprocessed(ctx context.Context, roundID int64) (int64, error) {
	var count int64
	err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM bets WHERE round_id = $1 AND NOT processed`, roundID).Scan(&count)
	if err != nil {
		return 0, storeError(err, "failed to count unsettled bets of round %d", roundID)
	}
	return count, nil
}

// GetByUser returns the most recent bets of a user
func (r *BetRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.Bet, error) {
	query := `
		SELECT ` + betColumns + `
		FROM bets
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	bets, err := r.queryBets(ctx, query, userID, limit)
	if err != nil {
		return nil, storeError(err, "failed to get bets for user %s", userID)
	}
	return bets, nil
}
