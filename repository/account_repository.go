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

const accountColumns = `user_id, username, balance, privileged, total_won, total_lost, wins, losses, created_at, updated_at`

// AccountRepository implements the AccountRepository interface
type AccountRepository struct {
	q queryable
}

var _ service.AccountRepository = (*AccountRepository)(nil)

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// newAccountRepositoryWithTx creates a new account repository with a transaction
func newAccountRepositoryWithTx(tx queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*models.Account, error) {
	var account models.Account
	err := row.Scan(
		&account.UserID,
		&account.Username,
		&account.Balance,
		&account.Privileged,
		&account.TotalWon,
		&account.TotalLost,
		&account.Wins,
		&account.Losses,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) getAccount(ctx context.Context, query, userID string) (*models.Account, error) {
	account, err := scanAccount(r.q.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, "failed to get account %s", userID)
	}
	return account, nil
}

// GetByUserID retrieves an account by user ID
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1`, userID)
}

// GetByUserIDForUpdate retrieves an account and locks the row
func (r *AccountRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*models.Account, error) {
	return r.getAccount(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = $1 FOR UPDATE`, userID)
}

// Create inserts an account with the initial balance. When the account
// already exists only a privileged flag is carried over; created is false.
func (r *AccountRepository) Create(ctx context.Context, userID, username string, initialBalance int64, privileged bool) (*models.Account, bool, error) {
	query := `
		INSERT INTO accounts (user_id, username, balance, privileged)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET privileged = accounts.privileged OR EXCLUDED.privileged
		RETURNING ` + accountColumns + `, (xmax = 0) AS inserted`

	var (
		account models.Account
		created bool
	)
	err := r.q.QueryRow(ctx, query, userID, username, initialBalance, privileged).Scan(
		&account.UserID,
		&account.Username,
		&account.Balance,
		&account.Privileged,
		&account.TotalWon,
		&account.TotalLost,
		&account.Wins,
		&account.Losses,
		&account.CreatedAt,
		&account.UpdatedAt,
		&created,
	)
	if err != nil {
		return nil, false, storeError(err, "failed to create account %s", userID)
	}
	return &account, created, nil
}

// Promote sets the privileged flag. Accounts are never demoted, since
// undebited stakes may still be waiting for settlement.
func (r *AccountRepository) Promote(ctx context.Context, userID string) (*models.Account, error) {
	account, err := r.getAccount(ctx, `
		UPDATE accounts
		SET privileged = TRUE, updated_at = NOW()
		WHERE user_id = $1
		RETURNING `+accountColumns, userID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %s: %w", userID, service.ErrAccountNotFound)
	}
	return account, nil
}

// ApplyBalanceDelta adds delta to the balance atomically
func (r *AccountRepository) ApplyBalanceDelta(ctx context.Context, userID string, delta int64) (*models.BalanceChange, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`

	var after int64
	err := r.q.QueryRow(ctx, query, userID, delta).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", userID, service.ErrAccountNotFound)
	}
	if err != nil {
		return nil, storeError(err, "failed to update balance for account %s", userID)
	}

	return &models.BalanceChange{
		UserID:        userID,
		BalanceBefore: after - delta,
		BalanceAfter:  after,
	}, nil
}

// ApplySettlementCredits applies settlement deltas and result counters in one batch
func (r *AccountRepository) ApplySettlementCredits(ctx context.Context, credits []models.AccountCredit) ([]models.BalanceChange, error) {
	if len(credits) == 0 {
		return nil, nil
	}

	query := `
		UPDATE accounts
		SET balance = balance + $2,
		    total_won = total_won + $3,
		    total_lost = total_lost + $4,
		    wins = wins + $5,
		    losses = losses + $6,
		    updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`

	batch := &pgx.Batch{}
	for _, credit := range credits {
		var wins, losses int64
		if credit.Won {
			wins = 1
		} else {
			losses = 1
		}
		batch.Queue(query, credit.UserID, credit.Delta, credit.WonAmount, credit.LostAmount, wins, losses)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()

	changes := make([]models.BalanceChange, 0, len(credits))
	for _, credit := range credits {
		var after int64
		err := results.QueryRow().Scan(&after)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: %w", credit.UserID, service.ErrAccountNotFound)
		}
		if err != nil {
			return nil, storeError(err, "failed to credit account %s for bet %d", credit.UserID, credit.BetID)
		}
		changes = append(changes, models.BalanceChange{
			UserID:        credit.UserID,
			BalanceBefore: after - credit.Delta,
			BalanceAfter:  after,
		})
	}

	return changes, nil
}
