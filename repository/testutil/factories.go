package testutil

import (
	"context"
	"fmt"
	"testing"

	"coino/database"
	"coino/models"

	"github.com/stretchr/testify/require"
)

// DefaultBalance is the balance given to accounts created by the helpers
const DefaultBalance int64 = 100000

// CreateTestAccount inserts an account with DefaultBalance
func CreateTestAccount(t *testing.T, db *database.DB, userID string) *models.Account {
	return CreateTestAccountWithBalance(t, db, userID, DefaultBalance)
}

// CreateTestAccountWithBalance inserts an account with a specific balance
func CreateTestAccountWithBalance(t *testing.T, db *database.DB, userID string, balance int64) *models.Account {
	t.Helper()

	account := &models.Account{UserID: userID, Username: "user-" + userID, Balance: balance}
	err := db.QueryRow(context.Background(), `
		INSERT INTO accounts (user_id, username, balance)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at
	`, account.UserID, account.Username, account.Balance).Scan(&account.CreatedAt, &account.UpdatedAt)
	require.NoError(t, err)

	return account
}

// CreateTestBet builds an unsaved pending bet in a round
func CreateTestBet(userID string, round *models.Round, outcome models.Outcome, amount int64) *models.Bet {
	roundID := round.ID
	return &models.Bet{
		UserID:  userID,
		Scope:   round.Scope,
		RoundID: &roundID,
		Outcome: outcome,
		Amount:  amount,
		Status:  models.BetStatusPending,
		Debited: true,
	}
}

// CreateTestWaitingBet builds an unsaved waiting bet in a room scope
func CreateTestWaitingBet(userID string, scope models.Scope, outcome models.Outcome, amount int64) *models.Bet {
	return &models.Bet{
		UserID:  userID,
		Scope:   scope,
		Outcome: outcome,
		Amount:  amount,
		Status:  models.BetStatusWaiting,
		Debited: true,
	}
}

// CreateTestBalanceHistory builds an unsaved balance history entry
func CreateTestBalanceHistory(userID string, transactionType models.TransactionType) *models.BalanceHistory {
	return &models.BalanceHistory{
		UserID:          userID,
		BalanceBefore:   DefaultBalance,
		BalanceAfter:    DefaultBalance - 100,
		ChangeAmount:    -100,
		TransactionType: transactionType,
		TransactionMetadata: map[string]any{
			"test": true,
		},
	}
}

// UserID returns a deterministic test user identifier
func UserID(n int) string {
	return fmt.Sprintf("user-%03d", n)
}
