package repository

import (
	"fmt"

	"coino/database"
	"coino/service"
)

const (
	constraintPendingBet    = "uq_bets_pending_user_round"
	constraintWaitingBet    = "uq_bets_waiting_user_scope"
	constraintBalanceNonNeg = "accounts_balance_non_negative"
)

// storeError wraps a driver error, tagging the cases callers branch on
// with the matching service sentinel
func storeError(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)

	switch {
	case database.IsUniqueViolation(err, constraintPendingBet),
		database.IsUniqueViolation(err, constraintWaitingBet):
		return fmt.Errorf("%s: %w: %w", msg, service.ErrDuplicateBet, err)
	case database.IsCheckViolation(err, constraintBalanceNonNeg):
		return fmt.Errorf("%s: %w: %w", msg, service.ErrInsufficientFunds, err)
	case database.IsTransient(err):
		return fmt.Errorf("%s: %w: %w", msg, service.ErrTransientStore, err)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}
