package service

import (
	"errors"
	"fmt"
)

// Errors surfaced to callers of the round engine. Wrap them with
// fmt.Errorf("...: %w", err) and test with errors.Is.
var (
	ErrValidation        = errors.New("invalid request")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRoundNotActive    = errors.New("no round is accepting bets")
	ErrStaleRound        = errors.New("round closed before the bet could be placed")
	ErrDuplicateBet      = errors.New("bet already placed for this round")
	ErrTransientStore    = errors.New("transient store failure")
	ErrSettlementPartial = errors.New("settlement partially applied")
	ErrRoundNotFound     = errors.New("round not found")
	ErrAccountNotFound   = errors.New("account not found")
	ErrRoomNotFound      = errors.New("room not found")
	ErrNotRoomCreator    = errors.New("only the room creator can do this")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// RejectionReason returns a stable label for a bet rejection, used in
// metrics and HTTP responses
func RejectionReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrDuplicateBet):
		return "duplicate_bet"
	case errors.Is(err, ErrRoundNotActive):
		return "round_not_active"
	case errors.Is(err, ErrStaleRound):
		return "stale_round"
	case errors.Is(err, ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrTransientStore):
		return "transient_store"
	default:
		return "internal"
	}
}
