package application

import (
	"context"

	"coino/events"
	"coino/models"
)

// RoundStore is the part of the round service the scheduler drives
type RoundStore interface {
	// OpenRound returns the active round of the scope, creating one if none exists
	OpenRound(ctx context.Context, scope models.Scope) (round *models.Round, created bool, err error)

	FindActiveRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error)
	FindUnsettledRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error)
	FindScopesWithOpenWork(ctx context.Context) ([]models.Scope, error)
}

// Settler completes a round and applies its payouts. Calling it again for a
// settled round must be a no-op.
type Settler interface {
	Settle(ctx context.Context, roundID int64) (*models.SettlementResult, error)
}

// RoomRoundStarter opens a room round from waiting bets when the room gate allows it
type RoomRoundStarter interface {
	StartRoomRound(ctx context.Context, scope models.Scope) (*models.Round, error)
}

// ScopeLock is an optional cross-process claim taken before creating a round.
// ok is false when another process holds the scope.
type ScopeLock interface {
	Claim(ctx context.Context, scope models.Scope) (release func(), ok bool, err error)
}

// EventSubscriber registers handlers on the local event bus
type EventSubscriber interface {
	Subscribe(eventType events.EventType, handler events.Handler) func()
}

// ResultAnnouncer publishes settled rounds to an outer surface such as Discord
type ResultAnnouncer interface {
	AnnounceSettlement(ctx context.Context, round *models.Round, result *models.SettlementResult) error
}
