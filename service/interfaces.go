package service

import (
	"context"
	"time"

	"coino/events"
	"coino/models"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetByUserID retrieves an account, or nil if it does not exist
	GetByUserID(ctx context.Context, userID string) (*models.Account, error)

	// GetByUserIDForUpdate retrieves an account and locks its row until the transaction ends
	GetByUserIDForUpdate(ctx context.Context, userID string) (*models.Account, error)

	// Create inserts an account with the initial balance; created is false when it already existed
	Create(ctx context.Context, userID, username string, initialBalance int64, privileged bool) (account *models.Account, created bool, err error)

	// Promote marks an existing account privileged
	Promote(ctx context.Context, userID string) (*models.Account, error)

	// ApplyBalanceDelta adds delta (which may be negative) to the balance
	ApplyBalanceDelta(ctx context.Context, userID string, delta int64) (*models.BalanceChange, error)

	// ApplySettlementCredits applies settlement deltas and cumulative results in one batch
	ApplySettlementCredits(ctx context.Context, credits []models.AccountCredit) ([]models.BalanceChange, error)
}

// BalanceHistoryRepository defines the interface for balance history tracking
type BalanceHistoryRepository interface {
	// Record creates a new balance history entry
	Record(ctx context.Context, history *models.BalanceHistory) error

	// RecordBatch creates several entries in one round trip
	RecordBatch(ctx context.Context, histories []*models.BalanceHistory) error

	// GetByUser returns balance history for a specific user
	GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error)
}

// RoundRepository defines the interface for round data access
type RoundRepository interface {
	// LockScope serializes round creation for a scope until the transaction ends
	LockScope(ctx context.Context, scope models.Scope) error

	// FindActiveRound returns the newest active round of the scope, or nil
	FindActiveRound(ctx context.Context, scope models.Scope) (*models.Round, error)

	// FindActiveRounds returns every active round of the scope, newest first
	FindActiveRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error)

	// CreateRound inserts a new active round starting now
	CreateRound(ctx context.Context, scope models.Scope, duration time.Duration) (*models.Round, error)

	// GetByID retrieves a round, or nil if it does not exist
	GetByID(ctx context.Context, roundID int64) (*models.Round, error)

	// GetByIDForUpdate retrieves a round and locks its row
	GetByIDForUpdate(ctx context.Context, roundID int64) (*models.Round, error)

	// MarkCompleted moves an active round to completed; false if it was not active
	MarkCompleted(ctx context.Context, roundID int64, outcome models.Outcome) (bool, error)

	// IncrementAggregates adds to bet_count and total_amount and returns the updated round
	IncrementAggregates(ctx context.Context, roundID int64, betCount, amount int64) (*models.Round, error)

	// MarkProcessed flags a completed round as fully settled; false if it already was
	MarkProcessed(ctx context.Context, roundID int64, houseShare, unallocated int64) (bool, error)

	// FindCompletedUnprocessed returns completed rounds whose settlement has not finished
	FindCompletedUnprocessed(ctx context.Context, scope models.Scope) ([]*models.Round, error)

	// GetCompletedHistory returns the most recent completed rounds, newest first
	GetCompletedHistory(ctx context.Context, scope models.Scope, limit int) ([]*models.Round, error)

	// FindScopesWithOpenWork lists scopes that have active or unsettled rounds or waiting bets
	FindScopesWithOpenWork(ctx context.Context) ([]models.Scope, error)
}

// BetRepository defines the interface for bet data access
type BetRepository interface {
	// Create inserts a bet and fills in its ID and timestamps
	Create(ctx context.Context, bet *models.Bet) error

	// GetByID retrieves a bet by its ID
	GetByID(ctx context.Context, id int64) (*models.Bet, error)

	// FindPendingForRound returns the unsettled bets of a round
	FindPendingForRound(ctx context.Context, scope models.Scope, roundID int64) ([]*models.Bet, error)

	// FindByRound returns every bet attached to a round
	FindByRound(ctx context.Context, roundID int64) ([]*models.Bet, error)

	// FindByUserAndRound returns the user's pending bet in the round, or nil
	FindByUserAndRound(ctx context.Context, userID string, roundID int64) (*models.Bet, error)

	// FindWaitingByUser returns the user's waiting bet in a room scope, or nil
	FindWaitingByUser(ctx context.Context, userID string, scope models.Scope) (*models.Bet, error)

	// CountWaitingParticipants counts distinct users with a waiting bet in the scope
	CountWaitingParticipants(ctx context.Context, scope models.Scope) (int, error)

	// AttachWaitingToRound moves waiting bets of the scope onto the round as pending
	AttachWaitingToRound(ctx context.Context, scope models.Scope, roundID int64) (count int64, total int64, err error)

	// BatchUpdateStatus writes settlement results for unprocessed bets and
	// returns the IDs that this call actually transitioned
	BatchUpdateStatus(ctx context.Context, updates []models.BetUpdate) ([]int64, error)

	// CountUnprocessed counts bets of the round that settlement has not applied yet
	CountUnprocessed(ctx context.Context, roundID int64) (int64, error)

	// GetByUser returns recent bets of a user
	GetByUser(ctx context.Context, userID string, limit int) ([]*models.Bet, error)
}

// RoomRepository defines the interface for private room data access
type RoomRepository interface {
	// Create inserts a room and its creator as first participant
	Create(ctx context.Context, room *models.Room) error

	// GetByID retrieves a room with its participants, or nil
	GetByID(ctx context.Context, roomID string) (*models.Room, error)

	// GetByIDForUpdate retrieves a room and locks its row; this is the room's scope lock
	GetByIDForUpdate(ctx context.Context, roomID string) (*models.Room, error)

	// AddParticipant adds a user to the room if not already present
	AddParticipant(ctx context.Context, roomID, userID string) error

	// MarkStarted sets the started flag
	MarkStarted(ctx context.Context, roomID string) error

	// AddEarnings credits the room's house share counter
	AddEarnings(ctx context.Context, roomID string, amount int64) error
}

// EventPublisher receives events raised inside a unit of work
type EventPublisher interface {
	Publish(event events.Event)
}

// EventSubscriber registers event handlers and returns an unsubscribe function
type EventSubscriber interface {
	Subscribe(eventType events.EventType, handler events.Handler) func()
}

// UnitOfWork groups repository calls into a single transaction
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	AccountRepository() AccountRepository
	BalanceHistoryRepository() BalanceHistoryRepository
	RoundRepository() RoundRepository
	BetRepository() BetRepository
	RoomRepository() RoomRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// AccountService defines account operations the round engine depends on
type AccountService interface {
	// GetOrCreate returns the account, creating it with the starting balance if needed
	GetOrCreate(ctx context.Context, userID, username string) (*models.Account, error)

	// GetStats returns display statistics for a user
	GetStats(ctx context.Context, userID string) (*models.PlayerStats, error)

	// EnsureHouseAccount creates the account receiving public house shares
	EnsureHouseAccount(ctx context.Context) error
}

// BettingService admits bets into rounds
type BettingService interface {
	// PlaceBet validates and records a bet, debiting the stake atomically
	PlaceBet(ctx context.Context, userID string, scope models.Scope, outcome models.Outcome, amount int64) (*models.Bet, error)
}

// SettlementService closes rounds and redistributes stakes
type SettlementService interface {
	// Settle draws (or reuses) the outcome of a round and applies its payouts. Repeatable.
	Settle(ctx context.Context, roundID int64) (*models.SettlementResult, error)
}

// RoundService exposes round lifecycle and read operations
type RoundService interface {
	// OpenRound returns the active round of the scope, creating one if none exists
	OpenRound(ctx context.Context, scope models.Scope) (round *models.Round, created bool, err error)

	GetActiveRound(ctx context.Context, scope models.Scope) (*models.Round, error)
	FindActiveRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error)
	FindUnsettledRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error)
	FindScopesWithOpenWork(ctx context.Context) ([]models.Scope, error)
	GetHistory(ctx context.Context, scope models.Scope, limit int) ([]*models.Round, error)
	GetRoundBets(ctx context.Context, scope models.Scope, roundID int64) ([]*models.Bet, error)
	GetUserBets(ctx context.Context, userID string, limit int) ([]*models.Bet, error)
}

// RoomService manages private rooms and their round gate
type RoomService interface {
	CreateRoom(ctx context.Context, creatorID, name string) (*models.Room, error)
	JoinRoom(ctx context.Context, roomID, userID string) (*models.Room, error)
	StartRoom(ctx context.Context, roomID, userID string) (*models.Room, error)
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)

	// StartRoomRound opens a round from waiting bets when the room is started,
	// idle and has enough distinct bettors. Returns nil when the gate is closed.
	StartRoomRound(ctx context.Context, scope models.Scope) (*models.Round, error)
}

// ChangeCallback receives batches of subscription records
type ChangeCallback func(changes []models.RoundChange)

// RoundFeed streams round changes for a scope
type RoundFeed interface {
	// SubscribeActive delivers the active rounds of the scope, then deltas
	SubscribeActive(ctx context.Context, scope models.Scope, cb ChangeCallback) (func(), error)

	// SubscribeCompletedHistory delivers the latest completed rounds, then deltas
	SubscribeCompletedHistory(ctx context.Context, scope models.Scope, limit int, cb ChangeCallback) (func(), error)
}
