package service

import (
	"context"
	"time"

	"coino/events"
	"coino/models"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByUserID(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByUserIDForUpdate(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, userID, username string, initialBalance int64, privileged bool) (*models.Account, bool, error) {
	args := m.Called(ctx, userID, username, initialBalance, privileged)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Account), args.Bool(1), args.Error(2)
}

func (m *MockAccountRepository) Promote(ctx context.Context, userID string) (*models.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *MockAccountRepository) ApplyBalanceDelta(ctx context.Context, userID string, delta int64) (*models.BalanceChange, error) {
	args := m.Called(ctx, userID, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BalanceChange), args.Error(1)
}

func (m *MockAccountRepository) ApplySettlementCredits(ctx context.Context, credits []models.AccountCredit) ([]models.BalanceChange, error) {
	args := m.Called(ctx, credits)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.BalanceChange), args.Error(1)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) RecordBatch(ctx context.Context, histories []*models.BalanceHistory) error {
	args := m.Called(ctx, histories)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockRoundRepository is a mock implementation of RoundRepository
type MockRoundRepository struct {
	mock.Mock
}

func (m *MockRoundRepository) LockScope(ctx context.Context, scope models.Scope) error {
	args := m.Called(ctx, scope)
	return args.Error(0)
}

func (m *MockRoundRepository) FindActiveRound(ctx context.Context, scope models.Scope) (*models.Round, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) FindActiveRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Round), args.Error(1)
}

func (m *MockRoundRepository) CreateRound(ctx context.Context, scope models.Scope, duration time.Duration) (*models.Round, error) {
	args := m.Called(ctx, scope, duration)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) GetByID(ctx context.Context, roundID int64) (*models.Round, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) GetByIDForUpdate(ctx context.Context, roundID int64) (*models.Round, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) MarkCompleted(ctx context.Context, roundID int64, outcome models.Outcome) (bool, error) {
	args := m.Called(ctx, roundID, outcome)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoundRepository) IncrementAggregates(ctx context.Context, roundID int64, betCount, amount int64) (*models.Round, error) {
	args := m.Called(ctx, roundID, betCount, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *MockRoundRepository) MarkProcessed(ctx context.Context, roundID int64, houseShare, unallocated int64) (bool, error) {
	args := m.Called(ctx, roundID, houseShare, unallocated)
	return args.Bool(0), args.Error(1)
}

func (m *MockRoundRepository) FindCompletedUnprocessed(ctx context.Context, scope models.Scope) ([]*models.Round, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Round), args.Error(1)
}

func (m *MockRoundRepository) GetCompletedHistory(ctx context.Context, scope models.Scope, limit int) ([]*models.Round, error) {
	args := m.Called(ctx, scope, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Round), args.Error(1)
}

func (m *MockRoundRepository) FindScopesWithOpenWork(ctx context.Context) ([]models.Scope, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Scope), args.Error(1)
}

// MockBetRepository is a mock implementation of BetRepository
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *models.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) GetByID(ctx context.Context, id int64) (*models.Bet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBetRepository) FindPendingForRound(ctx context.Context, scope models.Scope, roundID int64) ([]*models.Bet, error) {
	args := m.Called(ctx, scope, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) FindByRound(ctx context.Context, roundID int64) ([]*models.Bet, error) {
	args := m.Called(ctx, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) FindByUserAndRound(ctx context.Context, userID string, roundID int64) (*models.Bet, error) {
	args := m.Called(ctx, userID, roundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBetRepository) FindWaitingByUser(ctx context.Context, userID string, scope models.Scope) (*models.Bet, error) {
	args := m.Called(ctx, userID, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

func (m *MockBetRepository) CountWaitingParticipants(ctx context.Context, scope models.Scope) (int, error) {
	args := m.Called(ctx, scope)
	return args.Int(0), args.Error(1)
}

func (m *MockBetRepository) AttachWaitingToRound(ctx context.Context, scope models.Scope, roundID int64) (int64, int64, error) {
	args := m.Called(ctx, scope, roundID)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockBetRepository) BatchUpdateStatus(ctx context.Context, updates []models.BetUpdate) ([]int64, error) {
	args := m.Called(ctx, updates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockBetRepository) CountUnprocessed(ctx context.Context, roundID int64) (int64, error) {
	args := m.Called(ctx, roundID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBetRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.Bet, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

// MockRoomRepository is a mock implementation of RoomRepository
type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) Create(ctx context.Context, room *models.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *MockRoomRepository) GetByID(ctx context.Context, roomID string) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockRoomRepository) GetByIDForUpdate(ctx context.Context, roomID string) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockRoomRepository) AddParticipant(ctx context.Context, roomID, userID string) error {
	args := m.Called(ctx, roomID, userID)
	return args.Error(0)
}

func (m *MockRoomRepository) MarkStarted(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *MockRoomRepository) AddEarnings(ctx context.Context, roomID string, amount int64) error {
	args := m.Called(ctx, roomID, amount)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork. Repository getters
// return whatever SetRepositories installed and are not recorded as calls.
type MockUnitOfWork struct {
	mock.Mock

	accounts  AccountRepository
	histories BalanceHistoryRepository
	rounds    RoundRepository
	bets      BetRepository
	rooms     RoomRepository
	publisher EventPublisher
}

// SetRepositories installs the repositories returned by the getters
func (m *MockUnitOfWork) SetRepositories(accounts AccountRepository, histories BalanceHistoryRepository, rounds RoundRepository, bets BetRepository, rooms RoomRepository, publisher EventPublisher) {
	m.accounts = accounts
	m.histories = histories
	m.rounds = rounds
	m.bets = bets
	m.rooms = rooms
	m.publisher = publisher
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository {
	return m.accounts
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.histories
}

func (m *MockUnitOfWork) RoundRepository() RoundRepository {
	return m.rounds
}

func (m *MockUnitOfWork) BetRepository() BetRepository {
	return m.bets
}

func (m *MockUnitOfWork) RoomRepository() RoomRepository {
	return m.rooms
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.publisher
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}
