package server

import (
	"context"

	"coino/models"
	"coino/service"

	"github.com/stretchr/testify/mock"
)

type mockAccounts struct{ mock.Mock }

func (m *mockAccounts) GetOrCreate(ctx context.Context, userID, username string) (*models.Account, error) {
	args := m.Called(ctx, userID, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockAccounts) GetStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PlayerStats), args.Error(1)
}

func (m *mockAccounts) EnsureHouseAccount(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockBetting struct{ mock.Mock }

func (m *mockBetting) PlaceBet(ctx context.Context, userID string, scope models.Scope, outcome models.Outcome, amount int64) (*models.Bet, error) {
	args := m.Called(ctx, userID, scope, outcome, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bet), args.Error(1)
}

type mockRounds struct{ mock.Mock }

func (m *mockRounds) OpenRound(ctx context.Context, scope models.Scope) (*models.Round, bool, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Round), args.Bool(1), args.Error(2)
}

func (m *mockRounds) GetActiveRound(ctx context.Context, scope models.Scope) (*models.Round, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

func (m *mockRounds) rounds(args mock.Arguments) ([]*models.Round, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Round), args.Error(1)
}

func (m *mockRounds) FindActiveRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error) {
	return m.rounds(m.Called(ctx, scope))
}

func (m *mockRounds) FindUnsettledRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error) {
	return m.rounds(m.Called(ctx, scope))
}

func (m *mockRounds) FindScopesWithOpenWork(ctx context.Context) ([]models.Scope, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Scope), args.Error(1)
}

func (m *mockRounds) GetHistory(ctx context.Context, scope models.Scope, limit int) ([]*models.Round, error) {
	return m.rounds(m.Called(ctx, scope, limit))
}

func (m *mockRounds) bets(args mock.Arguments) ([]*models.Bet, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *mockRounds) GetRoundBets(ctx context.Context, scope models.Scope, roundID int64) ([]*models.Bet, error) {
	return m.bets(m.Called(ctx, scope, roundID))
}

func (m *mockRounds) GetUserBets(ctx context.Context, userID string, limit int) ([]*models.Bet, error) {
	return m.bets(m.Called(ctx, userID, limit))
}

type mockRooms struct{ mock.Mock }

func (m *mockRooms) room(args mock.Arguments) (*models.Room, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *mockRooms) CreateRoom(ctx context.Context, creatorID, name string) (*models.Room, error) {
	return m.room(m.Called(ctx, creatorID, name))
}

func (m *mockRooms) JoinRoom(ctx context.Context, roomID, userID string) (*models.Room, error) {
	return m.room(m.Called(ctx, roomID, userID))
}

func (m *mockRooms) StartRoom(ctx context.Context, roomID, userID string) (*models.Room, error) {
	return m.room(m.Called(ctx, roomID, userID))
}

func (m *mockRooms) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	return m.room(m.Called(ctx, roomID))
}

func (m *mockRooms) StartRoomRound(ctx context.Context, scope models.Scope) (*models.Round, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Round), args.Error(1)
}

// stubFeed delivers a fixed snapshot and keeps the callback for later deltas
type stubFeed struct {
	snapshot []models.RoundChange
	cb       chan service.ChangeCallback
}

func (f *stubFeed) subscribe(cb service.ChangeCallback) (func(), error) {
	cb(f.snapshot)
	if f.cb != nil {
		f.cb <- cb
	}
	return func() {}, nil
}

func (f *stubFeed) SubscribeActive(_ context.Context, _ models.Scope, cb service.ChangeCallback) (func(), error) {
	return f.subscribe(cb)
}

func (f *stubFeed) SubscribeCompletedHistory(_ context.Context, _ models.Scope, _ int, cb service.ChangeCallback) (func(), error) {
	return f.subscribe(cb)
}
