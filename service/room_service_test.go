package service

import (
	"context"
	"testing"
	"time"

	"coino/config"
	"coino/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRoomService_StartRoomRound_Gate(t *testing.T) {
	ctx := context.Background()
	scope := models.RoomScope("r1")

	t.Run("room not started", func(t *testing.T) {
		store := newMockStore()
		svc := NewRoomService(store.factory, config.NewTestConfig(), nil)
		store.rooms.On("GetByIDForUpdate", mock.Anything, "r1").Return(&models.Room{ID: "r1", CreatorID: "carol"}, nil)

		round, err := svc.StartRoomRound(ctx, scope)
		require.NoError(t, err)
		assert.Nil(t, round)
		store.bets.AssertNotCalled(t, "CountWaitingParticipants", mock.Anything, mock.Anything)
	})

	t.Run("single participant", func(t *testing.T) {
		store := newMockStore()
		svc := NewRoomService(store.factory, config.NewTestConfig(), nil)
		store.rooms.On("GetByIDForUpdate", mock.Anything, "r1").Return(&models.Room{ID: "r1", Started: true}, nil)
		store.rounds.On("FindActiveRound", mock.Anything, scope).Return(nil, nil)
		store.bets.On("CountWaitingParticipants", mock.Anything, scope).Return(1, nil)

		round, err := svc.StartRoomRound(ctx, scope)
		require.NoError(t, err)
		assert.Nil(t, round)
		store.rounds.AssertNotCalled(t, "CreateRound", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("round already running", func(t *testing.T) {
		store := newMockStore()
		svc := NewRoomService(store.factory, config.NewTestConfig(), nil)
		store.rooms.On("GetByIDForUpdate", mock.Anything, "r1").Return(&models.Room{ID: "r1", Started: true}, nil)
		store.rounds.On("FindActiveRound", mock.Anything, scope).Return(&models.Round{ID: 3, Scope: scope}, nil)

		round, err := svc.StartRoomRound(ctx, scope)
		require.NoError(t, err)
		assert.Nil(t, round)
	})

	t.Run("enough participants", func(t *testing.T) {
		store := newMockStore()
		svc := NewRoomService(store.factory, config.NewTestConfig(), nil)
		store.rooms.On("GetByIDForUpdate", mock.Anything, "r1").Return(&models.Room{ID: "r1", Started: true}, nil)
		store.rounds.On("FindActiveRound", mock.Anything, scope).Return(nil, nil)
		store.bets.On("CountWaitingParticipants", mock.Anything, scope).Return(2, nil)
		store.rounds.On("CreateRound", mock.Anything, scope, time.Duration(0)).
			Return(&models.Round{ID: 9, Scope: scope, Status: models.RoundStatusActive}, nil)
		store.bets.On("AttachWaitingToRound", mock.Anything, scope, int64(9)).Return(int64(2), int64(150), nil)
		store.rounds.On("IncrementAggregates", mock.Anything, int64(9), int64(2), int64(150)).
			Return(&models.Round{ID: 9, Scope: scope, Status: models.RoundStatusActive, BetCount: 2, TotalAmount: 150}, nil)

		round, err := svc.StartRoomRound(ctx, scope)
		require.NoError(t, err)
		require.NotNil(t, round)
		assert.Equal(t, int64(2), round.BetCount)
		store.assertExpectations(t)
	})

	t.Run("public scope is rejected", func(t *testing.T) {
		store := newMockStore()
		svc := NewRoomService(store.factory, config.NewTestConfig(), nil)

		_, err := svc.StartRoomRound(ctx, models.PublicScope)
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestRoomService_CreateRoom_Validation(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewRoomService(store.factory, config.NewTestConfig(), nil)

	_, err := svc.CreateRoom(ctx, "carol", "   ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateRoom(ctx, "", "name")
	assert.ErrorIs(t, err, ErrValidation)

	store.factory.AssertNotCalled(t, "Create")
}

func TestRoundService_OpenRound(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the existing round", func(t *testing.T) {
		store := newMockStore()
		svc := NewRoundService(store.factory, config.NewTestConfig(), nil)
		store.rounds.On("LockScope", mock.Anything, models.PublicScope).Return(nil)
		store.rounds.On("FindActiveRound", mock.Anything, models.PublicScope).Return(openRound(4), nil)

		round, created, err := svc.OpenRound(ctx, models.PublicScope)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(4), round.ID)
		store.rounds.AssertNotCalled(t, "CreateRound", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("creates a round", func(t *testing.T) {
		store := newMockStore()
		cfg := config.NewTestConfig()
		svc := NewRoundService(store.factory, cfg, nil)
		store.rounds.On("LockScope", mock.Anything, models.PublicScope).Return(nil)
		store.rounds.On("FindActiveRound", mock.Anything, models.PublicScope).Return(nil, nil)
		store.rounds.On("CreateRound", mock.Anything, models.PublicScope, cfg.RoundDuration).Return(openRound(5), nil)

		round, created, err := svc.OpenRound(ctx, models.PublicScope)
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, int64(5), round.ID)
		store.publisher.AssertNumberOfCalls(t, "Publish", 1)
	})

	t.Run("room scopes open from waiting bets", func(t *testing.T) {
		store := newMockStore()
		svc := NewRoundService(store.factory, config.NewTestConfig(), nil)

		_, _, err := svc.OpenRound(ctx, models.RoomScope("r1"))
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestRoundService_GetRoundBets_ScopeMismatch(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewRoundService(store.factory, config.NewTestConfig(), nil)

	store.rounds.On("GetByID", mock.Anything, int64(7)).Return(&models.Round{ID: 7, Scope: models.RoomScope("r1")}, nil)

	_, err := svc.GetRoundBets(ctx, models.PublicScope, 7)
	assert.ErrorIs(t, err, ErrRoundNotFound)
}
