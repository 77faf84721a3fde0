package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"coino/config"
	"coino/events"
	"coino/models"
	"coino/repository"
	"coino/repository/testutil"
	"coino/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engine struct {
	accounts   service.AccountService
	rounds     service.RoundService
	betting    service.BettingService
	settlement service.SettlementService
	rooms      service.RoomService
}

func newEngine(t *testing.T, outcome models.Outcome) (*engine, *config.Config) {
	t.Helper()

	testDB := testutil.SetupTestDatabase(t)
	bus := events.NewBus()
	t.Cleanup(bus.Close)

	cfg := config.NewTestConfig()
	factory := repository.NewUnitOfWorkFactory(testDB.DB, bus)

	e := &engine{
		accounts: service.NewAccountService(factory, cfg),
		rounds:   service.NewRoundService(factory, cfg, nil),
		betting:  service.NewBettingService(factory, cfg, nil),
		settlement: service.NewSettlementServiceWithDrawer(factory, cfg, nil, func() (models.Outcome, error) {
			return outcome, nil
		}),
		rooms: service.NewRoomService(factory, cfg, nil),
	}
	require.NoError(t, e.accounts.EnsureHouseAccount(context.Background()))
	return e, cfg
}

func (e *engine) balance(t *testing.T, userID string) int64 {
	t.Helper()
	stats, err := e.accounts.GetStats(context.Background(), userID)
	require.NoError(t, err)
	return stats.Balance
}

func TestSettlement_Integration_PublicRound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	e, cfg := newEngine(t, models.OutcomeRed)

	_, err := e.accounts.GetOrCreate(ctx, "alice", "Alice")
	require.NoError(t, err)
	_, err = e.accounts.GetOrCreate(ctx, "bob", "Bob")
	require.NoError(t, err)

	round, created, err := e.rounds.OpenRound(ctx, models.PublicScope)
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := e.rounds.OpenRound(ctx, models.PublicScope)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, round.ID, again.ID)

	_, err = e.betting.PlaceBet(ctx, "alice", models.PublicScope, models.OutcomeRed, 100)
	require.NoError(t, err)
	_, err = e.betting.PlaceBet(ctx, "bob", models.PublicScope, models.OutcomeBlue, 100)
	require.NoError(t, err)

	_, err = e.betting.PlaceBet(ctx, "alice", models.PublicScope, models.OutcomeGreen, 50)
	assert.ErrorIs(t, err, service.ErrDuplicateBet)

	start := cfg.StartingBalance
	assert.Equal(t, start-100, e.balance(t, "alice"))

	result, err := e.settlement.Settle(ctx, round.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, int64(200), result.TotalStakes)
	assert.Equal(t, int64(25), result.HouseShare)

	assert.Equal(t, start+25, e.balance(t, "alice"))
	assert.Equal(t, start-50, e.balance(t, "bob"))
	assert.Equal(t, int64(25), e.balance(t, cfg.HouseUserID))

	t.Run("second settlement changes nothing", func(t *testing.T) {
		result, err := e.settlement.Settle(ctx, round.ID)
		require.NoError(t, err)
		assert.True(t, result.AlreadyProcessed)

		assert.Equal(t, start+25, e.balance(t, "alice"))
		assert.Equal(t, start-50, e.balance(t, "bob"))
		assert.Equal(t, int64(25), e.balance(t, cfg.HouseUserID))
	})

	t.Run("bets are terminal and processed", func(t *testing.T) {
		bets, err := e.rounds.GetRoundBets(ctx, models.PublicScope, round.ID)
		require.NoError(t, err)
		require.Len(t, bets, 2)
		for _, bet := range bets {
			assert.True(t, bet.Processed)
			assert.True(t, bet.IsTerminal())
		}
	})

	t.Run("no bets after completion", func(t *testing.T) {
		_, err := e.betting.PlaceBet(ctx, "bob", models.PublicScope, models.OutcomeRed, 10)
		assert.ErrorIs(t, err, service.ErrRoundNotActive)
	})

	t.Run("history lists the settled round", func(t *testing.T) {
		history, err := e.rounds.GetHistory(ctx, models.PublicScope, 5)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, history[0].Processed)
		assert.Equal(t, models.OutcomeRed, *history[0].WinningOutcome)
	})
}

func TestSettlement_Integration_SingleLoser(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	e, cfg := newEngine(t, models.OutcomeBlue)
	cfg.StartingBalance = 10

	_, err := e.accounts.GetOrCreate(ctx, "alice", "Alice")
	require.NoError(t, err)

	round, _, err := e.rounds.OpenRound(ctx, models.PublicScope)
	require.NoError(t, err)

	bet, err := e.betting.PlaceBet(ctx, "alice", models.PublicScope, models.OutcomeRed, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.balance(t, "alice"))

	_, err = e.settlement.Settle(ctx, round.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(5), e.balance(t, "alice"))

	bets, err := e.rounds.GetUserBets(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, bet.ID, bets[0].ID)
	assert.Equal(t, models.BetStatusLost, bets[0].Status)
	assert.Equal(t, int64(5), bets[0].LostAmount)
	assert.Equal(t, int64(5), bets[0].ReturnedAmount)
}

func TestSettlement_Integration_PrivilegeGrantedAfterSignup(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	e, cfg := newEngine(t, models.OutcomeRed)

	cfg.StartingBalance = 100
	_, err := e.accounts.GetOrCreate(ctx, "admin", "Admin")
	require.NoError(t, err)
	cfg.StartingBalance = 1000
	_, err = e.accounts.GetOrCreate(ctx, "bob", "Bob")
	require.NoError(t, err)

	// configured after the account row already exists
	cfg.PrivilegedUserIDs = []string{"admin"}

	first, _, err := e.rounds.OpenRound(ctx, models.PublicScope)
	require.NoError(t, err)

	_, err = e.betting.PlaceBet(ctx, "admin", models.PublicScope, models.OutcomeBlue, 500)
	require.ErrorIs(t, err, service.ErrInsufficientFunds, "unpromoted row still has to cover the stake")

	_, err = e.betting.PlaceBet(ctx, "admin", models.PublicScope, models.OutcomeBlue, 100)
	require.NoError(t, err)
	_, err = e.betting.PlaceBet(ctx, "bob", models.PublicScope, models.OutcomeRed, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), e.balance(t, "admin"))

	result, err := e.settlement.Settle(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, int64(50), e.balance(t, "admin"))
	assert.Equal(t, int64(1025), e.balance(t, "bob"))

	second, created, err := e.rounds.OpenRound(ctx, models.PublicScope)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	account, err := e.accounts.GetOrCreate(ctx, "admin", "Admin")
	require.NoError(t, err)
	assert.True(t, account.Privileged, "next lookup promotes the row")

	bet, err := e.betting.PlaceBet(ctx, "admin", models.PublicScope, models.OutcomeBlue, 500)
	require.NoError(t, err)
	assert.False(t, bet.Debited)
	_, err = e.betting.PlaceBet(ctx, "bob", models.PublicScope, models.OutcomeRed, 100)
	require.NoError(t, err)

	result, err = e.settlement.Settle(ctx, second.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, int64(250), result.Pool)

	// the forfeit is netted against the privileged balance
	assert.Equal(t, int64(-200), e.balance(t, "admin"))
	assert.Equal(t, int64(1150), e.balance(t, "bob"))
	assert.Equal(t, int64(150), e.balance(t, cfg.HouseUserID))

	again, err := e.settlement.Settle(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
}

func TestSettlement_Integration_ConcurrentDoubleBet(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	e, cfg := newEngine(t, models.OutcomeRed)

	_, err := e.accounts.GetOrCreate(ctx, "alice", "Alice")
	require.NoError(t, err)
	_, _, err = e.rounds.OpenRound(ctx, models.PublicScope)
	require.NoError(t, err)

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.betting.PlaceBet(ctx, "alice", models.PublicScope, models.OutcomeRed, 100)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, service.ErrDuplicateBet), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, cfg.StartingBalance-100, e.balance(t, "alice"))

	round, err := e.rounds.GetActiveRound(ctx, models.PublicScope)
	require.NoError(t, err)
	assert.Equal(t, int64(1), round.BetCount)
	assert.Equal(t, int64(100), round.TotalAmount)
}

func TestSettlement_Integration_RoomRound(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	e, cfg := newEngine(t, models.OutcomeRed)
	start := cfg.StartingBalance

	for _, id := range []string{"carol", "dave"} {
		_, err := e.accounts.GetOrCreate(ctx, id, id)
		require.NoError(t, err)
	}

	room, err := e.rooms.CreateRoom(ctx, "carol", "friday night")
	require.NoError(t, err)
	scope := room.Scope()

	_, err = e.rooms.StartRoom(ctx, room.ID, "dave")
	assert.ErrorIs(t, err, service.ErrNotRoomCreator)

	_, err = e.rooms.StartRoom(ctx, room.ID, "carol")
	require.NoError(t, err)

	_, err = e.betting.PlaceBet(ctx, "carol", scope, models.OutcomeRed, 100)
	require.NoError(t, err)

	t.Run("one participant never starts a round", func(t *testing.T) {
		round, err := e.rooms.StartRoomRound(ctx, scope)
		require.NoError(t, err)
		assert.Nil(t, round)
	})

	_, err = e.betting.PlaceBet(ctx, "dave", scope, models.OutcomeBlue, 100)
	require.NoError(t, err)

	round, err := e.rooms.StartRoomRound(ctx, scope)
	require.NoError(t, err)
	require.NotNil(t, round)
	assert.Equal(t, int64(2), round.BetCount)
	assert.Equal(t, int64(200), round.TotalAmount)

	second, err := e.rooms.StartRoomRound(ctx, scope)
	require.NoError(t, err)
	assert.Nil(t, second, "a room has at most one active round")

	result, err := e.settlement.Settle(ctx, round.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), result.HouseShare)

	// creator wins the bonus and collects the house share
	assert.Equal(t, start+25+25, e.balance(t, "carol"))
	assert.Equal(t, start-50, e.balance(t, "dave"))
	assert.Equal(t, int64(0), e.balance(t, cfg.HouseUserID))

	updated, err := e.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), updated.Earnings)
	assert.ElementsMatch(t, []string{"carol", "dave"}, updated.Participants)
}
