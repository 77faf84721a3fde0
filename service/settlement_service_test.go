package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"coino/config"
	"coino/events"
	"coino/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func fixedDraw(outcome models.Outcome) OutcomeDrawer {
	return func() (models.Outcome, error) { return outcome, nil }
}

func activeRound(id int64) *models.Round {
	return &models.Round{
		ID:        id,
		Scope:     models.PublicScope,
		Status:    models.RoundStatusActive,
		StartTime: time.Now().Add(-2 * time.Minute),
		Duration:  time.Minute,
	}
}

func completedRound(id int64, outcome models.Outcome, processed bool) *models.Round {
	round := activeRound(id)
	round.Status = models.RoundStatusCompleted
	round.WinningOutcome = &outcome
	round.Processed = processed
	return round
}

func pendingBet(id, roundID int64, userID string, outcome models.Outcome, amount int64) *models.Bet {
	bet := testBet(id, userID, outcome, amount)
	bet.RoundID = &roundID
	return bet
}

func TestSettlementService_Settle_AlreadyProcessed(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewSettlementServiceWithDrawer(store.factory, config.NewTestConfig(), nil, func() (models.Outcome, error) {
		t.Fatal("outcome must not be drawn again")
		return "", nil
	})

	settled := completedRound(1, models.OutcomeRed, true)
	settled.HouseShare = 25
	store.rounds.On("GetByIDForUpdate", mock.Anything, int64(1)).Return(settled, nil)

	result, err := svc.Settle(ctx, 1)
	require.NoError(t, err)
	assert.True(t, result.AlreadyProcessed)
	assert.Equal(t, models.OutcomeRed, result.Outcome)
	assert.Equal(t, int64(25), result.HouseShare)

	store.bets.AssertNotCalled(t, "FindByRound", mock.Anything, mock.Anything)
	store.accounts.AssertNotCalled(t, "ApplySettlementCredits", mock.Anything, mock.Anything)
	store.rounds.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_Settle_DrawsAndPays(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewSettlementServiceWithDrawer(store.factory, config.NewTestConfig(), nil, fixedDraw(models.OutcomeRed))

	roundID := int64(1)
	bets := []*models.Bet{
		pendingBet(10, roundID, "alice", models.OutcomeRed, 100),
		pendingBet(11, roundID, "bob", models.OutcomeBlue, 100),
	}

	store.rounds.On("GetByIDForUpdate", mock.Anything, roundID).Return(activeRound(roundID), nil).Once()
	store.rounds.On("MarkCompleted", mock.Anything, roundID, models.OutcomeRed).Return(true, nil)
	store.bets.On("FindByRound", mock.Anything, roundID).Return(bets, nil)
	store.bets.On("BatchUpdateStatus", mock.Anything, mock.MatchedBy(func(updates []models.BetUpdate) bool {
		return len(updates) == 2 &&
			updates[0].Status == models.BetStatusWon && updates[0].WinAmount == 125 &&
			updates[1].Status == models.BetStatusLost && updates[1].ReturnedAmount == 50
	})).Return([]int64{10, 11}, nil)
	store.accounts.On("ApplySettlementCredits", mock.Anything, mock.MatchedBy(func(credits []models.AccountCredit) bool {
		return len(credits) == 2 &&
			credits[0].UserID == "alice" && credits[0].Delta == 125 && credits[0].WonAmount == 25 &&
			credits[1].UserID == "bob" && credits[1].Delta == 50 && credits[1].LostAmount == 50
	})).Return([]models.BalanceChange{
		{UserID: "alice", BalanceBefore: 900, BalanceAfter: 1025},
		{UserID: "bob", BalanceBefore: 900, BalanceAfter: 950},
	}, nil)
	store.histories.On("RecordBatch", mock.Anything, mock.MatchedBy(func(h []*models.BalanceHistory) bool {
		return len(h) == 2 &&
			h[0].TransactionType == models.TransactionTypeBetWin &&
			h[1].TransactionType == models.TransactionTypeBetRefund
	})).Return(nil)

	store.rounds.On("GetByIDForUpdate", mock.Anything, roundID).Return(completedRound(roundID, models.OutcomeRed, false), nil).Once()
	store.bets.On("CountUnprocessed", mock.Anything, roundID).Return(int64(0), nil)
	store.accounts.On("ApplyBalanceDelta", mock.Anything, "house", int64(25)).
		Return(&models.BalanceChange{UserID: "house", BalanceBefore: 0, BalanceAfter: 25}, nil)
	store.histories.On("Record", mock.Anything, mock.MatchedBy(func(h *models.BalanceHistory) bool {
		return h.TransactionType == models.TransactionTypeHouseShare && h.ChangeAmount == 25
	})).Return(nil)
	store.rounds.On("MarkProcessed", mock.Anything, roundID, int64(25), int64(0)).Return(true, nil)

	result, err := svc.Settle(ctx, roundID)
	require.NoError(t, err)

	assert.False(t, result.AlreadyProcessed)
	assert.Equal(t, models.OutcomeRed, result.Outcome)
	assert.Equal(t, int64(50), result.Pool)
	assert.Equal(t, int64(25), result.HouseShare)
	assert.Equal(t, 2, result.AppliedBets)

	store.assertExpectations(t)
	store.publisher.AssertCalled(t, "Publish", mock.MatchedBy(func(e events.Event) bool {
		_, ok := e.(events.RoundCompletedEvent)
		return ok
	}))
	store.publisher.AssertCalled(t, "Publish", mock.MatchedBy(func(e events.Event) bool {
		settled, ok := e.(events.RoundSettledEvent)
		return ok && settled.Round.Processed && settled.Result.HouseShare == 25
	}))
}

func TestSettlementService_Settle_SkipsBetsClaimedElsewhere(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewSettlementServiceWithDrawer(store.factory, config.NewTestConfig(), nil, fixedDraw(models.OutcomeRed))

	roundID := int64(2)
	bets := []*models.Bet{
		pendingBet(20, roundID, "alice", models.OutcomeRed, 100),
		pendingBet(21, roundID, "bob", models.OutcomeBlue, 100),
	}

	store.rounds.On("GetByIDForUpdate", mock.Anything, roundID).Return(completedRound(roundID, models.OutcomeRed, false), nil)
	store.bets.On("FindByRound", mock.Anything, roundID).Return(bets, nil)
	store.bets.On("BatchUpdateStatus", mock.Anything, mock.Anything).Return([]int64{20}, nil)
	store.accounts.On("ApplySettlementCredits", mock.Anything, mock.MatchedBy(func(credits []models.AccountCredit) bool {
		return len(credits) == 1 && credits[0].BetID == 20
	})).Return([]models.BalanceChange{{UserID: "alice", BalanceBefore: 0, BalanceAfter: 125}}, nil)
	store.histories.On("RecordBatch", mock.Anything, mock.Anything).Return(nil)
	store.bets.On("CountUnprocessed", mock.Anything, roundID).Return(int64(0), nil)
	store.accounts.On("ApplyBalanceDelta", mock.Anything, "house", int64(25)).
		Return(&models.BalanceChange{UserID: "house", BalanceAfter: 25}, nil)
	store.histories.On("Record", mock.Anything, mock.Anything).Return(nil)
	store.rounds.On("MarkProcessed", mock.Anything, roundID, int64(25), int64(0)).Return(true, nil)

	result, err := svc.Settle(ctx, roundID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AppliedBets)
	store.rounds.AssertNotCalled(t, "MarkCompleted", mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_Settle_PartialFailureLeavesRoundUnprocessed(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewSettlementServiceWithDrawer(store.factory, config.NewTestConfig(), nil, fixedDraw(models.OutcomeRed))

	roundID := int64(3)
	store.rounds.On("GetByIDForUpdate", mock.Anything, roundID).Return(completedRound(roundID, models.OutcomeRed, false), nil)
	store.bets.On("FindByRound", mock.Anything, roundID).
		Return([]*models.Bet{pendingBet(30, roundID, "alice", models.OutcomeRed, 100)}, nil)
	store.bets.On("BatchUpdateStatus", mock.Anything, mock.Anything).Return(nil, errors.New("constraint failed"))

	_, err := svc.Settle(ctx, roundID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSettlementPartial)

	store.rounds.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.accounts.AssertNotCalled(t, "ApplySettlementCredits", mock.Anything, mock.Anything)
}

func TestSettlementService_Settle_RefusesToFinalizeWithUnsettledBets(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewSettlementServiceWithDrawer(store.factory, config.NewTestConfig(), nil, fixedDraw(models.OutcomeRed))

	roundID := int64(4)
	store.rounds.On("GetByIDForUpdate", mock.Anything, roundID).Return(completedRound(roundID, models.OutcomeRed, false), nil)
	store.bets.On("FindByRound", mock.Anything, roundID).Return([]*models.Bet{}, nil)
	store.bets.On("CountUnprocessed", mock.Anything, roundID).Return(int64(1), nil)

	_, err := svc.Settle(ctx, roundID)
	assert.ErrorIs(t, err, ErrSettlementPartial)
	store.rounds.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSettlementService_Settle_RoomHouseShareGoesToCreator(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	svc := NewSettlementServiceWithDrawer(store.factory, config.NewTestConfig(), nil, fixedDraw(models.OutcomeRed))

	roundID := int64(5)
	round := completedRound(roundID, models.OutcomeRed, false)
	round.Scope = models.RoomScope("r1")

	store.rounds.On("GetByIDForUpdate", mock.Anything, roundID).Return(round, nil)
	store.bets.On("FindByRound", mock.Anything, roundID).
		Return([]*models.Bet{pendingBet(50, roundID, "bob", models.OutcomeBlue, 40)}, nil)
	store.bets.On("BatchUpdateStatus", mock.Anything, mock.Anything).Return([]int64{50}, nil)
	store.accounts.On("ApplySettlementCredits", mock.Anything, mock.Anything).
		Return([]models.BalanceChange{{UserID: "bob", BalanceBefore: 60, BalanceAfter: 80}}, nil)
	store.histories.On("RecordBatch", mock.Anything, mock.Anything).Return(nil)
	store.bets.On("CountUnprocessed", mock.Anything, roundID).Return(int64(0), nil)
	store.rooms.On("GetByIDForUpdate", mock.Anything, "r1").Return(&models.Room{ID: "r1", CreatorID: "carol"}, nil)
	store.accounts.On("ApplyBalanceDelta", mock.Anything, "carol", int64(10)).
		Return(&models.BalanceChange{UserID: "carol", BalanceBefore: 0, BalanceAfter: 10}, nil)
	store.histories.On("Record", mock.Anything, mock.Anything).Return(nil)
	store.rooms.On("AddEarnings", mock.Anything, "r1", int64(10)).Return(nil)
	store.rounds.On("MarkProcessed", mock.Anything, roundID, int64(10), int64(10)).Return(true, nil)

	result, err := svc.Settle(ctx, roundID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.HouseShare)
	assert.Equal(t, int64(10), result.Unallocated)

	store.assertExpectations(t)
	store.accounts.AssertNotCalled(t, "ApplyBalanceDelta", mock.Anything, "house", mock.Anything)
}

func TestDrawOutcome_ReturnsKnownOutcomes(t *testing.T) {
	seen := make(map[models.Outcome]bool)
	for i := 0; i < 300; i++ {
		outcome, err := DrawOutcome()
		require.NoError(t, err)
		require.True(t, outcome.IsValid())
		seen[outcome] = true
	}
	assert.Len(t, seen, len(models.Outcomes))
}
