package service

import (
	"math"
	"math/rand/v2"
	"testing"

	"coino/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBet(id int64, userID string, outcome models.Outcome, amount int64) *models.Bet {
	return &models.Bet{
		ID:      id,
		UserID:  userID,
		Outcome: outcome,
		Amount:  amount,
		Status:  models.BetStatusPending,
		Debited: true,
	}
}

func paidOut(plan models.SettlementPlan) int64 {
	var total int64
	for _, p := range plan.Payouts {
		total += p.Credit()
	}
	return total
}

func TestPlanSettlement_SingleLoser(t *testing.T) {
	plan := PlanSettlement(models.OutcomeBlue, []*models.Bet{
		testBet(1, "alice", models.OutcomeRed, 10),
	})

	require.Len(t, plan.Payouts, 1)
	payout := plan.Payouts[0]
	assert.False(t, payout.Won)
	assert.Equal(t, int64(5), payout.LostAmount)
	assert.Equal(t, int64(5), payout.ReturnedAmount)
	assert.Equal(t, int64(5), payout.BalanceDelta())

	assert.Equal(t, int64(5), plan.Pool)
	assert.Equal(t, int64(2), plan.WinnersBonus)
	assert.Equal(t, int64(3), plan.HouseShare)
	assert.Equal(t, int64(2), plan.Unallocated, "no winner to receive the bonus")
	assert.Equal(t, 0, plan.Winners)
	assert.Equal(t, 1, plan.Losers)
}

func TestPlanSettlement_OneWinnerOneLoser(t *testing.T) {
	plan := PlanSettlement(models.OutcomeRed, []*models.Bet{
		testBet(1, "alice", models.OutcomeRed, 100),
		testBet(2, "bob", models.OutcomeBlue, 100),
	})

	assert.Equal(t, int64(50), plan.Pool)
	assert.Equal(t, int64(25), plan.WinnersBonus)
	assert.Equal(t, int64(25), plan.HouseShare)
	assert.Equal(t, int64(0), plan.Unallocated)

	winner, loser := plan.Payouts[0], plan.Payouts[1]
	assert.True(t, winner.Won)
	assert.Equal(t, int64(125), winner.WinAmount)
	assert.Equal(t, int64(25), winner.Bonus)

	assert.False(t, loser.Won)
	assert.Equal(t, int64(50), loser.ReturnedAmount)
	assert.Equal(t, int64(50), loser.LostAmount)

	assert.Equal(t, int64(200), paidOut(plan)+plan.HouseShare+plan.Unallocated)
}

func TestPlanSettlement_ProportionalBonus(t *testing.T) {
	plan := PlanSettlement(models.OutcomeGreen, []*models.Bet{
		testBet(1, "a", models.OutcomeGreen, 300),
		testBet(2, "b", models.OutcomeGreen, 100),
		testBet(3, "c", models.OutcomeRed, 400),
	})

	// pool 200, bonus 100 split 3:1
	assert.Equal(t, int64(75), plan.Payouts[0].Bonus)
	assert.Equal(t, int64(25), plan.Payouts[1].Bonus)
	assert.Equal(t, int64(100), plan.Distributed)
	assert.Equal(t, int64(100), plan.HouseShare)
}

func TestPlanSettlement_FloorRemainders(t *testing.T) {
	plan := PlanSettlement(models.OutcomeRed, []*models.Bet{
		testBet(1, "a", models.OutcomeRed, 1),
		testBet(2, "b", models.OutcomeRed, 1),
		testBet(3, "c", models.OutcomeRed, 1),
		testBet(4, "d", models.OutcomeBlue, 7),
		testBet(5, "e", models.OutcomeBlue, 1),
	})

	// forfeits are floor(7/2) + floor(1/2)
	assert.Equal(t, int64(3), plan.Pool)
	assert.Equal(t, int64(1), plan.WinnersBonus)
	assert.Equal(t, int64(2), plan.HouseShare)
	assert.Equal(t, int64(0), plan.Distributed, "1 * 1 / 3 floors to zero for every winner")
	assert.Equal(t, int64(1), plan.Unallocated)

	loserOfOne := plan.Payouts[4]
	assert.Equal(t, int64(0), loserOfOne.LostAmount)
	assert.Equal(t, int64(1), loserOfOne.ReturnedAmount)
}

func TestPlanSettlement_OddLosersForfeitOnlyWhatTheyLose(t *testing.T) {
	plan := PlanSettlement(models.OutcomeRed, []*models.Bet{
		testBet(1, "a", models.OutcomeRed, 10),
		testBet(2, "b", models.OutcomeBlue, 3),
		testBet(3, "c", models.OutcomeGreen, 3),
	})

	var forfeited int64
	for _, payout := range plan.Payouts {
		forfeited += payout.LostAmount
	}

	// floor(6*0.5) would be 3, one coin more than the losers give up
	assert.Equal(t, int64(2), forfeited)
	assert.Equal(t, forfeited, plan.Pool)
	assert.Equal(t, int64(1), plan.WinnersBonus)
	assert.Equal(t, int64(1), plan.HouseShare)
	assert.Equal(t, int64(11), plan.Payouts[0].WinAmount)
	assert.Equal(t, plan.TotalStakes, paidOut(plan)+plan.HouseShare+plan.Unallocated)
}

func TestPlanSettlement_NoBets(t *testing.T) {
	plan := PlanSettlement(models.OutcomeRed, nil)
	assert.Empty(t, plan.Payouts)
	assert.Zero(t, plan.TotalStakes)
	assert.Zero(t, plan.HouseShare)
	assert.Zero(t, plan.Unallocated)
}

func TestPlanSettlement_PrivilegedStakeIsNetted(t *testing.T) {
	winner := testBet(1, "admin", models.OutcomeRed, 100)
	winner.Debited = false
	loser := testBet(2, "bob", models.OutcomeBlue, 100)
	loser.Debited = false

	plan := PlanSettlement(models.OutcomeRed, []*models.Bet{winner, loser})

	assert.Equal(t, int64(25), plan.Payouts[0].BalanceDelta())
	assert.Equal(t, int64(-50), plan.Payouts[1].BalanceDelta())
}

func TestPlanSettlement_ProcessedBetsKeepTheirShare(t *testing.T) {
	bets := []*models.Bet{
		testBet(1, "a", models.OutcomeRed, 100),
		testBet(2, "b", models.OutcomeBlue, 100),
	}
	first := PlanSettlement(models.OutcomeRed, bets)

	bets[0].Processed = true
	second := PlanSettlement(models.OutcomeRed, bets)

	assert.True(t, second.Payouts[0].Processed)
	assert.Equal(t, first.Payouts[0].WinAmount, second.Payouts[0].WinAmount)
	assert.Equal(t, first.HouseShare, second.HouseShare)
}

func TestPlanSettlement_Conservation(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for i := 0; i < 500; i++ {
		n := rng.IntN(40)
		bets := make([]*models.Bet, n)
		var stakes int64
		for j := range bets {
			amount := 1 + rng.Int64N(10000)
			bets[j] = testBet(int64(j+1), "u", models.Outcomes[rng.IntN(len(models.Outcomes))], amount)
			stakes += amount
		}
		outcome := models.Outcomes[rng.IntN(len(models.Outcomes))]

		plan := PlanSettlement(outcome, bets)

		require.Equal(t, stakes, plan.TotalStakes)
		require.Equal(t, stakes, paidOut(plan)+plan.HouseShare+plan.Unallocated, "iteration %d", i)
		require.GreaterOrEqual(t, plan.Unallocated, int64(0))
		require.LessOrEqual(t, plan.Distributed, plan.WinnersBonus)
	}
}

func TestWinnerBonus_LargeValues(t *testing.T) {
	bonus := int64(math.MaxInt64 / 4)
	total := int64(math.MaxInt64 / 2)

	// bonus * (total/2) / total with total odd lands just under bonus/2
	assert.Equal(t, bonus/2, winnerBonus(bonus, total/2, total))
	assert.Equal(t, bonus, winnerBonus(bonus, total, total))
	assert.Zero(t, winnerBonus(0, 10, 10))
	assert.Zero(t, winnerBonus(10, 10, 0))
}
