package service

import (
	"math/bits"

	"coino/models"
)

// PlanSettlement computes the redistribution of a round's stakes for the
// drawn outcome. Every losing bet forfeits half its stake (rounded down) into
// a pool. Half of the pool, rounded down, is shared among the winners in
// proportion to their stakes and the rest is the house share. Integer
// division remainders of the winners' bonus are reported as Unallocated.
//
// Bets already marked processed are planned like the others, so a retried
// settlement produces the same plan, and flagged so they are not paid twice.
func PlanSettlement(outcome models.Outcome, bets []*models.Bet) models.SettlementPlan {
	plan := models.SettlementPlan{Outcome: outcome}

	for _, bet := range bets {
		plan.TotalStakes += bet.Amount
		if bet.Outcome == outcome {
			plan.TotalWinning += bet.Amount
			plan.Winners++
		} else {
			plan.Pool += bet.Amount / 2
			plan.Losers++
		}
	}

	plan.WinnersBonus = plan.Pool / 2
	plan.HouseShare = plan.Pool - plan.WinnersBonus

	plan.Payouts = make([]models.BetPayout, 0, len(bets))
	for _, bet := range bets {
		payout := models.BetPayout{
			BetID:     bet.ID,
			UserID:    bet.UserID,
			Amount:    bet.Amount,
			Debited:   bet.Debited,
			Processed: bet.Processed,
		}

		if bet.Outcome == outcome {
			payout.Won = true
			payout.Bonus = winnerBonus(plan.WinnersBonus, bet.Amount, plan.TotalWinning)
			payout.WinAmount = bet.Amount + payout.Bonus
			plan.Distributed += payout.Bonus
		} else {
			payout.LostAmount = bet.Amount / 2
			payout.ReturnedAmount = bet.Amount - payout.LostAmount
		}

		plan.Payouts = append(plan.Payouts, payout)
	}

	plan.Unallocated = plan.WinnersBonus - plan.Distributed
	return plan
}

// winnerBonus is floor(bonus * stake / totalWinning) computed in 128 bits.
// stake <= totalWinning, so the quotient fits in int64.
func winnerBonus(bonus, stake, totalWinning int64) int64 {
	if bonus <= 0 || stake <= 0 || totalWinning <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(bonus), uint64(stake))
	quo, _ := bits.Div64(hi, lo, uint64(totalWinning))
	return int64(quo)
}
