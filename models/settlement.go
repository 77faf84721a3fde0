package models

// BetPayout is the computed settlement of a single bet
type BetPayout struct {
	BetID          int64
	UserID         string
	Won            bool
	Amount         int64
	Debited        bool
	WinAmount      int64 // stake plus bonus, winners only
	Bonus          int64
	LostAmount     int64
	ReturnedAmount int64
	Processed      bool // already applied by an earlier attempt
}

// Credit is the amount paid back to the bettor
func (p BetPayout) Credit() int64 {
	if p.Won {
		return p.WinAmount
	}
	return p.ReturnedAmount
}

// BalanceDelta is the balance change settlement applies for this bet.
// A stake that was never debited is netted out of the credit.
func (p BetPayout) BalanceDelta() int64 {
	if p.Debited {
		return p.Credit()
	}
	return p.Credit() - p.Amount
}

// Update converts the payout to the bet row write
func (p BetPayout) Update() BetUpdate {
	status := BetStatusLost
	if p.Won {
		status = BetStatusWon
	}
	return BetUpdate{
		BetID:          p.BetID,
		UserID:         p.UserID,
		Status:         status,
		WinAmount:      p.WinAmount,
		LostAmount:     p.LostAmount,
		ReturnedAmount: p.ReturnedAmount,
	}
}

// SettlementPlan is the full deterministic redistribution of a round
type SettlementPlan struct {
	Outcome      Outcome
	Payouts      []BetPayout
	TotalStakes  int64
	TotalWinning int64 // sum of winning stakes
	Pool         int64 // sum of per-loser forfeits
	WinnersBonus int64
	HouseShare   int64
	Distributed  int64
	Unallocated  int64
	Winners      int
	Losers       int
}

// SettlementResult reports what a Settle call observed and applied
type SettlementResult struct {
	RoundID          int64   `json:"round_id"`
	Scope            Scope   `json:"scope"`
	Outcome          Outcome `json:"outcome"`
	TotalStakes      int64   `json:"total_stakes"`
	Pool             int64   `json:"pool"`
	WinnersBonus     int64   `json:"winners_bonus"`
	HouseShare       int64   `json:"house_share"`
	Unallocated      int64   `json:"unallocated"`
	Winners          int     `json:"winners"`
	Losers           int     `json:"losers"`
	AppliedBets      int     `json:"applied_bets"`
	AlreadyProcessed bool    `json:"already_processed"`
}
