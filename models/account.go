package models

import "time"

// Account holds a user's coin balance and cumulative results
type Account struct {
	UserID     string    `db:"user_id" json:"user_id"`
	Username   string    `db:"username" json:"username"`
	Balance    int64     `db:"balance" json:"balance"`
	Privileged bool      `db:"privileged" json:"privileged"`
	TotalWon   int64     `db:"total_won" json:"total_won"`   // bonus received on top of returned stakes
	TotalLost  int64     `db:"total_lost" json:"total_lost"` // stake portions forfeited
	Wins       int64     `db:"wins" json:"wins"`
	Losses     int64     `db:"losses" json:"losses"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// AccountCredit is a settlement balance mutation for one bet
type AccountCredit struct {
	UserID     string
	BetID      int64
	RoundID    int64
	Delta      int64
	WonAmount  int64
	LostAmount int64
	Won        bool
}

// BalanceChange reports the balance around an applied mutation
type BalanceChange struct {
	UserID        string
	BalanceBefore int64
	BalanceAfter  int64
}
