package models

import "time"

// BetStatus represents the state of a bet
type BetStatus string

const (
	BetStatusWaiting BetStatus = "waiting" // room bet placed before its round exists
	BetStatusPending BetStatus = "pending"
	BetStatusWon     BetStatus = "won"
	BetStatusLost    BetStatus = "lost"
)

// Bet is a user's stake on one outcome of a round
type Bet struct {
	ID             int64      `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	Scope          Scope      `db:"scope" json:"scope"`
	RoundID        *int64     `db:"round_id" json:"round_id,omitempty"`
	Outcome        Outcome    `db:"outcome" json:"outcome"`
	Amount         int64      `db:"amount" json:"amount"`
	Status         BetStatus  `db:"status" json:"status"`
	Debited        bool       `db:"debited" json:"debited"` // false when a privileged stake was not taken
	WinAmount      int64      `db:"win_amount" json:"win_amount"`
	LostAmount     int64      `db:"lost_amount" json:"lost_amount"`
	ReturnedAmount int64      `db:"returned_amount" json:"returned_amount"`
	Processed      bool       `db:"processed" json:"processed"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	SettledAt      *time.Time `db:"settled_at" json:"settled_at,omitempty"`
}

// IsTerminal reports whether the bet has been settled
func (b *Bet) IsTerminal() bool {
	return b.Status == BetStatusWon || b.Status == BetStatusLost
}

// BetUpdate is the settlement write for a single bet
type BetUpdate struct {
	BetID          int64
	UserID         string
	Status         BetStatus
	WinAmount      int64
	LostAmount     int64
	ReturnedAmount int64
}
