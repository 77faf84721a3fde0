package models

import "time"

// RoundStatus represents the lifecycle state of a round
type RoundStatus string

const (
	RoundStatusActive    RoundStatus = "active"
	RoundStatusCompleted RoundStatus = "completed"
)

// Round is one draw cycle within a scope
type Round struct {
	ID                int64         `db:"id" json:"id"`
	Scope             Scope         `db:"scope" json:"scope"`
	Status            RoundStatus   `db:"status" json:"status"`
	StartTime         time.Time     `db:"start_time" json:"start_time"`
	Duration          time.Duration `db:"duration_ms" json:"duration_ms"`
	BetCount          int64         `db:"bet_count" json:"bet_count"`
	TotalAmount       int64         `db:"total_amount" json:"total_amount"`
	WinningOutcome    *Outcome      `db:"winning_outcome" json:"winning_outcome,omitempty"`
	Processed         bool          `db:"processed" json:"processed"`
	CompletedAt       *time.Time    `db:"completed_at" json:"completed_at,omitempty"`
	HouseShare        int64         `db:"house_share" json:"house_share"`
	UnallocatedAmount int64         `db:"unallocated_amount" json:"unallocated_amount"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
}

// Deadline is the moment the round stops accepting bets
func (r *Round) Deadline() time.Time {
	return r.StartTime.Add(r.Duration)
}

// IsActive reports whether the round has not been completed yet
func (r *Round) IsActive() bool {
	return r.Status == RoundStatusActive
}

// IsOpen reports whether bets are accepted at the given instant
func (r *Round) IsOpen(now time.Time) bool {
	return r.IsActive() && now.Before(r.Deadline())
}

// IsExpired reports whether an active round has outlived its duration
func (r *Round) IsExpired(now time.Time) bool {
	return r.IsActive() && !now.Before(r.Deadline())
}

// NeedsSettlement reports whether a completed round still has unapplied effects
func (r *Round) NeedsSettlement() bool {
	return r.Status == RoundStatusCompleted && !r.Processed
}
