package models

import "time"

// Room is a private group running its own round pipeline
type Room struct {
	ID           string    `db:"id" json:"id"`
	CreatorID    string    `db:"creator_id" json:"creator_id"`
	Name         string    `db:"name" json:"name"`
	Started      bool      `db:"started" json:"started"`
	Earnings     int64     `db:"earnings" json:"earnings"`
	Participants []string  `db:"-" json:"participants"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Scope returns the round scope of the room
func (r *Room) Scope() Scope {
	return RoomScope(r.ID)
}
