package application

import (
	"context"
	"fmt"

	"coino/events"
	"coino/models"

	log "github.com/sirupsen/logrus"
)

// RoomGate decides when a private room's waiting bets become a round
type RoomGate struct {
	rooms RoomRoundStarter
}

// NewRoomGate creates a gate backed by the room service
func NewRoomGate(rooms RoomRoundStarter) *RoomGate {
	return &RoomGate{rooms: rooms}
}

// Triggers reports the room scope an event may open, if any
func (g *RoomGate) Triggers(event events.Event) (models.Scope, bool) {
	switch e := event.(type) {
	case events.BetPlacedEvent:
		if e.Bet.Scope.IsRoom() && e.Bet.Status == models.BetStatusWaiting {
			return e.Bet.Scope, true
		}
	case events.RoomStartedEvent:
		return e.EventScope(), true
	}
	return "", false
}

// Check opens a round for the room when it is started, idle and has enough
// distinct waiting bettors. A nil round means the gate stayed closed.
func (g *RoomGate) Check(ctx context.Context, scope models.Scope) (*models.Round, error) {
	if !scope.IsRoom() {
		return nil, fmt.Errorf("scope %s is not a room", scope)
	}

	round, err := g.rooms.StartRoomRound(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to start room round: %w", err)
	}

	if round != nil {
		log.WithFields(log.Fields{
			"scope":    scope,
			"roundId":  round.ID,
			"betCount": round.BetCount,
		}).Info("Room gate opened a round")
	}
	return round, nil
}
