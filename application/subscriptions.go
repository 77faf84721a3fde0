package application

import (
	"context"

	"coino/events"

	log "github.com/sirupsen/logrus"
)

// RegisterResultAnnouncer posts every settled round through the announcer.
// Returns the unsubscribe function.
func RegisterResultAnnouncer(subscriber EventSubscriber, announcer ResultAnnouncer) func() {
	return subscriber.Subscribe(events.EventTypeRoundSettled, func(ctx context.Context, event events.Event) {
		settled, ok := event.(events.RoundSettledEvent)
		if !ok {
			return
		}

		// Remote processes announce their own settlements.
		if _, remote := events.RemoteOrigin(ctx); remote {
			return
		}

		round := settled.Round
		result := settled.Result
		if err := announcer.AnnounceSettlement(ctx, &round, &result); err != nil {
			log.WithFields(log.Fields{
				"scope":   round.Scope,
				"roundId": round.ID,
				"error":   err,
			}).Error("Failed to announce round result")
		}
	})
}
