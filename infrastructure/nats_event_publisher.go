package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coino/events"
	"coino/infrastructure/observability"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventEnvelope wraps an event on the wire
type EventEnvelope struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// LocalSubscriber is the part of the in-process bus the publisher listens on
type LocalSubscriber interface {
	Subscribe(eventType events.EventType, handler events.Handler) func()
}

// NATSEventPublisher forwards events from the in-process bus to NATS so other
// processes see rounds open, settle and take bets
type NATSEventPublisher struct {
	messageBus    MessageBus
	subjectMapper *EventSubjectMapper
	source        string
	metrics       *observability.MetricsProvider
}

// NewNATSEventPublisher creates a publisher stamping envelopes with source
func NewNATSEventPublisher(messageBus MessageBus, subjectMapper *EventSubjectMapper, source string, metrics *observability.MetricsProvider) *NATSEventPublisher {
	return &NATSEventPublisher{
		messageBus:    messageBus,
		subjectMapper: subjectMapper,
		source:        source,
		metrics:       metrics,
	}
}

// Attach subscribes the publisher to every forwarded event type on the local
// bus and returns a function that detaches it again
func (p *NATSEventPublisher) Attach(local LocalSubscriber) func() {
	types := p.subjectMapper.GetAllEventTypes()
	unsubs := make([]func(), 0, len(types))
	for _, eventType := range types {
		unsubs = append(unsubs, local.Subscribe(eventType, p.forward))
	}

	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (p *NATSEventPublisher) forward(ctx context.Context, event events.Event) {
	if source, remote := events.RemoteOrigin(ctx); remote {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
			"source":    source,
		}).Debug("Not forwarding event received from another process")
		return
	}

	if err := p.Publish(ctx, event); err != nil {
		log.WithFields(log.Fields{
			"eventType": event.Type(),
		}).WithError(err).Error("Failed to forward event to NATS")
	}
}

// Publish wraps the event in an envelope and publishes it on its subject
func (p *NATSEventPublisher) Publish(ctx context.Context, event events.Event) error {
	subject, ok := p.subjectMapper.MapEventTypeToSubject(event.Type())
	if !ok {
		return fmt.Errorf("no subject for event type %s", event.Type())
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	envelope := EventEnvelope{
		EventID:   uuid.New().String(),
		EventType: string(event.Type()),
		Source:    p.source,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	if err := p.messageBus.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event to NATS: %w", err)
	}

	p.metrics.RecordNATSMessagePublished(string(event.Type()))

	log.WithFields(log.Fields{
		"eventType": event.Type(),
		"eventId":   envelope.EventID,
		"subject":   subject,
	}).Debug("Successfully published event to NATS")

	return nil
}
