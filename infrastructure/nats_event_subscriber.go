package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"

	"coino/events"
	"coino/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// LocalEmitter is the part of the in-process bus remote events are replayed on
type LocalEmitter interface {
	Emit(ctx context.Context, event events.Event)
}

type eventDecoder func(payload []byte) (events.Event, error)

func decode[T events.Event](payload []byte) (events.Event, error) {
	var event T
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, err
	}
	return event, nil
}

var eventDecoders = map[events.EventType]eventDecoder{
	events.EventTypeRoundOpened:    decode[events.RoundOpenedEvent],
	events.EventTypeRoundUpdated:   decode[events.RoundUpdatedEvent],
	events.EventTypeRoundCompleted: decode[events.RoundCompletedEvent],
	events.EventTypeRoundSettled:   decode[events.RoundSettledEvent],
	events.EventTypeBetPlaced:      decode[events.BetPlacedEvent],
	events.EventTypeBalanceChange:  decode[events.BalanceChangeEvent],
	events.EventTypeRoomStarted:    decode[events.RoomStartedEvent],
}

// NATSEventSubscriber replays events published by other processes on the
// in-process bus, marked with their remote origin so they are not forwarded back
type NATSEventSubscriber struct {
	messageBus    MessageBus
	subjectMapper *EventSubjectMapper
	source        string
	local         LocalEmitter
	metrics       *observability.MetricsProvider
}

// NewNATSEventSubscriber creates a subscriber ignoring envelopes stamped with source
func NewNATSEventSubscriber(messageBus MessageBus, subjectMapper *EventSubjectMapper, source string, local LocalEmitter, metrics *observability.MetricsProvider) *NATSEventSubscriber {
	return &NATSEventSubscriber{
		messageBus:    messageBus,
		subjectMapper: subjectMapper,
		source:        source,
		local:         local,
		metrics:       metrics,
	}
}

// Start subscribes to every event subject
func (s *NATSEventSubscriber) Start() error {
	for _, subject := range s.subjectMapper.GetAllSubjects() {
		subject := subject
		log.WithField("subject", subject).Info("Registering event handler for subject")

		if err := s.messageBus.Subscribe(subject, func(data []byte) error {
			return s.handleMessage(subject, data)
		}); err != nil {
			return err
		}
	}
	return nil
}

// handleMessage decodes an envelope and emits its event locally
func (s *NATSEventSubscriber) handleMessage(subject string, data []byte) error {
	var envelope EventEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		log.WithFields(log.Fields{
			"subject": subject,
			"error":   err,
		}).Error("Failed to unmarshal event envelope")
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	if envelope.Source == s.source {
		return nil
	}

	eventType := events.EventType(envelope.EventType)
	if expected, ok := s.subjectMapper.MapSubjectToEventType(subject); ok && expected != eventType {
		return fmt.Errorf("event type %s does not belong on subject %s", eventType, subject)
	}

	decoder, ok := eventDecoders[eventType]
	if !ok {
		// Unknown types come from newer peers; acknowledge and drop them.
		log.WithFields(log.Fields{
			"subject":   subject,
			"eventType": eventType,
			"eventId":   envelope.EventID,
		}).Warn("Dropping event of unknown type")
		return nil
	}

	event, err := decoder(envelope.Payload)
	if err != nil {
		log.WithFields(log.Fields{
			"subject":     subject,
			"eventType":   eventType,
			"eventId":     envelope.EventID,
			"error":       err,
			"payloadSize": len(envelope.Payload),
		}).Error("Failed to deserialize event payload")
		return fmt.Errorf("failed to deserialize event payload: %w", err)
	}

	s.metrics.RecordNATSMessageReceived(string(eventType))

	log.WithFields(log.Fields{
		"subject":   subject,
		"eventType": eventType,
		"eventId":   envelope.EventID,
		"source":    envelope.Source,
	}).Debug("Replaying NATS event on local bus")

	s.local.Emit(events.WithRemoteOrigin(context.Background(), envelope.Source), event)
	return nil
}
