package infrastructure

import (
	"coino/events"
)

// StreamName is the JetStream stream holding every forwarded event
const StreamName = "coino_events"

var eventSubjects = map[events.EventType]string{
	events.EventTypeRoundOpened:    "coino.rounds.opened",
	events.EventTypeRoundUpdated:   "coino.rounds.updated",
	events.EventTypeRoundCompleted: "coino.rounds.completed",
	events.EventTypeRoundSettled:   "coino.rounds.settled",
	events.EventTypeBetPlaced:      "coino.bets.placed",
	events.EventTypeBalanceChange:  "coino.balances.changed",
	events.EventTypeRoomStarted:    "coino.rooms.started",
}

// EventSubjectMapper handles mapping between events and NATS subjects
type EventSubjectMapper struct {
	subjectTypes map[string]events.EventType
}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	subjectTypes := make(map[string]events.EventType, len(eventSubjects))
	for eventType, subject := range eventSubjects {
		subjectTypes[subject] = eventType
	}
	return &EventSubjectMapper{subjectTypes: subjectTypes}
}

// MapEventTypeToSubject returns the subject an event type is published on
func (m *EventSubjectMapper) MapEventTypeToSubject(eventType events.EventType) (string, bool) {
	subject, ok := eventSubjects[eventType]
	return subject, ok
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) (events.EventType, bool) {
	eventType, ok := m.subjectTypes[subject]
	return eventType, ok
}

// GetAllEventTypes returns every event type that crosses process boundaries
func (m *EventSubjectMapper) GetAllEventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeRoundOpened,
		events.EventTypeRoundUpdated,
		events.EventTypeRoundCompleted,
		events.EventTypeRoundSettled,
		events.EventTypeBetPlaced,
		events.EventTypeBalanceChange,
		events.EventTypeRoomStarted,
	}
}

// GetAllSubjects returns all subjects this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	types := m.GetAllEventTypes()
	subjects := make([]string, len(types))
	for i, eventType := range types {
		subjects[i] = eventSubjects[eventType]
	}
	return subjects
}
