package infrastructure

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"coino/events"
	"coino/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopbackBus is an in-memory MessageBus delivering published messages to every subscriber
type loopbackBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string][]func([]byte) error
}

func newLoopbackBus() *loopbackBus {
	return &loopbackBus{
		published: make(map[string][][]byte),
		handlers:  make(map[string][]func([]byte) error),
	}
}

func (b *loopbackBus) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.Lock()
	b.published[subject] = append(b.published[subject], data)
	handlers := append([]func([]byte) error(nil), b.handlers[subject]...)
	b.mu.Unlock()

	for _, h := range handlers {
		_ = h(data)
	}
	return nil
}

func (b *loopbackBus) Subscribe(subject string, handler func([]byte) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[subject] = append(b.handlers[subject], handler)
	return nil
}

func (b *loopbackBus) count(subject string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[subject])
}

type recordingEmitter struct {
	mu      sync.Mutex
	events  []events.Event
	origins []string
}

func (e *recordingEmitter) Emit(ctx context.Context, event events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	source, _ := events.RemoteOrigin(ctx)
	e.events = append(e.events, event)
	e.origins = append(e.origins, source)
}

func TestEventSubjectMapper_RoundTrip(t *testing.T) {
	mapper := NewEventSubjectMapper()

	for _, eventType := range mapper.GetAllEventTypes() {
		subject, ok := mapper.MapEventTypeToSubject(eventType)
		require.True(t, ok, "missing subject for %s", eventType)

		back, ok := mapper.MapSubjectToEventType(subject)
		require.True(t, ok)
		assert.Equal(t, eventType, back)
	}

	assert.Len(t, mapper.GetAllSubjects(), len(mapper.GetAllEventTypes()))
}

func TestNATSEventPublisher_Publish(t *testing.T) {
	bus := newLoopbackBus()
	publisher := NewNATSEventPublisher(bus, NewEventSubjectMapper(), "node-a", nil)

	outcome := models.OutcomeGreen
	round := models.Round{ID: 12, Scope: models.PublicScope, Status: models.RoundStatusCompleted, WinningOutcome: &outcome}
	require.NoError(t, publisher.Publish(context.Background(), events.RoundCompletedEvent{Round: round}))

	require.Equal(t, 1, bus.count("coino.rounds.completed"))

	var envelope EventEnvelope
	require.NoError(t, json.Unmarshal(bus.published["coino.rounds.completed"][0], &envelope))
	assert.Equal(t, "node-a", envelope.Source)
	assert.Equal(t, string(events.EventTypeRoundCompleted), envelope.EventType)
	assert.NotEmpty(t, envelope.EventID)

	var payload events.RoundCompletedEvent
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, int64(12), payload.Round.ID)
	require.NotNil(t, payload.Round.WinningOutcome)
	assert.Equal(t, models.OutcomeGreen, *payload.Round.WinningOutcome)
}

func TestNATSBridge_ReplaysRemoteEvents(t *testing.T) {
	bus := newLoopbackBus()
	mapper := NewEventSubjectMapper()

	remote := NewNATSEventPublisher(bus, mapper, "node-b", nil)
	emitter := &recordingEmitter{}
	subscriber := NewNATSEventSubscriber(bus, mapper, "node-a", emitter, nil)
	require.NoError(t, subscriber.Start())

	bet := models.Bet{ID: 3, UserID: "alice", Scope: models.RoomScope("r1"), Outcome: models.OutcomeRed, Amount: 40}
	require.NoError(t, remote.Publish(context.Background(), events.BetPlacedEvent{Bet: bet}))

	require.Len(t, emitter.events, 1)
	replayed, ok := emitter.events[0].(events.BetPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, "alice", replayed.Bet.UserID)
	assert.Equal(t, models.RoomScope("r1"), replayed.EventScope())
	assert.Equal(t, "node-b", emitter.origins[0])
}

func TestNATSBridge_SkipsOwnEchoes(t *testing.T) {
	bus := newLoopbackBus()
	mapper := NewEventSubjectMapper()

	local := NewNATSEventPublisher(bus, mapper, "node-a", nil)
	emitter := &recordingEmitter{}
	subscriber := NewNATSEventSubscriber(bus, mapper, "node-a", emitter, nil)
	require.NoError(t, subscriber.Start())

	require.NoError(t, local.Publish(context.Background(), events.RoomStartedEvent{RoomID: "r1"}))

	assert.Equal(t, 1, bus.count("coino.rooms.started"))
	assert.Empty(t, emitter.events)
}

func TestNATSEventPublisher_DoesNotForwardRemoteEvents(t *testing.T) {
	bus := newLoopbackBus()
	local := events.NewBus()
	defer local.Close()

	publisher := NewNATSEventPublisher(bus, NewEventSubjectMapper(), "node-a", nil)
	detach := publisher.Attach(local)
	defer detach()

	round := models.Round{ID: 1, Scope: models.PublicScope, Status: models.RoundStatusActive}
	local.Emit(events.WithRemoteOrigin(context.Background(), "node-b"), events.RoundOpenedEvent{Round: round})
	local.Emit(context.Background(), events.RoundUpdatedEvent{Round: round})

	assert.Eventually(t, func() bool {
		return bus.count("coino.rounds.updated") == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, bus.count("coino.rounds.opened"))
}

func TestNATSEventSubscriber_RejectsMalformedEnvelope(t *testing.T) {
	emitter := &recordingEmitter{}
	subscriber := NewNATSEventSubscriber(newLoopbackBus(), NewEventSubjectMapper(), "node-a", emitter, nil)

	err := subscriber.handleMessage("coino.rounds.opened", []byte("{not json"))
	assert.Error(t, err)

	mismatched, err := json.Marshal(EventEnvelope{
		EventID:   "x",
		EventType: string(events.EventTypeBetPlaced),
		Source:    "node-b",
		Payload:   json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Error(t, subscriber.handleMessage("coino.rounds.opened", mismatched))

	unknown, err := json.Marshal(EventEnvelope{EventID: "y", EventType: "jackpot", Source: "node-b", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.NoError(t, subscriber.handleMessage("coino.misc", unknown))
	assert.Empty(t, emitter.events)
}
