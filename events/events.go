package events

import (
	"context"
	"sync"

	"coino/models"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeRoundOpened    EventType = "round_opened"
	EventTypeRoundUpdated   EventType = "round_updated"
	EventTypeRoundCompleted EventType = "round_completed"
	EventTypeRoundSettled   EventType = "round_settled"
	EventTypeBetPlaced      EventType = "bet_placed"
	EventTypeBalanceChange  EventType = "balance_change"
	EventTypeRoomStarted    EventType = "room_started"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// ScopedEvent is implemented by events that belong to one round scope
type ScopedEvent interface {
	Event
	EventScope() models.Scope
}

// RoundOpenedEvent is emitted when a new active round is created
type RoundOpenedEvent struct {
	Round models.Round
}

func (e RoundOpenedEvent) Type() EventType {
	return EventTypeRoundOpened
}

func (e RoundOpenedEvent) EventScope() models.Scope {
	return e.Round.Scope
}

// RoundUpdatedEvent carries new aggregates of an active round
type RoundUpdatedEvent struct {
	Round models.Round
}

func (e RoundUpdatedEvent) Type() EventType {
	return EventTypeRoundUpdated
}

func (e RoundUpdatedEvent) EventScope() models.Scope {
	return e.Round.Scope
}

// RoundCompletedEvent is emitted once the outcome of a round has been drawn
type RoundCompletedEvent struct {
	Round models.Round
}

func (e RoundCompletedEvent) Type() EventType {
	return EventTypeRoundCompleted
}

func (e RoundCompletedEvent) EventScope() models.Scope {
	return e.Round.Scope
}

// RoundSettledEvent is emitted once every effect of a round has been applied
type RoundSettledEvent struct {
	Round  models.Round
	Result models.SettlementResult
}

func (e RoundSettledEvent) Type() EventType {
	return EventTypeRoundSettled
}

func (e RoundSettledEvent) EventScope() models.Scope {
	return e.Round.Scope
}

// BetPlacedEvent represents a bet that was accepted
type BetPlacedEvent struct {
	Bet models.Bet
}

func (e BetPlacedEvent) Type() EventType {
	return EventTypeBetPlaced
}

func (e BetPlacedEvent) EventScope() models.Scope {
	return e.Bet.Scope
}

// BalanceChangeEvent represents a balance change that occurred
type BalanceChangeEvent struct {
	UserID          string
	OldBalance      int64
	NewBalance      int64
	TransactionType models.TransactionType
	ChangeAmount    int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// RoomStartedEvent is emitted when a room creator opens the room for play
type RoomStartedEvent struct {
	RoomID string
}

func (e RoomStartedEvent) Type() EventType {
	return EventTypeRoomStarted
}

func (e RoomStartedEvent) EventScope() models.Scope {
	return models.RoomScope(e.RoomID)
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

type delivery struct {
	ctx   context.Context
	event Event
}

// subscription delivers events to one handler in emission order
type subscription struct {
	id        uint64
	eventType EventType
	handler   Handler
	queue     chan delivery
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case d := <-s.queue:
			s.invoke(d)
		}
	}
}

func (s *subscription) invoke(d delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"eventType":      d.event.Type(),
				"subscriptionId": s.id,
				"panic":          r,
			}).Error("Event handler panicked")
		}
	}()
	s.handler(d.ctx, d.event)
}

func (s *subscription) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu            sync.RWMutex
	nextID        uint64
	subscriptions map[EventType][]*subscription
	queueSize     int
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[EventType][]*subscription),
		queueSize:     256,
	}
}

// Subscribe adds a handler for a specific event type and returns a function
// that removes it again. Each handler sees events in the order they were emitted.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	b.nextID++
	sub := &subscription{
		id:        b.nextID,
		eventType: eventType,
		handler:   handler,
		queue:     make(chan delivery, b.queueSize),
		done:      make(chan struct{}),
	}
	b.subscriptions[eventType] = append(b.subscriptions[eventType], sub)
	handlerCount := len(b.subscriptions[eventType])
	b.mu.Unlock()

	go sub.run()

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": handlerCount,
	}).Debug("Subscribed handler to event type on main event bus")

	return func() { b.unsubscribe(sub) }
}

func (b *Bus) unsubscribe(sub *subscription) {
	b.mu.Lock()
	subs := b.subscriptions[sub.eventType]
	for i, candidate := range subs {
		if candidate == sub {
			b.subscriptions[sub.eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	sub.close()
}

// Emit publishes an event to all registered handlers without waiting for them
// to run. A handler whose queue is full applies backpressure to the emitter.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	subs := make([]*subscription, len(b.subscriptions[event.Type()]))
	copy(subs, b.subscriptions[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(subs),
	}).Debug("Emitting event to handlers on main event bus")

	for _, sub := range subs {
		select {
		case sub.queue <- delivery{ctx: ctx, event: event}:
		case <-sub.done:
		}
	}
}

// Close removes every subscription
func (b *Bus) Close() {
	b.mu.Lock()
	all := b.subscriptions
	b.subscriptions = make(map[EventType][]*subscription)
	b.mu.Unlock()

	for _, subs := range all {
		for _, sub := range subs {
			sub.close()
		}
	}
}

// TransactionalBus holds events raised inside a unit of work until the
// transaction commits, then flushes them to the underlying bus
type TransactionalBus struct {
	real    *Bus
	pending []Event // stashed until Flush
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) {
	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
}

// Flush is called after a successful commit. Events are emitted with a
// background context so they outlive the request that produced them.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	log.WithFields(log.Fields{
		"pendingEventCount": len(b.pending),
	}).Debug("Flushing pending events from transactional bus to main event bus")

	eventCtx := context.WithoutCancel(ctx)
	for _, ev := range b.pending {
		b.real.Emit(eventCtx, ev)
	}
	b.pending = nil
	return nil
}

// Discard is called after a rollback
func (b *TransactionalBus) Discard() {
	b.pending = nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	return len(b.pending)
}
