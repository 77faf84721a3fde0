package service

import (
	"context"
	"fmt"
	"sync"

	"coino/events"
	"coino/models"
)

// closedRoundsMemory bounds how many removed round IDs a feed remembers to
// ignore late events for them
const closedRoundsMemory = 256

// roundFeed implements RoundFeed on top of the event bus
type roundFeed struct {
	rounds RoundService
	bus    EventSubscriber
}

// NewRoundFeed creates a round feed. Snapshots come from rounds, deltas from bus.
func NewRoundFeed(rounds RoundService, bus EventSubscriber) RoundFeed {
	return &roundFeed{
		rounds: rounds,
		bus:    bus,
	}
}

// activeView tracks the active rounds a subscriber has been told about
type activeView struct {
	rounds map[int64]models.Round
	closed map[int64]bool
}

func newActiveView() *activeView {
	return &activeView{
		rounds: make(map[int64]models.Round),
		closed: make(map[int64]bool),
	}
}

// apply folds one event into the view and returns the changes to deliver
func (v *activeView) apply(event events.Event) []models.RoundChange {
	switch e := event.(type) {
	case events.RoundOpenedEvent:
		return v.upsert(e.Round)
	case events.RoundUpdatedEvent:
		return v.upsert(e.Round)
	case events.RoundCompletedEvent:
		v.markClosed(e.Round.ID)
		if _, ok := v.rounds[e.Round.ID]; !ok {
			return nil
		}
		delete(v.rounds, e.Round.ID)
		round := e.Round
		return []models.RoundChange{{Kind: models.ChangeRemoved, Round: &round}}
	}
	return nil
}

func (v *activeView) upsert(round models.Round) []models.RoundChange {
	if v.closed[round.ID] || !round.IsActive() {
		return nil
	}
	kind := models.ChangeModified
	if _, ok := v.rounds[round.ID]; !ok {
		kind = models.ChangeAdded
	}
	v.rounds[round.ID] = round
	return []models.RoundChange{{Kind: kind, Round: &round}}
}

func (v *activeView) markClosed(id int64) {
	if len(v.closed) >= closedRoundsMemory {
		clear(v.closed)
	}
	v.closed[id] = true
}

// historyView tracks the newest completed rounds, newest first
type historyView struct {
	limit  int
	rounds []models.Round
}

func (v *historyView) indexOf(id int64) int {
	for i, r := range v.rounds {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (v *historyView) apply(event events.Event) []models.RoundChange {
	switch e := event.(type) {
	case events.RoundCompletedEvent:
		if v.indexOf(e.Round.ID) >= 0 {
			return nil
		}
		if len(v.rounds) == v.limit && v.limit > 0 && e.Round.ID < v.rounds[len(v.rounds)-1].ID {
			return nil
		}

		round := e.Round
		changes := []models.RoundChange{{Kind: models.ChangeAdded, Round: &round}}

		pos := 0
		for pos < len(v.rounds) && v.rounds[pos].ID > round.ID {
			pos++
		}
		v.rounds = append(v.rounds, models.Round{})
		copy(v.rounds[pos+1:], v.rounds[pos:])
		v.rounds[pos] = round

		if len(v.rounds) > v.limit {
			evicted := v.rounds[len(v.rounds)-1]
			v.rounds = v.rounds[:len(v.rounds)-1]
			changes = append(changes, models.RoundChange{Kind: models.ChangeRemoved, Round: &evicted})
		}
		return changes

	case events.RoundSettledEvent:
		i := v.indexOf(e.Round.ID)
		if i < 0 {
			return nil
		}
		v.rounds[i] = e.Round
		round := e.Round
		return []models.RoundChange{{Kind: models.ChangeModified, Round: &round}}
	}
	return nil
}

// feedSubscription serializes snapshot delivery and deltas for one subscriber
type feedSubscription struct {
	mu      sync.Mutex
	scope   models.Scope
	apply   func(events.Event) []models.RoundChange
	cb      ChangeCallback
	unsubs  []func()
	stopped bool
}

func (s *feedSubscription) handle(_ context.Context, event events.Event) {
	scoped, ok := event.(events.ScopedEvent)
	if !ok || scoped.EventScope() != s.scope {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if changes := s.apply(event); len(changes) > 0 {
		s.cb(changes)
	}
}

func (s *feedSubscription) stop() {
	s.mu.Lock()
	s.stopped = true
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// subscribe registers handlers before loading the snapshot. Events arriving
// meanwhile wait on the subscription lock and are folded in afterwards.
func (f *roundFeed) subscribe(sub *feedSubscription, types []events.EventType, snapshot func() ([]models.RoundChange, error)) (func(), error) {
	sub.mu.Lock()
	for _, t := range types {
		sub.unsubs = append(sub.unsubs, f.bus.Subscribe(t, sub.handle))
	}

	changes, err := snapshot()
	if err != nil {
		sub.mu.Unlock()
		sub.stop()
		return nil, err
	}
	if len(changes) > 0 {
		sub.cb(changes)
	}
	sub.mu.Unlock()

	var once sync.Once
	return func() { once.Do(sub.stop) }, nil
}

// SubscribeActive delivers the scope's active rounds as Added records, then
// Added, Modified and Removed records as rounds open, take bets and complete.
// The callback runs on a bus goroutine and must not block.
func (f *roundFeed) SubscribeActive(ctx context.Context, scope models.Scope, cb ChangeCallback) (func(), error) {
	view := newActiveView()
	sub := &feedSubscription{scope: scope, apply: view.apply, cb: cb}

	types := []events.EventType{
		events.EventTypeRoundOpened,
		events.EventTypeRoundUpdated,
		events.EventTypeRoundCompleted,
	}

	return f.subscribe(sub, types, func() ([]models.RoundChange, error) {
		rounds, err := f.rounds.FindActiveRounds(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to load active rounds: %w", err)
		}

		changes := make([]models.RoundChange, 0, len(rounds))
		for _, round := range rounds {
			view.rounds[round.ID] = *round
			changes = append(changes, models.RoundChange{Kind: models.ChangeAdded, Round: round})
		}
		return changes, nil
	})
}

// SubscribeCompletedHistory delivers the latest completed rounds, then Added
// records for newly completed rounds (with Removed for rounds pushed past the
// limit) and Modified records when a listed round finishes settling
func (f *roundFeed) SubscribeCompletedHistory(ctx context.Context, scope models.Scope, limit int, cb ChangeCallback) (func(), error) {
	limit = clampLimit(limit)
	view := &historyView{limit: limit}
	sub := &feedSubscription{scope: scope, apply: view.apply, cb: cb}

	types := []events.EventType{
		events.EventTypeRoundCompleted,
		events.EventTypeRoundSettled,
	}

	return f.subscribe(sub, types, func() ([]models.RoundChange, error) {
		rounds, err := f.rounds.GetHistory(ctx, scope, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to load round history: %w", err)
		}

		changes := make([]models.RoundChange, 0, len(rounds))
		for _, round := range rounds {
			view.rounds = append(view.rounds, *round)
			changes = append(changes, models.RoundChange{Kind: models.ChangeAdded, Round: round})
		}
		return changes, nil
	})
}
