package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"coino/config"
	"coino/events"
	"coino/models"

	log "github.com/sirupsen/logrus"
)

// RoundScheduler drives every scope through NoActiveRound, RoundActive and
// Settling. Timers and bus events move scopes along; a periodic
// reconciliation re-derives state from the store and repairs anything missed.
type RoundScheduler struct {
	rounds  RoundStore
	settler Settler
	gate    *RoomGate
	lock    ScopeLock
	bus     EventSubscriber
	cfg     *config.Config
	now     func() time.Time

	mu       sync.Mutex
	machines map[models.Scope]*ScopeMachine
	ctx      context.Context
}

// NewRoundScheduler creates a scheduler. lock may be nil.
func NewRoundScheduler(rounds RoundStore, settler Settler, gate *RoomGate, lock ScopeLock, bus EventSubscriber, cfg *config.Config) *RoundScheduler {
	return &RoundScheduler{
		rounds:   rounds,
		settler:  settler,
		gate:     gate,
		lock:     lock,
		bus:      bus,
		cfg:      cfg,
		now:      time.Now,
		machines: make(map[models.Scope]*ScopeMachine),
	}
}

// Start subscribes to round events and begins reconciling. The returned
// function stops the scheduler and waits for the reconcile loop to exit.
func (s *RoundScheduler) Start(ctx context.Context) func() {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	unsubs := []func(){
		s.bus.Subscribe(events.EventTypeRoundOpened, s.handleRoundEvent),
		s.bus.Subscribe(events.EventTypeRoundCompleted, s.handleRoundEvent),
		s.bus.Subscribe(events.EventTypeRoundSettled, s.handleRoundEvent),
		s.bus.Subscribe(events.EventTypeBetPlaced, s.handleGateEvent),
		s.bus.Subscribe(events.EventTypeRoomStarted, s.handleGateEvent),
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.WithField("interval", s.cfg.ReconcileInterval).Info("Round scheduler started")

		ticker := time.NewTicker(s.cfg.ReconcileInterval)
		defer ticker.Stop()

		for {
			if err := s.Reconcile(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("Round reconciliation failed")
			}

			select {
			case <-ctx.Done():
				log.Info("Round scheduler shutting down...")
				return
			case <-ticker.C:
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			for _, unsub := range unsubs {
				unsub()
			}
			<-done

			s.mu.Lock()
			for _, m := range s.machines {
				m.stop()
			}
			s.mu.Unlock()
		})
	}
}

func (s *RoundScheduler) context() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

// Machine returns the state machine of a scope, creating it on first use
func (s *RoundScheduler) Machine(scope models.Scope) *ScopeMachine {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.machines[scope]
	if !ok {
		m = NewScopeMachine(scope)
		s.machines[scope] = m
	}
	return m
}

func (s *RoundScheduler) handleRoundEvent(_ context.Context, event events.Event) {
	var change scopeChange
	switch e := event.(type) {
	case events.RoundOpenedEvent:
		change = scopeChange{Kind: changeOpened, Round: e.Round}
	case events.RoundCompletedEvent:
		change = scopeChange{Kind: changeCompleted, Round: e.Round}
	case events.RoundSettledEvent:
		change = scopeChange{Kind: changeSettled, Round: e.Round}
	default:
		return
	}
	s.apply(change)
}

func (s *RoundScheduler) handleGateEvent(_ context.Context, event events.Event) {
	if s.gate == nil {
		return
	}
	scope, ok := s.gate.Triggers(event)
	if !ok {
		return
	}
	s.checkRoom(s.context(), scope)
}

// apply feeds a change to the scope's machine and performs the resulting action
func (s *RoundScheduler) apply(change scopeChange) {
	scope := change.Round.Scope
	m := s.Machine(scope)
	view, action := m.apply(change)

	switch action {
	case actionArmExpiry:
		roundID := view.RoundID
		wait := view.Deadline.Sub(s.now())
		if scope == models.PublicScope {
			wait += s.cfg.ExpiryBuffer
		}
		m.armExpiry(wait, func() {
			s.settle(s.context(), scope, roundID)
		})

		log.WithFields(log.Fields{
			"scope":    scope,
			"roundId":  roundID,
			"deadline": view.Deadline,
		}).Debug("Armed round expiry")

	case actionDisarm:
		m.disarmExpiry()

	case actionAwaitNext:
		m.disarmExpiry()
		m.awaitNext(s.cfg.ResultDisplayDelay, func() {
			s.advance(s.context(), scope)
		})
	}
}

// advance starts the next round of a scope after the result display delay
func (s *RoundScheduler) advance(ctx context.Context, scope models.Scope) {
	if ctx.Err() != nil {
		return
	}
	if scope.IsRoom() {
		s.checkRoom(ctx, scope)
		return
	}
	s.openPublic(ctx, scope)
}

// openPublic creates the next public round unless one is being created locally
// or another process holds the scope lock
func (s *RoundScheduler) openPublic(ctx context.Context, scope models.Scope) {
	m := s.Machine(scope)
	if !m.tryBeginCreate() {
		return
	}
	defer m.endCreate()

	if s.lock != nil {
		release, ok, err := s.lock.Claim(ctx, scope)
		switch {
		case err != nil:
			log.WithFields(log.Fields{
				"scope": scope,
				"error": err,
			}).Warn("Scope lock unavailable, creating without it")
		case !ok:
			log.WithField("scope", scope).Debug("Another process is creating the round")
			return
		default:
			defer release()
		}
	}

	round, created, err := s.rounds.OpenRound(ctx, scope)
	if err != nil {
		log.WithFields(log.Fields{
			"scope": scope,
			"error": err,
		}).Error("Failed to open round")
		return
	}

	if created {
		log.WithFields(log.Fields{
			"scope":    scope,
			"roundId":  round.ID,
			"deadline": round.Deadline(),
		}).Info("Opened round")
	}
	s.apply(scopeChange{Kind: changeOpened, Round: *round})
}

// checkRoom asks the room gate for a round
func (s *RoundScheduler) checkRoom(ctx context.Context, scope models.Scope) {
	if s.gate == nil || ctx.Err() != nil {
		return
	}

	m := s.Machine(scope)
	if !m.tryBeginCreate() {
		return
	}
	defer m.endCreate()

	round, err := s.gate.Check(ctx, scope)
	if err != nil {
		log.WithFields(log.Fields{
			"scope": scope,
			"error": err,
		}).Error("Room gate check failed")
		return
	}
	if round != nil {
		s.apply(scopeChange{Kind: changeOpened, Round: *round})
	}
}

// settle runs settlement once per scope at a time. Failures are left to reconciliation.
// settle reports false only when the settlement attempt failed; a call
// dropped because another settlement is running counts as handled.
func (s *RoundScheduler) settle(ctx context.Context, scope models.Scope, roundID int64) bool {
	if ctx.Err() != nil {
		return false
	}

	m := s.Machine(scope)
	if !m.tryBeginProcessing() {
		log.WithFields(log.Fields{
			"scope":   scope,
			"roundId": roundID,
		}).Debug("Settlement already in progress, skipping")
		return true
	}
	defer m.endProcessing()

	result, err := s.settler.Settle(ctx, roundID)
	if err != nil {
		log.WithFields(log.Fields{
			"scope":   scope,
			"roundId": roundID,
			"error":   err,
		}).Error("Failed to settle round")
		return false
	}

	log.WithFields(log.Fields{
		"scope":            scope,
		"roundId":          roundID,
		"outcome":          result.Outcome,
		"winners":          result.Winners,
		"losers":           result.Losers,
		"alreadyProcessed": result.AlreadyProcessed,
	}).Info("Settled round")
	return true
}

// Reconcile re-derives every scope's state from the store
func (s *RoundScheduler) Reconcile(ctx context.Context) error {
	scopes, err := s.rounds.FindScopesWithOpenWork(ctx)
	if err != nil {
		return err
	}

	seen := map[models.Scope]bool{models.PublicScope: true}
	ordered := []models.Scope{models.PublicScope}
	for _, scope := range scopes {
		if !seen[scope] {
			seen[scope] = true
			ordered = append(ordered, scope)
		}
	}

	var firstErr error
	for _, scope := range ordered {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.reconcileScope(ctx, scope); err != nil {
			log.WithFields(log.Fields{
				"scope": scope,
				"error": err,
			}).Error("Failed to reconcile scope")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (s *RoundScheduler) reconcileScope(ctx context.Context, scope models.Scope) error {
	active, err := s.rounds.FindActiveRounds(ctx, scope)
	if err != nil {
		return err
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	// Duplicate active rounds: keep the newest, settle the rest now.
	if len(active) > 1 {
		log.WithFields(log.Fields{
			"scope": scope,
			"count": len(active),
		}).Warn("Found more than one active round")
		for _, round := range active[:len(active)-1] {
			s.settle(ctx, scope, round.ID)
		}
		active = active[len(active)-1:]
	}

	unsettled, err := s.rounds.FindUnsettledRounds(ctx, scope)
	if err != nil {
		return err
	}
	resumed := 0
	for _, round := range unsettled {
		log.WithFields(log.Fields{
			"scope":   scope,
			"roundId": round.ID,
		}).Info("Resuming settlement of completed round")
		if s.settle(ctx, scope, round.ID) {
			resumed++
		}
	}

	if len(active) == 1 {
		round := active[0]
		if round.IsExpired(s.now()) {
			s.settle(ctx, scope, round.ID)
			return nil
		}
		s.apply(scopeChange{Kind: changeOpened, Round: *round})
		return nil
	}

	// Settled events from this pass start the next round after the display delay.
	// Rounds that keep failing are retried every pass but do not hold the scope.
	if resumed > 0 || s.Machine(scope).awaitingNext() {
		return nil
	}
	if len(unsettled) > 0 {
		log.WithFields(log.Fields{
			"scope":  scope,
			"failed": len(unsettled),
		}).Warn("Opening next round while earlier rounds remain unsettled")
	}
	if scope.IsRoom() {
		s.checkRoom(ctx, scope)
	} else {
		s.openPublic(ctx, scope)
	}
	return nil
}
