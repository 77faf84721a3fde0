package application

import (
	"sync"
	"time"

	"coino/models"
)

// ScopeState is the scheduler's view of a scope's round pipeline
type ScopeState string

const (
	StateNoActiveRound ScopeState = "no_active_round"
	StateRoundActive   ScopeState = "round_active"
	StateSettling      ScopeState = "settling"
)

// scopeView is what a scope machine knows about its scope
type scopeView struct {
	State    ScopeState
	RoundID  int64
	Deadline time.Time
}

type changeKind int

const (
	changeOpened changeKind = iota
	changeCompleted
	changeSettled
)

// scopeChange is a round lifecycle observation, from the event bus or from reconciliation
type scopeChange struct {
	Kind  changeKind
	Round models.Round
}

type scopeAction int

const (
	actionNone scopeAction = iota
	actionArmExpiry
	actionDisarm
	actionAwaitNext
)

// reduceScope folds a change into the view. It is pure; the caller performs the action.
func reduceScope(view scopeView, change scopeChange) (scopeView, scopeAction) {
	round := change.Round

	// Rounds older than the one tracked are left to reconciliation.
	if round.ID < view.RoundID {
		return view, actionNone
	}
	same := round.ID == view.RoundID

	switch change.Kind {
	case changeOpened:
		if !round.IsActive() || (same && view.State != StateRoundActive) {
			return view, actionNone
		}
		if same && view.Deadline.Equal(round.Deadline()) {
			return view, actionNone
		}
		return scopeView{State: StateRoundActive, RoundID: round.ID, Deadline: round.Deadline()}, actionArmExpiry

	case changeCompleted:
		if same && view.State != StateRoundActive {
			return view, actionNone
		}
		return scopeView{State: StateSettling, RoundID: round.ID}, actionDisarm

	case changeSettled:
		if same && view.State == StateNoActiveRound {
			return view, actionNone
		}
		return scopeView{State: StateNoActiveRound, RoundID: round.ID}, actionAwaitNext
	}

	return view, actionNone
}

// ScopeMachine holds the state of one scope and the local guards against
// re-entrant round creation and settlement. The store stays authoritative.
type ScopeMachine struct {
	scope models.Scope

	mu         sync.Mutex
	view       scopeView
	creating   bool
	processing bool
	expiry     *time.Timer
	next       *time.Timer
	stopped    bool
}

// NewScopeMachine creates a machine in the NoActiveRound state
func NewScopeMachine(scope models.Scope) *ScopeMachine {
	return &ScopeMachine{
		scope: scope,
		view:  scopeView{State: StateNoActiveRound},
	}
}

// Scope returns the scope the machine tracks
func (m *ScopeMachine) Scope() models.Scope {
	return m.scope
}

// State returns the current state
func (m *ScopeMachine) State() ScopeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view.State
}

func (m *ScopeMachine) snapshot() scopeView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// apply folds a change into the machine and returns the resulting view and action
func (m *ScopeMachine) apply(change scopeChange) (scopeView, scopeAction) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return m.view, actionNone
	}
	view, action := reduceScope(m.view, change)
	m.view = view
	return view, action
}

func (m *ScopeMachine) tryBeginCreate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creating || m.stopped {
		return false
	}
	m.creating = true
	return true
}

func (m *ScopeMachine) endCreate() {
	m.mu.Lock()
	m.creating = false
	m.mu.Unlock()
}

func (m *ScopeMachine) tryBeginProcessing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processing || m.stopped {
		return false
	}
	m.processing = true
	return true
}

func (m *ScopeMachine) endProcessing() {
	m.mu.Lock()
	m.processing = false
	m.mu.Unlock()
}

// armExpiry replaces the expiry timer
func (m *ScopeMachine) armExpiry(after time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	if m.expiry != nil {
		m.expiry.Stop()
	}
	if after < 0 {
		after = 0
	}
	m.expiry = time.AfterFunc(after, fn)
}

func (m *ScopeMachine) disarmExpiry() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
}

// awaitNext schedules fn after the result display delay unless already scheduled
func (m *ScopeMachine) awaitNext(after time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.next != nil {
		return
	}
	m.next = time.AfterFunc(after, func() {
		m.mu.Lock()
		m.next = nil
		m.mu.Unlock()
		fn()
	})
}

// awaitingNext reports whether the pause before the next round is running
func (m *ScopeMachine) awaitingNext() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next != nil
}

// stop cancels all timers; the machine ignores further changes
func (m *ScopeMachine) stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
	if m.next != nil {
		m.next.Stop()
		m.next = nil
	}
}
