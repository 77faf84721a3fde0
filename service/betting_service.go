package service

import (
	"context"
	"fmt"
	"time"

	"coino/config"
	"coino/events"
	"coino/infrastructure/observability"
	"coino/models"

	log "github.com/sirupsen/logrus"
)

// bettingService implements the BettingService interface
type bettingService struct {
	uowFactory UnitOfWorkFactory
	config     *config.Config
	metrics    *observability.MetricsProvider
	now        func() time.Time
}

// NewBettingService creates a new betting service
func NewBettingService(uowFactory UnitOfWorkFactory, cfg *config.Config, metrics *observability.MetricsProvider) BettingService {
	return &bettingService{
		uowFactory: uowFactory,
		config:     cfg,
		metrics:    metrics,
		now:        time.Now,
	}
}

// PlaceBet validates and records a bet. Public bets join the active round;
// room bets wait for the room's next round. The stake is debited in the same
// transaction that creates the bet.
func (s *bettingService) PlaceBet(ctx context.Context, userID string, scope models.Scope, outcome models.Outcome, amount int64) (*models.Bet, error) {
	bet, err := s.placeBet(ctx, userID, scope, outcome, amount)
	if err != nil {
		reason := RejectionReason(err)
		s.metrics.RecordBetRejected(scope, reason)
		log.WithFields(log.Fields{
			"userID":  userID,
			"scope":   scope,
			"outcome": outcome,
			"amount":  amount,
			"reason":  reason,
		}).WithError(err).Debug("Bet rejected")
		return nil, err
	}

	s.metrics.RecordBetPlaced(scope, outcome)
	log.WithFields(log.Fields{
		"betID":   bet.ID,
		"userID":  userID,
		"scope":   scope,
		"outcome": outcome,
		"amount":  amount,
	}).Info("Bet placed")

	return bet, nil
}

func (s *bettingService) placeBet(ctx context.Context, userID string, scope models.Scope, outcome models.Outcome, amount int64) (*models.Bet, error) {
	if err := s.validate(userID, scope, outcome, amount); err != nil {
		return nil, err
	}

	if scope.IsRoom() {
		return s.placeWaitingBet(ctx, userID, scope, outcome, amount)
	}

	round, err := s.precheck(ctx, userID, scope)
	if err != nil {
		return nil, err
	}

	var bet *models.Bet
	err = withRetry(ctx, "bet", s.config.MaxRetries, func() { s.metrics.RecordRetry("bet") }, func() error {
		return inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
			var err error
			bet, err = s.placeInRound(ctx, uow, userID, round.ID, scope, outcome, amount)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	return bet, nil
}

func (s *bettingService) validate(userID string, scope models.Scope, outcome models.Outcome, amount int64) error {
	if userID == "" {
		return validationError("user is required")
	}
	if _, err := models.ParseScope(string(scope)); err != nil {
		return validationError("%v", err)
	}
	if !outcome.IsValid() {
		return validationError("unknown outcome %q", outcome)
	}
	if amount < s.config.MinBet || amount > s.config.MaxBet {
		return validationError("amount must be between %d and %d", s.config.MinBet, s.config.MaxBet)
	}
	return nil
}

// precheck rejects bets outside the transaction when the round is obviously
// closed or the user already has a bet in it. Both checks are repeated under
// lock.
func (s *bettingService) precheck(ctx context.Context, userID string, scope models.Scope) (*models.Round, error) {
	var round *models.Round

	err := inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
		active, err := uow.RoundRepository().FindActiveRound(ctx, scope)
		if err != nil {
			return err
		}
		if active == nil || !active.IsOpen(s.now()) {
			return fmt.Errorf("scope %s: %w", scope, ErrRoundNotActive)
		}

		existing, err := uow.BetRepository().FindByUserAndRound(ctx, userID, active.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("round %d: %w", active.ID, ErrDuplicateBet)
		}

		round = active
		return nil
	})
	if err != nil {
		return nil, err
	}

	return round, nil
}

// lockStakeholder locks the bettor's account and checks it can cover the stake.
// It reports whether the stake should be debited.
func (s *bettingService) lockStakeholder(ctx context.Context, uow UnitOfWork, userID string, amount int64) (bool, error) {
	account, err := uow.AccountRepository().GetByUserIDForUpdate(ctx, userID)
	if err != nil {
		return false, err
	}
	if account == nil {
		return false, fmt.Errorf("user %s: %w", userID, ErrAccountNotFound)
	}

	// Only the locked row decides; settlement nets undebited stakes against it.
	if !account.Privileged && account.Balance < amount {
		return false, fmt.Errorf("have %d, need %d: %w", account.Balance, amount, ErrInsufficientFunds)
	}

	return !account.Privileged, nil
}

func (s *bettingService) debitStake(ctx context.Context, uow UnitOfWork, bet *models.Bet) error {
	if !bet.Debited {
		return nil
	}

	metadata := map[string]any{
		"scope":   string(bet.Scope),
		"outcome": string(bet.Outcome),
	}
	if bet.RoundID != nil {
		metadata["round_id"] = *bet.RoundID
	}

	_, err := applyDelta(ctx, uow, bet.UserID, -bet.Amount, models.TransactionTypeBetStake,
		models.RelatedTypeBet, bet.ID, metadata)
	return err
}

func (s *bettingService) placeInRound(ctx context.Context, uow UnitOfWork, userID string, roundID int64, scope models.Scope, outcome models.Outcome, amount int64) (*models.Bet, error) {
	debit, err := s.lockStakeholder(ctx, uow, userID, amount)
	if err != nil {
		return nil, err
	}

	round, err := uow.RoundRepository().GetByIDForUpdate(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round == nil || !round.IsOpen(s.now()) {
		return nil, fmt.Errorf("round %d: %w", roundID, ErrStaleRound)
	}

	existing, err := uow.BetRepository().FindByUserAndRound(ctx, userID, roundID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("round %d: %w", roundID, ErrDuplicateBet)
	}

	bet := &models.Bet{
		UserID:  userID,
		Scope:   scope,
		RoundID: &roundID,
		Outcome: outcome,
		Amount:  amount,
		Status:  models.BetStatusPending,
		Debited: debit,
	}
	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		return nil, err
	}

	if err := s.debitStake(ctx, uow, bet); err != nil {
		return nil, err
	}

	updated, err := uow.RoundRepository().IncrementAggregates(ctx, roundID, 1, amount)
	if err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.BetPlacedEvent{Bet: *bet})
	uow.EventBus().Publish(events.RoundUpdatedEvent{Round: *updated})

	return bet, nil
}

// placeWaitingBet records a room bet that joins the room's next round
func (s *bettingService) placeWaitingBet(ctx context.Context, userID string, scope models.Scope, outcome models.Outcome, amount int64) (*models.Bet, error) {
	var bet *models.Bet

	err := withRetry(ctx, "bet", s.config.MaxRetries, func() { s.metrics.RecordRetry("bet") }, func() error {
		return inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
			room, err := uow.RoomRepository().GetByID(ctx, scope.RoomID())
			if err != nil {
				return err
			}
			if room == nil {
				return fmt.Errorf("room %s: %w", scope.RoomID(), ErrRoomNotFound)
			}

			debit, err := s.lockStakeholder(ctx, uow, userID, amount)
			if err != nil {
				return err
			}

			existing, err := uow.BetRepository().FindWaitingByUser(ctx, userID, scope)
			if err != nil {
				return err
			}
			if existing != nil {
				return fmt.Errorf("room %s: %w", room.ID, ErrDuplicateBet)
			}

			bet = &models.Bet{
				UserID:  userID,
				Scope:   scope,
				Outcome: outcome,
				Amount:  amount,
				Status:  models.BetStatusWaiting,
				Debited: debit,
			}
			if err := uow.BetRepository().Create(ctx, bet); err != nil {
				return err
			}

			if err := s.debitStake(ctx, uow, bet); err != nil {
				return err
			}

			if err := uow.RoomRepository().AddParticipant(ctx, room.ID, userID); err != nil {
				return err
			}

			uow.EventBus().Publish(events.BetPlacedEvent{Bet: *bet})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return bet, nil
}
