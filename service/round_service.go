package service

import (
	"context"
	"fmt"

	"coino/config"
	"coino/events"
	"coino/infrastructure/observability"
	"coino/models"

	log "github.com/sirupsen/logrus"
)

const maxHistoryLimit = 100

// roundService implements the RoundService interface
type roundService struct {
	uowFactory UnitOfWorkFactory
	config     *config.Config
	metrics    *observability.MetricsProvider
}

// NewRoundService creates a new round service
func NewRoundService(uowFactory UnitOfWorkFactory, cfg *config.Config, metrics *observability.MetricsProvider) RoundService {
	return &roundService{
		uowFactory: uowFactory,
		config:     cfg,
		metrics:    metrics,
	}
}

// OpenRound returns the active round of a public scope, creating one when
// none exists. Creation holds the scope's advisory lock so two processes
// cannot both create.
func (s *roundService) OpenRound(ctx context.Context, scope models.Scope) (*models.Round, bool, error) {
	if scope.IsRoom() {
		return nil, false, validationError("room rounds are opened from waiting bets")
	}

	var (
		round   *models.Round
		created bool
	)
	err := withRetry(ctx, "round.open", s.config.MaxRetries, func() { s.metrics.RecordRetry("round.open") }, func() error {
		created = false
		return inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
			if err := uow.RoundRepository().LockScope(ctx, scope); err != nil {
				return err
			}

			active, err := uow.RoundRepository().FindActiveRound(ctx, scope)
			if err != nil {
				return err
			}
			if active != nil {
				round = active
				return nil
			}

			round, err = uow.RoundRepository().CreateRound(ctx, scope, s.config.RoundDuration)
			if err != nil {
				return err
			}
			created = true

			uow.EventBus().Publish(events.RoundOpenedEvent{Round: *round})
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to open round in scope %s: %w", scope, err)
	}

	if created {
		s.metrics.RecordRoundOpened(scope)
		log.WithFields(log.Fields{
			"roundID":  round.ID,
			"scope":    scope,
			"deadline": round.Deadline(),
		}).Info("Round opened")
	}

	return round, created, nil
}

func (s *roundService) read(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return withRetry(ctx, "round.read", s.config.MaxRetries, nil, func() error {
		return inTransaction(ctx, s.uowFactory, fn)
	})
}

// GetActiveRound returns the newest active round of the scope, or nil
func (s *roundService) GetActiveRound(ctx context.Context, scope models.Scope) (*models.Round, error) {
	var round *models.Round
	err := s.read(ctx, func(uow UnitOfWork) error {
		var err error
		round, err = uow.RoundRepository().FindActiveRound(ctx, scope)
		return err
	})
	return round, err
}

// FindActiveRounds returns every active round of the scope, newest first
func (s *roundService) FindActiveRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error) {
	var rounds []*models.Round
	err := s.read(ctx, func(uow UnitOfWork) error {
		var err error
		rounds, err = uow.RoundRepository().FindActiveRounds(ctx, scope)
		return err
	})
	return rounds, err
}

// FindUnsettledRounds returns completed rounds whose settlement has not finished
func (s *roundService) FindUnsettledRounds(ctx context.Context, scope models.Scope) ([]*models.Round, error) {
	var rounds []*models.Round
	err := s.read(ctx, func(uow UnitOfWork) error {
		var err error
		rounds, err = uow.RoundRepository().FindCompletedUnprocessed(ctx, scope)
		return err
	})
	return rounds, err
}

// FindScopesWithOpenWork lists scopes with active or unsettled rounds or waiting bets
func (s *roundService) FindScopesWithOpenWork(ctx context.Context) ([]models.Scope, error) {
	var scopes []models.Scope
	err := s.read(ctx, func(uow UnitOfWork) error {
		var err error
		scopes, err = uow.RoundRepository().FindScopesWithOpenWork(ctx)
		return err
	})
	return scopes, err
}

// GetHistory returns the latest completed rounds of the scope
func (s *roundService) GetHistory(ctx context.Context, scope models.Scope, limit int) ([]*models.Round, error) {
	limit = clampLimit(limit)

	var rounds []*models.Round
	err := s.read(ctx, func(uow UnitOfWork) error {
		var err error
		rounds, err = uow.RoundRepository().GetCompletedHistory(ctx, scope, limit)
		return err
	})
	return rounds, err
}

// GetRoundBets returns the bets of a round in the scope
func (s *roundService) GetRoundBets(ctx context.Context, scope models.Scope, roundID int64) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := s.read(ctx, func(uow UnitOfWork) error {
		round, err := uow.RoundRepository().GetByID(ctx, roundID)
		if err != nil {
			return err
		}
		if round == nil || round.Scope != scope {
			return fmt.Errorf("round %d: %w", roundID, ErrRoundNotFound)
		}

		if round.IsActive() {
			bets, err = uow.BetRepository().FindPendingForRound(ctx, scope, roundID)
		} else {
			bets, err = uow.BetRepository().FindByRound(ctx, roundID)
		}
		return err
	})
	return bets, err
}

// GetUserBets returns recent bets of a user
func (s *roundService) GetUserBets(ctx context.Context, userID string, limit int) ([]*models.Bet, error) {
	limit = clampLimit(limit)

	var bets []*models.Bet
	err := s.read(ctx, func(uow UnitOfWork) error {
		var err error
		bets, err = uow.BetRepository().GetByUser(ctx, userID, limit)
		return err
	})
	return bets, err
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return min(limit, maxHistoryLimit)
}
