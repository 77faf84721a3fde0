package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"coino/config"
	"coino/events"
	"coino/infrastructure/observability"
	"coino/models"

	log "github.com/sirupsen/logrus"
)

// OutcomeDrawer picks the winning outcome of a round
type OutcomeDrawer func() (models.Outcome, error)

// DrawOutcome draws uniformly from the outcome set using crypto/rand
func DrawOutcome() (models.Outcome, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(models.Outcomes))))
	if err != nil {
		return "", fmt.Errorf("random generation failed: %w", err)
	}
	return models.Outcomes[n.Int64()], nil
}

// settlementService implements the SettlementService interface
type settlementService struct {
	uowFactory UnitOfWorkFactory
	config     *config.Config
	metrics    *observability.MetricsProvider
	draw       OutcomeDrawer
}

// NewSettlementService creates a new settlement service
func NewSettlementService(uowFactory UnitOfWorkFactory, cfg *config.Config, metrics *observability.MetricsProvider) SettlementService {
	return NewSettlementServiceWithDrawer(uowFactory, cfg, metrics, DrawOutcome)
}

// NewSettlementServiceWithDrawer creates a settlement service with a custom outcome source
func NewSettlementServiceWithDrawer(uowFactory UnitOfWorkFactory, cfg *config.Config, metrics *observability.MetricsProvider, draw OutcomeDrawer) SettlementService {
	return &settlementService{
		uowFactory: uowFactory,
		config:     cfg,
		metrics:    metrics,
		draw:       draw,
	}
}

func (s *settlementService) retry(ctx context.Context, op string, fn func() error) error {
	return withRetry(ctx, op, s.config.MaxRetries, func() { s.metrics.RecordRetry(op) }, fn)
}

// Settle closes a round and applies its payouts. It is safe to call any
// number of times, concurrently or after a crash: the outcome is drawn once,
// each bet is paid at most once and the house is credited at most once.
func (s *settlementService) Settle(ctx context.Context, roundID int64) (*models.SettlementResult, error) {
	start := time.Now()

	round, err := s.completeRound(ctx, roundID)
	if err != nil {
		return nil, err
	}

	if round.Processed {
		log.WithFields(log.Fields{
			"roundID": roundID,
			"scope":   round.Scope,
		}).Debug("Round already settled")
		return alreadySettledResult(round), nil
	}

	outcome := *round.WinningOutcome

	bets, err := s.loadBets(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("%w: round %d: %w", ErrSettlementPartial, roundID, err)
	}

	plan := PlanSettlement(outcome, bets)

	applied, err := s.applyPayouts(ctx, round, plan)
	if err != nil {
		return nil, fmt.Errorf("%w: round %d: %w", ErrSettlementPartial, roundID, err)
	}

	result := &models.SettlementResult{
		RoundID:      roundID,
		Scope:        round.Scope,
		Outcome:      outcome,
		TotalStakes:  plan.TotalStakes,
		Pool:         plan.Pool,
		WinnersBonus: plan.WinnersBonus,
		HouseShare:   plan.HouseShare,
		Unallocated:  plan.Unallocated,
		Winners:      plan.Winners,
		Losers:       plan.Losers,
		AppliedBets:  applied,
	}

	finalized, err := s.finalize(ctx, round, plan, result)
	if err != nil {
		return nil, err
	}
	if !finalized {
		result.AlreadyProcessed = true
		return result, nil
	}

	s.metrics.RecordRoundSettled(round.Scope, outcome, time.Since(start))

	log.WithFields(log.Fields{
		"roundID":     roundID,
		"scope":       round.Scope,
		"outcome":     outcome,
		"winners":     plan.Winners,
		"losers":      plan.Losers,
		"houseShare":  plan.HouseShare,
		"unallocated": plan.Unallocated,
		"appliedBets": applied,
	}).Info("Round settled")

	return result, nil
}

// completeRound draws the outcome of an active round and records it, or
// returns the stored outcome when a previous attempt already did
func (s *settlementService) completeRound(ctx context.Context, roundID int64) (*models.Round, error) {
	var round *models.Round

	err := s.retry(ctx, "settle.complete", func() error {
		return inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
			locked, err := uow.RoundRepository().GetByIDForUpdate(ctx, roundID)
			if err != nil {
				return err
			}
			if locked == nil {
				return fmt.Errorf("round %d: %w", roundID, ErrRoundNotFound)
			}

			if locked.IsActive() {
				outcome, err := s.draw()
				if err != nil {
					return fmt.Errorf("failed to draw outcome: %w", err)
				}

				ok, err := uow.RoundRepository().MarkCompleted(ctx, roundID, outcome)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("round %d left the active state while locked", roundID)
				}

				now := time.Now()
				locked.Status = models.RoundStatusCompleted
				locked.WinningOutcome = &outcome
				locked.CompletedAt = &now

				uow.EventBus().Publish(events.RoundCompletedEvent{Round: *locked})
			}

			round = locked
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return round, nil
}

func (s *settlementService) loadBets(ctx context.Context, roundID int64) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := s.retry(ctx, "settle.load", func() error {
		return inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
			var err error
			bets, err = uow.BetRepository().FindByRound(ctx, roundID)
			return err
		})
	})
	return bets, err
}

// applyPayouts writes the not yet processed payouts in bounded chunks, one
// transaction per chunk
func (s *settlementService) applyPayouts(ctx context.Context, round *models.Round, plan models.SettlementPlan) (int, error) {
	pending := make([]models.BetPayout, 0, len(plan.Payouts))
	for _, payout := range plan.Payouts {
		if !payout.Processed {
			pending = append(pending, payout)
		}
	}

	batchSize := s.config.SettlementBatchSize
	if batchSize <= 0 {
		batchSize = len(pending)
	}

	applied := 0
	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))

		var n int
		err := s.retry(ctx, "settle.apply", func() error {
			var err error
			n, err = s.applyChunk(ctx, round, plan.Outcome, pending[start:end])
			return err
		})
		if err != nil {
			return applied, err
		}
		applied += n
	}

	return applied, nil
}

func (s *settlementService) applyChunk(ctx context.Context, round *models.Round, outcome models.Outcome, chunk []models.BetPayout) (int, error) {
	var claimedCount int

	err := inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
		updates := make([]models.BetUpdate, len(chunk))
		for i, payout := range chunk {
			updates[i] = payout.Update()
		}

		claimed, err := uow.BetRepository().BatchUpdateStatus(ctx, updates)
		if err != nil {
			return err
		}
		claimedCount = len(claimed)
		if len(claimed) == 0 {
			return nil
		}

		isClaimed := make(map[int64]bool, len(claimed))
		for _, id := range claimed {
			isClaimed[id] = true
		}

		credits := make([]models.AccountCredit, 0, len(claimed))
		for _, payout := range chunk {
			if !isClaimed[payout.BetID] {
				continue
			}
			credits = append(credits, models.AccountCredit{
				UserID:     payout.UserID,
				BetID:      payout.BetID,
				RoundID:    round.ID,
				Delta:      payout.BalanceDelta(),
				WonAmount:  payout.Bonus,
				LostAmount: payout.LostAmount,
				Won:        payout.Won,
			})
		}

		changes, err := uow.AccountRepository().ApplySettlementCredits(ctx, credits)
		if err != nil {
			return err
		}

		histories := make([]*models.BalanceHistory, 0, len(changes))
		for i, change := range changes {
			credit := credits[i]
			if credit.Delta == 0 {
				continue
			}

			txType := models.TransactionTypeBetRefund
			if credit.Won {
				txType = models.TransactionTypeBetWin
			}

			history := &models.BalanceHistory{
				UserID:          change.UserID,
				BalanceBefore:   change.BalanceBefore,
				BalanceAfter:    change.BalanceAfter,
				ChangeAmount:    credit.Delta,
				TransactionType: txType,
				TransactionMetadata: map[string]any{
					"round_id": round.ID,
					"scope":    string(round.Scope),
					"outcome":  string(outcome),
				},
			}
			history.RelatedID, history.RelatedType = relatedTo(models.RelatedTypeBet, credit.BetID)
			histories = append(histories, history)
		}

		return RecordBalanceChanges(ctx, uow, histories)
	})

	return claimedCount, err
}

// finalize credits the house share and marks the round processed. It returns
// false when a concurrent settler finished first.
func (s *settlementService) finalize(ctx context.Context, round *models.Round, plan models.SettlementPlan, result *models.SettlementResult) (bool, error) {
	var finalized bool

	err := s.retry(ctx, "settle.finalize", func() error {
		finalized = false
		return inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
			locked, err := uow.RoundRepository().GetByIDForUpdate(ctx, round.ID)
			if err != nil {
				return err
			}
			if locked == nil {
				return fmt.Errorf("round %d: %w", round.ID, ErrRoundNotFound)
			}
			if locked.Processed {
				return nil
			}

			remaining, err := uow.BetRepository().CountUnprocessed(ctx, round.ID)
			if err != nil {
				return err
			}
			if remaining > 0 {
				return fmt.Errorf("round %d has %d unsettled bets: %w", round.ID, remaining, ErrSettlementPartial)
			}

			if plan.HouseShare > 0 {
				if err := s.creditHouse(ctx, uow, locked, plan); err != nil {
					return err
				}
			}

			ok, err := uow.RoundRepository().MarkProcessed(ctx, round.ID, plan.HouseShare, plan.Unallocated)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}

			locked.Processed = true
			locked.HouseShare = plan.HouseShare
			locked.UnallocatedAmount = plan.Unallocated

			uow.EventBus().Publish(events.RoundSettledEvent{Round: *locked, Result: *result})
			finalized = true
			return nil
		})
	})
	if err != nil {
		return false, err
	}

	return finalized, nil
}

// creditHouse pays the house share to the house account for public rounds and
// to the room creator for room rounds
func (s *settlementService) creditHouse(ctx context.Context, uow UnitOfWork, round *models.Round, plan models.SettlementPlan) error {
	metadata := map[string]any{
		"round_id": round.ID,
		"scope":    string(round.Scope),
		"outcome":  string(plan.Outcome),
		"pool":     plan.Pool,
	}

	if !round.Scope.IsRoom() {
		_, err := applyDelta(ctx, uow, s.config.HouseUserID, plan.HouseShare,
			models.TransactionTypeHouseShare, models.RelatedTypeRound, round.ID, metadata)
		if err != nil {
			return fmt.Errorf("failed to credit house account: %w", err)
		}
		return nil
	}

	roomID := round.Scope.RoomID()
	room, err := uow.RoomRepository().GetByIDForUpdate(ctx, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return fmt.Errorf("room %s: %w", roomID, ErrRoomNotFound)
	}

	metadata["room_id"] = roomID
	if _, err := applyDelta(ctx, uow, room.CreatorID, plan.HouseShare,
		models.TransactionTypeHouseShare, models.RelatedTypeRound, round.ID, metadata); err != nil {
		return fmt.Errorf("failed to credit room creator: %w", err)
	}

	return uow.RoomRepository().AddEarnings(ctx, roomID, plan.HouseShare)
}

func alreadySettledResult(round *models.Round) *models.SettlementResult {
	result := &models.SettlementResult{
		RoundID:          round.ID,
		Scope:            round.Scope,
		TotalStakes:      round.TotalAmount,
		HouseShare:       round.HouseShare,
		Unallocated:      round.UnallocatedAmount,
		AlreadyProcessed: true,
	}
	if round.WinningOutcome != nil {
		result.Outcome = *round.WinningOutcome
	}
	return result
}
