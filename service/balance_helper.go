package service

import (
	"context"
	"fmt"

	"coino/events"
	"coino/models"
)

// RecordBalanceChange records a balance history entry and emits the matching
// event. Every balance mutation goes through here or RecordBalanceChanges.
func RecordBalanceChange(ctx context.Context, uow UnitOfWork, history *models.BalanceHistory) error {
	if err := uow.BalanceHistoryRepository().Record(ctx, history); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	uow.EventBus().Publish(balanceChangeEvent(history))
	return nil
}

// RecordBalanceChanges is the batched form used by settlement
func RecordBalanceChanges(ctx context.Context, uow UnitOfWork, histories []*models.BalanceHistory) error {
	if len(histories) == 0 {
		return nil
	}

	if err := uow.BalanceHistoryRepository().RecordBatch(ctx, histories); err != nil {
		return fmt.Errorf("failed to record balance history: %w", err)
	}

	for _, history := range histories {
		uow.EventBus().Publish(balanceChangeEvent(history))
	}
	return nil
}

func balanceChangeEvent(history *models.BalanceHistory) events.BalanceChangeEvent {
	return events.BalanceChangeEvent{
		UserID:          history.UserID,
		OldBalance:      history.BalanceBefore,
		NewBalance:      history.BalanceAfter,
		TransactionType: history.TransactionType,
		ChangeAmount:    history.ChangeAmount,
	}
}

func relatedTo(kind models.RelatedType, id int64) (*int64, *models.RelatedType) {
	return &id, &kind
}

// applyDelta changes a balance and records its history in one step
func applyDelta(ctx context.Context, uow UnitOfWork, userID string, delta int64, txType models.TransactionType,
	kind models.RelatedType, relatedID int64, metadata map[string]any) (*models.BalanceChange, error) {
	change, err := uow.AccountRepository().ApplyBalanceDelta(ctx, userID, delta)
	if err != nil {
		return nil, err
	}

	history := &models.BalanceHistory{
		UserID:              userID,
		BalanceBefore:       change.BalanceBefore,
		BalanceAfter:        change.BalanceAfter,
		ChangeAmount:        delta,
		TransactionType:     txType,
		TransactionMetadata: metadata,
	}
	history.RelatedID, history.RelatedType = relatedTo(kind, relatedID)

	if err := RecordBalanceChange(ctx, uow, history); err != nil {
		return nil, err
	}
	return change, nil
}
