package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"coino/database"
	"coino/models"
	"coino/service"

	"github.com/jackc/pgx/v5"
)

const insertBalanceHistory = `
	INSERT INTO balance_history
	(user_id, balance_before, balance_after, change_amount, transaction_type, transaction_metadata, related_id, related_type)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at
`

// BalanceHistoryRepository implements the BalanceHistoryRepository interface
type BalanceHistoryRepository struct {
	q queryable
}

var _ service.BalanceHistoryRepository = (*BalanceHistoryRepository)(nil)

// NewBalanceHistoryRepository creates a new balance history repository
func NewBalanceHistoryRepository(db *database.DB) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: db.Pool}
}

// newBalanceHistoryRepositoryWithTx creates a new balance history repository with a transaction
func newBalanceHistoryRepositoryWithTx(tx queryable) *BalanceHistoryRepository {
	return &BalanceHistoryRepository{q: tx}
}

func historyArgs(history *models.BalanceHistory) ([]any, error) {
	metadata := history.TransactionMetadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction metadata: %w", err)
	}

	var relatedType *string
	if history.RelatedType != nil {
		s := string(*history.RelatedType)
		relatedType = &s
	}

	return []any{
		history.UserID,
		history.BalanceBefore,
		history.BalanceAfter,
		history.ChangeAmount,
		string(history.TransactionType),
		metadataJSON,
		history.RelatedID,
		relatedType,
	}, nil
}

// Record creates a new balance history entry
func (r *BalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args, err := historyArgs(history)
	if err != nil {
		return err
	}

	err = r.q.QueryRow(ctx, insertBalanceHistory, args...).Scan(&history.ID, &history.CreatedAt)
	if err != nil {
		return storeError(err, "failed to record balance history for user %s", history.UserID)
	}

	return nil
}

// RecordBatch inserts several entries in one round trip
func (r *BalanceHistoryRepository) RecordBatch(ctx context.Context, histories []*models.BalanceHistory) error {
	if len(histories) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, history := range histories {
		args, err := historyArgs(history)
		if err != nil {
			return err
		}
		batch.Queue(insertBalanceHistory, args...)
	}

	results := r.q.SendBatch(ctx, batch)
	defer results.Close()

	for _, history := range histories {
		if err := results.QueryRow().Scan(&history.ID, &history.CreatedAt); err != nil {
			return storeError(err, "failed to record balance history for user %s", history.UserID)
		}
	}

	return nil
}

// GetByUser returns balance history for a specific user
func (r *BalanceHistoryRepository) GetByUser(ctx context.Context, userID string, limit int) ([]*models.BalanceHistory, error) {
	query := `
		SELECT id, user_id, balance_before, balance_after, change_amount,
		       transaction_type, transaction_metadata, related_id, related_type, created_at
		FROM balance_history
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, storeError(err, "failed to get balance history for user %s", userID)
	}
	defer rows.Close()

	var histories []*models.BalanceHistory
	for rows.Next() {
		var (
			history      models.BalanceHistory
			txType       string
			metadataJSON []byte
			relatedType  *string
		)

		err := rows.Scan(
			&history.ID,
			&history.UserID,
			&history.BalanceBefore,
			&history.BalanceAfter,
			&history.ChangeAmount,
			&txType,
			&metadataJSON,
			&history.RelatedID,
			&relatedType,
			&history.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance history: %w", err)
		}

		history.TransactionType = models.TransactionType(txType)
		if relatedType != nil {
			rt := models.RelatedType(*relatedType)
			history.RelatedType = &rt
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &history.TransactionMetadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}

		histories = append(histories, &history)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError(err, "failed to iterate balance history")
	}

	return histories, nil
}
