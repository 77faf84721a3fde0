package service

import (
	"context"
	"fmt"

	"coino/config"
	"coino/models"

	log "github.com/sirupsen/logrus"
)

// accountService implements the AccountService interface
type accountService struct {
	uowFactory UnitOfWorkFactory
	config     *config.Config
}

// NewAccountService creates a new account service
func NewAccountService(uowFactory UnitOfWorkFactory, cfg *config.Config) AccountService {
	return &accountService{
		uowFactory: uowFactory,
		config:     cfg,
	}
}

// GetOrCreate retrieves an existing account or creates one with the starting balance
func (s *accountService) GetOrCreate(ctx context.Context, userID, username string) (*models.Account, error) {
	if userID == "" {
		return nil, validationError("user is required")
	}

	var account *models.Account
	err := withRetry(ctx, "account", s.config.MaxRetries, nil, func() error {
		return inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
			var err error
			account, err = s.getOrCreate(ctx, uow, userID, username, s.config.StartingBalance, s.config.IsPrivileged(userID))
			return err
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get or create account %s: %w", userID, err)
	}

	return account, nil
}

func (s *accountService) getOrCreate(ctx context.Context, uow UnitOfWork, userID, username string, balance int64, privileged bool) (*models.Account, error) {
	account, err := uow.AccountRepository().GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if account != nil {
		if privileged && !account.Privileged {
			account, err = uow.AccountRepository().Promote(ctx, userID)
			if err != nil {
				return nil, err
			}
			log.WithField("userID", userID).Info("Account promoted to privileged")
		}
		return account, nil
	}

	account, created, err := uow.AccountRepository().Create(ctx, userID, username, balance, privileged)
	if err != nil {
		return nil, err
	}
	if !created {
		return account, nil
	}

	if balance != 0 {
		history := &models.BalanceHistory{
			UserID:          userID,
			BalanceBefore:   0,
			BalanceAfter:    balance,
			ChangeAmount:    balance,
			TransactionType: models.TransactionTypeInitial,
			TransactionMetadata: map[string]any{
				"username": username,
			},
		}
		if err := RecordBalanceChange(ctx, uow, history); err != nil {
			return nil, fmt.Errorf("failed to record initial balance: %w", err)
		}
	}

	log.WithFields(log.Fields{
		"userID":     userID,
		"balance":    balance,
		"privileged": privileged,
	}).Info("Account created")

	return account, nil
}

// EnsureHouseAccount creates the account that receives public house shares
func (s *accountService) EnsureHouseAccount(ctx context.Context) error {
	return inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
		_, err := s.getOrCreate(ctx, uow, s.config.HouseUserID, "house", 0, true)
		return err
	})
}

// GetStats returns display statistics for a user
func (s *accountService) GetStats(ctx context.Context, userID string) (*models.PlayerStats, error) {
	var stats *models.PlayerStats
	err := inTransaction(ctx, s.uowFactory, func(uow UnitOfWork) error {
		account, err := uow.AccountRepository().GetByUserID(ctx, userID)
		if err != nil {
			return err
		}
		if account == nil {
			return fmt.Errorf("user %s: %w", userID, ErrAccountNotFound)
		}
		stats = models.NewPlayerStats(account)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
