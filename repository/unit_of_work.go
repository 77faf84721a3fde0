package repository

import (
	"context"
	"errors"
	"fmt"

	"coino/database"
	"coino/events"
	"coino/service"

	"github.com/jackc/pgx/v5"
)

// unitOfWork implements the UnitOfWork interface
type unitOfWork struct {
	db                 *database.DB
	tx                 pgx.Tx
	ctx                context.Context
	transactionalBus   *events.TransactionalBus
	accountRepo        service.AccountRepository
	balanceHistoryRepo service.BalanceHistoryRepository
	roundRepo          service.RoundRepository
	betRepo            service.BetRepository
	roomRepo           service.RoomRepository
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory
func NewUnitOfWorkFactory(db *database.DB, eventBus *events.Bus) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:       db,
		eventBus: eventBus,
	}
}

type unitOfWorkFactory struct {
	db       *database.DB
	eventBus *events.Bus
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:               f.db,
		transactionalBus: events.NewTransactionalBus(f.eventBus),
	}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		if database.IsTransient(err) {
			return fmt.Errorf("failed to begin transaction: %w: %w", service.ErrTransientStore, err)
		}
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.accountRepo = newAccountRepositoryWithTx(tx)
	u.balanceHistoryRepo = newBalanceHistoryRepositoryWithTx(tx)
	u.roundRepo = newRoundRepositoryWithTx(tx)
	u.betRepo = newBetRepositoryWithTx(tx)
	u.roomRepo = newRoomRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction and then delivers the events raised in it
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	err := u.tx.Commit(u.ctx)
	u.tx = nil
	if err != nil {
		u.transactionalBus.Discard()
		if database.IsTransient(err) {
			return fmt.Errorf("failed to commit transaction: %w: %w", service.ErrTransientStore, err)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	u.transactionalBus.Flush(u.ctx)

	return nil
}

// Rollback rolls back the transaction; it is safe to call after Commit
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	u.tx = nil
	u.transactionalBus.Discard()

	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}

	return nil
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() service.AccountRepository {
	if u.accountRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accountRepo
}

// BalanceHistoryRepository returns the balance history repository for this unit of work
func (u *unitOfWork) BalanceHistoryRepository() service.BalanceHistoryRepository {
	if u.balanceHistoryRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.balanceHistoryRepo
}

// RoundRepository returns the round repository for this unit of work
func (u *unitOfWork) RoundRepository() service.RoundRepository {
	if u.roundRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.roundRepo
}

// BetRepository returns the bet repository for this unit of work
func (u *unitOfWork) BetRepository() service.BetRepository {
	if u.betRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.betRepo
}

// RoomRepository returns the room repository for this unit of work
func (u *unitOfWork) RoomRepository() service.RoomRepository {
	if u.roomRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.roomRepo
}

// EventBus returns the transactional event bus for this unit of work
func (u *unitOfWork) EventBus() service.EventPublisher {
	if u.transactionalBus == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.transactionalBus
}
