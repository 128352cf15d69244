// Package postgres provides the GORM-based Unit of Work implementation.
// A unit of work owns one database transaction and hands out repositories
// bound to it. Side effects that must not leak for rolled-back changes
// (notifications, presence updates) are registered as after-commit
// callbacks and run only once the transaction is durable.
package postgres

import (
	"context"

	"gorm.io/gorm"

	"orderflow/internal/adapters/out/postgres/orderrepo"
	"orderflow/internal/core/ports"
)

// GormUnitOfWorkFactory creates UnitOfWork instances sharing one GORM
// connection pool. Each business operation gets a fresh instance with its
// own transaction state.
type GormUnitOfWorkFactory struct {
	db *gorm.DB
}

// NewGormUnitOfWorkFactory creates a factory for GORM-based unit of work
// instances.
func NewGormUnitOfWorkFactory(db *gorm.DB) *GormUnitOfWorkFactory {
	return &GormUnitOfWorkFactory{db: db}
}

// Create produces a new UnitOfWork ready for one business transaction.
func (f *GormUnitOfWorkFactory) Create() ports.UnitOfWork {
	return &GormUnitOfWork{db: f.db}
}

// GormUnitOfWork coordinates one database transaction and the callbacks
// scheduled to run after it commits.
type GormUnitOfWork struct {
	db          *gorm.DB
	tx          *gorm.DB
	afterCommit []func()
}

// Begin starts the transaction. Calling Begin on an already-open unit of
// work is a no-op rather than a nested transaction.
func (uow *GormUnitOfWork) Begin(ctx context.Context) error {
	if uow.tx != nil {
		return nil
	}

	uow.tx = uow.db.WithContext(ctx).Begin()
	if uow.tx.Error != nil {
		err := uow.tx.Error
		uow.tx = nil
		return err
	}

	return nil
}

// Commit commits the transaction and then runs the registered callbacks in
// registration order. On commit failure the callbacks are discarded.
func (uow *GormUnitOfWork) Commit(_ context.Context) error {
	if uow.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := uow.tx.Commit().Error
	uow.tx = nil
	callbacks := uow.afterCommit
	uow.afterCommit = nil
	if err != nil {
		return err
	}

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// Rollback discards the transaction and every registered callback. Calling
// it after Commit is the usual deferred-cleanup pattern and is a no-op.
func (uow *GormUnitOfWork) Rollback(_ context.Context) error {
	uow.afterCommit = nil
	if uow.tx == nil {
		return nil
	}

	err := uow.tx.Rollback().Error
	uow.tx = nil
	return err
}

// AfterCommit schedules fn to run once the transaction commits.
func (uow *GormUnitOfWork) AfterCommit(fn func()) {
	uow.afterCommit = append(uow.afterCommit, fn)
}

// OrderRepository returns an order repository bound to the current
// transaction, or to the pool when no transaction is open.
func (uow *GormUnitOfWork) OrderRepository() ports.OrderRepository {
	db := uow.db
	if uow.tx != nil {
		db = uow.tx
	}
	return orderrepo.NewGormOrderRepository(db)
}
