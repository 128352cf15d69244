package ports

import (
	"context"
)

// UnitOfWorkFactory creates new UnitOfWork instances for each
// request/command, ensuring isolation between concurrent operations.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// UnitOfWork represents a business transaction boundary with explicit
// lifecycle control and after-commit callback scheduling.
type UnitOfWork interface {
	// Begin starts a new database transaction.
	Begin(ctx context.Context) error

	// Commit commits the current transaction and then runs the callbacks
	// registered via AfterCommit, in order. Returns an error if no
	// transaction is active or the commit fails; callbacks do not run on
	// failure.
	Commit(ctx context.Context) error

	// Rollback rolls back the current transaction and discards any
	// registered after-commit callbacks.
	Rollback(ctx context.Context) error

	// AfterCommit registers a callback to run once the transaction
	// commits. Observers therefore never see an event for a change that
	// was later rolled back.
	AfterCommit(fn func())

	// OrderRepository returns an OrderRepository bound to the current
	// transaction.
	OrderRepository() OrderRepository
}
