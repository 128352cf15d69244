package commands

import (
	"context"
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var ErrRevertChangesCommandIsNotConstructed = errors.New(
	"RevertChangesCommand must be created via NewRevertChangesCommand constructor",
)

// RevertChangesCommand discards the client's pending change set, restoring
// the client view to the canonical structure the driver executes.
type RevertChangesCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

// NewRevertChangesCommand creates a revert for the order.
func NewRevertChangesCommand(orderID kernel.UUID) (RevertChangesCommand, error) {
	if err := orderID.Validate(); err != nil {
		return RevertChangesCommand{}, err
	}
	return RevertChangesCommand{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the command was created through the constructor.
func (c RevertChangesCommand) Validate() error {
	return c.guard.Validate(ErrRevertChangesCommandIsNotConstructed)
}

// RevertChangesCommandHandler drops shadows and delete flags in one
// transaction.
type RevertChangesCommandHandler struct {
	uowFactory  UnitOfWorkFactory
	shadowMerge services.ShadowMerge
	notifier    ports.Notifier
}

// NewRevertChangesCommandHandler creates a handler for reverting change
// sets.
func NewRevertChangesCommandHandler(uowFactory UnitOfWorkFactory, sm services.ShadowMerge, notifier ports.Notifier) RevertChangesCommandHandler {
	return RevertChangesCommandHandler{uowFactory: uowFactory, shadowMerge: sm, notifier: notifier}
}

// Handle reverts the order's pending changes under a row lock.
func (h RevertChangesCommandHandler) Handle(ctx context.Context, cmd RevertChangesCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	aggregate, err := uow.OrderRepository().GetForUpdate(ctx, cmd.orderID)
	if err != nil {
		return err
	}

	if err = h.shadowMerge.Revert(aggregate); err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	uow.AfterCommit(func() {
		h.notifier.Notify(ctx, ports.EventStructureChanged, aggregate.ID(), map[string]any{
			"reverted": true,
		})
	})
	return uow.Commit(ctx)
}
