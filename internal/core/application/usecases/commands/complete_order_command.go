package commands

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var ErrCompleteOrderCommandIsNotConstructed = errors.New(
	"CompleteOrderCommand must be created via NewCompleteOrderCommand constructor",
)

// CompleteOrderCommand is the driver's manual finish. It requires every
// action settled and forces the order closed over frozen leftovers.
type CompleteOrderCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

// NewCompleteOrderCommand creates a manual finish for the order.
func NewCompleteOrderCommand(orderID kernel.UUID) (CompleteOrderCommand, error) {
	if err := orderID.Validate(); err != nil {
		return CompleteOrderCommand{}, err
	}
	return CompleteOrderCommand{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the command was created through the constructor.
func (c CompleteOrderCommand) Validate() error {
	return c.guard.Validate(ErrCompleteOrderCommandIsNotConstructed)
}

// CompleteOrderCommandHandler forces order closure and releases presence.
type CompleteOrderCommandHandler struct {
	uowFactory UnitOfWorkFactory
	presence   ports.PresenceStore
	notifier   ports.Notifier
}

// NewCompleteOrderCommandHandler creates a handler for the manual finish.
func NewCompleteOrderCommandHandler(uowFactory UnitOfWorkFactory, presence ports.PresenceStore, notifier ports.Notifier) CompleteOrderCommandHandler {
	return CompleteOrderCommandHandler{uowFactory: uowFactory, presence: presence, notifier: notifier}
}

// Handle force-completes the order under a row lock.
func (h CompleteOrderCommandHandler) Handle(ctx context.Context, cmd CompleteOrderCommand) error {
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

	cascade, err := aggregate.ForceComplete(time.Now())
	if err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	scheduleCascadeFollowups(ctx, uow, h.presence, h.notifier, aggregate, cascade)
	return uow.Commit(ctx)
}
