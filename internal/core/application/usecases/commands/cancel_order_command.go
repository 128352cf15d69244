package commands

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/core/domain/model/driver"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var ErrCancelOrderCommandIsNotConstructed = errors.New(
	"CancelOrderCommand must be created via NewCancelOrderCommand constructor",
)

// CancelOrderCommand cancels a non-terminal order. Any outstanding offer is
// withdrawn and an assigned driver is released.
type CancelOrderCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

// NewCancelOrderCommand creates a cancellation for the order.
func NewCancelOrderCommand(orderID kernel.UUID) (CancelOrderCommand, error) {
	if err := orderID.Validate(); err != nil {
		return CancelOrderCommand{}, err
	}
	return CancelOrderCommand{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the command was created through the constructor.
func (c CancelOrderCommand) Validate() error {
	return c.guard.Validate(ErrCancelOrderCommandIsNotConstructed)
}

// CancelOrderCommandHandler cancels orders and unwinds presence state.
type CancelOrderCommandHandler struct {
	uowFactory UnitOfWorkFactory
	presence   ports.PresenceStore
	notifier   ports.Notifier
}

// NewCancelOrderCommandHandler creates a handler for order cancellation.
func NewCancelOrderCommandHandler(uowFactory UnitOfWorkFactory, presence ports.PresenceStore, notifier ports.Notifier) CancelOrderCommandHandler {
	return CancelOrderCommandHandler{uowFactory: uowFactory, presence: presence, notifier: notifier}
}

// Handle cancels the order under a row lock. Presence cleanup runs after
// commit: an offered driver goes back to ONLINE, an assigned driver has
// this mission released.
func (h CancelOrderCommandHandler) Handle(ctx context.Context, cmd CancelOrderCommand) error {
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

	offeredDriver := aggregate.OfferedDriverID()
	assignedDriver := aggregate.DriverID()

	if err = aggregate.Cancel(time.Now()); err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	orderID := aggregate.ID()
	uow.AfterCommit(func() {
		if offeredDriver != nil {
			_, _ = h.presence.CompareAndSwapAvailability(ctx, *offeredDriver,
				driver.AvailabilityOffering, driver.AvailabilityOnline)
		}
		if assignedDriver != nil {
			_ = h.presence.ReleaseActiveMission(ctx, *assignedDriver, orderID)
		}
		h.notifier.Notify(ctx, ports.EventStatusChanged, orderID, map[string]any{
			"status": aggregate.Status().String(),
		})
	})
	return uow.Commit(ctx)
}
