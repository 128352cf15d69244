package commands

import (
	"context"
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/pkg/guard"
)

var ErrRefuseMissionCommandIsNotConstructed = errors.New(
	"RefuseMissionCommand must be created via NewRefuseMissionCommand constructor",
)

// RefuseMissionCommand is the driver turning the offered mission down. The
// driver joins the order's rejection set and the next dispatch round will
// look elsewhere.
type RefuseMissionCommand struct { //nolint:recvcheck //using for validation
	orderID  kernel.UUID
	driverID kernel.UUID

	guard guard.ConstructorGuard
}

// NewRefuseMissionCommand creates a refusal by the driver.
func NewRefuseMissionCommand(orderID, driverID kernel.UUID) (RefuseMissionCommand, error) {
	if err := errors.Join(orderID.Validate(), driverID.Validate()); err != nil {
		return RefuseMissionCommand{}, err
	}
	return RefuseMissionCommand{
		orderID:  orderID,
		driverID: driverID,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c RefuseMissionCommand) Validate() error {
	return c.guard.Validate(ErrRefuseMissionCommandIsNotConstructed)
}

// RefuseMissionCommandHandler records the refusal and clears the offer so
// the dispatch job can retry with the next candidate.
type RefuseMissionCommandHandler struct {
	uowFactory UnitOfWorkFactory
	dispatcher services.Dispatcher
}

// NewRefuseMissionCommandHandler creates a handler for mission refusal.
func NewRefuseMissionCommandHandler(uowFactory UnitOfWorkFactory, dispatcher services.Dispatcher) RefuseMissionCommandHandler {
	return RefuseMissionCommandHandler{uowFactory: uowFactory, dispatcher: dispatcher}
}

// Handle records the refusal under a row lock.
func (h RefuseMissionCommandHandler) Handle(ctx context.Context, cmd RefuseMissionCommand) error {
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

	if err = h.dispatcher.RecordRefusal(ctx, aggregate, cmd.driverID); err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	return uow.Commit(ctx)
}
