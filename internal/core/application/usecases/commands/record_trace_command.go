package commands

import (
	"context"
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/guard"
)

var (
	ErrRecordTraceCommandIsNotConstructed = errors.New(
		"RecordTraceCommand must be created via NewRecordTraceCommand constructor",
	)
	ErrTracePointsAreRequired = errors.New("at least one trace point is required")
)

// RecordTraceCommand appends actual-path GPS points to the step the driver
// is currently executing. Points accumulate on the live trace until the
// step completes and the trace freezes.
type RecordTraceCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID
	stepID  kernel.UUID
	points  []kernel.GeoPoint

	guard guard.ConstructorGuard
}

// NewRecordTraceCommand creates a trace append for the step.
func NewRecordTraceCommand(orderID, stepID kernel.UUID, points []kernel.GeoPoint) (RecordTraceCommand, error) {
	if err := errors.Join(orderID.Validate(), stepID.Validate()); err != nil {
		return RecordTraceCommand{}, err
	}
	if len(points) == 0 {
		return RecordTraceCommand{}, ErrTracePointsAreRequired
	}
	return RecordTraceCommand{
		orderID: orderID,
		stepID:  stepID,
		points:  points,
		guard:   guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c RecordTraceCommand) Validate() error {
	return c.guard.Validate(ErrRecordTraceCommandIsNotConstructed)
}

// RecordTraceCommandHandler persists trace appends. High-frequency but
// cheap: no notifications, no cascade.
type RecordTraceCommandHandler struct {
	uowFactory UnitOfWorkFactory
}

// NewRecordTraceCommandHandler creates a handler for trace appends.
func NewRecordTraceCommandHandler(uowFactory UnitOfWorkFactory) RecordTraceCommandHandler {
	return RecordTraceCommandHandler{uowFactory: uowFactory}
}

// Handle appends the points under a row lock.
func (h RecordTraceCommandHandler) Handle(ctx context.Context, cmd RecordTraceCommand) error {
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

	aggregate.AppendTrace(cmd.stepID, cmd.points...)

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	return uow.Commit(ctx)
}
