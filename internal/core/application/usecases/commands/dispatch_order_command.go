package commands

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

var ErrDispatchOrderCommandIsNotConstructed = errors.New(
	"DispatchOrderCommand must be created via NewDispatchOrderCommand constructor",
)

// DispatchOrderCommand runs one driver-selection round for a pending order.
// Issued by the dispatch job; also by the API when a client asks for an
// immediate retry after NoDriverAvailable would otherwise loom.
type DispatchOrderCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

// NewDispatchOrderCommand creates a dispatch round for the order.
func NewDispatchOrderCommand(orderID kernel.UUID) (DispatchOrderCommand, error) {
	if err := orderID.Validate(); err != nil {
		return DispatchOrderCommand{}, err
	}
	return DispatchOrderCommand{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the command was created through the constructor.
func (c DispatchOrderCommand) Validate() error {
	return c.guard.Validate(ErrDispatchOrderCommandIsNotConstructed)
}

// DispatchOrderCommandHandler coordinates the dispatch engine with
// persistence. A per-order advisory lock keeps concurrent job ticks from
// racing each other through the presence store.
type DispatchOrderCommandHandler struct {
	uowFactory UnitOfWorkFactory
	dispatcher services.Dispatcher
	presence   ports.PresenceStore
	notifier   ports.Notifier
}

// NewDispatchOrderCommandHandler creates a handler for dispatch rounds.
func NewDispatchOrderCommandHandler(
	uowFactory UnitOfWorkFactory,
	dispatcher services.Dispatcher,
	presence ports.PresenceStore,
	notifier ports.Notifier,
) DispatchOrderCommandHandler {
	return DispatchOrderCommandHandler{
		uowFactory: uowFactory,
		dispatcher: dispatcher,
		presence:   presence,
		notifier:   notifier,
	}
}

// Handle runs one selection round. Losing the advisory lock or the
// presence swap are both quiet outcomes: another round is already in
// flight and the job will come back.
func (h DispatchOrderCommandHandler) Handle(ctx context.Context, cmd DispatchOrderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	lockKey := "dispatch:" + cmd.orderID.String()
	acquired, err := h.presence.AcquireLock(ctx, lockKey, 30*time.Second)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer func() {
		_ = h.presence.ReleaseLock(ctx, lockKey)
	}()

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	aggregate, err := uow.OrderRepository().GetForUpdate(ctx, cmd.orderID)
	if err != nil {
		return err
	}

	outcome, err := h.dispatcher.Dispatch(ctx, aggregate, time.Now())
	if errors.Is(err, errs.ErrConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	if outcome.AlreadyOffered {
		return nil
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	uow.AfterCommit(func() {
		switch {
		case outcome.OfferedDriverID != nil:
			h.notifier.Notify(ctx, ports.EventMissionOffered, aggregate.ID(), map[string]any{
				"driverId": outcome.OfferedDriverID.String(),
			})
		case outcome.NoDriver:
			h.notifier.Notify(ctx, ports.EventStatusChanged, aggregate.ID(), map[string]any{
				"status": aggregate.Status().String(),
			})
		}
	})
	return uow.Commit(ctx)
}
