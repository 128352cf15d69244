package commands

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var (
	ErrFreezeActionCommandIsNotConstructed = errors.New(
		"FreezeActionCommand must be created via NewFreezeActionCommand constructor",
	)
	ErrUnfreezeActionCommandIsNotConstructed = errors.New(
		"UnfreezeActionCommand must be created via NewUnfreezeActionCommand constructor",
	)
)

// FreezeActionCommand puts an action on hold when it cannot be carried out
// right now (recipient absent, dock blocked). A frozen action keeps the
// order open until resolved or force-completed.
type FreezeActionCommand struct { //nolint:recvcheck //using for validation
	orderID  kernel.UUID
	actionID kernel.UUID
	reason   string

	guard guard.ConstructorGuard
}

// NewFreezeActionCommand creates a freeze with an optional reason.
func NewFreezeActionCommand(orderID, actionID kernel.UUID, reason string) (FreezeActionCommand, error) {
	if err := errors.Join(orderID.Validate(), actionID.Validate()); err != nil {
		return FreezeActionCommand{}, err
	}
	return FreezeActionCommand{
		orderID:  orderID,
		actionID: actionID,
		reason:   reason,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c FreezeActionCommand) Validate() error {
	return c.guard.Validate(ErrFreezeActionCommandIsNotConstructed)
}

// UnfreezeActionCommand returns a frozen action to pending, reopening its
// stop if the stop had settled as partial.
type UnfreezeActionCommand struct { //nolint:recvcheck //using for validation
	orderID  kernel.UUID
	actionID kernel.UUID

	guard guard.ConstructorGuard
}

// NewUnfreezeActionCommand creates an unfreeze for the action.
func NewUnfreezeActionCommand(orderID, actionID kernel.UUID) (UnfreezeActionCommand, error) {
	if err := errors.Join(orderID.Validate(), actionID.Validate()); err != nil {
		return UnfreezeActionCommand{}, err
	}
	return UnfreezeActionCommand{
		orderID:  orderID,
		actionID: actionID,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c UnfreezeActionCommand) Validate() error {
	return c.guard.Validate(ErrUnfreezeActionCommandIsNotConstructed)
}

// FreezeActionCommandHandler handles both directions of the hold state.
type FreezeActionCommandHandler struct {
	uowFactory UnitOfWorkFactory
	presence   ports.PresenceStore
	notifier   ports.Notifier
}

// NewFreezeActionCommandHandler creates a handler for freezing and
// unfreezing actions.
func NewFreezeActionCommandHandler(uowFactory UnitOfWorkFactory, presence ports.PresenceStore, notifier ports.Notifier) FreezeActionCommandHandler {
	return FreezeActionCommandHandler{uowFactory: uowFactory, presence: presence, notifier: notifier}
}

// Handle freezes the action under a row lock.
func (h FreezeActionCommandHandler) Handle(ctx context.Context, cmd FreezeActionCommand) error {
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

	cascade, err := aggregate.FreezeAction(cmd.actionID, cmd.reason, time.Now())
	if err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	scheduleCascadeFollowups(ctx, uow, h.presence, h.notifier, aggregate, cascade)
	return uow.Commit(ctx)
}

// HandleUnfreeze reverses a hold under a row lock.
func (h FreezeActionCommandHandler) HandleUnfreeze(ctx context.Context, cmd UnfreezeActionCommand) error {
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

	cascade, err := aggregate.UnfreezeAction(cmd.actionID, time.Now())
	if err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	scheduleCascadeFollowups(ctx, uow, h.presence, h.notifier, aggregate, cascade)
	return uow.Commit(ctx)
}
