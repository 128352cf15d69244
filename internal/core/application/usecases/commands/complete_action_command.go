package commands

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var ErrCompleteActionCommandIsNotConstructed = errors.New(
	"CompleteActionCommand must be created via NewCompleteActionCommand constructor",
)

// CompleteActionCommand finishes one action, carrying the field evidence
// its proofs demand. Codes and files are keyed by proof id.
type CompleteActionCommand struct { //nolint:recvcheck //using for validation
	orderID  kernel.UUID
	actionID kernel.UUID
	codes    map[string]string
	files    map[string]string

	guard guard.ConstructorGuard
}

// NewCompleteActionCommand creates a completion with the submitted proofs.
func NewCompleteActionCommand(orderID, actionID kernel.UUID, codes, files map[string]string) (CompleteActionCommand, error) {
	if err := errors.Join(orderID.Validate(), actionID.Validate()); err != nil {
		return CompleteActionCommand{}, err
	}
	return CompleteActionCommand{
		orderID:  orderID,
		actionID: actionID,
		codes:    codes,
		files:    files,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c CompleteActionCommand) Validate() error {
	return c.guard.Validate(ErrCompleteActionCommandIsNotConstructed)
}

// CompleteActionCommandHandler completes actions and reacts to the status
// cascade: when the order closes, the driver's presence is released.
type CompleteActionCommandHandler struct {
	uowFactory UnitOfWorkFactory
	presence   ports.PresenceStore
	notifier   ports.Notifier
}

// NewCompleteActionCommandHandler creates a handler for action completion.
func NewCompleteActionCommandHandler(uowFactory UnitOfWorkFactory, presence ports.PresenceStore, notifier ports.Notifier) CompleteActionCommandHandler {
	return CompleteActionCommandHandler{uowFactory: uowFactory, presence: presence, notifier: notifier}
}

// Handle completes the action under a row lock. Re-delivery of the same
// completion is absorbed as a no-op so drivers on flaky links can retry.
func (h CompleteActionCommandHandler) Handle(ctx context.Context, cmd CompleteActionCommand) error {
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

	cascade, err := aggregate.CompleteAction(cmd.actionID, order.ProofSubmission{
		Codes: cmd.codes,
		Files: cmd.files,
	}, time.Now())
	if errors.Is(err, order.ErrActionAlreadyCompleted) {
		return nil
	}
	if err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	scheduleCascadeFollowups(ctx, uow, h.presence, h.notifier, aggregate, cascade)
	return uow.Commit(ctx)
}

// scheduleCascadeFollowups registers the after-commit reactions shared by
// every field event that can close the order: step-completion route
// updates, presence release and the terminal status notification.
func scheduleCascadeFollowups(
	ctx context.Context,
	uow UnitOfWork,
	presence ports.PresenceStore,
	notifier ports.Notifier,
	aggregate *order.Order,
	cascade *order.CascadeResult,
) {
	orderID := aggregate.ID()
	driverID := aggregate.DriverID()
	status := aggregate.Status()

	uow.AfterCommit(func() {
		if cascade.CompletedStepID != nil {
			notifier.Notify(ctx, ports.EventRouteUpdated, orderID, map[string]any{
				"completedStepId": cascade.CompletedStepID.String(),
			})
		}
		if cascade.OrderTerminal {
			if driverID != nil {
				_ = presence.ReleaseActiveMission(ctx, *driverID, orderID)
			}
			notifier.Notify(ctx, ports.EventStatusChanged, orderID, map[string]any{
				"status": status.String(),
			})
		}
	})
}
