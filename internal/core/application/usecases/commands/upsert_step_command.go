package commands

import (
	"context"
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var ErrUpsertStepCommandIsNotConstructed = errors.New(
	"UpsertStepCommand must be created via NewUpsertStepCommand constructor",
)

// UpsertStepCommand adds or edits a step of an order. On a draft the edit is
// applied in place; on a submitted order it lands as a pending change the
// driver does not see until pushed.
type UpsertStepCommand struct { //nolint:recvcheck //using for validation
	orderID    kernel.UUID
	stepID     kernel.UUID
	label      string
	orderIndex int

	guard guard.ConstructorGuard
}

// NewUpsertStepCommand creates a step edit. An unknown stepID is a create.
func NewUpsertStepCommand(orderID, stepID kernel.UUID, label string, orderIndex int) (UpsertStepCommand, error) {
	cmd := UpsertStepCommand{
		label:      label,
		orderIndex: orderIndex,
		guard:      guard.NewConstructorGuard(),
	}

	if err := errors.Join(orderID.Validate(), stepID.Validate()); err != nil {
		return UpsertStepCommand{}, err
	}
	cmd.orderID = orderID
	cmd.stepID = stepID
	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c UpsertStepCommand) Validate() error {
	return c.guard.Validate(ErrUpsertStepCommandIsNotConstructed)
}

// UpsertStepCommandHandler applies step edits through the copy-on-write
// editing model.
type UpsertStepCommandHandler struct {
	uowFactory  UnitOfWorkFactory
	shadowMerge services.ShadowMerge
	notifier    ports.Notifier
}

// NewUpsertStepCommandHandler creates a handler for step edits.
func NewUpsertStepCommandHandler(uowFactory UnitOfWorkFactory, sm services.ShadowMerge, notifier ports.Notifier) UpsertStepCommandHandler {
	return UpsertStepCommandHandler{uowFactory: uowFactory, shadowMerge: sm, notifier: notifier}
}

// Handle applies the edit under a row lock and announces the structure
// change after commit.
func (h UpsertStepCommandHandler) Handle(ctx context.Context, cmd UpsertStepCommand) error {
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

	row := &order.Step{ID: cmd.stepID, Label: cmd.label, OrderIndex: cmd.orderIndex}
	if err = h.shadowMerge.UpsertStep(aggregate, row); err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	uow.AfterCommit(func() {
		h.notifier.Notify(ctx, ports.EventStructureChanged, aggregate.ID(), map[string]any{
			"node": "step", "id": cmd.stepID.String(),
		})
	})
	return uow.Commit(ctx)
}
