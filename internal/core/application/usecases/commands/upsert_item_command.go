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

var (
	ErrUpsertItemCommandIsNotConstructed = errors.New(
		"UpsertItemCommand must be created via NewUpsertItemCommand constructor",
	)
	ErrWeightIsInvalid = errors.New("weight must not be negative")
)

// UpsertItemCommand adds or edits a transit item of an order.
type UpsertItemCommand struct { //nolint:recvcheck //using for validation
	orderID  kernel.UUID
	itemID   kernel.UUID
	label    string
	weightKg float64

	guard guard.ConstructorGuard
}

// NewUpsertItemCommand creates a transit item edit.
func NewUpsertItemCommand(orderID, itemID kernel.UUID, label string, weightKg float64) (UpsertItemCommand, error) {
	cmd := UpsertItemCommand{
		label:    label,
		weightKg: weightKg,
		guard:    guard.NewConstructorGuard(),
	}

	if err := errors.Join(orderID.Validate(), itemID.Validate()); err != nil {
		return UpsertItemCommand{}, err
	}
	if weightKg < 0 {
		return UpsertItemCommand{}, ErrWeightIsInvalid
	}
	cmd.orderID = orderID
	cmd.itemID = itemID
	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c UpsertItemCommand) Validate() error {
	return c.guard.Validate(ErrUpsertItemCommandIsNotConstructed)
}

// UpsertItemCommandHandler applies transit item edits.
type UpsertItemCommandHandler struct {
	uowFactory  UnitOfWorkFactory
	shadowMerge services.ShadowMerge
	notifier    ports.Notifier
}

// NewUpsertItemCommandHandler creates a handler for item edits.
func NewUpsertItemCommandHandler(uowFactory UnitOfWorkFactory, sm services.ShadowMerge, notifier ports.Notifier) UpsertItemCommandHandler {
	return UpsertItemCommandHandler{uowFactory: uowFactory, shadowMerge: sm, notifier: notifier}
}

// Handle applies the edit under a row lock and announces the structure
// change after commit.
func (h UpsertItemCommandHandler) Handle(ctx context.Context, cmd UpsertItemCommand) error {
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

	row := &order.TransitItem{ID: cmd.itemID, Label: cmd.label, WeightKg: cmd.weightKg}
	if err = h.shadowMerge.UpsertItem(aggregate, row); err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	uow.AfterCommit(func() {
		h.notifier.Notify(ctx, ports.EventStructureChanged, aggregate.ID(), map[string]any{
			"node": "item", "id": cmd.itemID.String(),
		})
	})
	return uow.Commit(ctx)
}
