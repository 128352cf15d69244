package commands

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var (
	ErrUpsertActionCommandIsNotConstructed = errors.New(
		"UpsertActionCommand must be created via NewUpsertActionCommand constructor",
	)
	ErrQuantityIsInvalid = errors.New("quantity must be greater than 0")
)

// ProofSpec declares one required completion proof on an action edit.
type ProofSpec struct {
	ProofID       kernel.UUID
	Kind          order.ProofKind
	ExpectedValue string
	CompareValue  bool
	Reference     string
}

// UpsertActionCommand adds or edits a work action at a stop.
type UpsertActionCommand struct { //nolint:recvcheck //using for validation
	orderID     kernel.UUID
	actionID    kernel.UUID
	stopID      kernel.UUID
	itemID      *kernel.UUID
	kind        order.ActionKind
	quantity    int
	serviceTime time.Duration
	proofs      []ProofSpec

	guard guard.ConstructorGuard
}

// NewUpsertActionCommand creates an action edit. itemID is optional for
// actions that move no cargo (e.g. a service call).
func NewUpsertActionCommand(
	orderID, actionID, stopID kernel.UUID,
	itemID *kernel.UUID,
	kind order.ActionKind,
	quantity int,
	serviceTime time.Duration,
	proofs []ProofSpec,
) (UpsertActionCommand, error) {
	cmd := UpsertActionCommand{
		itemID:      itemID,
		kind:        kind,
		quantity:    quantity,
		serviceTime: serviceTime,
		proofs:      proofs,
		guard:       guard.NewConstructorGuard(),
	}

	if err := errors.Join(orderID.Validate(), actionID.Validate(), stopID.Validate()); err != nil {
		return UpsertActionCommand{}, err
	}
	if itemID != nil && quantity <= 0 {
		return UpsertActionCommand{}, ErrQuantityIsInvalid
	}
	cmd.orderID = orderID
	cmd.actionID = actionID
	cmd.stopID = stopID
	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c UpsertActionCommand) Validate() error {
	return c.guard.Validate(ErrUpsertActionCommandIsNotConstructed)
}

// UpsertActionCommandHandler applies action edits through the copy-on-write
// editing model.
type UpsertActionCommandHandler struct {
	uowFactory  UnitOfWorkFactory
	shadowMerge services.ShadowMerge
	notifier    ports.Notifier
}

// NewUpsertActionCommandHandler creates a handler for action edits.
func NewUpsertActionCommandHandler(uowFactory UnitOfWorkFactory, sm services.ShadowMerge, notifier ports.Notifier) UpsertActionCommandHandler {
	return UpsertActionCommandHandler{uowFactory: uowFactory, shadowMerge: sm, notifier: notifier}
}

// Handle applies the edit under a row lock and announces the structure
// change after commit.
func (h UpsertActionCommandHandler) Handle(ctx context.Context, cmd UpsertActionCommand) error {
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

	proofs := make([]order.ActionProof, 0, len(cmd.proofs))
	for _, p := range cmd.proofs {
		proofs = append(proofs, order.ActionProof{
			ID:            p.ProofID,
			Kind:          p.Kind,
			ExpectedValue: p.ExpectedValue,
			CompareValue:  p.CompareValue,
			Reference:     p.Reference,
		})
	}

	row := &order.Action{
		ID:          cmd.actionID,
		StopID:      cmd.stopID,
		ItemID:      cmd.itemID,
		Kind:        cmd.kind,
		Quantity:    cmd.quantity,
		ServiceTime: cmd.serviceTime,
		Proofs:      proofs,
	}
	if err = h.shadowMerge.UpsertAction(aggregate, row); err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	uow.AfterCommit(func() {
		h.notifier.Notify(ctx, ports.EventStructureChanged, aggregate.ID(), map[string]any{
			"node": "action", "id": cmd.actionID.String(),
		})
	})
	return uow.Commit(ctx)
}
