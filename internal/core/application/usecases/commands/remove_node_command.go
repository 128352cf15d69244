package commands

import (
	"context"
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var (
	ErrRemoveNodeCommandIsNotConstructed = errors.New(
		"RemoveNodeCommand must be created via NewRemoveNodeCommand constructor",
	)
	ErrNodeKindIsInvalid = errors.New("node kind is invalid")
)

// NodeKind selects which structural row a removal addresses.
type NodeKind string

const (
	NodeStep   NodeKind = "step"
	NodeStop   NodeKind = "stop"
	NodeAction NodeKind = "action"
	NodeItem   NodeKind = "item"
)

// RemoveNodeCommand removes a structural row. Draft rows are hard-deleted
// with their subtree; on a submitted order the row is flagged and stays on
// the driver's plan until the change set is pushed.
type RemoveNodeCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID
	kind    NodeKind
	nodeID  kernel.UUID

	guard guard.ConstructorGuard
}

// NewRemoveNodeCommand creates a removal for the given node.
func NewRemoveNodeCommand(orderID kernel.UUID, kind NodeKind, nodeID kernel.UUID) (RemoveNodeCommand, error) {
	cmd := RemoveNodeCommand{
		kind:  kind,
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(orderID.Validate(), nodeID.Validate()); err != nil {
		return RemoveNodeCommand{}, err
	}
	switch kind {
	case NodeStep, NodeStop, NodeAction, NodeItem:
	default:
		return RemoveNodeCommand{}, ErrNodeKindIsInvalid
	}
	cmd.orderID = orderID
	cmd.nodeID = nodeID
	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c RemoveNodeCommand) Validate() error {
	return c.guard.Validate(ErrRemoveNodeCommandIsNotConstructed)
}

// RemoveNodeCommandHandler applies removals through the copy-on-write
// editing model.
type RemoveNodeCommandHandler struct {
	uowFactory  UnitOfWorkFactory
	shadowMerge services.ShadowMerge
	notifier    ports.Notifier
}

// NewRemoveNodeCommandHandler creates a handler for structural removals.
func NewRemoveNodeCommandHandler(uowFactory UnitOfWorkFactory, sm services.ShadowMerge, notifier ports.Notifier) RemoveNodeCommandHandler {
	return RemoveNodeCommandHandler{uowFactory: uowFactory, shadowMerge: sm, notifier: notifier}
}

// Handle applies the removal under a row lock and announces the structure
// change after commit.
func (h RemoveNodeCommandHandler) Handle(ctx context.Context, cmd RemoveNodeCommand) error {
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

	switch cmd.kind {
	case NodeStep:
		err = h.shadowMerge.DeleteStep(aggregate, cmd.nodeID)
	case NodeStop:
		err = h.shadowMerge.DeleteStop(aggregate, cmd.nodeID)
	case NodeAction:
		err = h.shadowMerge.DeleteAction(aggregate, cmd.nodeID)
	case NodeItem:
		err = h.shadowMerge.DeleteItem(aggregate, cmd.nodeID)
	}
	if err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	uow.AfterCommit(func() {
		h.notifier.Notify(ctx, ports.EventStructureChanged, aggregate.ID(), map[string]any{
			"node": string(cmd.kind), "id": cmd.nodeID.String(),
		})
	})
	return uow.Commit(ctx)
}
