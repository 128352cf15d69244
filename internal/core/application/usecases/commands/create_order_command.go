package commands

import (
	"context"
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/guard"
)

var ErrCreateOrderCommandIsNotConstructed = errors.New(
	"CreateOrderCommand must be created via NewCreateOrderCommand constructor",
)

// CreateOrderCommand represents a request to open a new Draft order for a
// client. Structure (steps, stops, actions, items) is attached afterwards
// through the edit commands while the order is still a draft.
type CreateOrderCommand struct { //nolint:recvcheck //using for validation
	orderID      kernel.UUID
	clientID     kernel.UUID
	dispatchMode order.DispatchMode
	targetID     *kernel.UUID
	companyID    *kernel.UUID
	priority     order.Priority

	guard guard.ConstructorGuard
}

// NewCreateOrderCommand creates a command to open a draft order.
// targetID is required for target dispatch, companyID for internal
// dispatch; both rules are enforced by the aggregate on Handle.
func NewCreateOrderCommand(
	orderID kernel.UUID,
	clientID kernel.UUID,
	mode order.DispatchMode,
	targetID *kernel.UUID,
	companyID *kernel.UUID,
	priority order.Priority,
) (CreateOrderCommand, error) {
	cmd := CreateOrderCommand{
		dispatchMode: mode,
		targetID:     targetID,
		companyID:    companyID,
		priority:     priority,
		guard:        guard.NewConstructorGuard(),
	}

	if err := errors.Join(
		cmd.setOrderID(orderID),
		cmd.setClientID(clientID),
	); err != nil {
		return CreateOrderCommand{}, err
	}

	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c CreateOrderCommand) Validate() error {
	return c.guard.Validate(ErrCreateOrderCommandIsNotConstructed)
}

// OrderID returns the client-supplied id of the new order.
func (c CreateOrderCommand) OrderID() kernel.UUID { return c.orderID }

// ClientID returns the owning client.
func (c CreateOrderCommand) ClientID() kernel.UUID { return c.clientID }

func (c *CreateOrderCommand) setOrderID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	c.orderID = id
	return nil
}

func (c *CreateOrderCommand) setClientID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	c.clientID = id
	return nil
}

// CreateOrderCommandHandler persists a new draft order.
type CreateOrderCommandHandler struct {
	uowFactory UnitOfWorkFactory
}

// NewCreateOrderCommandHandler creates a handler for order creation.
func NewCreateOrderCommandHandler(uowFactory UnitOfWorkFactory) CreateOrderCommandHandler {
	return CreateOrderCommandHandler{uowFactory: uowFactory}
}

// Handle creates the draft aggregate and persists it transactionally.
func (h CreateOrderCommandHandler) Handle(ctx context.Context, cmd CreateOrderCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	aggregate, err := order.NewOrder(cmd.orderID, cmd.clientID,
		cmd.dispatchMode, cmd.targetID, cmd.companyID, cmd.priority)
	if err != nil {
		return err
	}

	uow := h.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err = uow.OrderRepository().Add(ctx, aggregate); err != nil {
		return err
	}

	return uow.Commit(ctx)
}
