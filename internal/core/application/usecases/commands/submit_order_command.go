package commands

import (
	"context"
	"errors"
	"sort"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var ErrSubmitOrderCommandIsNotConstructed = errors.New(
	"SubmitOrderCommand must be created via NewSubmitOrderCommand constructor",
)

// SubmitOrderCommand finalizes a draft: the structure is checked against
// the transit-item conservation law, the stop sequence is optimized, a
// price is estimated and the order enters the dispatch queue.
type SubmitOrderCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

// NewSubmitOrderCommand creates a submission for the order.
func NewSubmitOrderCommand(orderID kernel.UUID) (SubmitOrderCommand, error) {
	if err := orderID.Validate(); err != nil {
		return SubmitOrderCommand{}, err
	}
	return SubmitOrderCommand{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the command was created through the constructor.
func (c SubmitOrderCommand) Validate() error {
	return c.guard.Validate(ErrSubmitOrderCommandIsNotConstructed)
}

// SubmitOrderCommandHandler runs the draft-to-pending transition: viability
// gate, solver pass, route estimate, persistence, notification.
type SubmitOrderCommandHandler struct {
	uowFactory UnitOfWorkFactory
	viability  services.Viability
	planner    services.RoutePlanner
	notifier   ports.Notifier
}

// NewSubmitOrderCommandHandler creates a handler for order submission.
func NewSubmitOrderCommandHandler(
	uowFactory UnitOfWorkFactory,
	viability services.Viability,
	planner services.RoutePlanner,
	notifier ports.Notifier,
) SubmitOrderCommandHandler {
	return SubmitOrderCommandHandler{
		uowFactory: uowFactory,
		viability:  viability,
		planner:    planner,
		notifier:   notifier,
	}
}

// Handle submits the order. Any viability finding, ERROR or WARNING, blocks
// the submission and is returned to the caller in full.
func (h SubmitOrderCommandHandler) Handle(ctx context.Context, cmd SubmitOrderCommand) error {
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

	if findings := h.viability.CheckGraph(aggregate.Graph()); len(findings) > 0 {
		return findings
	}

	stops := append([]*order.Stop(nil), aggregate.Graph().Stops...)
	sort.SliceStable(stops, func(i, j int) bool { return stops[i].Sequence < stops[j].Sequence })
	planned := make([]kernel.UUID, 0, len(stops))
	for _, s := range stops {
		planned = append(planned, s.ID)
	}

	if err = aggregate.Submit(planned, time.Now()); err != nil {
		return err
	}
	if err = h.planner.Optimize(ctx, aggregate); err != nil {
		return err
	}
	if err = h.planner.Estimate(ctx, aggregate); err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	uow.AfterCommit(func() {
		h.notifier.Notify(ctx, ports.EventStatusChanged, aggregate.ID(), map[string]any{
			"status": aggregate.Status().String(),
		})
	})
	return uow.Commit(ctx)
}
