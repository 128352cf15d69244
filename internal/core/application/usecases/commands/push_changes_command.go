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

var ErrPushChangesCommandIsNotConstructed = errors.New(
	"PushChangesCommand must be created via NewPushChangesCommand constructor",
)

// PushChangesCommand applies the client's pending change set to the live
// order. The merged structure is viability-checked before anything lands,
// the route partition is reconciled and the remaining route re-planned, so
// the driver switches plans atomically.
type PushChangesCommand struct { //nolint:recvcheck //using for validation
	orderID kernel.UUID

	guard guard.ConstructorGuard
}

// NewPushChangesCommand creates a push for the order's pending changes.
func NewPushChangesCommand(orderID kernel.UUID) (PushChangesCommand, error) {
	if err := orderID.Validate(); err != nil {
		return PushChangesCommand{}, err
	}
	return PushChangesCommand{orderID: orderID, guard: guard.NewConstructorGuard()}, nil
}

// Validate ensures the command was created through the constructor.
func (c PushChangesCommand) Validate() error {
	return c.guard.Validate(ErrPushChangesCommandIsNotConstructed)
}

// PushChangesCommandHandler merges pending changes under a row lock.
type PushChangesCommandHandler struct {
	uowFactory  UnitOfWorkFactory
	shadowMerge services.ShadowMerge
	viability   services.Viability
	planner     services.RoutePlanner
	presence    ports.PresenceStore
	notifier    ports.Notifier
}

// NewPushChangesCommandHandler creates a handler for pushing change sets.
func NewPushChangesCommandHandler(
	uowFactory UnitOfWorkFactory,
	sm services.ShadowMerge,
	viability services.Viability,
	planner services.RoutePlanner,
	presence ports.PresenceStore,
	notifier ports.Notifier,
) PushChangesCommandHandler {
	return PushChangesCommandHandler{
		uowFactory:  uowFactory,
		shadowMerge: sm,
		viability:   viability,
		planner:     planner,
		presence:    presence,
		notifier:    notifier,
	}
}

// Handle validates the would-be merged structure, merges, reconciles the
// route and re-plans what is still ahead. Route notifications fire only
// after the transaction commits.
func (h PushChangesCommandHandler) Handle(ctx context.Context, cmd PushChangesCommand) error {
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

	// The client view is exactly what the graph becomes after the merge,
	// so it is the thing to validate.
	merged := h.shadowMerge.BuildView(aggregate.Graph(), services.ViewClient)
	if findings := h.viability.CheckGraph(merged); len(findings) > 0 {
		return findings
	}

	if err = h.shadowMerge.Merge(aggregate); err != nil {
		return err
	}
	aggregate.ReconcileRoute()

	if len(aggregate.RouteExecution().Remaining) > 0 {
		start := h.replanStart(ctx, aggregate)
		if err = h.planner.OptimizeFrom(ctx, aggregate, start); err != nil {
			return err
		}
		if aggregate.Status() == order.StatusAccepted {
			err = h.planner.FinalizeFrom(ctx, aggregate, start)
		} else {
			err = h.planner.Estimate(ctx, aggregate)
		}
		if err != nil {
			return err
		}
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	uow.AfterCommit(func() {
		h.notifier.Notify(ctx, ports.EventStructureChanged, aggregate.ID(), map[string]any{
			"merged": true,
		})
		h.notifier.Notify(ctx, ports.EventRouteUpdated, aggregate.ID(), nil)
	})
	return uow.Commit(ctx)
}

// replanStart resolves the waypoint a re-plan should depart from. For an
// accepted mission the driver is already moving, so the plan starts at the
// driver's live position; presence is ephemeral, so a missing or failed
// lookup falls back to the mission start rather than blocking the push.
func (h PushChangesCommandHandler) replanStart(ctx context.Context, o *order.Order) *kernel.GeoPoint {
	if o.Status() != order.StatusAccepted || o.DriverID() == nil {
		return o.MissionStart()
	}
	p, err := h.presence.Get(ctx, *o.DriverID())
	if err != nil || p == nil {
		return o.MissionStart()
	}
	loc := p.Location
	return &loc
}
