package commands

import (
	"context"
	"errors"
	"time"

	"orderflow/internal/core/domain/model/driver"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

var ErrAcceptMissionCommandIsNotConstructed = errors.New(
	"AcceptMissionCommand must be created via NewAcceptMissionCommand constructor",
)

// AcceptMissionCommand is the driver taking the offered mission. The
// driver's current position becomes the mission start waypoint.
type AcceptMissionCommand struct { //nolint:recvcheck //using for validation
	orderID  kernel.UUID
	driverID kernel.UUID
	position kernel.GeoPoint

	guard guard.ConstructorGuard
}

// NewAcceptMissionCommand creates an acceptance by the driver at the given
// position.
func NewAcceptMissionCommand(orderID, driverID kernel.UUID, position kernel.GeoPoint) (AcceptMissionCommand, error) {
	if err := errors.Join(orderID.Validate(), driverID.Validate(), position.Validate()); err != nil {
		return AcceptMissionCommand{}, err
	}
	return AcceptMissionCommand{
		orderID:  orderID,
		driverID: driverID,
		position: position,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c AcceptMissionCommand) Validate() error {
	return c.guard.Validate(ErrAcceptMissionCommandIsNotConstructed)
}

// AcceptMissionCommandHandler gates the acceptance on compliance for
// company-affiliated drivers, finalizes the route from the driver's
// position and flips presence to BUSY.
type AcceptMissionCommandHandler struct {
	uowFactory UnitOfWorkFactory
	presence   ports.PresenceStore
	compliance ports.Compliance
	planner    services.RoutePlanner
	notifier   ports.Notifier
}

// NewAcceptMissionCommandHandler creates a handler for mission acceptance.
func NewAcceptMissionCommandHandler(
	uowFactory UnitOfWorkFactory,
	presence ports.PresenceStore,
	compliance ports.Compliance,
	planner services.RoutePlanner,
	notifier ports.Notifier,
) AcceptMissionCommandHandler {
	return AcceptMissionCommandHandler{
		uowFactory: uowFactory,
		presence:   presence,
		compliance: compliance,
		planner:    planner,
		notifier:   notifier,
	}
}

// Handle accepts the mission. The route is finalized with real geometry;
// when the router is down the acceptance still goes through on estimated
// legs rather than blocking the driver.
func (h AcceptMissionCommandHandler) Handle(ctx context.Context, cmd AcceptMissionCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	p, err := h.presence.Get(ctx, cmd.driverID)
	if err != nil {
		return err
	}
	if p.CompanyID != nil {
		approved, cerr := h.compliance.IsDriverApproved(ctx, cmd.driverID)
		if cerr != nil {
			return errs.NewExternalServiceError("compliance", cerr)
		}
		if !approved {
			return errs.NewBusinessRuleError("driver compliance not approved")
		}
	}

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

	if err = aggregate.Accept(cmd.driverID, cmd.position, time.Now()); err != nil {
		return err
	}

	if err = h.planner.Finalize(ctx, aggregate); err != nil {
		if !errors.Is(err, errs.ErrExternalService) {
			return err
		}
		if err = h.planner.Estimate(ctx, aggregate); err != nil {
			return err
		}
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	orderID := aggregate.ID()
	uow.AfterCommit(func() {
		if err := h.presence.AddActiveMission(ctx, cmd.driverID, orderID); err == nil {
			_, _ = h.presence.CompareAndSwapAvailability(ctx, cmd.driverID,
				driver.AvailabilityOffering, driver.AvailabilityBusy)
		}
		h.notifier.Notify(ctx, ports.EventStatusChanged, orderID, map[string]any{
			"status":   aggregate.Status().String(),
			"driverId": cmd.driverID.String(),
		})
		h.notifier.Notify(ctx, ports.EventRouteUpdated, orderID, nil)
	})
	return uow.Commit(ctx)
}
