package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/guard"
)

var ErrArriveAtStopCommandIsNotConstructed = errors.New(
	"ArriveAtStopCommand must be created via NewArriveAtStopCommand constructor",
)

// ArriveAtStopCommand records the driver's arrival at a stop. The reported
// position is checked against the stop location, but the check is advisory:
// GPS is too unreliable near loading docks to hard-block the driver.
type ArriveAtStopCommand struct { //nolint:recvcheck //using for validation
	orderID  kernel.UUID
	stopID   kernel.UUID
	position *kernel.GeoPoint

	guard guard.ConstructorGuard
}

// NewArriveAtStopCommand creates an arrival report. position is optional.
func NewArriveAtStopCommand(orderID, stopID kernel.UUID, position *kernel.GeoPoint) (ArriveAtStopCommand, error) {
	if err := errors.Join(orderID.Validate(), stopID.Validate()); err != nil {
		return ArriveAtStopCommand{}, err
	}
	return ArriveAtStopCommand{
		orderID:  orderID,
		stopID:   stopID,
		position: position,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the command was created through the constructor.
func (c ArriveAtStopCommand) Validate() error {
	return c.guard.Validate(ErrArriveAtStopCommandIsNotConstructed)
}

// ArrivalResult reports the roll-up outcome plus the advisory distance
// finding, if any.
type ArrivalResult struct {
	StopID kernel.UUID
	// Advisory holds a human-readable distance warning when the reported
	// position is outside the configured arrival radius. Empty otherwise.
	Advisory string
}

// ArriveAtStopCommandHandler records arrivals and keeps the route
// partition in sync.
type ArriveAtStopCommandHandler struct {
	uowFactory UnitOfWorkFactory
	notifier   ports.Notifier
	// arrivalRadiusM bounds the advisory proximity check; zero disables
	// it.
	arrivalRadiusM float64
}

// NewArriveAtStopCommandHandler creates a handler for arrival reports.
func NewArriveAtStopCommandHandler(uowFactory UnitOfWorkFactory, notifier ports.Notifier, arrivalRadiusM float64) ArriveAtStopCommandHandler {
	return ArriveAtStopCommandHandler{
		uowFactory:     uowFactory,
		notifier:       notifier,
		arrivalRadiusM: arrivalRadiusM,
	}
}

// Handle records the arrival under a row lock. The advisory warning never
// blocks the arrival.
func (h ArriveAtStopCommandHandler) Handle(ctx context.Context, cmd ArriveAtStopCommand) (*ArrivalResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	uow := h.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	aggregate, err := uow.OrderRepository().GetForUpdate(ctx, cmd.orderID)
	if err != nil {
		return nil, err
	}

	result := &ArrivalResult{StopID: cmd.stopID}
	if h.arrivalRadiusM > 0 && cmd.position != nil {
		if stop := aggregate.Graph().FindStop(cmd.stopID); stop != nil {
			if dist, derr := cmd.position.DistanceTo(stop.Location); derr == nil && dist > h.arrivalRadiusM {
				result.Advisory = fmt.Sprintf("reported position is %.0f m from the stop", dist)
			}
		}
	}

	cascade, err := aggregate.ArriveAtStop(cmd.stopID, time.Now())
	if err != nil {
		return nil, err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return nil, err
	}

	uow.AfterCommit(func() {
		h.notifier.Notify(ctx, ports.EventRouteUpdated, aggregate.ID(), map[string]any{
			"stopId":     cascade.StopID.String(),
			"stopStatus": cascade.StopStatus.String(),
		})
	})
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}
