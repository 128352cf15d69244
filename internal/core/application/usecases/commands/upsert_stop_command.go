package commands

import (
	"context"
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

var (
	ErrUpsertStopCommandIsNotConstructed = errors.New(
		"UpsertStopCommand must be created via NewUpsertStopCommand constructor",
	)
	ErrAddressIsRequired = errors.New("address is required")
)

// UpsertStopCommand adds or edits a physical stop. The location may be
// given explicitly; when absent the handler geocodes the address.
type UpsertStopCommand struct { //nolint:recvcheck //using for validation
	orderID  kernel.UUID
	stopID   kernel.UUID
	stepID   kernel.UUID
	address  string
	location *kernel.GeoPoint
	sequence int

	guard guard.ConstructorGuard
}

// NewUpsertStopCommand creates a stop edit. An unknown stopID is a create;
// location is optional (nil triggers geocoding).
func NewUpsertStopCommand(
	orderID, stopID, stepID kernel.UUID,
	address string,
	location *kernel.GeoPoint,
	sequence int,
) (UpsertStopCommand, error) {
	cmd := UpsertStopCommand{
		location: location,
		sequence: sequence,
		guard:    guard.NewConstructorGuard(),
	}

	if err := errors.Join(orderID.Validate(), stopID.Validate(), stepID.Validate()); err != nil {
		return UpsertStopCommand{}, err
	}
	if address == "" {
		return UpsertStopCommand{}, ErrAddressIsRequired
	}
	cmd.orderID = orderID
	cmd.stopID = stopID
	cmd.stepID = stepID
	cmd.address = address
	return cmd, nil
}

// Validate ensures the command was created through the constructor.
func (c UpsertStopCommand) Validate() error {
	return c.guard.Validate(ErrUpsertStopCommandIsNotConstructed)
}

// UpsertStopCommandHandler applies stop edits, resolving addresses to
// coordinates through the geocoder when the client did not supply them.
type UpsertStopCommandHandler struct {
	uowFactory  UnitOfWorkFactory
	shadowMerge services.ShadowMerge
	geocoder    ports.Geocoder
	notifier    ports.Notifier
}

// NewUpsertStopCommandHandler creates a handler for stop edits.
func NewUpsertStopCommandHandler(
	uowFactory UnitOfWorkFactory,
	sm services.ShadowMerge,
	geocoder ports.Geocoder,
	notifier ports.Notifier,
) UpsertStopCommandHandler {
	return UpsertStopCommandHandler{
		uowFactory:  uowFactory,
		shadowMerge: sm,
		geocoder:    geocoder,
		notifier:    notifier,
	}
}

// Handle resolves the stop location, applies the edit under a row lock and
// announces the structure change after commit.
func (h UpsertStopCommandHandler) Handle(ctx context.Context, cmd UpsertStopCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	location := cmd.location
	if location == nil {
		resolved, err := h.geocoder.Geocode(ctx, cmd.address)
		if err != nil {
			return errs.NewExternalServiceError("geocoder", err)
		}
		location = &resolved
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

	row := &order.Stop{
		ID:       cmd.stopID,
		StepID:   cmd.stepID,
		Address:  cmd.address,
		Location: *location,
		Sequence: cmd.sequence,
	}
	if err = h.shadowMerge.UpsertStop(aggregate, row); err != nil {
		return err
	}

	if err = uow.OrderRepository().Update(ctx, aggregate); err != nil {
		return err
	}

	uow.AfterCommit(func() {
		h.notifier.Notify(ctx, ports.EventStructureChanged, aggregate.ID(), map[string]any{
			"node": "stop", "id": cmd.stopID.String(),
		})
	})
	return uow.Commit(ctx)
}
