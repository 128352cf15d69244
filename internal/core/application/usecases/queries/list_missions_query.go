package queries

import (
	"errors"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/guard"
)

var (
	ErrListMissionsQueryIsNotConstructed = errors.New(
		"ListMissionsQuery must be created via NewListMissionsQuery constructor",
	)
	ErrMissionFilterIsInvalid = errors.New("mission filter is invalid")
)

// MissionFilter selects a slice of the order lifecycle.
type MissionFilter string

const (
	// FilterPending lists submitted orders still waiting for a driver.
	FilterPending MissionFilter = "pending"
	// FilterActive lists accepted orders in execution.
	FilterActive MissionFilter = "active"
	// FilterHistory lists terminal orders: delivered, failed, cancelled
	// or exhausted by dispatch.
	FilterHistory MissionFilter = "history"
)

// ListMissionsQuery lists missions by lifecycle slice, optionally narrowed
// to one driver or one client.
type ListMissionsQuery struct {
	filter   MissionFilter
	driverID *kernel.UUID
	clientID *kernel.UUID

	guard guard.ConstructorGuard
}

// NewListMissionsQuery creates a mission listing. driverID and clientID
// are optional narrowing filters; pass nil to skip them.
func NewListMissionsQuery(filter MissionFilter, driverID, clientID *kernel.UUID) (ListMissionsQuery, error) {
	switch filter {
	case FilterPending, FilterActive, FilterHistory:
	default:
		return ListMissionsQuery{}, ErrMissionFilterIsInvalid
	}
	if driverID != nil {
		if err := driverID.Validate(); err != nil {
			return ListMissionsQuery{}, err
		}
	}
	if clientID != nil {
		if err := clientID.Validate(); err != nil {
			return ListMissionsQuery{}, err
		}
	}
	return ListMissionsQuery{
		filter:   filter,
		driverID: driverID,
		clientID: clientID,
		guard:    guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the query was created through the constructor.
func (q ListMissionsQuery) Validate() error {
	return q.guard.Validate(ErrListMissionsQueryIsNotConstructed)
}

// statuses expands the filter into the matching order statuses.
func (q ListMissionsQuery) statuses() []order.Status {
	switch q.filter {
	case FilterPending:
		return []order.Status{order.StatusPending}
	case FilterActive:
		return []order.Status{order.StatusAccepted}
	default:
		return []order.Status{
			order.StatusDelivered,
			order.StatusFailed,
			order.StatusCancelled,
			order.StatusNoDriverAvailable,
		}
	}
}

// ListMissionsQueryResponse is one row of the mission list.
type ListMissionsQueryResponse struct {
	ID              kernel.UUID
	ClientID        kernel.UUID
	DriverID        *kernel.UUID
	Status          order.Status
	Priority        order.Priority
	DistanceMeters  float64
	DurationSeconds float64
	Price           float64
	UpdatedAt       time.Time
}
