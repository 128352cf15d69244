package ports

import (
	"context"
	"time"

	"orderflow/internal/core/domain/model/kernel"
)

// Geocoder resolves a postal address to coordinates. Implementations return
// a not-found error when the address cannot be resolved.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (kernel.GeoPoint, error)
}

// RouteLeg is one routed segment between consecutive waypoints.
type RouteLeg struct {
	Polyline  string
	DistanceM float64
	Duration  time.Duration
}

// Router computes detailed legs for an ordered waypoint sequence.
// A failure may be degraded to a straight-line approximation by the caller,
// but only on estimation paths.
type Router interface {
	Legs(ctx context.Context, waypoints []kernel.GeoPoint) ([]RouteLeg, error)
}

// SolverStop is one stop of a vehicle-routing request.
type SolverStop struct {
	StopID      kernel.UUID
	Location    kernel.GeoPoint
	DemandKg    float64
	ServiceTime time.Duration
	// PinFirst forces the stop to the head of the resulting sequence
	// (client-chosen "next stop" override).
	PinFirst bool
}

// SolverResult is the ordered execution plan plus aggregates.
type SolverResult struct {
	// Sequence holds stop ids in execution order.
	Sequence       []kernel.UUID
	TotalDistanceM float64
	TotalDuration  time.Duration
}

// Solver is the external vehicle-routing black box. Failures propagate;
// there is no silent fallback.
type Solver interface {
	Solve(ctx context.Context, start *kernel.GeoPoint, stops []SolverStop, vehicleCapacityKg float64) (*SolverResult, error)
}

// Compliance answers whether a driver's paperwork is approved. Consulted
// before a company-affiliated driver may accept a mission.
type Compliance interface {
	IsDriverApproved(ctx context.Context, driverID kernel.UUID) (bool, error)
}

// Event names fanned out through the Notifier.
const (
	EventMissionOffered   = "mission.offered"
	EventStatusChanged    = "order.status_changed"
	EventRouteUpdated     = "order.route_updated"
	EventStructureChanged = "order.structure_changed"
)

// Notifier is the fire-and-forget notification fan-out. Implementations
// must never fail the business operation; delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event string, orderID kernel.UUID, payload map[string]any)
}
