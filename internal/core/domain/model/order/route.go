package order

import (
	"fmt"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
)

// RouteExecution partitions the planned stop set into visited and remaining.
// Invariants: remaining ∪ visited = planned, remaining ∩ visited = ∅, and
// visited is append-only during execution.
type RouteExecution struct {
	Planned   []kernel.UUID
	Visited   []kernel.UUID
	Remaining []kernel.UUID
	// NextStopOverride pins a client-chosen stop first in the next
	// optimization result. Nil means the solver decides.
	NextStopOverride *kernel.UUID
}

// NewRouteExecution builds the partition with every planned stop remaining.
func NewRouteExecution(planned []kernel.UUID) RouteExecution {
	return RouteExecution{
		Planned:   append([]kernel.UUID(nil), planned...),
		Remaining: append([]kernel.UUID(nil), planned...),
	}
}

// MarkVisited moves the stop id from remaining to visited.
// Returns a conflict error if the stop is not in the remaining set.
func (r *RouteExecution) MarkVisited(stopID kernel.UUID) error {
	for i, id := range r.Remaining {
		if id.IsEqual(stopID) {
			r.Remaining = append(r.Remaining[:i], r.Remaining[i+1:]...)
			r.Visited = append(r.Visited, stopID)
			if r.NextStopOverride != nil && r.NextStopOverride.IsEqual(stopID) {
				r.NextStopOverride = nil
			}
			return nil
		}
	}
	return errs.NewConflictErrorWithCause("stop not in remaining route",
		fmt.Errorf("stop %s is not part of the remaining route", stopID))
}

// IsVisited reports whether the stop id is in the visited set.
func (r *RouteExecution) IsVisited(stopID kernel.UUID) bool {
	for _, id := range r.Visited {
		if id.IsEqual(stopID) {
			return true
		}
	}
	return false
}

// Validate checks the partition invariants.
func (r *RouteExecution) Validate() error {
	if len(r.Visited)+len(r.Remaining) != len(r.Planned) {
		return errs.NewValueIsInvalidErrorWithCause("routeExecution",
			fmt.Errorf("visited (%d) + remaining (%d) does not partition planned (%d)",
				len(r.Visited), len(r.Remaining), len(r.Planned)))
	}
	for _, v := range r.Visited {
		for _, rem := range r.Remaining {
			if v.IsEqual(rem) {
				return errs.NewValueIsInvalidErrorWithCause("routeExecution",
					fmt.Errorf("stop %s is both visited and remaining", v))
			}
		}
	}
	return nil
}

// RouteLeg is one segment of computed route geometry between consecutive
// waypoints.
type RouteLeg struct {
	FromStopID *kernel.UUID
	ToStopID   kernel.UUID
	// Polyline is the encoded geometry returned by the routing provider,
	// or a synthetic two-point line when estimated.
	Polyline  string
	DistanceM float64
	Duration  float64
	// Estimated marks legs produced by the straight-line fallback rather
	// than the routing provider.
	Estimated bool
}

// FrozenSegment is the immutable actual-path trace of a completed step.
type FrozenSegment struct {
	StepID kernel.UUID
	Trace  []kernel.GeoPoint
}
