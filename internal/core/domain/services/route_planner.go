package services

import (
	"context"
	"fmt"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
)

// PlannerConfig carries the tuning of the route planning service.
type PlannerConfig struct {
	// VehicleCapacityKg is passed through to the solver as the vehicle
	// constraint.
	VehicleCapacityKg float64
	// BaseFare, PricePerKm and PricePerMinute feed the price quote
	// computed from routed totals.
	BaseFare       float64
	PricePerKm     float64
	PricePerMinute float64
	// EstimateSpeedMps converts straight-line distance into a duration
	// on the estimation fallback path.
	EstimateSpeedMps float64
}

// RoutePlanner orchestrates the external solver and router to keep an
// order's stop sequence, route geometry, totals and price consistent with
// its current structure and execution progress.
//
// Visited stops are never re-planned: optimization operates on the
// remaining set only, and completed-step traces stay frozen.
type RoutePlanner struct {
	solver ports.Solver
	router ports.Router
	cfg    PlannerConfig
}

// NewRoutePlanner creates a planner over the given solver and router.
func NewRoutePlanner(solver ports.Solver, router ports.Router, cfg PlannerConfig) RoutePlanner {
	return RoutePlanner{solver: solver, router: router, cfg: cfg}
}

// Optimize asks the solver to re-sequence the order's remaining stops and
// applies the result: stop sequence numbers and the remaining partition are
// rewritten in solver order. A client-chosen next stop is pinned to the
// head of the plan. Solver failures propagate; the previous plan stays
// untouched.
func (p RoutePlanner) Optimize(ctx context.Context, o *order.Order) error {
	return p.OptimizeFrom(ctx, o, o.MissionStart())
}

// OptimizeFrom is Optimize with an explicit start waypoint. Mid-mission
// re-plans pass the driver's live position here so the solver sequences
// the remaining stops from where the vehicle actually is, not from where
// the mission began.
func (p RoutePlanner) OptimizeFrom(ctx context.Context, o *order.Order, start *kernel.GeoPoint) error {
	re := o.RouteExecution()
	if len(re.Remaining) == 0 {
		return nil
	}

	stops, err := p.solverStops(o)
	if err != nil {
		return err
	}

	res, err := p.solver.Solve(ctx, start, stops, p.cfg.VehicleCapacityKg)
	if err != nil {
		return errs.NewExternalServiceError("solver", err)
	}
	if len(res.Sequence) != len(stops) {
		return errs.NewExternalServiceError("solver",
			fmt.Errorf("solver returned %d stops for a %d-stop problem", len(res.Sequence), len(stops)))
	}
	for _, ss := range stops {
		if ss.PinFirst && !res.Sequence[0].IsEqual(ss.StopID) {
			return errs.NewExternalServiceError("solver",
				fmt.Errorf("solver moved pinned stop %s off the head of the plan", ss.StopID))
		}
	}

	g := o.Graph()
	base := len(re.Visited)
	for i, stopID := range res.Sequence {
		stop := g.FindStop(stopID)
		if stop == nil {
			return errs.NewExternalServiceError("solver",
				fmt.Errorf("solver returned unknown stop %s", stopID))
		}
		stop.Sequence = base + i
	}
	re.Remaining = append([]kernel.UUID(nil), res.Sequence...)
	return nil
}

// Finalize computes the detailed route for the remaining plan: routed legs
// from the router, total distance and duration, and the price quote. The
// start waypoint is the driver's mission start when set, otherwise the
// first remaining stop.
func (p RoutePlanner) Finalize(ctx context.Context, o *order.Order) error {
	return p.FinalizeFrom(ctx, o, o.MissionStart())
}

// FinalizeFrom is Finalize with an explicit start waypoint, for routing a
// mid-mission re-plan from the driver's live position.
func (p RoutePlanner) FinalizeFrom(ctx context.Context, o *order.Order, start *kernel.GeoPoint) error {
	legs, distanceM, durationS, err := p.remainingLegs(ctx, o, start, false)
	if err != nil {
		return err
	}
	o.SetRouteLegs(legs)
	o.SetTotals(distanceM, durationS, p.price(distanceM, durationS))
	return nil
}

// Estimate behaves like Finalize but degrades to straight-line legs when
// the router is unavailable. Estimation is the only path allowed to
// degrade; a finalized route never carries synthetic geometry.
func (p RoutePlanner) Estimate(ctx context.Context, o *order.Order) error {
	legs, distanceM, durationS, err := p.remainingLegs(ctx, o, o.MissionStart(), true)
	if err != nil {
		return err
	}
	o.SetRouteLegs(legs)
	o.SetTotals(distanceM, durationS, p.price(distanceM, durationS))
	return nil
}

// LiveRoute reconstructs the full picture of a mission in flight: the
// frozen actual-path segments of completed steps followed by the planned
// legs still ahead.
func (p RoutePlanner) LiveRoute(o *order.Order) ([]order.FrozenSegment, []order.RouteLeg) {
	return o.FrozenSegments(), o.RouteLegs()
}

// solverStops builds the vehicle-routing request from the remaining
// canonical stops: net demand and total service time aggregated over each
// stop's actions, the override stop pinned first.
func (p RoutePlanner) solverStops(o *order.Order) ([]ports.SolverStop, error) {
	g := o.Graph()
	re := o.RouteExecution()

	weights := make(map[kernel.UUID]float64, len(g.Items))
	for _, item := range g.Items {
		if item.IsShadow() {
			continue
		}
		weights[item.ID] = item.WeightKg
	}

	stops := make([]ports.SolverStop, 0, len(re.Remaining))
	for _, stopID := range re.Remaining {
		stop := g.FindStop(stopID)
		if stop == nil {
			return nil, errs.NewObjectNotFoundError("stop", stopID)
		}
		ss := ports.SolverStop{
			StopID:   stop.ID,
			Location: stop.Location,
			PinFirst: re.NextStopOverride != nil && re.NextStopOverride.IsEqual(stop.ID),
		}
		for _, a := range g.ActionsOfStop(stop.ID) {
			if a.IsShadow() || a.DeleteRequired {
				continue
			}
			ss.ServiceTime += a.ServiceTime
			if a.ItemID == nil {
				continue
			}
			load := float64(a.Quantity) * weights[*a.ItemID]
			switch a.Kind {
			case order.ActionPickup:
				ss.DemandKg += load
			case order.ActionDelivery:
				ss.DemandKg -= load
			}
		}
		stops = append(stops, ss)
	}
	return stops, nil
}

// remainingLegs routes the waypoint chain start → remaining stops and maps
// provider legs onto stop-addressed route legs.
func (p RoutePlanner) remainingLegs(ctx context.Context, o *order.Order, start *kernel.GeoPoint, allowEstimate bool) ([]order.RouteLeg, float64, float64, error) {
	g := o.Graph()
	re := o.RouteExecution()
	if len(re.Remaining) == 0 {
		return nil, 0, 0, nil
	}

	waypoints := make([]kernel.GeoPoint, 0, len(re.Remaining)+1)
	fromIDs := make([]*kernel.UUID, 0, len(re.Remaining)+1)
	if start != nil {
		waypoints = append(waypoints, *start)
		fromIDs = append(fromIDs, nil)
	}
	for _, stopID := range re.Remaining {
		stop := g.FindStop(stopID)
		if stop == nil {
			return nil, 0, 0, errs.NewObjectNotFoundError("stop", stopID)
		}
		waypoints = append(waypoints, stop.Location)
		id := stop.ID
		fromIDs = append(fromIDs, &id)
	}
	if len(waypoints) < 2 {
		return nil, 0, 0, nil
	}

	routed, err := p.router.Legs(ctx, waypoints)
	estimated := false
	if err != nil {
		if !allowEstimate {
			return nil, 0, 0, errs.NewExternalServiceError("router", err)
		}
		routed = p.straightLineLegs(waypoints)
		estimated = true
	}
	if len(routed) != len(waypoints)-1 {
		return nil, 0, 0, errs.NewExternalServiceError("router",
			fmt.Errorf("router returned %d legs for %d waypoints", len(routed), len(waypoints)))
	}

	legs := make([]order.RouteLeg, 0, len(routed))
	var distanceM, durationS float64
	for i, leg := range routed {
		legs = append(legs, order.RouteLeg{
			FromStopID: fromIDs[i],
			ToStopID:   *fromIDs[i+1],
			Polyline:   leg.Polyline,
			DistanceM:  leg.DistanceM,
			Duration:   leg.Duration.Seconds(),
			Estimated:  estimated,
		})
		distanceM += leg.DistanceM
		durationS += leg.Duration.Seconds()
	}
	return legs, distanceM, durationS, nil
}

// straightLineLegs synthesizes great-circle legs at the configured
// estimation speed.
func (p RoutePlanner) straightLineLegs(waypoints []kernel.GeoPoint) []ports.RouteLeg {
	legs := make([]ports.RouteLeg, 0, len(waypoints)-1)
	for i := 0; i < len(waypoints)-1; i++ {
		dist, err := waypoints[i].DistanceTo(waypoints[i+1])
		if err != nil {
			dist = 0
		}
		legs = append(legs, ports.RouteLeg{
			Polyline:  fmt.Sprintf("%s;%s", waypoints[i], waypoints[i+1]),
			DistanceM: dist,
			Duration:  durationAt(dist, p.cfg.EstimateSpeedMps),
		})
	}
	return legs
}

// durationAt converts a distance into a duration at the given speed.
func durationAt(distM, speedMps float64) time.Duration {
	if speedMps <= 0 {
		return 0
	}
	return time.Duration(distM / speedMps * float64(time.Second))
}

// price converts routed totals into a quote.
func (p RoutePlanner) price(distanceM, durationS float64) float64 {
	return p.cfg.BaseFare + p.cfg.PricePerKm*distanceM/1000 + p.cfg.PricePerMinute*durationS/60
}
