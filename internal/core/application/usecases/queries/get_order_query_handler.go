package queries

import (
	"context"

	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
)

// GetOrderQueryHandler renders order aggregates through the shadow-merge
// view builder. Reads go through the repository rather than raw SQL
// because the view resolution is domain logic, not a projection.
type GetOrderQueryHandler struct {
	orders      ports.OrderRepository
	shadowMerge services.ShadowMerge
	planner     services.RoutePlanner
}

// NewGetOrderQueryHandler creates a handler for order fetches.
func NewGetOrderQueryHandler(
	orders ports.OrderRepository,
	shadowMerge services.ShadowMerge,
	planner services.RoutePlanner,
) GetOrderQueryHandler {
	return GetOrderQueryHandler{orders: orders, shadowMerge: shadowMerge, planner: planner}
}

// Handle loads the order and resolves the requested view.
func (h GetOrderQueryHandler) Handle(ctx context.Context, query GetOrderQuery) (*GetOrderQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	aggregate, err := h.orders.Get(ctx, query.orderID)
	if err != nil {
		return nil, err
	}

	distanceM, durationS, price := aggregate.Totals()
	resp := &GetOrderQueryResponse{
		ID:               aggregate.ID(),
		ClientID:         aggregate.ClientID(),
		Status:           aggregate.Status(),
		Priority:         aggregate.Priority(),
		DispatchMode:     aggregate.DispatchMode(),
		DriverID:         aggregate.DriverID(),
		OfferedDriverID:  aggregate.OfferedDriverID(),
		HasPendingEdits:  aggregate.HasPendingChanges(),
		DispatchAttempts: aggregate.DispatchAttempts(),
		Graph:            h.shadowMerge.BuildView(aggregate.Graph(), query.view),
		History:          aggregate.History(),
		DistanceMeters:   distanceM,
		DurationSeconds:  durationS,
		Price:            price,
	}

	if query.includeRoute {
		frozen, legs := h.planner.LiveRoute(aggregate)
		exec := aggregate.RouteExecution()
		resp.Route = &RouteView{
			FrozenSegments: frozen,
			Legs:           legs,
			Remaining:      exec.Remaining,
			Visited:        exec.Visited,
		}
	}

	return resp, nil
}
