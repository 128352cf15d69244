package queries

import (
	"errors"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/pkg/guard"
)

var ErrGetOrderQueryIsNotConstructed = errors.New(
	"GetOrderQuery must be created via NewGetOrderQuery constructor",
)

// GetOrderQuery fetches one order rendered for a given audience. The
// client view folds pending changes into the structure; the driver view
// shows the canonical graph the driver is executing, delete-flagged rows
// included.
type GetOrderQuery struct {
	orderID      kernel.UUID
	view         services.View
	includeRoute bool

	guard guard.ConstructorGuard
}

// NewGetOrderQuery creates a query for one order in the given view.
// includeRoute attaches the live route (frozen segments plus remaining
// legs) to the response.
func NewGetOrderQuery(orderID kernel.UUID, view services.View, includeRoute bool) (GetOrderQuery, error) {
	if err := orderID.Validate(); err != nil {
		return GetOrderQuery{}, err
	}
	return GetOrderQuery{
		orderID:      orderID,
		view:         view,
		includeRoute: includeRoute,
		guard:        guard.NewConstructorGuard(),
	}, nil
}

// Validate ensures the query was created through the constructor.
func (q GetOrderQuery) Validate() error {
	return q.guard.Validate(ErrGetOrderQueryIsNotConstructed)
}

// GetOrderQueryResponse carries the rendered order. Graph holds the
// view-resolved structure; Route is nil unless the query asked for it.
type GetOrderQueryResponse struct {
	ID               kernel.UUID
	ClientID         kernel.UUID
	Status           order.Status
	Priority         order.Priority
	DispatchMode     order.DispatchMode
	DriverID         *kernel.UUID
	OfferedDriverID  *kernel.UUID
	HasPendingEdits  bool
	DispatchAttempts int

	Graph   *order.Graph
	Route   *RouteView
	History []order.HistoryEntry

	DistanceMeters  float64
	DurationSeconds float64
	Price           float64
}

// RouteView is the execution-aware route: the travelled part as frozen
// segments and the rest as planned legs.
type RouteView struct {
	FrozenSegments []order.FrozenSegment
	Legs           []order.RouteLeg
	Remaining      []kernel.UUID
	Visited        []kernel.UUID
}
