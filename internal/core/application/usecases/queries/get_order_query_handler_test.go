package queries_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
)

type stubOrderRepo struct {
	orders map[string]*order.Order
}

func (r *stubOrderRepo) Add(_ context.Context, o *order.Order) error {
	r.orders[o.ID().String()] = o
	return nil
}

func (r *stubOrderRepo) Update(_ context.Context, o *order.Order) error {
	r.orders[o.ID().String()] = o
	return nil
}

func (r *stubOrderRepo) Get(_ context.Context, id kernel.UUID) (*order.Order, error) {
	o, ok := r.orders[id.String()]
	if !ok {
		return nil, errs.NewObjectNotFoundError("order", id.String())
	}
	return o, nil
}

func (r *stubOrderRepo) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	return r.Get(ctx, id)
}

func (r *stubOrderRepo) GetAllDispatchable(context.Context) ([]*order.Order, error) {
	return nil, nil
}

type fixedSolver struct{}

func (fixedSolver) Solve(_ context.Context, _ *kernel.GeoPoint, stops []ports.SolverStop, _ float64) (*ports.SolverResult, error) {
	seq := make([]kernel.UUID, 0, len(stops))
	for _, s := range stops {
		seq = append(seq, s.StopID)
	}
	return &ports.SolverResult{Sequence: seq}, nil
}

type fixedRouter struct{}

func (fixedRouter) Legs(_ context.Context, waypoints []kernel.GeoPoint) ([]ports.RouteLeg, error) {
	legs := make([]ports.RouteLeg, 0, len(waypoints)-1)
	for i := 1; i < len(waypoints); i++ {
		legs = append(legs, ports.RouteLeg{
			Polyline:  "stub",
			DistanceM: 1200,
			Duration:  2 * time.Minute,
		})
	}
	return legs, nil
}

func testQueryPlanner() services.RoutePlanner {
	return services.NewRoutePlanner(fixedSolver{}, fixedRouter{}, services.PlannerConfig{
		VehicleCapacityKg: 100,
		BaseFare:          3,
		PricePerKm:        1,
		PricePerMinute:    0.2,
		EstimateSpeedMps:  10,
	})
}

// submittedWithEdit builds a submitted two-stop order carrying one pending
// shadow edit that moves the delivery stop.
func submittedWithEdit(t *testing.T, sm services.ShadowMerge) *order.Order {
	t.Helper()
	o, err := order.NewOrder(kernel.NewUUID(), kernel.NewUUID(),
		order.DispatchGlobal, nil, nil, order.PriorityNormal)
	require.NoError(t, err)

	g := o.Graph()
	step := &order.Step{ID: kernel.NewUUID()}
	g.Steps = append(g.Steps, step)
	item := &order.TransitItem{ID: kernel.NewUUID(), Label: "crate", WeightKg: 2}
	g.Items = append(g.Items, item)
	itemID := item.ID

	for seq, c := range [][2]float64{{52.52, 13.40}, {52.53, 13.41}} {
		loc, gerr := kernel.NewGeoPoint(c[0], c[1])
		require.NoError(t, gerr)
		stop := &order.Stop{ID: kernel.NewUUID(), StepID: step.ID, Location: loc, Sequence: seq}
		g.Stops = append(g.Stops, stop)
		kind := order.ActionDelivery
		if seq == 0 {
			kind = order.ActionPickup
		}
		g.Actions = append(g.Actions, &order.Action{
			ID: kernel.NewUUID(), StopID: stop.ID, ItemID: &itemID, Kind: kind, Quantity: 1,
		})
	}
	require.NoError(t, o.Submit([]kernel.UUID{g.Stops[0].ID, g.Stops[1].ID}, time.Now()))
	require.NoError(t, testQueryPlanner().Finalize(context.Background(), o))

	moved, err := kernel.NewGeoPoint(52.54, 13.43)
	require.NoError(t, err)
	edit := *g.Stops[1]
	edit.Location = moved
	require.NoError(t, sm.UpsertStop(o, &edit))
	return o
}

func TestGetOrderQueryHandler(t *testing.T) {
	ctx := context.Background()
	sm := services.NewShadowMerge()

	newHandler := func(o *order.Order) queries.GetOrderQueryHandler {
		repo := &stubOrderRepo{orders: map[string]*order.Order{o.ID().String(): o}}
		return queries.NewGetOrderQueryHandler(repo, sm, testQueryPlanner())
	}

	t.Run("client view folds the pending edit in", func(t *testing.T) {
		o := submittedWithEdit(t, sm)
		h := newHandler(o)

		query, err := queries.NewGetOrderQuery(o.ID(), services.ViewClient, false)
		require.NoError(t, err)
		resp, err := h.Handle(ctx, query)
		require.NoError(t, err)

		assert.Equal(t, order.StatusPending, resp.Status)
		assert.True(t, resp.HasPendingEdits)
		assert.Nil(t, resp.Route)
		require.Len(t, resp.Graph.Stops, 2)
		assert.InDelta(t, 52.54, resp.Graph.Stops[1].Location.Lat(), 1e-9)
	})

	t.Run("driver view keeps the canonical structure", func(t *testing.T) {
		o := submittedWithEdit(t, sm)
		h := newHandler(o)

		query, err := queries.NewGetOrderQuery(o.ID(), services.ViewDriver, false)
		require.NoError(t, err)
		resp, err := h.Handle(ctx, query)
		require.NoError(t, err)

		require.Len(t, resp.Graph.Stops, 2)
		assert.InDelta(t, 52.53, resp.Graph.Stops[1].Location.Lat(), 1e-9)
	})

	t.Run("route is attached on request", func(t *testing.T) {
		o := submittedWithEdit(t, sm)
		h := newHandler(o)

		query, err := queries.NewGetOrderQuery(o.ID(), services.ViewDriver, true)
		require.NoError(t, err)
		resp, err := h.Handle(ctx, query)
		require.NoError(t, err)

		require.NotNil(t, resp.Route)
		assert.Len(t, resp.Route.Remaining, 2)
		assert.Empty(t, resp.Route.Visited)
		assert.Len(t, resp.Route.Legs, 1)
	})

	t.Run("unknown order is not found", func(t *testing.T) {
		o := submittedWithEdit(t, sm)
		h := newHandler(o)

		query, err := queries.NewGetOrderQuery(kernel.NewUUID(), services.ViewClient, false)
		require.NoError(t, err)
		_, err = h.Handle(ctx, query)
		assert.ErrorIs(t, err, errs.ErrObjectNotFound)
	})
}
