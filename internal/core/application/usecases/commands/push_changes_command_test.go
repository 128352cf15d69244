package commands_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/domain/model/driver"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
)

// submittedWithPendingStop returns a pending order plus an uncommitted new
// delivery stop (with action) sitting in its shadow set.
func submittedWithPendingStop(t *testing.T) (*order.Order, kernel.UUID) {
	t.Helper()
	sm := services.NewShadowMerge()

	o := draftWithPlan(t)
	require.NoError(t, o.Submit([]kernel.UUID{o.Graph().Stops[0].ID, o.Graph().Stops[1].ID}, time.Now()))

	loc, err := kernel.NewGeoPoint(52.54, 13.42)
	require.NoError(t, err)
	newStop := &order.Stop{ID: kernel.NewUUID(), StepID: o.Graph().Steps[0].ID,
		Address: "extra", Location: loc, Sequence: 2}
	require.NoError(t, sm.UpsertStop(o, newStop))

	itemID := o.Graph().Items[0].ID
	// Rebalance: pickup 2 at the first stop so the extra delivery closes
	// the conservation law.
	first := o.Graph().Stops[0]
	for _, a := range o.Graph().ActionsOfStop(first.ID) {
		edit := *a
		edit.Quantity = 2
		require.NoError(t, sm.UpsertAction(o, &edit))
	}
	require.NoError(t, sm.UpsertAction(o, &order.Action{
		ID: kernel.NewUUID(), StopID: newStop.ID, ItemID: &itemID,
		Kind: order.ActionDelivery, Quantity: 1,
	}))

	return o, newStop.ID
}

func TestPushChangesCommandHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("merge lands and the route absorbs the new stop", func(t *testing.T) {
		o, newStopID := submittedWithPendingStop(t)
		uow := &fakeUnitOfWork{repo: newMemOrderRepo(o)}
		notifier := &recordingNotifier{}
		h := commands.NewPushChangesCommandHandler(&fakeUoWFactory{uow: uow},
			services.NewShadowMerge(), services.NewViability(), testPlanner(nil),
			newStubPresence(), notifier)

		cmd, err := commands.NewPushChangesCommand(o.ID())
		require.NoError(t, err)
		require.NoError(t, h.Handle(ctx, cmd))

		assert.False(t, o.HasPendingChanges())
		re := o.RouteExecution()
		assert.Len(t, re.Remaining, 3)
		found := false
		for _, id := range re.Remaining {
			if id.IsEqual(newStopID) {
				found = true
			}
		}
		assert.True(t, found, "merged stop joins the remaining route")
		assert.True(t, notifier.has(ports.EventStructureChanged))
		assert.True(t, notifier.has(ports.EventRouteUpdated))
	})

	t.Run("non-viable merged structure blocks the push", func(t *testing.T) {
		sm := services.NewShadowMerge()
		o := draftWithPlan(t)
		require.NoError(t, o.Submit([]kernel.UUID{o.Graph().Stops[0].ID, o.Graph().Stops[1].ID}, time.Now()))

		// Pending change flips the pickup into a delivery.
		pickup := o.Graph().Actions[0]
		edit := *pickup
		edit.Kind = order.ActionDelivery
		require.NoError(t, sm.UpsertAction(o, &edit))

		uow := &fakeUnitOfWork{repo: newMemOrderRepo(o)}
		h := commands.NewPushChangesCommandHandler(&fakeUoWFactory{uow: uow},
			sm, services.NewViability(), testPlanner(nil), newStubPresence(), &recordingNotifier{})

		cmd, _ := commands.NewPushChangesCommand(o.ID())
		err := h.Handle(ctx, cmd)
		assert.ErrorIs(t, err, errs.ErrValidation)
		assert.True(t, o.HasPendingChanges(), "failed push keeps the change set intact")
		assert.Equal(t, order.ActionPickup, o.Graph().Actions[0].Kind)
	})

	t.Run("removed stop leaves the remaining route", func(t *testing.T) {
		sm := services.NewShadowMerge()
		o := draftWithPlan(t)
		stops := o.Graph().Stops
		require.NoError(t, o.Submit([]kernel.UUID{stops[0].ID, stops[1].ID}, time.Now()))

		// Dropping the delivery stop and its action leaves a dangling
		// pickup, so drop the pickup action too.
		require.NoError(t, sm.DeleteStop(o, stops[1].ID))
		for _, a := range o.Graph().ActionsOfStop(stops[1].ID) {
			require.NoError(t, sm.DeleteAction(o, a.ID))
		}
		for _, a := range o.Graph().ActionsOfStop(stops[0].ID) {
			require.NoError(t, sm.DeleteAction(o, a.ID))
		}
		require.NoError(t, sm.DeleteItem(o, o.Graph().Items[0].ID))

		uow := &fakeUnitOfWork{repo: newMemOrderRepo(o)}
		h := commands.NewPushChangesCommandHandler(&fakeUoWFactory{uow: uow},
			sm, services.NewViability(), testPlanner(nil), newStubPresence(), &recordingNotifier{})

		cmd, _ := commands.NewPushChangesCommand(o.ID())
		require.NoError(t, h.Handle(ctx, cmd))

		re := o.RouteExecution()
		require.Len(t, re.Remaining, 1)
		assert.True(t, re.Remaining[0].IsEqual(stops[0].ID))
	})

	t.Run("re-plan of an accepted mission departs from the driver's live position", func(t *testing.T) {
		o, driverID, livePos := acceptedWithPendingStop(t)
		presence := newStubPresence()
		require.NoError(t, presence.Set(ctx, &driver.Presence{
			DriverID: driverID, Availability: driver.AvailabilityBusy, Location: livePos,
		}))

		solver := &departureRecordingSolver{}
		planner := services.NewRoutePlanner(solver, constRouter{}, services.PlannerConfig{
			VehicleCapacityKg: 100, EstimateSpeedMps: 10,
		})
		uow := &fakeUnitOfWork{repo: newMemOrderRepo(o)}
		h := commands.NewPushChangesCommandHandler(&fakeUoWFactory{uow: uow},
			services.NewShadowMerge(), services.NewViability(), planner, presence, &recordingNotifier{})

		cmd, err := commands.NewPushChangesCommand(o.ID())
		require.NoError(t, err)
		require.NoError(t, h.Handle(ctx, cmd))

		require.NotNil(t, solver.start)
		assert.Equal(t, livePos.Lat(), solver.start.Lat())
		assert.Equal(t, livePos.Lon(), solver.start.Lon())
		assert.NotEqual(t, o.MissionStart().Lat(), solver.start.Lat(),
			"in-flight re-plan must not restart from the acceptance snapshot")
	})

	t.Run("re-plan falls back to the mission start without a live session", func(t *testing.T) {
		o, _, _ := acceptedWithPendingStop(t)

		solver := &departureRecordingSolver{}
		planner := services.NewRoutePlanner(solver, constRouter{}, services.PlannerConfig{
			VehicleCapacityKg: 100, EstimateSpeedMps: 10,
		})
		uow := &fakeUnitOfWork{repo: newMemOrderRepo(o)}
		h := commands.NewPushChangesCommandHandler(&fakeUoWFactory{uow: uow},
			services.NewShadowMerge(), services.NewViability(), planner, newStubPresence(), &recordingNotifier{})

		cmd, err := commands.NewPushChangesCommand(o.ID())
		require.NoError(t, err)
		require.NoError(t, h.Handle(ctx, cmd))

		require.NotNil(t, solver.start)
		assert.Equal(t, o.MissionStart().Lat(), solver.start.Lat())
		assert.Equal(t, o.MissionStart().Lon(), solver.start.Lon())
	})
}

// acceptedWithPendingStop puts submittedWithPendingStop's order in flight:
// offered, accepted at a snapshot position, with the driver since moved to
// the returned live position.
func acceptedWithPendingStop(t *testing.T) (*order.Order, kernel.UUID, kernel.GeoPoint) {
	t.Helper()
	o, _ := submittedWithPendingStop(t)

	driverID := kernel.NewUUID()
	require.NoError(t, o.MakeOffer(driverID, time.Now(), time.Minute))
	snapshot, err := kernel.NewGeoPoint(52.50, 13.30)
	require.NoError(t, err)
	require.NoError(t, o.Accept(driverID, snapshot, time.Now()))

	livePos, err := kernel.NewGeoPoint(52.60, 13.50)
	require.NoError(t, err)
	return o, driverID, livePos
}

// departureRecordingSolver keeps the incoming stop order and remembers the
// start waypoint it was asked to plan from.
type departureRecordingSolver struct {
	start *kernel.GeoPoint
}

func (s *departureRecordingSolver) Solve(_ context.Context, start *kernel.GeoPoint, stops []ports.SolverStop, _ float64) (*ports.SolverResult, error) {
	s.start = start
	seq := make([]kernel.UUID, 0, len(stops))
	for _, st := range stops {
		seq = append(seq, st.StopID)
	}
	return &ports.SolverResult{Sequence: seq}, nil
}
