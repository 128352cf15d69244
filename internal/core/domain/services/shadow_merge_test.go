package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/pkg/errs"
)

// submittedOrder builds an order with one step, one stop and one pickup
// action, moved past Draft so edits go through shadows.
func submittedOrder(t *testing.T) (*order.Order, *order.Step, *order.Stop, *order.Action, *order.TransitItem) {
	t.Helper()

	o, err := order.NewOrder(kernel.NewUUID(), kernel.NewUUID(),
		order.DispatchGlobal, nil, nil, order.PriorityNormal)
	require.NoError(t, err)

	loc, err := kernel.NewGeoPoint(48.85, 2.35)
	require.NoError(t, err)

	step := &order.Step{ID: kernel.NewUUID(), Label: "run"}
	stop := &order.Stop{ID: kernel.NewUUID(), StepID: step.ID, Address: "quai 7", Location: loc}
	item := &order.TransitItem{ID: kernel.NewUUID(), Label: "crate", WeightKg: 5}
	itemID := item.ID
	action := &order.Action{ID: kernel.NewUUID(), StopID: stop.ID, ItemID: &itemID,
		Kind: order.ActionPickup, Quantity: 2}

	g := o.Graph()
	g.Steps = append(g.Steps, step)
	g.Stops = append(g.Stops, stop)
	g.Items = append(g.Items, item)
	g.Actions = append(g.Actions, action)

	require.NoError(t, o.Submit([]kernel.UUID{stop.ID}, time.Now()))
	return o, step, stop, action, item
}

func TestShadowMergeDraftEditsAreDirect(t *testing.T) {
	sm := services.NewShadowMerge()
	o, err := order.NewOrder(kernel.NewUUID(), kernel.NewUUID(),
		order.DispatchGlobal, nil, nil, order.PriorityNormal)
	require.NoError(t, err)

	step := &order.Step{ID: kernel.NewUUID(), Label: "before"}
	require.NoError(t, sm.UpsertStep(o, step))
	require.NoError(t, sm.UpsertStep(o, &order.Step{ID: step.ID, Label: "after"}))

	g := o.Graph()
	require.Len(t, g.Steps, 1)
	assert.Equal(t, "after", g.Steps[0].Label)
	assert.False(t, g.Steps[0].IsShadow())
	assert.False(t, o.HasPendingChanges())

	require.NoError(t, sm.DeleteStep(o, step.ID))
	assert.Empty(t, g.Steps)
}

func TestShadowMergeCopyOnWrite(t *testing.T) {
	sm := services.NewShadowMerge()

	t.Run("editing a canonical row creates one shadow", func(t *testing.T) {
		o, _, stop, _, _ := submittedOrder(t)

		edit := *stop
		edit.Address = "quai 9"
		require.NoError(t, sm.UpsertStop(o, &edit))
		require.NoError(t, sm.UpsertStop(o, &order.Stop{ID: stop.ID, StepID: stop.StepID,
			Address: "quai 11", Location: stop.Location}))

		g := o.Graph()
		var shadows []*order.Stop
		for _, s := range g.Stops {
			if s.IsShadow() {
				shadows = append(shadows, s)
			}
		}
		require.Len(t, shadows, 1, "repeated edits collapse onto one shadow")
		assert.Equal(t, "quai 11", shadows[0].Address)
		require.NotNil(t, shadows[0].OriginalID)
		assert.True(t, shadows[0].OriginalID.IsEqual(stop.ID))
		assert.Equal(t, "quai 7", stop.Address, "canonical row untouched")
		assert.True(t, o.HasPendingChanges())
	})

	t.Run("driver view ignores pending edits", func(t *testing.T) {
		o, _, stop, action, _ := submittedOrder(t)

		edit := *stop
		edit.Address = "rerouted"
		require.NoError(t, sm.UpsertStop(o, &edit))
		require.NoError(t, sm.DeleteAction(o, action.ID))

		driver := sm.BuildView(o.Graph(), services.ViewDriver)
		require.Len(t, driver.Stops, 1)
		assert.Equal(t, "quai 7", driver.Stops[0].Address)
		require.Len(t, driver.Actions, 1, "delete-flagged rows stay visible until merge")

		client := sm.BuildView(o.Graph(), services.ViewClient)
		require.Len(t, client.Stops, 1)
		assert.Equal(t, "rerouted", client.Stops[0].Address)
		assert.Empty(t, client.Actions, "client sees the deletion immediately")
	})

	t.Run("view rows are copies", func(t *testing.T) {
		o, _, stop, _, _ := submittedOrder(t)
		driver := sm.BuildView(o.Graph(), services.ViewDriver)
		driver.Stops[0].Address = "scribbled over"
		assert.Equal(t, "quai 7", stop.Address)
	})
}

func TestShadowMergeMerge(t *testing.T) {
	sm := services.NewShadowMerge()

	t.Run("shadows land on canonical rows", func(t *testing.T) {
		o, _, stop, _, _ := submittedOrder(t)

		edit := *stop
		edit.Address = "quai 9"
		require.NoError(t, sm.UpsertStop(o, &edit))
		require.NoError(t, sm.Merge(o))

		g := o.Graph()
		require.Len(t, g.Stops, 1)
		assert.Equal(t, "quai 9", g.Stops[0].Address)
		assert.True(t, g.Stops[0].ID.IsEqual(stop.ID), "canonical id survives the merge")
		assert.False(t, g.Stops[0].IsShadow())
		assert.False(t, o.HasPendingChanges())
	})

	t.Run("new subtree is revealed and relinked", func(t *testing.T) {
		o, step, _, _, item := submittedOrder(t)

		newStop := &order.Stop{ID: kernel.NewUUID(), StepID: step.ID, Address: "extra drop"}
		require.NoError(t, sm.UpsertStop(o, newStop))
		itemID := item.ID
		newAction := &order.Action{ID: kernel.NewUUID(), StopID: newStop.ID, ItemID: &itemID,
			Kind: order.ActionDelivery, Quantity: 2}
		require.NoError(t, sm.UpsertAction(o, newAction))

		require.NoError(t, sm.Merge(o))

		g := o.Graph()
		require.Len(t, g.Stops, 2)
		merged := g.FindStop(newStop.ID)
		require.NotNil(t, merged)
		assert.False(t, merged.IsShadow())
		mergedAction := g.FindAction(newAction.ID)
		require.NotNil(t, mergedAction)
		assert.True(t, mergedAction.StopID.IsEqual(newStop.ID))
	})

	t.Run("delete flags cascade on merge", func(t *testing.T) {
		o, step, stop, _, item := submittedOrder(t)

		require.NoError(t, sm.DeleteStep(o, step.ID))
		require.NoError(t, sm.Merge(o))

		g := o.Graph()
		assert.Nil(t, g.FindStep(step.ID))
		assert.Nil(t, g.FindStop(stop.ID))
		assert.Empty(t, g.Actions)
		assert.Nil(t, g.FindItem(item.ID), "unreferenced items are dropped")
	})

	t.Run("item deletion removes every referencing action", func(t *testing.T) {
		o, _, stop, first, item := submittedOrder(t)

		g := o.Graph()
		itemID := item.ID
		second := &order.Action{ID: kernel.NewUUID(), StopID: stop.ID, ItemID: &itemID,
			Kind: order.ActionDelivery, Quantity: 2}
		unrelated := &order.Action{ID: kernel.NewUUID(), StopID: stop.ID,
			Kind: order.ActionService, Quantity: 1}
		// Adjacent referencing rows followed by an unrelated one.
		g.Actions = append(g.Actions, second, unrelated)

		require.NoError(t, sm.DeleteItem(o, item.ID))
		require.NoError(t, sm.Merge(o))

		assert.Nil(t, g.FindItem(item.ID))
		assert.Nil(t, g.FindAction(first.ID))
		assert.Nil(t, g.FindAction(second.ID))
		require.NotNil(t, g.FindAction(unrelated.ID))
		for _, a := range g.Actions {
			if a.ItemID != nil {
				assert.False(t, a.ItemID.IsEqual(item.ID), "no surviving action may reference the deleted item")
			}
		}
	})

	t.Run("execution state survives a merge", func(t *testing.T) {
		o, _, stop, action, _ := submittedOrder(t)
		driverID := kernel.NewUUID()
		now := time.Now()
		require.NoError(t, o.MakeOffer(driverID, now, time.Minute))
		loc, err := kernel.NewGeoPoint(48.84, 2.34)
		require.NoError(t, err)
		require.NoError(t, o.Accept(driverID, loc, now))
		_, err = o.ArriveAtStop(stop.ID, now)
		require.NoError(t, err)

		edit := *stop
		edit.Address = "renamed mid-flight"
		require.NoError(t, sm.UpsertStop(o, &edit))
		require.NoError(t, sm.Merge(o))

		merged := o.Graph().FindStop(stop.ID)
		require.NotNil(t, merged)
		assert.Equal(t, "renamed mid-flight", merged.Address)
		assert.Equal(t, order.StopArrived, merged.Status, "status is execution state, not editable")
		assert.NotNil(t, merged.ArrivedAt)
		_ = action
	})
}

func TestShadowMergeRevert(t *testing.T) {
	sm := services.NewShadowMerge()

	o, step, stop, action, item := submittedOrder(t)

	edit := *stop
	edit.Address = "abandoned edit"
	require.NoError(t, sm.UpsertStop(o, &edit))
	require.NoError(t, sm.DeleteAction(o, action.ID))
	require.NoError(t, sm.UpsertStop(o, &order.Stop{ID: kernel.NewUUID(), StepID: step.ID,
		Address: "abandoned add"}))

	require.NoError(t, sm.Revert(o))

	g := o.Graph()
	require.Len(t, g.Steps, 1)
	require.Len(t, g.Stops, 1)
	require.Len(t, g.Actions, 1)
	require.Len(t, g.Items, 1)
	assert.Equal(t, "quai 7", g.Stops[0].Address)
	assert.False(t, g.Actions[0].DeleteRequired)
	assert.False(t, o.HasPendingChanges())
	_ = item
}

func TestShadowMergeUnknownParents(t *testing.T) {
	sm := services.NewShadowMerge()
	o, _, _, _, _ := submittedOrder(t)

	err := sm.UpsertStop(o, &order.Stop{ID: kernel.NewUUID(), StepID: kernel.NewUUID()})
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)

	err = sm.UpsertAction(o, &order.Action{ID: kernel.NewUUID(), StopID: kernel.NewUUID()})
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)
}
