package order_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

func point(t *testing.T, lat, lon float64) kernel.GeoPoint {
	t.Helper()
	p, err := kernel.NewGeoPoint(lat, lon)
	require.NoError(t, err)
	return p
}

// twoStopFixture builds a single-step order with a pickup stop and a
// delivery stop, one item flowing between them, submitted and accepted so
// field events are allowed.
type twoStopFixture struct {
	order      *order.Order
	driverID   kernel.UUID
	stepID     kernel.UUID
	pickupID   kernel.UUID
	deliveryID kernel.UUID
	pickActID  kernel.UUID
	dropActID  kernel.UUID
	now        time.Time
}

func newTwoStopFixture(t *testing.T) *twoStopFixture {
	t.Helper()

	o, err := order.NewOrder(kernel.NewUUID(), kernel.NewUUID(),
		order.DispatchGlobal, nil, nil, order.PriorityNormal)
	require.NoError(t, err)

	f := &twoStopFixture{
		order:      o,
		driverID:   kernel.NewUUID(),
		stepID:     kernel.NewUUID(),
		pickupID:   kernel.NewUUID(),
		deliveryID: kernel.NewUUID(),
		pickActID:  kernel.NewUUID(),
		dropActID:  kernel.NewUUID(),
		now:        time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}

	itemID := kernel.NewUUID()
	g := o.Graph()
	g.Steps = append(g.Steps, &order.Step{ID: f.stepID, Label: "parcel run"})
	g.Stops = append(g.Stops,
		&order.Stop{ID: f.pickupID, StepID: f.stepID, Address: "warehouse", Location: point(t, 52.52, 13.40), Sequence: 0},
		&order.Stop{ID: f.deliveryID, StepID: f.stepID, Address: "customer", Location: point(t, 52.53, 13.42), Sequence: 1},
	)
	g.Items = append(g.Items, &order.TransitItem{ID: itemID, Label: "parcel", WeightKg: 2})
	g.Actions = append(g.Actions,
		&order.Action{ID: f.pickActID, StopID: f.pickupID, ItemID: &itemID, Kind: order.ActionPickup, Quantity: 1},
		&order.Action{ID: f.dropActID, StopID: f.deliveryID, ItemID: &itemID, Kind: order.ActionDelivery, Quantity: 1},
	)

	require.NoError(t, o.Submit([]kernel.UUID{f.pickupID, f.deliveryID}, f.now))
	require.NoError(t, o.MakeOffer(f.driverID, f.now, 3*time.Minute))
	require.NoError(t, o.Accept(f.driverID, point(t, 52.51, 13.38), f.now))
	return f
}

func (f *twoStopFixture) completeStop(t *testing.T, stopID kernel.UUID, actionIDs ...kernel.UUID) *order.CascadeResult {
	t.Helper()
	_, err := f.order.ArriveAtStop(stopID, f.now)
	require.NoError(t, err)
	var res *order.CascadeResult
	for _, id := range actionIDs {
		res, err = f.order.CompleteAction(id, order.ProofSubmission{}, f.now)
		require.NoError(t, err)
	}
	return res
}

func TestOrderOfferLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("target mode requires a target id", func(t *testing.T) {
		_, err := order.NewOrder(kernel.NewUUID(), kernel.NewUUID(),
			order.DispatchTarget, nil, nil, order.PriorityNormal)
		assert.ErrorIs(t, err, errs.ErrValueIsRequired)
	})

	t.Run("internal mode requires a company", func(t *testing.T) {
		_, err := order.NewOrder(kernel.NewUUID(), kernel.NewUUID(),
			order.DispatchInternal, nil, nil, order.PriorityNormal)
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("offer expires by wall clock", func(t *testing.T) {
		f := newTwoStopFixtureDraftSubmitted(t)
		require.NoError(t, f.order.MakeOffer(f.driverID, now, time.Minute))

		assert.True(t, f.order.HasLiveOffer(now.Add(30*time.Second)))
		assert.False(t, f.order.HasLiveOffer(now.Add(2*time.Minute)))
		assert.Equal(t, 1, f.order.DispatchAttempts())
	})

	t.Run("accept requires the offered driver", func(t *testing.T) {
		f := newTwoStopFixtureDraftSubmitted(t)
		require.NoError(t, f.order.MakeOffer(f.driverID, now, time.Minute))

		err := f.order.Accept(kernel.NewUUID(), point(t, 52.5, 13.4), now)
		assert.ErrorIs(t, err, errs.ErrConflict)

		require.NoError(t, f.order.Accept(f.driverID, point(t, 52.5, 13.4), now))
		assert.Equal(t, order.StatusAccepted, f.order.Status())
		assert.Nil(t, f.order.OfferedDriverID())
		require.NotNil(t, f.order.MissionStart())
	})

	t.Run("no driver clears the offer", func(t *testing.T) {
		f := newTwoStopFixtureDraftSubmitted(t)
		require.NoError(t, f.order.MakeOffer(f.driverID, now, time.Minute))
		require.NoError(t, f.order.MarkNoDriver(now))

		assert.Equal(t, order.StatusNoDriverAvailable, f.order.Status())
		assert.Nil(t, f.order.OfferedDriverID())
		assert.True(t, f.order.Status().IsTerminal())
	})
}

// newTwoStopFixtureDraftSubmitted stops the fixture at Pending, before any
// offer.
func newTwoStopFixtureDraftSubmitted(t *testing.T) *twoStopFixture {
	t.Helper()
	f := newTwoStopFixture(t)
	// Rebuild stopped at Pending: easier than unwinding Accept.
	o, err := order.NewOrder(kernel.NewUUID(), kernel.NewUUID(),
		order.DispatchGlobal, nil, nil, order.PriorityNormal)
	require.NoError(t, err)
	*f = twoStopFixture{order: o, driverID: kernel.NewUUID(),
		pickupID: kernel.NewUUID(), deliveryID: kernel.NewUUID(), now: f.now}
	require.NoError(t, o.Submit([]kernel.UUID{f.pickupID, f.deliveryID}, f.now))
	return f
}

func TestOrderCascade(t *testing.T) {
	t.Run("completing every action closes stop, step and order", func(t *testing.T) {
		f := newTwoStopFixture(t)
		f.order.AppendTrace(f.stepID, point(t, 52.521, 13.401), point(t, 52.525, 13.41))

		res := f.completeStop(t, f.pickupID, f.pickActID)
		assert.Equal(t, order.StopCompleted, res.StopStatus)
		assert.Nil(t, res.CompletedStepID)
		assert.False(t, res.OrderTerminal)

		res = f.completeStop(t, f.deliveryID, f.dropActID)
		assert.Equal(t, order.StopCompleted, res.StopStatus)
		require.NotNil(t, res.CompletedStepID)
		assert.True(t, res.CompletedStepID.IsEqual(f.stepID))
		require.NotNil(t, res.FrozenSegment)
		assert.Len(t, res.FrozenSegment.Trace, 2)
		assert.True(t, res.OrderTerminal)
		assert.Equal(t, order.StatusDelivered, res.OrderStatus)

		// The live trace moved into the frozen segment.
		assert.Nil(t, f.order.Graph().FindStep(f.stepID).PathTrace)
		assert.Len(t, f.order.FrozenSegments(), 1)
	})

	t.Run("arrival updates the route partition", func(t *testing.T) {
		f := newTwoStopFixture(t)
		_, err := f.order.ArriveAtStop(f.pickupID, f.now)
		require.NoError(t, err)

		re := f.order.RouteExecution()
		assert.True(t, re.IsVisited(f.pickupID))
		require.Len(t, re.Remaining, 1)
		assert.True(t, re.Remaining[0].IsEqual(f.deliveryID))
		require.NoError(t, re.Validate())

		_, err = f.order.ArriveAtStop(f.pickupID, f.now)
		assert.ErrorIs(t, err, errs.ErrConflict, "second arrival at the same stop")
	})

	t.Run("actions require an arrived stop", func(t *testing.T) {
		f := newTwoStopFixture(t)
		_, err := f.order.CompleteAction(f.pickActID, order.ProofSubmission{}, f.now)
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("frozen action settles the stop as partial but keeps the order open", func(t *testing.T) {
		f := newTwoStopFixture(t)
		f.completeStop(t, f.pickupID, f.pickActID)
		_, err := f.order.ArriveAtStop(f.deliveryID, f.now)
		require.NoError(t, err)

		res, err := f.order.FreezeAction(f.dropActID, "recipient absent", f.now)
		require.NoError(t, err)
		assert.Equal(t, order.StopPartial, res.StopStatus)
		assert.False(t, res.OrderTerminal)
		assert.Equal(t, order.StatusAccepted, f.order.Status())
	})

	t.Run("unfreeze reopens a settled stop", func(t *testing.T) {
		f := newTwoStopFixture(t)
		f.completeStop(t, f.pickupID, f.pickActID)
		_, err := f.order.ArriveAtStop(f.deliveryID, f.now)
		require.NoError(t, err)
		_, err = f.order.FreezeAction(f.dropActID, "recipient absent", f.now)
		require.NoError(t, err)

		res, err := f.order.UnfreezeAction(f.dropActID, f.now)
		require.NoError(t, err)
		assert.Equal(t, order.StopArrived, res.StopStatus)

		res, err = f.order.CompleteAction(f.dropActID, order.ProofSubmission{}, f.now)
		require.NoError(t, err)
		assert.Equal(t, order.StatusDelivered, res.OrderStatus)
	})

	t.Run("unfreeze demotes a completed step", func(t *testing.T) {
		f := newTwoStopFixture(t)
		f.completeStop(t, f.pickupID, f.pickActID)
		_, err := f.order.ArriveAtStop(f.deliveryID, f.now)
		require.NoError(t, err)
		_, err = f.order.FreezeAction(f.dropActID, "recipient absent", f.now)
		require.NoError(t, err)
		// Partial is terminal, so the freeze closed the step.
		require.Equal(t, order.StepCompleted, f.order.Graph().FindStep(f.stepID).Status)

		_, err = f.order.UnfreezeAction(f.dropActID, f.now)
		require.NoError(t, err)
		assert.Equal(t, order.StepInProgress, f.order.Graph().FindStep(f.stepID).Status)

		res, err := f.order.CompleteAction(f.dropActID, order.ProofSubmission{}, f.now)
		require.NoError(t, err)
		assert.Equal(t, order.StepCompleted, f.order.Graph().FindStep(f.stepID).Status)
		require.NotNil(t, res.CompletedStepID)
		assert.Equal(t, order.StatusDelivered, res.OrderStatus)
	})

	t.Run("force complete closes over frozen actions", func(t *testing.T) {
		f := newTwoStopFixture(t)
		f.completeStop(t, f.pickupID, f.pickActID)
		_, err := f.order.ArriveAtStop(f.deliveryID, f.now)
		require.NoError(t, err)
		_, err = f.order.FreezeAction(f.dropActID, "recipient absent", f.now)
		require.NoError(t, err)

		res, err := f.order.ForceComplete(f.now)
		require.NoError(t, err)
		assert.True(t, res.OrderTerminal)
		// No delivery completed, so the forced closure is a failure.
		assert.Equal(t, order.StatusFailed, res.OrderStatus)
	})

	t.Run("force complete rejects pending actions", func(t *testing.T) {
		f := newTwoStopFixture(t)
		_, err := f.order.ForceComplete(f.now)
		assert.ErrorIs(t, err, errs.ErrBusinessRule)
	})

	t.Run("completing twice is a recognizable no-op", func(t *testing.T) {
		f := newTwoStopFixture(t)
		f.completeStop(t, f.pickupID, f.pickActID)

		_, err := f.order.CompleteAction(f.pickActID, order.ProofSubmission{}, f.now)
		assert.ErrorIs(t, err, order.ErrActionAlreadyCompleted)
	})
}

func TestCompleteActionProofs(t *testing.T) {
	codeID := kernel.NewUUID()
	photoID := kernel.NewUUID()

	withProofs := func(t *testing.T, compare bool) *twoStopFixture {
		f := newTwoStopFixture(t)
		drop := f.order.Graph().FindAction(f.dropActID)
		drop.Proofs = []order.ActionProof{
			{ID: codeID, Kind: order.ProofCode, ExpectedValue: "4711", CompareValue: compare},
			{ID: photoID, Kind: order.ProofPhoto},
		}
		f.completeStop(t, f.pickupID, f.pickActID)
		_, err := f.order.ArriveAtStop(f.deliveryID, f.now)
		require.NoError(t, err)
		return f
	}

	t.Run("all proofs valid completes the action", func(t *testing.T) {
		f := withProofs(t, true)
		res, err := f.order.CompleteAction(f.dropActID, order.ProofSubmission{
			Codes: map[string]string{codeID.String(): "4711"},
			Files: map[string]string{photoID.String(): "s3://proofs/drop.jpg"},
		}, f.now)
		require.NoError(t, err)
		assert.Equal(t, order.StatusDelivered, res.OrderStatus)
	})

	t.Run("wrong code aborts with no state change", func(t *testing.T) {
		f := withProofs(t, true)
		_, err := f.order.CompleteAction(f.dropActID, order.ProofSubmission{
			Codes: map[string]string{codeID.String(): "0000"},
			Files: map[string]string{photoID.String(): "s3://proofs/drop.jpg"},
		}, f.now)

		var findings errs.ValidationErrors
		require.ErrorAs(t, err, &findings)
		require.Len(t, findings, 1)
		assert.Equal(t, errs.SeverityError, findings[0].Severity)
		assert.Equal(t, order.ActionPending, f.order.Graph().FindAction(f.dropActID).Status)
	})

	t.Run("uncompared code only requires presence", func(t *testing.T) {
		f := withProofs(t, false)
		_, err := f.order.CompleteAction(f.dropActID, order.ProofSubmission{
			Codes: map[string]string{codeID.String(): "anything"},
			Files: map[string]string{photoID.String(): "s3://proofs/drop.jpg"},
		}, f.now)
		require.NoError(t, err)
	})

	t.Run("every failing proof is reported", func(t *testing.T) {
		f := withProofs(t, true)
		_, err := f.order.CompleteAction(f.dropActID, order.ProofSubmission{}, f.now)

		var findings errs.ValidationErrors
		require.ErrorAs(t, err, &findings)
		assert.Len(t, findings, 2)
	})
}

func TestOrderCancel(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	t.Run("draft can be cancelled", func(t *testing.T) {
		o, err := order.NewOrder(kernel.NewUUID(), kernel.NewUUID(),
			order.DispatchGlobal, nil, nil, order.PriorityNormal)
		require.NoError(t, err)
		require.NoError(t, o.Cancel(now))
		assert.Equal(t, order.StatusCancelled, o.Status())
	})

	t.Run("terminal orders stay terminal", func(t *testing.T) {
		f := newTwoStopFixture(t)
		f.completeStop(t, f.pickupID, f.pickActID)
		f.completeStop(t, f.deliveryID, f.dropActID)

		assert.Error(t, f.order.Cancel(now))
	})
}
