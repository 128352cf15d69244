package order

import (
	"errors"
	"fmt"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
)

var (
	// ErrOrderIsNotConstructed is returned when an Order instance was not
	// created through NewOrder or RestoreOrder.
	ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder constructor")

	// ErrActionAlreadyCompleted signals the no-op branch of CompleteAction.
	ErrActionAlreadyCompleted = errors.New("action already completed")
)

// HistoryEntry is one record of the order's status audit trail.
type HistoryEntry struct {
	Status Status
	At     time.Time
	Note   string
}

// CascadeResult reports what a field event rolled up to, so the application
// layer knows which follow-ups (route sync, notifications, presence release)
// to schedule after commit.
type CascadeResult struct {
	StopID     kernel.UUID
	StopStatus StopStatus
	// CompletedStepID is set when the owning step completed on this event.
	CompletedStepID *kernel.UUID
	// FrozenSegment is the step's actual-path trace, frozen exactly once
	// at step completion.
	FrozenSegment *FrozenSegment
	OrderStatus   Status
	OrderTerminal bool
}

// Order is the aggregate root for a multi-stop delivery job. It owns the
// structural graph, the route execution partition, the dispatch offer state
// and the status roll-up.
//
// Invariants:
//   - Must have valid id and client id
//   - Freely mutable while Draft; mutable only via shadows once submitted
//   - Status transitions follow the rules in status.go
//   - routeExecution partitions the planned stop set (see RouteExecution)
//   - Can only be created through NewOrder / RestoreOrder
type Order struct {
	id               kernel.UUID
	clientID         kernel.UUID
	companyID        *kernel.UUID
	dispatchMode     DispatchMode
	targetID         *kernel.UUID
	priority         Priority
	status           Status
	driverID         *kernel.UUID
	offeredDriverID  *kernel.UUID
	offerExpiresAt   *time.Time
	dispatchAttempts int
	pendingChanges   bool
	graph            *Graph
	routeExec        RouteExecution
	routeLegs        []RouteLeg
	frozenSegments   []FrozenSegment
	missionStart     *kernel.GeoPoint
	totalDistanceM   float64
	totalDurationS   float64
	price            float64
	history          []HistoryEntry

	isConstructed bool
}

// NewOrder creates a Draft order for the given client.
// targetID is required for DispatchTarget mode; companyID for
// DispatchInternal mode (also implied company affiliation for compliance).
func NewOrder(
	id kernel.UUID,
	clientID kernel.UUID,
	mode DispatchMode,
	targetID *kernel.UUID,
	companyID *kernel.UUID,
	priority Priority,
) (*Order, error) {
	o := &Order{
		status:        StatusDraft,
		dispatchMode:  mode,
		priority:      priority,
		graph:         NewGraph(),
		isConstructed: true,
	}

	if err := errors.Join(
		o.setID(id),
		o.setClientID(clientID),
	); err != nil {
		return nil, err
	}

	if mode == DispatchTarget && targetID == nil {
		return nil, errs.NewValueIsRequiredError("targetId is required for target dispatch")
	}
	if mode == DispatchInternal && companyID == nil {
		return nil, errs.NewBusinessRuleError("internal dispatch requires a company context")
	}
	o.targetID = targetID
	o.companyID = companyID

	return o, nil
}

// RestoreOrder reconstructs an order from persistence without replaying its
// lifecycle. The caller is responsible for passing a consistent snapshot.
func RestoreOrder(
	id kernel.UUID,
	clientID kernel.UUID,
	companyID *kernel.UUID,
	mode DispatchMode,
	targetID *kernel.UUID,
	priority Priority,
	status Status,
	driverID *kernel.UUID,
	offeredDriverID *kernel.UUID,
	offerExpiresAt *time.Time,
	dispatchAttempts int,
	pendingChanges bool,
	graph *Graph,
	routeExec RouteExecution,
	routeLegs []RouteLeg,
	frozenSegments []FrozenSegment,
	missionStart *kernel.GeoPoint,
	totalDistanceM, totalDurationS, price float64,
	history []HistoryEntry,
) (*Order, error) {
	if err := errors.Join(id.Validate(), clientID.Validate(), status.Validate()); err != nil {
		return nil, err
	}
	if graph == nil {
		graph = NewGraph()
	}

	return &Order{
		id:               id,
		clientID:         clientID,
		companyID:        companyID,
		dispatchMode:     mode,
		targetID:         targetID,
		priority:         priority,
		status:           status,
		driverID:         driverID,
		offeredDriverID:  offeredDriverID,
		offerExpiresAt:   offerExpiresAt,
		dispatchAttempts: dispatchAttempts,
		pendingChanges:   pendingChanges,
		graph:            graph,
		routeExec:        routeExec,
		routeLegs:        routeLegs,
		frozenSegments:   frozenSegments,
		missionStart:     missionStart,
		totalDistanceM:   totalDistanceM,
		totalDurationS:   totalDurationS,
		price:            price,
		history:          history,
		isConstructed:    true,
	}, nil
}

// Validate ensures the Order was created through a constructor.
func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

// IsEqual compares two orders by identity.
func (o *Order) IsEqual(other *Order) bool {
	return other != nil && o.id.IsEqual(other.id)
}

// ID returns the order's unique identifier.
func (o *Order) ID() kernel.UUID { return o.id }

// ClientID returns the owning client's identifier.
func (o *Order) ClientID() kernel.UUID { return o.clientID }

// CompanyID returns the affiliated company id, or nil.
func (o *Order) CompanyID() *kernel.UUID { return o.companyID }

// DispatchMode returns the driver-search strategy.
func (o *Order) DispatchMode() DispatchMode { return o.dispatchMode }

// TargetID returns the direct-dispatch reference id, or nil.
func (o *Order) TargetID() *kernel.UUID { return o.targetID }

// Priority returns the order priority.
func (o *Order) Priority() Priority { return o.priority }

// Status returns the current lifecycle status.
func (o *Order) Status() Status { return o.status }

// DriverID returns the assigned driver's id, or nil.
func (o *Order) DriverID() *kernel.UUID { return o.driverID }

// OfferedDriverID returns the driver currently holding an offer, or nil.
func (o *Order) OfferedDriverID() *kernel.UUID { return o.offeredDriverID }

// OfferExpiresAt returns the live offer deadline, or nil.
func (o *Order) OfferExpiresAt() *time.Time { return o.offerExpiresAt }

// DispatchAttempts returns how many offers have been made.
func (o *Order) DispatchAttempts() int { return o.dispatchAttempts }

// HasPendingChanges reports whether unmerged shadows exist.
func (o *Order) HasPendingChanges() bool { return o.pendingChanges }

// SetPendingChanges flips the pending-changes flag; owned by the shadow
// merge workflow.
func (o *Order) SetPendingChanges(v bool) { o.pendingChanges = v }

// Graph returns the structural graph for in-place mutation by the shadow
// merge engine and the repositories.
func (o *Order) Graph() *Graph { return o.graph }

// ReplaceGraph swaps the structural graph, used when a merge produces a new
// canonical set.
func (o *Order) ReplaceGraph(g *Graph) { o.graph = g }

// RouteExecution returns the mutable route partition.
func (o *Order) RouteExecution() *RouteExecution { return &o.routeExec }

// SetRouteExecution replaces the route partition after (re)optimization.
func (o *Order) SetRouteExecution(r RouteExecution) { o.routeExec = r }

// RouteLegs returns the persisted route geometry.
func (o *Order) RouteLegs() []RouteLeg { return o.routeLegs }

// SetRouteLegs replaces the persisted route geometry.
func (o *Order) SetRouteLegs(legs []RouteLeg) { o.routeLegs = legs }

// FrozenSegments returns the frozen actual-path segments of completed steps.
func (o *Order) FrozenSegments() []FrozenSegment { return o.frozenSegments }

// MissionStart returns the driver position snapshotted at acceptance.
func (o *Order) MissionStart() *kernel.GeoPoint { return o.missionStart }

// Totals returns aggregate distance (meters), duration (seconds) and price.
func (o *Order) Totals() (distanceM, durationS, price float64) {
	return o.totalDistanceM, o.totalDurationS, o.price
}

// SetTotals updates aggregate distance, duration and price.
func (o *Order) SetTotals(distanceM, durationS, price float64) {
	o.totalDistanceM = distanceM
	o.totalDurationS = durationS
	o.price = price
}

// History returns the status audit trail.
func (o *Order) History() []HistoryEntry { return o.history }

func (o *Order) appendHistory(status Status, at time.Time, note string) {
	o.history = append(o.history, HistoryEntry{Status: status, At: at, Note: note})
}

// IsDraft reports whether direct structural mutation is allowed.
func (o *Order) IsDraft() bool { return o.status == StatusDraft }

// Submit transitions Draft -> Pending and initializes the route execution
// partition over the planned stop sequence. Structural viability must have
// been checked by the caller beforehand.
func (o *Order) Submit(plannedStopIDs []kernel.UUID, at time.Time) error {
	newStatus, err := o.status.Submit()
	if err != nil {
		return err
	}

	o.status = newStatus
	o.routeExec = NewRouteExecution(plannedStopIDs)
	o.appendHistory(newStatus, at, "submitted")
	return nil
}

// HasLiveOffer reports whether an unexpired offer is outstanding.
func (o *Order) HasLiveOffer(now time.Time) bool {
	return o.offeredDriverID != nil && o.offerExpiresAt != nil && o.offerExpiresAt.After(now)
}

// MakeOffer records an offer to the driver with the given time-to-live and
// increments the attempt counter. Requires Pending status.
func (o *Order) MakeOffer(driverID kernel.UUID, now time.Time, ttl time.Duration) error {
	if o.status != StatusPending {
		return errs.NewConflictErrorWithCause("mission no longer pending",
			fmt.Errorf("%s is not a valid status to offer", o.status))
	}
	if err := driverID.Validate(); err != nil {
		return err
	}

	expires := now.Add(ttl)
	o.offeredDriverID = &driverID
	o.offerExpiresAt = &expires
	o.dispatchAttempts++
	return nil
}

// ClearOffer drops the outstanding offer, if any.
func (o *Order) ClearOffer() {
	o.offeredDriverID = nil
	o.offerExpiresAt = nil
}

// MarkNoDriver transitions Pending -> NoDriverAvailable.
func (o *Order) MarkNoDriver(at time.Time) error {
	if o.status != StatusPending {
		return errs.NewConflictErrorWithCause("mission no longer pending",
			fmt.Errorf("%s is not a valid status to exhaust", o.status))
	}
	o.status = StatusNoDriverAvailable
	o.ClearOffer()
	o.appendHistory(o.status, at, "no driver available")
	return nil
}

// Accept assigns the mission to the driver holding the live offer,
// snapshots the driver's current position as the mission start point and
// transitions to Accepted. Compliance checks are the caller's concern.
func (o *Order) Accept(driverID kernel.UUID, position kernel.GeoPoint, at time.Time) error {
	if err := driverID.Validate(); err != nil {
		return err
	}
	if o.offeredDriverID == nil || !o.offeredDriverID.IsEqual(driverID) {
		return errs.NewConflictError("offer no longer valid")
	}

	newStatus, err := o.status.Accept()
	if err != nil {
		return err
	}

	o.status = newStatus
	o.driverID = &driverID
	o.ClearOffer()
	if position.Validate() == nil {
		o.missionStart = &position
	}
	o.appendHistory(newStatus, at, "mission accepted")
	return nil
}

// Cancel transitions to Cancelled from any non-terminal status.
func (o *Order) Cancel(at time.Time) error {
	newStatus, err := o.status.Cancel()
	if err != nil {
		return err
	}
	o.status = newStatus
	o.ClearOffer()
	o.appendHistory(newStatus, at, "cancelled")
	return nil
}

// canonicalStop resolves a driver-visible stop row.
func (o *Order) canonicalStop(stopID kernel.UUID) (*Stop, error) {
	stop := o.graph.FindStop(stopID)
	if stop == nil || stop.IsShadow() {
		return nil, errs.NewObjectNotFoundError("stop", stopID.String())
	}
	return stop, nil
}

// ArriveAtStop records the driver's arrival, moves the stop from remaining
// to visited and rolls up statuses. Proximity checking is advisory and
// handled by the caller.
func (o *Order) ArriveAtStop(stopID kernel.UUID, at time.Time) (*CascadeResult, error) {
	if o.status != StatusAccepted {
		return nil, errs.NewConflictErrorWithCause("mission not in execution",
			fmt.Errorf("%s is not a valid status for field events", o.status))
	}

	stop, err := o.canonicalStop(stopID)
	if err != nil {
		return nil, err
	}

	newStatus, err := stop.Status.Arrive()
	if err != nil {
		return nil, err
	}

	if err = o.routeExec.MarkVisited(stopID); err != nil {
		return nil, err
	}

	stop.Status = newStatus
	stop.ArrivedAt = &at

	return o.cascade(stop, false, at), nil
}

// ProofSubmission carries the field evidence for one completion call,
// keyed by proof id string.
type ProofSubmission struct {
	Codes map[string]string
	Files map[string]string
}

// CompleteAction validates every declared proof and, on success, marks the
// action completed and rolls up statuses. Any failing proof aborts the whole
// call with no state change. Returns ErrActionAlreadyCompleted as a no-op
// signal when the action is already completed.
func (o *Order) CompleteAction(actionID kernel.UUID, sub ProofSubmission, at time.Time) (*CascadeResult, error) {
	action, stop, err := o.executableAction(actionID)
	if err != nil {
		return nil, err
	}
	if action.Status == ActionCompleted {
		return nil, ErrActionAlreadyCompleted
	}
	if action.Status.IsTerminal() {
		return nil, errs.NewConflictErrorWithCause("action already terminal",
			fmt.Errorf("%s is not a valid action status to complete", action.Status))
	}

	var findings errs.ValidationErrors
	for i := range action.Proofs {
		if ferr := validateProof(&action.Proofs[i], sub); ferr != nil {
			findings = append(findings, ferr)
		}
	}
	if len(findings) > 0 {
		return nil, findings
	}

	action.Status = ActionCompleted
	action.FreezeReason = ""

	return o.cascade(stop, false, at), nil
}

// FreezeAction puts a non-terminal action on hold, optionally recording the
// reason, and rolls up statuses.
func (o *Order) FreezeAction(actionID kernel.UUID, reason string, at time.Time) (*CascadeResult, error) {
	action, stop, err := o.executableAction(actionID)
	if err != nil {
		return nil, err
	}
	if action.Status.IsTerminal() {
		return nil, errs.NewConflictErrorWithCause("action already terminal",
			fmt.Errorf("%s is not a valid action status to freeze", action.Status))
	}

	action.Status = ActionFrozen
	action.FreezeReason = reason

	return o.cascade(stop, false, at), nil
}

// UnfreezeAction returns a frozen action to pending, clearing the reason,
// and rolls up statuses.
func (o *Order) UnfreezeAction(actionID kernel.UUID, at time.Time) (*CascadeResult, error) {
	action, stop, err := o.executableAction(actionID)
	if err != nil {
		return nil, err
	}
	if action.Status != ActionFrozen {
		return nil, errs.NewConflictErrorWithCause("action not frozen",
			fmt.Errorf("%s is not a valid action status to unfreeze", action.Status))
	}

	action.Status = ActionPending
	action.FreezeReason = ""

	return o.cascade(stop, false, at), nil
}

// ForceComplete is the manual finish: requires every action settled
// (terminal or frozen) and forces closure even with frozen actions.
func (o *Order) ForceComplete(at time.Time) (*CascadeResult, error) {
	if o.status != StatusAccepted {
		return nil, errs.NewConflictErrorWithCause("mission not in execution",
			fmt.Errorf("%s is not a valid status to complete", o.status))
	}
	for _, a := range o.canonicalActions() {
		if !a.Status.IsTerminal() && a.Status != ActionFrozen {
			return nil, errs.NewBusinessRuleError("order has unresolved actions")
		}
	}

	res := &CascadeResult{}
	o.rollUpOrder(res, true, at)
	return res, nil
}

// ReconcileRoute rebuilds the route partition after a structural merge:
// planned becomes visited plus every live canonical stop, newly added stops
// join the remaining set and removed stops leave it. Visited history is
// never rewritten. A next-stop override pointing at a removed stop is
// dropped.
func (o *Order) ReconcileRoute() {
	if o.status == StatusDraft {
		return
	}

	live := make(map[string]bool)
	for _, s := range o.graph.Stops {
		if s.IsShadow() || s.DeleteRequired {
			continue
		}
		live[s.ID.String()] = true
	}

	visited := append([]kernel.UUID(nil), o.routeExec.Visited...)
	inPlan := make(map[string]bool, len(visited))
	for _, id := range visited {
		inPlan[id.String()] = true
	}

	var remaining []kernel.UUID
	for _, id := range o.routeExec.Remaining {
		if live[id.String()] {
			remaining = append(remaining, id)
			inPlan[id.String()] = true
		}
	}
	for _, s := range o.graph.Stops {
		if s.IsShadow() || s.DeleteRequired || inPlan[s.ID.String()] {
			continue
		}
		remaining = append(remaining, s.ID)
		inPlan[s.ID.String()] = true
	}

	planned := append(append([]kernel.UUID(nil), visited...), remaining...)
	override := o.routeExec.NextStopOverride
	if override != nil && !live[override.String()] {
		override = nil
	}

	o.routeExec = RouteExecution{
		Planned:          planned,
		Visited:          visited,
		Remaining:        remaining,
		NextStopOverride: override,
	}
}

// AppendTrace buffers actual-path GPS points onto the step currently being
// executed. Ignored for unknown or shadow steps.
func (o *Order) AppendTrace(stepID kernel.UUID, points ...kernel.GeoPoint) {
	step := o.graph.FindStep(stepID)
	if step == nil || step.IsShadow() {
		return
	}
	step.PathTrace = append(step.PathTrace, points...)
}

// executableAction resolves a canonical action whose stop allows execution.
func (o *Order) executableAction(actionID kernel.UUID) (*Action, *Stop, error) {
	if o.status != StatusAccepted {
		return nil, nil, errs.NewConflictErrorWithCause("mission not in execution",
			fmt.Errorf("%s is not a valid status for field events", o.status))
	}

	action := o.graph.FindAction(actionID)
	if action == nil || action.IsShadow() {
		return nil, nil, errs.NewObjectNotFoundError("action", actionID.String())
	}

	stop, err := o.canonicalStop(action.StopID)
	if err != nil {
		return nil, nil, err
	}
	if !stop.Status.AllowsActionExecution() {
		return nil, nil, errs.NewBusinessRuleError("stop not arrived")
	}

	return action, stop, nil
}

// canonicalActions returns driver-visible actions, excluding rows flagged
// for deletion.
func (o *Order) canonicalActions() []*Action {
	var out []*Action
	for _, a := range o.graph.Actions {
		if a.IsShadow() || a.DeleteRequired {
			continue
		}
		out = append(out, a)
	}
	return out
}

// cascade recomputes Stop -> Step -> Order after an action or arrival event.
func (o *Order) cascade(stop *Stop, force bool, at time.Time) *CascadeResult {
	res := &CascadeResult{StopID: stop.ID}

	o.rollUpStop(stop)
	res.StopStatus = stop.Status

	// Unconditional: an unfreeze can reopen a stop under an already
	// completed step, and the step has to follow it back down.
	o.rollUpStep(stop.StepID, res)

	o.rollUpOrder(res, force, at)
	return res
}

// rollUpStop recomputes the stop from its canonical actions: all settled ->
// Completed when clean, Partial when any is frozen/failed/cancelled.
func (o *Order) rollUpStop(stop *Stop) {
	actions := o.graph.ActionsOfStop(stop.ID)
	allSettled := true
	anyExceptional := false
	for _, a := range actions {
		if a.IsShadow() || a.DeleteRequired {
			continue
		}
		switch a.Status {
		case ActionCompleted:
		case ActionFrozen, ActionFailed, ActionCancelled:
			anyExceptional = true
		default:
			allSettled = false
		}
	}

	if !allSettled {
		if stop.Status.IsTerminal() {
			// An unfreeze reopened the stop.
			stop.Status = StopArrived
		}
		return
	}
	if anyExceptional {
		stop.Status = StopPartial
		return
	}
	stop.Status = StopCompleted
}

// rollUpStep recomputes the owning step; on completion the live path trace
// is frozen exactly once and cleared.
func (o *Order) rollUpStep(stepID kernel.UUID, res *CascadeResult) {
	step := o.graph.FindStep(stepID)
	if step == nil || step.IsShadow() {
		return
	}

	allTerminal := true
	for _, s := range o.graph.StopsOfStep(stepID) {
		if s.IsShadow() || s.DeleteRequired {
			continue
		}
		if !s.Status.IsTerminal() {
			allTerminal = false
			break
		}
	}

	if !allTerminal {
		step.Status = StepInProgress
		return
	}
	if step.Status == StepCompleted {
		return
	}

	step.Status = StepCompleted
	segment := FrozenSegment{StepID: step.ID, Trace: step.PathTrace}
	step.PathTrace = nil
	o.frozenSegments = append(o.frozenSegments, segment)
	res.CompletedStepID = &step.ID
	res.FrozenSegment = &segment
}

// rollUpOrder derives the order status. Without force, any frozen action
// keeps the order open (Accepted) so the driver can resolve exceptions.
func (o *Order) rollUpOrder(res *CascadeResult, force bool, at time.Time) {
	actions := o.canonicalActions()

	anyFrozen := false
	allSettled := true
	deliveryCount := 0
	deliveryCompleted := 0
	for _, a := range actions {
		if a.Kind == ActionDelivery {
			deliveryCount++
			if a.Status == ActionCompleted {
				deliveryCompleted++
			}
		}
		switch {
		case a.Status == ActionFrozen:
			anyFrozen = true
		case !a.Status.IsTerminal():
			allSettled = false
		}
	}

	if !allSettled || (anyFrozen && !force) {
		res.OrderStatus = o.status
		return
	}

	newStatus := StatusFailed
	if deliveryCompleted > 0 || deliveryCount == 0 {
		newStatus = StatusDelivered
	}

	o.status = newStatus
	o.appendHistory(newStatus, at, "execution finished")
	res.OrderStatus = newStatus
	res.OrderTerminal = true
}

func (o *Order) setID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	o.id = id
	return nil
}

func (o *Order) setClientID(id kernel.UUID) error {
	if err := id.Validate(); err != nil {
		return errs.NewValueIsRequiredErrorWithCause("clientId", err)
	}
	o.clientID = id
	return nil
}

// validateProof applies one proof's validation rule against the submission.
func validateProof(p *ActionProof, sub ProofSubmission) *errs.ValidationError {
	key := p.ID.String()
	switch p.Kind {
	case ProofCode:
		code, ok := sub.Codes[key]
		if !ok || code == "" {
			return errs.NewValidationError(errs.SeverityError,
				"proofs."+key, "confirmation code is required")
		}
		if p.CompareValue && code != p.ExpectedValue {
			return errs.NewValidationError(errs.SeverityError,
				"proofs."+key, "confirmation code does not match")
		}
	case ProofPhoto:
		if _, ok := sub.Files[key]; !ok && p.Reference == "" {
			return errs.NewValidationError(errs.SeverityError,
				"proofs."+key, "photo attachment is required")
		}
	}
	return nil
}
