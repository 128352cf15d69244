package services

import (
	"context"
	"errors"
	"math"
	"time"

	"orderflow/internal/core/domain/model/driver"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
)

// ErrNoCandidate is returned internally when a search phase produced no
// eligible driver.
var ErrNoCandidate = errors.New("no eligible driver found")

// DispatchConfig carries the injectable tuning of the dispatch engine.
// Radii, ceilings and timeouts are configuration, never constants.
type DispatchConfig struct {
	// SearchRadiusM bounds the open-pool geosearch around the pickup.
	SearchRadiusM float64
	// ChainingRadiusM bounds the distance between a busy driver's next
	// destination and the new pickup.
	ChainingRadiusM float64
	// ChainingCeiling is the maximum concurrent missions for a chained
	// driver.
	ChainingCeiling int
	// OfferTTL is the offer validity for normal-priority orders.
	OfferTTL time.Duration
	// OfferTTLHigh is the shorter validity for high-priority orders.
	OfferTTLHigh time.Duration
	// RejectionTTL is how long a refusal excludes the driver from the
	// order.
	RejectionTTL time.Duration
}

// DispatchOutcome reports what the engine decided for a pending order.
type DispatchOutcome struct {
	// OfferedDriverID is set when an offer was committed.
	OfferedDriverID *kernel.UUID
	// NoDriver is set when the order was marked NoDriverAvailable.
	NoDriver bool
	// AlreadyOffered is set when a live unexpired offer made the call a
	// no-op.
	AlreadyOffered bool
}

// Dispatcher selects exactly one driver (or marks the order unassignable)
// for a pending order, following the TARGET / INTERNAL / GLOBAL strategy.
//
// The presence store is eventually consistent, so the engine re-validates
// the chosen candidate with an atomic availability swap immediately before
// committing the offer; if presence changed since selection the whole
// attempt aborts without mutating anything.
type Dispatcher struct {
	presence ports.PresenceStore
	cfg      DispatchConfig
}

// NewDispatcher creates a dispatch engine over the given presence store.
func NewDispatcher(presence ports.PresenceStore, cfg DispatchConfig) Dispatcher {
	return Dispatcher{presence: presence, cfg: cfg}
}

// Dispatch runs one selection round for the order. It mutates only the
// order's offer fields (via MakeOffer / MarkNoDriver) and the candidate's
// presence availability; persisting the order is the caller's concern.
//
// Idempotent: an order already holding a live unexpired offer is untouched.
func (d Dispatcher) Dispatch(ctx context.Context, o *order.Order, now time.Time) (*DispatchOutcome, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if o.Status() != order.StatusPending {
		return nil, errs.NewConflictError("mission no longer pending")
	}
	if o.HasLiveOffer(now) {
		return &DispatchOutcome{OfferedDriverID: o.OfferedDriverID(), AlreadyOffered: true}, nil
	}

	pickup, err := firstPickupLocation(o)
	if err != nil {
		return nil, err
	}

	candidate, err := d.selectCandidate(ctx, o, pickup)
	if errors.Is(err, ErrNoCandidate) {
		if markErr := o.MarkNoDriver(now); markErr != nil {
			return nil, markErr
		}
		return &DispatchOutcome{NoDriver: true}, nil
	}
	if err != nil {
		return nil, err
	}

	return d.commitOffer(ctx, o, candidate, now)
}

// RecordRefusal handles a driver turning an offer down: the driver joins
// the order's rejection set with a TTL, presence flips back from OFFERING,
// and the offer is cleared so the next dispatch round can run.
func (d Dispatcher) RecordRefusal(ctx context.Context, o *order.Order, driverID kernel.UUID) error {
	offered := o.OfferedDriverID()
	if offered == nil || !offered.IsEqual(driverID) {
		return errs.NewConflictError("offer no longer valid")
	}

	if err := d.presence.AddRejection(ctx, o.ID(), driverID, d.cfg.RejectionTTL); err != nil {
		return err
	}

	next := driver.AvailabilityOnline
	if p, perr := d.presence.Get(ctx, driverID); perr == nil && p.ActiveMissionCount() > 0 {
		next = driver.AvailabilityBusy
	}
	if _, err := d.presence.CompareAndSwapAvailability(ctx, driverID,
		driver.AvailabilityOffering, next); err != nil {
		return err
	}

	o.ClearOffer()
	return nil
}

// selectCandidate resolves the dispatch mode and runs the matching search.
func (d Dispatcher) selectCandidate(ctx context.Context, o *order.Order, pickup kernel.GeoPoint) (*driver.Presence, error) {
	switch o.DispatchMode() {
	case order.DispatchTarget:
		return d.selectTarget(ctx, o, pickup)
	case order.DispatchInternal:
		return d.selectInternal(ctx, o, pickup)
	default:
		return d.selectGlobal(ctx, o, pickup)
	}
}

// selectTarget resolves the order's reference id to a driver; a reference
// matching the order's company falls through to the internal search, and an
// unresolved or non-online reference falls back to the open pool.
func (d Dispatcher) selectTarget(ctx context.Context, o *order.Order, pickup kernel.GeoPoint) (*driver.Presence, error) {
	target := o.TargetID()
	if target == nil {
		return d.selectGlobal(ctx, o, pickup)
	}

	if company := o.CompanyID(); company != nil && company.IsEqual(*target) {
		return d.selectInternal(ctx, o, pickup)
	}

	p, err := d.presence.Get(ctx, *target)
	if err != nil {
		if errors.Is(err, errs.ErrObjectNotFound) {
			return d.selectGlobal(ctx, o, pickup)
		}
		return nil, err
	}
	if !p.IsOnline() {
		return d.selectGlobal(ctx, o, pickup)
	}
	if rejected, rerr := d.presence.IsRejected(ctx, o.ID(), p.DriverID); rerr != nil || rejected {
		if rerr != nil {
			return nil, rerr
		}
		return d.selectGlobal(ctx, o, pickup)
	}
	return p, nil
}

// selectInternal picks the nearest online company driver outside the
// rejection set. Fleet membership is the scope here, not proximity: the
// company pool is enumerated without a radius bound, so a lone fleet
// driver far from the pickup still gets the offer. No candidate means
// NoDriverAvailable: internal dispatch deliberately never falls back to
// the open pool.
func (d Dispatcher) selectInternal(ctx context.Context, o *order.Order, pickup kernel.GeoPoint) (*driver.Presence, error) {
	company := o.CompanyID()
	if company == nil {
		company = o.TargetID()
	}
	if company == nil {
		return nil, errs.NewBusinessRuleError("internal dispatch requires a company context")
	}

	online, err := d.presence.ListByAvailability(ctx, driver.AvailabilityOnline)
	if err != nil {
		return nil, err
	}

	var best *driver.Presence
	bestDist := math.MaxFloat64
	for _, p := range online {
		if !p.WorksFor(*company) {
			continue
		}
		rejected, rerr := d.presence.IsRejected(ctx, o.ID(), p.DriverID)
		if rerr != nil {
			return nil, rerr
		}
		if rejected {
			continue
		}
		dist, derr := p.Location.DistanceTo(pickup)
		if derr != nil {
			dist = math.MaxFloat64
		}
		if best == nil || dist < bestDist {
			best, bestDist = p, dist
		}
	}
	if best == nil {
		return nil, ErrNoCandidate
	}
	return best, nil
}

// selectGlobal runs the two-phase open-pool search: nearest online driver
// first, then busy drivers eligible for chaining.
func (d Dispatcher) selectGlobal(ctx context.Context, o *order.Order, pickup kernel.GeoPoint) (*driver.Presence, error) {
	online, err := d.presence.SearchRadius(ctx, pickup, d.cfg.SearchRadiusM, driver.AvailabilityOnline)
	if err != nil {
		return nil, err
	}
	for _, p := range online {
		rejected, rerr := d.presence.IsRejected(ctx, o.ID(), p.DriverID)
		if rerr != nil {
			return nil, rerr
		}
		if rejected {
			continue
		}
		return p, nil
	}

	busy, err := d.presence.SearchRadius(ctx, pickup, d.cfg.SearchRadiusM, driver.AvailabilityBusy)
	if err != nil {
		return nil, err
	}
	for _, p := range busy {
		if !p.ChainingEligible(d.cfg.ChainingCeiling) {
			continue
		}
		rejected, rerr := d.presence.IsRejected(ctx, o.ID(), p.DriverID)
		if rerr != nil {
			return nil, rerr
		}
		if rejected {
			continue
		}
		dist, derr := p.NextDestination.DistanceTo(pickup)
		if derr != nil {
			continue
		}
		if dist <= d.cfg.ChainingRadiusM {
			return p, nil
		}
	}

	return nil, ErrNoCandidate
}

// commitOffer re-validates the candidate's presence with an atomic swap and
// records the offer on the order. A swap miss means presence changed since
// selection: the attempt aborts with a conflict and nothing is mutated.
func (d Dispatcher) commitOffer(ctx context.Context, o *order.Order, candidate *driver.Presence, now time.Time) (*DispatchOutcome, error) {
	swapped, err := d.presence.CompareAndSwapAvailability(ctx, candidate.DriverID,
		candidate.Availability, driver.AvailabilityOffering)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, errs.NewConflictError("offer no longer valid")
	}

	ttl := d.cfg.OfferTTL
	if o.Priority() == order.PriorityHigh {
		ttl = d.cfg.OfferTTLHigh
	}
	if err = o.MakeOffer(candidate.DriverID, now, ttl); err != nil {
		// Roll the presence flip back; the order mutation failed.
		_, _ = d.presence.CompareAndSwapAvailability(ctx, candidate.DriverID,
			driver.AvailabilityOffering, candidate.Availability)
		return nil, err
	}

	id := candidate.DriverID
	return &DispatchOutcome{OfferedDriverID: &id}, nil
}

// firstPickupLocation resolves the pickup point the geosearch centers on:
// the first remaining stop in the planned execution order.
func firstPickupLocation(o *order.Order) (kernel.GeoPoint, error) {
	re := o.RouteExecution()
	g := o.Graph()
	if len(re.Remaining) > 0 {
		if stop := g.FindStop(re.Remaining[0]); stop != nil {
			return stop.Location, nil
		}
	}

	var first *order.Stop
	for _, s := range g.Stops {
		if s.IsShadow() || s.DeleteRequired {
			continue
		}
		if first == nil || s.Sequence < first.Sequence {
			first = s
		}
	}
	if first == nil {
		return kernel.GeoPoint{}, errs.NewValueIsRequiredError("order has no stops to dispatch")
	}
	return first.Location, nil
}
