package order

import (
	"time"

	"orderflow/internal/core/domain/model/kernel"
)

// ActionKind classifies what an action does with its transit item.
type ActionKind int

const (
	// ActionPickup loads item quantity onto the vehicle.
	ActionPickup ActionKind = iota
	// ActionDelivery unloads item quantity from the vehicle.
	ActionDelivery
	// ActionService is an on-site task with no cargo movement.
	ActionService
)

// String implements fmt.Stringer.
func (k ActionKind) String() string {
	switch k {
	case ActionPickup:
		return "Pickup"
	case ActionDelivery:
		return "Delivery"
	default:
		return "Service"
	}
}

// ProofKind classifies the evidence gating an action's completion.
type ProofKind int

const (
	// ProofCode requires a code submitted by the recipient.
	ProofCode ProofKind = iota
	// ProofPhoto requires an uploaded photo attachment.
	ProofPhoto
)

// ShadowMeta tags a structural row as canonical or shadow.
//
// A canonical row (IsPendingChange=false) is the live, driver-visible
// version. A shadow (IsPendingChange=true) is an uncommitted proposed
// replacement: OriginalID points at the canonical row it would replace on
// merge, or is nil for a brand-new addition not yet revealed. A canonical
// row may additionally carry DeleteRequired, meaning removal was requested
// but not yet applied.
type ShadowMeta struct {
	IsPendingChange bool
	OriginalID      *kernel.UUID
	DeleteRequired  bool
	RevisedAt       time.Time
}

// IsShadow reports whether the row is an uncommitted pending change.
func (m ShadowMeta) IsShadow() bool {
	return m.IsPendingChange
}

// Step groups stops into one logical leg of the job. Steps execute in
// OrderIndex order; a step's accumulated actual-path trace is frozen into
// the persisted route when the step completes.
type Step struct {
	ID         kernel.UUID
	OrderIndex int
	Label      string
	Status     StepStatus
	// PathTrace is the live compressed GPS trace for the step, cleared
	// when the step completes and its segment is frozen.
	PathTrace []kernel.GeoPoint
	ShadowMeta
}

// Stop is a physical location the driver visits. Every stop belongs to
// exactly one step.
type Stop struct {
	ID        kernel.UUID
	StepID    kernel.UUID
	Address   string
	Location  kernel.GeoPoint
	Sequence  int
	Status    StopStatus
	ArrivedAt *time.Time
	ShadowMeta
}

// Action is a unit of work at a stop, optionally moving quantity of a
// transit item. Completion is gated by its declared proofs.
type Action struct {
	ID           kernel.UUID
	StopID       kernel.UUID
	ItemID       *kernel.UUID
	Kind         ActionKind
	Quantity     int
	ServiceTime  time.Duration
	Status       ActionStatus
	FreezeReason string
	Proofs       []ActionProof
	ShadowMeta
}

// ActionProof declares one piece of evidence required to complete an action.
type ActionProof struct {
	ID kernel.UUID
	// Kind selects the validation rule.
	Kind ProofKind
	// ExpectedValue is the code to compare against for ProofCode.
	ExpectedValue string
	// CompareValue enables the comparison; when false any submitted code
	// is accepted.
	CompareValue bool
	// Reference is a pre-supplied attachment reference that satisfies a
	// ProofPhoto without a fresh upload.
	Reference string
}

// TransitItem is a cargo descriptor referenced by pickup/delivery actions.
type TransitItem struct {
	ID       kernel.UUID
	Label    string
	WeightKg float64
	ShadowMeta
}

// Graph bundles the structural rows of one order. It is plain data by
// design: the shadow merge engine is a pure function over row sets, and
// persistence maps rows without reflection tricks.
type Graph struct {
	Steps   []*Step
	Stops   []*Stop
	Actions []*Action
	Items   []*TransitItem
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// FindStep returns the step with the given id, or nil.
func (g *Graph) FindStep(id kernel.UUID) *Step {
	for _, s := range g.Steps {
		if s.ID.IsEqual(id) {
			return s
		}
	}
	return nil
}

// FindStop returns the stop with the given id, or nil.
func (g *Graph) FindStop(id kernel.UUID) *Stop {
	for _, s := range g.Stops {
		if s.ID.IsEqual(id) {
			return s
		}
	}
	return nil
}

// FindAction returns the action with the given id, or nil.
func (g *Graph) FindAction(id kernel.UUID) *Action {
	for _, a := range g.Actions {
		if a.ID.IsEqual(id) {
			return a
		}
	}
	return nil
}

// FindItem returns the transit item with the given id, or nil.
func (g *Graph) FindItem(id kernel.UUID) *TransitItem {
	for _, it := range g.Items {
		if it.ID.IsEqual(id) {
			return it
		}
	}
	return nil
}

// StopsOfStep returns the stops belonging to the step, canonical and shadow
// alike, in slice order.
func (g *Graph) StopsOfStep(stepID kernel.UUID) []*Stop {
	var out []*Stop
	for _, s := range g.Stops {
		if s.StepID.IsEqual(stepID) {
			out = append(out, s)
		}
	}
	return out
}

// ActionsOfStop returns the actions belonging to the stop.
func (g *Graph) ActionsOfStop(stopID kernel.UUID) []*Action {
	var out []*Action
	for _, a := range g.Actions {
		if a.StopID.IsEqual(stopID) {
			out = append(out, a)
		}
	}
	return out
}

// RemoveStep deletes the step row. Children are the caller's concern.
func (g *Graph) RemoveStep(id kernel.UUID) {
	g.Steps = removeRow(g.Steps, func(s *Step) bool { return s.ID.IsEqual(id) })
}

// RemoveStop deletes the stop row. Children are the caller's concern.
func (g *Graph) RemoveStop(id kernel.UUID) {
	g.Stops = removeRow(g.Stops, func(s *Stop) bool { return s.ID.IsEqual(id) })
}

// RemoveAction deletes the action row.
func (g *Graph) RemoveAction(id kernel.UUID) {
	g.Actions = removeRow(g.Actions, func(a *Action) bool { return a.ID.IsEqual(id) })
}

// RemoveItem deletes the transit item row.
func (g *Graph) RemoveItem(id kernel.UUID) {
	g.Items = removeRow(g.Items, func(it *TransitItem) bool { return it.ID.IsEqual(id) })
}

func removeRow[T any](rows []*T, match func(*T) bool) []*T {
	out := rows[:0]
	for _, r := range rows {
		if !match(r) {
			out = append(out, r)
		}
	}
	return out
}

// CloneStep returns a deep copy of the step row.
func CloneStep(s *Step) *Step {
	cp := *s
	cp.PathTrace = append([]kernel.GeoPoint(nil), s.PathTrace...)
	return &cp
}

// CloneStop returns a deep copy of the stop row.
func CloneStop(s *Stop) *Stop {
	cp := *s
	if s.ArrivedAt != nil {
		at := *s.ArrivedAt
		cp.ArrivedAt = &at
	}
	return &cp
}

// CloneAction returns a deep copy of the action row including proofs.
func CloneAction(a *Action) *Action {
	cp := *a
	cp.Proofs = append([]ActionProof(nil), a.Proofs...)
	if a.ItemID != nil {
		id := *a.ItemID
		cp.ItemID = &id
	}
	return &cp
}

// CloneItem returns a deep copy of the transit item row.
func CloneItem(it *TransitItem) *TransitItem {
	cp := *it
	return &cp
}

// Clone returns a deep copy of the whole graph.
func (g *Graph) Clone() *Graph {
	out := NewGraph()
	for _, s := range g.Steps {
		out.Steps = append(out.Steps, CloneStep(s))
	}
	for _, s := range g.Stops {
		out.Stops = append(out.Stops, CloneStop(s))
	}
	for _, a := range g.Actions {
		out.Actions = append(out.Actions, CloneAction(a))
	}
	for _, it := range g.Items {
		out.Items = append(out.Items, CloneItem(it))
	}
	return out
}
