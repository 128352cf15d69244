package services

import (
	"fmt"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

// View selects which read model of the structural graph to build.
type View int

const (
	// ViewClient includes uncommitted pending changes.
	ViewClient View = iota
	// ViewDriver is the canonical graph the driver executes. The driver
	// never sees unmerged edits: rows flagged for deletion stay visible
	// until the flag is applied by a merge.
	ViewDriver
)

// ShadowMerge implements the copy-on-write editing model for order
// structure. While an order is Draft its rows are mutated directly; once
// submitted, every edit lands as a shadow row and only a merge (push) or a
// revert touches what the driver reads.
//
// View construction and merging are pure transforms over the row sets, so
// they are testable without persistence.
type ShadowMerge struct{}

// NewShadowMerge creates a ShadowMerge service instance.
func NewShadowMerge() ShadowMerge {
	return ShadowMerge{}
}

// UpsertStep applies a step edit: direct for Draft orders, copy-on-write
// otherwise. A row id unknown to the graph is a create.
func (sm ShadowMerge) UpsertStep(o *order.Order, row *order.Step) error {
	if err := o.Validate(); err != nil {
		return err
	}
	g := o.Graph()
	target := g.FindStep(row.ID)

	if target == nil {
		return sm.create(o, func() { g.Steps = append(g.Steps, row) }, &row.ShadowMeta)
	}
	if o.IsDraft() || target.IsShadow() {
		copyStepFields(target, row)
		target.RevisedAt = time.Now()
		return nil
	}

	shadow := sm.findStepShadow(g, target.ID)
	if shadow == nil {
		shadow = order.CloneStep(target)
		shadow.ID = kernel.NewUUID()
		shadow.IsPendingChange = true
		origID := target.ID
		shadow.OriginalID = &origID
		g.Steps = append(g.Steps, shadow)
	}
	copyStepFields(shadow, row)
	shadow.RevisedAt = time.Now()
	o.SetPendingChanges(true)
	return nil
}

// UpsertStop applies a stop edit. Shadow-cloning a stop also clones its live
// actions as child shadows so the pending subtree stays internally
// consistent.
func (sm ShadowMerge) UpsertStop(o *order.Order, row *order.Stop) error {
	if err := o.Validate(); err != nil {
		return err
	}
	g := o.Graph()
	target := g.FindStop(row.ID)

	if target == nil {
		if step := g.FindStep(row.StepID); step == nil {
			return errs.NewObjectNotFoundError("step", row.StepID.String())
		}
		return sm.create(o, func() { g.Stops = append(g.Stops, row) }, &row.ShadowMeta)
	}
	if o.IsDraft() || target.IsShadow() {
		copyStopFields(target, row)
		target.RevisedAt = time.Now()
		return nil
	}

	shadow := sm.findStopShadow(g, target.ID)
	if shadow == nil {
		shadow = order.CloneStop(target)
		shadow.ID = kernel.NewUUID()
		shadow.IsPendingChange = true
		origID := target.ID
		shadow.OriginalID = &origID
		g.Stops = append(g.Stops, shadow)

		// Child shadows keep the pending stop self-contained.
		for _, a := range g.ActionsOfStop(target.ID) {
			if a.IsShadow() || sm.findActionShadow(g, a.ID) != nil {
				continue
			}
			child := order.CloneAction(a)
			child.ID = kernel.NewUUID()
			child.IsPendingChange = true
			actionOrig := a.ID
			child.OriginalID = &actionOrig
			child.StopID = shadow.ID
			child.RevisedAt = time.Now()
			g.Actions = append(g.Actions, child)
		}
	}
	copyStopFields(shadow, row)
	shadow.RevisedAt = time.Now()
	o.SetPendingChanges(true)
	return nil
}

// UpsertAction applies an action edit: direct for Draft orders,
// copy-on-write otherwise.
func (sm ShadowMerge) UpsertAction(o *order.Order, row *order.Action) error {
	if err := o.Validate(); err != nil {
		return err
	}
	g := o.Graph()
	target := g.FindAction(row.ID)

	if target == nil {
		if stop := g.FindStop(row.StopID); stop == nil {
			return errs.NewObjectNotFoundError("stop", row.StopID.String())
		}
		return sm.create(o, func() { g.Actions = append(g.Actions, row) }, &row.ShadowMeta)
	}
	if o.IsDraft() || target.IsShadow() {
		copyActionFields(target, row)
		target.RevisedAt = time.Now()
		return nil
	}

	shadow := sm.findActionShadow(g, target.ID)
	if shadow == nil {
		shadow = order.CloneAction(target)
		shadow.ID = kernel.NewUUID()
		shadow.IsPendingChange = true
		origID := target.ID
		shadow.OriginalID = &origID
		g.Actions = append(g.Actions, shadow)
	}
	copyActionFields(shadow, row)
	shadow.RevisedAt = time.Now()
	o.SetPendingChanges(true)
	return nil
}

// UpsertItem applies a transit item edit.
func (sm ShadowMerge) UpsertItem(o *order.Order, row *order.TransitItem) error {
	if err := o.Validate(); err != nil {
		return err
	}
	g := o.Graph()
	target := g.FindItem(row.ID)

	if target == nil {
		return sm.create(o, func() { g.Items = append(g.Items, row) }, &row.ShadowMeta)
	}
	if o.IsDraft() || target.IsShadow() {
		copyItemFields(target, row)
		target.RevisedAt = time.Now()
		return nil
	}

	shadow := sm.findItemShadow(g, target.ID)
	if shadow == nil {
		shadow = order.CloneItem(target)
		shadow.ID = kernel.NewUUID()
		shadow.IsPendingChange = true
		origID := target.ID
		shadow.OriginalID = &origID
		g.Items = append(g.Items, shadow)
	}
	copyItemFields(shadow, row)
	shadow.RevisedAt = time.Now()
	o.SetPendingChanges(true)
	return nil
}

// DeleteStep removes a step. For Draft orders (or shadow targets) the row is
// hard-deleted with its subtree; a canonical row on a submitted order is
// only flagged for removal.
func (sm ShadowMerge) DeleteStep(o *order.Order, id kernel.UUID) error {
	g := o.Graph()
	target := g.FindStep(id)
	if target == nil {
		return errs.NewObjectNotFoundError("step", id.String())
	}
	if o.IsDraft() || target.IsShadow() {
		for _, stop := range g.StopsOfStep(id) {
			for _, a := range g.ActionsOfStop(stop.ID) {
				g.RemoveAction(a.ID)
			}
			g.RemoveStop(stop.ID)
		}
		g.RemoveStep(id)
		return nil
	}
	target.DeleteRequired = true
	o.SetPendingChanges(true)
	return nil
}

// DeleteStop removes a stop, with the same Draft/shadow vs canonical split.
func (sm ShadowMerge) DeleteStop(o *order.Order, id kernel.UUID) error {
	g := o.Graph()
	target := g.FindStop(id)
	if target == nil {
		return errs.NewObjectNotFoundError("stop", id.String())
	}
	if o.IsDraft() || target.IsShadow() {
		for _, a := range g.ActionsOfStop(id) {
			g.RemoveAction(a.ID)
		}
		g.RemoveStop(id)
		return nil
	}
	target.DeleteRequired = true
	o.SetPendingChanges(true)
	return nil
}

// DeleteAction removes an action, with the same Draft/shadow vs canonical
// split.
func (sm ShadowMerge) DeleteAction(o *order.Order, id kernel.UUID) error {
	g := o.Graph()
	target := g.FindAction(id)
	if target == nil {
		return errs.NewObjectNotFoundError("action", id.String())
	}
	if o.IsDraft() || target.IsShadow() {
		g.RemoveAction(id)
		return nil
	}
	target.DeleteRequired = true
	o.SetPendingChanges(true)
	return nil
}

// DeleteItem removes a transit item, with the same Draft/shadow vs canonical
// split.
func (sm ShadowMerge) DeleteItem(o *order.Order, id kernel.UUID) error {
	g := o.Graph()
	target := g.FindItem(id)
	if target == nil {
		return errs.NewObjectNotFoundError("transitItem", id.String())
	}
	if o.IsDraft() || target.IsShadow() {
		g.RemoveItem(id)
		return nil
	}
	target.DeleteRequired = true
	o.SetPendingChanges(true)
	return nil
}

// BuildView assembles a read model of the graph.
//
// ViewDriver returns canonical rows only: pending shadows are invisible and
// delete-flagged rows remain visible until merged, so an edit session never
// changes what the driver reads.
//
// ViewClient returns canonical rows without a delete flag, each replaced by
// its most recent surviving shadow where one exists, plus shadows that are
// brand-new additions. Rows are deep copies; mutating the view never
// touches the live graph.
func (sm ShadowMerge) BuildView(g *order.Graph, v View) *order.Graph {
	out := order.NewGraph()

	if v == ViewDriver {
		for _, s := range g.Steps {
			if !s.IsShadow() {
				out.Steps = append(out.Steps, order.CloneStep(s))
			}
		}
		for _, s := range g.Stops {
			if !s.IsShadow() {
				out.Stops = append(out.Stops, order.CloneStop(s))
			}
		}
		for _, a := range g.Actions {
			if !a.IsShadow() {
				out.Actions = append(out.Actions, order.CloneAction(a))
			}
		}
		for _, it := range g.Items {
			if !it.IsShadow() {
				out.Items = append(out.Items, order.CloneItem(it))
			}
		}
		return out
	}

	replacedSteps := sm.latestShadowByOriginal(len(g.Steps), func(i int) order.ShadowMeta { return g.Steps[i].ShadowMeta })
	replacedStops := sm.latestShadowByOriginal(len(g.Stops), func(i int) order.ShadowMeta { return g.Stops[i].ShadowMeta })
	replacedActions := sm.latestShadowByOriginal(len(g.Actions), func(i int) order.ShadowMeta { return g.Actions[i].ShadowMeta })
	replacedItems := sm.latestShadowByOriginal(len(g.Items), func(i int) order.ShadowMeta { return g.Items[i].ShadowMeta })

	for i, s := range g.Steps {
		if includeInClientView(s.ShadowMeta, i, replacedSteps, func(j int) kernel.UUID { return g.Steps[j].ID }) {
			out.Steps = append(out.Steps, order.CloneStep(s))
		}
	}
	for i, s := range g.Stops {
		if includeInClientView(s.ShadowMeta, i, replacedStops, func(j int) kernel.UUID { return g.Stops[j].ID }) {
			out.Stops = append(out.Stops, order.CloneStop(s))
		}
	}
	for i, a := range g.Actions {
		if includeInClientView(a.ShadowMeta, i, replacedActions, func(j int) kernel.UUID { return g.Actions[j].ID }) {
			out.Actions = append(out.Actions, order.CloneAction(a))
		}
	}
	for i, it := range g.Items {
		if includeInClientView(it.ShadowMeta, i, replacedItems, func(j int) kernel.UUID { return g.Items[j].ID }) {
			out.Items = append(out.Items, order.CloneItem(it))
		}
	}
	return out
}

// latestShadowByOriginal maps originalID -> index of the most recent shadow
// pointing at it. Repeated edits therefore collapse to one surviving shadow.
func (sm ShadowMerge) latestShadowByOriginal(n int, metaAt func(int) order.ShadowMeta) map[string]int {
	latest := make(map[string]int)
	for i := 0; i < n; i++ {
		m := metaAt(i)
		if !m.IsPendingChange || m.OriginalID == nil {
			continue
		}
		key := m.OriginalID.String()
		if prev, ok := latest[key]; !ok || m.RevisedAt.After(metaAt(prev).RevisedAt) {
			latest[key] = i
		}
	}
	return latest
}

// includeInClientView decides row membership for the client view.
func includeInClientView(m order.ShadowMeta, idx int, latest map[string]int, idAt func(int) kernel.UUID) bool {
	if m.IsPendingChange {
		if m.OriginalID == nil {
			return true
		}
		return latest[m.OriginalID.String()] == idx
	}
	if m.DeleteRequired {
		return false
	}
	// A canonical row replaced by a surviving shadow is hidden.
	_, replaced := latest[idAt(idx).String()]
	return !replaced
}

// Merge applies every surviving shadow onto its canonical counterpart,
// reveals brand-new additions, relinks foreign keys held against shadow ids,
// applies requested deletions (cascading children) and clears the
// pending-changes flag. Validation and transaction scope belong to the
// caller.
func (sm ShadowMerge) Merge(o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	g := o.Graph()

	// originalID of shadow -> surviving shadow id, for orphan-duplicate
	// cleanup; shadow id -> canonical id, for relinking.
	relink := make(map[string]kernel.UUID)

	stepShadows := sm.latestShadowByOriginal(len(g.Steps), func(i int) order.ShadowMeta { return g.Steps[i].ShadowMeta })
	stopShadows := sm.latestShadowByOriginal(len(g.Stops), func(i int) order.ShadowMeta { return g.Stops[i].ShadowMeta })
	actionShadows := sm.latestShadowByOriginal(len(g.Actions), func(i int) order.ShadowMeta { return g.Actions[i].ShadowMeta })
	itemShadows := sm.latestShadowByOriginal(len(g.Items), func(i int) order.ShadowMeta { return g.Items[i].ShadowMeta })

	for i, s := range g.Steps {
		if !s.IsShadow() {
			continue
		}
		if s.OriginalID == nil {
			s.IsPendingChange = false
			continue
		}
		if stepShadows[s.OriginalID.String()] != i {
			continue
		}
		canonical := g.FindStep(*s.OriginalID)
		if canonical == nil {
			return errs.NewConflictErrorWithCause("stale shadow",
				fmt.Errorf("step shadow %s has no canonical %s", s.ID, s.OriginalID))
		}
		copyStepFields(canonical, s)
		relink[s.ID.String()] = canonical.ID
	}

	for i, s := range g.Stops {
		if !s.IsShadow() {
			continue
		}
		if s.OriginalID == nil {
			s.IsPendingChange = false
			continue
		}
		if stopShadows[s.OriginalID.String()] != i {
			continue
		}
		canonical := g.FindStop(*s.OriginalID)
		if canonical == nil {
			return errs.NewConflictErrorWithCause("stale shadow",
				fmt.Errorf("stop shadow %s has no canonical %s", s.ID, s.OriginalID))
		}
		copyStopFields(canonical, s)
		relink[s.ID.String()] = canonical.ID
	}

	for i, a := range g.Actions {
		if !a.IsShadow() {
			continue
		}
		if a.OriginalID == nil {
			a.IsPendingChange = false
			continue
		}
		if actionShadows[a.OriginalID.String()] != i {
			continue
		}
		canonical := g.FindAction(*a.OriginalID)
		if canonical == nil {
			return errs.NewConflictErrorWithCause("stale shadow",
				fmt.Errorf("action shadow %s has no canonical %s", a.ID, a.OriginalID))
		}
		copyActionFields(canonical, a)
		relink[a.ID.String()] = canonical.ID
	}

	for i, it := range g.Items {
		if !it.IsShadow() {
			continue
		}
		if it.OriginalID == nil {
			it.IsPendingChange = false
			continue
		}
		if itemShadows[it.OriginalID.String()] != i {
			continue
		}
		canonical := g.FindItem(*it.OriginalID)
		if canonical == nil {
			return errs.NewConflictErrorWithCause("stale shadow",
				fmt.Errorf("item shadow %s has no canonical %s", it.ID, it.OriginalID))
		}
		copyItemFields(canonical, it)
		relink[it.ID.String()] = canonical.ID
	}

	// Relink foreign keys other rows held against shadow ids, then drop
	// every remaining shadow row.
	for _, s := range g.Stops {
		if id, ok := relink[s.StepID.String()]; ok {
			s.StepID = id
		}
	}
	for _, a := range g.Actions {
		if id, ok := relink[a.StopID.String()]; ok {
			a.StopID = id
		}
		if a.ItemID != nil {
			if id, ok := relink[a.ItemID.String()]; ok {
				a.ItemID = &id
			}
		}
	}

	sm.dropShadows(g)
	sm.applyDeletions(g)
	sm.dropOrphanItems(g)
	o.SetPendingChanges(false)
	return nil
}

// Revert discards every shadow, clears delete flags and the pending-changes
// flag, and cleans up transit items no longer referenced by any surviving
// action. The client view returns to exact equality with the driver view.
func (sm ShadowMerge) Revert(o *order.Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	g := o.Graph()

	sm.dropShadows(g)
	for _, s := range g.Steps {
		s.DeleteRequired = false
	}
	for _, s := range g.Stops {
		s.DeleteRequired = false
	}
	for _, a := range g.Actions {
		a.DeleteRequired = false
	}
	for _, it := range g.Items {
		it.DeleteRequired = false
	}
	sm.dropOrphanItems(g)
	o.SetPendingChanges(false)
	return nil
}

func (sm ShadowMerge) dropShadows(g *order.Graph) {
	var ids []kernel.UUID
	for _, s := range g.Steps {
		if s.IsShadow() {
			ids = append(ids, s.ID)
		}
	}
	for _, id := range ids {
		g.RemoveStep(id)
	}
	ids = ids[:0]
	for _, s := range g.Stops {
		if s.IsShadow() {
			ids = append(ids, s.ID)
		}
	}
	for _, id := range ids {
		g.RemoveStop(id)
	}
	ids = ids[:0]
	for _, a := range g.Actions {
		if a.IsShadow() {
			ids = append(ids, a.ID)
		}
	}
	for _, id := range ids {
		g.RemoveAction(id)
	}
	ids = ids[:0]
	for _, it := range g.Items {
		if it.IsShadow() {
			ids = append(ids, it.ID)
		}
	}
	for _, id := range ids {
		g.RemoveItem(id)
	}
}

// applyDeletions removes delete-flagged canonical rows, cascading to
// children.
func (sm ShadowMerge) applyDeletions(g *order.Graph) {
	var stepIDs []kernel.UUID
	for _, s := range g.Steps {
		if s.DeleteRequired {
			stepIDs = append(stepIDs, s.ID)
		}
	}
	for _, id := range stepIDs {
		for _, stop := range g.StopsOfStep(id) {
			stop.DeleteRequired = true
		}
		g.RemoveStep(id)
	}

	var stopIDs []kernel.UUID
	for _, s := range g.Stops {
		if s.DeleteRequired {
			stopIDs = append(stopIDs, s.ID)
		}
	}
	for _, id := range stopIDs {
		for _, a := range g.ActionsOfStop(id) {
			g.RemoveAction(a.ID)
		}
		g.RemoveStop(id)
	}

	var actionIDs []kernel.UUID
	for _, a := range g.Actions {
		if a.DeleteRequired {
			actionIDs = append(actionIDs, a.ID)
		}
	}
	for _, id := range actionIDs {
		g.RemoveAction(id)
	}

	var itemIDs []kernel.UUID
	for _, it := range g.Items {
		if it.DeleteRequired {
			itemIDs = append(itemIDs, it.ID)
		}
	}
	for _, id := range itemIDs {
		var referencing []kernel.UUID
		for _, a := range g.Actions {
			if a.ItemID != nil && a.ItemID.IsEqual(id) {
				referencing = append(referencing, a.ID)
			}
		}
		for _, actionID := range referencing {
			g.RemoveAction(actionID)
		}
		g.RemoveItem(id)
	}
}

// dropOrphanItems removes canonical items no action references anymore.
func (sm ShadowMerge) dropOrphanItems(g *order.Graph) {
	referenced := make(map[string]bool)
	for _, a := range g.Actions {
		if a.ItemID != nil {
			referenced[a.ItemID.String()] = true
		}
	}
	var orphanIDs []kernel.UUID
	for _, it := range g.Items {
		if !it.IsShadow() && !referenced[it.ID.String()] {
			orphanIDs = append(orphanIDs, it.ID)
		}
	}
	for _, id := range orphanIDs {
		g.RemoveItem(id)
	}
}

func (sm ShadowMerge) create(o *order.Order, insert func(), meta *order.ShadowMeta) error {
	meta.RevisedAt = time.Now()
	if o.IsDraft() {
		meta.IsPendingChange = false
		meta.OriginalID = nil
		insert()
		return nil
	}
	meta.IsPendingChange = true
	meta.OriginalID = nil
	insert()
	o.SetPendingChanges(true)
	return nil
}

func (sm ShadowMerge) findStepShadow(g *order.Graph, originalID kernel.UUID) *order.Step {
	for _, s := range g.Steps {
		if s.IsShadow() && s.OriginalID != nil && s.OriginalID.IsEqual(originalID) {
			return s
		}
	}
	return nil
}

func (sm ShadowMerge) findStopShadow(g *order.Graph, originalID kernel.UUID) *order.Stop {
	for _, s := range g.Stops {
		if s.IsShadow() && s.OriginalID != nil && s.OriginalID.IsEqual(originalID) {
			return s
		}
	}
	return nil
}

func (sm ShadowMerge) findActionShadow(g *order.Graph, originalID kernel.UUID) *order.Action {
	for _, a := range g.Actions {
		if a.IsShadow() && a.OriginalID != nil && a.OriginalID.IsEqual(originalID) {
			return a
		}
	}
	return nil
}

func (sm ShadowMerge) findItemShadow(g *order.Graph, originalID kernel.UUID) *order.TransitItem {
	for _, it := range g.Items {
		if it.IsShadow() && it.OriginalID != nil && it.OriginalID.IsEqual(originalID) {
			return it
		}
	}
	return nil
}

// copyStepFields moves the client-mutable fields; execution state (status,
// path trace) stays with the destination row.
func copyStepFields(dst, src *order.Step) {
	dst.OrderIndex = src.OrderIndex
	dst.Label = src.Label
}

func copyStopFields(dst, src *order.Stop) {
	dst.Address = src.Address
	dst.Location = src.Location
	dst.Sequence = src.Sequence
}

func copyActionFields(dst, src *order.Action) {
	dst.Kind = src.Kind
	dst.Quantity = src.Quantity
	dst.ServiceTime = src.ServiceTime
	dst.Proofs = append([]order.ActionProof(nil), src.Proofs...)
	if src.ItemID != nil {
		id := *src.ItemID
		dst.ItemID = &id
	} else {
		dst.ItemID = nil
	}
}

func copyItemFields(dst, src *order.TransitItem) {
	dst.Label = src.Label
	dst.WeightKg = src.WeightKg
}
