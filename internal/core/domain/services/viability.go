package services

import (
	"fmt"
	"sort"

	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

// Viability checks that a candidate execution ordering satisfies the
// transit-item conservation law: along the planned stop order, every item's
// running balance (pickups minus deliveries) never goes negative and ends at
// exactly zero.
//
// Both findings block submission; they differ only in reported severity. A
// delivery preceding its pickup is an ERROR ("non-viable step"); an item
// picked up but never fully delivered, or declared but never used, is a
// WARNING ("incomplete mission").
type Viability struct{}

// NewViability creates a Viability service instance.
func NewViability() Viability {
	return Viability{}
}

// CheckGraph validates a view graph in its planned execution order. Stops
// are ordered by Sequence (ties by step OrderIndex), matching the sequence
// the driver will run. Returns nil when the plan is viable.
func (v Viability) CheckGraph(g *order.Graph) errs.ValidationErrors {
	stops := append([]*order.Stop(nil), g.Stops...)
	sort.SliceStable(stops, func(i, j int) bool {
		if stops[i].Sequence != stops[j].Sequence {
			return stops[i].Sequence < stops[j].Sequence
		}
		si, sj := g.FindStep(stops[i].StepID), g.FindStep(stops[j].StepID)
		if si != nil && sj != nil {
			return si.OrderIndex < sj.OrderIndex
		}
		return false
	})

	var findings errs.ValidationErrors

	balances := make(map[string]int)
	used := make(map[string]bool)

	for i, stop := range stops {
		for _, a := range g.ActionsOfStop(stop.ID) {
			if a.ItemID == nil {
				continue
			}
			item := g.FindItem(*a.ItemID)
			if item == nil {
				findings = append(findings, errs.NewValidationError(errs.SeverityError,
					fmt.Sprintf("stops[%d].actions.%s", i, a.ID),
					"action references an unknown transit item"))
				continue
			}

			key := item.ID.String()
			used[key] = true
			switch a.Kind {
			case order.ActionPickup:
				balances[key] += a.Quantity
			case order.ActionDelivery:
				balances[key] -= a.Quantity
				if balances[key] < 0 {
					findings = append(findings, errs.NewValidationError(errs.SeverityError,
						fmt.Sprintf("stops[%d].actions.%s", i, a.ID),
						fmt.Sprintf("non-viable step: delivery of %q precedes its pickup", item.Label)))
					// Reset so one inversion is reported once, not at
					// every later stop.
					balances[key] = 0
				}
			}
		}
	}

	for _, item := range g.Items {
		key := item.ID.String()
		if !used[key] {
			findings = append(findings, errs.NewValidationError(errs.SeverityWarning,
				"items."+key,
				fmt.Sprintf("incomplete mission: item %q is never used", item.Label)))
			continue
		}
		if rest := balances[key]; rest != 0 {
			findings = append(findings, errs.NewValidationError(errs.SeverityWarning,
				"items."+key,
				fmt.Sprintf("incomplete mission: %d unit(s) of %q unaccounted for", rest, item.Label)))
		}
	}

	return findings
}
