package order

import (
	"fmt"

	"orderflow/internal/pkg/errs"
)

// Status represents the lifecycle state of an order.
//
// State transitions:
//
//	Draft ──> Pending ──> Accepted ──> {Delivered, Failed}
//	            │   │
//	            │   └──> NoDriverAvailable
//	            └──────> Cancelled  (also from Draft and Accepted)
//
// Delivered, Failed, Cancelled and NoDriverAvailable are terminal.
type Status int

const (
	// StatusUnknown represents an invalid or undefined status.
	StatusUnknown Status = iota

	// StatusDraft is the initial status. Draft orders are freely mutable.
	StatusDraft

	// StatusPending means the order was submitted and awaits dispatch.
	StatusPending

	// StatusAccepted means a driver accepted the mission and is executing it.
	StatusAccepted

	// StatusDelivered is the successful terminal status.
	StatusDelivered

	// StatusFailed is the unsuccessful terminal status.
	StatusFailed

	// StatusCancelled means the client cancelled before completion.
	StatusCancelled

	// StatusNoDriverAvailable means dispatch exhausted its candidates.
	StatusNoDriverAvailable
)

func getStatusStrings() map[Status]string {
	return map[Status]string{
		StatusUnknown:           "Unknown",
		StatusDraft:             "Draft",
		StatusPending:           "Pending",
		StatusAccepted:          "Accepted",
		StatusDelivered:         "Delivered",
		StatusFailed:            "Failed",
		StatusCancelled:         "Cancelled",
		StatusNoDriverAvailable: "NoDriverAvailable",
	}
}

// Validate checks the Status is one of the defined values.
func (s Status) Validate() error {
	if s == StatusUnknown {
		return errs.NewValueIsInvalidErrorWithCause("status",
			fmt.Errorf("%d is not a valid status", s))
	}
	if _, ok := getStatusStrings()[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("status",
			fmt.Errorf("%d is not a valid status", s))
	}
	return nil
}

// String implements fmt.Stringer.
func (s Status) String() string {
	if str, ok := getStatusStrings()[s]; ok {
		return str
	}
	return "Unknown"
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusFailed, StatusCancelled, StatusNoDriverAvailable:
		return true
	default:
		return false
	}
}

// Submit transitions Draft -> Pending.
func (s Status) Submit() (Status, error) {
	if s != StatusDraft {
		return 0, errs.NewValueIsInvalidErrorWithCause("status",
			fmt.Errorf("%s is not a valid status to submit", s))
	}
	return StatusPending, nil
}

// Accept transitions Pending -> Accepted.
func (s Status) Accept() (Status, error) {
	if s != StatusPending {
		return 0, errs.NewConflictErrorWithCause("mission no longer pending",
			fmt.Errorf("%s is not a valid status to accept", s))
	}
	return StatusAccepted, nil
}

// Cancel transitions any non-terminal status -> Cancelled.
func (s Status) Cancel() (Status, error) {
	if s.IsTerminal() {
		return 0, errs.NewValueIsInvalidErrorWithCause("status",
			fmt.Errorf("%s is terminal and cannot be cancelled", s))
	}
	return StatusCancelled, nil
}

// StopStatus represents the lifecycle state of a stop.
type StopStatus int

const (
	StopUnknown StopStatus = iota
	// StopPending means the driver has not yet arrived.
	StopPending
	// StopArrived means the driver reported arrival; actions become executable.
	StopArrived
	// StopCompleted means every action terminated cleanly.
	StopCompleted
	// StopPartial means every action terminated but at least one is
	// frozen, failed or cancelled.
	StopPartial
	// StopFailed means the stop could not be serviced at all.
	StopFailed
)

func getStopStatusStrings() map[StopStatus]string {
	return map[StopStatus]string{
		StopUnknown:   "Unknown",
		StopPending:   "Pending",
		StopArrived:   "Arrived",
		StopCompleted: "Completed",
		StopPartial:   "Partial",
		StopFailed:    "Failed",
	}
}

// String implements fmt.Stringer.
func (s StopStatus) String() string {
	if str, ok := getStopStatusStrings()[s]; ok {
		return str
	}
	return "Unknown"
}

// IsTerminal reports whether the stop has finished servicing.
func (s StopStatus) IsTerminal() bool {
	switch s {
	case StopCompleted, StopPartial, StopFailed:
		return true
	default:
		return false
	}
}

// AllowsActionExecution reports whether actions at the stop may run.
// Actions are gated on physical presence: Arrived, or Partial while the
// driver resolves leftovers.
func (s StopStatus) AllowsActionExecution() bool {
	return s == StopArrived || s == StopPartial
}

// Arrive transitions Pending -> Arrived.
func (s StopStatus) Arrive() (StopStatus, error) {
	if s != StopPending {
		return 0, errs.NewConflictErrorWithCause("stop already visited",
			fmt.Errorf("%s is not a valid stop status to arrive", s))
	}
	return StopArrived, nil
}

// StepStatus represents the lifecycle state of a step.
type StepStatus int

const (
	StepUnknown StepStatus = iota
	StepPending
	StepInProgress
	StepCompleted
)

func getStepStatusStrings() map[StepStatus]string {
	return map[StepStatus]string{
		StepUnknown:    "Unknown",
		StepPending:    "Pending",
		StepInProgress: "InProgress",
		StepCompleted:  "Completed",
	}
}

// String implements fmt.Stringer.
func (s StepStatus) String() string {
	if str, ok := getStepStatusStrings()[s]; ok {
		return str
	}
	return "Unknown"
}

// ActionStatus represents the lifecycle state of an action.
//
// Pending -> {Completed, Frozen}; Frozen -> Pending (unfreeze).
// Completed, Cancelled and Failed are terminal. Frozen is deliberately
// non-terminal: a frozen action keeps its order open unless closure is
// forced.
type ActionStatus int

const (
	ActionUnknown ActionStatus = iota
	ActionPending
	ActionCompleted
	ActionFrozen
	ActionCancelled
	ActionFailed
)

func getActionStatusStrings() map[ActionStatus]string {
	return map[ActionStatus]string{
		ActionUnknown:   "Unknown",
		ActionPending:   "Pending",
		ActionCompleted: "Completed",
		ActionFrozen:    "Frozen",
		ActionCancelled: "Cancelled",
		ActionFailed:    "Failed",
	}
}

// String implements fmt.Stringer.
func (s ActionStatus) String() string {
	if str, ok := getActionStatusStrings()[s]; ok {
		return str
	}
	return "Unknown"
}

// IsTerminal reports whether the action can no longer change.
func (s ActionStatus) IsTerminal() bool {
	switch s {
	case ActionCompleted, ActionCancelled, ActionFailed:
		return true
	default:
		return false
	}
}

// Priority controls offer timeout: high-priority offers expire sooner so
// dispatch can move on to the next candidate.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// String implements fmt.Stringer.
func (p Priority) String() string {
	if p == PriorityHigh {
		return "High"
	}
	return "Normal"
}

// DispatchMode selects the driver-search strategy for a pending order.
type DispatchMode int

const (
	// DispatchGlobal searches the open pool around the pickup point.
	DispatchGlobal DispatchMode = iota
	// DispatchTarget offers to a specific driver (or that driver's company).
	DispatchTarget
	// DispatchInternal restricts the search to the order's company fleet.
	DispatchInternal
)

func getDispatchModeStrings() map[DispatchMode]string {
	return map[DispatchMode]string{
		DispatchGlobal:   "Global",
		DispatchTarget:   "Target",
		DispatchInternal: "Internal",
	}
}

// String implements fmt.Stringer.
func (m DispatchMode) String() string {
	if str, ok := getDispatchModeStrings()[m]; ok {
		return str
	}
	return "Global"
}
