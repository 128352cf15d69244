// Package order contains the order aggregate and its structural graph.
//
// An Order is the aggregate root for a multi-stop delivery job. Its
// structure is the Step -> Stop -> Action graph, where actions optionally
// reference transit items (the cargo being moved). Every structural row is
// either canonical (the driver-visible truth) or a shadow (an uncommitted
// proposed replacement, tagged with the id of the canonical row it would
// replace on merge). Shadows let a client restructure an in-flight order
// without disturbing the driver currently executing it.
//
// The aggregate also owns the execution state machine: field events
// (arrival, proof-gated completion, freeze/unfreeze) roll up Action ->
// Stop -> Step -> Order status through a single cascade, so concurrent
// writers serialized on the order row can never double-apply a transition.
package order
