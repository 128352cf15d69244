// Package services provides domain services that orchestrate business
// operations across multiple domain entities in the order lifecycle engine.
// It implements workflows that don't naturally belong to a single aggregate.
//
// The package includes:
//   - ShadowMerge: pure view/merge/revert functions over the structural graph
//   - Viability: the transit-item conservation checker shared by submit and push
//   - Dispatcher: driver selection for pending orders over the presence cache
//   - RoutePlanner: solver/router orchestration keeping route, ETA and price
//     consistent with reality
package services
