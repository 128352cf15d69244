// Package ports defines the contracts between the domain layer and
// infrastructure: persistence, the driver presence cache and the external
// collaborators (geocoder, router, solver, compliance, notifications).
// These interfaces enable dependency inversion and testability.
package ports

import (
	"context"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
)

// OrderRepository defines the persistence contract for order aggregates,
// including their full structural graph.
type OrderRepository interface {
	// Add persists a new order aggregate with its graph.
	Add(ctx context.Context, aggregate *order.Order) error

	// Update persists changes to an existing order aggregate and its
	// graph rows.
	Update(ctx context.Context, aggregate *order.Order) error

	// Get retrieves an order aggregate by id.
	Get(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// GetForUpdate retrieves an order while taking a pessimistic row lock
	// on it, serializing concurrent edits of the same order. Only valid
	// inside a transaction.
	GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error)

	// GetAllDispatchable retrieves pending orders holding no live
	// unexpired offer, oldest first.
	GetAllDispatchable(ctx context.Context) ([]*order.Order, error)
}
