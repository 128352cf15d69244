package ports

import (
	"context"
	"time"

	"orderflow/internal/core/domain/model/driver"
	"orderflow/internal/core/domain/model/kernel"
)

// PresenceStore is the ephemeral, eventually-consistent store of live driver
// state used for dispatch decisions. It is deliberately outside transaction
// scope: dispatch re-validates presence immediately before committing to an
// offer to bound the race window.
type PresenceStore interface {
	// Get returns the driver's presence, or a not-found error when the
	// session has expired or never existed.
	Get(ctx context.Context, driverID kernel.UUID) (*driver.Presence, error)

	// Set writes the driver's presence with the session TTL and keeps the
	// geo index consistent with the availability.
	Set(ctx context.Context, p *driver.Presence) error

	// CompareAndSwapAvailability atomically flips availability from,
	// expected to, next. Returns false without mutating anything when the
	// current availability no longer matches expected.
	CompareAndSwapAvailability(ctx context.Context, driverID kernel.UUID, expected, next driver.Availability) (bool, error)

	// SearchRadius returns drivers of the given availability within
	// radius meters of the center, nearest first.
	SearchRadius(ctx context.Context, center kernel.GeoPoint, radiusM float64, a driver.Availability) ([]*driver.Presence, error)

	// ListByAvailability returns every driver currently in the given
	// availability, with no geographic bound. Fleet-scoped selection
	// filters these by company membership rather than proximity.
	ListByAvailability(ctx context.Context, a driver.Availability) ([]*driver.Presence, error)

	// AddRejection records the driver in the order's rejection set with
	// the given TTL.
	AddRejection(ctx context.Context, orderID, driverID kernel.UUID, ttl time.Duration) error

	// IsRejected reports whether the driver refused the order within the
	// rejection TTL.
	IsRejected(ctx context.Context, orderID, driverID kernel.UUID) (bool, error)

	// AddActiveMission appends the order to the driver's active-job list.
	AddActiveMission(ctx context.Context, driverID, orderID kernel.UUID) error

	// ReleaseActiveMission removes the order from the driver's active-job
	// list, flipping a driver with no remaining missions back to ONLINE.
	ReleaseActiveMission(ctx context.Context, driverID, orderID kernel.UUID) error

	// AcquireLock takes a TTL-based advisory lock for the key. Returns
	// false when another holder owns it.
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// ReleaseLock drops the advisory lock.
	ReleaseLock(ctx context.Context, key string) error
}
