// Package kernel provides core domain primitives for the order lifecycle
// engine. It implements the fundamental building blocks used throughout the
// domain model.
//
// The package includes:
//   - UUID: a value object for unique identifiers with validation and comparison
//   - GeoPoint: a WGS84 coordinate value object with great-circle distance
//
// These primitives enforce domain invariants and validation rules so that
// domain objects are always in a valid state. They are immutable and
// thread-safe, suitable for concurrent use.
package kernel
