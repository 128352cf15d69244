// Package errs provides standardized error types for the order lifecycle
// engine. It implements a consistent pattern for error creation, formatting,
// and unwrapping that is used throughout the application.
//
// Each error type follows the same shape:
//   - A sentinel error variable (e.g. ErrConflict) for errors.Is checks
//   - A struct type carrying the error details
//   - Constructor functions with and without a wrapped cause
//   - Error() formatting and Unwrap() to the sentinel
//
// On top of the base value/object errors the package carries the lifecycle
// taxonomy: ValidationError (severity ERROR/WARNING plus the path of the
// offending element, collectable via ValidationErrors), ConflictError for
// stale-state races, AuthorizationError, ExternalServiceError for failed
// collaborator calls, and BusinessRuleError for structurally valid but
// forbidden operations.
package errs
