package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used for classification via errors.Is.
var (
	ErrValueIsRequired = errors.New("value is required")
	ErrValueIsInvalid  = errors.New("value is invalid")
	ErrObjectNotFound  = errors.New("object not found")
	ErrValidation      = errors.New("validation failed")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("not authorized")
	ErrExternalService = errors.New("external service failure")
	ErrBusinessRule    = errors.New("business rule violated")
)

// sanitize flattens newlines so error messages stay single-line in logs.
func sanitize(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

// ValueIsRequiredError indicates a missing required value.
type ValueIsRequiredError struct {
	ParamName string
	Cause     error
}

// NewValueIsRequiredError creates an error for a missing required value.
func NewValueIsRequiredError(paramName string) *ValueIsRequiredError {
	return &ValueIsRequiredError{ParamName: paramName}
}

// NewValueIsRequiredErrorWithCause creates an error for a missing required value
// wrapping the underlying cause.
func NewValueIsRequiredErrorWithCause(paramName string, cause error) *ValueIsRequiredError {
	return &ValueIsRequiredError{ParamName: paramName, Cause: cause}
}

func (e *ValueIsRequiredError) Error() string {
	if e.Cause != nil {
		return sanitize(fmt.Sprintf("%s: %s (cause: %v)", ErrValueIsRequired, e.ParamName, e.Cause))
	}
	return sanitize(fmt.Sprintf("%s: %s", ErrValueIsRequired, e.ParamName))
}

func (e *ValueIsRequiredError) Unwrap() error {
	return ErrValueIsRequired
}

// ValueIsInvalidError indicates a value that fails validation rules.
type ValueIsInvalidError struct {
	ParamName string
	Cause     error
}

// NewValueIsInvalidError creates an error for an invalid value.
func NewValueIsInvalidError(paramName string) *ValueIsInvalidError {
	return &ValueIsInvalidError{ParamName: paramName}
}

// NewValueIsInvalidErrorWithCause creates an error for an invalid value
// wrapping the underlying cause.
func NewValueIsInvalidErrorWithCause(paramName string, cause error) *ValueIsInvalidError {
	return &ValueIsInvalidError{ParamName: paramName, Cause: cause}
}

func (e *ValueIsInvalidError) Error() string {
	if e.Cause != nil {
		return sanitize(fmt.Sprintf("%s: %s (cause: %v)", ErrValueIsInvalid, e.ParamName, e.Cause))
	}
	return sanitize(fmt.Sprintf("%s: %s", ErrValueIsInvalid, e.ParamName))
}

func (e *ValueIsInvalidError) Unwrap() error {
	return ErrValueIsInvalid
}

// ObjectNotFoundError indicates that a requested object does not exist.
type ObjectNotFoundError struct {
	ParamName string
	ID        any
	Cause     error
}

// NewObjectNotFoundError creates an error for a missing object.
func NewObjectNotFoundError(paramName string, id any) *ObjectNotFoundError {
	return &ObjectNotFoundError{ParamName: paramName, ID: id}
}

// NewObjectNotFoundErrorWithCause creates an error for a missing object
// wrapping the underlying cause.
func NewObjectNotFoundErrorWithCause(paramName string, id any, cause error) *ObjectNotFoundError {
	return &ObjectNotFoundError{ParamName: paramName, ID: id, Cause: cause}
}

func (e *ObjectNotFoundError) Error() string {
	if e.Cause != nil {
		return sanitize(fmt.Sprintf("%s: param is: %s, ID is: %s (cause: %v)",
			ErrObjectNotFound, e.ParamName, e.ID, e.Cause))
	}
	return sanitize(fmt.Sprintf("%s: %s", ErrObjectNotFound, e.ID))
}

func (e *ObjectNotFoundError) Unwrap() error {
	return ErrObjectNotFound
}

// Severity classifies a validation finding. Both severities block
// submission; they differ only in how they are reported to the client.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// ValidationError describes a single structural validation finding with the
// path of the offending element. Findings are collected, never dropped.
type ValidationError struct {
	Severity Severity
	Path     string
	Message  string
}

// NewValidationError creates a blocking validation finding.
func NewValidationError(severity Severity, path, message string) *ValidationError {
	return &ValidationError{Severity: severity, Path: path, Message: message}
}

func (e *ValidationError) Error() string {
	return sanitize(fmt.Sprintf("%s [%s] %s: %s", ErrValidation, e.Severity, e.Path, e.Message))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidationErrors aggregates findings from a whole validation pass.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e ValidationErrors) Unwrap() error {
	return ErrValidation
}

// ConflictError indicates a concurrent-modification or stale-state conflict:
// a locked row, a stale shadow, an offer that is no longer valid.
type ConflictError struct {
	ParamName string
	Cause     error
}

// NewConflictError creates an error for a state conflict.
func NewConflictError(paramName string) *ConflictError {
	return &ConflictError{ParamName: paramName}
}

// NewConflictErrorWithCause creates a state conflict error wrapping the cause.
func NewConflictErrorWithCause(paramName string, cause error) *ConflictError {
	return &ConflictError{ParamName: paramName, Cause: cause}
}

func (e *ConflictError) Error() string {
	if e.Cause != nil {
		return sanitize(fmt.Sprintf("%s: %s (cause: %v)", ErrConflict, e.ParamName, e.Cause))
	}
	return sanitize(fmt.Sprintf("%s: %s", ErrConflict, e.ParamName))
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// AuthorizationError indicates the acting party is not the owner, assignee
// or an administrator of the affected resource.
type AuthorizationError struct {
	Actor    string
	Resource string
}

// NewAuthorizationError creates an error for a forbidden access.
func NewAuthorizationError(actor, resource string) *AuthorizationError {
	return &AuthorizationError{Actor: actor, Resource: resource}
}

func (e *AuthorizationError) Error() string {
	return sanitize(fmt.Sprintf("%s: %s on %s", ErrUnauthorized, e.Actor, e.Resource))
}

func (e *AuthorizationError) Unwrap() error {
	return ErrUnauthorized
}

// ExternalServiceError indicates a collaborator (router, solver, geocoder,
// wallet) was unreachable or rejected the call.
type ExternalServiceError struct {
	Service string
	Cause   error
}

// NewExternalServiceError creates an error for a failed collaborator call.
func NewExternalServiceError(service string, cause error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Cause: cause}
}

func (e *ExternalServiceError) Error() string {
	if e.Cause != nil {
		return sanitize(fmt.Sprintf("%s: %s (cause: %v)", ErrExternalService, e.Service, e.Cause))
	}
	return sanitize(fmt.Sprintf("%s: %s", ErrExternalService, e.Service))
}

func (e *ExternalServiceError) Unwrap() error {
	return ErrExternalService
}

// BusinessRuleError indicates an operation that is structurally valid but
// forbidden by a domain rule.
type BusinessRuleError struct {
	Rule string
}

// NewBusinessRuleError creates an error for a violated domain rule.
func NewBusinessRuleError(rule string) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule}
}

func (e *BusinessRuleError) Error() string {
	return sanitize(fmt.Sprintf("%s: %s", ErrBusinessRule, e.Rule))
}

func (e *BusinessRuleError) Unwrap() error {
	return ErrBusinessRule
}
