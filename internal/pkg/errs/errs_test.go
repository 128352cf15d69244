package errs_test

import (
	"errors"
	"testing"

	"orderflow/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectNotFoundError(t *testing.T) {
	t.Run("NewObjectNotFoundError", func(t *testing.T) {
		err := errs.NewObjectNotFoundError("orderId", "123")

		assert.Equal(t, "orderId", err.ParamName)
		assert.Equal(t, "123", err.ID)
		require.NoError(t, err.Cause)
		assert.Equal(t, "object not found: 123", err.Error())
		assert.Equal(t, errs.ErrObjectNotFound, err.Unwrap())
	})

	t.Run("NewObjectNotFoundErrorWithCause", func(t *testing.T) {
		cause := errors.New("database connection failed")
		err := errs.NewObjectNotFoundErrorWithCause("orderId", "123", cause)

		assert.Equal(t, cause, err.Cause)
		assert.Equal(t,
			"object not found: param is: orderId, ID is: 123 (cause: database connection failed)",
			err.Error())
		assert.True(t, errors.Is(err, errs.ErrObjectNotFound))
	})
}

func TestValueErrors(t *testing.T) {
	t.Run("required", func(t *testing.T) {
		err := errs.NewValueIsRequiredError("clientId")

		assert.Equal(t, "value is required: clientId", err.Error())
		assert.True(t, errors.Is(err, errs.ErrValueIsRequired))
	})

	t.Run("invalid with cause", func(t *testing.T) {
		cause := errors.New("latitude out of range")
		err := errs.NewValueIsInvalidErrorWithCause("location", cause)

		assert.Equal(t, "value is invalid: location (cause: latitude out of range)", err.Error())
		assert.True(t, errors.Is(err, errs.ErrValueIsInvalid))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("single finding", func(t *testing.T) {
		err := errs.NewValidationError(errs.SeverityError, "stops[1].actions[0]", "non-viable step")

		assert.Equal(t, errs.SeverityError, err.Severity)
		assert.Equal(t, "validation failed [ERROR] stops[1].actions[0]: non-viable step", err.Error())
		assert.True(t, errors.Is(err, errs.ErrValidation))
	})

	t.Run("collection joins findings and keeps the sentinel", func(t *testing.T) {
		findings := errs.ValidationErrors{
			errs.NewValidationError(errs.SeverityError, "stops[0]", "non-viable step"),
			errs.NewValidationError(errs.SeverityWarning, "items[2]", "incomplete mission"),
		}

		assert.Contains(t, findings.Error(), "ERROR")
		assert.Contains(t, findings.Error(), "WARNING")
		assert.True(t, errors.Is(findings, errs.ErrValidation))
	})

	t.Run("message with newline is flattened", func(t *testing.T) {
		err := errs.NewValidationError(errs.SeverityError, "stops[0]", "bad\nvalue")

		assert.NotContains(t, err.Error(), "\n")
		assert.Contains(t, err.Error(), "bad value")
	})
}

func TestConflictError(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		err := errs.NewConflictError("offer no longer valid")

		assert.Equal(t, "conflict: offer no longer valid", err.Error())
		assert.True(t, errors.Is(err, errs.ErrConflict))
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("presence changed")
		err := errs.NewConflictErrorWithCause("offer", cause)

		assert.Equal(t, "conflict: offer (cause: presence changed)", err.Error())
		assert.Equal(t, cause, err.Cause)
	})
}

func TestAuthorizationError(t *testing.T) {
	err := errs.NewAuthorizationError("driver-7", "order-9")

	assert.Equal(t, "not authorized: driver-7 on order-9", err.Error())
	assert.True(t, errors.Is(err, errs.ErrUnauthorized))
}

func TestExternalServiceError(t *testing.T) {
	cause := errors.New("connection refused")
	err := errs.NewExternalServiceError("router", cause)

	assert.Equal(t, "external service failure: router (cause: connection refused)", err.Error())
	assert.True(t, errors.Is(err, errs.ErrExternalService))
}

func TestBusinessRuleError(t *testing.T) {
	err := errs.NewBusinessRuleError("internal dispatch requires a company context")

	assert.Equal(t, "business rule violated: internal dispatch requires a company context", err.Error())
	assert.True(t, errors.Is(err, errs.ErrBusinessRule))
}
