package kernel_test

import (
	"testing"

	"orderflow/internal/core/domain/model/kernel"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID(t *testing.T) {
	t.Run("new UUID is valid and unique", func(t *testing.T) {
		a := kernel.NewUUID()
		b := kernel.NewUUID()

		require.NoError(t, a.Validate())
		require.NoError(t, b.Validate())
		assert.False(t, a.IsEqual(b))
	})

	t.Run("round-trips through string", func(t *testing.T) {
		a := kernel.NewUUID()

		b, err := kernel.UUIDFromString(a.String())

		require.NoError(t, err)
		assert.True(t, a.IsEqual(b))
	})

	t.Run("round-trips through bytes", func(t *testing.T) {
		a := kernel.NewUUID()
		raw := a.Bytes()

		b, err := kernel.UUIDFromBytes(raw[:])

		require.NoError(t, err)
		assert.True(t, a.IsEqual(b))
	})

	t.Run("rejects malformed string", func(t *testing.T) {
		_, err := kernel.UUIDFromString("not-a-uuid")

		require.Error(t, err)
	})

	t.Run("rejects nil UUID string", func(t *testing.T) {
		_, err := kernel.UUIDFromString("00000000-0000-0000-0000-000000000000")

		require.Error(t, err)
	})

	t.Run("zero value fails validation", func(t *testing.T) {
		var id kernel.UUID

		err := id.Validate()

		require.Error(t, err)
		assert.Equal(t, kernel.ErrUUIDIsNotConstructed, err)
	})
}
