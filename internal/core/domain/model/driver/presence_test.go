package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"orderflow/internal/core/domain/model/kernel"
)

func TestAvailability_Validate(t *testing.T) {
	t.Run("defined values are valid", func(t *testing.T) {
		for _, availability := range []Availability{
			AvailabilityOffline, AvailabilityOnline, AvailabilityOffering, AvailabilityBusy,
		} {
			assert.NoError(t, availability.Validate())
		}
	})

	t.Run("unknown value is invalid", func(t *testing.T) {
		assert.Error(t, Availability("IDLE").Validate())
		assert.Error(t, Availability("").Validate())
	})
}

func TestPresence_Validate(t *testing.T) {
	t.Run("valid presence", func(t *testing.T) {
		p := &Presence{DriverID: kernel.NewUUID(), Availability: AvailabilityOnline}
		assert.NoError(t, p.Validate())
	})

	t.Run("nil presence", func(t *testing.T) {
		var p *Presence
		assert.Error(t, p.Validate())
	})

	t.Run("zero driver id", func(t *testing.T) {
		p := &Presence{Availability: AvailabilityOnline}
		assert.Error(t, p.Validate())
	})
}

func TestPresence_ChainingEligible(t *testing.T) {
	destination, err := kernel.NewGeoPoint(52.52, 13.40)
	assert.NoError(t, err)

	busy := func() *Presence {
		return &Presence{
			DriverID:        kernel.NewUUID(),
			Availability:    AvailabilityBusy,
			AllowChaining:   true,
			ActiveMissions:  []kernel.UUID{kernel.NewUUID()},
			NextDestination: &destination,
		}
	}

	t.Run("busy chaining driver under the ceiling", func(t *testing.T) {
		assert.True(t, busy().ChainingEligible(3))
	})

	t.Run("at the ceiling", func(t *testing.T) {
		p := busy()
		p.ActiveMissions = []kernel.UUID{kernel.NewUUID(), kernel.NewUUID(), kernel.NewUUID()}
		assert.False(t, p.ChainingEligible(3))
	})

	t.Run("chaining opt-out", func(t *testing.T) {
		p := busy()
		p.AllowChaining = false
		assert.False(t, p.ChainingEligible(3))
	})

	t.Run("no declared destination", func(t *testing.T) {
		p := busy()
		p.NextDestination = nil
		assert.False(t, p.ChainingEligible(3))
	})

	t.Run("online driver does not chain", func(t *testing.T) {
		p := busy()
		p.Availability = AvailabilityOnline
		assert.False(t, p.ChainingEligible(3))
	})
}

func TestPresence_WorksFor(t *testing.T) {
	companyID := kernel.NewUUID()

	t.Run("matching affiliation", func(t *testing.T) {
		p := &Presence{DriverID: kernel.NewUUID(), Availability: AvailabilityOnline, CompanyID: &companyID}
		assert.True(t, p.WorksFor(companyID))
	})

	t.Run("independent driver", func(t *testing.T) {
		p := &Presence{DriverID: kernel.NewUUID(), Availability: AvailabilityOnline}
		assert.False(t, p.WorksFor(companyID))
	})

	t.Run("different company", func(t *testing.T) {
		other := kernel.NewUUID()
		p := &Presence{DriverID: kernel.NewUUID(), Availability: AvailabilityOnline, CompanyID: &other}
		assert.False(t, p.WorksFor(companyID))
	})
}
