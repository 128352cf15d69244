// Package driver holds the condensed live operational state of a driver as
// kept in the presence cache. Presence is ephemeral and eventually
// consistent: it is the dispatch signal, not the system of record. Driver
// onboarding, vehicles and documents live in external services.
package driver

import (
	"fmt"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
)

// Availability is the driver's live operational state.
type Availability string

const (
	// AvailabilityOffline means the driver is not reachable for work.
	AvailabilityOffline Availability = "OFFLINE"
	// AvailabilityOnline means the driver is idle and accepting offers.
	AvailabilityOnline Availability = "ONLINE"
	// AvailabilityOffering means an offer is outstanding to the driver.
	AvailabilityOffering Availability = "OFFERING"
	// AvailabilityBusy means the driver is executing at least one mission.
	AvailabilityBusy Availability = "BUSY"
)

// Validate checks the availability is one of the defined values.
func (a Availability) Validate() error {
	switch a {
	case AvailabilityOffline, AvailabilityOnline, AvailabilityOffering, AvailabilityBusy:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("availability",
			fmt.Errorf("%q is not a valid availability", string(a)))
	}
}

// Presence is the condensed state dispatch decisions read. It is written by
// the driver's mobile session and by the dispatch engine itself (ONLINE <->
// OFFERING flips), and expires with the session TTL.
type Presence struct {
	DriverID     kernel.UUID
	Availability Availability
	// Location is the last reported position.
	Location kernel.GeoPoint
	// CompanyID is the driver's active company affiliation, if any.
	CompanyID *kernel.UUID
	// AllowChaining opts the driver into receiving a second job while busy.
	AllowChaining bool
	// ActiveMissions lists the orders the driver is currently executing.
	ActiveMissions []kernel.UUID
	// NextDestination is the declared endpoint of the current mission,
	// used for the chaining distance check.
	NextDestination *kernel.GeoPoint
	UpdatedAt       time.Time
}

// Validate checks identity and availability.
func (p *Presence) Validate() error {
	if p == nil {
		return errs.NewValueIsRequiredError("presence")
	}
	if err := p.DriverID.Validate(); err != nil {
		return err
	}
	return p.Availability.Validate()
}

// IsOnline reports whether the driver is idle and offerable.
func (p *Presence) IsOnline() bool {
	return p.Availability == AvailabilityOnline
}

// ActiveMissionCount returns the number of missions in flight.
func (p *Presence) ActiveMissionCount() int {
	return len(p.ActiveMissions)
}

// ChainingEligible reports whether a busy driver may receive one more job
// under the configured concurrency ceiling.
func (p *Presence) ChainingEligible(ceiling int) bool {
	if p.Availability != AvailabilityBusy || !p.AllowChaining {
		return false
	}
	if p.NextDestination == nil {
		return false
	}
	return p.ActiveMissionCount() < ceiling
}

// WorksFor reports whether the driver's active affiliation matches the
// company.
func (p *Presence) WorksFor(companyID kernel.UUID) bool {
	return p.CompanyID != nil && p.CompanyID.IsEqual(companyID)
}
