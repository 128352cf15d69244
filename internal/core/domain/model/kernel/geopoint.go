package kernel

import (
	"errors"
	"fmt"
	"math"

	"orderflow/internal/pkg/errs"
	"orderflow/internal/pkg/guard"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// ErrGeoPointIsNotConstructed is returned when validating a GeoPoint that was
// not created through NewGeoPoint.
var ErrGeoPointIsNotConstructed = errs.NewValueIsRequiredError(
	"geo point must be created via NewGeoPoint constructor")

// GeoPoint is an immutable WGS84 coordinate value object. The zero value is
// invalid and fails validation; use NewGeoPoint.
//
// GeoPoint backs every geographic decision in the engine: pickup radius
// search, chaining distance checks, straight-line ETA fallbacks and the
// advisory arrival-proximity check.
type GeoPoint struct {
	lat   float64
	lon   float64
	guard guard.ConstructorGuard
}

// NewGeoPoint creates a GeoPoint, validating that latitude is within
// [-90, 90] and longitude within [-180, 180] degrees.
func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	p := GeoPoint{
		guard: guard.NewConstructorGuard(),
	}

	if err := errors.Join(p.setLat(lat), p.setLon(lon)); err != nil {
		return GeoPoint{}, err
	}

	return p, nil
}

// Validate checks the point was built through NewGeoPoint.
func (p GeoPoint) Validate() error {
	return p.guard.Validate(ErrGeoPointIsNotConstructed)
}

// Lat returns the latitude in degrees.
func (p GeoPoint) Lat() float64 {
	return p.lat
}

// Lon returns the longitude in degrees.
func (p GeoPoint) Lon() float64 {
	return p.lon
}

// String implements fmt.Stringer.
func (p GeoPoint) String() string {
	return fmt.Sprintf("GeoPoint(%.6f,%.6f)", p.lat, p.lon)
}

// IsEqual compares two points for coordinate equality.
// Both points must pass validation.
func (p GeoPoint) IsEqual(other GeoPoint) (bool, error) {
	if err := errors.Join(p.Validate(), other.Validate()); err != nil {
		return false, err
	}

	return p.lat == other.lat && p.lon == other.lon, nil
}

// DistanceTo returns the great-circle distance to other in meters, computed
// with the haversine formula.
func (p GeoPoint) DistanceTo(other GeoPoint) (float64, error) {
	if err := errors.Join(p.Validate(), other.Validate()); err != nil {
		return 0, err
	}

	lat1 := toRadians(p.lat)
	lat2 := toRadians(other.lat)
	deltaLat := toRadians(other.lat - p.lat)
	deltaLon := toRadians(other.lon - p.lon)

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c, nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func (p *GeoPoint) setLat(lat float64) error {
	if lat < -90 || lat > 90 {
		return errs.NewValueIsInvalidErrorWithCause("latitude",
			fmt.Errorf("%f is outside [-90, 90]", lat))
	}
	p.lat = lat
	return nil
}

func (p *GeoPoint) setLon(lon float64) error {
	if lon < -180 || lon > 180 {
		return errs.NewValueIsInvalidErrorWithCause("longitude",
			fmt.Errorf("%f is outside [-180, 180]", lon))
	}
	p.lon = lon
	return nil
}
