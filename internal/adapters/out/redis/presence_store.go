// Package redis implements the driver presence store on Redis. Presence is
// session-scoped soft state: a hash per driver with the session TTL, geo
// indexes per availability for radius search, rejection sets per order and
// TTL-based advisory locks. Everything here expires; the database never
// sees any of it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"orderflow/internal/core/domain/model/driver"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/pkg/errs"
)

// Config tunes the presence store.
type Config struct {
	// KeyPrefix namespaces every key, "presence:" by default.
	KeyPrefix string
	// SessionTTL bounds how long a presence survives without a refresh
	// from the driver's device.
	SessionTTL time.Duration
}

const defaultSessionTTL = 90 * time.Second

// PresenceStore is the Redis-backed implementation of ports.PresenceStore.
type PresenceStore struct {
	client *redis.Client
	cfg    Config
}

// NewPresenceStore creates a presence store on an existing Redis client.
func NewPresenceStore(client *redis.Client, cfg Config) *PresenceStore {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "presence:"
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	return &PresenceStore{client: client, cfg: cfg}
}

func (s *PresenceStore) driverKey(id kernel.UUID) string {
	return s.cfg.KeyPrefix + "driver:" + id.String()
}

func (s *PresenceStore) geoKey(a driver.Availability) string {
	return s.cfg.KeyPrefix + "geo:" + string(a)
}

func (s *PresenceStore) missionsKey(id kernel.UUID) string {
	return s.cfg.KeyPrefix + "missions:" + id.String()
}

func (s *PresenceStore) rejectKey(orderID kernel.UUID) string {
	return s.cfg.KeyPrefix + "reject:" + orderID.String()
}

func (s *PresenceStore) lockKey(key string) string {
	return s.cfg.KeyPrefix + "lock:" + key
}

// presenceDoc is the JSON body stored next to the availability field.
// Availability lives in its own hash field so the compare-and-swap script
// can test it without parsing JSON.
type presenceDoc struct {
	DriverID      string    `json:"driverId"`
	Lat           float64   `json:"lat"`
	Lon           float64   `json:"lon"`
	CompanyID     *string   `json:"companyId,omitempty"`
	AllowChaining bool      `json:"allowChaining,omitempty"`
	NextDestLat   *float64  `json:"nextDestLat,omitempty"`
	NextDestLon   *float64  `json:"nextDestLon,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// casScript atomically flips the availability hash field and moves the
// driver between the per-availability geo indexes.
var casScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'availability')
if cur ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], 'availability', ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[3])
redis.call('GEOADD', KEYS[3], ARGV[4], ARGV[5], ARGV[3])
return 1
`)

// Get returns the driver's presence or a not-found error once the session
// has expired.
func (s *PresenceStore) Get(ctx context.Context, driverID kernel.UUID) (*driver.Presence, error) {
	fields, err := s.client.HGetAll(ctx, s.driverKey(driverID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errs.NewObjectNotFoundError("presence", driverID.String())
	}

	missions, err := s.client.SMembers(ctx, s.missionsKey(driverID)).Result()
	if err != nil {
		return nil, err
	}

	return presenceFromFields(fields, missions)
}

func presenceFromFields(fields map[string]string, missions []string) (*driver.Presence, error) {
	var doc presenceDoc
	if err := json.Unmarshal([]byte(fields["doc"]), &doc); err != nil {
		return nil, err
	}

	driverID, err := kernel.UUIDFromString(doc.DriverID)
	if err != nil {
		return nil, err
	}
	location, err := kernel.NewGeoPoint(doc.Lat, doc.Lon)
	if err != nil {
		return nil, err
	}

	p := &driver.Presence{
		DriverID:      driverID,
		Availability:  driver.Availability(fields["availability"]),
		Location:      location,
		AllowChaining: doc.AllowChaining,
		UpdatedAt:     doc.UpdatedAt,
	}

	if doc.CompanyID != nil {
		companyID, idErr := kernel.UUIDFromString(*doc.CompanyID)
		if idErr != nil {
			return nil, idErr
		}
		p.CompanyID = &companyID
	}
	if doc.NextDestLat != nil && doc.NextDestLon != nil {
		dest, destErr := kernel.NewGeoPoint(*doc.NextDestLat, *doc.NextDestLon)
		if destErr != nil {
			return nil, destErr
		}
		p.NextDestination = &dest
	}

	for _, raw := range missions {
		orderID, idErr := kernel.UUIDFromString(raw)
		if idErr != nil {
			return nil, idErr
		}
		p.ActiveMissions = append(p.ActiveMissions, orderID)
	}

	return p, p.Validate()
}

// Set writes the presence with the session TTL and reindexes the driver
// under their current availability.
func (s *PresenceStore) Set(ctx context.Context, p *driver.Presence) error {
	if err := p.Validate(); err != nil {
		return err
	}

	doc := presenceDoc{
		DriverID:      p.DriverID.String(),
		Lat:           p.Location.Lat(),
		Lon:           p.Location.Lon(),
		AllowChaining: p.AllowChaining,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.CompanyID != nil {
		id := p.CompanyID.String()
		doc.CompanyID = &id
	}
	if p.NextDestination != nil {
		lat, lon := p.NextDestination.Lat(), p.NextDestination.Lon()
		doc.NextDestLat = &lat
		doc.NextDestLon = &lon
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	member := p.DriverID.String()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.driverKey(p.DriverID), "doc", body, "availability", string(p.Availability))
	pipe.Expire(ctx, s.driverKey(p.DriverID), s.cfg.SessionTTL)
	for _, a := range []driver.Availability{
		driver.AvailabilityOnline, driver.AvailabilityOffering, driver.AvailabilityBusy,
	} {
		if a == p.Availability {
			continue
		}
		pipe.ZRem(ctx, s.geoKey(a), member)
	}
	if p.Availability != driver.AvailabilityOffline {
		pipe.GeoAdd(ctx, s.geoKey(p.Availability), &redis.GeoLocation{
			Name:      member,
			Longitude: p.Location.Lon(),
			Latitude:  p.Location.Lat(),
		})
	} else {
		pipe.ZRem(ctx, s.geoKey(driver.AvailabilityOffline), member)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// CompareAndSwapAvailability flips availability only when the current value
// still matches expected. The swap and the geo index move run in one
// script, so two dispatch rounds can never both claim the same driver.
func (s *PresenceStore) CompareAndSwapAvailability(
	ctx context.Context,
	driverID kernel.UUID,
	expected, next driver.Availability,
) (bool, error) {
	p, err := s.Get(ctx, driverID)
	if err != nil {
		if errors.Is(err, errs.ErrObjectNotFound) {
			return false, nil
		}
		return false, err
	}

	res, err := casScript.Run(ctx, s.client,
		[]string{s.driverKey(driverID), s.geoKey(expected), s.geoKey(next)},
		string(expected), string(next), driverID.String(),
		p.Location.Lon(), p.Location.Lat(),
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// SearchRadius returns drivers of the given availability within radius
// meters of the center, nearest first. Stale geo entries whose hash has
// expired or changed availability are filtered out.
func (s *PresenceStore) SearchRadius(
	ctx context.Context,
	center kernel.GeoPoint,
	radiusM float64,
	a driver.Availability,
) ([]*driver.Presence, error) {
	members, err := s.client.GeoSearch(ctx, s.geoKey(a), &redis.GeoSearchQuery{
		Longitude:  center.Lon(),
		Latitude:   center.Lat(),
		Radius:     radiusM,
		RadiusUnit: "m",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*driver.Presence, 0, len(members))
	for _, member := range members {
		driverID, idErr := kernel.UUIDFromString(member)
		if idErr != nil {
			continue
		}
		p, getErr := s.Get(ctx, driverID)
		if getErr != nil {
			if errors.Is(getErr, errs.ErrObjectNotFound) {
				continue
			}
			return nil, getErr
		}
		if p.Availability != a {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// ListByAvailability returns every driver currently in the given
// availability. The geo index doubles as the membership set, so a plain
// range over it yields the full population without a radius bound. Stale
// entries whose session expired are filtered out, same as SearchRadius.
func (s *PresenceStore) ListByAvailability(ctx context.Context, a driver.Availability) ([]*driver.Presence, error) {
	members, err := s.client.ZRange(ctx, s.geoKey(a), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*driver.Presence, 0, len(members))
	for _, member := range members {
		driverID, idErr := kernel.UUIDFromString(member)
		if idErr != nil {
			continue
		}
		p, getErr := s.Get(ctx, driverID)
		if getErr != nil {
			if errors.Is(getErr, errs.ErrObjectNotFound) {
				continue
			}
			return nil, getErr
		}
		if p.Availability != a {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// AddRejection records the driver in the order's rejection set. The whole
// set carries the TTL: refusals block re-offers for a window, not forever.
func (s *PresenceStore) AddRejection(ctx context.Context, orderID, driverID kernel.UUID, ttl time.Duration) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.rejectKey(orderID), driverID.String())
	pipe.Expire(ctx, s.rejectKey(orderID), ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// IsRejected reports whether the driver refused the order within the TTL.
func (s *PresenceStore) IsRejected(ctx context.Context, orderID, driverID kernel.UUID) (bool, error) {
	return s.client.SIsMember(ctx, s.rejectKey(orderID), driverID.String()).Result()
}

// AddActiveMission appends the order to the driver's active-job set.
func (s *PresenceStore) AddActiveMission(ctx context.Context, driverID, orderID kernel.UUID) error {
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, s.missionsKey(driverID), orderID.String())
	pipe.Expire(ctx, s.missionsKey(driverID), s.cfg.SessionTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// ReleaseActiveMission removes the order from the driver's active-job set
// and flips a driver left with no missions from BUSY back to ONLINE.
func (s *PresenceStore) ReleaseActiveMission(ctx context.Context, driverID, orderID kernel.UUID) error {
	if err := s.client.SRem(ctx, s.missionsKey(driverID), orderID.String()).Err(); err != nil {
		return err
	}

	remaining, err := s.client.SCard(ctx, s.missionsKey(driverID)).Result()
	if err != nil {
		return err
	}
	if remaining == 0 {
		_, err = s.CompareAndSwapAvailability(ctx, driverID,
			driver.AvailabilityBusy, driver.AvailabilityOnline)
	}
	return err
}

// AcquireLock takes a TTL advisory lock. Returns false when held elsewhere.
func (s *PresenceStore) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.lockKey(key), "1", ttl).Result()
}

// ReleaseLock drops the advisory lock.
func (s *PresenceStore) ReleaseLock(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.lockKey(key)).Err()
}
