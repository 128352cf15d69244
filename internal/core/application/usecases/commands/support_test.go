package commands_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"orderflow/internal/core/domain/model/driver"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/ports"
	"orderflow/internal/pkg/errs"
)

// fakeUnitOfWork mimics the transactional adapter closely enough for
// handler tests: after-commit callbacks run on Commit and are discarded on
// Rollback.
type fakeUnitOfWork struct {
	repo       ports.OrderRepository
	beginErr   error
	commitErr  error
	committed  bool
	rolledBack bool
	callbacks  []func()
}

func (u *fakeUnitOfWork) Begin(context.Context) error { return u.beginErr }

func (u *fakeUnitOfWork) Commit(context.Context) error {
	if u.commitErr != nil {
		return u.commitErr
	}
	u.committed = true
	for _, fn := range u.callbacks {
		fn()
	}
	u.callbacks = nil
	return nil
}

func (u *fakeUnitOfWork) Rollback(context.Context) error {
	if !u.committed {
		u.rolledBack = true
	}
	u.callbacks = nil
	return nil
}

func (u *fakeUnitOfWork) AfterCommit(fn func()) { u.callbacks = append(u.callbacks, fn) }

func (u *fakeUnitOfWork) OrderRepository() ports.OrderRepository { return u.repo }

type fakeUoWFactory struct{ uow *fakeUnitOfWork }

func (f *fakeUoWFactory) Create() ports.UnitOfWork { return f.uow }

// memOrderRepo is a map-backed repository.
type memOrderRepo struct {
	mu        sync.Mutex
	orders    map[string]*order.Order
	updateErr error
	updated   int
}

func newMemOrderRepo(orders ...*order.Order) *memOrderRepo {
	r := &memOrderRepo{orders: make(map[string]*order.Order)}
	for _, o := range orders {
		r.orders[o.ID().String()] = o
	}
	return r
}

func (r *memOrderRepo) Add(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID().String()] = o
	return nil
}

func (r *memOrderRepo) Update(_ context.Context, o *order.Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated++
	r.orders[o.ID().String()] = o
	return nil
}

func (r *memOrderRepo) Get(_ context.Context, id kernel.UUID) (*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id.String()]
	if !ok {
		return nil, errs.NewObjectNotFoundError("order", id.String())
	}
	return o, nil
}

func (r *memOrderRepo) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	return r.Get(ctx, id)
}

func (r *memOrderRepo) GetAllDispatchable(_ context.Context) ([]*order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*order.Order
	for _, o := range r.orders {
		if o.Status() == order.StatusPending && !o.HasLiveOffer(time.Now()) {
			out = append(out, o)
		}
	}
	return out, nil
}

// recordingNotifier captures fan-out events in order.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event string, _ kernel.UUID, _ map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) has(event string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events {
		if e == event {
			return true
		}
	}
	return false
}

// stubPresence implements ports.PresenceStore with just enough behavior for
// handler tests.
type stubPresence struct {
	mu        sync.Mutex
	presences map[string]*driver.Presence
	rejected  map[string]bool
	missions  map[string][]kernel.UUID
	locks     map[string]bool
	released  []string
}

func newStubPresence() *stubPresence {
	return &stubPresence{
		presences: make(map[string]*driver.Presence),
		rejected:  make(map[string]bool),
		missions:  make(map[string][]kernel.UUID),
		locks:     make(map[string]bool),
	}
}

func (s *stubPresence) Get(_ context.Context, id kernel.UUID) (*driver.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presences[id.String()]
	if !ok {
		return nil, errs.NewObjectNotFoundError("presence", id.String())
	}
	cp := *p
	return &cp, nil
}

func (s *stubPresence) Set(_ context.Context, p *driver.Presence) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.presences[p.DriverID.String()] = &cp
	return nil
}

func (s *stubPresence) CompareAndSwapAvailability(_ context.Context, id kernel.UUID, expected, next driver.Availability) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presences[id.String()]
	if !ok || p.Availability != expected {
		return false, nil
	}
	p.Availability = next
	return true, nil
}

func (s *stubPresence) SearchRadius(_ context.Context, center kernel.GeoPoint, radiusM float64, a driver.Availability) ([]*driver.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*driver.Presence
	for _, p := range s.presences {
		if p.Availability != a {
			continue
		}
		if dist, err := center.DistanceTo(p.Location); err == nil && dist <= radiusM {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubPresence) ListByAvailability(_ context.Context, a driver.Availability) ([]*driver.Presence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*driver.Presence
	for _, p := range s.presences {
		if p.Availability != a {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubPresence) AddRejection(_ context.Context, orderID, driverID kernel.UUID, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[orderID.String()+"/"+driverID.String()] = true
	return nil
}

func (s *stubPresence) IsRejected(_ context.Context, orderID, driverID kernel.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected[orderID.String()+"/"+driverID.String()], nil
}

func (s *stubPresence) AddActiveMission(_ context.Context, driverID, orderID kernel.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missions[driverID.String()] = append(s.missions[driverID.String()], orderID)
	return nil
}

func (s *stubPresence) ReleaseActiveMission(_ context.Context, driverID, orderID kernel.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, driverID.String()+"/"+orderID.String())
	return nil
}

func (s *stubPresence) AcquireLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[key] {
		return false, nil
	}
	s.locks[key] = true
	return true, nil
}

func (s *stubPresence) ReleaseLock(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, key)
	return nil
}

// identitySolver keeps the incoming stop order.
type identitySolver struct{}

func (identitySolver) Solve(_ context.Context, _ *kernel.GeoPoint, stops []ports.SolverStop, _ float64) (*ports.SolverResult, error) {
	seq := make([]kernel.UUID, 0, len(stops))
	for _, s := range stops {
		seq = append(seq, s.StopID)
	}
	return &ports.SolverResult{Sequence: seq}, nil
}

type constRouter struct{ err error }

func (r constRouter) Legs(_ context.Context, waypoints []kernel.GeoPoint) ([]ports.RouteLeg, error) {
	if r.err != nil {
		return nil, r.err
	}
	legs := make([]ports.RouteLeg, 0, len(waypoints)-1)
	for i := 0; i < len(waypoints)-1; i++ {
		legs = append(legs, ports.RouteLeg{Polyline: "pl", DistanceM: 500, Duration: time.Minute})
	}
	return legs, nil
}

type stubCompliance struct {
	approved bool
	err      error
	calls    int
}

func (c *stubCompliance) IsDriverApproved(context.Context, kernel.UUID) (bool, error) {
	c.calls++
	return c.approved, c.err
}

type stubGeocoder struct {
	point kernel.GeoPoint
	err   error
}

func (g stubGeocoder) Geocode(context.Context, string) (kernel.GeoPoint, error) {
	if g.err != nil {
		return kernel.GeoPoint{}, g.err
	}
	return g.point, nil
}

var errStub = errors.New("stub failure")
