package tests

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"rumbo/internal/bus"
	"rumbo/internal/domain"
	"rumbo/internal/redis"
	"rumbo/internal/repository"
	"rumbo/internal/routing"
)

// newTestLogger returns a logger that swallows output.
func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository. Its
// Accept and UpdateStatusFrom honor the conditional-write contract under
// a single mutex, so concurrent callers race exactly like against the
// real store.
type MockRideRepository struct {
	mu    sync.Mutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount int32
	AcceptCallCount int32

	// Error injection
	CreateError error
	GetError    error
	AcceptError error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{rides: make(map[string]*domain.Ride)}
}

// AddRide seeds a ride into the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *ride
	m.rides[ride.ID] = &copy
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) GetActiveByRider(ctx context.Context, riderID string) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.RiderID == riderID && r.Active() {
			copy := *r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockRideRepository) GetActiveByDriver(ctx context.Context, driverID string) (*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.DriverID == driverID && r.Active() {
			copy := *r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockRideRepository) ListSearching(ctx context.Context) ([]*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Ride, 0)
	for _, r := range m.rides {
		if r.Status == domain.RideStatusSearching && r.DriverID == "" {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockRideRepository) ListByRider(ctx context.Context, riderID string) ([]*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Ride
	for _, r := range m.rides {
		if r.RiderID == riderID {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockRideRepository) ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Ride
	for _, r := range m.rides {
		if r.DriverID == driverID {
			copy := *r
			result = append(result, &copy)
		}
	}
	return result, nil
}

func (m *MockRideRepository) Accept(ctx context.Context, rideID, driverID string, acceptedPrice float64, at time.Time) (*domain.Ride, error) {
	atomic.AddInt32(&m.AcceptCallCount, 1)
	if m.AcceptError != nil {
		return nil, m.AcceptError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if ride.Status != domain.RideStatusSearching || ride.DriverID != "" {
		return nil, repository.ErrConflict
	}
	ride.DriverID = driverID
	ride.Status = domain.RideStatusAccepted
	if acceptedPrice > 0 {
		ride.AcceptedPrice = acceptedPrice
	} else {
		ride.AcceptedPrice = ride.OfferedPrice
	}
	ride.AcceptedAt = at
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) UpdateStatusFrom(ctx context.Context, rideID string, from []domain.RideStatus, target domain.RideStatus, at time.Time) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	matched := false
	for _, s := range from {
		if ride.Status == s {
			matched = true
			break
		}
	}
	if !matched {
		return nil, repository.ErrConflict
	}
	ride.Status = target
	switch target {
	case domain.RideStatusPickedUp:
		ride.PickedUpAt = at
	case domain.RideStatusCompleted:
		ride.CompletedAt = at
	case domain.RideStatusCancelled:
		ride.CancelledAt = at
	}
	copy := *ride
	return &copy, nil
}

// GetRide returns the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rides[id]
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	CreateError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{drivers: make(map[string]*domain.Driver)}
}

// AddDriver seeds a driver profile.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK DIRECTORY
// ──────────────────────────────────────────────

// MockDirectory is an in-memory driver directory.
type MockDirectory struct {
	mu        sync.Mutex
	available map[string]bool
	positions map[string]redis.DriverPosition

	// Error injection
	ListError     error
	SetError      error
	PositionError error
}

// NewMockDirectory creates a new mock directory.
func NewMockDirectory() *MockDirectory {
	return &MockDirectory{
		available: make(map[string]bool),
		positions: make(map[string]redis.DriverPosition),
	}
}

func (m *MockDirectory) SetAvailable(ctx context.Context, driverID string, available bool) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if available {
		m.available[driverID] = true
	} else {
		delete(m.available, driverID)
	}
	return nil
}

func (m *MockDirectory) UpdatePosition(ctx context.Context, driverID string, lat, lng float64) error {
	if m.SetError != nil {
		return m.SetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[driverID] = redis.DriverPosition{DriverID: driverID, Lat: lat, Lng: lng}
	return nil
}

func (m *MockDirectory) ListAvailable(ctx context.Context) ([]string, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.available))
	for id := range m.available {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MockDirectory) GetPosition(ctx context.Context, driverID string) (*redis.DriverPosition, error) {
	if m.PositionError != nil {
		return nil, m.PositionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pos, ok := m.positions[driverID]
	if !ok {
		return nil, nil
	}
	copy := pos
	return &copy, nil
}

func (m *MockDirectory) Remove(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.available, driverID)
	delete(m.positions, driverID)
	return nil
}

// IsAvailable reports availability for test assertions.
func (m *MockDirectory) IsAvailable(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.available[driverID]
}

// ──────────────────────────────────────────────
// MOCK BUS
// ──────────────────────────────────────────────

// PublishedEvent records one Publish call.
type PublishedEvent struct {
	Channel string
	Event   string
	Payload any
}

// MockBus records every published event for assertions.
type MockBus struct {
	mu     sync.Mutex
	events []PublishedEvent
}

// NewMockBus creates a new MockBus.
func NewMockBus() *MockBus {
	return &MockBus{}
}

func (m *MockBus) Publish(channel, event string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{Channel: channel, Event: event, Payload: payload})
}

func (m *MockBus) Subscribe(channel string, sub bus.Subscriber) {}
func (m *MockBus) Unsubscribe(channel, subscriberID string)     {}
func (m *MockBus) DropAll(subscriberID string)                  {}

// Events returns a snapshot of everything published so far.
func (m *MockBus) Events() []PublishedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsNamed returns published events with the given name.
func (m *MockBus) EventsNamed(name string) []PublishedEvent {
	var out []PublishedEvent
	for _, e := range m.Events() {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

// EventsOn returns published events for the given channel.
func (m *MockBus) EventsOn(channel string) []PublishedEvent {
	var out []PublishedEvent
	for _, e := range m.Events() {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK ESTIMATOR
// ──────────────────────────────────────────────

// MockEstimator is a routing estimator with a fixed answer and error
// injection.
type MockEstimator struct {
	RouteResult routing.Route
	RouteError  error

	CallCount int32
}

func (m *MockEstimator) Route(ctx context.Context, origin, destination domain.Coordinate) (routing.Route, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.RouteError != nil {
		return routing.Route{}, m.RouteError
	}
	return m.RouteResult, nil
}
