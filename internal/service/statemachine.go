package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rumbo/internal/bus"
	"rumbo/internal/domain"
	"rumbo/internal/observability"
	internalRedis "rumbo/internal/redis"
	"rumbo/internal/repository"
)

// StateMachine validates and applies ride state transitions. All writes
// to Ride.status/driver/price go through here; no other component
// mutates those fields.
type StateMachine struct {
	rideRepo   repository.RideRepository
	driverRepo repository.DriverRepository
	directory  internalRedis.DirectoryInterface
	bus        bus.Bus
	log        *logrus.Logger
}

// NewStateMachine creates a new StateMachine.
func NewStateMachine(
	rideRepo repository.RideRepository,
	driverRepo repository.DriverRepository,
	directory internalRedis.DirectoryInterface,
	eventBus bus.Bus,
	log *logrus.Logger,
) *StateMachine {
	return &StateMachine{
		rideRepo:   rideRepo,
		driverRepo: driverRepo,
		directory:  directory,
		bus:        eventBus,
		log:        log,
	}
}

// transitionSources maps each target status to the statuses a ride may
// move from. Terminal statuses never appear as sources for anything but
// their own timestamped arrival.
var transitionSources = map[domain.RideStatus][]domain.RideStatus{
	domain.RideStatusPickedUp:  {domain.RideStatusAccepted},
	domain.RideStatusEnRoute:   {domain.RideStatusAccepted, domain.RideStatusPickedUp},
	domain.RideStatusCompleted: {domain.RideStatusEnRoute, domain.RideStatusPickedUp},
	domain.RideStatusCancelled: {
		domain.RideStatusSearching,
		domain.RideStatusAccepted,
		domain.RideStatusPickedUp,
		domain.RideStatusEnRoute,
	},
}

// AuthorizeTransition decides whether the actor may request the target
// status for the ride. It checks identity and role only; status
// preconditions are validated separately so callers can distinguish
// Unauthorized from InvalidTransition.
func AuthorizeTransition(ride *domain.Ride, actorID string, role domain.Role, target domain.RideStatus) error {
	switch target {
	case domain.RideStatusPickedUp, domain.RideStatusEnRoute, domain.RideStatusCompleted:
		if role != domain.RoleDriver || ride.DriverID == "" || ride.DriverID != actorID {
			return ErrUnauthorized
		}
		return nil
	case domain.RideStatusCancelled:
		if role == domain.RoleRider && ride.RiderID == actorID {
			return nil
		}
		if role == domain.RoleDriver && ride.DriverID != "" && ride.DriverID == actorID {
			return nil
		}
		return ErrUnauthorized
	default:
		return ErrInvalidStatus
	}
}

// Create makes a new ride in searching state for the rider, enforcing
// the one-active-ride-per-rider invariant.
func (m *StateMachine) Create(ctx context.Context, riderID string, origin, destination domain.Waypoint, offeredPrice float64) (*domain.Ride, error) {
	if riderID == "" {
		return nil, ErrInvalidRiderID
	}
	if !isValidLatitude(origin.Lat) || !isValidLongitude(origin.Lng) ||
		!isValidLatitude(destination.Lat) || !isValidLongitude(destination.Lng) {
		return nil, ErrInvalidLocation
	}
	if offeredPrice < 0 {
		return nil, ErrInvalidPrice
	}

	existing, err := m.rideRepo.GetActiveByRider(ctx, riderID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, &ActiveRideError{Existing: existing}
	}

	ride := &domain.Ride{
		ID:           uuid.New().String(),
		RiderID:      riderID,
		Origin:       origin,
		Destination:  destination,
		OfferedPrice: offeredPrice,
		Status:       domain.RideStatusSearching,
		CreatedAt:    time.Now(),
	}

	if err := m.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}

	return ride, nil
}

// Accept resolves the accept race through the repository's atomic
// conditional write. Exactly one concurrent caller wins; every other
// caller gets ErrRideUnavailable and the ride is never partially
// mutated.
func (m *StateMachine) Accept(ctx context.Context, rideID, driverID string, acceptedPrice float64) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if acceptedPrice < 0 {
		return nil, ErrInvalidPrice
	}

	ride, err := m.rideRepo.Accept(ctx, rideID, driverID, acceptedPrice, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			observability.AcceptConflictsTotal.Inc()
			return nil, ErrRideUnavailable
		}
		return nil, err
	}

	observability.RidesAcceptedTotal.Inc()
	m.log.WithFields(logrus.Fields{
		"ride_id":   ride.ID,
		"driver_id": driverID,
		"price":     ride.AcceptedPrice,
	}).Info("ride accepted")

	m.publishAccepted(ctx, ride)
	m.bus.Publish(bus.ActorChannel(ride.RiderID), bus.EventRideStatusChanged, bus.RideStatusChange{
		RideID: ride.ID,
		Status: string(ride.Status),
	})
	m.bus.Publish(bus.ActorChannel(driverID), bus.EventRideStatusChanged, bus.RideStatusChange{
		RideID: ride.ID,
		Status: string(ride.Status),
	})

	return ride, nil
}

// publishAccepted enriches the acceptance event with driver profile and
// last known position. Enrichment failures degrade the payload, never
// the acceptance.
func (m *StateMachine) publishAccepted(ctx context.Context, ride *domain.Ride) {
	accepted := bus.RideAccepted{
		RideID:        ride.ID,
		DriverID:      ride.DriverID,
		AcceptedPrice: ride.AcceptedPrice,
		Status:        string(ride.Status),
	}

	if driver, err := m.driverRepo.GetByID(ctx, ride.DriverID); err == nil {
		accepted.DriverName = driver.Name
		accepted.VehicleModel = driver.Vehicle.Model
		accepted.VehiclePlate = driver.Vehicle.LicensePlate
		accepted.VehicleColor = driver.Vehicle.Color
	} else if !errors.Is(err, repository.ErrNotFound) {
		m.log.WithError(err).WithField("driver_id", ride.DriverID).Warn("driver profile lookup failed")
	}

	if pos, err := m.directory.GetPosition(ctx, ride.DriverID); err == nil && pos != nil {
		accepted.DriverLat = &pos.Lat
		accepted.DriverLng = &pos.Lng
	}

	m.bus.Publish(bus.ActorChannel(ride.RiderID), bus.EventRideAccepted, accepted)
}

// Transition moves the ride to the target status on behalf of the actor.
func (m *StateMachine) Transition(ctx context.Context, rideID, actorID string, role domain.Role, target domain.RideStatus) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := m.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if err := AuthorizeTransition(ride, actorID, role, target); err != nil {
		return nil, err
	}

	sources := transitionSources[target]
	if !statusIn(ride.Status, sources) {
		return nil, ErrInvalidTransition
	}

	updated, err := m.rideRepo.UpdateStatusFrom(ctx, rideID, sources, target, time.Now())
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Someone else moved the ride first; the precondition no
			// longer holds.
			return nil, ErrRideUnavailable
		}
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"ride_id":  updated.ID,
		"actor_id": actorID,
		"status":   updated.Status,
	}).Info("ride status changed")

	change := bus.RideStatusChange{RideID: updated.ID, Status: string(updated.Status)}
	m.bus.Publish(bus.ActorChannel(updated.RiderID), bus.EventRideStatusChanged, change)
	if target == domain.RideStatusCancelled && updated.DriverID != "" {
		m.bus.Publish(bus.ActorChannel(updated.DriverID), bus.EventRideStatusChanged, change)
	}

	return updated, nil
}

// Cancel is Transition sugar for the cancelled target.
func (m *StateMachine) Cancel(ctx context.Context, rideID, actorID string, role domain.Role) (*domain.Ride, error) {
	return m.Transition(ctx, rideID, actorID, role, domain.RideStatusCancelled)
}

func statusIn(status domain.RideStatus, set []domain.RideStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
