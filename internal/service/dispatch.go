package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"rumbo/internal/bus"
	"rumbo/internal/domain"
	"rumbo/internal/observability"
	internalRedis "rumbo/internal/redis"
	"rumbo/internal/repository"
)

// Dispatcher turns rider requests into rides and offers them to
// available drivers. It holds no locking of its own: the accept race is
// resolved entirely by the state machine's atomic accept.
type Dispatcher struct {
	states    *StateMachine
	rideRepo  repository.RideRepository
	directory internalRedis.DirectoryInterface
	bus       bus.Bus
	log       *logrus.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	states *StateMachine,
	rideRepo repository.RideRepository,
	directory internalRedis.DirectoryInterface,
	eventBus bus.Bus,
	log *logrus.Logger,
) *Dispatcher {
	return &Dispatcher{
		states:    states,
		rideRepo:  rideRepo,
		directory: directory,
		bus:       eventBus,
		log:       log,
	}
}

// RequestRide creates a ride for the rider and broadcasts an offer to
// every available driver, or tells the rider nobody was found. The
// returned ride is always in searching state.
func (d *Dispatcher) RequestRide(ctx context.Context, riderID string, origin, destination domain.Waypoint, offeredPrice float64) (*domain.Ride, error) {
	ride, err := d.states.Create(ctx, riderID, origin, destination, offeredPrice)
	if err != nil {
		return nil, err
	}

	drivers, err := d.directory.ListAvailable(ctx)
	if err != nil {
		// The ride exists; a directory outage just means nobody gets the
		// offer right now.
		d.log.WithError(err).WithField("ride_id", ride.ID).Error("listing available drivers failed")
		drivers = nil
	}

	if len(drivers) == 0 {
		observability.NoDriverFoundTotal.Inc()
		d.bus.Publish(bus.ActorChannel(riderID), bus.EventNoDriverFound, bus.NoDriverFound{RideID: ride.ID})
		return ride, nil
	}

	offer := bus.RideOffer{
		RideID:        ride.ID,
		OriginLat:     ride.Origin.Lat,
		OriginLng:     ride.Origin.Lng,
		OriginAddress: ride.Origin.Address,
		DestLat:       ride.Destination.Lat,
		DestLng:       ride.Destination.Lng,
		DestAddress:   ride.Destination.Address,
		OfferedPrice:  ride.OfferedPrice,
	}

	for _, driverID := range drivers {
		d.bus.Publish(bus.ActorChannel(driverID), bus.EventRideOffer, offer)
		observability.RideOffersTotal.Inc()
	}

	d.log.WithFields(logrus.Fields{
		"ride_id": ride.ID,
		"drivers": len(drivers),
	}).Info("ride offer broadcast")

	return ride, nil
}

// ListAvailableRides returns rides that are searching and unassigned.
func (d *Dispatcher) ListAvailableRides(ctx context.Context) ([]*domain.Ride, error) {
	return d.rideRepo.ListSearching(ctx)
}

// GetActiveRide returns the actor's current non-terminal ride.
func (d *Dispatcher) GetActiveRide(ctx context.Context, actorID string, role domain.Role) (*domain.Ride, error) {
	switch role {
	case domain.RoleRider:
		return d.rideRepo.GetActiveByRider(ctx, actorID)
	case domain.RoleDriver:
		return d.rideRepo.GetActiveByDriver(ctx, actorID)
	default:
		return nil, ErrUnauthorized
	}
}

// ListRideHistory returns the actor's rides, newest first, terminal ones
// included.
func (d *Dispatcher) ListRideHistory(ctx context.Context, actorID string, role domain.Role) ([]*domain.Ride, error) {
	switch role {
	case domain.RoleRider:
		return d.rideRepo.ListByRider(ctx, actorID)
	case domain.RoleDriver:
		return d.rideRepo.ListByDriver(ctx, actorID)
	default:
		return nil, ErrUnauthorized
	}
}

// GetRide returns the ride only to its participants.
func (d *Dispatcher) GetRide(ctx context.Context, rideID, actorID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := d.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	if !ride.IsParticipant(actorID) {
		return nil, ErrUnauthorized
	}

	return ride, nil
}

// IsNotFound reports whether the error means an absent entity.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
