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
	"rumbo/internal/routing"
)

// Tracker consumes driver position reports, keeps the directory current
// and fans live position/ETA updates out to interested parties.
type Tracker struct {
	directory internalRedis.DirectoryInterface
	rideRepo  repository.RideRepository
	estimator routing.Estimator
	bus       bus.Bus
	log       *logrus.Logger
}

// NewTracker creates a new Tracker.
func NewTracker(
	directory internalRedis.DirectoryInterface,
	rideRepo repository.RideRepository,
	estimator routing.Estimator,
	eventBus bus.Bus,
	log *logrus.Logger,
) *Tracker {
	return &Tracker{
		directory: directory,
		rideRepo:  rideRepo,
		estimator: estimator,
		bus:       eventBus,
		log:       log,
	}
}

// ReportPosition upserts the driver's position and availability
// (last-write-wins; out-of-order reports simply overwrite), publishes
// the map feed update, and pushes a ride-scoped position+ETA event to
// the rider when the driver is on an active ride. A routing failure
// yields eta=null but never fails the report.
func (t *Tracker) ReportPosition(ctx context.Context, driverID string, lat, lng float64, available bool) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}
	if !isValidLatitude(lat) || !isValidLongitude(lng) {
		return ErrInvalidLocation
	}

	if err := t.directory.UpdatePosition(ctx, driverID, lat, lng); err != nil {
		return err
	}
	if err := t.directory.SetAvailable(ctx, driverID, available); err != nil {
		return err
	}

	if available {
		t.bus.Publish(bus.BroadcastChannel, bus.EventDriverLocation, bus.DriverLocationUpdate{
			DriverID: driverID,
			Lat:      lat,
			Lng:      lng,
		})
	} else {
		// Pending offers to this driver are now logically void. Offers
		// are not retracted; a stale accept fails at the atomic accept.
		t.bus.Publish(bus.BroadcastChannel, bus.EventDriverUnavailable, bus.DriverUnavailable{DriverID: driverID})
	}

	t.notifyAssignedRider(ctx, driverID, lat, lng)
	return nil
}

// notifyAssignedRider pushes a position+ETA update to the rider of the
// driver's active ride, if there is one.
func (t *Tracker) notifyAssignedRider(ctx context.Context, driverID string, lat, lng float64) {
	ride, err := t.rideRepo.GetActiveByDriver(ctx, driverID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			t.log.WithError(err).WithField("driver_id", driverID).Warn("active ride lookup failed")
		}
		return
	}

	// While heading to the pickup the relevant waypoint is the ride
	// origin; once the rider is on board it is the ride destination.
	var waypoint domain.Coordinate
	switch ride.Status {
	case domain.RideStatusAccepted:
		waypoint = ride.Origin.Coordinate
	case domain.RideStatusPickedUp, domain.RideStatusEnRoute:
		waypoint = ride.Destination.Coordinate
	default:
		return
	}

	var eta *int
	route, err := t.estimator.Route(ctx, domain.Coordinate{Lat: lat, Lng: lng}, waypoint)
	if err != nil {
		observability.ETAFailuresTotal.Inc()
		t.log.WithError(err).WithField("ride_id", ride.ID).Warn("eta computation failed")
	} else {
		eta = &route.DurationSeconds
	}

	t.bus.Publish(bus.ActorChannel(ride.RiderID), bus.EventDriverLocation, bus.RideLocation{
		RideID:     ride.ID,
		DriverID:   driverID,
		Lat:        lat,
		Lng:        lng,
		ETASeconds: eta,
	})
}

// SetAvailability flips the driver's availability without a position
// report and publishes the matching feed event.
func (t *Tracker) SetAvailability(ctx context.Context, driverID string, available bool) error {
	if driverID == "" {
		return ErrInvalidDriverID
	}

	if err := t.directory.SetAvailable(ctx, driverID, available); err != nil {
		return err
	}

	if !available {
		t.bus.Publish(bus.BroadcastChannel, bus.EventDriverUnavailable, bus.DriverUnavailable{DriverID: driverID})
	}
	return nil
}

// OnDisconnect treats a dropped driver connection, graceful or not, as
// an implicit "set unavailable".
func (t *Tracker) OnDisconnect(ctx context.Context, driverID string) {
	if driverID == "" {
		return
	}

	if err := t.directory.SetAvailable(ctx, driverID, false); err != nil {
		t.log.WithError(err).WithField("driver_id", driverID).Error("marking driver unavailable on disconnect failed")
		return
	}

	t.bus.Publish(bus.BroadcastChannel, bus.EventDriverUnavailable, bus.DriverUnavailable{DriverID: driverID})
	t.log.WithField("driver_id", driverID).Info("driver disconnected, marked unavailable")
}

// LastPosition returns the driver's last known position, or nil if none
// was ever reported.
func (t *Tracker) LastPosition(ctx context.Context, driverID string) (*internalRedis.DriverPosition, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return t.directory.GetPosition(ctx, driverID)
}
