package repository

import (
	"context"
	"time"

	"rumbo/internal/domain"
)

// RideRepository defines the persistence operations for rides.
//
// Accept and UpdateStatusFrom are conditional writes: they apply only if
// the stated precondition still holds and report ErrConflict otherwise.
// Accept is the single synchronization point the whole core depends on.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// GetActiveByRider retrieves the rider's non-terminal ride, if any.
	GetActiveByRider(ctx context.Context, riderID string) (*domain.Ride, error)

	// GetActiveByDriver retrieves the non-terminal ride assigned to the driver, if any.
	GetActiveByDriver(ctx context.Context, driverID string) (*domain.Ride, error)

	// ListSearching retrieves rides that are searching and unassigned.
	ListSearching(ctx context.Context) ([]*domain.Ride, error)

	// ListByRider retrieves the rider's rides, newest first, terminal
	// ones included.
	ListByRider(ctx context.Context, riderID string) ([]*domain.Ride, error)

	// ListByDriver retrieves the rides assigned to the driver, newest
	// first, terminal ones included.
	ListByDriver(ctx context.Context, driverID string) ([]*domain.Ride, error)

	// Accept atomically assigns the driver iff the ride is still
	// searching and unassigned. acceptedPrice <= 0 defaults to the
	// offered price. Returns ErrConflict when the race is lost.
	Accept(ctx context.Context, rideID, driverID string, acceptedPrice float64, at time.Time) (*domain.Ride, error)

	// UpdateStatusFrom moves the ride to target iff its current status is
	// one of from, stamping the matching timestamp column. Returns
	// ErrConflict when the precondition no longer holds.
	UpdateStatusFrom(ctx context.Context, rideID string, from []domain.RideStatus, target domain.RideStatus, at time.Time) (*domain.Ride, error)
}

// DriverRepository defines the persistence operations for driver profiles.
type DriverRepository interface {
	// Create persists a new driver profile.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver profile by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)
}
