package service

import (
	"errors"
	"fmt"

	"rumbo/internal/domain"
)

var (
	// ErrUnauthorized is returned when the actor is not the ride's rider
	// or assigned driver, or holds the wrong role for the transition.
	ErrUnauthorized = errors.New("actor not authorized for this ride")

	// ErrInvalidTransition is returned when the transition precondition
	// is not met, including any move out of a terminal status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrRideUnavailable is returned when an accept or transition loses
	// its race, e.g. another driver already took the ride.
	ErrRideUnavailable = errors.New("ride no longer available")

	// ErrActiveRideExists is returned when a rider requests a second
	// ride while one is still non-terminal.
	ErrActiveRideExists = errors.New("rider already has an active ride")

	// ErrInvalidRiderID is returned when rider ID is empty.
	ErrInvalidRiderID = errors.New("invalid rider id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = errors.New("invalid ride id")

	// ErrInvalidLocation is returned when coordinates are out of range.
	ErrInvalidLocation = errors.New("invalid location")

	// ErrInvalidPrice is returned when an offered price is negative.
	ErrInvalidPrice = errors.New("invalid price")

	// ErrInvalidStatus is returned when a status string is outside the
	// canonical enum.
	ErrInvalidStatus = errors.New("invalid ride status")
)

// ActiveRideError carries the rider's existing active ride so the caller
// can act on it (the conflict response includes it).
type ActiveRideError struct {
	Existing *domain.Ride
}

func (e *ActiveRideError) Error() string {
	return fmt.Sprintf("%s (ride %s)", ErrActiveRideExists, e.Existing.ID)
}

func (e *ActiveRideError) Unwrap() error {
	return ErrActiveRideExists
}

func isValidLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func isValidLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
