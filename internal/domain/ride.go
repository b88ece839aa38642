package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusSearching RideStatus = "searching"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusPickedUp  RideStatus = "picked_up"
	RideStatusEnRoute   RideStatus = "en_route"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// Terminal reports whether no transition is permitted out of the status.
func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// ParseRideStatus validates a status string at the boundary. Anything
// outside the canonical enum is rejected.
func ParseRideStatus(s string) (RideStatus, bool) {
	switch RideStatus(s) {
	case RideStatusSearching, RideStatusAccepted, RideStatusPickedUp,
		RideStatusEnRoute, RideStatusCompleted, RideStatusCancelled:
		return RideStatus(s), true
	default:
		return "", false
	}
}

// Coordinate is a WGS84 position.
type Coordinate struct {
	Lat float64
	Lng float64
}

// Waypoint is a coordinate with an optional human-readable address.
type Waypoint struct {
	Coordinate
	Address string
}

// Ride represents a transportation request from creation through a
// terminal outcome. DriverID is empty until a driver wins the accept
// race; AcceptedPrice is set exactly once, at acceptance.
type Ride struct {
	ID            string
	RiderID       string
	DriverID      string
	Origin        Waypoint
	Destination   Waypoint
	OfferedPrice  float64
	AcceptedPrice float64
	Status        RideStatus
	CreatedAt     time.Time
	AcceptedAt    time.Time
	PickedUpAt    time.Time
	CompletedAt   time.Time
	CancelledAt   time.Time
}

// Active reports whether the ride is in a non-terminal status.
func (r *Ride) Active() bool {
	return !r.Status.Terminal()
}

// IsParticipant reports whether the actor is the ride's rider or its
// assigned driver.
func (r *Ride) IsParticipant(actorID string) bool {
	if actorID == "" {
		return false
	}
	return r.RiderID == actorID || (r.DriverID != "" && r.DriverID == actorID)
}
