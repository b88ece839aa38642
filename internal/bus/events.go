package bus

import "time"

// Event names pushed over the live channel.
const (
	EventRideOffer         = "ride-offer"
	EventRideAccepted      = "ride-accepted"
	EventRideStatusChanged = "ride-status-changed"
	EventDriverLocation    = "driver-location"
	EventDriverUnavailable = "driver-unavailable"
	EventNoDriverFound     = "no-driver-found"
	EventChatMessage       = "chat-message"
	EventTyping            = "typing"
	EventError             = "error"
)

// RideOffer is broadcast to each available driver when a rider requests
// a ride. Offers are not retracted; a stale offer fails at accept time.
type RideOffer struct {
	RideID        string  `json:"ride_id"`
	OriginLat     float64 `json:"origin_lat"`
	OriginLng     float64 `json:"origin_lng"`
	OriginAddress string  `json:"origin_address,omitempty"`
	DestLat       float64 `json:"destination_lat"`
	DestLng       float64 `json:"destination_lng"`
	DestAddress   string  `json:"destination_address,omitempty"`
	OfferedPrice  float64 `json:"offered_price"`
}

// RideAccepted carries the full ride+driver detail to the rider once a
// driver wins the accept race.
type RideAccepted struct {
	RideID        string   `json:"ride_id"`
	DriverID      string   `json:"driver_id"`
	DriverName    string   `json:"driver_name,omitempty"`
	VehicleModel  string   `json:"vehicle_model,omitempty"`
	VehiclePlate  string   `json:"vehicle_plate,omitempty"`
	VehicleColor  string   `json:"vehicle_color,omitempty"`
	DriverLat     *float64 `json:"driver_lat,omitempty"`
	DriverLng     *float64 `json:"driver_lng,omitempty"`
	AcceptedPrice float64  `json:"accepted_price"`
	Status        string   `json:"status"`
}

// RideStatusChange notifies a participant of a status transition.
type RideStatusChange struct {
	RideID string `json:"ride_id"`
	Status string `json:"status"`
}

// NoDriverFound tells the rider nobody was available to offer to.
type NoDriverFound struct {
	RideID string `json:"ride_id"`
}

// DriverLocationUpdate is the general map feed position report.
type DriverLocationUpdate struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// DriverUnavailable voids any pending offers for the driver.
type DriverUnavailable struct {
	DriverID string `json:"driver_id"`
}

// RideLocation is the ride-scoped position+ETA update pushed to the
// rider. ETASeconds is nil when the routing collaborator fails.
type RideLocation struct {
	RideID     string  `json:"ride_id"`
	DriverID   string  `json:"driver_id"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	ETASeconds *int    `json:"eta_seconds"`
}

// ChatMessage is relayed to the ride channel. Messages are not stored;
// a disconnected participant misses them.
type ChatMessage struct {
	RideID   string    `json:"ride_id"`
	SenderID string    `json:"sender_id"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sent_at"`
}

// Typing signals that a participant is composing a message.
type Typing struct {
	RideID   string `json:"ride_id"`
	SenderID string `json:"sender_id"`
}

// ErrorEvent is directed only at the connection whose request failed.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
