package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rumbo/internal/domain"
	"rumbo/internal/middleware"
	"rumbo/internal/service"
)

// RideHandler exposes the ride lifecycle over HTTP.
type RideHandler struct {
	dispatcher *service.Dispatcher
	states     *service.StateMachine
	estimates  *service.EstimateService
	tracker    *service.Tracker
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(dispatcher *service.Dispatcher, states *service.StateMachine, estimates *service.EstimateService, tracker *service.Tracker) *RideHandler {
	return &RideHandler{
		dispatcher: dispatcher,
		states:     states,
		estimates:  estimates,
		tracker:    tracker,
	}
}

// Coordinates bind through pointers: "required" on a plain float64 would
// reject the valid zero value (equator, prime meridian).
type waypointRequest struct {
	Lat     *float64 `json:"lat" binding:"required"`
	Lng     *float64 `json:"lng" binding:"required"`
	Address string   `json:"address"`
}

func (w waypointRequest) toDomain() domain.Waypoint {
	return domain.Waypoint{
		Coordinate: w.toCoordinate(),
		Address:    w.Address,
	}
}

func (w waypointRequest) toCoordinate() domain.Coordinate {
	return domain.Coordinate{Lat: *w.Lat, Lng: *w.Lng}
}

type createRideRequest struct {
	Origin       waypointRequest `json:"origin" binding:"required"`
	Destination  waypointRequest `json:"destination" binding:"required"`
	OfferedPrice float64         `json:"offered_price"`
}

type acceptRideRequest struct {
	AcceptedPrice float64 `json:"accepted_price"`
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type estimateRequest struct {
	Origin      waypointRequest `json:"origin" binding:"required"`
	Destination waypointRequest `json:"destination" binding:"required"`
}

type waypointResponse struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address,omitempty"`
}

type rideResponse struct {
	ID            string           `json:"id"`
	RiderID       string           `json:"rider_id"`
	DriverID      string           `json:"driver_id,omitempty"`
	Origin        waypointResponse `json:"origin"`
	Destination   waypointResponse `json:"destination"`
	OfferedPrice  float64          `json:"offered_price"`
	AcceptedPrice float64          `json:"accepted_price,omitempty"`
	Status        string           `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	AcceptedAt    *time.Time       `json:"accepted_at,omitempty"`
	PickedUpAt    *time.Time       `json:"picked_up_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
}

type estimateResponse struct {
	Fare            float64 `json:"fare"`
	DurationMinutes int     `json:"duration_minutes"`
	DistanceKm      float64 `json:"distance_km"`
	Currency        string  `json:"currency"`
}

func toRideResponse(ride *domain.Ride) rideResponse {
	resp := rideResponse{
		ID:            ride.ID,
		RiderID:       ride.RiderID,
		DriverID:      ride.DriverID,
		OfferedPrice:  ride.OfferedPrice,
		AcceptedPrice: ride.AcceptedPrice,
		Status:        string(ride.Status),
		CreatedAt:     ride.CreatedAt,
		Origin: waypointResponse{
			Lat:     ride.Origin.Lat,
			Lng:     ride.Origin.Lng,
			Address: ride.Origin.Address,
		},
		Destination: waypointResponse{
			Lat:     ride.Destination.Lat,
			Lng:     ride.Destination.Lng,
			Address: ride.Destination.Address,
		},
	}
	resp.AcceptedAt = timePtr(ride.AcceptedAt)
	resp.PickedUpAt = timePtr(ride.PickedUpAt)
	resp.CompletedAt = timePtr(ride.CompletedAt)
	resp.CancelledAt = timePtr(ride.CancelledAt)
	return resp
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CreateRide handles POST /v1/rides.
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req createRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	actor := middleware.ActorFrom(c)
	ride, err := h.dispatcher.RequestRide(c.Request.Context(), actor.ID, req.Origin.toDomain(), req.Destination.toDomain(), req.OfferedPrice)
	if err != nil {
		var active *service.ActiveRideError
		if errors.As(err, &active) {
			c.JSON(http.StatusConflict, gin.H{
				"error": service.ErrActiveRideExists.Error(),
				"ride":  toRideResponse(active.Existing),
			})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toRideResponse(ride))
}

// ListAvailable handles GET /v1/rides/available.
func (h *RideHandler) ListAvailable(c *gin.Context) {
	rides, err := h.dispatcher.ListAvailableRides(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]rideResponse, 0, len(rides))
	for _, ride := range rides {
		resp = append(resp, toRideResponse(ride))
	}
	c.JSON(http.StatusOK, gin.H{"rides": resp})
}

// Accept handles POST /v1/rides/:id/accept.
func (h *RideHandler) Accept(c *gin.Context) {
	// The body is optional: an empty one means "accept at the offered
	// price".
	var req acceptRideRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
			return
		}
	}

	actor := middleware.ActorFrom(c)
	if actor.Role != domain.RoleDriver {
		respondError(c, service.ErrUnauthorized)
		return
	}

	ride, err := h.states.Accept(c.Request.Context(), c.Param("id"), actor.ID, req.AcceptedPrice)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRideResponse(ride))
}

// UpdateStatus handles POST /v1/rides/:id/status.
func (h *RideHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	status, ok := domain.ParseRideStatus(req.Status)
	if !ok {
		respondError(c, service.ErrInvalidStatus)
		return
	}

	actor := middleware.ActorFrom(c)
	ride, err := h.states.Transition(c.Request.Context(), c.Param("id"), actor.ID, actor.Role, status)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRideResponse(ride))
}

// Cancel handles POST /v1/rides/:id/cancel.
func (h *RideHandler) Cancel(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	ride, err := h.states.Cancel(c.Request.Context(), c.Param("id"), actor.ID, actor.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toRideResponse(ride))
}

// ListMine handles GET /v1/rides/my.
func (h *RideHandler) ListMine(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	rides, err := h.dispatcher.ListRideHistory(c.Request.Context(), actor.ID, actor.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]rideResponse, 0, len(rides))
	for _, ride := range rides {
		resp = append(resp, toRideResponse(ride))
	}
	c.JSON(http.StatusOK, gin.H{"rides": resp})
}

// GetActive handles GET /v1/rides/active.
func (h *RideHandler) GetActive(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	ride, err := h.dispatcher.GetActiveRide(c.Request.Context(), actor.ID, actor.Role)
	if err != nil {
		if service.IsNotFound(err) {
			c.JSON(http.StatusOK, gin.H{"ride": nil})
			return
		}
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ride": toRideResponse(ride)})
}

// GetRide handles GET /v1/rides/:id. The response carries the assigned
// driver's last known position when one exists.
func (h *RideHandler) GetRide(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	ride, err := h.dispatcher.GetRide(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"ride": toRideResponse(ride)}
	if ride.DriverID != "" {
		if pos, err := h.tracker.LastPosition(c.Request.Context(), ride.DriverID); err == nil && pos != nil {
			resp["driver_position"] = positionResponse{
				DriverID: pos.DriverID,
				Lat:      pos.Lat,
				Lng:      pos.Lng,
			}
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Estimate handles POST /v1/rides/estimate.
func (h *RideHandler) Estimate(c *gin.Context) {
	var req estimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	estimate, err := h.estimates.Estimate(c.Request.Context(), req.Origin.toCoordinate(), req.Destination.toCoordinate())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, estimateResponse{
		Fare:            estimate.Fare,
		DurationMinutes: estimate.DurationMinutes,
		DistanceKm:      estimate.DistanceKm,
		Currency:        estimate.Currency,
	})
}
