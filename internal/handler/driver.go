package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rumbo/internal/domain"
	"rumbo/internal/middleware"
	"rumbo/internal/service"
)

// DriverHandler exposes driver position and availability over HTTP.
type DriverHandler struct {
	tracker *service.Tracker
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(tracker *service.Tracker) *DriverHandler {
	return &DriverHandler{tracker: tracker}
}

// Lat/Lng bind through pointers so the zero coordinate passes "required".
type reportPositionRequest struct {
	Lat       *float64 `json:"lat" binding:"required"`
	Lng       *float64 `json:"lng" binding:"required"`
	Available *bool    `json:"available"`
}

type setAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

type positionResponse struct {
	DriverID string  `json:"driver_id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// ReportPosition handles POST /v1/drivers/location. Omitting the
// available flag keeps the driver available.
func (h *DriverHandler) ReportPosition(c *gin.Context) {
	var req reportPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	actor := middleware.ActorFrom(c)
	if actor.Role != domain.RoleDriver {
		respondError(c, service.ErrUnauthorized)
		return
	}

	available := true
	if req.Available != nil {
		available = *req.Available
	}

	if err := h.tracker.ReportPosition(c.Request.Context(), actor.ID, *req.Lat, *req.Lng, available); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetAvailability handles PUT /v1/drivers/availability.
func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	actor := middleware.ActorFrom(c)
	if actor.Role != domain.RoleDriver {
		respondError(c, service.ErrUnauthorized)
		return
	}

	if err := h.tracker.SetAvailability(c.Request.Context(), actor.ID, *req.Available); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetLocation handles GET /v1/drivers/:id/location.
func (h *DriverHandler) GetLocation(c *gin.Context) {
	pos, err := h.tracker.LastPosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if pos == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no known position for driver"})
		return
	}

	c.JSON(http.StatusOK, positionResponse{
		DriverID: pos.DriverID,
		Lat:      pos.Lat,
		Lng:      pos.Lng,
	})
}
