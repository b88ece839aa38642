package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rumbo/internal/repository"
	"rumbo/internal/service"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func respondError(c *gin.Context, err error) {
	c.JSON(mapErrorToHTTPStatus(err), ErrorResponse{Error: err.Error()})
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRiderID),
		errors.Is(err, service.ErrInvalidDriverID),
		errors.Is(err, service.ErrInvalidRideID),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrActiveRideExists),
		errors.Is(err, service.ErrRideUnavailable),
		errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
