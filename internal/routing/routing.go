package routing

import (
	"context"
	"errors"

	"rumbo/internal/domain"
)

// Route is a travel estimate between two coordinates.
type Route struct {
	DurationSeconds int
	DistanceMeters  int
}

// Estimator is the external routing collaborator. Callers must tolerate
// failure: an unreachable routing service degrades features (missing
// ETA) but never fails the surrounding operation.
type Estimator interface {
	Route(ctx context.Context, origin, destination domain.Coordinate) (Route, error)
}

// ErrUnavailable is returned when no routing backend is configured.
var ErrUnavailable = errors.New("routing service unavailable")

// NoopEstimator always fails. Used when no API key is configured so the
// rest of the system runs with eta=null.
type NoopEstimator struct{}

func (NoopEstimator) Route(ctx context.Context, origin, destination domain.Coordinate) (Route, error) {
	return Route{}, ErrUnavailable
}

var _ Estimator = NoopEstimator{}
