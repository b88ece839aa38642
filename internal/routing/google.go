package routing

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"rumbo/internal/domain"
)

// GoogleEstimator resolves travel estimates via the Google Directions API.
type GoogleEstimator struct {
	client *maps.Client
}

// NewGoogleEstimator creates an estimator with the given API key.
func NewGoogleEstimator(apiKey string) (*GoogleEstimator, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GoogleEstimator{client: client}, nil
}

// Route returns the driving duration and distance between two points.
func (e *GoogleEstimator) Route(ctx context.Context, origin, destination domain.Coordinate) (Route, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%.6f,%.6f", origin.Lat, origin.Lng),
		Destination: fmt.Sprintf("%.6f,%.6f", destination.Lat, destination.Lng),
		Mode:        maps.TravelModeDriving,
	}

	routes, _, err := e.client.Directions(ctx, req)
	if err != nil {
		return Route{}, fmt.Errorf("directions request: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Route{}, fmt.Errorf("no route found")
	}

	leg := routes[0].Legs[0]
	return Route{
		DurationSeconds: int(leg.Duration.Seconds()),
		DistanceMeters:  leg.Distance.Meters,
	}, nil
}

var _ Estimator = (*GoogleEstimator)(nil)
