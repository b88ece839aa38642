package tests

import (
	"context"
	"errors"
	"testing"

	"rumbo/internal/bus"
	"rumbo/internal/domain"
	"rumbo/internal/routing"
	"rumbo/internal/service"
)

func newTracker(rideRepo *MockRideRepository, directory *MockDirectory, estimator *MockEstimator, eventBus *MockBus) *service.Tracker {
	return service.NewTracker(directory, rideRepo, estimator, eventBus, newTestLogger())
}

func TestReportPosition_UpdatesDirectoryAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	directory := NewMockDirectory()
	eventBus := NewMockBus()
	tr := newTracker(NewMockRideRepository(), directory, &MockEstimator{}, eventBus)

	if err := tr.ReportPosition(ctx, "driver-1", -12.05, -77.04, true); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if !directory.IsAvailable("driver-1") {
		t.Error("expected driver to be available")
	}
	pos, _ := directory.GetPosition(ctx, "driver-1")
	if pos == nil || pos.Lat != -12.05 {
		t.Errorf("expected stored position, got %+v", pos)
	}

	feed := eventBus.EventsOn(bus.BroadcastChannel)
	if len(feed) != 1 || feed[0].Event != bus.EventDriverLocation {
		t.Fatalf("expected one driver-location broadcast, got %+v", feed)
	}
}

func TestReportPosition_UnavailableVoidsOffers(t *testing.T) {
	ctx := context.Background()
	directory := NewMockDirectory()
	eventBus := NewMockBus()
	tr := newTracker(NewMockRideRepository(), directory, &MockEstimator{}, eventBus)

	_ = directory.SetAvailable(ctx, "driver-1", true)

	if err := tr.ReportPosition(ctx, "driver-1", -12.05, -77.04, false); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	if directory.IsAvailable("driver-1") {
		t.Error("expected driver to be unavailable")
	}
	events := eventBus.EventsNamed(bus.EventDriverUnavailable)
	if len(events) != 1 {
		t.Fatalf("expected one driver-unavailable event, got %d", len(events))
	}
}

func TestReportPosition_LastWriteWins(t *testing.T) {
	ctx := context.Background()
	directory := NewMockDirectory()
	tr := newTracker(NewMockRideRepository(), directory, &MockEstimator{}, NewMockBus())

	_ = tr.ReportPosition(ctx, "driver-1", -12.05, -77.04, true)
	_ = tr.ReportPosition(ctx, "driver-1", -12.10, -77.08, true)

	pos, _ := directory.GetPosition(ctx, "driver-1")
	if pos.Lat != -12.10 || pos.Lng != -77.08 {
		t.Errorf("expected latest position to win, got %+v", pos)
	}
}

func TestReportPosition_RejectsInvalidCoordinates(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(NewMockRideRepository(), NewMockDirectory(), &MockEstimator{}, NewMockBus())

	if err := tr.ReportPosition(ctx, "driver-1", 91, 0, true); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
	if err := tr.ReportPosition(ctx, "driver-1", 0, 181, true); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}
}

func TestReportPosition_RiderGetsETAWhileHeadingToPickup(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	eventBus := NewMockBus()
	estimator := &MockEstimator{RouteResult: routing.Route{DurationSeconds: 420, DistanceMeters: 3100}}
	tr := newTracker(rideRepo, NewMockDirectory(), estimator, eventBus)

	seedRide(rideRepo, "ride-1", "rider-1", "driver-1", domain.RideStatusAccepted)

	if err := tr.ReportPosition(ctx, "driver-1", -12.05, -77.04, true); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	riderEvents := eventBus.EventsOn(bus.ActorChannel("rider-1"))
	if len(riderEvents) != 1 {
		t.Fatalf("expected one rider event, got %d", len(riderEvents))
	}
	payload, ok := riderEvents[0].Payload.(bus.RideLocation)
	if !ok {
		t.Fatalf("unexpected payload type %T", riderEvents[0].Payload)
	}
	if payload.ETASeconds == nil || *payload.ETASeconds != 420 {
		t.Errorf("expected eta 420s, got %v", payload.ETASeconds)
	}
	if payload.RideID != "ride-1" {
		t.Errorf("expected ride-1, got %s", payload.RideID)
	}
}

func TestReportPosition_ETAFailureDegradesToNull(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	eventBus := NewMockBus()
	estimator := &MockEstimator{RouteError: errors.New("routing down")}
	tr := newTracker(rideRepo, NewMockDirectory(), estimator, eventBus)

	seedRide(rideRepo, "ride-1", "rider-1", "driver-1", domain.RideStatusAccepted)

	// The report still succeeds.
	if err := tr.ReportPosition(ctx, "driver-1", -12.05, -77.04, true); err != nil {
		t.Fatalf("report must survive routing failure: %v", err)
	}

	riderEvents := eventBus.EventsOn(bus.ActorChannel("rider-1"))
	if len(riderEvents) != 1 {
		t.Fatalf("expected one rider event, got %d", len(riderEvents))
	}
	payload := riderEvents[0].Payload.(bus.RideLocation)
	if payload.ETASeconds != nil {
		t.Errorf("expected nil eta, got %d", *payload.ETASeconds)
	}
	if payload.Lat != -12.05 {
		t.Errorf("position must still be present, got %.2f", payload.Lat)
	}
}

func TestReportPosition_WaypointFollowsRideStatus(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		status domain.RideStatus
		// seedRide uses origin (-12.046,-77.042) and destination
		// (-12.121,-77.030).
		wantLat float64
	}{
		{"accepted targets origin", domain.RideStatusAccepted, -12.046},
		{"picked_up targets destination", domain.RideStatusPickedUp, -12.121},
		{"en_route targets destination", domain.RideStatusEnRoute, -12.121},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rideRepo := NewMockRideRepository()
			estimator := &recordingEstimator{}
			tr := service.NewTracker(NewMockDirectory(), rideRepo, estimator, NewMockBus(), newTestLogger())

			seedRide(rideRepo, "ride-1", "rider-1", "driver-1", tc.status)

			if err := tr.ReportPosition(ctx, "driver-1", -12.05, -77.04, true); err != nil {
				t.Fatalf("report failed: %v", err)
			}
			if estimator.lastDest.Lat != tc.wantLat {
				t.Errorf("expected waypoint lat %.3f, got %.3f", tc.wantLat, estimator.lastDest.Lat)
			}
		})
	}
}

// recordingEstimator captures the destination it was asked about.
type recordingEstimator struct {
	lastDest domain.Coordinate
}

func (r *recordingEstimator) Route(ctx context.Context, origin, destination domain.Coordinate) (routing.Route, error) {
	r.lastDest = destination
	return routing.Route{DurationSeconds: 60, DistanceMeters: 500}, nil
}

func TestReportPosition_NoRiderEventWithoutActiveRide(t *testing.T) {
	ctx := context.Background()
	eventBus := NewMockBus()
	tr := newTracker(NewMockRideRepository(), NewMockDirectory(), &MockEstimator{}, eventBus)

	if err := tr.ReportPosition(ctx, "driver-1", -12.05, -77.04, true); err != nil {
		t.Fatalf("report failed: %v", err)
	}

	// Only the broadcast feed fires; no private channel gets anything.
	for _, e := range eventBus.Events() {
		if e.Channel != bus.BroadcastChannel {
			t.Errorf("unexpected event on %s", e.Channel)
		}
	}
}

func TestOnDisconnect_MarksUnavailable(t *testing.T) {
	ctx := context.Background()
	directory := NewMockDirectory()
	eventBus := NewMockBus()
	tr := newTracker(NewMockRideRepository(), directory, &MockEstimator{}, eventBus)

	_ = directory.SetAvailable(ctx, "driver-1", true)

	tr.OnDisconnect(ctx, "driver-1")

	if directory.IsAvailable("driver-1") {
		t.Error("expected driver to be unavailable after disconnect")
	}
	if len(eventBus.EventsNamed(bus.EventDriverUnavailable)) != 1 {
		t.Error("expected driver-unavailable broadcast")
	}
}

func TestLastPosition_NilWhenNeverReported(t *testing.T) {
	ctx := context.Background()
	tr := newTracker(NewMockRideRepository(), NewMockDirectory(), &MockEstimator{}, NewMockBus())

	pos, err := tr.LastPosition(ctx, "driver-unknown")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if pos != nil {
		t.Errorf("expected nil position, got %+v", pos)
	}
}
