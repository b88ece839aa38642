package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"rumbo/internal/bus"
	"rumbo/internal/domain"
	"rumbo/internal/service"
)

func newStateMachine(rideRepo *MockRideRepository, driverRepo *MockDriverRepository, directory *MockDirectory, eventBus *MockBus) *service.StateMachine {
	return service.NewStateMachine(rideRepo, driverRepo, directory, eventBus, newTestLogger())
}

func seedRide(repo *MockRideRepository, id, riderID, driverID string, status domain.RideStatus) *domain.Ride {
	ride := &domain.Ride{
		ID:       id,
		RiderID:  riderID,
		DriverID: driverID,
		Origin: domain.Waypoint{
			Coordinate: domain.Coordinate{Lat: -12.046, Lng: -77.042},
			Address:    "Plaza Mayor",
		},
		Destination: domain.Waypoint{
			Coordinate: domain.Coordinate{Lat: -12.121, Lng: -77.030},
			Address:    "Miraflores",
		},
		OfferedPrice: 15.0,
		Status:       status,
		CreatedAt:    time.Now(),
	}
	repo.AddRide(ride)
	return ride
}

func TestTransition_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	eventBus := NewMockBus()
	sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), eventBus)

	seedRide(rideRepo, "ride-1", "rider-1", "driver-1", domain.RideStatusAccepted)

	steps := []domain.RideStatus{
		domain.RideStatusPickedUp,
		domain.RideStatusEnRoute,
		domain.RideStatusCompleted,
	}
	for _, target := range steps {
		ride, err := sm.Transition(ctx, "ride-1", "driver-1", domain.RoleDriver, target)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", target, err)
		}
		if ride.Status != target {
			t.Errorf("expected status %s, got %s", target, ride.Status)
		}
	}

	stored := rideRepo.GetRide("ride-1")
	if stored.PickedUpAt.IsZero() {
		t.Error("expected picked_up_at to be stamped")
	}
	if stored.CompletedAt.IsZero() {
		t.Error("expected completed_at to be stamped")
	}
}

func TestTransition_SkipEnRoute(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), NewMockBus())

	// picked_up → completed is allowed; en_route is optional.
	seedRide(rideRepo, "ride-1", "rider-1", "driver-1", domain.RideStatusPickedUp)

	ride, err := sm.Transition(ctx, "ride-1", "driver-1", domain.RoleDriver, domain.RideStatusCompleted)
	if err != nil {
		t.Fatalf("picked_up → completed failed: %v", err)
	}
	if ride.Status != domain.RideStatusCompleted {
		t.Errorf("expected completed, got %s", ride.Status)
	}
}

func TestTransition_InvalidEdges(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name   string
		from   domain.RideStatus
		target domain.RideStatus
	}{
		{"searching to picked_up", domain.RideStatusSearching, domain.RideStatusPickedUp},
		{"searching to completed", domain.RideStatusSearching, domain.RideStatusCompleted},
		{"accepted to completed skips pickup", domain.RideStatusAccepted, domain.RideStatusCompleted},
		{"completed to cancelled", domain.RideStatusCompleted, domain.RideStatusCancelled},
		{"cancelled to picked_up", domain.RideStatusCancelled, domain.RideStatusPickedUp},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rideRepo := NewMockRideRepository()
			sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), NewMockBus())
			seedRide(rideRepo, "ride-1", "rider-1", "driver-1", tc.from)

			_, err := sm.Transition(ctx, "ride-1", "driver-1", domain.RoleDriver, tc.target)
			if !errors.Is(err, service.ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
		})
	}
}

func TestTransition_TerminalHasNoExit(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), NewMockBus())

	seedRide(rideRepo, "ride-1", "rider-1", "driver-1", domain.RideStatusEnRoute)

	if _, err := sm.Transition(ctx, "ride-1", "driver-1", domain.RoleDriver, domain.RideStatusCompleted); err != nil {
		t.Fatalf("completing ride failed: %v", err)
	}

	// Cancelling a completed ride must fail, even for the rider.
	_, err := sm.Cancel(ctx, "ride-1", "rider-1", domain.RoleRider)
	if !errors.Is(err, service.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition on completed ride, got %v", err)
	}
}

func TestTransition_NonParticipantRejected(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), NewMockBus())

	seedRide(rideRepo, "ride-1", "rider-1", "driver-1", domain.RideStatusAccepted)

	// A different driver cannot drive this ride's lifecycle.
	_, err := sm.Transition(ctx, "ride-1", "driver-2", domain.RoleDriver, domain.RideStatusPickedUp)
	if !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for foreign driver, got %v", err)
	}

	// A different rider cannot cancel it either.
	_, err = sm.Cancel(ctx, "ride-1", "rider-2", domain.RoleRider)
	if !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for foreign rider, got %v", err)
	}

	// The rider cannot mark their own ride picked up.
	_, err = sm.Transition(ctx, "ride-1", "rider-1", domain.RoleRider, domain.RideStatusPickedUp)
	if !errors.Is(err, service.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for rider-driven pickup, got %v", err)
	}
}

func TestCancel_BothParticipantsMayCancel(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name    string
		actorID string
		role    domain.Role
	}{
		{"rider cancels", "rider-1", domain.RoleRider},
		{"driver cancels", "driver-1", domain.RoleDriver},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rideRepo := NewMockRideRepository()
			eventBus := NewMockBus()
			sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), eventBus)
			seedRide(rideRepo, "ride-1", "rider-1", "driver-1", domain.RideStatusAccepted)

			ride, err := sm.Cancel(ctx, "ride-1", tc.actorID, tc.role)
			if err != nil {
				t.Fatalf("cancel failed: %v", err)
			}
			if ride.Status != domain.RideStatusCancelled {
				t.Errorf("expected cancelled, got %s", ride.Status)
			}
			if ride.CancelledAt.IsZero() {
				t.Error("expected cancelled_at to be stamped")
			}

			// Both participants hear about the cancellation.
			if len(eventBus.EventsOn(bus.ActorChannel("rider-1"))) == 0 {
				t.Error("expected status event on rider channel")
			}
			if len(eventBus.EventsOn(bus.ActorChannel("driver-1"))) == 0 {
				t.Error("expected status event on driver channel")
			}
		})
	}
}

func TestCancel_SearchingRideByRider(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), NewMockBus())

	seedRide(rideRepo, "ride-1", "rider-1", "", domain.RideStatusSearching)

	ride, err := sm.Cancel(ctx, "ride-1", "rider-1", domain.RoleRider)
	if err != nil {
		t.Fatalf("cancel of searching ride failed: %v", err)
	}
	if ride.Status != domain.RideStatusCancelled {
		t.Errorf("expected cancelled, got %s", ride.Status)
	}
}

func TestAccept_SetsDriverPriceAndTimestamp(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	driverRepo := NewMockDriverRepository()
	directory := NewMockDirectory()
	eventBus := NewMockBus()
	sm := newStateMachine(rideRepo, driverRepo, directory, eventBus)

	driverRepo.AddDriver(&domain.Driver{
		ID:   "driver-1",
		Name: "Marco",
		Vehicle: domain.Vehicle{
			Model:        "Kia Rio",
			LicensePlate: "ABC-123",
			Color:        "rojo",
		},
	})
	_ = directory.UpdatePosition(ctx, "driver-1", -12.05, -77.04)
	seedRide(rideRepo, "ride-1", "rider-1", "", domain.RideStatusSearching)

	ride, err := sm.Accept(ctx, "ride-1", "driver-1", 18.0)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if ride.Status != domain.RideStatusAccepted {
		t.Errorf("expected accepted, got %s", ride.Status)
	}
	if ride.DriverID != "driver-1" {
		t.Errorf("expected driver-1, got %s", ride.DriverID)
	}
	if ride.AcceptedPrice != 18.0 {
		t.Errorf("expected accepted price 18.0, got %.2f", ride.AcceptedPrice)
	}
	if ride.AcceptedAt.IsZero() {
		t.Error("expected accepted_at to be stamped")
	}

	// The rider gets the enriched acceptance event.
	accepted := eventBus.EventsNamed(bus.EventRideAccepted)
	if len(accepted) != 1 {
		t.Fatalf("expected 1 ride-accepted event, got %d", len(accepted))
	}
	payload, ok := accepted[0].Payload.(bus.RideAccepted)
	if !ok {
		t.Fatalf("unexpected payload type %T", accepted[0].Payload)
	}
	if payload.DriverName != "Marco" {
		t.Errorf("expected driver name Marco, got %q", payload.DriverName)
	}
	if payload.VehiclePlate != "ABC-123" {
		t.Errorf("expected plate ABC-123, got %q", payload.VehiclePlate)
	}
	if payload.DriverLat == nil || payload.DriverLng == nil {
		t.Error("expected driver position in acceptance payload")
	}
	if accepted[0].Channel != bus.ActorChannel("rider-1") {
		t.Errorf("acceptance must go to the rider channel, got %s", accepted[0].Channel)
	}
}

func TestAccept_DefaultsToOfferedPrice(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), NewMockBus())

	seedRide(rideRepo, "ride-1", "rider-1", "", domain.RideStatusSearching)

	ride, err := sm.Accept(ctx, "ride-1", "driver-1", 0)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if ride.AcceptedPrice != 15.0 {
		t.Errorf("expected accepted price to default to offered 15.0, got %.2f", ride.AcceptedPrice)
	}
}

func TestAccept_MissingDriverProfileDegrades(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	eventBus := NewMockBus()
	// No driver profile seeded at all.
	sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), eventBus)

	seedRide(rideRepo, "ride-1", "rider-1", "", domain.RideStatusSearching)

	if _, err := sm.Accept(ctx, "ride-1", "driver-1", 0); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	accepted := eventBus.EventsNamed(bus.EventRideAccepted)
	if len(accepted) != 1 {
		t.Fatalf("expected acceptance event despite missing profile, got %d", len(accepted))
	}
	payload := accepted[0].Payload.(bus.RideAccepted)
	if payload.DriverName != "" {
		t.Errorf("expected empty driver name, got %q", payload.DriverName)
	}
}

func TestAccept_AlreadyTaken(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), NewMockBus())

	seedRide(rideRepo, "ride-1", "rider-1", "driver-1", domain.RideStatusAccepted)

	_, err := sm.Accept(ctx, "ride-1", "driver-2", 0)
	if !errors.Is(err, service.ErrRideUnavailable) {
		t.Errorf("expected ErrRideUnavailable, got %v", err)
	}
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	rideRepo := NewMockRideRepository()
	sm := newStateMachine(rideRepo, NewMockDriverRepository(), NewMockDirectory(), NewMockBus())

	origin := domain.Waypoint{Coordinate: domain.Coordinate{Lat: -12.0, Lng: -77.0}}
	dest := domain.Waypoint{Coordinate: domain.Coordinate{Lat: -12.1, Lng: -77.1}}

	if _, err := sm.Create(ctx, "", origin, dest, 10); !errors.Is(err, service.ErrInvalidRiderID) {
		t.Errorf("expected ErrInvalidRiderID, got %v", err)
	}

	badOrigin := domain.Waypoint{Coordinate: domain.Coordinate{Lat: 91, Lng: 0}}
	if _, err := sm.Create(ctx, "rider-1", badOrigin, dest, 10); !errors.Is(err, service.ErrInvalidLocation) {
		t.Errorf("expected ErrInvalidLocation, got %v", err)
	}

	if _, err := sm.Create(ctx, "rider-1", origin, dest, -1); !errors.Is(err, service.ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
}
