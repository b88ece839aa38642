package handler

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func bindBody(t *testing.T, body string, out any) error {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("POST", "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c.ShouldBindJSON(out)
}

// Zero is a valid coordinate (equator, prime meridian); binding must not
// treat it as a missing field.
func TestWaypointRequest_ZeroCoordinatesBind(t *testing.T) {
	var req waypointRequest
	if err := bindBody(t, `{"lat": 0, "lng": 0}`, &req); err != nil {
		t.Fatalf("zero coordinates must bind: %v", err)
	}

	wp := req.toDomain()
	if wp.Lat != 0 || wp.Lng != 0 {
		t.Errorf("expected (0,0), got (%v,%v)", wp.Lat, wp.Lng)
	}
}

func TestWaypointRequest_MissingCoordinateRejected(t *testing.T) {
	var req waypointRequest
	if err := bindBody(t, `{"lat": 1.5}`, &req); err == nil {
		t.Error("expected binding error for missing lng")
	}
}

func TestReportPositionRequest_PrimeMeridianBinds(t *testing.T) {
	var req reportPositionRequest
	if err := bindBody(t, `{"lat": 51.4779, "lng": 0, "available": true}`, &req); err != nil {
		t.Fatalf("lng 0 must bind: %v", err)
	}

	if req.Lat == nil || *req.Lat != 51.4779 {
		t.Errorf("expected lat 51.4779, got %v", req.Lat)
	}
	if req.Lng == nil || *req.Lng != 0 {
		t.Errorf("expected lng 0, got %v", req.Lng)
	}
}

func TestCreateRideRequest_ZeroCoordinatesBind(t *testing.T) {
	body := `{
		"origin": {"lat": 0, "lng": 6.61, "address": "Gulf of Guinea"},
		"destination": {"lat": 4.05, "lng": 0},
		"offered_price": 12.5
	}`

	var req createRideRequest
	if err := bindBody(t, body, &req); err != nil {
		t.Fatalf("zero coordinates must bind: %v", err)
	}
	if *req.Origin.Lat != 0 || *req.Destination.Lng != 0 {
		t.Error("expected zero coordinates to survive binding")
	}
}
