package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"rumbo/internal/bus"
	"rumbo/internal/domain"
	"rumbo/internal/middleware"
	"rumbo/internal/observability"
)

// RideAuthorizer resolves a ride only for its participants. The hub uses
// it to gate ride-channel joins and chat relay.
type RideAuthorizer interface {
	GetRide(ctx context.Context, rideID, actorID string) (*domain.Ride, error)
}

// DisconnectHandler receives the implicit "set unavailable" when a
// driver connection goes away.
type DisconnectHandler interface {
	OnDisconnect(ctx context.Context, driverID string)
}

// Hub upgrades connections, authenticates them and binds each one to the
// notification bus.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	bus      bus.Bus
	rides    RideAuthorizer
	tracker  DisconnectHandler
	secret   string
	upgrader websocket.Upgrader
	log      *logrus.Logger
}

// NewHub creates a new Hub.
func NewHub(eventBus bus.Bus, rides RideAuthorizer, tracker DisconnectHandler, jwtSecret string, log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		bus:     eventBus,
		rides:   rides,
		tracker: tracker,
		secret:  jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// clientMessage is the envelope for every client→server action.
type clientMessage struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type ridePayload struct {
	RideID string `json:"ride_id"`
}

type chatPayload struct {
	RideID  string `json:"ride_id"`
	Content string `json:"content"`
}

// Handle upgrades and serves one connection. Browsers cannot set headers
// on websocket dials, so the token also rides in the query string.
func (h *Hub) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		if header := c.GetHeader("Authorization"); len(header) > 7 && header[:7] == "Bearer " {
			token = header[7:]
		}
	}

	claims, err := middleware.ParseToken(h.secret, token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := newClient(claims.UserID, claims.Role, conn, h.log)
	h.register(client)
	observability.WebsocketConnections.Inc()

	h.log.WithFields(logrus.Fields{
		"actor_id": claims.UserID,
		"role":     claims.Role,
	}).Info("websocket connected")

	defer h.teardown(client)
	h.readLoop(client)
}

// register adds the client and auto-subscribes its private channel plus
// the broadcast feed.
func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.actorID] = client
	h.mu.Unlock()

	h.bus.Subscribe(bus.ActorChannel(client.actorID), client)
	h.bus.Subscribe(bus.BroadcastChannel, client)
}

// teardown runs on every exit path, including ungraceful disconnects.
// When the actor reconnected before this connection died, a newer client
// owns the map entry and the bus subscriptions; tearing those down here
// would strip the live connection, so only the current client does it.
func (h *Hub) teardown(client *Client) {
	h.mu.Lock()
	current := h.clients[client.actorID] == client
	if current {
		delete(h.clients, client.actorID)
	}
	h.mu.Unlock()

	_ = client.conn.Close()
	observability.WebsocketConnections.Dec()

	if !current {
		h.log.WithField("actor_id", client.actorID).Debug("stale websocket closed after reconnect")
		return
	}

	h.bus.DropAll(client.actorID)
	if client.role == string(domain.RoleDriver) {
		h.tracker.OnDisconnect(context.Background(), client.actorID)
	}

	h.log.WithField("actor_id", client.actorID).Info("websocket disconnected")
}

func (h *Hub) readLoop(client *Client) {
	for {
		var msg clientMessage
		if err := client.conn.ReadJSON(&msg); err != nil {
			return
		}
		h.dispatch(client, msg)
	}
}

// dispatch handles one client action. Failures become an error event to
// the originating connection only; they never touch other sessions.
func (h *Hub) dispatch(client *Client, msg clientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msg.Action {
	case "join_ride":
		var p ridePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.RideID == "" {
			client.sendError("bad_request", "ride_id is required")
			return
		}
		if _, err := h.rides.GetRide(ctx, p.RideID, client.actorID); err != nil {
			client.sendError("forbidden", "not a participant of this ride")
			return
		}
		h.bus.Subscribe(bus.RideChannel(p.RideID), client)

	case "leave_ride":
		var p ridePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.RideID == "" {
			client.sendError("bad_request", "ride_id is required")
			return
		}
		h.bus.Unsubscribe(bus.RideChannel(p.RideID), client.actorID)

	case "send_message":
		var p chatPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.RideID == "" || p.Content == "" {
			client.sendError("bad_request", "ride_id and content are required")
			return
		}
		if _, err := h.rides.GetRide(ctx, p.RideID, client.actorID); err != nil {
			client.sendError("forbidden", "not a participant of this ride")
			return
		}
		h.bus.Publish(bus.RideChannel(p.RideID), bus.EventChatMessage, bus.ChatMessage{
			RideID:   p.RideID,
			SenderID: client.actorID,
			Content:  p.Content,
			SentAt:   time.Now(),
		})

	case "typing":
		var p ridePayload
		if err := json.Unmarshal(msg.Data, &p); err != nil || p.RideID == "" {
			return
		}
		if _, err := h.rides.GetRide(ctx, p.RideID, client.actorID); err != nil {
			client.sendError("forbidden", "not a participant of this ride")
			return
		}
		h.bus.Publish(bus.RideChannel(p.RideID), bus.EventTyping, bus.Typing{
			RideID:   p.RideID,
			SenderID: client.actorID,
		})

	default:
		client.sendError("unknown_action", "unsupported action: "+msg.Action)
	}
}
