package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"rumbo/internal/bus"
)

// WSMessage is the envelope for every server→client event.
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one live connection. It implements bus.Subscriber so bus
// events flow straight onto the socket. Writes are serialized with a
// mutex; gorilla connections do not allow concurrent writers.
type Client struct {
	actorID string
	role    string
	conn    *websocket.Conn
	mu      sync.Mutex
	log     *logrus.Logger
}

func newClient(actorID, role string, conn *websocket.Conn, log *logrus.Logger) *Client {
	return &Client{actorID: actorID, role: role, conn: conn, log: log}
}

// ID implements bus.Subscriber.
func (c *Client) ID() string {
	return c.actorID
}

// Notify implements bus.Subscriber. Send failures are logged and
// dropped; the bus is fire-and-forget.
func (c *Client) Notify(channel string, event bus.Event) {
	if err := c.send(event.Name, event.Payload); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"actor_id": c.actorID,
			"event":    event.Name,
		}).Debug("websocket send failed")
	}
}

func (c *Client) send(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(WSMessage{Event: event, Data: payload})
}

// sendError reports a handler failure to this connection only.
func (c *Client) sendError(code, message string) {
	_ = c.send(bus.EventError, bus.ErrorEvent{Code: code, Message: message})
}
