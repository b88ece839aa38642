package bus

import (
	"sync"

	"rumbo/internal/observability"
)

// Event is a named payload pushed to subscribers.
type Event struct {
	Name    string
	Payload any
}

// Subscriber receives events for the channels it is subscribed to.
// Delivery is fire-and-forget: a subscriber that cannot take the event
// simply misses it.
type Subscriber interface {
	ID() string
	Notify(channel string, event Event)
}

// Bus is the logical channel abstraction between core components and
// connected actors. Channels are per-actor (private), per-ride (shared by
// the ride's two participants) or the broadcast feed. Publishing to a
// channel with no subscribers silently drops the event; there is no
// durability or retry.
type Bus interface {
	Publish(channel, event string, payload any)
	Subscribe(channel string, sub Subscriber)
	Unsubscribe(channel, subscriberID string)
	DropAll(subscriberID string)
}

// ActorChannel is the private channel of a single actor.
func ActorChannel(actorID string) string {
	return "user:" + actorID
}

// RideChannel is the channel shared by a ride's participants.
func RideChannel(rideID string) string {
	return "ride:" + rideID
}

// BroadcastChannel carries events of general interest, such as driver
// positions for map display. Every connection joins it on connect.
const BroadcastChannel = "broadcast"

// InMemoryBus is the in-process Bus implementation.
type InMemoryBus struct {
	mu       sync.RWMutex
	channels map[string]map[string]Subscriber
}

// NewInMemoryBus creates a new InMemoryBus.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{channels: make(map[string]map[string]Subscriber)}
}

// Publish delivers the event to every current subscriber of the channel.
func (b *InMemoryBus) Publish(channel, event string, payload any) {
	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.channels[channel]))
	for _, s := range b.channels[channel] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	observability.BusEventsTotal.WithLabelValues(event).Inc()

	for _, s := range subs {
		s.Notify(channel, Event{Name: event, Payload: payload})
	}
}

// Subscribe adds the subscriber to the channel, replacing any previous
// subscription under the same id.
func (b *InMemoryBus) Subscribe(channel string, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channels[channel] == nil {
		b.channels[channel] = make(map[string]Subscriber)
	}
	b.channels[channel][sub.ID()] = sub
}

// Unsubscribe removes the subscriber from the channel.
func (b *InMemoryBus) Unsubscribe(channel, subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels[channel], subscriberID)
	if len(b.channels[channel]) == 0 {
		delete(b.channels, channel)
	}
}

// DropAll removes the subscriber from every channel. Called when a
// connection goes away, gracefully or not.
func (b *InMemoryBus) DropAll(subscriberID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for channel, subs := range b.channels {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(b.channels, channel)
		}
	}
}

var _ Bus = (*InMemoryBus)(nil)
