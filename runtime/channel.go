package runtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vibehive/contract"
	"vibehive/domain"
	"vibehive/domain/event"
)

var _ contract.Publisher = (*Channel)(nil)

// Channel is the realtime fan-out of events to connections grouped in rooms.
// Delivery is best-effort: a connection that can't take an event within
// the delivery timeout simply misses it, nothing is queued for later.
type Channel struct {
	log             *slog.Logger
	registry        *Registry
	deliveryTimeout time.Duration
	broker          contract.Broker
	origin          string
}

func NewChannel(log *slog.Logger, registry *Registry, deliveryTimeout time.Duration) *Channel {
	return &Channel{log: log, registry: registry, deliveryTimeout: deliveryTimeout}
}

// WithBroker relays every local publication to the other instances.
// origin tags outgoing envelopes so an instance ignores its own.
func (c *Channel) WithBroker(broker contract.Broker, origin string) *Channel {
	c.broker = broker
	c.origin = origin
	return c
}

func (c *Channel) Join(conn contract.Connection, room domain.RoomKey) {
	if c.registry.Join(conn, room) {
		c.log.Debug("Connection joined room", "connection", conn.ID(), "room", room.String())
	}
}

// Leave drops the connection from every room it joined.
func (c *Channel) Leave(conn contract.Connection) {
	rooms := c.registry.Leave(conn.ID())
	c.log.Debug("Connection left", "connection", conn.ID(), "rooms", len(rooms))
}

func (c *Channel) Stats() RegistryStats {
	return c.registry.Stats()
}

// Publish hands e to every connection in the room at call time and
// returns how many accepted it. Only the delivery timeout bounds the fan-out,
// cancelling ctx does not.
func (c *Channel) Publish(ctx context.Context, room domain.RoomKey, e event.DomainEvent) int {
	ctx = context.WithoutCancel(ctx)
	delivered := c.deliver(ctx, room, e)
	if c.broker != nil {
		c.relay(ctx, room, e)
	}
	return delivered
}

// DeliverLocal delivers an envelope received from another instance to the
// local members of its room only.
func (c *Channel) DeliverLocal(ctx context.Context, envelope contract.Envelope) int {
	if envelope.Origin == c.origin {
		return 0
	}
	e, err := event.Decode(envelope.Event, envelope.Data)
	if err != nil {
		c.log.Warn("Dropping relayed envelope", "room", envelope.Room.String(), "error", err)
		return 0
	}
	return c.deliver(ctx, envelope.Room, e)
}

func (c *Channel) deliver(ctx context.Context, room domain.RoomKey, e event.DomainEvent) int {
	conns := c.registry.ConnectionsFor(room)
	if len(conns) == 0 {
		c.log.Debug("Nobody in room", "room", room.String(), "event", e.Type())
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, c.deliveryTimeout)
	defer cancel()

	var delivered atomic.Int64
	var wg sync.WaitGroup
	for _, conn := range conns {
		wg.Add(1)
		go func(conn contract.Connection) {
			defer wg.Done()
			if err := conn.Consume(ctx, e); err != nil {
				c.log.Debug("Delivery missed", "connection", conn.ID(), "room", room.String(), "error", err)
				return
			}
			delivered.Add(1)
		}(conn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// Stragglers are counted as misses.
		c.log.Debug("Delivery timeout reached", "room", room.String(), "delivered", delivered.Load(), "members", len(conns))
	}
	return int(delivered.Load())
}

func (c *Channel) relay(ctx context.Context, room domain.RoomKey, e event.DomainEvent) {
	data, err := event.Encode(e)
	if err != nil {
		c.log.Warn("Event can't be relayed", "room", room.String(), "error", err)
		return
	}
	envelope := contract.Envelope{Origin: c.origin, Room: room, Event: e.Type(), Data: data}
	if err = c.broker.Publish(ctx, envelope); err != nil {
		c.log.Warn("Relay publish failed", "room", room.String(), "error", err)
	}
}
