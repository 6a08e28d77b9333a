package runtime

import (
	"context"
	"testing"

	"vibehive/domain"
	"vibehive/domain/event"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeConnection struct {
	id string
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{id: uuid.NewString()}
}

func (c *fakeConnection) ID() string { return c.id }

func (c *fakeConnection) Consume(_ context.Context, _ event.DomainEvent) error { return nil }

func TestRegistry_Join_One_Room_One_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	room := domain.ParticipantRoom("alice")
	conn := newFakeConnection()

	// Given nobody is connected
	req.Equal(RegistryStats{}, registry.Stats())

	// When a connection joins a room
	req.True(registry.Join(conn, room))

	// Then
	req.Equal(RegistryStats{Rooms: 1, Connections: 1}, registry.Stats())
	req.Len(registry.ConnectionsFor(room), 1)
	req.Contains(registry.ConnectionsFor(room), conn)
}

func TestRegistry_Join_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	room := domain.ParticipantRoom("alice")
	conn := newFakeConnection()

	req.True(registry.Join(conn, room))
	req.False(registry.Join(conn, room))

	req.Len(registry.ConnectionsFor(room), 1)
	req.Len(registry.RoomsOf(conn.ID()), 1)
}

func TestRegistry_Same_Participant_Many_Devices(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	room := domain.ParticipantRoom("alice")
	phone, laptop := newFakeConnection(), newFakeConnection()

	// When alice connects twice
	registry.Join(phone, room)
	registry.Join(laptop, room)

	// Then both devices are members
	req.ElementsMatch([]any{phone, laptop}, toAny(registry.ConnectionsFor(room)))

	// And leaving with one keeps the other
	registry.Leave(phone.ID())
	req.Len(registry.ConnectionsFor(room), 1)
	req.Contains(registry.ConnectionsFor(room), laptop)
}

func TestRegistry_Leave_Removes_All_Rooms(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	alice, bob := domain.ParticipantRoom("alice"), domain.ParticipantRoom("bob")
	conn := newFakeConnection()
	other := newFakeConnection()

	// Given a connection in two rooms and another in one
	registry.Join(conn, alice)
	registry.Join(conn, bob)
	registry.Join(other, bob)

	// When it leaves
	left := registry.Leave(conn.ID())

	// Then it is gone from both
	req.ElementsMatch([]domain.RoomKey{alice, bob}, left)
	req.Nil(registry.ConnectionsFor(alice))
	req.Len(registry.ConnectionsFor(bob), 1)
	req.Empty(registry.RoomsOf(conn.ID()))
	req.Equal(RegistryStats{Rooms: 1, Connections: 1}, registry.Stats())
}

func TestRegistry_Leave_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()

	req.Empty(registry.Leave("ghost"))
	req.Equal(RegistryStats{}, registry.Stats())
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
