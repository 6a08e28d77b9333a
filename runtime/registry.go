package runtime

import (
	"sync"

	"vibehive/contract"
	"vibehive/domain"
)

type Set map[string]struct{}

// Registry tracks which connection sits in which room.
// A connection may be in several rooms, and a room may hold several
// connections of the same participant (one per device).
type Registry struct {
	mu          sync.RWMutex
	connections map[string]contract.Connection // map connection id -> Connection
	roomMembers map[domain.RoomKey]Set         // map room -> connection ids
	memberships map[string]map[domain.RoomKey]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]contract.Connection),
		roomMembers: make(map[domain.RoomKey]Set),
		memberships: make(map[string]map[domain.RoomKey]struct{}),
	}
}

// Join puts the connection in the room. Joining twice is a no-op,
// it reports whether the membership is new.
func (r *Registry) Join(conn contract.Connection, room domain.RoomKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := conn.ID()
	r.connections[id] = conn

	members, ok := r.roomMembers[room]
	if !ok {
		members = make(Set)
		r.roomMembers[room] = members
	}
	if _, already := members[id]; already {
		return false
	}
	members[id] = struct{}{}

	rooms, ok := r.memberships[id]
	if !ok {
		rooms = make(map[domain.RoomKey]struct{})
		r.memberships[id] = rooms
	}
	rooms[room] = struct{}{}
	return true
}

// Leave removes the connection from every room it joined and forgets it.
// No empty room entry is left behind. It returns the rooms that were left.
func (r *Registry) Leave(connID string) []domain.RoomKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	rooms := r.memberships[connID]
	left := make([]domain.RoomKey, 0, len(rooms))
	for room := range rooms {
		if members, ok := r.roomMembers[room]; ok {
			delete(members, connID)
			if len(members) == 0 {
				delete(r.roomMembers, room)
			}
		}
		left = append(left, room)
	}
	delete(r.memberships, connID)
	delete(r.connections, connID)
	return left
}

// ConnectionsFor returns a snapshot of the room membership.
// Returns nil if the room doesn't exist.
func (r *Registry) ConnectionsFor(room domain.RoomKey) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[room]
	if !ok {
		return nil
	}
	active := make([]contract.Connection, 0, len(members))
	for id := range members {
		if conn, exists := r.connections[id]; exists {
			active = append(active, conn)
		}
	}
	return active
}

// RoomsOf lists the rooms a connection currently sits in.
func (r *Registry) RoomsOf(connID string) []domain.RoomKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rooms := make([]domain.RoomKey, 0, len(r.memberships[connID]))
	for room := range r.memberships[connID] {
		rooms = append(rooms, room)
	}
	return rooms
}

type RegistryStats struct {
	Rooms       int
	Connections int
}

func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegistryStats{Rooms: len(r.roomMembers), Connections: len(r.connections)}
}
