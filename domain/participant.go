// Package domain contains core concepts of the messaging core.
// This file defines participant identities and the rooms addressed by them.
// No runtime, network, or storage logic should be added here.
package domain

import "fmt"

// ParticipantID is the opaque identity of a user able to send and receive messages.
// The core never interprets it; identity resolution belongs to the user service.
type ParticipantID string

func (p ParticipantID) String() string { return string(p) }

func (p ParticipantID) IsZero() bool { return p == "" }

type RoomKind string

const (
	// RoomParticipant rooms carry every delivery addressed to one participant.
	RoomParticipant RoomKind = "participant"
)

// RoomKey addresses a realtime room. The kind keeps participant rooms apart
// from any other namespace the channel may carry later.
type RoomKey struct {
	Kind RoomKind
	ID   string
}

func ParticipantRoom(id ParticipantID) RoomKey {
	return RoomKey{Kind: RoomParticipant, ID: string(id)}
}

func (k RoomKey) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.ID)
}
