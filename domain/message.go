// Package domain contains core concepts of the messaging core.
// This file defines Message events and related rules.
// Messages are immutable once persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable direct message between two participants.
// ID, CreatedAt and Sequence are assigned by the store when it is persisted.
type Message struct {
	ID        uuid.UUID
	Sender    ParticipantID
	Receiver  ParticipantID
	Content   string
	CreatedAt time.Time
	Sequence  uint64 // store write order, breaks CreatedAt ties
}

// Less orders messages by (CreatedAt, Sequence).
func (m Message) Less(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.Sequence < other.Sequence
}

// Involves reports whether the message belongs to the conversation between a and b.
func (m Message) Involves(a, b ParticipantID) bool {
	return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
}

// Counterparty returns the other side of the conversation as seen by viewer.
func (m Message) Counterparty(viewer ParticipantID) ParticipantID {
	if m.Sender == viewer {
		return m.Receiver
	}
	return m.Sender
}

// Receipt reports what happened to one send intent: the persisted message and
// how many connections of each room accepted its delivery.
type Receipt struct {
	Message             Message
	DeliveredToReceiver int
	DeliveredToSender   int
}

// ConversationSummary is the chat list entry of one counterparty.
type ConversationSummary struct {
	Counterparty ParticipantID
	Last         Message
	Count        int
}
