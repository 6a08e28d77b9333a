package realtime

import (
	"encoding/json"

	"vibehive/domain/event"
)

const (
	frameJoinRoom    = "join_room"
	frameSendMessage = "send_message"
	frameJoined      = "joined"
	frameError       = "error"
)

// inboundFrame is every client frame flattened.
// join_room uses Room and Token, send_message the rest.
type inboundFrame struct {
	Type      string `json:"type"`
	Room      string `json:"room,omitempty"`
	Token     string `json:"token,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Receiver  string `json:"receiver,omitempty"`
	Content   string `json:"content,omitempty"`
}

// OutboundFrame is what the server writes: a type and its payload.
type OutboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type joinedPayload struct {
	Participant string `json:"participant"`
}

func encodeEvent(e event.DomainEvent) ([]byte, error) {
	data, err := event.Encode(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(OutboundFrame{Type: string(e.Type()), Data: data})
}

func encodeFrame(frameType string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(OutboundFrame{Type: frameType, Data: data})
}
