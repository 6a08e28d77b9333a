package chatv1

import (
	"encoding/json"

	"vibehive/domain/event"
)

type Message = event.MessagePayload

type SendRequest struct {
	RequestID string `json:"requestId,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Receiver  string `json:"receiver"`
	Content   string `json:"content"`
}

type SendResponse struct {
	Message             Message `json:"message"`
	DeliveredToReceiver int     `json:"deliveredToReceiver"`
	DeliveredToSender   int     `json:"deliveredToSender"`
}

type HistoryRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type HistoryResponse struct {
	Messages []Message `json:"messages"`
}

type WindowRequest struct {
	A      string  `json:"a"`
	B      string  `json:"b"`
	Limit  int     `json:"limit,omitempty"`
	Before *string `json:"before,omitempty"`
}

type WindowResponse struct {
	Messages   []Message `json:"messages"`
	NextCursor *string   `json:"nextCursor,omitempty"`
}

type ConversationsRequest struct {
	Viewer string   `json:"viewer"`
	With   []string `json:"with,omitempty"`
}

type Conversation struct {
	Counterparty string    `json:"counterparty"`
	Count        int       `json:"count"`
	Last         Message   `json:"last"`
	Messages     []Message `json:"messages"`
}

type ConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type ConnectRequest struct {
	Participant string `json:"participant,omitempty"`
}

// ChatEvent is one server push on the Connect stream.
type ChatEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
