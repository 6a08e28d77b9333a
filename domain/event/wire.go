package event

import (
	"encoding/json"
	"fmt"
	"time"

	"vibehive/domain"
	"vibehive/errors"

	"github.com/google/uuid"
)

// MessagePayload is the JSON shape of a message on every transport.
type MessagePayload struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Seq       uint64    `json:"seq"`
}

func NewMessagePayload(m domain.Message) MessagePayload {
	return MessagePayload{
		ID:        m.ID.String(),
		Sender:    string(m.Sender),
		Receiver:  string(m.Receiver),
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Seq:       m.Sequence,
	}
}

func (p MessagePayload) Message() (domain.Message, error) {
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id %q: %w", p.ID, err)
	}
	return domain.Message{
		ID:        id,
		Sender:    domain.ParticipantID(p.Sender),
		Receiver:  domain.ParticipantID(p.Receiver),
		Content:   p.Content,
		CreatedAt: p.CreatedAt.UTC(),
		Sequence:  p.Seq,
	}, nil
}

type AckPayload struct {
	RequestID string         `json:"requestId,omitempty"`
	Message   MessagePayload `json:"message"`
}

type RejectPayload struct {
	RequestID string `json:"requestId,omitempty"`
	Code      string `json:"code"`
	Reason    string `json:"reason"`
}

// Encode renders the payload of e, without its type.
func Encode(e DomainEvent) (json.RawMessage, error) {
	switch evt := e.(type) {
	case MessageDelivered:
		return json.Marshal(NewMessagePayload(evt.Message))
	case SendAcknowledged:
		return json.Marshal(AckPayload{RequestID: evt.RequestID, Message: NewMessagePayload(evt.Message)})
	case SendRejected:
		return json.Marshal(RejectPayload{RequestID: evt.RequestID, Code: evt.Code, Reason: evt.Reason})
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, e)
	}
}

// Decode is the inverse of Encode.
func Decode(t Type, data json.RawMessage) (DomainEvent, error) {
	switch t {
	case TypeMessageDelivered:
		var p MessagePayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		m, err := p.Message()
		if err != nil {
			return nil, err
		}
		return MessageDelivered{Message: m}, nil
	case TypeSendAcknowledged:
		var p AckPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		m, err := p.Message.Message()
		if err != nil {
			return nil, err
		}
		return SendAcknowledged{RequestID: p.RequestID, Message: m}, nil
	case TypeSendRejected:
		var p RejectPayload
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return SendRejected{RequestID: p.RequestID, Code: p.Code, Reason: p.Reason}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, t)
	}
}
