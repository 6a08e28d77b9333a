package event

import (
	"vibehive/domain"
)

type Type string

const (
	TypeMessageDelivered Type = "receive_message"
	TypeSendAcknowledged Type = "send_ack"
	TypeSendRejected     Type = "send_error"
)

// DomainEvent is what the realtime channel carries to connections.
type DomainEvent interface {
	Type() Type
}

// MessageDelivered is the broadcast of a persisted message to a room.
type MessageDelivered struct {
	Message domain.Message
}

func (MessageDelivered) Type() Type { return TypeMessageDelivered }

// SendAcknowledged is returned to the originating connection only.
type SendAcknowledged struct {
	RequestID string
	Message   domain.Message
}

func (SendAcknowledged) Type() Type { return TypeSendAcknowledged }

// SendRejected tells the originating connection its intent was dropped.
type SendRejected struct {
	RequestID string
	Code      string
	Reason    string
}

func (SendRejected) Type() Type { return TypeSendRejected }
