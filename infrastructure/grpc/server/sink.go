package server

import (
	"context"

	"vibehive/contract"
	"vibehive/domain/event"
	"vibehive/errors"

	"github.com/google/uuid"
)

var _ contract.Connection = (*StreamSink)(nil)

// StreamSink is the realtime connection behind one Connect stream.
// The gRPC handler drains Events and writes them to the stream.
type StreamSink struct {
	id     string
	Events chan event.DomainEvent
}

func NewStreamSink(bufferSize int) *StreamSink {
	return &StreamSink{id: uuid.NewString(), Events: make(chan event.DomainEvent, bufferSize)}
}

func (s *StreamSink) ID() string { return s.id }

// Consume never waits: a free buffer slot always wins, a full buffer is a miss
// for this stream.
func (s *StreamSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case s.Events <- e:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.ErrConnectionBacklog
}
