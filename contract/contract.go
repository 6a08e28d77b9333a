//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"encoding/json"
	"reflect"

	"vibehive/domain"
	"vibehive/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging during supervision, so workers don't have to name themselves.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// HistoryReader is the read side of the message store.
type HistoryReader interface {
	History(ctx context.Context, a, b domain.ParticipantID) ([]domain.Message, error)
	Window(ctx context.Context, a, b domain.ParticipantID, page domain.Page) ([]domain.Message, *string, error)
	Counterparties(ctx context.Context, viewer domain.ParticipantID) ([]domain.ParticipantID, error)
}

// MessageStore is the durable, append-only record of direct messages.
// Append must serialize concurrent writers so every message gets a distinct
// (CreatedAt, Sequence) position.
type MessageStore interface {
	HistoryReader
	Append(ctx context.Context, sender, receiver domain.ParticipantID, content string) (domain.Message, error)
	Close() error
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Connection is one open realtime session. Its ID is unique per process.
type Connection interface {
	EventSink
	ID() string
}

// Publisher delivers an event to every connection of a room at call time.
// It returns the number of connections that accepted the event.
type Publisher interface {
	Publish(ctx context.Context, room domain.RoomKey, e event.DomainEvent) int
}

// Envelope is what travels between instances through a Broker.
type Envelope struct {
	Origin string          `json:"origin"`
	Room   domain.RoomKey  `json:"room"`
	Event  event.Type      `json:"type"`
	Data   json.RawMessage `json:"data"`
}

// Broker relays room publications across server instances.
type Broker interface {
	Publish(ctx context.Context, envelope Envelope) error
	Subscribe(ctx context.Context, handle func(Envelope)) error
	Close() error
}
