// Package projection builds read models from stored messages and observed events.
// Handles ordering, deduplication, and per-counterparty grouping.
// Does not emit events or interact with UI directly.
package projection

import (
	"context"
	"slices"
	"sync"

	"vibehive/contract"
	"vibehive/domain"
	"vibehive/domain/event"
)

var _ contract.EventSink = (*Timeline)(nil)

// Timeline is the client side view of one conversation.
// History and live deliveries are merged by message id, so a message
// received both ways (around a reconnect) is shown once.
type Timeline struct {
	Owner        domain.ParticipantID
	Counterparty domain.ParticipantID

	mu       sync.Mutex
	messages []domain.Message
	seen     map[string]struct{}
}

func NewTimeline(owner, counterparty domain.ParticipantID) *Timeline {
	return &Timeline{
		Owner:        owner,
		Counterparty: counterparty,
		seen:         make(map[string]struct{}),
	}
}

// Hydrate merges a fetched history into the timeline.
func (t *Timeline) Hydrate(history []domain.Message) {
	for _, m := range history {
		t.Apply(m)
	}
}

// Apply merges one message and reports whether it was new.
// Messages of other conversations are ignored.
func (t *Timeline) Apply(m domain.Message) bool {
	if !m.Involves(t.Owner, t.Counterparty) {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	id := m.ID.String()
	if _, ok := t.seen[id]; ok {
		return false
	}
	t.seen[id] = struct{}{}
	i, _ := slices.BinarySearchFunc(t.messages, m, func(a, b domain.Message) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	t.messages = slices.Insert(t.messages, i, m)
	return true
}

// Messages returns a copy ordered by (CreatedAt, Sequence).
func (t *Timeline) Messages() []domain.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.messages)
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageDelivered:
		t.Apply(evt.Message)
	case event.SendAcknowledged:
		t.Apply(evt.Message)
	}
	return nil
}
