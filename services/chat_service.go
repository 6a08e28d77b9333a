//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"

	"vibehive/contract"
	"vibehive/domain"
	"vibehive/errors"
	"vibehive/projection"
	"vibehive/runtime"
)

// IChatService is what every transport (websocket, REST, gRPC) talks to.
type IChatService interface {
	Send(ctx context.Context, intent domain.SendIntent) (domain.Receipt, error)
	History(ctx context.Context, a, b domain.ParticipantID) ([]domain.Message, error)
	Window(ctx context.Context, a, b domain.ParticipantID, page domain.Page) ([]domain.Message, *string, error)
	Conversations(ctx context.Context, viewer domain.ParticipantID, candidates []domain.ParticipantID) (map[domain.ParticipantID][]domain.Message, error)
	Connect(conn contract.Connection, participant domain.ParticipantID)
	Disconnect(conn contract.Connection)
}

type ChatService struct {
	log          *slog.Logger
	store        contract.HistoryReader
	coordinator  *runtime.Coordinator
	channel      *runtime.Channel
	index        *projection.ConversationIndex
	maxPageLimit int
}

func NewChatService(log *slog.Logger, store contract.HistoryReader, coordinator *runtime.Coordinator,
	channel *runtime.Channel, index *projection.ConversationIndex, maxPageLimit int) *ChatService {
	return &ChatService{
		log:          log,
		store:        store,
		coordinator:  coordinator,
		channel:      channel,
		index:        index,
		maxPageLimit: maxPageLimit,
	}
}

func (s *ChatService) Send(ctx context.Context, intent domain.SendIntent) (domain.Receipt, error) {
	return s.coordinator.Send(ctx, intent)
}

// History is the canonical full history query, oldest first.
func (s *ChatService) History(ctx context.Context, a, b domain.ParticipantID) ([]domain.Message, error) {
	if err := requireParticipants(a, b); err != nil {
		return nil, err
	}
	return s.store.History(ctx, a, b)
}

// Window serves one bounded page. The limit is capped to maxPageLimit.
func (s *ChatService) Window(ctx context.Context, a, b domain.ParticipantID, page domain.Page) ([]domain.Message, *string, error) {
	if err := requireParticipants(a, b); err != nil {
		return nil, nil, err
	}
	if page.Limit < 0 {
		return nil, nil, fmt.Errorf("%w: negative limit", errors.ErrValidation)
	}
	if s.maxPageLimit > 0 && page.Limit > s.maxPageLimit {
		page.Limit = s.maxPageLimit
	}
	return s.store.Window(ctx, a, b, page)
}

func (s *ChatService) Conversations(ctx context.Context, viewer domain.ParticipantID, candidates []domain.ParticipantID) (map[domain.ParticipantID][]domain.Message, error) {
	if viewer.IsZero() {
		return nil, fmt.Errorf("%w: viewer is required", errors.ErrValidation)
	}
	return s.index.ConversationsFor(ctx, viewer, candidates)
}

// Connect puts a realtime connection in the room of participant.
func (s *ChatService) Connect(conn contract.Connection, participant domain.ParticipantID) {
	s.channel.Join(conn, domain.ParticipantRoom(participant))
}

func (s *ChatService) Disconnect(conn contract.Connection) {
	s.channel.Leave(conn)
}

func requireParticipants(a, b domain.ParticipantID) error {
	if a.IsZero() || b.IsZero() {
		return fmt.Errorf("%w: both participants are required", errors.ErrValidation)
	}
	return nil
}
