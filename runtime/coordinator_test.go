package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"vibehive/contract"
	"vibehive/domain"
	"vibehive/domain/event"
	"vibehive/errors"
	"vibehive/infrastructure/storage"
	"vibehive/mocks"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestCoordinator_Send_Persists_Then_Broadcasts_Receiver_First(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	coordinator := NewCoordinator(slog.Default(), store, publisher, 0, 1)
	message := sampleMessage()

	gomock.InOrder(
		store.EXPECT().Append(gomock.Any(), message.Sender, message.Receiver, message.Content).Return(message, nil),
		publisher.EXPECT().Publish(gomock.Any(), domain.ParticipantRoom("bob"), event.MessageDelivered{Message: message}).Return(2),
		publisher.EXPECT().Publish(gomock.Any(), domain.ParticipantRoom("alice"), event.MessageDelivered{Message: message}).Return(1),
	)

	receipt, err := coordinator.Send(context.Background(), domain.SendIntent{Sender: "alice", Receiver: "bob", Content: "hi"})

	req.NoError(err)
	req.Equal(domain.Receipt{Message: message, DeliveredToReceiver: 2, DeliveredToSender: 1}, receipt)
}

func TestCoordinator_Send_Invalid_Intent_Touches_Nothing(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	coordinator := NewCoordinator(slog.Default(), mocks.NewMockMessageStore(ctrl), mocks.NewMockPublisher(ctrl), 5, 1)

	testCases := []domain.SendIntent{
		{Sender: "", Receiver: "bob", Content: "hi"},
		{Sender: "alice", Receiver: "", Content: "hi"},
		{Sender: "alice", Receiver: "bob", Content: "   "},
		{Sender: "alice", Receiver: "bob", Content: "too long"},
	}
	for _, intent := range testCases {
		_, err := coordinator.Send(context.Background(), intent)
		req.ErrorIs(err, errors.ErrValidation)
	}
}

func TestCoordinator_Send_Retries_Storage_Error_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	coordinator := NewCoordinator(slog.Default(), store, publisher, 0, 1)
	coordinator.retryDelay = time.Millisecond
	message := sampleMessage()

	gomock.InOrder(
		store.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(domain.Message{}, fmt.Errorf("%w: disk full", errors.ErrStorage)),
		store.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(message, nil),
	)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Return(1).Times(2)

	receipt, err := coordinator.Send(context.Background(), domain.SendIntent{Sender: "alice", Receiver: "bob", Content: "hi"})
	req.NoError(err)
	req.Equal(message, receipt.Message)
}

func TestCoordinator_Send_Gives_Up_After_Retries(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	coordinator := NewCoordinator(slog.Default(), store, mocks.NewMockPublisher(ctrl), 0, 1)
	coordinator.retryDelay = time.Millisecond

	store.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domain.Message{}, fmt.Errorf("%w: disk full", errors.ErrStorage)).Times(2)

	// Then no broadcast happens (no Publish expected)
	_, err := coordinator.Send(context.Background(), domain.SendIntent{Sender: "alice", Receiver: "bob", Content: "hi"})
	req.ErrorIs(err, errors.ErrStorage)
}

func TestCoordinator_Send_Does_Not_Retry_Validation_From_Store(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	coordinator := NewCoordinator(slog.Default(), store, mocks.NewMockPublisher(ctrl), 0, 3)

	store.EXPECT().Append(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(domain.Message{}, errors.ErrValidation).Times(1)

	_, err := coordinator.Send(context.Background(), domain.SendIntent{Sender: "alice", Receiver: "bob", Content: "hi"})
	req.ErrorIs(err, errors.ErrValidation)
}

func TestCoordinator_Send_To_Self_Publishes_Once(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	coordinator := NewCoordinator(slog.Default(), store, publisher, 0, 1)
	note := sampleMessage()
	note.Receiver = note.Sender

	store.EXPECT().Append(gomock.Any(), note.Sender, note.Sender, note.Content).Return(note, nil)
	publisher.EXPECT().Publish(gomock.Any(), domain.ParticipantRoom(note.Sender), gomock.Any()).Return(1).Times(1)

	receipt, err := coordinator.Send(context.Background(), domain.SendIntent{Sender: note.Sender, Receiver: note.Sender, Content: note.Content})
	req.NoError(err)
	req.Equal(1, receipt.DeliveredToReceiver)
	req.Equal(1, receipt.DeliveredToSender)
}

// historyCheckingConnection records, for every delivery, whether the
// delivered message was already readable from the store.
type historyCheckingConnection struct {
	id    string
	store contract.HistoryReader

	mu        sync.Mutex
	received  []domain.Message
	persisted []bool
}

func (c *historyCheckingConnection) ID() string { return c.id }

func (c *historyCheckingConnection) Consume(ctx context.Context, e event.DomainEvent) error {
	delivered, ok := e.(event.MessageDelivered)
	if !ok {
		return nil
	}
	history, err := c.store.History(ctx, delivered.Message.Sender, delivered.Message.Receiver)
	if err != nil {
		return err
	}
	found := false
	for _, m := range history {
		if m.ID == delivered.Message.ID {
			found = true
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, delivered.Message)
	c.persisted = append(c.persisted, found)
	return nil
}

func TestCoordinator_Send_End_To_End_With_Badger(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	store, err := storage.Open(ctx, storage.DriverBadger, t.TempDir(), slog.Default(), 50)
	req.NoError(err)
	defer store.Close()

	channel := NewChannel(slog.Default(), NewRegistry(), time.Second)
	coordinator := NewCoordinator(slog.Default(), store, channel, 1000, 1)
	alice := &historyCheckingConnection{id: "alice-1", store: store}
	bob := &historyCheckingConnection{id: "bob-1", store: store}
	channel.Join(alice, domain.ParticipantRoom("alice"))
	channel.Join(bob, domain.ParticipantRoom("bob"))

	// When alice sends to bob
	receipt, err := coordinator.Send(ctx, domain.SendIntent{Sender: "alice", Receiver: "bob", Content: "hi bob"})
	req.NoError(err)

	// Then both got the same persisted message, readable before they were told
	req.Equal(1, receipt.DeliveredToReceiver)
	req.Equal(1, receipt.DeliveredToSender)
	req.Equal([]domain.Message{receipt.Message}, bob.received)
	req.Equal([]domain.Message{receipt.Message}, alice.received)
	req.Equal([]bool{true}, bob.persisted)
	req.Equal([]bool{true}, alice.persisted)

	// And a participant offline at send time finds it in history
	history, err := store.History(ctx, "bob", "alice")
	req.NoError(err)
	req.Equal([]domain.Message{receipt.Message}, history)
}

func TestCoordinator_Send_Broadcasts_After_Caller_Gave_Up(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockMessageStore(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	coordinator := NewCoordinator(slog.Default(), store, publisher, 0, 1)
	message := sampleMessage()
	ctx, cancel := context.WithCancel(context.Background())

	// Given the caller hangs up right after the append committed
	store.EXPECT().Append(gomock.Any(), message.Sender, message.Receiver, message.Content).
		DoAndReturn(func(context.Context, domain.ParticipantID, domain.ParticipantID, string) (domain.Message, error) {
			cancel()
			return message, nil
		})
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any(), event.MessageDelivered{Message: message}).
		DoAndReturn(func(ctx context.Context, _ domain.RoomKey, _ event.DomainEvent) int {
			if ctx.Err() != nil {
				return 0
			}
			return 1
		}).Times(2)

	receipt, err := coordinator.Send(ctx, domain.SendIntent{Sender: "alice", Receiver: "bob", Content: "hi"})

	// Then both rooms were still reached
	req.NoError(err)
	req.Equal(1, receipt.DeliveredToReceiver)
	req.Equal(1, receipt.DeliveredToSender)
}
