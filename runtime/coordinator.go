package runtime

import (
	"context"
	goerrors "errors"
	"log/slog"
	"time"

	"vibehive/contract"
	"vibehive/domain"
	"vibehive/domain/event"
	"vibehive/errors"
)

type SendState string

const (
	StateReceived     SendState = "received"
	StatePersisting   SendState = "persisting"
	StatePersisted    SendState = "persisted"
	StateBroadcasting SendState = "broadcasting"
	StateDelivered    SendState = "delivered"
	StateFailed       SendState = "failed"
)

// Coordinator turns a send intent into a persisted message and its live deliveries.
// A message is always stored before anyone is told about it.
type Coordinator struct {
	log              *slog.Logger
	store            contract.MessageStore
	publisher        contract.Publisher
	maxContentLength int
	storageRetries   int
	retryDelay       time.Duration
}

func NewCoordinator(log *slog.Logger, store contract.MessageStore, publisher contract.Publisher, maxContentLength, storageRetries int) *Coordinator {
	return &Coordinator{
		log:              log,
		store:            store,
		publisher:        publisher,
		maxContentLength: maxContentLength,
		storageRetries:   storageRetries,
		retryDelay:       50 * time.Millisecond,
	}
}

// Send persists the intent then broadcasts the stored message to the
// receiver room first and the sender room second.
// Nothing is broadcast when validation or persistence fails.
func (c *Coordinator) Send(ctx context.Context, intent domain.SendIntent) (domain.Receipt, error) {
	log := c.log.With("request_id", intent.RequestID, "sender", intent.Sender.String(), "receiver", intent.Receiver.String())
	log.Debug("Send intent", "state", StateReceived)

	if err := intent.Validate(c.maxContentLength); err != nil {
		log.Debug("Send intent rejected", "state", StateFailed, "error", err)
		return domain.Receipt{}, err
	}

	log.Debug("Send intent", "state", StatePersisting)
	message, err := c.persist(ctx, log, intent)
	if err != nil {
		log.Error("Message not persisted", "state", StateFailed, "error", err)
		return domain.Receipt{}, err
	}
	log = log.With("message_id", message.ID.String())
	log.Debug("Send intent", "state", StatePersisted)

	log.Debug("Send intent", "state", StateBroadcasting)
	// The message is durable now; the caller going away must not cancel its fan-out.
	broadcastCtx := context.WithoutCancel(ctx)
	delivered := event.MessageDelivered{Message: message}
	receipt := domain.Receipt{Message: message}
	receipt.DeliveredToReceiver = c.publisher.Publish(broadcastCtx, domain.ParticipantRoom(message.Receiver), delivered)
	if message.Sender == message.Receiver {
		receipt.DeliveredToSender = receipt.DeliveredToReceiver
	} else {
		receipt.DeliveredToSender = c.publisher.Publish(broadcastCtx, domain.ParticipantRoom(message.Sender), delivered)
	}
	log.Debug("Send intent", "state", StateDelivered,
		"to_receiver", receipt.DeliveredToReceiver, "to_sender", receipt.DeliveredToSender)
	return receipt, nil
}

func (c *Coordinator) persist(ctx context.Context, log *slog.Logger, intent domain.SendIntent) (domain.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= c.storageRetries; attempt++ {
		if attempt > 0 {
			log.Warn("Retrying message append", "attempt", attempt, "error", lastErr)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return domain.Message{}, lastErr
			}
		}
		message, err := c.store.Append(ctx, intent.Sender, intent.Receiver, intent.Content)
		if err == nil {
			return message, nil
		}
		lastErr = err
		if !goerrors.Is(err, errors.ErrStorage) {
			break
		}
	}
	return domain.Message{}, lastErr
}
