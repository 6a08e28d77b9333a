package workers

import (
	"context"

	"vibehive/contract"
)

type localDeliverer interface {
	DeliverLocal(ctx context.Context, envelope contract.Envelope) int
}

// RelayWorker feeds publications of the other instances into the local channel.
type RelayWorker struct {
	broker  contract.Broker
	channel localDeliverer
}

func NewRelayWorker(broker contract.Broker, channel localDeliverer) *RelayWorker {
	return &RelayWorker{broker: broker, channel: channel}
}

// Run returns when ctx is done or when the subscription breaks, in which case
// the supervisor subscribes again.
func (w *RelayWorker) Run(ctx context.Context) error {
	return w.broker.Subscribe(ctx, func(envelope contract.Envelope) {
		w.channel.DeliverLocal(ctx, envelope)
	})
}
