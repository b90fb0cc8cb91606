package reservation

import (
	"context"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/publisher"
)

// Notifier delivers reservation lifecycle notifications. Delivery is
// best-effort: the reservation state is committed before Announce runs.
type Notifier interface {
	Announce(ctx context.Context, env Envelope) error
}

// NopNotifier discards notifications. Useful in tests and tooling.
type NopNotifier struct{}

func (NopNotifier) Announce(context.Context, Envelope) error { return nil }

// BrokerNotifier publishes envelopes to a broker topic through the
// resilient publisher, so transient broker outages are retried and
// buffered for resend.
type BrokerNotifier struct {
	pub   *publisher.Publisher
	topic string
}

func NewBrokerNotifier(pub *publisher.Publisher, topic string) (*BrokerNotifier, error) {
	if pub == nil {
		return nil, errs.ErrPublisherRequired
	}
	if topic == "" {
		return nil, errs.ErrTopicRequired
	}
	return &BrokerNotifier{pub: pub, topic: topic}, nil
}

func (n *BrokerNotifier) Announce(ctx context.Context, env Envelope) error {
	md := metadata.New(metadata.KeyEventKind, env.EventKind)
	return n.pub.Publish(ctx, n.topic, env, md)
}
