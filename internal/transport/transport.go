// Package transport defines the broker connection shared by every bookhive
// service. Each backend (channel, rabbitmq, nats) lives in its own
// sub-package and registers itself with the transport registry.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines a publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder is the function signature for creating a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the configuration values needed by transports. The
// interface keeps backends decoupled from the full config package.
type Config interface {
	GetServiceName() string
	GetPubSubSystem() string
	GetRabbitMQURL() string
	GetNATSURL() string
}

// Capabilities describes the delivery guarantees of a transport backend.
type Capabilities struct {
	Name              string
	SupportsAck       bool
	SupportsNack      bool
	SupportsOrdering  bool
	SupportsNativeDLQ bool
}

// SupportsReliableDelivery reports whether the backend supports at-least-once
// delivery semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// Predefined capability sets for the supported backends.
var (
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsAck:      true,
		SupportsNack:     true,
		SupportsOrdering: true,
	}

	RabbitMQCapabilities = Capabilities{
		Name:              "rabbitmq",
		SupportsAck:       true,
		SupportsNack:      true,
		SupportsOrdering:  true,
		SupportsNativeDLQ: true,
	}

	NATSCapabilities = Capabilities{
		Name:         "nats",
		SupportsAck:  true,
		SupportsNack: true,
	}
)
