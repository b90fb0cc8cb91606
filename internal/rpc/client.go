// Package rpc layers an awaitable request/response contract on top of the
// fire-and-forget broker transport. Requests carry a fresh correlation id
// and a reply queue; the client suspends the caller until the matching
// reply arrives or the deadline fires.
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/ids"
	"github.com/bookhive/bookhive/internal/jsoncodec"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/transport"
)

const (
	// DefaultTimeout bounds how long a caller waits for a reply.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxAttempts bounds transport-level publish retries per call.
	DefaultMaxAttempts = 3

	// DefaultInitialBackoff is the base delay; each retry doubles it.
	DefaultInitialBackoff = 100 * time.Millisecond

	// DefaultMaxBackoff caps the delay between retries.
	DefaultMaxBackoff = 2 * time.Second
)

// Options tunes a Client. Zero values fall back to the defaults above.
type Options struct {
	// ServiceName prefixes the private reply queue.
	ServiceName string

	// Routes maps logical destination kinds to the topic prefix of the
	// owning service's queue. Calls to kinds missing from the table fail;
	// config validation rejects unknown kinds before the client is built.
	Routes map[string]string

	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type pendingReply struct {
	payload  []byte
	metadata metadata.Metadata
}

// Client turns queue messages into awaitable calls. Safe for many
// concurrent callers sharing one broker connection.
type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     logging.ServiceLogger

	routes     map[string]string
	replyTopic string

	timeout        time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	pending *pendingTable
}

// NewClient builds a Client over the given transport. The route table is
// checked here so an unknown destination kind is a startup failure, not a
// call-time one.
func NewClient(opts Options, tr transport.Transport, logger logging.ServiceLogger) (*Client, error) {
	if tr.Publisher == nil || tr.Subscriber == nil {
		return nil, errs.NewConfigValidationError(fmt.Errorf("rpc: transport publisher and subscriber are required"))
	}
	if logger == nil {
		return nil, errs.ErrLoggerRequired
	}
	if len(opts.Routes) == 0 {
		return nil, errs.NewConfigValidationError(fmt.Errorf("rpc: route table is empty"))
	}
	for kind, prefix := range opts.Routes {
		if prefix == "" {
			return nil, errs.NewConfigValidationError(fmt.Errorf("rpc: route %q has empty topic prefix", kind))
		}
	}

	name := opts.ServiceName
	if name == "" {
		name = "rpc"
	}

	c := &Client{
		publisher:      tr.Publisher,
		subscriber:     tr.Subscriber,
		logger:         logger.With(logging.LogFields{"component": "rpc_client"}),
		routes:         opts.Routes,
		replyTopic:     fmt.Sprintf("%s.replies.%s", name, ids.CreateULID()),
		timeout:        opts.Timeout,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		pending:        newPendingTable(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.initialBackoff <= 0 {
		c.initialBackoff = DefaultInitialBackoff
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = DefaultMaxBackoff
	}
	return c, nil
}

// ReplyTopic returns the private queue replies are routed to.
func (c *Client) ReplyTopic() string { return c.replyTopic }

// Start subscribes to the reply queue and begins dispatching replies.
// It must be called before the first Call; the consume loop stops when ctx
// is cancelled.
func (c *Client) Start(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.replyTopic)
	if err != nil {
		return errs.Wrap(errs.KindRPCTransport, "subscribe to reply queue", err)
	}
	go c.consumeReplies(messages)
	return nil
}

func (c *Client) consumeReplies(messages <-chan *message.Message) {
	for msg := range messages {
		c.dispatch(msg)
		msg.Ack()
	}
}

// dispatch resolves at most one waiter per correlation id. Late or
// duplicate replies find no pending entry and are discarded.
func (c *Client) dispatch(msg *message.Message) {
	correlationID := msg.Metadata.Get(metadata.KeyCorrelationID)
	if correlationID == "" {
		c.logger.Debug("discarding reply without correlation id", logging.LogFields{
			"message_uuid": msg.UUID,
		})
		return
	}

	waiter, ok := c.pending.take(correlationID)
	if !ok {
		discardedRepliesTotal.Inc()
		c.logger.Info("discarding late or duplicate reply", logging.LogFields{
			"correlation_id": correlationID,
			"message_uuid":   msg.UUID,
		})
		return
	}

	waiter <- pendingReply{payload: msg.Payload, metadata: metadata.FromWatermill(msg.Metadata)}
}

// Call sends payload to the destination kind's queue and waits for the
// correlated reply. A timeout surfaces KindRPCTimeout and is never retried
// here; retry-on-timeout is the caller's explicit decision. Transport
// failures are retried with exponential backoff before surfacing
// KindRPCTransport.
func (c *Client) Call(ctx context.Context, destination, op string, payload any, timeout time.Duration) ([]byte, error) {
	topic, err := c.resolve(destination, op)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = c.timeout
	}

	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "marshal request payload", err)
	}

	correlationID := ids.CreateULID()
	waiter := c.pending.register(correlationID)
	defer c.pending.remove(correlationID)

	msg := message.NewMessage(ids.CreateULID(), body)
	msg.Metadata.Set(metadata.KeyCorrelationID, correlationID)
	msg.Metadata.Set(metadata.KeyReplyTo, c.replyTopic)
	if credential := CredentialFromContext(ctx); credential != "" {
		msg.Metadata.Set(metadata.KeyAuthorization, "Bearer "+credential)
	}

	if err := c.send(ctx, topic, msg); err != nil {
		callsTotal.WithLabelValues(destination, "transport_error").Inc()
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-waiter:
		callsTotal.WithLabelValues(destination, "ok").Inc()
		return reply.payload, nil
	case <-timer.C:
		callsTotal.WithLabelValues(destination, "timeout").Inc()
		return nil, errs.Newf(errs.KindRPCTimeout, "no reply from %s within %s", topic, timeout)
	case <-ctx.Done():
		callsTotal.WithLabelValues(destination, "cancelled").Inc()
		return nil, errs.Wrap(errs.KindRPCTimeout, "call cancelled", ctx.Err())
	}
}

// Invoke is the typed variant of Call: it marshals req, unwraps the reply
// envelope into out, and reconstructs tagged errors from the wire.
func (c *Client) Invoke(ctx context.Context, destination, op string, req, out any, timeout time.Duration) error {
	payload, err := c.Call(ctx, destination, op, req, timeout)
	if err != nil {
		return err
	}
	return DecodeReply(payload, out)
}

func (c *Client) resolve(destination, op string) (string, error) {
	prefix, ok := c.routes[destination]
	if !ok {
		return "", errs.NewConfigValidationError(fmt.Errorf("rpc: no route for destination kind %q", destination))
	}
	if op == "" {
		return prefix, nil
	}
	return prefix + "." + op, nil
}

// send publishes with bounded exponential backoff. The final failed attempt
// surfaces to the caller, never silently swallowed.
func (c *Client) send(ctx context.Context, topic string, msg *message.Message) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialBackoff
	bo.MaxInterval = c.maxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempts := 0
	operation := func() error {
		attempts++
		return c.publisher.Publish(topic, msg)
	}
	notify := func(err error, next time.Duration) {
		publishRetriesTotal.Inc()
		c.logger.Debug("publish failed, backing off", logging.LogFields{
			"topic":        topic,
			"error":        err.Error(),
			"next_attempt": next.String(),
		})
	}

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.maxAttempts-1)), ctx),
		notify,
	)
	if err != nil {
		return errs.Wrap(errs.KindRPCTransport,
			fmt.Sprintf("publish to %s failed after %d attempts", topic, attempts), err)
	}
	return nil
}
