// Package publisher provides fire-and-forget event publishing with bounded
// retry. A publish failure after exhausting retries is non-fatal: the
// business transaction that triggered it has already committed and is never
// rolled back because a notification could not be sent.
package publisher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/ids"
	"github.com/bookhive/bookhive/internal/jsoncodec"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/metadata"
)

var (
	publishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookhive",
		Subsystem: "publisher",
		Name:      "failures_total",
		Help:      "Publishes that exhausted their retries.",
	})

	resendAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bookhive",
		Subsystem: "publisher",
		Name:      "resend_attempts_total",
		Help:      "Best-effort resends of previously failed publishes.",
	})
)

// Options tunes the resilient publisher.
type Options struct {
	MaxAttempts    int           // default 3
	InitialBackoff time.Duration // default 100ms
	MaxBackoff     time.Duration // default 2s
	ResendCapacity int           // default 64; 0 keeps the default, negative disables buffering
}

// Publisher wraps the broker's fire-and-forget path with bounded retry and
// a best-effort resend buffer. Safe for concurrent use.
type Publisher struct {
	inner  message.Publisher
	logger logging.ServiceLogger

	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu       sync.Mutex
	backlog  []failedPublish
	capacity int
}

type failedPublish struct {
	topic    string
	payload  []byte
	metadata metadata.Metadata
}

// New builds a resilient publisher over the broker publisher.
func New(opts Options, inner message.Publisher, logger logging.ServiceLogger) (*Publisher, error) {
	if inner == nil {
		return nil, errs.ErrPublisherRequired
	}
	if logger == nil {
		return nil, errs.ErrLoggerRequired
	}

	p := &Publisher{
		inner:          inner,
		logger:         logger.With(logging.LogFields{"component": "publisher"}),
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		capacity:       opts.ResendCapacity,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = 3
	}
	if p.initialBackoff <= 0 {
		p.initialBackoff = 100 * time.Millisecond
	}
	if p.maxBackoff <= 0 {
		p.maxBackoff = 2 * time.Second
	}
	if p.capacity == 0 {
		p.capacity = 64
	}
	return p, nil
}

// Publish marshals payload and sends it to topic, retrying transport
// failures with exponential backoff. The returned error is informational:
// callers announcing a committed transaction log it and move on.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any, md metadata.Metadata) error {
	if topic == "" {
		return errs.ErrTopicRequired
	}

	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		return errs.Wrap(errs.KindValidation, "marshal event payload", err)
	}

	if err := p.sendWithRetry(ctx, topic, body, md); err != nil {
		publishFailuresTotal.Inc()
		p.logger.Error("publish failed after retries, buffering for resend", err, logging.LogFields{
			"topic": topic,
		})
		p.buffer(failedPublish{topic: topic, payload: body, metadata: md.Clone()})
		return err
	}
	return nil
}

// Resend retries everything in the backlog once, keeping whatever still
// fails. Call sites that can tolerate the latency invoke this on a timer.
func (p *Publisher) Resend(ctx context.Context) {
	p.mu.Lock()
	backlog := p.backlog
	p.backlog = nil
	p.mu.Unlock()

	for _, failed := range backlog {
		resendAttemptsTotal.Inc()
		if err := p.sendWithRetry(ctx, failed.topic, failed.payload, failed.metadata); err != nil {
			p.buffer(failed)
		}
	}
}

// Backlog reports how many failed publishes await resend.
func (p *Publisher) Backlog() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.backlog)
}

func (p *Publisher) buffer(failed failedPublish) {
	if p.capacity < 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.backlog) >= p.capacity {
		// Oldest entry gives way; delivery is best-effort by contract.
		p.backlog = p.backlog[1:]
	}
	p.backlog = append(p.backlog, failed)
}

func (p *Publisher) sendWithRetry(ctx context.Context, topic string, body []byte, md metadata.Metadata) error {
	msg := message.NewMessage(ids.CreateULID(), body)
	msg.Metadata = metadata.ToWatermill(md)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.initialBackoff
	bo.MaxInterval = p.maxBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0

	attempts := 0
	operation := func() error {
		attempts++
		return p.inner.Publish(topic, msg)
	}
	notify := func(err error, next time.Duration) {
		p.logger.Debug("publish failed, backing off", logging.LogFields{
			"topic":        topic,
			"error":        err.Error(),
			"next_attempt": next.String(),
		})
	}

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(p.maxAttempts-1)), ctx),
		notify,
	)
	if err != nil {
		return errs.Wrap(errs.KindRPCTransport,
			fmt.Sprintf("publish to %s failed after %d attempts", topic, attempts), err)
	}
	return nil
}
