package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/metadata"
)

type fakeBroker struct {
	mu        sync.Mutex
	failing   bool
	published []*message.Message
	topics    []string
}

func (f *fakeBroker) Publish(topic string, messages ...*message.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, messages...)
	for range messages {
		f.topics = append(f.topics, topic)
	}
	return nil
}

func (f *fakeBroker) Close() error { return nil }

func (f *fakeBroker) setFailing(failing bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = failing
}

func (f *fakeBroker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func testLogger() logging.ServiceLogger {
	return logging.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func fastOptions() Options {
	return Options{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestPublishDeliversPayload(t *testing.T) {
	broker := &fakeBroker{}
	pub, err := New(fastOptions(), broker, testLogger())
	if err != nil {
		t.Fatalf("publisher construction failed: %v", err)
	}

	err = pub.Publish(context.Background(), "booking.events", map[string]string{"k": "v"}, metadata.New(metadata.KeyEventKind, "created"))
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if broker.count() != 1 {
		t.Fatalf("expected one delivered message, got %d", broker.count())
	}
	if got := broker.published[0].Metadata.Get(metadata.KeyEventKind); got != "created" {
		t.Fatalf("expected event kind metadata, got %q", got)
	}
}

func TestPublishFailureBuffersForResend(t *testing.T) {
	broker := &fakeBroker{failing: true}
	pub, err := New(fastOptions(), broker, testLogger())
	if err != nil {
		t.Fatalf("publisher construction failed: %v", err)
	}

	err = pub.Publish(context.Background(), "booking.events", map[string]string{"k": "v"}, nil)
	if err == nil {
		t.Fatal("expected publish to report the failure")
	}
	if pub.Backlog() != 1 {
		t.Fatalf("expected one buffered publish, got %d", pub.Backlog())
	}

	broker.setFailing(false)
	pub.Resend(context.Background())
	if pub.Backlog() != 0 {
		t.Fatalf("expected drained backlog, got %d", pub.Backlog())
	}
	if broker.count() != 1 {
		t.Fatalf("expected the buffered message to be delivered, got %d", broker.count())
	}
}

func TestResendKeepsStillFailingPublishes(t *testing.T) {
	broker := &fakeBroker{failing: true}
	pub, err := New(fastOptions(), broker, testLogger())
	if err != nil {
		t.Fatalf("publisher construction failed: %v", err)
	}

	_ = pub.Publish(context.Background(), "a", "one", nil)
	_ = pub.Publish(context.Background(), "b", "two", nil)

	pub.Resend(context.Background())
	if pub.Backlog() != 2 {
		t.Fatalf("expected failures to be re-buffered, got %d", pub.Backlog())
	}
}

func TestBacklogDropsOldestAtCapacity(t *testing.T) {
	broker := &fakeBroker{failing: true}
	pub, err := New(Options{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		ResendCapacity: 2,
	}, broker, testLogger())
	if err != nil {
		t.Fatalf("publisher construction failed: %v", err)
	}

	_ = pub.Publish(context.Background(), "t", "one", nil)
	_ = pub.Publish(context.Background(), "t", "two", nil)
	_ = pub.Publish(context.Background(), "t", "three", nil)

	if pub.Backlog() != 2 {
		t.Fatalf("expected capacity-bounded backlog of 2, got %d", pub.Backlog())
	}

	broker.setFailing(false)
	pub.Resend(context.Background())
	if broker.count() != 2 {
		t.Fatalf("expected two resends, got %d", broker.count())
	}
	// The oldest entry was dropped; the survivors are the newest two.
	for _, msg := range broker.published {
		if string(msg.Payload) == `"one"` {
			t.Fatal("expected the oldest buffered publish to be dropped")
		}
	}
}
