package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/config"
	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/jsoncodec"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/rpc"
	"github.com/bookhive/bookhive/internal/transport"
)

func messageWithMetadata(payload []byte, md metadata.Metadata) *message.Message {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata = metadata.ToWatermill(md)
	return msg
}

func testLogger() logging.ServiceLogger {
	return logging.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testConfig() *config.Config {
	return &config.Config{
		ServiceName:  "testsvc",
		PubSubSystem: "channel",
		Routes:       config.DefaultRoutes(),
	}
}

func channelTransport() transport.Transport {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	return transport.Transport{Publisher: pubSub, Subscriber: pubSub}
}

type stubValidator struct{}

func (stubValidator) Validate(_ context.Context, credential string) (*auth.Principal, error) {
	if credential != "good-token" {
		return nil, errs.Unauthorized("invalid credential")
	}
	return &auth.Principal{ID: "u1", Email: "u1@example.com"}, nil
}

// startService runs the router and waits for it to come up.
func startService(ctx context.Context, t *testing.T, svc *Service) {
	t.Helper()
	go func() {
		if err := svc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("service stopped: %v", err)
		}
	}()
	select {
	case <-svc.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start in time")
	}
}

func newClientFor(t *testing.T, ctx context.Context, tr transport.Transport) *rpc.Client {
	t.Helper()
	client, err := rpc.NewClient(rpc.Options{
		ServiceName: "caller",
		Routes:      config.DefaultRoutes(),
		Timeout:     2 * time.Second,
	}, tr, testLogger())
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	if err := client.Start(ctx); err != nil {
		t.Fatalf("client start failed: %v", err)
	}
	return client
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	conf := testConfig()
	conf.PubSubSystem = "carrier-pigeon"

	_, err := New(context.Background(), conf, testLogger(), Dependencies{})
	var cfgErr errs.ConfigValidationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigValidationError, got %v", err)
	}
}

func TestNewRequiresConfigAndLogger(t *testing.T) {
	if _, err := New(context.Background(), nil, testLogger(), Dependencies{}); !errors.Is(err, errs.ErrConfigRequired) {
		t.Fatalf("expected config required, got %v", err)
	}
	if _, err := New(context.Background(), testConfig(), nil, Dependencies{}); !errors.Is(err, errs.ErrLoggerRequired) {
		t.Fatalf("expected logger required, got %v", err)
	}
}

func TestRPCRoundTripThroughRouter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := channelTransport()
	svc, err := New(ctx, testConfig(), testLogger(), Dependencies{Transport: &tr})
	if err != nil {
		t.Fatalf("service construction failed: %v", err)
	}

	err = RegisterRPCHandler(svc, RPCHandlerRegistration{
		Name:   "echo",
		Queue:  "event.echo",
		Public: true,
		Handler: func(_ context.Context, payload []byte, _ metadata.Metadata) (any, error) {
			var req map[string]string
			if err := jsoncodec.Unmarshal(payload, &req); err != nil {
				return nil, err
			}
			return req, nil
		},
	})
	if err != nil {
		t.Fatalf("handler registration failed: %v", err)
	}

	err = RegisterRPCHandler(svc, RPCHandlerRegistration{
		Name:   "fail",
		Queue:  "event.fail",
		Public: true,
		Handler: func(context.Context, []byte, metadata.Metadata) (any, error) {
			return nil, errs.NotFound("event e1 not found")
		},
	})
	if err != nil {
		t.Fatalf("handler registration failed: %v", err)
	}

	startService(ctx, t, svc)
	client := newClientFor(t, ctx, tr)

	var out map[string]string
	if err := client.Invoke(ctx, "catalog", "echo", map[string]string{"k": "v"}, &out, 0); err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out["k"] != "v" {
		t.Fatalf("expected echoed payload, got %#v", out)
	}

	// A business error crosses the broker with its kind intact and is
	// not retried by the router.
	start := time.Now()
	err = client.Invoke(ctx, "catalog", "fail", struct{}{}, nil, 0)
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not found kind, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("business error took %v, looks retried", elapsed)
	}
}

func TestGateBlocksUnauthenticatedCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate, err := auth.NewGate(stubValidator{}, testLogger())
	if err != nil {
		t.Fatalf("gate construction failed: %v", err)
	}

	tr := channelTransport()
	svc, err := New(ctx, testConfig(), testLogger(), Dependencies{Transport: &tr, Gate: gate})
	if err != nil {
		t.Fatalf("service construction failed: %v", err)
	}

	err = RegisterRPCHandler(svc, RPCHandlerRegistration{
		Name:  "whoami",
		Queue: "user.whoami",
		Handler: func(ctx context.Context, _ []byte, _ metadata.Metadata) (any, error) {
			principal, ok := auth.PrincipalFromContext(ctx)
			if !ok {
				return nil, errs.New(errs.KindInternal, "no principal after gate")
			}
			return map[string]string{"id": principal.ID}, nil
		},
	})
	if err != nil {
		t.Fatalf("handler registration failed: %v", err)
	}

	startService(ctx, t, svc)
	client := newClientFor(t, ctx, tr)

	// No credential: the gate rejects before the handler runs.
	err = client.Invoke(ctx, "profile", "whoami", struct{}{}, nil, 0)
	if !errs.IsKind(err, errs.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	// Wrong credential: still rejected.
	badCtx := rpc.WithCredential(ctx, "bad-token")
	err = client.Invoke(badCtx, "profile", "whoami", struct{}{}, nil, 0)
	if !errs.IsKind(err, errs.KindUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}

	// Valid credential: the handler sees the principal.
	goodCtx := rpc.WithCredential(ctx, "good-token")
	var out map[string]string
	if err := client.Invoke(goodCtx, "profile", "whoami", struct{}{}, &out, 0); err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out["id"] != "u1" {
		t.Fatalf("expected principal u1, got %#v", out)
	}
}

func TestEventHandlerConsumesPublishedEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := channelTransport()
	svc, err := New(ctx, testConfig(), testLogger(), Dependencies{Transport: &tr})
	if err != nil {
		t.Fatalf("service construction failed: %v", err)
	}

	received := make(chan metadata.Metadata, 1)
	err = RegisterEventHandler(svc, EventHandlerRegistration{
		Name:  "notifications",
		Topic: "booking.events",
		Handler: func(_ context.Context, _ []byte, md metadata.Metadata) error {
			received <- md
			return nil
		},
	})
	if err != nil {
		t.Fatalf("event handler registration failed: %v", err)
	}

	startService(ctx, t, svc)

	body, err := jsoncodec.Marshal(map[string]string{"eventKind": "created"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	msg := messageWithMetadata(body, metadata.New(metadata.KeyEventKind, "created"))
	if err := tr.Publisher.Publish("booking.events", msg); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	select {
	case md := <-received:
		if md[metadata.KeyEventKind] != "created" {
			t.Fatalf("expected event kind metadata, got %#v", md)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event was not consumed")
	}
}
