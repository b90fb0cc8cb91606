package ticket

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/rpc"
	"github.com/bookhive/bookhive/internal/transport"
)

func newTicketService(t *testing.T) *Service {
	t.Helper()
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	client, err := rpc.NewClient(rpc.Options{
		ServiceName: "ticket",
		Routes:      map[string]string{"reservation": "booking", "catalog": "event"},
		Timeout:     time.Second,
	}, transport.Transport{Publisher: pubSub, Subscriber: pubSub},
		logging.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("client construction failed: %v", err)
	}
	svc, err := NewService(client, NewTextRenderer(), time.Second)
	if err != nil {
		t.Fatalf("service construction failed: %v", err)
	}
	return svc
}

func TestGenerateRequiresPrincipal(t *testing.T) {
	svc := newTicketService(t)
	if _, err := svc.Generate(context.Background(), nil, "r1"); !errs.IsKind(err, errs.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestGenerateRequiresReservationID(t *testing.T) {
	svc := newTicketService(t)
	principal := &auth.Principal{ID: "u1"}
	if _, err := svc.Generate(context.Background(), principal, ""); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
