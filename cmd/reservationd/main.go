// Command reservationd runs the reservation service: the booking saga
// with cross-service validation and lifecycle notifications.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/config"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/publisher"
	"github.com/bookhive/bookhive/internal/reservation"
	"github.com/bookhive/bookhive/internal/rpc"
	"github.com/bookhive/bookhive/internal/service"
	"github.com/bookhive/bookhive/internal/transport"

	_ "github.com/bookhive/bookhive/internal/transport/channel"
	_ "github.com/bookhive/bookhive/internal/transport/nats"
	_ "github.com/bookhive/bookhive/internal/transport/rabbitmq"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("reservationd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	conf := config.FromEnv("reservation")

	tr, err := transport.Build(ctx, conf, logging.NewWatermillAdapter(log))
	if err != nil {
		return err
	}

	client, err := rpc.NewClient(rpc.Options{
		ServiceName:    conf.ServiceName,
		Routes:         conf.Routes,
		Timeout:        conf.RPCTimeout,
		MaxAttempts:    conf.RPCMaxAttempts,
		InitialBackoff: conf.RPCInitialBackoff,
		MaxBackoff:     conf.RPCMaxBackoff,
	}, tr, log)
	if err != nil {
		return err
	}
	if err := client.Start(ctx); err != nil {
		return err
	}

	gate, err := auth.NewGate(auth.NewRPCValidator(client, conf.RPCTimeout), log)
	if err != nil {
		return err
	}

	store, err := reservation.NewSQLiteStore(conf.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	owners, err := reservation.NewRPCChecker(client, "profile", "get", conf.RPCTimeout)
	if err != nil {
		return err
	}
	resources, err := reservation.NewRPCChecker(client, "catalog", "get", conf.RPCTimeout)
	if err != nil {
		return err
	}

	events, err := publisher.New(publisher.Options{
		MaxAttempts:    conf.PublishMaxAttempts,
		InitialBackoff: conf.RPCInitialBackoff,
		MaxBackoff:     conf.RPCMaxBackoff,
		ResendCapacity: conf.PublishResendCapacity,
	}, tr.Publisher, log)
	if err != nil {
		return err
	}
	notifier, err := reservation.NewBrokerNotifier(events, conf.Routes["reservation"]+".events")
	if err != nil {
		return err
	}

	saga, err := reservation.NewSaga(store, owners, resources, notifier, log)
	if err != nil {
		return err
	}

	svc, err := service.New(ctx, conf, log, service.Dependencies{Transport: &tr, Gate: gate})
	if err != nil {
		return err
	}
	if err := reservation.RegisterHandlers(svc, saga, conf.Routes["reservation"]); err != nil {
		return err
	}
	return svc.Start(ctx)
}
