// Command catalogd runs the catalog service: the bookable events that
// reservations reference.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/catalog"
	"github.com/bookhive/bookhive/internal/config"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/rpc"
	"github.com/bookhive/bookhive/internal/service"
	"github.com/bookhive/bookhive/internal/transport"

	_ "github.com/bookhive/bookhive/internal/transport/channel"
	_ "github.com/bookhive/bookhive/internal/transport/nats"
	_ "github.com/bookhive/bookhive/internal/transport/rabbitmq"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("catalogd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	conf := config.FromEnv("catalog")

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

	store, err := catalog.NewSQLiteStore(conf.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	catalogSvc, err := catalog.NewService(store)
	if err != nil {
		return err
	}

	svc, err := service.New(ctx, conf, log, service.Dependencies{Transport: &tr, Gate: gate})
	if err != nil {
		return err
	}
	if err := catalog.RegisterHandlers(svc, catalogSvc, conf.Routes["catalog"]); err != nil {
		return err
	}
	return svc.Start(ctx)
}
