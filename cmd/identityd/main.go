// Command identityd runs the identity service: registration, login,
// token validation, and refresh over the broker.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bookhive/bookhive/internal/config"
	"github.com/bookhive/bookhive/internal/identity"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/publisher"
	"github.com/bookhive/bookhive/internal/rpc"
	"github.com/bookhive/bookhive/internal/service"
	"github.com/bookhive/bookhive/internal/transport"

	_ "github.com/bookhive/bookhive/internal/transport/channel"
	_ "github.com/bookhive/bookhive/internal/transport/nats"
	_ "github.com/bookhive/bookhive/internal/transport/rabbitmq"
)

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("identityd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.NewSlogServiceLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	conf := config.FromEnv("identity")

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

	store, err := identity.NewSQLiteStore(conf.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	issuer, err := identity.NewIssuer(conf.JWTSecret, conf.JWTRefreshSecret, conf.AccessTokenTTL, conf.RefreshTokenTTL)
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

	profiles, err := identity.NewRPCProfileRegistrar(client, conf.RPCTimeout)
	if err != nil {
		return err
	}

	identitySvc, err := identity.NewService(store, issuer, profiles, events, identity.NopMailer{}, log)
	if err != nil {
		return err
	}

	// The identity operations are all public, so no gate here.
	svc, err := service.New(ctx, conf, log, service.Dependencies{Transport: &tr})
	if err != nil {
		return err
	}
	if err := identity.RegisterHandlers(svc, identitySvc, conf.Routes["identity"]); err != nil {
		return err
	}
	return svc.Start(ctx)
}
