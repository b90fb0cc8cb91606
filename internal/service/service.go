// Package service wires a Watermill router, broker transport, and
// middleware chain into one runnable unit. Each bookhive daemon builds a
// Service, registers its RPC and event handlers, and calls Start.
package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/config"
	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/transport"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// Dependencies holds the optional collaborators a Service can use. Leave
// fields nil to use the defaults.
type Dependencies struct {
	// Transport overrides registry-based transport construction (tests
	// inject a shared in-memory pair here).
	Transport *transport.Transport

	// Gate authenticates non-public RPC handlers. Nil skips authentication
	// entirely, which only the identity service itself should do.
	Gate *auth.Gate

	// Middlewares are appended after the default middleware chain.
	Middlewares               []MiddlewareRegistration
	DisableDefaultMiddlewares bool
}

// Service owns the router, transport, and handler registrations for one
// bookhive daemon.
type Service struct {
	Conf   *config.Config
	Logger logging.ServiceLogger

	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	gate       *auth.Gate
}

// New constructs a Service for the supplied configuration. Configuration
// problems (unknown transports, bad routes) fail here, before any handler
// runs. Register handlers on the returned Service before calling Start.
func New(ctx context.Context, conf *config.Config, log logging.ServiceLogger, deps Dependencies) (*Service, error) {
	if conf == nil {
		return nil, errs.ErrConfigRequired
	}
	if log == nil {
		return nil, errs.ErrLoggerRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errs.NewConfigValidationError(err)
	}

	wmLogger := logging.NewWatermillAdapter(log)
	log.Info("creating service", logging.LogFields{
		"service":       conf.ServiceName,
		"pubsub_system": conf.PubSubSystem,
		"config":        conf,
	})

	s := &Service{
		Conf:   conf,
		Logger: log,
		gate:   deps.Gate,
	}

	if deps.Transport != nil {
		s.publisher = deps.Transport.Publisher
		s.subscriber = deps.Transport.Subscriber
	} else {
		tr, err := transport.Build(ctx, conf, wmLogger)
		if err != nil {
			return nil, err
		}
		s.publisher = tr.Publisher
		s.subscriber = tr.Subscriber
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, err
	}
	s.router = router
	s.router.AddPlugin(plugin.SignalsHandler)

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		return nil, err
	}

	return s, nil
}

// Start runs the router until the provided context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.startMetricsServer()
	return routerRun(s.router, ctx)
}

// Running closes when the router has started all handlers. Tests wait on
// this before publishing.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Publisher exposes the broker publisher so the RPC client and resilient
// publisher share the service's connection.
func (s *Service) Publisher() message.Publisher { return s.publisher }

// Subscriber exposes the broker subscriber for the RPC client's reply queue.
func (s *Service) Subscriber() message.Subscriber { return s.subscriber }

// Transport returns the service's publisher/subscriber pair.
func (s *Service) Transport() transport.Transport {
	return transport.Transport{Publisher: s.publisher, Subscriber: s.subscriber}
}

func (s *Service) registerConfiguredMiddlewares(deps Dependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

func (s *Service) startMetricsServer() {
	if !s.Conf.MetricsEnabled || s.Conf.MetricsPort <= 0 {
		return
	}

	addr := fmt.Sprintf(":%d", s.Conf.MetricsPort)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.Logger.Info("starting metrics server", logging.LogFields{"address": addr})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			s.Logger.Error("metrics server stopped", err, logging.LogFields{"address": addr})
		}
	}()
}
