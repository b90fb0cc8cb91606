package service

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/ids"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/rpc"
)

// RPCHandlerFunc processes one request payload and returns the reply body.
// Returned errors are encoded into the reply envelope with their kind
// intact; they are not handler failures from the router's point of view.
type RPCHandlerFunc func(ctx context.Context, payload []byte, md metadata.Metadata) (any, error)

// RPCHandlerRegistration wires a request/response handler to a queue.
type RPCHandlerRegistration struct {
	Name  string
	Queue string

	// Public skips the auth gate. Only credential-issuing operations
	// (register, login, validate itself) should set this.
	Public bool

	Handler RPCHandlerFunc
}

// RegisterRPCHandler attaches an RPC handler to the service router. The
// handler consumes its queue; when the request carries a reply_to and
// correlation_id, the result (or tagged error) is published back to the
// requester. Requests without reply metadata are treated as events.
func RegisterRPCHandler(svc *Service, cfg RPCHandlerRegistration) error {
	if svc == nil {
		return errs.ErrServiceRequired
	}
	if cfg.Handler == nil {
		return errs.ErrHandlerRequired
	}
	if cfg.Queue == "" {
		return errs.ErrQueueRequired
	}
	if cfg.Name == "" {
		return errs.ErrNameRequired
	}

	handler := cfg.Handler
	if !cfg.Public && svc.gate != nil {
		handler = authenticated(svc, handler)
	}

	svc.router.AddNoPublisherHandler(
		cfg.Name,
		cfg.Queue,
		svc.subscriber,
		func(msg *message.Message) error {
			return svc.handleRPC(msg, handler)
		},
	)
	return nil
}

func (s *Service) handleRPC(msg *message.Message, handler RPCHandlerFunc) error {
	md := metadata.FromWatermill(msg.Metadata)
	replyTo := md[metadata.KeyReplyTo]
	correlationID := md[metadata.KeyCorrelationID]

	result, err := handler(msg.Context(), msg.Payload, md)

	if replyTo == "" || correlationID == "" {
		// Fire-and-forget event: surface the error to the router so the
		// retry and poison middlewares apply.
		return err
	}

	body, encErr := rpc.EncodeReply(result, err)
	if encErr != nil {
		s.Logger.Error("failed to encode reply", encErr, logging.LogFields{
			"correlation_id": correlationID,
		})
		return encErr
	}

	reply := message.NewMessage(ids.CreateULID(), body)
	reply.Metadata.Set(metadata.KeyCorrelationID, correlationID)

	if pubErr := s.publisher.Publish(replyTo, reply); pubErr != nil {
		// Reply delivery is infrastructure; let the router retry the whole
		// request rather than leave the caller to time out silently.
		s.Logger.Error("failed to publish reply", pubErr, logging.LogFields{
			"reply_to":       replyTo,
			"correlation_id": correlationID,
		})
		return pubErr
	}
	return nil
}

// authenticated wraps an RPC handler with the auth gate. The credential
// travels in the message metadata; rejection is returned to the caller as
// a tagged unauthorized error.
func authenticated(svc *Service, handler RPCHandlerFunc) RPCHandlerFunc {
	return func(ctx context.Context, payload []byte, md metadata.Metadata) (any, error) {
		authedCtx, err := svc.gate.Authenticate(ctx, md[metadata.KeyAuthorization])
		if err != nil {
			return nil, err
		}
		return handler(authedCtx, payload, md)
	}
}

// EventHandlerFunc processes one subscribed event.
type EventHandlerFunc func(ctx context.Context, payload []byte, md metadata.Metadata) error

// EventHandlerRegistration wires a fire-and-forget consumer to a topic.
type EventHandlerRegistration struct {
	Name    string
	Topic   string
	Handler EventHandlerFunc
}

// RegisterEventHandler attaches an event consumer to the service router.
func RegisterEventHandler(svc *Service, cfg EventHandlerRegistration) error {
	if svc == nil {
		return errs.ErrServiceRequired
	}
	if cfg.Handler == nil {
		return errs.ErrHandlerRequired
	}
	if cfg.Topic == "" {
		return errs.ErrQueueRequired
	}
	if cfg.Name == "" {
		return errs.ErrNameRequired
	}

	svc.router.AddNoPublisherHandler(
		cfg.Name,
		cfg.Topic,
		svc.subscriber,
		func(msg *message.Message) error {
			return cfg.Handler(msg.Context(), msg.Payload, metadata.FromWatermill(msg.Metadata))
		},
	)
	return nil
}
