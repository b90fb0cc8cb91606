package ticket

import (
	"context"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/jsoncodec"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/service"
)

type generateRequest struct {
	ReservationID string `json:"reservationId"`
}

// RegisterHandlers wires the ticket operations.
func RegisterHandlers(svc *service.Service, tickets *Service, prefix string) error {
	if svc == nil {
		return errs.ErrServiceRequired
	}
	if tickets == nil {
		return errs.ErrHandlerRequired
	}
	if prefix == "" {
		return errs.ErrTopicRequired
	}

	return service.RegisterRPCHandler(svc, service.RPCHandlerRegistration{
		Name:  "ticket-generate",
		Queue: prefix + ".generate",
		Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
			var req generateRequest
			if err := jsoncodec.Unmarshal(payload, &req); err != nil {
				return nil, errs.Wrap(errs.KindValidation, "malformed generate request", err)
			}
			principal, _ := auth.PrincipalFromContext(ctx)
			return tickets.Generate(ctx, principal, req.ReservationID)
		},
	})
}
