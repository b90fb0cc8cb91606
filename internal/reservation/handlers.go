package reservation

import (
	"context"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/jsoncodec"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/service"
)

type createRequest struct {
	ResourceIDs []string          `json:"resourceIds"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type getRequest struct {
	ID string `json:"id"`
}

type updateRequest struct {
	ID                 string `json:"id"`
	Status             string `json:"status,omitempty"`
	CancellationReason string `json:"cancellationReason,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// RegisterHandlers wires the reservation operations to the service
// router under the given topic prefix. All operations require an
// authenticated caller.
func RegisterHandlers(svc *service.Service, saga *Saga, prefix string) error {
	if svc == nil {
		return errs.ErrServiceRequired
	}
	if saga == nil {
		return errs.ErrHandlerRequired
	}
	if prefix == "" {
		return errs.ErrTopicRequired
	}

	registrations := []service.RPCHandlerRegistration{
		{
			Name:  "reservation-create",
			Queue: prefix + ".create",
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req createRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed create request", err)
				}
				principal, _ := auth.PrincipalFromContext(ctx)
				return saga.Create(ctx, principal, CreateInput{
					ResourceIDs: req.ResourceIDs,
					Metadata:    req.Metadata,
				})
			},
		},
		{
			Name:  "reservation-get",
			Queue: prefix + ".get",
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req getRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed get request", err)
				}
				principal, _ := auth.PrincipalFromContext(ctx)
				return saga.Get(ctx, principal, req.ID)
			},
		},
		{
			Name:  "reservation-get-user",
			Queue: prefix + ".get.user",
			Handler: func(ctx context.Context, _ []byte, _ metadata.Metadata) (any, error) {
				principal, _ := auth.PrincipalFromContext(ctx)
				return saga.ListByOwner(ctx, principal)
			},
		},
		{
			Name:  "reservation-update",
			Queue: prefix + ".update",
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req updateRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed update request", err)
				}
				if req.ID == "" {
					return nil, errs.Validation("reservation id is required")
				}
				principal, _ := auth.PrincipalFromContext(ctx)
				return saga.Update(ctx, principal, req.ID, UpdateInput{
					Status:             Status(req.Status),
					CancellationReason: req.CancellationReason,
					Notes:              req.Notes,
				})
			},
		},
	}

	for _, reg := range registrations {
		if err := service.RegisterRPCHandler(svc, reg); err != nil {
			return err
		}
	}
	return nil
}
