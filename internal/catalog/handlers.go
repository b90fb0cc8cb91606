package catalog

import (
	"context"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/jsoncodec"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/service"
)

type getRequest struct {
	ID string `json:"id"`
}

type updateRequest struct {
	ID string `json:"id"`
	UpdateInput
}

// RegisterHandlers wires the catalog operations. Get is public because
// it backs reference validation by other services before any user
// credential is in play; mutations require an authenticated caller.
func RegisterHandlers(svc *service.Service, catalog *Service, prefix string) error {
	if svc == nil {
		return errs.ErrServiceRequired
	}
	if catalog == nil {
		return errs.ErrHandlerRequired
	}
	if prefix == "" {
		return errs.ErrTopicRequired
	}

	registrations := []service.RPCHandlerRegistration{
		{
			Name:  "catalog-create",
			Queue: prefix + ".create",
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req CreateInput
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed create request", err)
				}
				if principal, ok := auth.PrincipalFromContext(ctx); ok {
					req.OrganizerID = principal.ID
				}
				return catalog.Create(ctx, req)
			},
		},
		{
			Name:   "catalog-get",
			Queue:  prefix + ".get",
			Public: true,
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req getRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed get request", err)
				}
				if req.ID == "" {
					return nil, errs.Validation("event id is required")
				}
				// A missing event is a null entity, not an error.
				return catalog.Get(ctx, req.ID)
			},
		},
		{
			Name:   "catalog-get-all",
			Queue:  prefix + ".get.all",
			Public: true,
			Handler: func(ctx context.Context, _ []byte, _ metadata.Metadata) (any, error) {
				return catalog.List(ctx)
			},
		},
		{
			Name:  "catalog-update",
			Queue: prefix + ".update",
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req updateRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed update request", err)
				}
				if req.ID == "" {
					return nil, errs.Validation("event id is required")
				}
				return catalog.Update(ctx, req.ID, req.UpdateInput)
			},
		},
		{
			Name:  "catalog-delete",
			Queue: prefix + ".delete",
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req getRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed delete request", err)
				}
				if req.ID == "" {
					return nil, errs.Validation("event id is required")
				}
				if err := catalog.Delete(ctx, req.ID); err != nil {
					return nil, err
				}
				return map[string]bool{"deleted": true}, nil
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
