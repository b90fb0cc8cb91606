package profile

import (
	"context"
	"strings"
	"time"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/jsoncodec"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/service"
)

type createRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type getRequest struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

// RegisterHandlers wires the profile operations. Create is public
// because it is invoked service-to-service during registration, before
// the new user holds any credential.
func RegisterHandlers(svc *service.Service, store Store, prefix string) error {
	if svc == nil {
		return errs.ErrServiceRequired
	}
	if store == nil {
		return errs.ErrHandlerRequired
	}
	if prefix == "" {
		return errs.ErrTopicRequired
	}

	registrations := []service.RPCHandlerRegistration{
		{
			Name:   "profile-create",
			Queue:  prefix + ".create",
			Public: true,
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req createRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed create request", err)
				}
				if req.ID == "" {
					return nil, errs.Validation("profile id is required")
				}
				if strings.TrimSpace(req.Email) == "" {
					return nil, errs.Validation("profile email is required")
				}
				u := &User{
					ID:        req.ID,
					Email:     req.Email,
					Name:      req.Name,
					CreatedAt: time.Now().UTC(),
				}
				if err := store.Create(ctx, u); err != nil {
					return nil, err
				}
				return u, nil
			},
		},
		{
			Name:  "profile-get",
			Queue: prefix + ".get",
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req getRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed get request", err)
				}
				switch {
				case req.ID != "":
					return store.FindByID(ctx, req.ID)
				case req.Email != "":
					return store.FindByEmail(ctx, req.Email)
				default:
					return nil, errs.Validation("profile id or email is required")
				}
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
