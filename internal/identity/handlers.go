package identity

import (
	"context"
	"time"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/jsoncodec"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/rpc"
	"github.com/bookhive/bookhive/internal/service"

	"github.com/bookhive/bookhive/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RegisterHandlers wires the identity operations. They are all public:
// register and login have no credential yet, and validate is what every
// other gate calls, so gating it would recurse.
func RegisterHandlers(svc *service.Service, identity *Service, prefix string) error {
	if svc == nil {
		return errs.ErrServiceRequired
	}
	if identity == nil {
		return errs.ErrHandlerRequired
	}
	if prefix == "" {
		return errs.ErrTopicRequired
	}

	registrations := []service.RPCHandlerRegistration{
		{
			Name:   "identity-register",
			Queue:  prefix + ".register",
			Public: true,
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req RegisterInput
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed register request", err)
				}
				return identity.Register(ctx, req)
			},
		},
		{
			Name:   "identity-login",
			Queue:  prefix + ".login",
			Public: true,
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req loginRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed login request", err)
				}
				return identity.Login(ctx, req.Email, req.Password)
			},
		},
		{
			Name:   "identity-validate",
			Queue:  prefix + ".validate",
			Public: true,
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req auth.ValidateRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed validate request", err)
				}
				return identity.Validate(ctx, req.Credential)
			},
		},
		{
			Name:   "identity-refresh",
			Queue:  prefix + ".refresh",
			Public: true,
			Handler: func(ctx context.Context, payload []byte, _ metadata.Metadata) (any, error) {
				var req refreshRequest
				if err := jsoncodec.Unmarshal(payload, &req); err != nil {
					return nil, errs.Wrap(errs.KindValidation, "malformed refresh request", err)
				}
				return identity.Refresh(ctx, req.RefreshToken)
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

// RPCProfileRegistrar creates profiles through the profile service.
type RPCProfileRegistrar struct {
	client  *rpc.Client
	timeout time.Duration
}

func NewRPCProfileRegistrar(client *rpc.Client, timeout time.Duration) (*RPCProfileRegistrar, error) {
	if client == nil {
		return nil, errs.New(errs.KindInternal, "rpc client is required")
	}
	return &RPCProfileRegistrar{client: client, timeout: timeout}, nil
}

type createProfileRequest struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (r *RPCProfileRegistrar) CreateProfile(ctx context.Context, accountID, email, name string) error {
	return r.client.Invoke(ctx, "profile", "create", createProfileRequest{
		ID:    accountID,
		Email: email,
		Name:  name,
	}, nil, r.timeout)
}
