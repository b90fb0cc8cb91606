// Package auth gates every non-public inbound operation. The caller's
// bearer credential is validated by the identity service over RPC; the
// resolved principal lives on the context for the duration of one call and
// is never persisted.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/rpc"
)

// Principal is the authenticated identity resolved from a credential.
type Principal struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
}

// HasRole reports whether the principal carries the named role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// TokenValidator resolves a credential to a principal.
type TokenValidator interface {
	Validate(ctx context.Context, credential string) (*Principal, error)
}

// ValidateRequest is the identity validation RPC request.
type ValidateRequest struct {
	Credential string `json:"credential"`
}

// ValidateReply is the identity validation RPC reply.
type ValidateReply struct {
	Valid     bool       `json:"valid"`
	Principal *Principal `json:"principal,omitempty"`
	Error     string     `json:"error,omitempty"`
}

// Gate authenticates inbound calls before business logic runs.
type Gate struct {
	validator TokenValidator
	logger    logging.ServiceLogger
}

// NewGate builds a gate over the given validator.
func NewGate(validator TokenValidator, logger logging.ServiceLogger) (*Gate, error) {
	if validator == nil {
		return nil, errs.ErrServiceRequired
	}
	if logger == nil {
		return nil, errs.ErrLoggerRequired
	}
	return &Gate{validator: validator, logger: logger.With(logging.LogFields{"component": "auth_gate"})}, nil
}

// Authenticate validates the bearer credential extracted from an
// authorization header value and returns a context carrying the principal.
// Missing credentials, invalid credentials, and identity-service outages
// all reject the call: the gate fails closed.
func (g *Gate) Authenticate(ctx context.Context, authorization string) (context.Context, error) {
	credential := ExtractBearer(authorization)
	if credential == "" {
		return ctx, errs.Unauthorized("no credential provided")
	}

	principal, err := g.validator.Validate(ctx, credential)
	if err != nil {
		if errs.IsKind(err, errs.KindUnauthorized) {
			return ctx, err
		}
		// Transport failure or identity outage: never grant access.
		g.logger.Error("credential validation unavailable, rejecting", err, nil)
		return ctx, errs.Wrap(errs.KindUnauthorized, "credential validation failed", err)
	}
	if principal == nil {
		return ctx, errs.Unauthorized("invalid credential")
	}

	ctx = WithPrincipal(ctx, principal)
	ctx = rpc.WithCredential(ctx, credential)
	return ctx, nil
}

// ExtractBearer pulls the token out of an "Authorization: Bearer x" value.
func ExtractBearer(authorization string) string {
	scheme, token, found := strings.Cut(authorization, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type principalKey struct{}

// WithPrincipal attaches the principal to the context for one call.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// RPCValidator validates credentials by calling the identity service.
type RPCValidator struct {
	client  *rpc.Client
	timeout time.Duration
}

// NewRPCValidator builds the identity-backed validator. A zero timeout
// falls back to the client's default window.
func NewRPCValidator(client *rpc.Client, timeout time.Duration) *RPCValidator {
	return &RPCValidator{client: client, timeout: timeout}
}

// Validate calls auth.validate on the identity service. No caching: each
// call re-validates.
func (v *RPCValidator) Validate(ctx context.Context, credential string) (*Principal, error) {
	var reply ValidateReply
	err := v.client.Invoke(ctx, "identity", "validate", ValidateRequest{Credential: credential}, &reply, v.timeout)
	if err != nil {
		return nil, err
	}
	if !reply.Valid || reply.Principal == nil {
		reason := reply.Error
		if reason == "" {
			reason = "invalid credential"
		}
		return nil, errs.Unauthorized("%s", reason)
	}
	return reply.Principal, nil
}
