package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/rpc"
)

type stubValidator struct {
	principal *Principal
	err       error
}

func (s stubValidator) Validate(_ context.Context, credential string) (*Principal, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.principal, nil
}

func testLogger() logging.ServiceLogger {
	return logging.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"extra whitespace", "Bearer   abc123  ", "abc123"},
		{"missing scheme", "abc123", ""},
		{"wrong scheme", "Basic abc123", ""},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractBearer(tc.header); got != tc.want {
				t.Fatalf("ExtractBearer(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}

func TestAuthenticateAttachesPrincipalAndCredential(t *testing.T) {
	gate, err := NewGate(stubValidator{principal: &Principal{ID: "u1", Email: "u1@example.com"}}, testLogger())
	if err != nil {
		t.Fatalf("gate construction failed: %v", err)
	}

	ctx, err := gate.Authenticate(context.Background(), "Bearer token-1")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	principal, ok := PrincipalFromContext(ctx)
	if !ok || principal.ID != "u1" {
		t.Fatalf("expected principal u1 in context, got %#v", principal)
	}
	if got := rpc.CredentialFromContext(ctx); got != "token-1" {
		t.Fatalf("expected credential to propagate, got %q", got)
	}
}

func TestAuthenticateRejectsMissingCredential(t *testing.T) {
	gate, err := NewGate(stubValidator{principal: &Principal{ID: "u1"}}, testLogger())
	if err != nil {
		t.Fatalf("gate construction failed: %v", err)
	}

	_, err = gate.Authenticate(context.Background(), "")
	if !errs.IsKind(err, errs.KindUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestAuthenticateFailsClosedOnValidatorOutage(t *testing.T) {
	gate, err := NewGate(stubValidator{err: errs.Newf(errs.KindRPCTimeout, "no reply from auth.validate")}, testLogger())
	if err != nil {
		t.Fatalf("gate construction failed: %v", err)
	}

	_, err = gate.Authenticate(context.Background(), "Bearer token-1")
	if !errs.IsKind(err, errs.KindUnauthorized) {
		t.Fatalf("expected unauthorized when validator is unreachable, got %v", err)
	}
}

func TestPrincipalHasRole(t *testing.T) {
	p := Principal{ID: "u1", Roles: []string{"admin", "support"}}
	if !p.HasRole("admin") {
		t.Fatal("expected admin role")
	}
	if p.HasRole("owner") {
		t.Fatal("did not expect owner role")
	}
}
