package identity

import (
	"testing"
	"time"

	"github.com/bookhive/bookhive/internal/errs"
)

func testIssuer(t *testing.T) *Issuer {
	t.Helper()
	issuer, err := NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("issuer construction failed: %v", err)
	}
	return issuer
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	issuer := testIssuer(t)
	account := &Account{ID: "a1", Email: "a1@example.com", Roles: []string{"admin"}}

	pair, err := issuer.Issue(account)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}

	principal, err := issuer.VerifyAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if principal.ID != "a1" || principal.Email != "a1@example.com" {
		t.Fatalf("unexpected principal %#v", principal)
	}
	if !principal.HasRole("admin") {
		t.Fatal("expected admin role to survive the round trip")
	}
}

func TestAccessSecretDoesNotVerifyRefreshTokens(t *testing.T) {
	issuer := testIssuer(t)
	pair, err := issuer.Issue(&Account{ID: "a1", Email: "a1@example.com"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if _, err := issuer.VerifyAccess(pair.RefreshToken); !errs.IsKind(err, errs.KindUnauthorized) {
		t.Fatalf("expected unauthorized for refresh token on access path, got %v", err)
	}
	if _, err := issuer.VerifyRefresh(pair.AccessToken); !errs.IsKind(err, errs.KindUnauthorized) {
		t.Fatalf("expected unauthorized for access token on refresh path, got %v", err)
	}
}

func TestExpiredTokenIsRejected(t *testing.T) {
	issuer := testIssuer(t)
	issued := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return issued }

	pair, err := issuer.Issue(&Account{ID: "a1", Email: "a1@example.com"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	issuer.now = func() time.Time { return issued.Add(16 * time.Minute) }
	if _, err := issuer.VerifyAccess(pair.AccessToken); !errs.IsKind(err, errs.KindUnauthorized) {
		t.Fatalf("expected unauthorized for expired token, got %v", err)
	}

	// The refresh token has a longer lifetime and still verifies.
	if _, err := issuer.VerifyRefresh(pair.RefreshToken); err != nil {
		t.Fatalf("expected refresh token to remain valid, got %v", err)
	}
}

func TestTamperedTokenIsRejected(t *testing.T) {
	issuer := testIssuer(t)
	pair, err := issuer.Issue(&Account{ID: "a1", Email: "a1@example.com"})
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	if _, err := issuer.VerifyAccess(tampered); !errs.IsKind(err, errs.KindUnauthorized) {
		t.Fatalf("expected unauthorized for tampered token, got %v", err)
	}
}
