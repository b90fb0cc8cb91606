package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/errs"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type claims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies the access/refresh token pair. Access and
// refresh tokens are signed with separate secrets so a leaked refresh
// secret cannot mint access tokens.
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, errs.New(errs.KindInternal, "token secrets are required")
	}
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// Issue mints a fresh token pair for the account.
func (i *Issuer) Issue(a *Account) (*TokenPair, error) {
	now := i.now().UTC()
	access, err := i.sign(a, now, i.accessTTL, i.accessSecret)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sign(a, now, i.refreshTTL, i.refreshSecret)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(i.accessTTL),
	}, nil
}

func (i *Issuer) sign(a *Account, now time.Time, ttl time.Duration, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: a.Email,
		Roles: a.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   a.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, "sign token", err)
	}
	return signed, nil
}

// VerifyAccess checks an access token and returns the principal it
// carries. Every failure mode (expired, malformed, wrong signature)
// reports unauthorized.
func (i *Issuer) VerifyAccess(token string) (*auth.Principal, error) {
	return i.verify(token, i.accessSecret)
}

// VerifyRefresh checks a refresh token.
func (i *Issuer) VerifyRefresh(token string) (*auth.Principal, error) {
	return i.verify(token, i.refreshSecret)
}

func (i *Issuer) verify(token string, secret []byte) (*auth.Principal, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errs.Unauthorized("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return i.now() }))
	if err != nil || !parsed.Valid {
		return nil, errs.Unauthorized("invalid or expired token")
	}
	return &auth.Principal{
		ID:    c.Subject,
		Email: c.Email,
		Roles: c.Roles,
	}, nil
}
