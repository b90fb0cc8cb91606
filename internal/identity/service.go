package identity

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/ids"
	"github.com/bookhive/bookhive/internal/logging"
	"github.com/bookhive/bookhive/internal/metadata"
	"github.com/bookhive/bookhive/internal/publisher"
)

// ProfileRegistrar creates the profile record that belongs to a new
// account. Backed by the profile service over the broker.
type ProfileRegistrar interface {
	CreateProfile(ctx context.Context, accountID, email, name string) error
}

// Mailer sends the welcome mail after registration. Failures are logged
// and never fail the registration.
type Mailer interface {
	SendWelcome(ctx context.Context, email, name string) error
}

// NopMailer discards mail. Used when no mail backend is configured.
type NopMailer struct{}

func (NopMailer) SendWelcome(context.Context, string, string) error { return nil }

// RegistrationFailedTopic carries the compensating event published when
// the profile creation step of a registration fails after the local
// account was already committed.
const RegistrationFailedTopic = "user.registration.failed"

type registrationFailed struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	Reason    string `json:"reason"`
}

// Service implements the identity operations: register, login, token
// validation, and refresh.
type Service struct {
	store    Store
	issuer   *Issuer
	profiles ProfileRegistrar
	events   *publisher.Publisher
	mailer   Mailer
	logger   logging.ServiceLogger
}

func NewService(store Store, issuer *Issuer, profiles ProfileRegistrar, events *publisher.Publisher, mailer Mailer, logger logging.ServiceLogger) (*Service, error) {
	if store == nil || issuer == nil {
		return nil, errs.New(errs.KindInternal, "identity store and issuer are required")
	}
	if logger == nil {
		return nil, errs.ErrLoggerRequired
	}
	if mailer == nil {
		mailer = NopMailer{}
	}
	return &Service{
		store:    store,
		issuer:   issuer,
		profiles: profiles,
		events:   events,
		mailer:   mailer,
		logger:   logger,
	}, nil
}

// RegisterInput is the payload of a registration request.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// RegisterResult carries the created account and its first token pair.
type RegisterResult struct {
	Account *Account   `json:"account"`
	Tokens  *TokenPair `json:"tokens"`
}

// Register creates the credential record and the remote profile. When
// the profile step fails the local account is rolled back and the
// compensating event is published; the caller sees the original error.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, errs.Validation("a valid email address is required")
	}
	if len(in.Password) < 8 {
		return nil, errs.Validation("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "hash password", err)
	}

	account := &Account{
		ID:           ids.CreateUUID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.Create(ctx, account); err != nil {
		return nil, err
	}

	if s.profiles != nil {
		if err := s.profiles.CreateProfile(ctx, account.ID, email, in.Name); err != nil {
			s.compensate(ctx, account, err)
			return nil, err
		}
	}

	if err := s.mailer.SendWelcome(ctx, email, in.Name); err != nil {
		s.logger.Error("welcome mail failed", err, logging.LogFields{"email": email})
	}

	tokens, err := s.issuer.Issue(account)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{Account: account, Tokens: tokens}, nil
}

// compensate rolls back a half-finished registration: the local account
// is removed and the failure is announced for any listener that already
// reacted to the registration.
func (s *Service) compensate(ctx context.Context, account *Account, cause error) {
	if err := s.store.Delete(ctx, account.ID); err != nil {
		s.logger.Error("registration rollback failed", err, logging.LogFields{"account_id": account.ID})
	}
	if s.events == nil {
		return
	}
	event := registrationFailed{
		AccountID: account.ID,
		Email:     account.Email,
		Reason:    cause.Error(),
	}
	md := metadata.New(metadata.KeyEventKind, "registration_failed")
	if err := s.events.Publish(ctx, RegistrationFailedTopic, event, md); err != nil {
		s.logger.Error("compensating event publish failed", err, logging.LogFields{"account_id": account.ID})
	}
}

// Login verifies the credentials and issues a token pair. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return nil, errs.Unauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, errs.Unauthorized("invalid credentials")
	}
	return s.issuer.Issue(account)
}

// Validate checks an access token and returns the principal it names.
// The reply always encodes as a valid/invalid verdict rather than an
// error, so gates on other services can distinguish a bad credential
// from an unreachable identity service.
func (s *Service) Validate(_ context.Context, token string) (*auth.ValidateReply, error) {
	principal, err := s.issuer.VerifyAccess(token)
	if err != nil {
		return &auth.ValidateReply{Valid: false, Error: err.Error()}, nil
	}
	return &auth.ValidateReply{Valid: true, Principal: principal}, nil
}

// Refresh exchanges a refresh token for a new pair. The account must
// still exist; a deleted account cannot refresh.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	principal, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	account, err := s.store.FindByID(ctx, principal.ID)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return nil, errs.Unauthorized("account no longer exists")
		}
		return nil, err
	}
	return s.issuer.Issue(account)
}
