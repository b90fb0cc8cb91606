// Package identity owns credentials: account storage, password hashing,
// and the JWT pair used by every other service's auth gate.
package identity

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bookhive/bookhive/internal/errs"
)

// Account is a credential record. The profile data lives in the profile
// service; identity only keeps what login and validation need.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Roles        []string  `json:"roles,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store persists accounts. Create must reject a duplicate email with a
// conflict so registration is race-safe on the unique key.
type Store interface {
	Create(ctx context.Context, a *Account) error
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	Delete(ctx context.Context, id string) error
}

// NormalizeEmail lowercases and trims so the unique key is canonical.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryStore keeps accounts in process memory. Used by tests.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*Account
	byEmail map[string]*Account
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]*Account),
	}
}

func (s *MemoryStore) Create(_ context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := NormalizeEmail(a.Email)
	if _, ok := s.byEmail[email]; ok {
		return errs.Conflict("account with email %s already exists", email)
	}
	clone := *a
	clone.Email = email
	clone.Roles = append([]string(nil), a.Roles...)
	s.byID[a.ID] = &clone
	s.byEmail[email] = &clone
	return nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, errs.NotFound("account with email %s not found", NormalizeEmail(email))
	}
	clone := *a
	clone.Roles = append([]string(nil), a.Roles...)
	return &clone, nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, errs.NotFound("account %s not found", id)
	}
	clone := *a
	clone.Roles = append([]string(nil), a.Roles...)
	return &clone, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return errs.NotFound("account %s not found", id)
	}
	delete(s.byID, id)
	delete(s.byEmail, a.Email)
	return nil
}
