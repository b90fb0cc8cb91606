// Package profile owns user profile records, keyed by account id with a
// unique email. The credential side lives in the identity service.
package profile

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bookhive/bookhive/internal/errs"
)

// User is a profile record.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists profiles. Create must hold the uniqueness of the email
// across concurrent calls: the second writer of the same address gets a
// conflict, never a duplicate row.
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryStore keeps profiles in process memory. The single mutex covers
// the whole check-then-insert of Create.
type MemoryStore struct {
	mu      sync.Mutex
	byID    map[string]*User
	byEmail map[string]*User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]*User),
	}
}

func (s *MemoryStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := normalizeEmail(u.Email)
	if _, ok := s.byEmail[email]; ok {
		return errs.Conflict("profile with email %s already exists", email)
	}
	if _, ok := s.byID[u.ID]; ok {
		return errs.Conflict("profile %s already exists", u.ID)
	}
	clone := *u
	clone.Email = email
	s.byID[u.ID] = &clone
	s.byEmail[email] = &clone
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, errs.NotFound("profile %s not found", id)
	}
	clone := *u
	return &clone, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, errs.NotFound("profile with email %s not found", normalizeEmail(email))
	}
	clone := *u
	return &clone, nil
}
