// Package catalog owns the bookable events: the records that
// reservations reference as resources.
package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/ids"
)

// Event is a bookable resource. OrganizerID records the principal that
// created it; inactive events stay resolvable so existing reservations
// keep validating.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"startsAt"`
	Capacity    int       `json:"capacity"`
	Tags        []string  `json:"tags,omitempty"`
	OrganizerID string    `json:"organizerId,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store persists events.
type Store interface {
	Create(ctx context.Context, e *Event) error
	Get(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context) ([]*Event, error)
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
}

// CreateInput carries the caller-supplied fields of a new event.
type CreateInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	StartsAt    time.Time `json:"startsAt"`
	Capacity    int       `json:"capacity"`
	Tags        []string  `json:"tags,omitempty"`
	OrganizerID string    `json:"organizerId,omitempty"`
}

// UpdateInput carries a partial update; nil fields keep their value.
type UpdateInput struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	StartsAt    *time.Time `json:"startsAt,omitempty"`
	Capacity    *int       `json:"capacity,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	IsActive    *bool      `json:"isActive,omitempty"`
}

// Service validates and applies catalog operations.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errs.New(errs.KindInternal, "catalog store is required")
	}
	return &Service{store: store, now: time.Now}, nil
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Event, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, errs.Validation("event name is required")
	}
	if in.Capacity < 0 {
		return nil, errs.Validation("event capacity must not be negative")
	}
	now := s.now().UTC()
	e := &Event{
		ID:          ids.CreateUUID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Location:    in.Location,
		StartsAt:    in.StartsAt,
		Capacity:    in.Capacity,
		Tags:        in.Tags,
		OrganizerID: in.OrganizerID,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Get returns the event, or nil without error when the id is unknown.
// Callers that validate references treat nil as not-found.
func (s *Service) Get(ctx context.Context, id string) (*Event, error) {
	e, err := s.store.Get(ctx, id)
	if errs.IsKind(err, errs.KindNotFound) {
		return nil, nil
	}
	return e, err
}

func (s *Service) List(ctx context.Context) ([]*Event, error) {
	return s.store.List(ctx)
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Event, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, errs.Validation("event name must not be blank")
		}
		e.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Location != nil {
		e.Location = *in.Location
	}
	if in.StartsAt != nil {
		e.StartsAt = *in.StartsAt
	}
	if in.Capacity != nil {
		if *in.Capacity < 0 {
			return nil, errs.Validation("event capacity must not be negative")
		}
		e.Capacity = *in.Capacity
	}
	if in.Tags != nil {
		e.Tags = *in.Tags
	}
	if in.IsActive != nil {
		e.IsActive = *in.IsActive
	}
	e.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// MemoryStore keeps events in process memory. Used by tests.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string]*Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]*Event)}
}

func (s *MemoryStore) Create(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; ok {
		return errs.Conflict("event %s already exists", e.ID)
	}
	clone := *e
	s.events[e.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	if !ok {
		return nil, errs.NotFound("event %s not found", id)
	}
	clone := *e
	return &clone, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Event, 0, len(s.events))
	for _, e := range s.events {
		clone := *e
		out = append(out, &clone)
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[e.ID]; !ok {
		return errs.NotFound("event %s not found", e.ID)
	}
	clone := *e
	s.events[e.ID] = &clone
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return errs.NotFound("event %s not found", id)
	}
	delete(s.events, id)
	return nil
}
