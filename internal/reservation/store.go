package reservation

import (
	"context"
	"sync"

	"github.com/bookhive/bookhive/internal/errs"
)

// Store is the persistence contract of the saga. UpdateWithLock must
// serialize concurrent mutations of the same record: mutate runs while
// holding the record lock, sees the latest committed state, and its
// changes become visible atomically. Returning an error from mutate
// aborts the update without committing.
type Store interface {
	Save(ctx context.Context, r *Reservation) error
	Find(ctx context.Context, id string) (*Reservation, error)
	FindByOwner(ctx context.Context, ownerID string) ([]*Reservation, error)
	UpdateWithLock(ctx context.Context, id string, mutate func(*Reservation) error) (*Reservation, error)
}

type memoryRecord struct {
	mu  sync.Mutex
	res *Reservation
}

// MemoryStore keeps reservations in process memory with a per-record
// mutex for update serialization. Used by tests and the in-process
// transport profile.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*memoryRecord)}
}

func (s *MemoryStore) Save(_ context.Context, r *Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return errs.Conflict("reservation %s already exists", r.ID)
	}
	s.records[r.ID] = &memoryRecord{res: r.Clone()}
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (*Reservation, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return nil, errs.NotFound("reservation %s not found", id)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.res.Clone(), nil
}

func (s *MemoryStore) FindByOwner(_ context.Context, ownerID string) ([]*Reservation, error) {
	s.mu.Lock()
	recs := make([]*memoryRecord, 0, len(s.records))
	for _, rec := range s.records {
		recs = append(recs, rec)
	}
	s.mu.Unlock()

	var out []*Reservation
	for _, rec := range recs {
		rec.mu.Lock()
		if rec.res.OwnerID == ownerID {
			out = append(out, rec.res.Clone())
		}
		rec.mu.Unlock()
	}
	return out, nil
}

func (s *MemoryStore) UpdateWithLock(_ context.Context, id string, mutate func(*Reservation) error) (*Reservation, error) {
	s.mu.Lock()
	rec, ok := s.records[id]
	s.mu.Unlock()
	if !ok {
		return nil, errs.NotFound("reservation %s not found", id)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	working := rec.res.Clone()
	if err := mutate(working); err != nil {
		return nil, err
	}
	rec.res = working
	return working.Clone(), nil
}
