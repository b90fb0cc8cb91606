package reservation

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bookhive/bookhive/internal/auth"
	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/ids"
	"github.com/bookhive/bookhive/internal/logging"
)

// EntityChecker answers whether a referenced entity exists in another
// service. Infrastructure failures come back as tagged rpc errors and
// abort the whole validation.
type EntityChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Saga drives the reservation lifecycle. Creation fans out existence
// checks for the owner and every referenced resource before anything is
// persisted; transitions run under the store's record lock so exactly
// one concurrent terminal transition wins.
type Saga struct {
	store     Store
	owners    EntityChecker
	resources EntityChecker
	notifier  Notifier
	logger    logging.ServiceLogger
	now       func() time.Time
}

func NewSaga(store Store, owners, resources EntityChecker, notifier Notifier, logger logging.ServiceLogger) (*Saga, error) {
	if store == nil {
		return nil, errs.New(errs.KindInternal, "reservation store is required")
	}
	if owners == nil || resources == nil {
		return nil, errs.New(errs.KindInternal, "entity checkers are required")
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		return nil, errs.ErrLoggerRequired
	}
	return &Saga{
		store:     store,
		owners:    owners,
		resources: resources,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// CreateInput is the caller-supplied part of a new reservation.
type CreateInput struct {
	ResourceIDs []string
	Metadata    map[string]string
}

// Create validates the owner and every resource concurrently, persists
// the reservation in pending state, and announces it. The first failed
// check cancels the remaining ones and nothing is persisted.
func (s *Saga) Create(ctx context.Context, principal *auth.Principal, in CreateInput) (*Reservation, error) {
	if principal == nil {
		return nil, errs.Unauthorized("reservation creation requires an authenticated caller")
	}
	if len(in.ResourceIDs) == 0 {
		return nil, errs.Validation("reservation requires at least one resource")
	}
	for _, id := range in.ResourceIDs {
		if strings.TrimSpace(id) == "" {
			return nil, errs.Validation("resource ids must not be blank")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := s.owners.Exists(gctx, principal.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errs.Validation("owner %s not found", principal.ID)
		}
		return nil
	})
	for _, resourceID := range in.ResourceIDs {
		g.Go(func() error {
			ok, err := s.resources.Exists(gctx, resourceID)
			if err != nil {
				return err
			}
			if !ok {
				return errs.Validation("resource %s not found", resourceID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	r := &Reservation{
		ID:          ids.CreateUUID(),
		OwnerID:     principal.ID,
		ResourceIDs: append([]string(nil), in.ResourceIDs...),
		Status:      StatusPending,
		Metadata:    cloneMetadata(in.Metadata),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	s.announce(ctx, EventCreated, r, "", StatusPending)
	return r, nil
}

// Get returns a reservation visible to the caller: its owner, or a
// caller holding the admin role.
func (s *Saga) Get(ctx context.Context, principal *auth.Principal, id string) (*Reservation, error) {
	if principal == nil {
		return nil, errs.Unauthorized("reservation lookup requires an authenticated caller")
	}
	r, err := s.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.OwnerID != principal.ID && !principal.HasRole("admin") {
		return nil, errs.Unauthorized("caller is not the owner of reservation %s", id)
	}
	return r, nil
}

// ListByOwner returns all reservations owned by the caller.
func (s *Saga) ListByOwner(ctx context.Context, principal *auth.Principal) ([]*Reservation, error) {
	if principal == nil {
		return nil, errs.Unauthorized("reservation lookup requires an authenticated caller")
	}
	return s.store.FindByOwner(ctx, principal.ID)
}

// Confirm moves a pending reservation to confirmed.
func (s *Saga) Confirm(ctx context.Context, principal *auth.Principal, id string) (*Reservation, error) {
	return s.transition(ctx, principal, id, StatusConfirmed, "")
}

// Complete moves a confirmed reservation to completed. Any other state
// is rejected with a conflict.
func (s *Saga) Complete(ctx context.Context, principal *auth.Principal, id string) (*Reservation, error) {
	return s.transition(ctx, principal, id, StatusCompleted, "")
}

// Cancel moves a non-terminal reservation to cancelled and records the
// reason. A blank reason is rejected before the record state is even
// consulted.
func (s *Saga) Cancel(ctx context.Context, principal *auth.Principal, id, reason string) (*Reservation, error) {
	return s.transition(ctx, principal, id, StatusCancelled, reason)
}

// UpdateInput is the caller-supplied part of a reservation update.
// Status "" leaves the lifecycle alone and only merges metadata.
type UpdateInput struct {
	Status             Status
	CancellationReason string
	Notes              string
}

// Update dispatches a status change or, with no status, a metadata merge.
func (s *Saga) Update(ctx context.Context, principal *auth.Principal, id string, in UpdateInput) (*Reservation, error) {
	switch in.Status {
	case "":
		if strings.TrimSpace(in.Notes) == "" {
			return nil, errs.Validation("update requires a status or notes")
		}
		return s.mergeNotes(ctx, principal, id, in.Notes)
	case StatusConfirmed:
		return s.Confirm(ctx, principal, id)
	case StatusCompleted:
		return s.Complete(ctx, principal, id)
	case StatusCancelled:
		return s.Cancel(ctx, principal, id, in.CancellationReason)
	case StatusPending:
		return nil, errs.Validation("reservations cannot return to pending")
	default:
		return nil, errs.Validation("unknown reservation status %q", in.Status)
	}
}

func (s *Saga) mergeNotes(ctx context.Context, principal *auth.Principal, id, notes string) (*Reservation, error) {
	if principal == nil {
		return nil, errs.Unauthorized("reservation update requires an authenticated caller")
	}
	var previous Status
	updated, err := s.store.UpdateWithLock(ctx, id, func(r *Reservation) error {
		if r.OwnerID != principal.ID {
			return errs.Unauthorized("caller is not the owner of reservation %s", id)
		}
		previous = r.Status
		if r.Metadata == nil {
			r.Metadata = map[string]string{}
		}
		r.Metadata[MetadataNotes] = notes
		r.UpdatedAt = s.now().UTC()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, EventUpdated, updated, previous, updated.Status)
	return updated, nil
}

func (s *Saga) transition(ctx context.Context, principal *auth.Principal, id string, next Status, reason string) (*Reservation, error) {
	if principal == nil {
		return nil, errs.Unauthorized("reservation update requires an authenticated caller")
	}
	if next == StatusCancelled && strings.TrimSpace(reason) == "" {
		return nil, errs.Validation("cancellation requires a reason")
	}

	var previous Status
	updated, err := s.store.UpdateWithLock(ctx, id, func(r *Reservation) error {
		if r.OwnerID != principal.ID {
			return errs.Unauthorized("caller is not the owner of reservation %s", id)
		}
		previous = r.Status
		if r.Status.Terminal() {
			return errs.Conflict("reservation %s is already %s", id, r.Status)
		}
		now := s.now().UTC()
		switch next {
		case StatusConfirmed:
			if r.Status != StatusPending {
				return errs.Conflict("confirmation requires a pending reservation, %s is %s", id, r.Status)
			}
			r.Status = StatusConfirmed
		case StatusCompleted:
			if r.Status != StatusConfirmed {
				return errs.Conflict("completion requires a confirmed reservation, %s is %s", id, r.Status)
			}
			r.Status = StatusCompleted
			r.CompletedAt = &now
		case StatusCancelled:
			r.Status = StatusCancelled
			r.CancelledAt = &now
			if r.Metadata == nil {
				r.Metadata = map[string]string{}
			}
			r.Metadata[MetadataCancellationReason] = reason
		}
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.announce(ctx, EventUpdated, updated, previous, updated.Status)
	return updated, nil
}

// announce publishes the transition notification. The state change is
// already committed, so a publish failure is logged and swallowed.
func (s *Saga) announce(ctx context.Context, kind string, r *Reservation, previous, next Status) {
	env := Envelope{
		EventKind:      kind,
		ReservationID:  r.ID,
		OwnerID:        r.OwnerID,
		ResourceIDs:    append([]string(nil), r.ResourceIDs...),
		PreviousStatus: previous,
		NewStatus:      next,
		Timestamp:      s.now().UTC(),
	}
	if err := s.notifier.Announce(ctx, env); err != nil {
		s.logger.Error("reservation notification failed, state already committed", err, logging.LogFields{
			"reservation_id": r.ID,
			"event_kind":     kind,
		})
	}
}

func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
