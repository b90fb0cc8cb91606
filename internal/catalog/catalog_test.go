package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/bookhive/bookhive/internal/errs"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(NewMemoryStore())
	if err != nil {
		t.Fatalf("service construction failed: %v", err)
	}
	return svc
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{
		Name:     "  Go Conference  ",
		Location: "Berlin",
		StartsAt: time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC),
		Capacity: 300,
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Name != "Go Conference" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("expected the created event, got %#v", got)
	}
}

func TestGetAbsentEventIsNullNotError(t *testing.T) {
	svc := newTestService(t)

	got, err := svc.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("expected no error for an absent event, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil event, got %#v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Name: "   "}); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Name: "x", Capacity: -1}); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error for negative capacity, got %v", err)
	}
}

func TestUpdateAppliesPartialChanges(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "Meetup", Capacity: 50})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	newCapacity := 80
	updated, err := svc.Update(ctx, created.ID, UpdateInput{Capacity: &newCapacity})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Capacity != 80 {
		t.Fatalf("expected capacity 80, got %d", updated.Capacity)
	}
	if updated.Name != "Meetup" {
		t.Fatalf("expected untouched name, got %q", updated.Name)
	}

	blank := " "
	if _, err := svc.Update(ctx, created.ID, UpdateInput{Name: &blank}); !errs.IsKind(err, errs.KindValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}

	if _, err := svc.Update(ctx, "missing", UpdateInput{Capacity: &newCapacity}); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not found for unknown event, got %v", err)
	}
}

func TestDeleteRemovesEvent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "Meetup"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if got, err := svc.Get(ctx, created.ID); err != nil || got != nil {
		t.Fatalf("expected the event to be gone, got %#v, %v", got, err)
	}
	if err := svc.Delete(ctx, created.ID); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestListReturnsAllEvents(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"One", "Two", "Three"} {
		if _, err := svc.Create(ctx, CreateInput{Name: name}); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}
	events, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
}

func TestCreateSetsOrganizerAndActive(t *testing.T) {
	svc := newTestService(t)

	created, err := svc.Create(context.Background(), CreateInput{
		Name:        "Workshop",
		Tags:        []string{"go", "hands-on"},
		OrganizerID: "organizer-1",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !created.IsActive {
		t.Fatal("expected a new event to be active")
	}
	if created.OrganizerID != "organizer-1" {
		t.Fatalf("expected organizer to be recorded, got %q", created.OrganizerID)
	}
	if len(created.Tags) != 2 {
		t.Fatalf("expected tags to be kept, got %v", created.Tags)
	}
}

func TestUpdateDeactivatesEvent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Name: "Meetup"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	inactive := false
	updated, err := svc.Update(ctx, created.ID, UpdateInput{IsActive: &inactive})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.IsActive {
		t.Fatal("expected the event to be inactive")
	}

	// Inactive events stay resolvable for existing reservations.
	got, err := svc.Get(ctx, created.ID)
	if err != nil || got == nil {
		t.Fatalf("expected the inactive event to resolve, got %#v, %v", got, err)
	}
}

func TestSQLiteStoreRoundtrip(t *testing.T) {
	store, err := NewSQLiteStore(t.TempDir() + "/catalog.db")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	event := &Event{
		ID:          "evt-1",
		Name:        "Go Conference",
		Location:    "Berlin",
		StartsAt:    now,
		Capacity:    300,
		Tags:        []string{"go", "conference"},
		OrganizerID: "organizer-1",
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := store.Create(ctx, event); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := store.Get(ctx, "evt-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != event.Name || got.OrganizerID != event.OrganizerID || !got.IsActive {
		t.Fatalf("unexpected event: %#v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "go" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
	if !got.StartsAt.Equal(now) {
		t.Fatalf("expected start %v, got %v", now, got.StartsAt)
	}

	got.IsActive = false
	got.UpdatedAt = now.Add(time.Hour)
	if err := store.Update(ctx, got); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	updated, err := store.Get(ctx, "evt-1")
	if err != nil {
		t.Fatalf("get after update failed: %v", err)
	}
	if updated.IsActive {
		t.Fatal("expected the event to be inactive after update")
	}

	if err := store.Delete(ctx, "evt-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "evt-1"); !errs.IsKind(err, errs.KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
