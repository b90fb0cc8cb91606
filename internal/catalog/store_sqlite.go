package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/jsoncodec"
)

const eventSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	location    TEXT NOT NULL DEFAULT '',
	starts_at   INTEGER NOT NULL,
	capacity    INTEGER NOT NULL DEFAULT 0,
	tags        TEXT NOT NULL DEFAULT '[]',
	organizer_id TEXT NOT NULL DEFAULT '',
	is_active   INTEGER NOT NULL DEFAULT 1,
	created_at  INTEGER NOT NULL,
	updated_at  INTEGER NOT NULL
);
`

// SQLiteStore persists events in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "open event database", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(eventSchema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindInternal, "migrate event schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

const selectEvent = `SELECT id, name, description, location, starts_at, capacity, tags, organizer_id, is_active, created_at, updated_at FROM events`

func (s *SQLiteStore) Create(ctx context.Context, e *Event) error {
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, name, description, location, starts_at, capacity, tags, organizer_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.Description, e.Location, e.StartsAt.UnixMilli(), e.Capacity,
		tags, e.OrganizerID, e.IsActive,
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "insert event", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, selectEvent+` WHERE id = ?`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("event %s not found", id)
	}
	return e, err
}

func (s *SQLiteStore) List(ctx context.Context) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, selectEvent+` ORDER BY starts_at`)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "query events", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "iterate events", err)
	}
	return out, nil
}

func (s *SQLiteStore) Update(ctx context.Context, e *Event) error {
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET name = ?, description = ?, location = ?, starts_at = ?, capacity = ?, tags = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		e.Name, e.Description, e.Location, e.StartsAt.UnixMilli(), e.Capacity, tags, e.IsActive, e.UpdatedAt.UnixMilli(), e.ID,
	)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "update event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("event %s not found", e.ID)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "delete event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("event %s not found", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		e                              Event
		tags                           string
		startsAt, createdAt, updatedAt int64
	)
	if err := row.Scan(&e.ID, &e.Name, &e.Description, &e.Location, &startsAt, &e.Capacity, &tags, &e.OrganizerID, &e.IsActive, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errs.Wrap(errs.KindInternal, "scan event", err)
	}
	if tags != "" && tags != "[]" {
		if err := jsoncodec.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, errs.Wrap(errs.KindInternal, "decode event tags", err)
		}
	}
	e.StartsAt = time.UnixMilli(startsAt).UTC()
	e.CreatedAt = time.UnixMilli(createdAt).UTC()
	e.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &e, nil
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "[]", nil
	}
	raw, err := jsoncodec.Marshal(tags)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, "encode event tags", err)
	}
	return string(raw), nil
}
