package reservation

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/jsoncodec"
)

const reservationSchema = `
CREATE TABLE IF NOT EXISTS reservations (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	resource_ids TEXT NOT NULL,
	status       TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	cancelled_at INTEGER,
	completed_at INTEGER
);
CREATE INDEX IF NOT EXISTS idx_reservations_owner ON reservations(owner_id);
`

// SQLiteStore persists reservations in a SQLite database. Updates take
// an immediate transaction so the row is locked for the whole
// read-mutate-write cycle.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "open reservation database", err)
	}
	// SQLite allows a single writer, funnel everything through one conn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(reservationSchema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindInternal, "migrate reservation schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, r *Reservation) error {
	resources, err := jsoncodec.Marshal(r.ResourceIDs)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "encode resource ids", err)
	}
	meta, err := encodeMetadata(r.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reservations (id, owner_id, resource_ids, status, metadata, created_at, updated_at, cancelled_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.OwnerID, string(resources), string(r.Status), meta,
		r.CreatedAt.UnixMilli(), r.UpdatedAt.UnixMilli(),
		nullableMilli(r.CancelledAt), nullableMilli(r.CompletedAt),
	)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "insert reservation", err)
	}
	return nil
}

func (s *SQLiteStore) Find(ctx context.Context, id string) (*Reservation, error) {
	row := s.db.QueryRowContext(ctx, selectReservation+` WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("reservation %s not found", id)
	}
	return r, err
}

func (s *SQLiteStore) FindByOwner(ctx context.Context, ownerID string) ([]*Reservation, error) {
	rows, err := s.db.QueryContext(ctx, selectReservation+` WHERE owner_id = ? ORDER BY created_at`, ownerID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "query reservations by owner", err)
	}
	defer rows.Close()

	var out []*Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "iterate reservations", err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateWithLock(ctx context.Context, id string, mutate func(*Reservation) error) (*Reservation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "begin reservation update", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectReservation+` WHERE id = ?`, id)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("reservation %s not found", id)
	}
	if err != nil {
		return nil, err
	}

	if err := mutate(r); err != nil {
		return nil, err
	}

	meta, err := encodeMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, metadata = ?, updated_at = ?, cancelled_at = ?, completed_at = ? WHERE id = ?`,
		string(r.Status), meta, r.UpdatedAt.UnixMilli(),
		nullableMilli(r.CancelledAt), nullableMilli(r.CompletedAt), r.ID,
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "update reservation", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "commit reservation update", err)
	}
	return r, nil
}

const selectReservation = `SELECT id, owner_id, resource_ids, status, metadata, created_at, updated_at, cancelled_at, completed_at FROM reservations`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReservation(row rowScanner) (*Reservation, error) {
	var (
		r                      Reservation
		resources, meta        string
		createdAt, updatedAt   int64
		cancelledAt, completed sql.NullInt64
		status                 string
	)
	err := row.Scan(&r.ID, &r.OwnerID, &resources, &status, &meta, &createdAt, &updatedAt, &cancelledAt, &completed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errs.Wrap(errs.KindInternal, "scan reservation", err)
	}
	r.Status = Status(status)
	if err := jsoncodec.Unmarshal([]byte(resources), &r.ResourceIDs); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "decode resource ids", err)
	}
	if err := jsoncodec.Unmarshal([]byte(meta), &r.Metadata); err != nil {
		return nil, errs.Wrap(errs.KindInternal, "decode reservation metadata", err)
	}
	r.CreatedAt = time.UnixMilli(createdAt).UTC()
	r.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	if cancelledAt.Valid {
		t := time.UnixMilli(cancelledAt.Int64).UTC()
		r.CancelledAt = &t
	}
	if completed.Valid {
		t := time.UnixMilli(completed.Int64).UTC()
		r.CompletedAt = &t
	}
	return &r, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if m == nil {
		m = map[string]string{}
	}
	raw, err := jsoncodec.Marshal(m)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, "encode reservation metadata", err)
	}
	return string(raw), nil
}

func nullableMilli(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}
