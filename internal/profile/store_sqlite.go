package profile

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bookhive/bookhive/internal/errs"
)

const profileSchema = `
CREATE TABLE IF NOT EXISTS profiles (
	id         TEXT PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
`

// SQLiteStore persists profiles. The email uniqueness lives in the
// database, so concurrent creates of the same address resolve to one
// winner and one conflict.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "open profile database", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(profileSchema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindInternal, "migrate profile schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, u *User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, name, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, normalizeEmail(u.Email), u.Name, u.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errs.Conflict("profile with email %s already exists", normalizeEmail(u.Email))
		}
		return errs.Wrap(errs.KindInternal, "insert profile", err)
	}
	return nil
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM profiles WHERE id = ?`, id)
	u, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("profile %s not found", id)
	}
	return u, err
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, created_at FROM profiles WHERE email = ?`, normalizeEmail(email))
	u, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("profile with email %s not found", normalizeEmail(email))
	}
	return u, err
}

func scanProfile(row *sql.Row) (*User, error) {
	var (
		u         User
		createdAt int64
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errs.Wrap(errs.KindInternal, "scan profile", err)
	}
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &u, nil
}
