package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bookhive/bookhive/internal/errs"
)

const accountSchema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            TEXT PRIMARY KEY,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	roles         TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
`

// SQLiteStore persists accounts with the email uniqueness enforced by
// the database, so concurrent registrations of the same address resolve
// to exactly one winner.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "open account database", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(accountSchema); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.KindInternal, "migrate account schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, a *Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, roles, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, NormalizeEmail(a.Email), a.PasswordHash, strings.Join(a.Roles, ","), a.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return errs.Conflict("account with email %s already exists", NormalizeEmail(a.Email))
		}
		return errs.Wrap(errs.KindInternal, "insert account", err)
	}
	return nil
}

func (s *SQLiteStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, roles, created_at FROM accounts WHERE email = ?`,
		NormalizeEmail(email),
	)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("account with email %s not found", NormalizeEmail(email))
	}
	return a, err
}

func (s *SQLiteStore) FindByID(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, roles, created_at FROM accounts WHERE id = ?`, id,
	)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NotFound("account %s not found", id)
	}
	return a, err
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "delete account", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.NotFound("account %s not found", id)
	}
	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var (
		a         Account
		roles     string
		createdAt int64
	)
	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &roles, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errs.Wrap(errs.KindInternal, "scan account", err)
	}
	if roles != "" {
		a.Roles = strings.Split(roles, ",")
	}
	a.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &a, nil
}
