// Package history keeps a local SQLite log of the secrets this client
// created, so the sender can list them and re-check their status. The file
// holds share links and therefore keys; it is created owner-only.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/timevault/internal/client/history/migrations"
	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/dbx"
)

// Record is one created secret.
type Record struct {
	SecretID   string
	Label      string
	ShareLink  string
	EditLink   string
	UnlockAt   time.Time
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastStatus string
	CheckedAt  *time.Time
}

type Repository interface {
	Add(ctx context.Context, r *Record) error
	Get(ctx context.Context, secretID string) (*Record, error)
	List(ctx context.Context) ([]*Record, error)
	UpdateSchedule(ctx context.Context, secretID string, unlockAt, expiresAt time.Time) error
	UpdateStatus(ctx context.Context, secretID, status string, checkedAt time.Time) error
	Delete(ctx context.Context, secretID string) error
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Store is a history repository bound to its own database handle.
type Store struct {
	*SQLiteRepository
	db *sql.DB
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Open opens (creating if needed) the history database at path and applies
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create history file: %w", err)
	}
	f.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{SQLiteRepository: NewSQLiteRepository(db), db: db}, nil
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (r *SQLiteRepository) Add(ctx context.Context, rec *Record) error {
	status := rec.LastStatus
	if status == "" {
		status = "pending"
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO secrets (secret_id, label, share_link, edit_link, unlock_at, expires_at, created_at, last_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.SecretID, rec.Label, rec.ShareLink, rec.EditLink,
		formatTime(rec.UnlockAt), formatTime(rec.ExpiresAt), formatTime(rec.CreatedAt), status)
	if err != nil {
		return fmt.Errorf("failed to add history record: %w", err)
	}
	return nil
}

const selectRecord = `SELECT secret_id, label, share_link, edit_link, unlock_at, expires_at, created_at, last_status, checked_at FROM secrets`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var (
		rec                      Record
		unlock, expires, created string
		checked                  sql.NullString
	)
	if err := s.Scan(&rec.SecretID, &rec.Label, &rec.ShareLink, &rec.EditLink,
		&unlock, &expires, &created, &rec.LastStatus, &checked); err != nil {
		return nil, err
	}

	var err error
	if rec.UnlockAt, err = time.Parse(time.RFC3339Nano, unlock); err != nil {
		return nil, fmt.Errorf("bad unlock_at: %w", err)
	}
	if rec.ExpiresAt, err = time.Parse(time.RFC3339Nano, expires); err != nil {
		return nil, fmt.Errorf("bad expires_at: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("bad created_at: %w", err)
	}
	if checked.Valid {
		t, err := time.Parse(time.RFC3339Nano, checked.String)
		if err != nil {
			return nil, fmt.Errorf("bad checked_at: %w", err)
		}
		rec.CheckedAt = &t
	}
	return &rec, nil
}

// Get returns common.ErrorNotFound for an unknown id.
func (r *SQLiteRepository) Get(ctx context.Context, secretID string) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectRecord+` WHERE secret_id = ?`, secretID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history record: %w", err)
	}
	return rec, nil
}

// List returns all records, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, selectRecord+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) exec(ctx context.Context, what, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository) UpdateSchedule(ctx context.Context, secretID string, unlockAt, expiresAt time.Time) error {
	return r.exec(ctx, "update schedule",
		`UPDATE secrets SET unlock_at = ?, expires_at = ? WHERE secret_id = ?`,
		formatTime(unlockAt), formatTime(expiresAt), secretID)
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, secretID, status string, checkedAt time.Time) error {
	return r.exec(ctx, "update status",
		`UPDATE secrets SET last_status = ?, checked_at = ? WHERE secret_id = ?`,
		status, formatTime(checkedAt), secretID)
}

func (r *SQLiteRepository) Delete(ctx context.Context, secretID string) error {
	return r.exec(ctx, "delete history record", `DELETE FROM secrets WHERE secret_id = ?`, secretID)
}
