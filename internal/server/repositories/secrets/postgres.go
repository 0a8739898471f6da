package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/dbx"
	"github.com/dmitrijs2005/timevault/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, ciphertext, iv, auth_tag, storage_key, ciphertext_size,
		unlock_at, expires_at, created_at, retrieved_at, cleared_at,
		edit_token_prefix, edit_token_hash, decrypt_token_prefix, decrypt_token_hash, status`

type scanner interface {
	Scan(dest ...any) error
}

func scanSecret(row scanner) (*models.Secret, error) {
	var (
		s          models.Secret
		storageKey sql.NullString
		retrieved  sql.NullTime
		cleared    sql.NullTime
		status     string
	)
	err := row.Scan(&s.ID, &s.Ciphertext, &s.IV, &s.AuthTag, &storageKey, &s.CiphertextSize,
		&s.UnlockAt, &s.ExpiresAt, &s.CreatedAt, &retrieved, &cleared,
		&s.EditTokenPrefix, &s.EditTokenHash, &s.DecryptTokenPrefix, &s.DecryptTokenHash, &status)
	if err != nil {
		return nil, err
	}
	s.StorageKey = storageKey.String
	if retrieved.Valid {
		t := retrieved.Time
		s.RetrievedAt = &t
	}
	if cleared.Valid {
		t := cleared.Time
		s.ClearedAt = &t
	}
	s.Status = models.Status(status)
	return &s, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Secret) error {
	query := `
		INSERT INTO secrets (id, ciphertext, iv, auth_tag, storage_key, ciphertext_size,
			unlock_at, expires_at, edit_token_prefix, edit_token_hash,
			decrypt_token_prefix, decrypt_token_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.Ciphertext, s.IV, s.AuthTag, nullString(s.StorageKey), s.CiphertextSize,
		s.UnlockAt, s.ExpiresAt, s.EditTokenPrefix, s.EditTokenHash,
		s.DecryptTokenPrefix, s.DecryptTokenHash, string(s.Status), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Secret, error) {
	query := `SELECT ` + selectColumns + ` FROM secrets WHERE id = $1`

	s, err := scanSecret(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) FindByDecryptPrefix(ctx context.Context, prefix string) ([]*models.Secret, error) {
	return r.findBy(ctx, `SELECT `+selectColumns+` FROM secrets WHERE decrypt_token_prefix = $1`, prefix)
}

func (r *PostgresRepository) FindByEditPrefix(ctx context.Context, prefix string) ([]*models.Secret, error) {
	return r.findBy(ctx, `SELECT `+selectColumns+` FROM secrets WHERE edit_token_prefix = $1`, prefix)
}

func (r *PostgresRepository) findBy(ctx context.Context, query, prefix string) ([]*models.Secret, error) {
	rows, err := r.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Secret
	for rows.Next() {
		s, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Claim locks the row, checks the state and clears it in one statement; a
// concurrent claimer blocks on the row lock and then sees status retrieved.
func (r *PostgresRepository) Claim(ctx context.Context, id string, now time.Time) (*models.ClaimedSecret, error) {
	query := `
		WITH old AS (
			SELECT id, ciphertext, iv, auth_tag, storage_key
			FROM secrets
			WHERE id = $1 AND status = 'pending' AND cleared_at IS NULL
				AND unlock_at <= $2 AND expires_at > $2
			FOR UPDATE
		)
		UPDATE secrets s
		SET ciphertext = NULL, iv = NULL, auth_tag = NULL, storage_key = NULL,
			status = 'retrieved', retrieved_at = $2, cleared_at = $2
		FROM old
		WHERE s.id = old.id
		RETURNING old.ciphertext, old.iv, old.auth_tag, old.storage_key, s.unlock_at, s.expires_at, s.retrieved_at`

	c := &models.ClaimedSecret{ID: id}
	var storageKey sql.NullString
	err := r.db.QueryRowContext(ctx, query, id, now).
		Scan(&c.Ciphertext, &c.IV, &c.AuthTag, &storageKey, &c.UnlockAt, &c.ExpiresAt, &c.RetrievedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoTransition
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.StorageKey = storageKey.String
	return c, nil
}

func (r *PostgresRepository) Reschedule(ctx context.Context, id string, unlockAt, expiresAt, now time.Time) error {
	query := `
		UPDATE secrets
		SET unlock_at = $2, expires_at = $3
		WHERE id = $1 AND status = 'pending' AND cleared_at IS NULL
			AND unlock_at > $4 AND expires_at > $4 AND unlock_at < $2`

	res, err := r.db.ExecContext(ctx, query, id, unlockAt, expiresAt, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return ErrNoTransition
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// ClearExpired skips rows locked by an in-flight Claim; whichever statement
// gets the lock first wins and the other matches nothing.
func (r *PostgresRepository) ClearExpired(ctx context.Context, now time.Time, limit int) ([]models.ClearedSecret, error) {
	query := `
		WITH expired AS (
			SELECT id, storage_key
			FROM secrets
			WHERE status = 'pending' AND cleared_at IS NULL AND expires_at <= $1
			ORDER BY expires_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE secrets s
		SET ciphertext = NULL, iv = NULL, auth_tag = NULL, storage_key = NULL,
			status = 'expired', cleared_at = $1
		FROM expired
		WHERE s.id = expired.id
		RETURNING s.id, expired.storage_key`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []models.ClearedSecret
	for rows.Next() {
		var (
			c   models.ClearedSecret
			key sql.NullString
		)
		if err := rows.Scan(&c.ID, &key); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		c.StorageKey = key.String
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) ClearExpiredByID(ctx context.Context, id string, now time.Time) (*models.ClearedSecret, error) {
	query := `
		WITH expired AS (
			SELECT id, storage_key
			FROM secrets
			WHERE id = $1 AND status = 'pending' AND cleared_at IS NULL AND expires_at <= $2
			FOR UPDATE SKIP LOCKED
		)
		UPDATE secrets s
		SET ciphertext = NULL, iv = NULL, auth_tag = NULL, storage_key = NULL,
			status = 'expired', cleared_at = $2
		FROM expired
		WHERE s.id = expired.id
		RETURNING s.id, expired.storage_key`

	var (
		c   models.ClearedSecret
		key sql.NullString
	)
	if err := r.db.QueryRowContext(ctx, query, id, now).Scan(&c.ID, &key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoTransition
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	c.StorageKey = key.String
	return &c, nil
}

func (r *PostgresRepository) PurgeCleared(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM secrets WHERE cleared_at IS NOT NULL AND cleared_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
