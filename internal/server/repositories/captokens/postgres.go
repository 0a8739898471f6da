package captokens

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/dbx"
	"github.com/dmitrijs2005/timevault/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, t *models.CapabilityToken) error {
	query := `
		INSERT INTO capability_tokens (id, token_prefix, token_hash, tier, max_ciphertext_bytes,
			max_expiry_seconds, note, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.TokenPrefix, t.TokenHash, t.Tier, t.MaxCiphertextBytes,
		int64(t.MaxExpiry/time.Second), t.Note, t.CreatedAt, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByPrefix(ctx context.Context, prefix string) ([]*models.CapabilityToken, error) {
	query := `
		SELECT id, token_prefix, token_hash, tier, max_ciphertext_bytes, max_expiry_seconds, note,
			created_at, expires_at, consumed_at, consumed_by_secret_id
		FROM capability_tokens WHERE token_prefix = $1`

	rows, err := r.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.CapabilityToken
	for rows.Next() {
		var (
			t        models.CapabilityToken
			seconds  int64
			consumed sql.NullTime
			secretID sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.TokenPrefix, &t.TokenHash, &t.Tier, &t.MaxCiphertextBytes, &seconds, &t.Note,
			&t.CreatedAt, &t.ExpiresAt, &consumed, &secretID); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		t.MaxExpiry = time.Duration(seconds) * time.Second
		if consumed.Valid {
			at := consumed.Time
			t.ConsumedAt = &at
		}
		t.ConsumedBySecretID = secretID.String
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Consume(ctx context.Context, id, secretID string, now time.Time) error {
	query := `
		UPDATE capability_tokens SET consumed_at = $3, consumed_by_secret_id = $2
		WHERE id = $1 AND consumed_at IS NULL AND expires_at > $3`

	res, err := r.db.ExecContext(ctx, query, id, secretID, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%w: capability token already consumed", common.ErrAdmissionDenied)
	}
	return nil
}
