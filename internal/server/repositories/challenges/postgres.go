package challenges

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

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.Challenge) error {
	query := `
		INSERT INTO challenges (id, nonce, difficulty, payload_hash, ciphertext_size, expires_at, created_at, is_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Nonce, c.Difficulty, c.PayloadHash, c.CiphertextSize, c.ExpiresAt, c.CreatedAt, c.Used)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Challenge, error) {
	query := `
		SELECT id, nonce, difficulty, payload_hash, ciphertext_size, expires_at, created_at, is_used
		FROM challenges WHERE id = $1`

	c := &models.Challenge{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&c.ID, &c.Nonce, &c.Difficulty, &c.PayloadHash, &c.CiphertextSize, &c.ExpiresAt, &c.CreatedAt, &c.Used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) MarkUsed(ctx context.Context, id string, now time.Time) error {
	query := `UPDATE challenges SET is_used = TRUE WHERE id = $1 AND is_used = FALSE AND expires_at >= $2`

	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n != 1 {
		return common.ErrChallengeConsumed
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM challenges WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
