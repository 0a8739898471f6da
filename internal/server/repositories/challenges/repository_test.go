package challenges

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/server/models"
)

var t0 = time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)

func sample() *models.Challenge {
	return &models.Challenge{
		ID: "c1", Nonce: "n", Difficulty: 18, PayloadHash: "h", CiphertextSize: 10,
		ExpiresAt: t0.Add(5 * time.Minute), CreatedAt: t0,
	}
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestPostgres_CreateGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	c := sample()

	mock.ExpectExec(`INSERT INTO challenges`).
		WithArgs("c1", "n", 18, "h", 10, c.ExpiresAt, t0, false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), c))

	mock.ExpectQuery(`FROM challenges WHERE id = \$1`).WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "nonce", "difficulty", "payload_hash", "ciphertext_size", "expires_at", "created_at", "is_used"}).
			AddRow("c1", "n", 18, "h", 10, c.ExpiresAt, t0, true))
	got, err := repo.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, got.Used)

	mock.ExpectQuery(`FROM challenges`).WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgres_MarkUsed(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `UPDATE challenges SET is_used = TRUE WHERE id = \$1 AND is_used = FALSE AND expires_at >= \$2`

	mock.ExpectExec(q).WithArgs("c1", t0).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkUsed(context.Background(), "c1", t0))

	mock.ExpectExec(q).WithArgs("c1", t0).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.MarkUsed(context.Background(), "c1", t0), common.ErrChallengeConsumed)

	mock.ExpectExec(q).WillReturnError(errors.New("down"))
	assert.ErrorContains(t, repo.MarkUsed(context.Background(), "c1", t0), "db error")
}

func TestPostgres_DeleteExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM challenges WHERE expires_at < \$1`).WithArgs(t0).WillReturnResult(sqlmock.NewResult(0, 4))
	n, err := repo.DeleteExpired(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestMemory(t *testing.T) {
	r := NewMemoryRepository(&sync.Mutex{})
	c := sample()
	require.NoError(t, r.Create(context.Background(), c))
	assert.Error(t, r.Create(context.Background(), c))

	assert.ErrorIs(t, r.MarkUsed(context.Background(), "c1", c.ExpiresAt.Add(time.Second)), common.ErrChallengeConsumed)
	require.NoError(t, r.MarkUsed(context.Background(), "c1", c.ExpiresAt))
	assert.ErrorIs(t, r.MarkUsed(context.Background(), "c1", t0), common.ErrChallengeConsumed)

	got, err := r.Get(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, got.Used)

	n, err := r.DeleteExpired(context.Background(), c.ExpiresAt.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = r.Get(context.Background(), "c1")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
