package secrets

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/timevault/internal/common"
	"github.com/dmitrijs2005/timevault/internal/server/models"
)

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

var (
	t0      = time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)
	columns = []string{"id", "ciphertext", "iv", "auth_tag", "storage_key", "ciphertext_size",
		"unlock_at", "expires_at", "created_at", "retrieved_at", "cleared_at",
		"edit_token_prefix", "edit_token_hash", "decrypt_token_prefix", "decrypt_token_hash", "status"}
)

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	s := &models.Secret{
		ID: "s1", Ciphertext: []byte("ct"), IV: []byte("iv"), AuthTag: []byte("tag"), CiphertextSize: 2,
		UnlockAt: t0, ExpiresAt: t0.Add(time.Hour), CreatedAt: t0.Add(-time.Hour),
		EditTokenPrefix: "e", EditTokenHash: "eh", DecryptTokenPrefix: "d", DecryptTokenHash: "dh",
		Status: models.StatusPending,
	}

	mock.ExpectExec(`INSERT INTO secrets`).
		WithArgs("s1", []byte("ct"), []byte("iv"), []byte("tag"), sql.NullString{}, 2,
			t0, t0.Add(time.Hour), "e", "eh", "d", "dh", "pending", t0.Add(-time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Create(context.Background(), s))

	mock.ExpectExec(`INSERT INTO secrets`).WillReturnError(errors.New("db down"))
	err := repo.Create(context.Background(), s)
	assert.ErrorContains(t, err, "db error: db down")
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(columns).AddRow("s1", nil, nil, nil, "secrets/k", 10,
		t0, t0.Add(time.Hour), t0, t0, t0, "e", "eh", "d", "dh", "retrieved")
	mock.ExpectQuery(`SELECT .* FROM secrets WHERE id = \$1`).WithArgs("s1").WillReturnRows(rows)

	s, err := repo.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "secrets/k", s.StorageKey)
	assert.Equal(t, models.StatusRetrieved, s.Status)
	require.NotNil(t, s.RetrievedAt)
	assert.True(t, s.Cleared())

	mock.ExpectQuery(`SELECT .* FROM secrets WHERE id = \$1`).WithArgs("nope").WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestFindByPrefix(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	rows := sqlmock.NewRows(columns).
		AddRow("s1", []byte("ct"), []byte("iv"), []byte("tag"), nil, 2, t0, t0.Add(time.Hour), t0, nil, nil, "e", "eh", "d", "dh", "pending").
		AddRow("s2", nil, nil, nil, nil, 2, t0, t0.Add(time.Hour), t0, nil, t0, "e2", "eh2", "d", "dh2", "expired")
	mock.ExpectQuery(`FROM secrets WHERE decrypt_token_prefix = \$1`).WithArgs("d").WillReturnRows(rows)

	got, err := repo.FindByDecryptPrefix(context.Background(), "d")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0].ClearedAt)
	assert.Equal(t, models.StatusExpired, got[1].Status)

	mock.ExpectQuery(`FROM secrets WHERE edit_token_prefix = \$1`).WithArgs("e").WillReturnError(errors.New("boom"))
	_, err = repo.FindByEditPrefix(context.Background(), "e")
	assert.ErrorContains(t, err, "db error: boom")
}

func TestClaim(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := regexp.QuoteMeta(`FOR UPDATE`) + `.*UPDATE secrets s.*status = 'retrieved'.*RETURNING`

	mock.ExpectQuery(`(?s)` + q).WithArgs("s1", t0).
		WillReturnRows(sqlmock.NewRows([]string{"ciphertext", "iv", "auth_tag", "storage_key", "unlock_at", "expires_at", "retrieved_at"}).
			AddRow([]byte("ct"), []byte("iv"), []byte("tag"), nil, t0.Add(-time.Hour), t0.Add(time.Hour), t0))

	c, err := repo.Claim(context.Background(), "s1", t0)
	require.NoError(t, err)
	assert.Equal(t, []byte("ct"), c.Ciphertext)
	assert.Equal(t, "", c.StorageKey)
	assert.Equal(t, t0, c.RetrievedAt)

	mock.ExpectQuery(`(?s)` + q).WithArgs("s1", t0).WillReturnError(sql.ErrNoRows)
	_, err = repo.Claim(context.Background(), "s1", t0)
	assert.ErrorIs(t, err, ErrNoTransition)
}

func TestReschedule(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)UPDATE secrets\s+SET unlock_at = \$2, expires_at = \$3.*unlock_at < \$2`

	mock.ExpectExec(q).WithArgs("s1", t0, t0.Add(time.Hour), t0.Add(-time.Hour)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Reschedule(context.Background(), "s1", t0, t0.Add(time.Hour), t0.Add(-time.Hour)))

	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Reschedule(context.Background(), "s1", t0, t0.Add(time.Hour), t0), ErrNoTransition)

	mock.ExpectExec(q).WillReturnResult(sqlmock.NewResult(0, 2))
	assert.ErrorContains(t, repo.Reschedule(context.Background(), "s1", t0, t0.Add(time.Hour), t0), "unexpected rows affected")
}

func TestClearExpired(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)FOR UPDATE SKIP LOCKED.*status = 'expired'`).WithArgs(t0, 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_key"}).AddRow("s1", nil).AddRow("s2", "secrets/x"))

	got, err := repo.ClearExpired(context.Background(), t0, 100)
	require.NoError(t, err)
	assert.Equal(t, []models.ClearedSecret{{ID: "s1"}, {ID: "s2", StorageKey: "secrets/x"}}, got)
}

func TestClearExpiredByID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	q := `(?s)WHERE id = \$1 AND status = 'pending'.*expires_at <= \$2.*status = 'expired', cleared_at = \$2`

	mock.ExpectQuery(q).WithArgs("s1", t0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_key"}).AddRow("s1", "secrets/x"))
	got, err := repo.ClearExpiredByID(context.Background(), "s1", t0)
	require.NoError(t, err)
	assert.Equal(t, &models.ClearedSecret{ID: "s1", StorageKey: "secrets/x"}, got)

	mock.ExpectQuery(q).WithArgs("s1", t0).WillReturnError(sql.ErrNoRows)
	_, err = repo.ClearExpiredByID(context.Background(), "s1", t0)
	assert.ErrorIs(t, err, ErrNoTransition)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeCleared(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM secrets WHERE cleared_at IS NOT NULL AND cleared_at < \$1`).WithArgs(t0).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.PurgeCleared(context.Background(), t0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
