package replies

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/deaddrop/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+replies\s*\(id,\s*source_id,\s*filename,\s*size,\s*created_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5\)\s*$`
	ts := time.Unix(0, 0).UTC()
	mock.ExpectExec(q).WithArgs(sqlmock.AnyArg(), "s-1", "3-reply.gpg", int64(44), ts).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WillReturnError(errors.New("boom"))

	rp := &models.Reply{SourceID: "s-1", Filename: "3-reply.gpg", Size: 44, CreatedAt: ts}
	require.NoError(t, repo.Create(context.Background(), rp))
	assert.NotEmpty(t, rp.ID)

	assert.ErrorContains(t, repo.Create(context.Background(), &models.Reply{ID: "x"}), "db error: boom")
}

func TestCountBySource(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^SELECT\s+COUNT\(\*\)\s+FROM\s+replies\s+WHERE\s+source_id\s*=\s*\$1$`
	mock.ExpectQuery(q).WithArgs("s-1").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(q).WithArgs("s-1").WillReturnError(errors.New("boom"))

	n, err := repo.CountBySource(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.CountBySource(context.Background(), "s-1")
	assert.ErrorContains(t, err, "db error: boom")
}

func TestListBySource(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*source_id,\s*filename,\s*size,\s*created_at\s+FROM\s+replies\s+WHERE\s+source_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at,\s*filename\s*$`
	ts := time.Unix(0, 0).UTC()
	mock.ExpectQuery(q).WithArgs("s-1").WillReturnRows(
		sqlmock.NewRows([]string{"id", "source_id", "filename", "size", "created_at"}).
			AddRow("r1", "s-1", "2-reply.gpg", int64(10), ts).
			AddRow("r2", "s-1", "4-reply.gpg", int64(20), ts))

	got, err := repo.ListBySource(context.Background(), "s-1")
	require.NoError(t, err)

	want := []*models.Reply{
		{ID: "r1", SourceID: "s-1", Filename: "2-reply.gpg", Size: 10, CreatedAt: ts},
		{ID: "r2", SourceID: "s-1", Filename: "4-reply.gpg", Size: 20, CreatedAt: ts},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("replies mismatch (-want +got):\n%s", diff)
	}

	mock.ExpectQuery(q).WithArgs("s-2").WillReturnError(errors.New("boom"))
	_, err = repo.ListBySource(context.Background(), "s-2")
	assert.ErrorContains(t, err, "db error: boom")
}

func TestDeleteBySource(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+replies\s+WHERE\s+source_id\s*=\s*\$1$`
	mock.ExpectExec(q).WithArgs("s-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q).WithArgs("s-1").WillReturnError(errors.New("boom"))
	mock.ExpectExec(q).WithArgs("s-1").WillReturnResult(sqlmock.NewErrorResult(errors.New("no info")))

	n, err := repo.DeleteBySource(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = repo.DeleteBySource(context.Background(), "s-1")
	assert.ErrorContains(t, err, "db error: boom")
	_, err = repo.DeleteBySource(context.Background(), "s-1")
	assert.ErrorContains(t, err, "db error: no info")
}
