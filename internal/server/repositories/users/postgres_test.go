package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"id", "email", "password", "fullname", "display_name", "avatar", "role", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func strPtr(s string) *string { return &s }

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^INSERT\s+INTO\s+users\s*\(email,\s*password,\s*fullname,\s*display_name,\s*avatar,\s*role\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6\)\s*RETURNING\s+id,`
	mock.ExpectQuery(q).
		WithArgs("jane@x.io", "hash", "Jane Doe", nil, nil, "user").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(42, "jane@x.io", "hash", "Jane Doe", nil, nil, "user", now, now))

	got, err := repo.Create(context.Background(), &models.User{Email: "jane@x.io", Password: "hash", Fullname: "Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "user", got.Role)
	assert.Nil(t, got.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "jane@x.io", Password: "h", Fullname: "J"})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@b.c"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^SELECT\s+id,\s*email,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`
	mock.ExpectQuery(q).
		WithArgs("jane@x.io").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(7, "jane@x.io", "hash", "Jane", "JD", "https://cdn/a.png", "admin", now, now))

	got, err := repo.GetByEmail(context.Background(), "jane@x.io")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	require.NotNil(t, got.DisplayName)
	assert.Equal(t, "JD", *got.DisplayName)
	require.NotNil(t, got.Avatar)
	assert.Equal(t, "https://cdn/a.png", *got.Avatar)
	assert.Equal(t, "admin", got.Role)
}

func TestGetByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).WithArgs("ghost@x.io").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@x.io")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate_OnlySuppliedFields(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	q := `(?s)^UPDATE\s+users\s+SET\s+fullname\s*=\s*\$1,\s*display_name\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$3\s+RETURNING\s+id,`
	mock.ExpectQuery(q).
		WithArgs("New Name", "nn", int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, "a@b.c", "hash", "New Name", "nn", nil, "user", now, now))

	got, err := repo.Update(context.Background(), 3, models.UserFields{Fullname: strPtr("New Name"), DisplayName: strPtr("nn")})
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Fullname)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_EmptyFieldsReadsRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*WHERE\s+id\s*=\s*\$1$`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(3, "a@b.c", "hash", "A", nil, nil, "user", now, now))

	got, err := repo.Update(context.Background(), 3, models.UserFields{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.ID)
}

func TestUpdate_NotFoundAndConflict(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`UPDATE\s+users`).WillReturnError(sql.ErrNoRows)
	_, err := repo.Update(context.Background(), 1, models.UserFields{Password: strPtr("h")})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(`UPDATE\s+users`).WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = repo.Update(context.Background(), 1, models.UserFields{Email: strPtr("taken@x.io")})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`

	mock.ExpectExec(q).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), 5))

	mock.ExpectExec(q).WithArgs(int64(6)).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 6), common.ErrorNotFound)

	mock.ExpectExec(q).WithArgs(int64(7)).WillReturnError(errors.New("boom"))
	err := repo.Delete(context.Background(), 7)
	assert.ErrorContains(t, err, "db error: boom")

	assert.NoError(t, mock.ExpectationsWereMet())
}
