package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-admin-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var studentRowColumns = []string{"id", "name", "email", "phone", "national_id", "address", "date_of_birth", "notes", "documents", "created_at", "updated_at"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(append(append([]string{}, studentRowColumns...), "enrollment_count")).
		AddRow("stu-1", "Ana", "ana@example.com", "0812", nil, "Street", nil, "", "{a.pdf}", time.Now(), time.Now(), 2)
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s WHERE (LOWER(s.name) LIKE $1 OR LOWER(s.email) LIKE $1 OR s.phone LIKE $1 OR LOWER(COALESCE(s.national_id, '')) LIKE $1) ORDER BY s.name ASC LIMIT 10 OFFSET 10")).
		WithArgs("%ana%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s WHERE")).
		WithArgs("%ana%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: " Ana ", Page: 2, PageSize: 10, SortBy: "name", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, 2, students[0].EnrollmentCount)
	assert.Equal(t, []string{"a.pdf"}, []string(students[0].Documents))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListUnknownSortFallsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students s ORDER BY s.created_at DESC LIMIT 10 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(append(append([]string{}, studentRowColumns...), "enrollment_count")))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	_, total, err := repo.List(context.Background(), models.StudentFilter{SortBy: "password; DROP TABLE"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE LOWER(email) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("ana@example.com", "stu-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE national_id = $1 LIMIT 1")).
		WithArgs("3201").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByEmail(context.Background(), nil, "ana@example.com", "stu-1")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByNationalID(context.Background(), nil, "3201", "")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryRegisteredEmails(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT LOWER(email) FROM students WHERE LOWER(email) = ANY($1)")).
		WithArgs("{\"ana@example.com\",\"budi@example.com\"}").
		WillReturnRows(sqlmock.NewRows([]string{"lower"}).AddRow("ana@example.com"))

	found, err := repo.RegisteredEmails(context.Background(), []string{"Ana@Example.com", "budi@example.com"})
	require.NoError(t, err)
	assert.Contains(t, found, "ana@example.com")
	assert.NotContains(t, found, "budi@example.com")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO students").
		WithArgs(sqlmock.AnyArg(), "Ana", "ana@example.com", "0812", nil, "", nil, "", "{}", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{Name: "Ana", Email: "ana@example.com", Phone: "0812"}
	require.NoError(t, repo.Create(context.Background(), nil, student))
	assert.NotEmpty(t, student.ID)
	assert.False(t, student.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM students WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryAppendDocuments(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET documents = documents || $1::text[]")).
		WithArgs(`{"students/s-1/c.pdf"}`, sqlmock.AnyArg(), "s-1").
		WillReturnRows(sqlmock.NewRows([]string{"documents"}).AddRow(`{students/s-1/a.pdf,students/s-1/c.pdf}`))

	documents, err := repo.AppendDocuments(context.Background(), "s-1", []string{"students/s-1/c.pdf"})
	require.NoError(t, err)
	assert.Equal(t, []string{"students/s-1/a.pdf", "students/s-1/c.pdf"}, documents)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE students SET documents = documents || $1::text[]")).
		WithArgs(`{"students/missing/c.pdf"}`, sqlmock.AnyArg(), "missing").
		WillReturnRows(sqlmock.NewRows([]string{"documents"}))

	_, err = repo.AppendDocuments(context.Background(), "missing", []string{"students/missing/c.pdf"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryRemoveDocument(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SET documents = array_remove(documents, $1)")).
		WithArgs("students/s-1/a.pdf", sqlmock.AnyArg(), "s-1").
		WillReturnRows(sqlmock.NewRows([]string{"documents"}).AddRow(`{students/s-1/c.pdf}`))

	documents, err := repo.RemoveDocument(context.Background(), "s-1", "students/s-1/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []string{"students/s-1/c.pdf"}, documents)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $3 AND $1 = ANY(documents)")).
		WithArgs("students/s-1/a.pdf", sqlmock.AnyArg(), "s-1").
		WillReturnRows(sqlmock.NewRows([]string{"documents"}))

	_, err = repo.RemoveDocument(context.Background(), "s-1", "students/s-1/a.pdf")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
