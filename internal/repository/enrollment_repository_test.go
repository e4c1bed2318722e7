package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-admin-api/internal/models"
)

var enrollmentDetailColumns = []string{"id", "student_id", "course_id", "status", "batch", "start_date", "end_date", "notes", "created_at", "updated_at",
	"student_name", "student_email", "course_name", "course_price", "total_paid", "payment_count"}

func TestEnrollmentRepositoryListReconcilesBalances(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(enrollmentDetailColumns).
		AddRow("enr-1", "stu-1", "crs-1", "ACTIVE", "2026-A", now, nil, "", now, now, "Ana", "ana@example.com", "Welding", "1000.00", "400.00", 1).
		AddRow("enr-2", "stu-1", "crs-2", "COMPLETED", "2026-A", now, nil, "", now, now, "Ana", "ana@example.com", "Sewing", "500.00", "500.00", 2)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.student_id = $1 AND e.status = $2 ORDER BY e.created_at DESC LIMIT 10 OFFSET 0")).
		WithArgs("stu-1", models.EnrollmentStatusActive).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e")).
		WithArgs("stu-1", models.EnrollmentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{StudentID: "stu-1", Status: models.EnrollmentStatusActive})
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	assert.Equal(t, 2, total)
	assert.Equal(t, "600", enrollments[0].Balance.Outstanding.String())
	assert.False(t, enrollments[0].Balance.IsFullyPaid)
	assert.True(t, enrollments[1].Balance.IsFullyPaid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLockForPayment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM enrollments WHERE id = $1 FOR UPDATE")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "status"}).
			AddRow("enr-1", "stu-1", "crs-1", "ACTIVE"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT c.price AS course_price")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_price", "total_paid"}).AddRow("1000.00", "400.00"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	lock, err := repo.LockForPayment(context.Background(), tx, "enr-1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	balance := lock.Balance()
	assert.Equal(t, "600", balance.Outstanding.String())
	assert.Equal(t, "stu-1", lock.StudentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLockForPaymentMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	_, err = repo.LockForPayment(context.Background(), tx, "nope")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLockByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE course_id = $1 ORDER BY id FOR UPDATE")).
		WithArgs("crs-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "status"}).
			AddRow("enr-1", "stu-1", "crs-1", "COMPLETED").
			AddRow("enr-2", "stu-2", "crs-1", "ACTIVE"))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY p.enrollment_id")).
		WithArgs("crs-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "total_paid"}).AddRow("enr-1", "1000.00"))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	locks, err := repo.LockByCourse(context.Background(), tx, "crs-1")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	require.Len(t, locks, 2)
	assert.Equal(t, "1000", locks[0].TotalPaid.String())
	assert.Equal(t, models.EnrollmentStatusCompleted, locks[0].Status)
	assert.True(t, locks[1].TotalPaid.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryLockByCourseEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("FOR UPDATE").
		WithArgs("crs-9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "status"}))

	locks, err := repo.LockByCourse(context.Background(), db, "crs-9")
	require.NoError(t, err)
	assert.Empty(t, locks)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(models.EnrollmentStatusCompleted, sqlmock.AnyArg(), "enr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), nil, "enr-1", models.EnrollmentStatusCompleted))
	assert.NoError(t, mock.ExpectationsWereMet())
}
