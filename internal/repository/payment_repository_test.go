package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-admin-api/internal/models"
)

func TestPaymentRepositoryListDateRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE p.method = $1 AND p.payment_date >= $2 AND p.payment_date <= $3 ORDER BY p.payment_date DESC LIMIT 10 OFFSET 0")).
		WithArgs(models.PaymentMethodCash, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "enrollment_id", "amount", "method", "payment_date", "notes", "created_at", "updated_at",
			"student_name", "student_email", "course_id", "course_name", "batch"}).
			AddRow("pay-1", "stu-1", "enr-1", "250.00", "CASH", now, nil, now, now, "Ana", "ana@example.com", "crs-1", "Welding", "2026-A"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM payments p WHERE")).
		WithArgs(models.PaymentMethodCash, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	payments, total, err := repo.List(context.Background(), models.PaymentFilter{Method: models.PaymentMethodCash, From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Welding", payments[0].CourseName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryCreateInTransaction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO payments").
		WithArgs(sqlmock.AnyArg(), "stu-1", "enr-1", "400", models.PaymentMethodBankTransfer, sqlmock.AnyArg(), nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	payment := &models.Payment{StudentID: "stu-1", EnrollmentID: "enr-1", Amount: decimal.NewFromInt(400), Method: models.PaymentMethodBankTransfer}
	require.NoError(t, repo.Create(context.Background(), tx, payment))
	require.NoError(t, tx.Commit())
	assert.False(t, payment.PaymentDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
