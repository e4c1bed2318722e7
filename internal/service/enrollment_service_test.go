package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-admin-api/internal/models"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
)

type enrollmentRepoStub struct {
	enrollmentStoreFake
	records  map[string]*models.Enrollment
	payments map[string]int
	deleted  []string
}

func newEnrollmentRepoStub() *enrollmentRepoStub {
	return &enrollmentRepoStub{
		enrollmentStoreFake: enrollmentStoreFake{newLedger()},
		records:             map[string]*models.Enrollment{},
		payments:            map[string]int{},
	}
}

func (s *enrollmentRepoStub) add(enrollment *models.Enrollment) {
	s.records[enrollment.ID] = enrollment
	s.enrollments[enrollment.ID] = &models.EnrollmentLock{ID: enrollment.ID, StudentID: enrollment.StudentID, CourseID: enrollment.CourseID, Status: enrollment.Status}
}

func (s *enrollmentRepoStub) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (s *enrollmentRepoStub) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	enrollment, ok := s.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *enrollment
	return &clone, nil
}

func (s *enrollmentRepoStub) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if err := s.enrollmentStoreFake.Create(ctx, exec, enrollment); err != nil {
		return err
	}
	s.records[enrollment.ID] = enrollment
	return nil
}

func (s *enrollmentRepoStub) Update(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	s.add(enrollment)
	return nil
}

func (s *enrollmentRepoStub) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus) error {
	s.records[id].Status = status
	return s.enrollmentStoreFake.UpdateStatus(ctx, exec, id, status)
}

func (s *enrollmentRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *enrollmentRepoStub) CountPayments(ctx context.Context, id string) (int, error) {
	return s.payments[id], nil
}

type paymentListStub []models.Payment

func (p paymentListStub) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	return p, nil
}

func newEnrollmentFixture(t *testing.T) (*EnrollmentService, *enrollmentRepoStub, sqlmock.Sqlmock) {
	tx, mock := newTxMock(t)
	repo := newEnrollmentRepoStub()
	courses := newCourseStore(
		&models.Course{ID: "course-1", Name: "Welding", Price: decimal.NewFromInt(1000), IsActive: true},
		&models.Course{ID: "course-2", Name: "Painting", Price: decimal.NewFromInt(500), IsActive: true},
		&models.Course{ID: "course-old", Name: "Retired", IsActive: false},
	)
	svc := NewEnrollmentService(EnrollmentServiceParams{
		DB:       tx,
		Repo:     repo,
		Students: studentFinderFake{"student-1": {ID: "student-1"}},
		Courses:  courses,
		Payments: paymentListStub{},
	})
	return svc, repo, mock
}

func TestEnrollmentServiceCreate(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture(t)

	enrollment, err := svc.Create(context.Background(), EnrollmentRequest{
		StudentID:        "student-1",
		EnrollmentFields: EnrollmentFields{CourseID: "course-1", Batch: " 2026-A ", StartDate: "2026-02-01", EndDate: "2026-05-01"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, "2026-A", enrollment.Batch)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), enrollment.StartDate)
	assert.Contains(t, repo.records, enrollment.ID)

	cases := []struct {
		name  string
		req   EnrollmentRequest
		code  string
		field string
	}{
		{name: "already enrolled", req: EnrollmentRequest{StudentID: "student-1", EnrollmentFields: EnrollmentFields{CourseID: "course-1"}}, code: appErrors.ErrBusinessRule.Code, field: "courseId"},
		{name: "inactive course", req: EnrollmentRequest{StudentID: "student-1", EnrollmentFields: EnrollmentFields{CourseID: "course-old"}}, code: appErrors.ErrBusinessRule.Code, field: "courseId"},
		{name: "unknown course", req: EnrollmentRequest{StudentID: "student-1", EnrollmentFields: EnrollmentFields{CourseID: "course-404"}}, code: appErrors.ErrNotFound.Code, field: "courseId"},
		{name: "end before start", req: EnrollmentRequest{StudentID: "student-1", EnrollmentFields: EnrollmentFields{CourseID: "course-2", StartDate: "2026-05-01", EndDate: "2026-04-01"}}, code: appErrors.ErrValidation.Code, field: "endDate"},
		{name: "bad status", req: EnrollmentRequest{StudentID: "student-1", EnrollmentFields: EnrollmentFields{CourseID: "course-2", Status: "PAUSED"}}, code: appErrors.ErrValidation.Code, field: "status"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			appErr := appErrors.FromError(err)
			require.NotNil(t, appErr)
			assert.Equal(t, tc.code, appErr.Code)
			assert.Contains(t, appErr.Fields, tc.field)
		})
	}

	_, err = svc.Create(context.Background(), EnrollmentRequest{StudentID: "student-404", EnrollmentFields: EnrollmentFields{CourseID: "course-2"}})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUpdateCourseChange(t *testing.T) {
	svc, repo, mock := newEnrollmentFixture(t)
	repo.add(&models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive, StartDate: time.Now()})
	repo.addPayment("pay-1", "enr-1", 100)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.Update(context.Background(), "enr-1", EnrollmentFields{CourseID: "course-2"})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErr.Code)
	assert.Contains(t, appErr.Fields, "courseId")
	assert.Equal(t, "course-1", repo.records["enr-1"].CourseID)

	mock.ExpectBegin()
	mock.ExpectCommit()
	updated, err := svc.Update(context.Background(), "enr-1", EnrollmentFields{CourseID: "course-1", Batch: "2026-B", Notes: "moved batch"})
	require.NoError(t, err)
	assert.Equal(t, "2026-B", updated.Batch)

	delete(repo.ledgerFake.payments, "pay-1")
	mock.ExpectBegin()
	mock.ExpectCommit()
	updated, err = svc.Update(context.Background(), "enr-1", EnrollmentFields{CourseID: "course-2"})
	require.NoError(t, err)
	assert.Equal(t, "course-2", updated.CourseID)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Update(context.Background(), "enr-404", EnrollmentFields{CourseID: "course-2"})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentServiceUpdateSeesPaymentCommittedBeforeLock(t *testing.T) {
	svc, repo, mock := newEnrollmentFixture(t)
	repo.add(&models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive})
	repo.payments["enr-1"] = 0
	repo.addPayment("pay-1", "enr-1", 50)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err := svc.Update(context.Background(), "enr-1", EnrollmentFields{CourseID: "course-2"})
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErrors.FromError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentServiceUpdateStatus(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture(t)
	repo.add(&models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive})

	enrollment, err := svc.UpdateStatus(context.Background(), "enr-1", EnrollmentStatusRequest{Status: models.EnrollmentStatusSuspended})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusSuspended, enrollment.Status)
	assert.Equal(t, models.EnrollmentStatusSuspended, repo.records["enr-1"].Status)

	_, err = svc.UpdateStatus(context.Background(), "enr-1", EnrollmentStatusRequest{Status: "DONE"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceDelete(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture(t)
	repo.add(&models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: "course-1"})
	repo.add(&models.Enrollment{ID: "enr-2", StudentID: "student-1", CourseID: "course-2"})
	repo.payments["enr-1"] = 3

	err := svc.Delete(context.Background(), "enr-1")
	assert.Equal(t, appErrors.ErrBusinessRule.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "enr-2"))
	assert.Equal(t, []string{"enr-2"}, repo.deleted)
}

func TestEnrollmentServiceGetIncludesPayments(t *testing.T) {
	svc, repo, _ := newEnrollmentFixture(t)
	repo.add(&models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: "course-1"})

	detail, err := svc.Get(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.NotNil(t, detail.Payments)

	_, _, err = svc.List(context.Background(), models.EnrollmentFilter{Status: "BOGUS"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceGetBalanceFromPayments(t *testing.T) {
	repo := newEnrollmentRepoStub()
	repo.add(&models.Enrollment{ID: "enr-1", StudentID: "student-1", CourseID: "course-1", Status: models.EnrollmentStatusActive})
	repo.enrollments["enr-1"].CoursePrice = decimal.NewFromInt(1000)
	svc := NewEnrollmentService(EnrollmentServiceParams{
		Repo: repo,
		Payments: paymentListStub{
			{ID: "pay-1", EnrollmentID: "enr-1", Amount: decimal.RequireFromString("250.50")},
			{ID: "pay-2", EnrollmentID: "enr-1", Amount: decimal.RequireFromString("149.50")},
		},
	})

	detail, err := svc.Get(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, detail.Payments, 2)
	assert.Equal(t, "400.00", detail.TotalPaid.StringFixed(2))
	assert.Equal(t, "400.00", detail.Balance.TotalPaid.StringFixed(2))
	assert.Equal(t, "600.00", detail.Balance.Outstanding.StringFixed(2))
	assert.False(t, detail.Balance.IsFullyPaid)
}
