package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-admin-api/internal/models"
	"github.com/noah-isme/course-admin-api/pkg/database"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error)
	ExistsOpen(ctx context.Context, exec sqlx.ExtContext, studentID, courseID, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	Update(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus) error
	LockForPayment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentLock, error)
	Delete(ctx context.Context, id string) error
	CountPayments(ctx context.Context, id string) (int, error)
}

type enrollmentCreator interface {
	ExistsOpen(ctx context.Context, exec sqlx.ExtContext, studentID, courseID, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error
}

type courseFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseListItem, error)
}

type studentFinder interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
}

type enrollmentPaymentReader interface {
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error)
}

// EnrollmentFields are the enrollment attributes shared by the standalone and
// composite creation payloads.
type EnrollmentFields struct {
	CourseID  string                  `json:"courseId" validate:"required"`
	Status    models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=ACTIVE COMPLETED CANCELLED SUSPENDED"`
	Batch     string                  `json:"batch" validate:"max=50"`
	StartDate string                  `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string                  `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Notes     string                  `json:"notes" validate:"max=2000"`
}

// EnrollmentRequest creates an enrollment for an existing student.
type EnrollmentRequest struct {
	StudentID string `json:"studentId" validate:"required"`
	EnrollmentFields
}

// EnrollmentStatusRequest changes only the status.
type EnrollmentStatusRequest struct {
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=ACTIVE COMPLETED CANCELLED SUSPENDED"`
}

// EnrollmentService coordinates enrollment workflows.
type EnrollmentService struct {
	db        database.TxBeginner
	repo      enrollmentRepository
	students  studentFinder
	courses   courseFinder
	payments  enrollmentPaymentReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// EnrollmentServiceParams groups constructor dependencies.
type EnrollmentServiceParams struct {
	DB        database.TxBeginner
	Repo      enrollmentRepository
	Students  studentFinder
	Courses   courseFinder
	Payments  enrollmentPaymentReader
	Cache     *CacheService
	Validator *validator.Validate
	Logger    *zap.Logger
}

// NewEnrollmentService constructs the enrollment service.
func NewEnrollmentService(params EnrollmentServiceParams) *EnrollmentService {
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		db:        params.DB,
		repo:      params.Repo,
		students:  params.Students,
		courses:   params.Courses,
		payments:  params.Payments,
		cache:     params.Cache,
		validator: validate,
		logger:    logger,
	}
}

// List returns enrollments with their balances.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "invalid status filter"), "status", "status is invalid")
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment with its payments and balance.
func (s *EnrollmentService) Get(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, appErrors.TranslateDB(err, "enrollment not found", "failed to load enrollment")
	}
	payments, err := s.payments.ListByEnrollment(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load enrollment payments")
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	amounts := make([]decimal.Decimal, len(payments))
	for i, payment := range payments {
		amounts[i] = payment.Amount
	}
	detail.Payments = payments
	detail.Balance = models.ComputeBalance(detail.CoursePrice, amounts)
	detail.TotalPaid = detail.Balance.TotalPaid
	return detail, nil
}

// Create enrolls an existing student into an active course.
func (s *EnrollmentService) Create(ctx context.Context, req EnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid enrollment payload")
	}
	if _, err := s.students.FindByID(ctx, nil, req.StudentID); err != nil {
		return nil, appErrors.TranslateDB(err, "student not found", "failed to load student")
	}
	enrollment, err := createEnrollment(ctx, nil, s.courses, s.repo, req.StudentID, req.EnrollmentFields)
	if err != nil {
		return nil, err
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", enrollment.StudentID),
		zap.String("course_id", enrollment.CourseID))
	return enrollment, nil
}

// Update modifies an enrollment. The course can only change while no payments
// exist; the enrollment stays locked against new payments until the update commits.
func (s *EnrollmentService) Update(ctx context.Context, id string, req EnrollmentFields) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid enrollment payload")
	}
	var enrollment *models.Enrollment
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		lock, err := s.repo.LockForPayment(ctx, tx, id)
		if err != nil {
			return err
		}
		current, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if req.CourseID != current.CourseID {
			if lock.TotalPaid.IsPositive() {
				return appErrors.WithField(appErrors.Clone(appErrors.ErrBusinessRule, "course cannot change once payments are recorded"), "courseId", "course cannot change once payments are recorded")
			}
			if _, err := activeCourse(ctx, tx, s.courses, req.CourseID); err != nil {
				return err
			}
			if err := ensureNotEnrolled(ctx, tx, s.repo, current.StudentID, req.CourseID, id); err != nil {
				return err
			}
		}
		if err := req.apply(current); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, current); err != nil {
			return err
		}
		enrollment = current
		return nil
	})
	if err != nil {
		return nil, appErrors.TranslateDB(err, "enrollment not found", "failed to update enrollment")
	}
	invalidateDashboard(ctx, s.cache)
	return enrollment, nil
}

// UpdateStatus changes the lifecycle status of an enrollment.
func (s *EnrollmentService) UpdateStatus(ctx context.Context, id string, req EnrollmentStatusRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid status payload")
	}
	enrollment, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, appErrors.TranslateDB(err, "enrollment not found", "failed to load enrollment")
	}
	if enrollment.Status == req.Status {
		return enrollment, nil
	}
	if err := s.repo.UpdateStatus(ctx, nil, id, req.Status); err != nil {
		return nil, appErrors.TranslateDB(err, "enrollment not found", "failed to update enrollment status")
	}
	s.logger.Info("enrollment status changed",
		zap.String("enrollment_id", id),
		zap.String("from", string(enrollment.Status)),
		zap.String("to", string(req.Status)))
	enrollment.Status = req.Status
	invalidateDashboard(ctx, s.cache)
	return enrollment, nil
}

// Delete removes an enrollment that has no payments.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, nil, id); err != nil {
		return appErrors.TranslateDB(err, "enrollment not found", "failed to load enrollment")
	}
	count, err := s.repo.CountPayments(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to check enrollment payments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrBusinessRule, "enrollment has payments and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.TranslateDB(err, "enrollment not found", "failed to delete enrollment")
	}
	invalidateDashboard(ctx, s.cache)
	return nil
}

// createEnrollment inserts an enrollment for studentID after checking the
// course is active and the student is not already enrolled in it.
func createEnrollment(ctx context.Context, exec sqlx.ExtContext, courses courseFinder, repo enrollmentCreator, studentID string, fields EnrollmentFields) (*models.Enrollment, error) {
	if _, err := activeCourse(ctx, exec, courses, fields.CourseID); err != nil {
		return nil, err
	}
	if err := ensureNotEnrolled(ctx, exec, repo, studentID, fields.CourseID, ""); err != nil {
		return nil, err
	}
	enrollment := &models.Enrollment{StudentID: studentID, Status: models.EnrollmentStatusActive}
	if err := fields.apply(enrollment); err != nil {
		return nil, err
	}
	if err := repo.Create(ctx, exec, enrollment); err != nil {
		return nil, appErrors.TranslateDB(err, "enrollment not found", "failed to create enrollment")
	}
	return enrollment, nil
}

func activeCourse(ctx context.Context, exec sqlx.ExtContext, courses courseFinder, courseID string) (*models.CourseListItem, error) {
	course, err := courses.FindByID(ctx, exec, courseID)
	if err != nil {
		appErr := appErrors.TranslateDB(err, "course not found", "failed to load course")
		if appErr.Code == appErrors.ErrNotFound.Code {
			appErr = appErrors.WithField(appErr, "courseId", "course not found")
		}
		return nil, appErr
	}
	if !course.IsActive {
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrBusinessRule, "course is not active"), "courseId", "course is not active")
	}
	return course, nil
}

type openEnrollmentChecker interface {
	ExistsOpen(ctx context.Context, exec sqlx.ExtContext, studentID, courseID, excludeID string) (bool, error)
}

func ensureNotEnrolled(ctx context.Context, exec sqlx.ExtContext, repo openEnrollmentChecker, studentID, courseID, excludeID string) error {
	exists, err := repo.ExistsOpen(ctx, exec, studentID, courseID, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to check existing enrollments")
	}
	if exists {
		return appErrors.WithField(appErrors.Clone(appErrors.ErrBusinessRule, "student is already enrolled in this course"), "courseId", "student is already enrolled in this course")
	}
	return nil
}

// apply copies the fields onto enrollment. Dates were format-checked by the validator.
func (f EnrollmentFields) apply(enrollment *models.Enrollment) error {
	enrollment.CourseID = f.CourseID
	if f.Status != "" {
		enrollment.Status = f.Status
	}
	enrollment.Batch = strings.TrimSpace(f.Batch)
	enrollment.Notes = strings.TrimSpace(f.Notes)
	if f.StartDate != "" {
		start, _ := time.Parse(dateLayout, f.StartDate)
		enrollment.StartDate = start
	}
	enrollment.EndDate = nil
	if f.EndDate != "" {
		end, _ := time.Parse(dateLayout, f.EndDate)
		enrollment.EndDate = &end
	}
	if enrollment.EndDate != nil && !enrollment.StartDate.IsZero() && enrollment.EndDate.Before(enrollment.StartDate) {
		return appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "end date must not be before start date"), "endDate", "endDate must not be before startDate")
	}
	return nil
}
