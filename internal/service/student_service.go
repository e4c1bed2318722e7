package service

import (
	"context"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/course-admin-api/internal/models"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentListItem, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, exec sqlx.ExtContext, email, excludeID string) (bool, error)
	ExistsByNationalID(ctx context.Context, exec sqlx.ExtContext, nationalID, excludeID string) (bool, error)
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	AppendDocuments(ctx context.Context, id string, paths []string) ([]string, error)
	RemoveDocument(ctx context.Context, id, path string) ([]string, error)
	Delete(ctx context.Context, id string) error
	CountDependents(ctx context.Context, id string) (int, error)
}

type studentEnrollmentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
}

type studentPaymentReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
}

type documentManager interface {
	Store(ctx context.Context, ownerID string, files []*multipart.FileHeader) ([]string, error)
	Discard(ctx context.Context, paths []string)
	Link(ctx context.Context, ownerID, relPath string) (*DocumentLink, error)
}

// StudentRequest holds the payload for creating or updating students.
type StudentRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Phone       string `json:"phone" validate:"required,min=7,max=20,phone"`
	NationalID  string `json:"nationalId" validate:"omitempty,max=30"`
	Address     string `json:"address" validate:"max=500"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Notes       string `json:"notes" validate:"max=2000"`
}

// apply copies the request onto student, normalising email and optional fields.
func (r StudentRequest) apply(student *models.Student) {
	student.Name = strings.TrimSpace(r.Name)
	student.Email = normalizeEmail(r.Email)
	student.Phone = strings.TrimSpace(r.Phone)
	student.NationalID = optionalString(r.NationalID)
	student.Address = strings.TrimSpace(r.Address)
	student.Notes = strings.TrimSpace(r.Notes)
	student.DateOfBirth = nil
	if r.DateOfBirth != "" {
		if dob, err := time.Parse("2006-01-02", r.DateOfBirth); err == nil {
			student.DateOfBirth = &dob
		}
	}
}

// StudentService handles student use-cases.
type StudentService struct {
	repo        studentRepository
	enrollments studentEnrollmentReader
	payments    studentPaymentReader
	documents   documentManager
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// StudentServiceParams groups constructor dependencies.
type StudentServiceParams struct {
	Repo        studentRepository
	Enrollments studentEnrollmentReader
	Payments    studentPaymentReader
	Documents   documentManager
	Cache       *CacheService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(params StudentServiceParams) *StudentService {
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:        params.Repo,
		enrollments: params.Enrollments,
		payments:    params.Payments,
		documents:   params.Documents,
		cache:       params.Cache,
		validator:   validate,
		logger:      logger,
	}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentListItem, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list students")
	}
	if students == nil {
		students = []models.StudentListItem{}
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns the student with every enrollment, its balance and the payments made.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student enrollments")
	}
	payments, err := s.payments.ListByStudent(ctx, id)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student payments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	return &models.StudentDetail{
		Student:     *student,
		Enrollments: enrollments,
		Payments:    payments,
		Summary:     summarize(enrollments),
	}, nil
}

// Create registers a new student.
func (s *StudentService) Create(ctx context.Context, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid student payload")
	}
	var student models.Student
	req.apply(&student)
	if err := checkStudentUnique(ctx, s.repo, nil, &student, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, nil, &student); err != nil {
		return nil, appErrors.TranslateDB(err, "student not found", "failed to create student")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("student created", zap.String("student_id", student.ID))
	return &student, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id string, req StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid student payload")
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	req.apply(student)
	if err := checkStudentUnique(ctx, s.repo, nil, student, id); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.TranslateDB(err, "student not found", "failed to update student")
	}
	invalidateDashboard(ctx, s.cache)
	return student, nil
}

// Delete removes a student without enrollments or payments, together with its documents.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	student, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	dependents, err := s.repo.CountDependents(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to check student records")
	}
	if dependents > 0 {
		return appErrors.Clone(appErrors.ErrBusinessRule, "student has enrollments or payments and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.TranslateDB(err, "student not found", "failed to delete student")
	}
	if s.documents != nil {
		s.documents.Discard(ctx, student.Documents)
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

// AddDocuments stores additional documents for a student.
func (s *StudentService) AddDocuments(ctx context.Context, id string, files []*multipart.FileHeader) (*models.Student, error) {
	if len(files) == 0 {
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "at least one document is required"), "documents", "at least one document is required")
	}
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := s.documents.Store(ctx, id, files)
	if err != nil {
		return nil, err
	}
	documents, err := s.repo.AppendDocuments(ctx, id, stored)
	if err != nil {
		s.documents.Discard(ctx, stored)
		return nil, appErrors.TranslateDB(err, "student not found", "failed to attach documents")
	}
	student.Documents = documents
	return student, nil
}

// RemoveDocument detaches and deletes the document at index.
func (s *StudentService) RemoveDocument(ctx context.Context, id string, index int) (*models.Student, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(student.Documents) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	removed := student.Documents[index]
	documents, err := s.repo.RemoveDocument(ctx, id, removed)
	if err != nil {
		return nil, appErrors.TranslateDB(err, "document not found", "failed to detach document")
	}
	s.documents.Discard(ctx, []string{removed})
	student.Documents = documents
	return student, nil
}

// DocumentLink signs a temporary download link for the document at index.
func (s *StudentService) DocumentLink(ctx context.Context, id string, index int) (*DocumentLink, error) {
	student, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(student.Documents) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	return s.documents.Link(ctx, id, student.Documents[index])
}

func (s *StudentService) load(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, appErrors.TranslateDB(err, "student not found", "failed to load student")
	}
	return student, nil
}

type studentUniquenessChecker interface {
	ExistsByEmail(ctx context.Context, exec sqlx.ExtContext, email, excludeID string) (bool, error)
	ExistsByNationalID(ctx context.Context, exec sqlx.ExtContext, nationalID, excludeID string) (bool, error)
}

// checkStudentUnique reports field-specific conflicts for email and national ID.
func checkStudentUnique(ctx context.Context, repo studentUniquenessChecker, exec sqlx.ExtContext, student *models.Student, excludeID string) error {
	if student.NationalID != nil {
		exists, err := repo.ExistsByNationalID(ctx, exec, *student.NationalID, excludeID)
		if err != nil {
			return appErrors.Internal(err, "failed to validate national ID")
		}
		if exists {
			return appErrors.WithField(appErrors.Clone(appErrors.ErrConflict, "national ID already registered"), "nationalId", "national ID already registered")
		}
	}
	exists, err := repo.ExistsByEmail(ctx, exec, student.Email, excludeID)
	if err != nil {
		return appErrors.Internal(err, "failed to validate email")
	}
	if exists {
		return appErrors.WithField(appErrors.Clone(appErrors.ErrConflict, "email already registered"), "email", "email already registered")
	}
	return nil
}

// summarize totals the balances of every enrollment that is not cancelled.
func summarize(enrollments []models.EnrollmentDetail) models.BalanceTotals {
	var totals models.BalanceTotals
	for _, enrollment := range enrollments {
		if enrollment.Status == models.EnrollmentStatusCancelled {
			continue
		}
		totals.Include(enrollment.Balance)
	}
	return totals
}
