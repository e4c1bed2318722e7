package service

import (
	"context"
	"mime/multipart"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/course-admin-api/internal/dto"
	"github.com/noah-isme/course-admin-api/internal/models"
	"github.com/noah-isme/course-admin-api/pkg/database"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
)

type registrationStudentStore interface {
	studentUniquenessChecker
	Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error
}

type registrationEnrollmentStore interface {
	enrollmentCreator
	enrollmentLocker
}

type documentStorer interface {
	Store(ctx context.Context, ownerID string, files []*multipart.FileHeader) ([]string, error)
	Discard(ctx context.Context, paths []string)
}

// RegistrationPayment is the optional payment part of a registration. An empty
// EnrollmentID targets the enrollment created in the same request.
type RegistrationPayment struct {
	EnrollmentID string `json:"enrollmentId"`
	PaymentFields
}

// RegistrationRequest creates a student with an optional enrollment, payment
// and uploaded documents.
type RegistrationRequest struct {
	Student    StudentRequest
	Enrollment *EnrollmentFields
	Payment    *RegistrationPayment
	Documents  []*multipart.FileHeader
}

// RegistrationService runs the composite student creation in one transaction.
type RegistrationService struct {
	db          database.TxBeginner
	students    registrationStudentStore
	courses     courseFinder
	enrollments registrationEnrollmentStore
	payments    paymentCreator
	documents   documentStorer
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// RegistrationServiceParams groups constructor dependencies.
type RegistrationServiceParams struct {
	DB          database.TxBeginner
	Students    registrationStudentStore
	Courses     courseFinder
	Enrollments registrationEnrollmentStore
	Payments    paymentCreator
	Documents   documentStorer
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewRegistrationService constructs the registration service.
func NewRegistrationService(params RegistrationServiceParams) *RegistrationService {
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		db:          params.DB,
		students:    params.Students,
		courses:     params.Courses,
		enrollments: params.Enrollments,
		payments:    params.Payments,
		documents:   params.Documents,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
	}
}

// Register creates the student, enrollment and payment atomically. Stored
// documents are removed again when the transaction fails.
func (s *RegistrationService) Register(ctx context.Context, req RegistrationRequest) (*dto.RegistrationResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	student := &models.Student{ID: uuid.NewString()}
	req.Student.apply(student)

	paths := []string{}
	if len(req.Documents) > 0 && s.documents != nil {
		stored, err := s.documents.Store(ctx, student.ID, req.Documents)
		if err != nil {
			return nil, err
		}
		paths = stored
	}
	student.Documents = pq.StringArray(paths)

	result := &dto.RegistrationResult{Student: student}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := checkStudentUnique(ctx, s.students, tx, student, ""); err != nil {
			return err
		}
		if err := s.students.Create(ctx, tx, student); err != nil {
			return err
		}
		if req.Enrollment != nil {
			enrollment, err := createEnrollment(ctx, tx, s.courses, s.enrollments, student.ID, *req.Enrollment)
			if err != nil {
				return err
			}
			result.Enrollment = enrollment
		}
		if req.Payment == nil {
			return nil
		}
		enrollmentID := req.Payment.EnrollmentID
		if result.Enrollment != nil && enrollmentID == "" {
			enrollmentID = result.Enrollment.ID
		}
		if result.Enrollment == nil || enrollmentID != result.Enrollment.ID {
			return appErrors.WithField(appErrors.Clone(appErrors.ErrBusinessRule, "payment must target the enrollment created for this student"), "payment.enrollmentId", "enrollment does not belong to the student")
		}
		payment, err := recordPayment(ctx, tx, s.enrollments, s.payments, enrollmentID, student.ID, req.Payment.PaymentFields)
		if err != nil {
			return err
		}
		result.Payment = payment
		return nil
	})
	if err != nil {
		if len(paths) > 0 {
			s.documents.Discard(ctx, paths)
		}
		s.logger.Warn("student registration rolled back", zap.String("email", student.Email), zap.Error(err))
		return nil, appErrors.TranslateDB(err, "record not found", "failed to register student")
	}

	invalidateDashboard(ctx, s.cache)
	fields := []zap.Field{zap.String("student_id", student.ID), zap.Int("documents", len(paths))}
	if result.Enrollment != nil {
		fields = append(fields, zap.String("enrollment_id", result.Enrollment.ID))
	}
	if result.Payment != nil {
		s.metrics.RecordPayment(string(result.Payment.Payment.Method), result.Payment.Payment.Amount.InexactFloat64())
		fields = append(fields,
			zap.String("payment_id", result.Payment.Payment.ID),
			zap.String("enrollment_status", string(result.Payment.EnrollmentStatus)))
	}
	s.logger.Info("student registered", fields...)
	return result, nil
}

func (s *RegistrationService) validate(req RegistrationRequest) error {
	if err := s.validator.Struct(req.Student); err != nil {
		return appErrors.FromValidation(err, "invalid student payload")
	}
	if req.Enrollment != nil {
		if err := s.validator.Struct(req.Enrollment); err != nil {
			return appErrors.FromValidation(err, "invalid enrollment payload")
		}
	}
	if req.Payment != nil {
		if err := s.validator.Struct(req.Payment); err != nil {
			return appErrors.FromValidation(err, "invalid payment payload")
		}
		if req.Enrollment == nil {
			return appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "a payment requires an enrollment"), "enrollment", "enrollment is required when a payment is given")
		}
	}
	return nil
}
