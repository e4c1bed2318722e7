package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-admin-api/internal/models"
	"github.com/noah-isme/course-admin-api/pkg/database"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseListItem, int, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseListItem, error)
	FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Course, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	Delete(ctx context.Context, id string) error
	CountEnrollments(ctx context.Context, id string) (int, error)
}

type courseEnrollmentLocker interface {
	LockByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]models.EnrollmentLock, error)
	enrollmentStatusWriter
}

// CourseRequest holds the payload for creating or updating courses.
type CourseRequest struct {
	Name        string          `json:"name" validate:"required,min=2,max=100"`
	Description string          `json:"description" validate:"max=2000"`
	Price       decimal.Decimal `json:"price" validate:"decimal_gte=0"`
	Duration    string          `json:"duration" validate:"max=50"`
	IsActive    *bool           `json:"isActive"`
}

// CourseService manages course use-cases.
type CourseService struct {
	db          database.TxBeginner
	repo        courseRepository
	enrollments courseEnrollmentLocker
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// CourseServiceParams groups constructor dependencies.
type CourseServiceParams struct {
	DB          database.TxBeginner
	Repo        courseRepository
	Enrollments courseEnrollmentLocker
	Cache       *CacheService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(params CourseServiceParams) *CourseService {
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		db:          params.DB,
		repo:        params.Repo,
		enrollments: params.Enrollments,
		cache:       params.Cache,
		validator:   validate,
		logger:      logger,
	}
}

// List returns courses with pagination.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseListItem, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	if courses == nil {
		courses = []models.CourseListItem{}
	}
	return courses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a course with its enrollment counters.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseListItem, error) {
	course, err := s.repo.FindByID(ctx, nil, id)
	if err != nil {
		return nil, appErrors.TranslateDB(err, "course not found", "failed to load course")
	}
	return course, nil
}

// Create adds a new course. Names are unique regardless of case.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid course payload")
	}
	course := &models.Course{IsActive: true}
	req.apply(course)
	if err := s.ensureNameAvailable(ctx, nil, course.Name, ""); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, nil, course); err != nil {
		return nil, appErrors.TranslateDB(err, "course not found", "failed to create course")
	}
	invalidateDashboard(ctx, s.cache)
	return course, nil
}

// Update modifies a course. The price cannot drop below what any enrollment
// already paid, and a price change re-evaluates which enrollments are fully paid.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid course payload")
	}
	var course models.Course
	var reopened, completed int
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		existing, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		course = *existing
		req.apply(&course)
		if !strings.EqualFold(course.Name, existing.Name) {
			if err := s.ensureNameAvailable(ctx, tx, course.Name, id); err != nil {
				return err
			}
		}
		if !course.Price.Equal(existing.Price) {
			locks, err := s.enrollments.LockByCourse(ctx, tx, id)
			if err != nil {
				return err
			}
			for i := range locks {
				if course.Price.LessThan(locks[i].TotalPaid) {
					return appErrors.WithField(appErrors.Clone(appErrors.ErrBusinessRule, "price is below the amount already paid by an enrollment"), "price", "price is below the amount already paid by an enrollment")
				}
			}
			for i := range locks {
				lock := &locks[i]
				lock.CoursePrice = course.Price
				status, err := syncEnrollmentStatus(ctx, tx, s.enrollments, lock, lock.Balance())
				if err != nil {
					return err
				}
				if status == lock.Status {
					continue
				}
				if status == models.EnrollmentStatusActive {
					reopened++
				} else {
					completed++
				}
			}
		}
		return s.repo.Update(ctx, tx, &course)
	})
	if err != nil {
		return nil, appErrors.TranslateDB(err, "course not found", "failed to update course")
	}
	invalidateDashboard(ctx, s.cache)
	if reopened > 0 || completed > 0 {
		s.logger.Info("course price change updated enrollment statuses",
			zap.String("course_id", id),
			zap.Int("reopened", reopened),
			zap.Int("completed", completed))
	}
	return &course, nil
}

// Delete removes a course that has no enrollments.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, nil, id); err != nil {
		return appErrors.TranslateDB(err, "course not found", "failed to load course")
	}
	count, err := s.repo.CountEnrollments(ctx, id)
	if err != nil {
		return appErrors.Internal(err, "failed to check course enrollments")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrBusinessRule, "course has enrollments and cannot be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.TranslateDB(err, "course not found", "failed to delete course")
	}
	invalidateDashboard(ctx, s.cache)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

func (s *CourseService) ensureNameAvailable(ctx context.Context, exec sqlx.ExtContext, name, excludeID string) error {
	found, err := s.repo.FindByName(ctx, exec, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Internal(err, "failed to validate course name")
	}
	if found.ID == excludeID {
		return nil
	}
	return appErrors.WithField(appErrors.Clone(appErrors.ErrConflict, "course name already exists"), "name", "course name already exists")
}

func (r CourseRequest) apply(course *models.Course) {
	course.Name = strings.TrimSpace(r.Name)
	course.Description = strings.TrimSpace(r.Description)
	course.Price = r.Price.Round(2)
	course.Duration = strings.TrimSpace(r.Duration)
	if r.IsActive != nil {
		course.IsActive = *r.IsActive
	}
}
