package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-admin-api/internal/models"
)

const courseListSelect = `SELECT c.id, c.name, c.description, c.price, c.duration, c.is_active, c.created_at, c.updated_at,
        COUNT(e.id) AS enrollment_count,
        COUNT(e.id) FILTER (WHERE e.status = 'ACTIVE') AS active_enrollment_count
        FROM courses c LEFT JOIN enrollments e ON e.course_id = c.id`

const courseGroupBy = ` GROUP BY c.id`

// CourseRepository handles persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new repository instance.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns paginated courses with enrollment counters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseListItem, int, error) {
	var (
		args       []interface{}
		conditions []string
	)
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.name) LIKE $%d OR LOWER(c.description) LIKE $%d)", idx, idx))
		args = append(args, likePattern(filter.Search))
	}
	if filter.IsActive != nil {
		conditions = append(conditions, fmt.Sprintf("c.is_active = $%d", len(args)+1))
		args = append(args, *filter.IsActive)
	}
	filterSQL := where(conditions)

	order := orderClause(map[string]string{
		"name":       "c.name",
		"price":      "c.price",
		"created_at": "c.created_at",
	}, filter.SortBy, "created_at", filter.SortOrder)
	_, limit, offset := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s%s ORDER BY %s LIMIT %d OFFSET %d", courseListSelect, filterSQL, courseGroupBy, order, limit, offset)
	var courses []models.CourseListItem
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses c"+filterSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID retrieves a course with its enrollment counters.
func (r *CourseRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.CourseListItem, error) {
	query := courseListSelect + " WHERE c.id = $1" + courseGroupBy
	var course models.CourseListItem
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

const courseColumns = `id, name, description, price, duration, is_active, created_at, updated_at`

// LockByID reads a course under a row lock held until exec commits.
func (r *CourseRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 FOR UPDATE`
	var course models.Course
	if err := sqlx.GetContext(ctx, exec, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByName resolves a course by case-insensitive name.
func (r *CourseRepository) FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE LOWER(name) = LOWER($1)`
	var course models.Course
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &course, query, name); err != nil {
		return nil, err
	}
	return &course, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, name, description, price, duration, is_active, created_at, updated_at)
        VALUES (:id, :name, :description, :price, :duration, :is_active, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies a course.
func (r *CourseRepository) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, description = :description, price = :price, duration = :duration,
        is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return expectAffected(result, "update course")
}

// Delete removes a course.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return expectAffected(result, "delete course")
}

// CountEnrollments returns the number of enrollments referencing a course.
func (r *CourseRepository) CountEnrollments(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return count, nil
}
