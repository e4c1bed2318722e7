package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-admin-api/internal/models"
)

const enrollmentDetailFrom = `FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id
        LEFT JOIN (SELECT enrollment_id, SUM(amount) AS total_paid, COUNT(*) AS payment_count FROM payments GROUP BY enrollment_id) pt ON pt.enrollment_id = e.id`

const enrollmentDetailSelect = `SELECT e.id, e.student_id, e.course_id, e.status, e.batch, e.start_date, e.end_date, e.notes, e.created_at, e.updated_at,
        s.name AS student_name, s.email AS student_email, c.name AS course_name, c.price AS course_price,
        COALESCE(pt.total_paid, 0) AS total_paid, COALESCE(pt.payment_count, 0) AS payment_count
        ` + enrollmentDetailFrom

// EnrollmentRepository manages enrollment persistence.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with their balances.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var (
		args       []interface{}
		conditions []string
	)
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Batch != "" {
		conditions = append(conditions, fmt.Sprintf("e.batch = $%d", len(args)+1))
		args = append(args, filter.Batch)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(c.name) LIKE $%d)", idx, idx))
		args = append(args, likePattern(filter.Search))
	}
	filterSQL := where(conditions)

	order := orderClause(map[string]string{
		"start_date":   "e.start_date",
		"created_at":   "e.created_at",
		"student_name": "s.name",
		"course_name":  "c.name",
	}, filter.SortBy, "created_at", filter.SortOrder)
	_, limit, offset := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", enrollmentDetailSelect, filterSQL, order, limit, offset)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}
	reconcileAll(enrollments)

	countQuery := `SELECT COUNT(*) FROM enrollments e JOIN students s ON s.id = e.student_id JOIN courses c ON c.id = e.course_id` + filterSQL
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// ListByStudent returns every enrollment of a student with its balance.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.student_id = $1 ORDER BY e.start_date DESC"
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	reconcileAll(enrollments)
	return enrollments, nil
}

// FindDetail loads an enrollment with student, course and balance information.
func (r *EnrollmentRepository) FindDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+" WHERE e.id = $1", id); err != nil {
		return nil, err
	}
	detail.Reconcile()
	return &detail, nil
}

// FindByID loads the raw enrollment row.
func (r *EnrollmentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, status, batch, start_date, end_date, notes, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// LockForPayment takes a row lock on the enrollment and then reads the course
// price and payment sum. The reads run as a separate statement so they observe
// writes committed by any transaction that held the lock before.
func (r *EnrollmentRepository) LockForPayment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentLock, error) {
	const lockQuery = `SELECT id, student_id, course_id, status FROM enrollments WHERE id = $1 FOR UPDATE`
	var lock models.EnrollmentLock
	if err := sqlx.GetContext(ctx, exec, &lock, lockQuery, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}
	const totalsQuery = `SELECT c.price AS course_price,
        COALESCE((SELECT SUM(p.amount) FROM payments p WHERE p.enrollment_id = e.id), 0) AS total_paid
        FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE e.id = $1`
	if err := sqlx.GetContext(ctx, exec, &lock, totalsQuery, id); err != nil {
		return nil, fmt.Errorf("sum enrollment payments: %w", err)
	}
	return &lock, nil
}

// LockByCourse locks every enrollment of a course in id order and reads the
// amount paid on each. CoursePrice is left for the caller to set.
func (r *EnrollmentRepository) LockByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) ([]models.EnrollmentLock, error) {
	const lockQuery = `SELECT id, student_id, course_id, status FROM enrollments WHERE course_id = $1 ORDER BY id FOR UPDATE`
	var locks []models.EnrollmentLock
	if err := sqlx.SelectContext(ctx, exec, &locks, lockQuery, courseID); err != nil {
		return nil, fmt.Errorf("lock course enrollments: %w", err)
	}
	if len(locks) == 0 {
		return locks, nil
	}
	const totalsQuery = `SELECT p.enrollment_id AS id, SUM(p.amount) AS total_paid
        FROM payments p JOIN enrollments e ON e.id = p.enrollment_id
        WHERE e.course_id = $1 GROUP BY p.enrollment_id`
	var totals []struct {
		ID        string          `db:"id"`
		TotalPaid decimal.Decimal `db:"total_paid"`
	}
	if err := sqlx.SelectContext(ctx, exec, &totals, totalsQuery, courseID); err != nil {
		return nil, fmt.Errorf("sum course enrollment payments: %w", err)
	}
	paid := make(map[string]decimal.Decimal, len(totals))
	for _, total := range totals {
		paid[total.ID] = total.TotalPaid
	}
	for i := range locks {
		locks[i].TotalPaid = paid[locks[i].ID]
	}
	return locks, nil
}

// ExistsOpen reports whether the student has an ACTIVE or SUSPENDED enrollment in the course.
func (r *EnrollmentRepository) ExistsOpen(ctx context.Context, exec sqlx.ExtContext, studentID, courseID, excludeID string) (bool, error) {
	query := `SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status IN ('ACTIVE', 'SUSPENDED')`
	args := []interface{}{studentID, courseID}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var found int
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &found, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return true, nil
}

// Create inserts an enrollment.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	now := time.Now().UTC()
	if enrollment.StartDate.IsZero() {
		enrollment.StartDate = now
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, course_id, status, batch, start_date, end_date, notes, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :batch, :start_date, :end_date, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update modifies an enrollment.
func (r *EnrollmentRepository) Update(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET course_id = :course_id, status = :status, batch = :batch, start_date = :start_date,
        end_date = :end_date, notes = :notes, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return expectAffected(result, "update enrollment")
}

// UpdateStatus sets the status of an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := pick(r.db, exec).ExecContext(ctx, query, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return expectAffected(result, "update enrollment status")
}

// Delete removes an enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return expectAffected(result, "delete enrollment")
}

// CountPayments returns the number of payments recorded on an enrollment.
func (r *EnrollmentRepository) CountPayments(ctx context.Context, id string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM payments WHERE enrollment_id = $1`, id); err != nil {
		return 0, fmt.Errorf("count enrollment payments: %w", err)
	}
	return count, nil
}

func reconcileAll(enrollments []models.EnrollmentDetail) {
	for i := range enrollments {
		enrollments[i].Reconcile()
	}
}
