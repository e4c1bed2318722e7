package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-admin-api/internal/dto"
	"github.com/noah-isme/course-admin-api/internal/models"
)

// DashboardRepository runs the read-only aggregate queries behind the dashboard.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Counts returns the headline counters.
func (r *DashboardRepository) Counts(ctx context.Context) (*dto.DashboardCounts, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students) AS total_students,
        (SELECT COUNT(*) FROM courses) AS total_courses,
        (SELECT COUNT(*) FROM courses WHERE is_active) AS active_courses,
        (SELECT COUNT(*) FROM enrollments) AS total_enrollments,
        (SELECT COUNT(*) FROM enrollments WHERE status = 'ACTIVE') AS active_enrollments,
        (SELECT COUNT(*) FROM enrollments WHERE status = 'COMPLETED') AS completed_enrollments,
        (SELECT COUNT(*) FROM payments) AS total_payments`
	var counts dto.DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	return &counts, nil
}

// OpenBalances returns every non-cancelled enrollment with its paid total.
func (r *DashboardRepository) OpenBalances(ctx context.Context) ([]models.EnrollmentDetail, error) {
	query := enrollmentDetailSelect + " WHERE e.status <> 'CANCELLED'"
	var rows []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("dashboard open balances: %w", err)
	}
	reconcileAll(rows)
	return rows, nil
}

// RevenueSince sums payments dated on or after since.
func (r *DashboardRepository) RevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE payment_date >= $1`, since); err != nil {
		return decimal.Zero, fmt.Errorf("dashboard revenue: %w", err)
	}
	return total, nil
}

// RecentPayments returns the latest payments.
func (r *DashboardRepository) RecentPayments(ctx context.Context, limit int) ([]models.PaymentDetail, error) {
	query := fmt.Sprintf("%s ORDER BY p.payment_date DESC, p.created_at DESC LIMIT %d", paymentDetailSelect, limit)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("dashboard recent payments: %w", err)
	}
	return payments, nil
}

// EnrollmentsByStatus counts enrollments per status.
func (r *DashboardRepository) EnrollmentsByStatus(ctx context.Context) ([]dto.StatusCount, error) {
	var rows []dto.StatusCount
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM enrollments GROUP BY status ORDER BY status`); err != nil {
		return nil, fmt.Errorf("dashboard enrollments by status: %w", err)
	}
	return rows, nil
}

// EnrollmentsByCourse counts enrollments per course, busiest first.
func (r *DashboardRepository) EnrollmentsByCourse(ctx context.Context) ([]dto.CourseEnrollmentCount, error) {
	const query = `SELECT c.id AS course_id, c.name AS course_name, COUNT(e.id) AS total,
        COUNT(e.id) FILTER (WHERE e.status = 'ACTIVE') AS active
        FROM courses c LEFT JOIN enrollments e ON e.course_id = c.id
        GROUP BY c.id, c.name ORDER BY total DESC, c.name ASC`
	var rows []dto.CourseEnrollmentCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("dashboard enrollments by course: %w", err)
	}
	return rows, nil
}

// EnrollmentsByBatch counts enrollments per batch label.
func (r *DashboardRepository) EnrollmentsByBatch(ctx context.Context) ([]dto.BatchCount, error) {
	const query = `SELECT batch, COUNT(*) AS count FROM enrollments WHERE batch <> '' GROUP BY batch ORDER BY batch`
	var rows []dto.BatchCount
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("dashboard enrollments by batch: %w", err)
	}
	return rows, nil
}

// MonthlyEnrollments buckets enrollments by start month.
func (r *DashboardRepository) MonthlyEnrollments(ctx context.Context, since time.Time) ([]dto.MonthlyCount, error) {
	return r.monthlyCounts(ctx, "enrollments", "start_date", since)
}

// MonthlyRegistrations buckets students by creation month.
func (r *DashboardRepository) MonthlyRegistrations(ctx context.Context, since time.Time) ([]dto.MonthlyCount, error) {
	return r.monthlyCounts(ctx, "students", "created_at", since)
}

func (r *DashboardRepository) monthlyCounts(ctx context.Context, table, column string, since time.Time) ([]dto.MonthlyCount, error) {
	query := fmt.Sprintf(`SELECT to_char(date_trunc('month', %[2]s), 'YYYY-MM') AS month, COUNT(*) AS count
        FROM %[1]s WHERE %[2]s >= $1 GROUP BY 1 ORDER BY 1`, table, column)
	var rows []dto.MonthlyCount
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("dashboard monthly %s: %w", table, err)
	}
	return rows, nil
}

// PaymentsByMethod aggregates payments per method.
func (r *DashboardRepository) PaymentsByMethod(ctx context.Context) ([]dto.MethodTotal, error) {
	const query = `SELECT method, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount FROM payments GROUP BY method ORDER BY amount DESC`
	var rows []dto.MethodTotal
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("dashboard payments by method: %w", err)
	}
	return rows, nil
}

// MonthlyRevenue buckets payments by payment month.
func (r *DashboardRepository) MonthlyRevenue(ctx context.Context, since time.Time) ([]dto.MonthlyAmount, error) {
	const query = `SELECT to_char(date_trunc('month', payment_date), 'YYYY-MM') AS month, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount
        FROM payments WHERE payment_date >= $1 GROUP BY 1 ORDER BY 1`
	var rows []dto.MonthlyAmount
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, fmt.Errorf("dashboard monthly revenue: %w", err)
	}
	return rows, nil
}

// StudentCounts returns student level counters.
func (r *DashboardRepository) StudentCounts(ctx context.Context, monthStart time.Time) (*dto.StudentCounts, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM students) AS total,
        (SELECT COUNT(*) FROM students WHERE created_at >= $1) AS new_this_month,
        (SELECT COUNT(*) FROM students s WHERE NOT EXISTS (SELECT 1 FROM enrollments e WHERE e.student_id = s.id)) AS without_enrollment`
	var counts dto.StudentCounts
	if err := r.db.GetContext(ctx, &counts, query, monthStart); err != nil {
		return nil, fmt.Errorf("dashboard student counts: %w", err)
	}
	return &counts, nil
}

// RecentStudents returns the latest registered students.
func (r *DashboardRepository) RecentStudents(ctx context.Context, limit int) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s ORDER BY s.created_at DESC LIMIT %d", studentColumns, limit)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("dashboard recent students: %w", err)
	}
	return students, nil
}
