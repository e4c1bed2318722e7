package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-admin-api/internal/models"
)

const paymentColumns = `p.id, p.student_id, p.enrollment_id, p.amount, p.method, p.payment_date, p.notes, p.created_at, p.updated_at`

const paymentDetailSelect = `SELECT ` + paymentColumns + `,
        s.name AS student_name, s.email AS student_email, e.course_id, c.name AS course_name, e.batch
        FROM payments p
        JOIN students s ON s.id = p.student_id
        JOIN enrollments e ON e.id = p.enrollment_id
        JOIN courses c ON c.id = e.course_id`

// PaymentRepository persists payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// List returns payments matching the filter, newest first by default.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	var (
		args       []interface{}
		conditions []string
	)
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.Method != "" {
		conditions = append(conditions, fmt.Sprintf("p.method = $%d", len(args)+1))
		args = append(args, filter.Method)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("p.payment_date <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	filterSQL := where(conditions)

	order := orderClause(map[string]string{
		"payment_date": "p.payment_date",
		"amount":       "p.amount",
		"created_at":   "p.created_at",
	}, filter.SortBy, "payment_date", filter.SortOrder)
	_, limit, offset := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", paymentDetailSelect, filterSQL, order, limit, offset)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM payments p"+filterSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// FindDetail loads a payment with student and course context.
func (r *PaymentRepository) FindDetail(ctx context.Context, id string) (*models.PaymentDetail, error) {
	var payment models.PaymentDetail
	if err := r.db.GetContext(ctx, &payment, paymentDetailSelect+" WHERE p.id = $1", id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByID loads the raw payment row.
func (r *PaymentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments p WHERE p.id = $1", paymentColumns)
	var payment models.Payment
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByEnrollment returns the payments of one enrollment ordered by date.
func (r *PaymentRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments p WHERE p.enrollment_id = $1 ORDER BY p.payment_date ASC", paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment payments: %w", err)
	}
	return payments, nil
}

// ListByStudent returns every payment of a student, newest first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments p WHERE p.student_id = $1 ORDER BY p.payment_date DESC", paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student payments: %w", err)
	}
	return payments, nil
}

// Create inserts a payment.
func (r *PaymentRepository) Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = now
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, student_id, enrollment_id, amount, method, payment_date, notes, created_at, updated_at)
        VALUES (:id, :student_id, :enrollment_id, :amount, :method, :payment_date, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// Update modifies amount, method, date and notes of a payment.
func (r *PaymentRepository) Update(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET amount = :amount, method = :method, payment_date = :payment_date, notes = :notes,
        updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, payment)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return expectAffected(result, "update payment")
}

// Delete removes a payment.
func (r *PaymentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	result, err := pick(r.db, exec).ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return expectAffected(result, "delete payment")
}
