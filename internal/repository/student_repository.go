package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-admin-api/internal/models"
)

const studentColumns = `s.id, s.name, s.email, s.phone, s.national_id, s.address, s.date_of_birth, s.notes, s.documents, s.created_at, s.updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.StudentListItem, int, error) {
	var (
		args       []interface{}
		conditions []string
	)
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.name) LIKE $%d OR LOWER(s.email) LIKE $%d OR s.phone LIKE $%d OR LOWER(COALESCE(s.national_id, '')) LIKE $%d)", idx, idx, idx, idx))
		args = append(args, likePattern(filter.Search))
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments fe WHERE fe.student_id = s.id AND fe.course_id = $%d)", len(args)+1))
		args = append(args, filter.CourseID)
	}
	filterSQL := where(conditions)

	order := orderClause(map[string]string{
		"name":       "s.name",
		"email":      "s.email",
		"created_at": "s.created_at",
	}, filter.SortBy, "created_at", filter.SortOrder)
	_, limit, offset := models.NormalizePage(filter.Page, filter.PageSize)

	query := fmt.Sprintf(`SELECT %s,
        (SELECT COUNT(*) FROM enrollments e WHERE e.student_id = s.id) AS enrollment_count
        FROM students s%s ORDER BY %s LIMIT %d OFFSET %d`, studentColumns, filterSQL, order, limit, offset)

	var students []models.StudentListItem
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM students s"+filterSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.id = $1", studentColumns)
	var student models.Student
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByEmail checks if a student with the given email exists, optionally excluding an ID.
func (r *StudentRepository) ExistsByEmail(ctx context.Context, exec sqlx.ExtContext, email, excludeID string) (bool, error) {
	return r.exists(ctx, exec, "LOWER(email) = LOWER($1)", email, excludeID)
}

// ExistsByNationalID checks if a student with the given national ID exists, optionally excluding an ID.
func (r *StudentRepository) ExistsByNationalID(ctx context.Context, exec sqlx.ExtContext, nationalID, excludeID string) (bool, error) {
	return r.exists(ctx, exec, "national_id = $1", nationalID, excludeID)
}

func (r *StudentRepository) exists(ctx context.Context, exec sqlx.ExtContext, condition, value, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE " + condition
	args := []interface{}{value}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var found int
	if err := sqlx.GetContext(ctx, pick(r.db, exec), &found, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check student uniqueness: %w", err)
	}
	return true, nil
}

// RegisteredEmails returns the subset of emails that already belong to a student, lowercased.
func (r *StudentRepository) RegisteredEmails(ctx context.Context, emails []string) (map[string]struct{}, error) {
	result := make(map[string]struct{})
	if len(emails) == 0 {
		return result, nil
	}
	lowered := make([]string, len(emails))
	for i, email := range emails {
		lowered[i] = strings.ToLower(strings.TrimSpace(email))
	}
	var found []string
	if err := r.db.SelectContext(ctx, &found, "SELECT LOWER(email) FROM students WHERE LOWER(email) = ANY($1)", pq.Array(lowered)); err != nil {
		return nil, fmt.Errorf("lookup registered emails: %w", err)
	}
	for _, email := range found {
		result[email] = struct{}{}
	}
	return result, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, exec sqlx.ExtContext, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.Documents == nil {
		student.Documents = pq.StringArray{}
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, name, email, phone, national_id, address, date_of_birth, notes, documents, created_at, updated_at)
        VALUES (:id, :name, :email, :phone, :national_id, :address, :date_of_birth, :notes, :documents, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, pick(r.db, exec), query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET name = :name, email = :email, phone = :phone, national_id = :national_id, address = :address,
        date_of_birth = :date_of_birth, notes = :notes, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return expectAffected(result, "update student")
}

// AppendDocuments adds paths after the stored documents of a student and
// returns the resulting list.
func (r *StudentRepository) AppendDocuments(ctx context.Context, id string, paths []string) ([]string, error) {
	const query = `UPDATE students SET documents = documents || $1::text[], updated_at = $2 WHERE id = $3 RETURNING documents`
	var documents pq.StringArray
	if err := r.db.QueryRowxContext(ctx, query, pq.StringArray(paths), time.Now().UTC(), id).Scan(&documents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("append student documents: %w", err)
	}
	return documents, nil
}

// RemoveDocument drops path from the documents of a student and returns the
// resulting list. sql.ErrNoRows means the student does not hold path.
func (r *StudentRepository) RemoveDocument(ctx context.Context, id, path string) ([]string, error) {
	const query = `UPDATE students SET documents = array_remove(documents, $1), updated_at = $2
        WHERE id = $3 AND $1 = ANY(documents) RETURNING documents`
	var documents pq.StringArray
	if err := r.db.QueryRowxContext(ctx, query, path, time.Now().UTC(), id).Scan(&documents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("remove student document: %w", err)
	}
	return documents, nil
}

// Delete removes a student. Foreign keys block the delete while enrollments or payments remain.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return expectAffected(result, "delete student")
}

// CountDependents returns how many enrollments and payments reference the student.
func (r *StudentRepository) CountDependents(ctx context.Context, id string) (int, error) {
	const query = `SELECT (SELECT COUNT(*) FROM enrollments WHERE student_id = $1) + (SELECT COUNT(*) FROM payments WHERE student_id = $1)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count student dependents: %w", err)
	}
	return count, nil
}

func expectAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
