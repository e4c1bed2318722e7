package errors

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
)

// Postgres SQLSTATE codes surfaced by lib/pq.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

type constraintMessage struct {
	field   string
	message string
}

// constraintMessages maps schema constraint names to user-facing messages.
var constraintMessages = map[string]constraintMessage{
	"students_email_key":          {field: "email", message: "email already registered"},
	"students_national_id_key":    {field: "nationalId", message: "national ID already registered"},
	"courses_name_lower_key":      {field: "name", message: "course name already exists"},
	"enrollments_student_id_fkey": {field: "studentId", message: "student not found"},
	"enrollments_course_id_fkey":  {field: "courseId", message: "course not found"},
	"payments_student_id_fkey":    {field: "studentId", message: "student not found"},
	"payments_enrollment_id_fkey": {field: "enrollmentId", message: "enrollment not found"},
	"payments_amount_check":       {field: "amount", message: "amount must be greater than zero"},
	"courses_price_check":         {field: "price", message: "price must not be negative"},
}

// IsUniqueViolation reports whether err is a postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation
}

// TranslateDB maps database driver errors onto typed errors. sql.ErrNoRows
// becomes notFound, unique violations become field-specific conflicts, and
// foreign key violations become business-rule or not-found errors depending
// on the statement. Errors that are already typed pass through. Anything else
// is reported as internal with fallback as message.
func TranslateDB(err error, notFound string, fallback string) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, sql.ErrNoRows) {
		return Clone(ErrNotFound, notFound)
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return Internal(err, fallback)
	}
	known, hasKnown := constraintMessages[pqErr.Constraint]
	switch string(pqErr.Code) {
	case pqUniqueViolation:
		if hasKnown {
			return WithField(Wrap(err, ErrConflict.Code, ErrConflict.Status, known.message), known.field, known.message)
		}
		return Wrap(err, ErrConflict.Code, ErrConflict.Status, ErrConflict.Message)
	case pqForeignKeyViolation:
		if hasKnown && isMissingParent(pqErr) {
			return WithField(Wrap(err, ErrNotFound.Code, ErrNotFound.Status, known.message), known.field, known.message)
		}
		return Wrap(err, ErrBusinessRule.Code, ErrBusinessRule.Status, "record is referenced by other records")
	case pqCheckViolation:
		if hasKnown {
			return WithField(Wrap(err, ErrValidation.Code, ErrValidation.Status, known.message), known.field, known.message)
		}
		return Wrap(err, ErrValidation.Code, ErrValidation.Status, ErrValidation.Message)
	}
	return Internal(err, fallback)
}

// isMissingParent distinguishes an insert referencing an absent row from a
// delete blocked by dependents.
func isMissingParent(pqErr *pq.Error) bool {
	return strings.Contains(pqErr.Detail, "is not present in table")
}
