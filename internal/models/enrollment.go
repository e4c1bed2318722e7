package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted EnrollmentStatus = "COMPLETED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
	EnrollmentStatusSuspended EnrollmentStatus = "SUSPENDED"
)

// EnrollmentStatuses lists every status in display order.
var EnrollmentStatuses = []EnrollmentStatus{
	EnrollmentStatusActive,
	EnrollmentStatusCompleted,
	EnrollmentStatusCancelled,
	EnrollmentStatusSuspended,
}

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	for _, known := range EnrollmentStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Enrollment binds a student to a course.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"studentId"`
	CourseID  string           `db:"course_id" json:"courseId"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	Batch     string           `db:"batch" json:"batch"`
	StartDate time.Time        `db:"start_date" json:"startDate"`
	EndDate   *time.Time       `db:"end_date" json:"endDate,omitempty"`
	Notes     string           `db:"notes" json:"notes"`
	CreatedAt time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time        `db:"updated_at" json:"updatedAt"`
}

// EnrollmentDetail enriches Enrollment with student, course and balance info.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string          `db:"student_name" json:"studentName"`
	StudentEmail string          `db:"student_email" json:"studentEmail"`
	CourseName   string          `db:"course_name" json:"courseName"`
	CoursePrice  decimal.Decimal `db:"course_price" json:"coursePrice"`
	TotalPaid    decimal.Decimal `db:"total_paid" json:"-"`
	PaymentCount int             `db:"payment_count" json:"paymentCount"`
	Balance      Balance         `db:"-" json:"balance"`
	Payments     []Payment       `db:"-" json:"payments,omitempty"`
}

// Reconcile fills Balance from the aggregated columns.
func (d *EnrollmentDetail) Reconcile() {
	d.Balance = BalanceFromTotal(d.CoursePrice, d.TotalPaid)
}

// EnrollmentLock is the row read under FOR UPDATE before a payment write.
type EnrollmentLock struct {
	ID          string           `db:"id"`
	StudentID   string           `db:"student_id"`
	CourseID    string           `db:"course_id"`
	Status      EnrollmentStatus `db:"status"`
	CoursePrice decimal.Decimal  `db:"course_price"`
	TotalPaid   decimal.Decimal  `db:"total_paid"`
}

// Balance reconciles the locked enrollment.
func (l EnrollmentLock) Balance() Balance {
	return BalanceFromTotal(l.CoursePrice, l.TotalPaid)
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Batch     string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
