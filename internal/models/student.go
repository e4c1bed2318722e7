package models

import (
	"time"

	"github.com/lib/pq"
)

// Student represents a learner registered with the business.
type Student struct {
	ID          string         `db:"id" json:"id"`
	Name        string         `db:"name" json:"name"`
	Email       string         `db:"email" json:"email"`
	Phone       string         `db:"phone" json:"phone"`
	NationalID  *string        `db:"national_id" json:"nationalId,omitempty"`
	Address     string         `db:"address" json:"address"`
	DateOfBirth *time.Time     `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	Notes       string         `db:"notes" json:"notes"`
	Documents   pq.StringArray `db:"documents" json:"documents"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	CourseID  string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentListItem is a student row with enrollment counters for tables.
type StudentListItem struct {
	Student
	EnrollmentCount int `db:"enrollment_count" json:"enrollmentCount"`
}

// StudentDetail contains the student with every enrollment and its balance.
type StudentDetail struct {
	Student
	Enrollments []EnrollmentDetail `json:"enrollments"`
	Payments    []Payment          `json:"payments"`
	Summary     BalanceTotals      `json:"summary"`
}
