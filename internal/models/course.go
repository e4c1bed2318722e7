package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Course is a sellable program with a fixed price.
type Course struct {
	ID          string          `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Duration    string          `db:"duration" json:"duration"`
	IsActive    bool            `db:"is_active" json:"isActive"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// CourseListItem adds enrollment counters to a course.
type CourseListItem struct {
	Course
	EnrollmentCount       int `db:"enrollment_count" json:"enrollmentCount"`
	ActiveEnrollmentCount int `db:"active_enrollment_count" json:"activeEnrollmentCount"`
}

// CourseFilter defines filter criteria for listing courses.
type CourseFilter struct {
	Search    string
	IsActive  *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
