package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/course-admin-api/internal/models"
)

// DashboardCounts holds the headline counters of the overview.
type DashboardCounts struct {
	TotalStudents        int `db:"total_students" json:"totalStudents"`
	TotalCourses         int `db:"total_courses" json:"totalCourses"`
	ActiveCourses        int `db:"active_courses" json:"activeCourses"`
	TotalEnrollments     int `db:"total_enrollments" json:"totalEnrollments"`
	ActiveEnrollments    int `db:"active_enrollments" json:"activeEnrollments"`
	CompletedEnrollments int `db:"completed_enrollments" json:"completedEnrollments"`
	TotalPayments        int `db:"total_payments" json:"totalPayments"`
}

// DashboardOverview is the payload of the overview endpoint.
type DashboardOverview struct {
	Counts           DashboardCounts        `json:"counts"`
	Revenue          models.BalanceTotals   `json:"revenue"`
	RevenueThisMonth decimal.Decimal        `json:"revenueThisMonth"`
	RecentPayments   []models.PaymentDetail `json:"recentPayments"`
	GeneratedAt      time.Time              `json:"generatedAt"`
}

// StatusCount counts enrollments per status.
type StatusCount struct {
	Status models.EnrollmentStatus `db:"status" json:"status"`
	Count  int                     `db:"count" json:"count"`
}

// CourseEnrollmentCount counts enrollments per course.
type CourseEnrollmentCount struct {
	CourseID   string `db:"course_id" json:"courseId"`
	CourseName string `db:"course_name" json:"courseName"`
	Total      int    `db:"total" json:"total"`
	Active     int    `db:"active" json:"active"`
}

// BatchCount counts enrollments per batch label.
type BatchCount struct {
	Batch string `db:"batch" json:"batch"`
	Count int    `db:"count" json:"count"`
}

// MonthlyCount is one month bucket, keyed YYYY-MM.
type MonthlyCount struct {
	Month string `db:"month" json:"month"`
	Count int    `db:"count" json:"count"`
}

// MonthlyAmount is one month bucket of money received.
type MonthlyAmount struct {
	Month  string          `db:"month" json:"month"`
	Count  int             `db:"count" json:"count"`
	Amount decimal.Decimal `db:"amount" json:"amount"`
}

// MethodTotal aggregates payments per method.
type MethodTotal struct {
	Method models.PaymentMethod `db:"method" json:"method"`
	Count  int                  `db:"count" json:"count"`
	Amount decimal.Decimal      `db:"amount" json:"amount"`
}

// EnrollmentStats is the payload of the enrollment statistics endpoint.
type EnrollmentStats struct {
	ByStatus    []StatusCount           `json:"byStatus"`
	ByCourse    []CourseEnrollmentCount `json:"byCourse"`
	ByBatch     []BatchCount            `json:"byBatch"`
	Monthly     []MonthlyCount          `json:"monthly"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// OutstandingEnrollment lists an enrollment that still has money due.
type OutstandingEnrollment struct {
	EnrollmentID string         `json:"enrollmentId"`
	StudentID    string         `json:"studentId"`
	StudentName  string         `json:"studentName"`
	CourseName   string         `json:"courseName"`
	Balance      models.Balance `json:"balance"`
}

// PaymentStats is the payload of the payment statistics endpoint.
type PaymentStats struct {
	Totals      models.BalanceTotals    `json:"totals"`
	ByMethod    []MethodTotal           `json:"byMethod"`
	Monthly     []MonthlyAmount         `json:"monthly"`
	Outstanding []OutstandingEnrollment `json:"outstanding"`
	GeneratedAt time.Time               `json:"generatedAt"`
}

// StudentCounts holds student level counters.
type StudentCounts struct {
	Total             int `db:"total" json:"total"`
	NewThisMonth      int `db:"new_this_month" json:"newThisMonth"`
	WithoutEnrollment int `db:"without_enrollment" json:"withoutEnrollment"`
}

// StudentStats is the payload of the student statistics endpoint.
type StudentStats struct {
	Counts          StudentCounts    `json:"counts"`
	WithOutstanding int              `json:"withOutstanding"`
	Monthly         []MonthlyCount   `json:"monthly"`
	Recent          []models.Student `json:"recent"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}
