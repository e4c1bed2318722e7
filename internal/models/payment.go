package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the closed set of accepted payment channels.
type PaymentMethod string

// Supported payment methods.
const (
	PaymentMethodCash          PaymentMethod = "CASH"
	PaymentMethodBankTransfer  PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCreditCard    PaymentMethod = "CREDIT_CARD"
	PaymentMethodDebitCard     PaymentMethod = "DEBIT_CARD"
	PaymentMethodOnlinePayment PaymentMethod = "ONLINE_PAYMENT"
	PaymentMethodCheck         PaymentMethod = "CHECK"
)

// PaymentMethods lists every method in display order.
var PaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodBankTransfer,
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodOnlinePayment,
	PaymentMethodCheck,
}

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Payment is money received against one enrollment.
type Payment struct {
	ID           string          `db:"id" json:"id"`
	StudentID    string          `db:"student_id" json:"studentId"`
	EnrollmentID string          `db:"enrollment_id" json:"enrollmentId"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Method       PaymentMethod   `db:"method" json:"method"`
	PaymentDate  time.Time       `db:"payment_date" json:"paymentDate"`
	Notes        *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// PaymentDetail adds student and course context to a payment.
type PaymentDetail struct {
	Payment
	StudentName  string `db:"student_name" json:"studentName"`
	StudentEmail string `db:"student_email" json:"studentEmail"`
	CourseID     string `db:"course_id" json:"courseId"`
	CourseName   string `db:"course_name" json:"courseName"`
	Batch        string `db:"batch" json:"batch"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	StudentID    string
	EnrollmentID string
	Method       PaymentMethod
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// PaymentResult is returned by payment writes: the stored payment and the
// enrollment balance after the write.
type PaymentResult struct {
	Payment          *Payment         `json:"payment"`
	Balance          Balance          `json:"balance"`
	EnrollmentStatus EnrollmentStatus `json:"enrollmentStatus"`
}

// StudentPaymentSummary reconciles every enrollment of one student.
type StudentPaymentSummary struct {
	StudentID   string             `json:"studentId"`
	StudentName string             `json:"studentName"`
	Enrollments []EnrollmentDetail `json:"enrollments"`
	Totals      BalanceTotals      `json:"totals"`
	LastPayment *time.Time         `json:"lastPaymentDate,omitempty"`
}
