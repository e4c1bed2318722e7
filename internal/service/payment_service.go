package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-admin-api/internal/models"
	"github.com/noah-isme/course-admin-api/pkg/database"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
	"github.com/noah-isme/course-admin-api/pkg/export"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	FindDetail(ctx context.Context, id string) (*models.PaymentDetail, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Payment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
	Update(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type paymentCreator interface {
	Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
}

type enrollmentStatusWriter interface {
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.EnrollmentStatus) error
}

type enrollmentLocker interface {
	LockForPayment(ctx context.Context, exec sqlx.ExtContext, id string) (*models.EnrollmentLock, error)
	enrollmentStatusWriter
}

type paymentEnrollmentStore interface {
	enrollmentLocker
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	FindDetail(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

type receiptRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// PaymentFields are the payment attributes shared by every payment payload.
type PaymentFields struct {
	Amount      decimal.Decimal      `json:"amount" validate:"decimal_gt=0"`
	Method      models.PaymentMethod `json:"method" validate:"required,oneof=CASH BANK_TRANSFER CREDIT_CARD DEBIT_CARD ONLINE_PAYMENT CHECK"`
	PaymentDate string               `json:"paymentDate" validate:"omitempty,datetime=2006-01-02"`
	Notes       string               `json:"notes" validate:"max=2000"`
}

// PaymentRequest records a payment against an enrollment. StudentID is
// optional and must match the enrollment's student when present.
type PaymentRequest struct {
	EnrollmentID string `json:"enrollmentId" validate:"required"`
	StudentID    string `json:"studentId"`
	PaymentFields
}

// PaymentService records payments while keeping enrollments within their course price.
type PaymentService struct {
	db          database.TxBeginner
	repo        paymentRepository
	enrollments paymentEnrollmentStore
	students    studentFinder
	receipts    receiptRenderer
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
}

// PaymentServiceParams groups constructor dependencies.
type PaymentServiceParams struct {
	DB          database.TxBeginner
	Repo        paymentRepository
	Enrollments paymentEnrollmentStore
	Students    studentFinder
	Receipts    receiptRenderer
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewPaymentService constructs the payment service.
func NewPaymentService(params PaymentServiceParams) *PaymentService {
	validate := params.Validator
	if validate == nil {
		validate = NewValidator()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	receipts := params.Receipts
	if receipts == nil {
		receipts = export.NewPDFExporter()
	}
	return &PaymentService{
		db:          params.DB,
		repo:        params.Repo,
		enrollments: params.Enrollments,
		students:    params.Students,
		receipts:    receipts,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
	}
}

// List returns payments with pagination.
func (s *PaymentService) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	if filter.Method != "" && !filter.Method.Valid() {
		return nil, nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "invalid method filter"), "method", "method is invalid")
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "invalid date range"), "to", "to must not be before from")
	}
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list payments")
	}
	if payments == nil {
		payments = []models.PaymentDetail{}
	}
	return payments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a payment with its student and course context.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.PaymentDetail, error) {
	payment, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, appErrors.TranslateDB(err, "payment not found", "failed to load payment")
	}
	return payment, nil
}

// Create records a payment. The enrollment row stays locked from the balance
// check until commit, so concurrent payments cannot overshoot the price.
func (s *PaymentService) Create(ctx context.Context, req PaymentRequest) (*models.PaymentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid payment payload")
	}
	var result *models.PaymentResult
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		result, err = recordPayment(ctx, tx, s.enrollments, s.repo, req.EnrollmentID, req.StudentID, req.PaymentFields)
		return err
	})
	if err != nil {
		return nil, appErrors.TranslateDB(err, "enrollment not found", "failed to record payment")
	}
	s.afterWrite(ctx, "payment recorded", result)
	s.metrics.RecordPayment(string(result.Payment.Method), result.Payment.Amount.InexactFloat64())
	return result, nil
}

// Update changes a payment, re-checking the limit without its previous amount.
func (s *PaymentService) Update(ctx context.Context, id string, req PaymentFields) (*models.PaymentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.FromValidation(err, "invalid payment payload")
	}
	var result *models.PaymentResult
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		payment, lock, err := s.lockPayment(ctx, tx, id)
		if err != nil {
			return err
		}
		balance := lock.Balance().Sub(payment.Amount)
		if err := req.apply(payment); err != nil {
			return err
		}
		if err := checkAccepts(balance, payment.Amount); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, tx, payment); err != nil {
			return err
		}
		after := balance.Add(payment.Amount)
		status, err := syncEnrollmentStatus(ctx, tx, s.enrollments, lock, after)
		if err != nil {
			return err
		}
		result = &models.PaymentResult{Payment: payment, Balance: after, EnrollmentStatus: status}
		return nil
	})
	if err != nil {
		return nil, appErrors.TranslateDB(err, "payment not found", "failed to update payment")
	}
	s.afterWrite(ctx, "payment updated", result)
	return result, nil
}

// Delete removes a payment and reopens a completed enrollment that is no longer fully paid.
func (s *PaymentService) Delete(ctx context.Context, id string) (*models.PaymentResult, error) {
	var result *models.PaymentResult
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		payment, lock, err := s.lockPayment(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return err
		}
		after := lock.Balance().Sub(payment.Amount)
		status, err := syncEnrollmentStatus(ctx, tx, s.enrollments, lock, after)
		if err != nil {
			return err
		}
		result = &models.PaymentResult{Payment: payment, Balance: after, EnrollmentStatus: status}
		return nil
	})
	if err != nil {
		return nil, appErrors.TranslateDB(err, "payment not found", "failed to delete payment")
	}
	s.afterWrite(ctx, "payment deleted", result)
	return result, nil
}

// StudentSummary reconciles every enrollment of a student.
func (s *PaymentService) StudentSummary(ctx context.Context, studentID string) (*models.StudentPaymentSummary, error) {
	student, err := s.students.FindByID(ctx, nil, studentID)
	if err != nil {
		return nil, appErrors.TranslateDB(err, "student not found", "failed to load student")
	}
	enrollments, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student enrollments")
	}
	payments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student payments")
	}
	if enrollments == nil {
		enrollments = []models.EnrollmentDetail{}
	}
	summary := &models.StudentPaymentSummary{
		StudentID:   student.ID,
		StudentName: student.Name,
		Enrollments: enrollments,
		Totals:      summarize(enrollments),
	}
	if len(payments) > 0 {
		last := payments[0].PaymentDate
		summary.LastPayment = &last
	}
	return summary, nil
}

// Receipt renders a PDF receipt for a payment and returns it with a file name.
func (s *PaymentService) Receipt(ctx context.Context, id string) ([]byte, string, error) {
	payment, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, "", appErrors.TranslateDB(err, "payment not found", "failed to load payment")
	}
	enrollment, err := s.enrollments.FindDetail(ctx, payment.EnrollmentID)
	if err != nil {
		return nil, "", appErrors.TranslateDB(err, "enrollment not found", "failed to load enrollment balance")
	}
	balance := enrollment.Balance

	notes := ""
	if payment.Notes != nil {
		notes = *payment.Notes
	}
	doc := export.Document{
		Title:    "Payment Receipt",
		Subtitle: fmt.Sprintf("Receipt %s", payment.ID),
		Fields: [][2]string{
			{"Student", payment.StudentName},
			{"Email", payment.StudentEmail},
			{"Course", payment.CourseName},
			{"Batch", payment.Batch},
			{"Payment date", payment.PaymentDate.Format(dateLayout)},
			{"Method", humanizeMethod(payment.Method)},
			{"Amount", payment.Amount.StringFixed(2)},
			{"Notes", notes},
		},
		Table: &export.Dataset{
			Headers: []string{"Course price", "Total paid", "Outstanding", "Status"},
			Rows: []map[string]string{{
				"Course price": balance.CoursePrice.StringFixed(2),
				"Total paid":   balance.TotalPaid.StringFixed(2),
				"Outstanding":  balance.Outstanding.StringFixed(2),
				"Status":       paidLabel(balance),
			}},
		},
		Footer: fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC1123)),
	}
	body, err := s.receipts.Render(doc)
	if err != nil {
		return nil, "", appErrors.Internal(err, "failed to render receipt")
	}
	return body, fmt.Sprintf("receipt-%s.pdf", payment.ID), nil
}

// lockPayment loads a payment, locks its enrollment and re-reads the payment
// under the lock so the amount used for the balance is current.
func (s *PaymentService) lockPayment(ctx context.Context, tx sqlx.ExtContext, id string) (*models.Payment, *models.EnrollmentLock, error) {
	payment, err := s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	lock, err := s.enrollments.LockForPayment(ctx, tx, payment.EnrollmentID)
	if err != nil {
		return nil, nil, err
	}
	payment, err = s.repo.FindByID(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	return payment, lock, nil
}

func (s *PaymentService) afterWrite(ctx context.Context, event string, result *models.PaymentResult) {
	invalidateDashboard(ctx, s.cache)
	s.logger.Info(event,
		zap.String("payment_id", result.Payment.ID),
		zap.String("enrollment_id", result.Payment.EnrollmentID),
		zap.String("amount", result.Payment.Amount.StringFixed(2)),
		zap.String("outstanding", result.Balance.Outstanding.StringFixed(2)),
		zap.String("enrollment_status", string(result.EnrollmentStatus)))
}

// recordPayment locks the enrollment, checks the amount fits its balance and
// inserts the payment, completing the enrollment once it is fully paid.
func recordPayment(ctx context.Context, tx sqlx.ExtContext, enrollments enrollmentLocker, payments paymentCreator, enrollmentID, studentID string, fields PaymentFields) (*models.PaymentResult, error) {
	lock, err := enrollments.LockForPayment(ctx, tx, enrollmentID)
	if err != nil {
		appErr := appErrors.TranslateDB(err, "enrollment not found", "failed to load enrollment")
		if appErr.Code == appErrors.ErrNotFound.Code {
			appErr = appErrors.WithField(appErr, "enrollmentId", "enrollment not found")
		}
		return nil, appErr
	}
	if studentID != "" && studentID != lock.StudentID {
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrBusinessRule, "enrollment does not belong to the student"), "enrollmentId", "enrollment does not belong to the student")
	}
	if lock.Status == models.EnrollmentStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrBusinessRule, "payments cannot be recorded for a cancelled enrollment")
	}
	payment := &models.Payment{StudentID: lock.StudentID, EnrollmentID: lock.ID}
	if err := fields.apply(payment); err != nil {
		return nil, err
	}
	balance := lock.Balance()
	if err := checkAccepts(balance, payment.Amount); err != nil {
		return nil, err
	}
	if err := payments.Create(ctx, tx, payment); err != nil {
		return nil, err
	}
	after := balance.Add(payment.Amount)
	status, err := syncEnrollmentStatus(ctx, tx, enrollments, lock, after)
	if err != nil {
		return nil, err
	}
	return &models.PaymentResult{Payment: payment, Balance: after, EnrollmentStatus: status}, nil
}

func checkAccepts(balance models.Balance, amount decimal.Decimal) error {
	if balance.Accepts(amount) {
		return nil
	}
	msg := fmt.Sprintf("payment of %s exceeds the outstanding amount of %s", amount.StringFixed(2), balance.Outstanding.StringFixed(2))
	return appErrors.WithField(appErrors.Clone(appErrors.ErrBusinessRule, msg), "amount", msg)
}

// syncEnrollmentStatus completes an enrollment that became fully paid and
// reopens a completed one that no longer is.
func syncEnrollmentStatus(ctx context.Context, tx sqlx.ExtContext, enrollments enrollmentStatusWriter, lock *models.EnrollmentLock, after models.Balance) (models.EnrollmentStatus, error) {
	next := lock.Status
	switch {
	case after.IsFullyPaid && (lock.Status == models.EnrollmentStatusActive || lock.Status == models.EnrollmentStatusSuspended):
		next = models.EnrollmentStatusCompleted
	case !after.IsFullyPaid && lock.Status == models.EnrollmentStatusCompleted:
		next = models.EnrollmentStatusActive
	}
	if next == lock.Status {
		return next, nil
	}
	if err := enrollments.UpdateStatus(ctx, tx, lock.ID, next); err != nil {
		return "", err
	}
	return next, nil
}

func (f PaymentFields) apply(payment *models.Payment) error {
	payment.Amount = f.Amount.Round(2)
	payment.Method = f.Method
	payment.Notes = optionalString(f.Notes)
	if f.PaymentDate != "" {
		date, err := time.Parse(dateLayout, f.PaymentDate)
		if err != nil {
			return appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "invalid payment date"), "paymentDate", "paymentDate must use format 2006-01-02")
		}
		payment.PaymentDate = date
	}
	return nil
}

func humanizeMethod(method models.PaymentMethod) string {
	words := strings.Split(strings.ToLower(string(method)), "_")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

func paidLabel(balance models.Balance) string {
	if balance.IsFullyPaid {
		return "Paid in full"
	}
	return "Outstanding"
}
