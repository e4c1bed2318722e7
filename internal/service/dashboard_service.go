package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/course-admin-api/internal/dto"
	"github.com/noah-isme/course-admin-api/internal/models"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
)

type dashboardRepository interface {
	Counts(ctx context.Context) (*dto.DashboardCounts, error)
	OpenBalances(ctx context.Context) ([]models.EnrollmentDetail, error)
	RevenueSince(ctx context.Context, since time.Time) (decimal.Decimal, error)
	RecentPayments(ctx context.Context, limit int) ([]models.PaymentDetail, error)
	EnrollmentsByStatus(ctx context.Context) ([]dto.StatusCount, error)
	EnrollmentsByCourse(ctx context.Context) ([]dto.CourseEnrollmentCount, error)
	EnrollmentsByBatch(ctx context.Context) ([]dto.BatchCount, error)
	MonthlyEnrollments(ctx context.Context, since time.Time) ([]dto.MonthlyCount, error)
	MonthlyRegistrations(ctx context.Context, since time.Time) ([]dto.MonthlyCount, error)
	PaymentsByMethod(ctx context.Context) ([]dto.MethodTotal, error)
	MonthlyRevenue(ctx context.Context, since time.Time) ([]dto.MonthlyAmount, error)
	StudentCounts(ctx context.Context, monthStart time.Time) (*dto.StudentCounts, error)
	RecentStudents(ctx context.Context, limit int) ([]models.Student, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL          time.Duration
	RecentLimit       int
	OutstandingLimit  int
	MonthlyWindowSize int
}

// DashboardService composes the read-only dashboard payloads and caches them.
type DashboardService struct {
	repo   dashboardRepository
	cache  *CacheService
	logger *zap.Logger
	now    func() time.Time
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo dashboardRepository, cache *CacheService, cfg DashboardServiceConfig, logger *zap.Logger) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if cfg.OutstandingLimit <= 0 {
		cfg.OutstandingLimit = 10
	}
	if cfg.MonthlyWindowSize <= 0 {
		cfg.MonthlyWindowSize = 12
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// Overview returns headline counters and revenue, and whether it came from cache.
func (s *DashboardService) Overview(ctx context.Context) (*dto.DashboardOverview, bool, error) {
	var cached dto.DashboardOverview
	if s.cache.Get(ctx, "dash:overview", &cached) {
		return &cached, true, nil
	}

	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load dashboard counters")
	}
	balances, err := s.repo.OpenBalances(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load balances")
	}
	now := s.now().UTC()
	revenue, err := s.repo.RevenueSince(ctx, monthStart(now))
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load revenue")
	}
	recent, err := s.repo.RecentPayments(ctx, s.cfg.RecentLimit)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load recent payments")
	}
	if recent == nil {
		recent = []models.PaymentDetail{}
	}

	overview := &dto.DashboardOverview{
		Counts:           *counts,
		Revenue:          summarize(balances),
		RevenueThisMonth: revenue,
		RecentPayments:   recent,
		GeneratedAt:      now,
	}
	s.cache.Set(ctx, "dash:overview", overview, s.cfg.CacheTTL)
	return overview, false, nil
}

// Enrollments returns enrollment distribution statistics.
func (s *DashboardService) Enrollments(ctx context.Context) (*dto.EnrollmentStats, bool, error) {
	var cached dto.EnrollmentStats
	if s.cache.Get(ctx, "dash:enrollments", &cached) {
		return &cached, true, nil
	}

	byStatus, err := s.repo.EnrollmentsByStatus(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load enrollments by status")
	}
	byCourse, err := s.repo.EnrollmentsByCourse(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load enrollments by course")
	}
	byBatch, err := s.repo.EnrollmentsByBatch(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load enrollments by batch")
	}
	now := s.now().UTC()
	months := s.window(now)
	monthly, err := s.repo.MonthlyEnrollments(ctx, months[0])
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load monthly enrollments")
	}

	stats := &dto.EnrollmentStats{
		ByStatus:    completeStatuses(byStatus),
		ByCourse:    nonNil(byCourse),
		ByBatch:     nonNil(byBatch),
		Monthly:     fillMonthlyCounts(months, monthly),
		GeneratedAt: now,
	}
	s.cache.Set(ctx, "dash:enrollments", stats, s.cfg.CacheTTL)
	return stats, false, nil
}

// Payments returns revenue statistics and the largest outstanding balances.
func (s *DashboardService) Payments(ctx context.Context) (*dto.PaymentStats, bool, error) {
	var cached dto.PaymentStats
	if s.cache.Get(ctx, "dash:payments", &cached) {
		return &cached, true, nil
	}

	balances, err := s.repo.OpenBalances(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load balances")
	}
	byMethod, err := s.repo.PaymentsByMethod(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load payments by method")
	}
	now := s.now().UTC()
	months := s.window(now)
	monthly, err := s.repo.MonthlyRevenue(ctx, months[0])
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load monthly revenue")
	}

	stats := &dto.PaymentStats{
		Totals:      summarize(balances),
		ByMethod:    nonNil(byMethod),
		Monthly:     fillMonthlyAmounts(months, monthly),
		Outstanding: largestOutstanding(balances, s.cfg.OutstandingLimit),
		GeneratedAt: now,
	}
	s.cache.Set(ctx, "dash:payments", stats, s.cfg.CacheTTL)
	return stats, false, nil
}

// Students returns registration statistics.
func (s *DashboardService) Students(ctx context.Context) (*dto.StudentStats, bool, error) {
	var cached dto.StudentStats
	if s.cache.Get(ctx, "dash:students", &cached) {
		return &cached, true, nil
	}

	now := s.now().UTC()
	counts, err := s.repo.StudentCounts(ctx, monthStart(now))
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load student counters")
	}
	months := s.window(now)
	monthly, err := s.repo.MonthlyRegistrations(ctx, months[0])
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load monthly registrations")
	}
	balances, err := s.repo.OpenBalances(ctx)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load balances")
	}
	recent, err := s.repo.RecentStudents(ctx, s.cfg.RecentLimit)
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to load recent students")
	}

	owing := make(map[string]struct{})
	for _, enrollment := range balances {
		if !enrollment.Balance.IsFullyPaid {
			owing[enrollment.StudentID] = struct{}{}
		}
	}
	stats := &dto.StudentStats{
		Counts:          *counts,
		WithOutstanding: len(owing),
		Monthly:         fillMonthlyCounts(months, monthly),
		Recent:          nonNil(recent),
		GeneratedAt:     now,
	}
	s.cache.Set(ctx, "dash:students", stats, s.cfg.CacheTTL)
	return stats, false, nil
}

// window returns the first day of each month in the configured window, oldest first.
func (s *DashboardService) window(now time.Time) []time.Time {
	current := monthStart(now)
	months := make([]time.Time, s.cfg.MonthlyWindowSize)
	for i := range months {
		months[i] = current.AddDate(0, i-len(months)+1, 0)
	}
	return months
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

func fillMonthlyCounts(months []time.Time, rows []dto.MonthlyCount) []dto.MonthlyCount {
	byMonth := make(map[string]int, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = row.Count
	}
	result := make([]dto.MonthlyCount, len(months))
	for i, month := range months {
		key := monthKey(month)
		result[i] = dto.MonthlyCount{Month: key, Count: byMonth[key]}
	}
	return result
}

func fillMonthlyAmounts(months []time.Time, rows []dto.MonthlyAmount) []dto.MonthlyAmount {
	byMonth := make(map[string]dto.MonthlyAmount, len(rows))
	for _, row := range rows {
		byMonth[row.Month] = row
	}
	result := make([]dto.MonthlyAmount, len(months))
	for i, month := range months {
		key := monthKey(month)
		row, ok := byMonth[key]
		if !ok {
			row = dto.MonthlyAmount{Amount: decimal.Zero}
		}
		row.Month = key
		result[i] = row
	}
	return result
}

// completeStatuses reports every status, including those without enrollments.
func completeStatuses(rows []dto.StatusCount) []dto.StatusCount {
	counts := make(map[models.EnrollmentStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	result := make([]dto.StatusCount, len(models.EnrollmentStatuses))
	for i, status := range models.EnrollmentStatuses {
		result[i] = dto.StatusCount{Status: status, Count: counts[status]}
	}
	return result
}

func largestOutstanding(balances []models.EnrollmentDetail, limit int) []dto.OutstandingEnrollment {
	result := make([]dto.OutstandingEnrollment, 0)
	for _, enrollment := range balances {
		if enrollment.Balance.IsFullyPaid {
			continue
		}
		result = append(result, dto.OutstandingEnrollment{
			EnrollmentID: enrollment.ID,
			StudentID:    enrollment.StudentID,
			StudentName:  enrollment.StudentName,
			CourseName:   enrollment.CourseName,
			Balance:      enrollment.Balance,
		})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Balance.Outstanding.GreaterThan(result[j].Balance.Outstanding)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
