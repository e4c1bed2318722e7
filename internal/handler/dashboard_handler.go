package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-admin-api/internal/dto"
	"github.com/noah-isme/course-admin-api/internal/middleware"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
	"github.com/noah-isme/course-admin-api/pkg/response"
)

type dashboardService interface {
	Overview(ctx context.Context) (*dto.DashboardOverview, bool, error)
	Enrollments(ctx context.Context) (*dto.EnrollmentStats, bool, error)
	Payments(ctx context.Context) (*dto.PaymentStats, bool, error)
	Students(ctx context.Context) (*dto.StudentStats, bool, error)
}

// DashboardHandler wires dashboard service to HTTP endpoints.
type DashboardHandler struct {
	service dashboardService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Overview godoc
// @Summary Headline counters and revenue
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/overview [get]
func (h *DashboardHandler) Overview(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	payload, hit, err := h.service.Overview(c.Request.Context())
	h.respond(c, payload, hit, err)
}

// Enrollments godoc
// @Summary Enrollment distribution by status, course, batch and month
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/enrollments [get]
func (h *DashboardHandler) Enrollments(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	payload, hit, err := h.service.Enrollments(c.Request.Context())
	h.respond(c, payload, hit, err)
}

// Payments godoc
// @Summary Revenue by method and month with the largest outstanding balances
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/payments [get]
func (h *DashboardHandler) Payments(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	payload, hit, err := h.service.Payments(c.Request.Context())
	h.respond(c, payload, hit, err)
}

// Students godoc
// @Summary Student registration statistics
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/students [get]
func (h *DashboardHandler) Students(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	payload, hit, err := h.service.Students(c.Request.Context())
	h.respond(c, payload, hit, err)
}

func (h *DashboardHandler) respond(c *gin.Context, payload interface{}, hit bool, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, payload, nil, middleware.ExtractMeta(c))
}
