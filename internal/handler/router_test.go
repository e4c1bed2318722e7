package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-admin-api/internal/models"
	"github.com/noah-isme/course-admin-api/internal/service"
)

type fakeEnrollmentSrv struct {
	statusID  string
	statusReq service.EnrollmentStatusRequest
}

func (f *fakeEnrollmentSrv) List(context.Context, models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	return nil, models.NewPagination(1, 10, 0), nil
}

func (f *fakeEnrollmentSrv) Get(_ context.Context, id string) (*models.EnrollmentDetail, error) {
	return &models.EnrollmentDetail{Enrollment: models.Enrollment{ID: id}}, nil
}

func (f *fakeEnrollmentSrv) Create(context.Context, service.EnrollmentRequest) (*models.Enrollment, error) {
	return &models.Enrollment{}, nil
}

func (f *fakeEnrollmentSrv) Update(_ context.Context, id string, _ service.EnrollmentFields) (*models.Enrollment, error) {
	return &models.Enrollment{ID: id}, nil
}

func (f *fakeEnrollmentSrv) UpdateStatus(_ context.Context, id string, req service.EnrollmentStatusRequest) (*models.Enrollment, error) {
	f.statusID = id
	f.statusReq = req
	return &models.Enrollment{ID: id, Status: req.Status}, nil
}

func (f *fakeEnrollmentSrv) Delete(context.Context, string) error { return nil }

func newTestRouter(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r.Group("/api/v1"), h)
	return r
}

func TestRegisterRoutesDispatches(t *testing.T) {
	enrollments := &fakeEnrollmentSrv{}
	payments := &fakePaymentSrv{}
	r := newTestRouter(Handlers{
		Students:      NewStudentHandler(&fakeStudentSrv{}),
		Enrollments:   NewEnrollmentHandler(enrollments),
		Payments:      NewPaymentHandler(payments),
		Registrations: NewRegistrationHandler(&fakeRegistrationSrv{}),
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/enrollments/e-9/status", bytes.NewBufferString(`{"status":"SUSPENDED"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "e-9", enrollments.statusID)
	assert.Equal(t, models.EnrollmentStatusSuspended, enrollments.statusReq.Status)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payments/student/s-3/summary", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"studentId":"s-3"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/students/full-create", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "full-create must not be captured by /students/:id")
}

func TestRegisterRoutesSkipsMissingHandlers(t *testing.T) {
	r := newTestRouter(Handlers{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/courses", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
