package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-admin-api/internal/dto"
	"github.com/noah-isme/course-admin-api/internal/service"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
	"github.com/noah-isme/course-admin-api/pkg/response"
)

type registrationService interface {
	Register(ctx context.Context, req service.RegistrationRequest) (*dto.RegistrationResult, error)
}

// RegistrationHandler exposes the one-shot student registration.
type RegistrationHandler struct {
	registrations registrationService
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registrations registrationService) *RegistrationHandler {
	return &RegistrationHandler{registrations: registrations}
}

// Create godoc
// @Summary Create a student with enrollment, first payment and documents
// @Description Form fields student, enrollment and payment carry JSON objects. Everything is saved or nothing is.
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param student formData string true "Student JSON"
// @Param enrollment formData string false "Enrollment JSON"
// @Param payment formData string false "Payment JSON"
// @Param documents formData file false "Documents"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/full-create [post]
func (h *RegistrationHandler) Create(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form expected"))
		return
	}

	var req service.RegistrationRequest
	if err := decodeFormJSON(form.Value["student"], "student", &req.Student, true); err != nil {
		response.Error(c, err)
		return
	}
	var enrollment service.EnrollmentFields
	if err := decodeFormJSON(form.Value["enrollment"], "enrollment", &enrollment, false); err != nil {
		response.Error(c, err)
		return
	}
	if present(form.Value["enrollment"]) {
		req.Enrollment = &enrollment
	}
	var payment service.RegistrationPayment
	if err := decodeFormJSON(form.Value["payment"], "payment", &payment, false); err != nil {
		response.Error(c, err)
		return
	}
	if present(form.Value["payment"]) {
		req.Payment = &payment
	}
	req.Documents = form.File["documents"]

	result, err := h.registrations.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func present(values []string) bool {
	return len(values) > 0 && strings.TrimSpace(values[0]) != ""
}

func decodeFormJSON(values []string, field string, dest interface{}, required bool) error {
	if !present(values) {
		if required {
			return appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, field+" is required"), field, field+" is required")
		}
		return nil
	}
	if err := json.Unmarshal([]byte(values[0]), dest); err != nil {
		return appErrors.WithField(appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+field+" payload"), field, "must be a JSON object")
	}
	return nil
}
