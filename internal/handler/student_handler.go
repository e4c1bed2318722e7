package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-admin-api/internal/models"
	"github.com/noah-isme/course-admin-api/internal/service"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
	"github.com/noah-isme/course-admin-api/pkg/response"
)

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentListItem, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, req service.StudentRequest) (*models.Student, error)
	Update(ctx context.Context, id string, req service.StudentRequest) (*models.Student, error)
	Delete(ctx context.Context, id string) error
	AddDocuments(ctx context.Context, id string, files []*multipart.FileHeader) (*models.Student, error)
	RemoveDocument(ctx context.Context, id string, index int) (*models.Student, error)
	DocumentLink(ctx context.Context, id string, index int) (*service.DocumentLink, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name, email, phone or national ID"
// @Param courseId query string false "Only students enrolled in the course"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param sort query string false "name, email or created_at"
// @Param order query string false "asc or desc"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.CourseID = c.Query("courseId")
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail with enrollments, payments and balance summary
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Create student
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body service.StudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req service.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	student, err := h.students.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.StudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.StudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	student, err := h.students.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete a student without enrollments or payments
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.students.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddDocuments godoc
// @Summary Upload documents for a student
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Student ID"
// @Param documents formData file true "Documents (PDF, JPEG, PNG)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/documents [post]
func (h *StudentHandler) AddDocuments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "multipart form expected"))
		return
	}
	student, err := h.students.AddDocuments(c.Request.Context(), c.Param("id"), form.File["documents"])
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// RemoveDocument godoc
// @Summary Remove a student document
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param index path int true "Document index"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/documents/{index} [delete]
func (h *StudentHandler) RemoveDocument(c *gin.Context) {
	index, err := pathIndex(c, "index")
	if err != nil {
		response.Error(c, err)
		return
	}
	student, err := h.students.RemoveDocument(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// DocumentLink godoc
// @Summary Sign a temporary download link for a student document
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param index path int true "Document index"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/documents/{index}/link [get]
func (h *StudentHandler) DocumentLink(c *gin.Context) {
	index, err := pathIndex(c, "index")
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.students.DocumentLink(c.Request.Context(), c.Param("id"), index)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}
