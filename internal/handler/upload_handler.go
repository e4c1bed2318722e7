package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-admin-api/internal/dto"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
	"github.com/noah-isme/course-admin-api/pkg/response"
)

type importService interface {
	Preview(ctx context.Context, r io.Reader) (*dto.ImportPreview, error)
	Import(ctx context.Context, req dto.ImportRequest) (*dto.ImportResult, error)
	Template(format string) ([]byte, string, string, error)
}

// UploadHandler exposes the bulk student import flow.
type UploadHandler struct {
	imports importService
}

// NewUploadHandler constructs UploadHandler.
func NewUploadHandler(imports importService) *UploadHandler {
	return &UploadHandler{imports: imports}
}

// Preview godoc
// @Summary Parse and validate a CSV of students without saving
// @Tags Upload
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /upload/csv-preview [post]
func (h *UploadHandler) Preview(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "file is required"), "file", "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to open file"))
		return
	}
	defer src.Close()

	preview, err := h.imports.Preview(c.Request.Context(), src)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, preview, nil)
}

// Import godoc
// @Summary Import previously previewed student rows
// @Tags Upload
// @Accept json
// @Produce json
// @Param payload body dto.ImportRequest true "Rows to import"
// @Success 200 {object} response.Envelope
// @Router /upload/import-students [post]
func (h *UploadHandler) Import(c *gin.Context) {
	var req dto.ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.imports.Import(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Template godoc
// @Summary Download the student import template
// @Tags Upload
// @Produce octet-stream
// @Param format query string false "csv or xlsx"
// @Success 200 {file} binary
// @Router /upload/template [get]
func (h *UploadHandler) Template(c *gin.Context) {
	body, filename, contentType, err := h.imports.Template(c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, filename, contentType, body)
}
