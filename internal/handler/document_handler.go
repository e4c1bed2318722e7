package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-admin-api/internal/service"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
	"github.com/noah-isme/course-admin-api/pkg/response"
)

type documentOpener interface {
	Open(ctx context.Context, token string) (*service.StoredDocument, error)
}

// DocumentHandler serves signed document downloads.
type DocumentHandler struct {
	documents documentOpener
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents documentOpener) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Download godoc
// @Summary Download a student document through a signed link
// @Tags Documents
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /documents/download [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, err := h.documents.Open(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer doc.File.Close() //nolint:errcheck

	info, err := doc.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read document"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", doc.Name))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), doc.ContentType, doc.File, nil)
}
