package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-admin-api/internal/service"
	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
)

type fakeDocumentOpener struct {
	path string
}

func (f *fakeDocumentOpener) Open(_ context.Context, token string) (*service.StoredDocument, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid document link")
	}
	file, err := os.Open(f.path)
	if err != nil {
		return nil, err
	}
	return &service.StoredDocument{File: file, Name: "id.pdf", ContentType: "application/pdf"}, nil
}

func TestDocumentHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "id.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 body"), 0o600))
	handler := NewDocumentHandler(&fakeDocumentOpener{path: path})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/documents/download?token=good", nil)

	handler.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="id.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4 body", rec.Body.String())
}

func TestDocumentHandlerRejectsToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDocumentHandler(&fakeDocumentOpener{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/documents/download?token=forged", nil)

	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
