package service

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
	"github.com/noah-isme/course-admin-api/pkg/storage"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
)

func formFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("documents", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["documents"][0]
}

func newDocumentFixture(t *testing.T, maxSize int64) (*DocumentService, string) {
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	svc := NewDocumentService(store, storage.NewLinkSigner("test-secret", time.Minute), DocumentServiceConfig{
		MaxFileSize:  maxSize,
		AllowedMIMEs: []string{"application/pdf", "image/png", "image/jpeg"},
	}, "/api/v1/documents/download", nil)
	return svc, dir
}

func TestDocumentServiceStoreAndOpen(t *testing.T) {
	svc, dir := newDocumentFixture(t, 1024)

	paths, err := svc.Store(context.Background(), "student-1", []*multipart.FileHeader{
		formFile(t, "card.pdf", pdfBytes),
		formFile(t, "photo.png", pngBytes),
	})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.True(t, strings.HasPrefix(paths[0], "students/student-1/"))
	assert.Equal(t, ".pdf", filepath.Ext(paths[0]))
	assert.Equal(t, ".png", filepath.Ext(paths[1]))

	link, err := svc.Link(context.Background(), "student-1", paths[0])
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/documents/download?token="+link.Token, link.URL)

	doc, err := svc.Open(context.Background(), link.Token)
	require.NoError(t, err)
	defer doc.File.Close()
	assert.Equal(t, "application/pdf", doc.ContentType)
	content, err := io.ReadAll(doc.File)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, content)

	svc.Discard(context.Background(), paths)
	_, err = os.Stat(filepath.Join(dir, paths[0]))
	assert.True(t, os.IsNotExist(err))

	_, err = svc.Open(context.Background(), link.Token)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceStoreRejects(t *testing.T) {
	cases := map[string]*struct {
		content []byte
		name    string
	}{
		"too large":       {content: bytes.Repeat([]byte("a"), 2048), name: "big.pdf"},
		"disallowed type": {content: []byte("just some text, not a document"), name: "notes.pdf"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc, dir := newDocumentFixture(t, 1024)

			_, err := svc.Store(context.Background(), "student-1", []*multipart.FileHeader{
				formFile(t, "ok.pdf", pdfBytes),
				formFile(t, tc.name, tc.content),
			})
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Contains(t, appErr.Fields, "documents")

			entries, err := os.ReadDir(filepath.Join(dir, "students", "student-1"))
			if err == nil {
				assert.Empty(t, entries)
			}
		})
	}
}

func TestDocumentServiceOpenRejectsTokens(t *testing.T) {
	svc, _ := newDocumentFixture(t, 1024)

	_, err := svc.Open(context.Background(), "")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Open(context.Background(), "student-1.123.abc.bad")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	expired := storage.NewLinkSigner("test-secret", time.Nanosecond)
	token, _, err := expired.Sign("student-1", "students/student-1/x.pdf")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = svc.Open(context.Background(), token)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Equal(t, "document link expired", appErr.Message)
}
