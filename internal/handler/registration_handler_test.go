package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-admin-api/internal/dto"
	"github.com/noah-isme/course-admin-api/internal/models"
	"github.com/noah-isme/course-admin-api/internal/service"
)

type fakeRegistrationSrv struct {
	called bool
	last   service.RegistrationRequest
}

func (f *fakeRegistrationSrv) Register(_ context.Context, req service.RegistrationRequest) (*dto.RegistrationResult, error) {
	f.called = true
	f.last = req
	return &dto.RegistrationResult{Student: &models.Student{ID: "s-1", Name: req.Student.Name}}, nil
}

func registrationForm(t *testing.T, fields map[string]string, files ...string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for _, name := range files {
		part, err := writer.CreateFormFile("documents", name)
		require.NoError(t, err)
		_, _ = part.Write([]byte("%PDF-1.4\n"))
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestRegistrationHandlerDecodesParts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeRegistrationSrv{}
	handler := NewRegistrationHandler(srv)

	body, contentType := registrationForm(t, map[string]string{
		"student":    `{"name":"Jane Doe","email":"jane@example.com","phone":"0812345678"}`,
		"enrollment": `{"courseId":"c-1","batch":"2026-A"}`,
		"payment":    `{"enrollmentId":"","amount":"100","method":"CASH"}`,
	}, "ktp.pdf", "photo.pdf")

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/students/full-create", body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Jane Doe", srv.last.Student.Name)
	require.NotNil(t, srv.last.Enrollment)
	assert.Equal(t, "c-1", srv.last.Enrollment.CourseID)
	require.NotNil(t, srv.last.Payment)
	assert.Equal(t, "100", srv.last.Payment.Amount.String())
	assert.Len(t, srv.last.Documents, 2)
}

func TestRegistrationHandlerOptionalParts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeRegistrationSrv{}
	handler := NewRegistrationHandler(srv)

	body, contentType := registrationForm(t, map[string]string{
		"student":    `{"name":"Jane Doe","email":"jane@example.com","phone":"0812345678"}`,
		"enrollment": " ",
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/students/full-create", body)
	c.Request.Header.Set("Content-Type", contentType)

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, srv.last.Enrollment)
	assert.Nil(t, srv.last.Payment)
}

func TestRegistrationHandlerRejectsParts(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		fields map[string]string
		field  string
	}{
		{name: "missing student", fields: map[string]string{"enrollment": `{"courseId":"c-1"}`}, field: "student"},
		{name: "malformed enrollment", fields: map[string]string{
			"student":    `{"name":"Jane"}`,
			"enrollment": `{"courseId":`,
		}, field: "enrollment"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := &fakeRegistrationSrv{}
			handler := NewRegistrationHandler(srv)
			body, contentType := registrationForm(t, tc.fields)

			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			c.Request = httptest.NewRequest(http.MethodPost, "/students/full-create", body)
			c.Request.Header.Set("Content-Type", contentType)

			handler.Create(c)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, srv.called)
			var envelope responseEnvelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.Contains(t, envelope.Error.Fields, tc.field)
		})
	}
}
