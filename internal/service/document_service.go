package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-admin-api/pkg/errors"
	"github.com/noah-isme/course-admin-api/pkg/storage"
)

type documentStore interface {
	SaveStream(relPath string, r io.Reader) (string, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

type linkSigner interface {
	Sign(ownerID, relPath string) (string, time.Time, error)
	Verify(token string) (string, string, error)
}

// DocumentServiceConfig bounds what may be uploaded.
type DocumentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// DocumentLink is a signed, expiring download reference.
type DocumentLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StoredDocument is an opened document ready to stream.
type StoredDocument struct {
	File        *os.File
	Name        string
	ContentType string
}

// DocumentService stores student documents and issues download links.
type DocumentService struct {
	store        documentStore
	signer       linkSigner
	cfg          DocumentServiceConfig
	downloadPath string
	logger       *zap.Logger
}

// NewDocumentService constructs a DocumentService. downloadPath is the public
// route that accepts ?token= for downloads.
func NewDocumentService(store documentStore, signer linkSigner, cfg DocumentServiceConfig, downloadPath string, logger *zap.Logger) *DocumentService {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 5 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{store: store, signer: signer, cfg: cfg, downloadPath: downloadPath, logger: logger}
}

// Store validates and persists the files under the owner's folder and returns
// their storage paths. Nothing is left behind when any file is rejected.
func (s *DocumentService) Store(ctx context.Context, ownerID string, files []*multipart.FileHeader) ([]string, error) {
	stored := make([]string, 0, len(files))
	for _, header := range files {
		relPath, err := s.storeOne(ownerID, header)
		if err != nil {
			s.Discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, relPath)
	}
	return stored, nil
}

func (s *DocumentService) storeOne(ownerID string, header *multipart.FileHeader) (string, error) {
	if header.Size > s.cfg.MaxFileSize {
		msg := fmt.Sprintf("%s exceeds the %d byte limit", header.Filename, s.cfg.MaxFileSize)
		return "", appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, msg), "documents", msg)
	}
	file, err := header.Open()
	if err != nil {
		return "", appErrors.Internal(err, "failed to read uploaded document")
	}
	defer file.Close()

	detected, err := mimetype.DetectReader(file)
	if err != nil {
		return "", appErrors.Internal(err, "failed to inspect uploaded document")
	}
	if !s.allowed(detected) {
		msg := fmt.Sprintf("%s has unsupported type %s", header.Filename, detected.String())
		return "", appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, msg), "documents", msg)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Internal(err, "failed to read uploaded document")
	}

	relPath := path.Join("students", ownerID, uuid.NewString()+detected.Extension())
	limited := io.LimitReader(file, s.cfg.MaxFileSize)
	if _, err := s.store.SaveStream(relPath, limited); err != nil {
		return "", appErrors.Internal(err, "failed to store document")
	}
	return relPath, nil
}

func (s *DocumentService) allowed(detected *mimetype.MIME) bool {
	for _, allowed := range s.cfg.AllowedMIMEs {
		if detected.Is(allowed) {
			return true
		}
	}
	return false
}

// Discard removes stored documents, logging failures instead of returning them.
func (s *DocumentService) Discard(ctx context.Context, paths []string) {
	for _, relPath := range paths {
		if err := s.store.Delete(relPath); err != nil {
			s.logger.Warn("failed to remove stored document", zap.String("path", relPath), zap.Error(err))
		}
	}
}

// Link signs a download link for one stored document of a student.
func (s *DocumentService) Link(ctx context.Context, ownerID, relPath string) (*DocumentLink, error) {
	token, expiresAt, err := s.signer.Sign(ownerID, relPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign document link")
	}
	return &DocumentLink{
		Token:     token,
		URL:       s.downloadPath + "?token=" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// Open verifies a signed token and opens the referenced document.
func (s *DocumentService) Open(ctx context.Context, token string) (*StoredDocument, error) {
	if token == "" {
		return nil, appErrors.WithField(appErrors.Clone(appErrors.ErrValidation, "token is required"), "token", "token is required")
	}
	_, relPath, err := s.signer.Verify(token)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrTokenExpired):
			return nil, appErrors.Clone(appErrors.ErrForbidden, "document link expired")
		case errors.Is(err, storage.ErrInvalidToken):
			return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid document link")
		}
		return nil, appErrors.Internal(err, "failed to verify document link")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Internal(err, "failed to open document")
	}
	detected, err := mimetype.DetectReader(file)
	if err == nil {
		_, err = file.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = file.Close()
		return nil, appErrors.Internal(err, "failed to read document")
	}
	return &StoredDocument{File: file, Name: path.Base(relPath), ContentType: detected.String()}, nil
}
