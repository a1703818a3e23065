package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
)

type IngestDocumentUseCase struct {
	patients ports.PatientRepository
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	queue    ports.MessageQueue
	now      func() time.Time
}

func NewIngestDocumentUseCase(
	patients ports.PatientRepository,
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		patients: patients,
		repo:     repo,
		storage:  storage,
		queue:    queue,
		now:      time.Now,
	}
}

// Upload stores the raw file for an existing patient, records the document
// as uploaded and queues it for processing. The document date defaults to
// the upload time until processing finds a clinical date in the text.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	patientID, filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidRequest, "upload document", errors.New("patient id is required"))
	}
	if _, err := uc.patients.GetByID(ctx, patientID); err != nil {
		return nil, fmt.Errorf("verify patient: %w", err)
	}

	doc := uc.newUploadedDocument(patientID, filename, mimeType)

	if err := uc.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document record: %w", err)
	}
	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}
	return doc, nil
}

func (uc *IngestDocumentUseCase) newUploadedDocument(patientID, filename, mimeType string) *domain.Document {
	id := uuid.NewString()
	now := uc.now().UTC()
	return &domain.Document{
		ID:           id,
		PatientID:    patientID,
		Filename:     filename,
		MimeType:     mimeType,
		StoragePath:  id + "_" + sanitizeFilename(filename),
		Type:         domain.TypeOther,
		Status:       domain.StatusUploaded,
		DocumentDate: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// sanitizeFilename keeps storage keys shell and URL safe; anything outside
// the allowed set, spaces included, becomes an underscore.
func sanitizeFilename(name string) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, filepath.Base(name))
	if base == "" {
		return "document.bin"
	}
	return base
}
