package ports

import (
	"context"
	"io"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

// ChatService is the inbound contract for context-aware chat turns.
type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error)
}

// ContextPreviewer runs strategy selection and assembly as a dry run: same
// decisions a chat turn would make, no completion call, no persisted state.
type ContextPreviewer interface {
	Preview(ctx context.Context, req domain.ChatRequest) (*domain.ContextPreview, error)
}

// DocumentIngestor accepts patient document uploads and queues them for
// processing.
type DocumentIngestor interface {
	Upload(ctx context.Context, patientID, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentReader exposes document metadata and processing state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByPatient(ctx context.Context, patientID string) ([]domain.Document, error)
}

// DocumentProcessor runs the asynchronous pipeline for one queued document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// PatientDirectory registers and resolves patients.
type PatientDirectory interface {
	Register(ctx context.Context, name string, birthDate string) (*domain.Patient, error)
	GetByID(ctx context.Context, id string) (*domain.Patient, error)
}
