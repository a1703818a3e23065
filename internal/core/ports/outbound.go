package ports

import (
	"context"
	"io"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

// CompletionService produces model completions for a message list with
// optional tool definitions. Tier picks the configured model.
type CompletionService interface {
	Complete(ctx context.Context, tier domain.ModelTier, messages []domain.ChatMessage, opts domain.CompletionOptions) (*domain.CompletionResult, error)
}

// VectorIndex indexes document chunks and performs semantic passage search.
// Search takes query text; embedding is the index's concern.
type VectorIndex interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string) error
	Search(ctx context.Context, queryText string, topN int, filter domain.SearchFilter) ([]domain.RetrievedPassage, error)
}

// PatientDocumentStore reads a patient's processed documents with extracted
// content, most recent first.
type PatientDocumentStore interface {
	DocumentsForPatient(ctx context.Context, patientID string) ([]domain.Document, error)
}

// DocumentRepository tracks document rows through the upload and
// processing lifecycle.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListByPatient(ctx context.Context, patientID string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveProcessingResult(ctx context.Context, id string, cls domain.Classification, content string, tokenEstimate int) error
}

// PatientRepository persists patient records.
type PatientRepository interface {
	Create(ctx context.Context, patient *domain.Patient) error
	GetByID(ctx context.Context, id string) (*domain.Patient, error)
}

// SessionStore appends and reads per-session chat turns.
type SessionStore interface {
	AppendTurn(ctx context.Context, turn domain.ChatTurn) error
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]domain.ChatTurn, error)
}

// ObjectStorage holds the raw uploaded files, keyed by storage path.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue carries document ingestion events between the API and
// the worker.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor turns a stored document into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// DocumentClassifier assigns a document type to extracted text.
type DocumentClassifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// Embedder computes dense vectors for passages and for query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits extracted text into indexable passages.
type Chunker interface {
	Split(text string) []string
}
