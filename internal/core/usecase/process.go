package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
)

// ProcessDocumentUseCase turns an uploaded document into retrievable
// context: extract text, classify, chunk, index, persist.
type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	extractor  ports.TextExtractor
	classifier ports.DocumentClassifier
	chunker    ports.Chunker
	vectors    ports.VectorIndex
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	classifier ports.DocumentClassifier,
	chunker ports.Chunker,
	vectors ports.VectorIndex,
) *ProcessDocumentUseCase {
	return &ProcessDocumentUseCase{
		repo:       repo,
		extractor:  extractor,
		classifier: classifier,
		chunker:    chunker,
		vectors:    vectors,
	}
}

// ProcessByID runs the full pipeline for an uploaded document. Any step
// failing leaves the document in the failed state with the cause
// recorded; a clean pass flips it to ready.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	if err := uc.run(ctx, documentID); err != nil {
		if failErr := uc.repo.UpdateStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) run(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	content, err := uc.extractText(ctx, doc)
	if err != nil {
		return err
	}

	classification, err := uc.classifier.Classify(ctx, content)
	if err != nil {
		return fmt.Errorf("classify document: %w", err)
	}

	chunks := uc.chunker.Split(content)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrUnprocessable, "chunk document", errors.New("chunking produced zero chunks"))
	}

	// chunk payloads must carry the final type and date
	applyClassification(doc, classification)

	if err := uc.vectors.IndexChunks(ctx, doc, chunks); err != nil {
		return fmt.Errorf("index chunks: %w", err)
	}

	if err := uc.repo.SaveProcessingResult(ctx, doc.ID, classification, content, domain.EstimateTokens(content)); err != nil {
		return fmt.Errorf("save processing result: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrUnprocessable, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func applyClassification(doc *domain.Document, classification domain.Classification) {
	doc.Type = classification.Type
	doc.Confidence = classification.Confidence
	doc.Summary = classification.Summary
	if !classification.DocumentDate.IsZero() {
		doc.DocumentDate = classification.DocumentDate
	}
}
