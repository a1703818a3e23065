package usecase

import (
	"context"
	"fmt"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
)

// DocumentQueryUseCase serves document reads for the API surface.
type DocumentQueryUseCase struct {
	repo ports.DocumentRepository
}

func NewDocumentQueryUseCase(repo ports.DocumentRepository) *DocumentQueryUseCase {
	return &DocumentQueryUseCase{repo: repo}
}

func (uc *DocumentQueryUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *DocumentQueryUseCase) ListByPatient(ctx context.Context, patientID string) ([]domain.Document, error) {
	docs, err := uc.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list documents by patient: %w", err)
	}
	return docs, nil
}
