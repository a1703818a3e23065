package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
)

const birthDateLayout = "2006-01-02"

type PatientUseCase struct {
	repo ports.PatientRepository
	now  func() time.Time
}

func NewPatientUseCase(repo ports.PatientRepository) *PatientUseCase {
	return &PatientUseCase{repo: repo, now: time.Now}
}

// Register creates a patient record. The birth date is optional and must be
// YYYY-MM-DD when given.
func (uc *PatientUseCase) Register(ctx context.Context, name, birthDate string) (*domain.Patient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.WrapError(domain.ErrInvalidRequest, "register patient", errors.New("name is required"))
	}

	patient := &domain.Patient{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: uc.now().UTC(),
	}
	if birthDate != "" {
		parsed, err := time.Parse(birthDateLayout, birthDate)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidRequest, "register patient", fmt.Errorf("birth date %q is not %s", birthDate, birthDateLayout))
		}
		patient.BirthDate = parsed
	}

	if err := uc.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return patient, nil
}

func (uc *PatientUseCase) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	patient, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch patient by id: %w", err)
	}
	return patient, nil
}
