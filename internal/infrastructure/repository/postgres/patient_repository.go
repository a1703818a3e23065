package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

type PatientRepository struct {
	db *sql.DB
}

func NewPatientRepository(db *sql.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, patient *domain.Patient) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO patients (id, name, birth_date, created_at)
VALUES ($1,$2,$3,$4)
`, patient.ID, patient.Name, nullableTime(patient.BirthDate), patient.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id string) (*domain.Patient, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, birth_date, created_at
FROM patients
WHERE id = $1
`, id)

	var patient domain.Patient
	var birthDate sql.NullTime
	err := row.Scan(&patient.ID, &patient.Name, &birthDate, &patient.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrPatientNotFound, "get patient by id", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	if birthDate.Valid {
		patient.BirthDate = birthDate.Time
	}
	return &patient, nil
}
