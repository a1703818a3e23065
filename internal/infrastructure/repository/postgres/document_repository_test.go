package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

func newMockedRepo(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &DocumentRepository{db: db}, mock
}

func documentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "patient_id", "filename", "mime_type", "storage_path", "doc_type",
		"confidence", "summary", "content", "token_estimate", "status",
		"error_message", "document_date", "created_at", "updated_at",
	})
}

func TestGetByIDMapsNoRowsToNotFound(t *testing.T) {
	repo, mock := newMockedRepo(t)

	mock.ExpectQuery("SELECT id, patient_id, filename").
		WithArgs("doc-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "doc-404")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusZeroRowsIsNotFound(t *testing.T) {
	repo, mock := newMockedRepo(t)

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-404", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "doc-404", domain.StatusProcessing, "")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveProcessingResultWritesClassificationAndContent(t *testing.T) {
	repo, mock := newMockedRepo(t)

	date := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "lab_report", 0.93, "fasting glucose panel", "glucose 7.2 mmol/l", 42, date, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveProcessingResult(context.Background(), "doc-1", domain.Classification{
		Type:         domain.TypeLabReport,
		Confidence:   0.93,
		Summary:      "fasting glucose panel",
		DocumentDate: date,
	}, "glucose 7.2 mmol/l", 42)
	if err != nil {
		t.Fatalf("SaveProcessingResult() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveProcessingResultPassesNullDateWhenClassificationLacksOne(t *testing.T) {
	repo, mock := newMockedRepo(t)

	mock.ExpectExec("UPDATE documents").
		WithArgs("doc-1", "clinical_note", 0.5, "", "note text", 3, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveProcessingResult(context.Background(), "doc-1", domain.Classification{
		Type:       domain.TypeClinicalNote,
		Confidence: 0.5,
	}, "note text", 3)
	if err != nil {
		t.Fatalf("SaveProcessingResult() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDocumentsForPatientReturnsReadyWithContent(t *testing.T) {
	repo, mock := newMockedRepo(t)

	now := time.Now().UTC()
	rows := documentRows().
		AddRow("doc-2", "PAT001", "mri.pdf", "application/pdf", "sp2", "imaging_report",
			0.8, "knee mri", "mri findings", 80, "ready", "", now, now, now).
		AddRow("doc-1", "PAT001", "labs.pdf", "application/pdf", "sp1", "lab_report",
			0.9, "glucose panel", "glucose 7.2", 40, "ready", "", nil, now, now)

	mock.ExpectQuery("FROM documents").
		WithArgs("PAT001", string(domain.StatusReady)).
		WillReturnRows(rows)

	docs, err := repo.DocumentsForPatient(context.Background(), "PAT001")
	if err != nil {
		t.Fatalf("DocumentsForPatient() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Type != domain.TypeImagingReport || docs[0].Content != "mri findings" {
		t.Fatalf("first doc = %+v", docs[0])
	}
	if !docs[1].DocumentDate.IsZero() {
		t.Fatalf("expected zero document date for null column, got %v", docs[1].DocumentDate)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
