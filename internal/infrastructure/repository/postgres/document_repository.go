package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, patient_id, filename, mime_type, storage_path, doc_type, confidence, summary,
	content, token_estimate, status, error_message, document_date, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
`,
		doc.ID, doc.PatientID, doc.Filename, doc.MimeType, doc.StoragePath, string(doc.Type),
		doc.Confidence, doc.Summary, doc.Content, doc.TokenEstimate, string(doc.Status),
		doc.Error, nullableTime(doc.DocumentDate), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const documentColumns = `id, patient_id, filename, mime_type, storage_path, doc_type, confidence, summary,
content, token_estimate, status, error_message, document_date, created_at, updated_at`

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document by id", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return doc, nil
}

// ListByPatient returns a patient's documents, newest upload first.
func (r *DocumentRepository) ListByPatient(ctx context.Context, patientID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE patient_id = $1
ORDER BY created_at DESC
`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

// DocumentsForPatient returns only processed documents with their extracted
// content, most recent clinical date first.
func (r *DocumentRepository) DocumentsForPatient(ctx context.Context, patientID string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE patient_id = $1 AND status = $2
ORDER BY document_date DESC NULLS LAST, created_at DESC
`, patientID, string(domain.StatusReady))
	if err != nil {
		return nil, fmt.Errorf("list ready documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return requireDocumentRow(result, id, "update document status")
}

// SaveProcessingResult records the classification verdict and extracted
// content. The document date is only replaced when classification found one.
func (r *DocumentRepository) SaveProcessingResult(ctx context.Context, id string, cls domain.Classification, content string, tokenEstimate int) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE documents
SET doc_type = $2, confidence = $3, summary = $4, content = $5, token_estimate = $6,
	document_date = COALESCE($7, document_date), updated_at = $8
WHERE id = $1
`, id, string(cls.Type), cls.Confidence, cls.Summary, content, tokenEstimate,
		nullableTime(cls.DocumentDate), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save processing result: %w", err)
	}
	return requireDocumentRow(result, id, "save processing result")
}

func requireDocumentRow(result sql.Result, id, operation string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, operation, fmt.Errorf("id=%s", id))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var docType, status string
	var documentDate sql.NullTime

	err := row.Scan(
		&doc.ID, &doc.PatientID, &doc.Filename, &doc.MimeType, &doc.StoragePath,
		&docType, &doc.Confidence, &doc.Summary, &doc.Content, &doc.TokenEstimate,
		&status, &doc.Error, &documentDate, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Type = domain.DocumentType(docType)
	doc.Status = domain.DocumentStatus(status)
	if documentDate.Valid {
		doc.DocumentDate = documentDate.Time
	}
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	out := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
