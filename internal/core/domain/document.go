package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

type DocumentType string

const (
	TypeLabReport        DocumentType = "lab_report"
	TypeImagingReport    DocumentType = "imaging_report"
	TypeClinicalNote     DocumentType = "clinical_note"
	TypeDischargeSummary DocumentType = "discharge_summary"
	TypePrescription     DocumentType = "prescription"
	TypeOther            DocumentType = "other"
)

// DocumentTypes lists every classification the processing pipeline may
// assign, in prompt order.
var DocumentTypes = []DocumentType{
	TypeLabReport,
	TypeImagingReport,
	TypeClinicalNote,
	TypeDischargeSummary,
	TypePrescription,
	TypeOther,
}

func ParseDocumentType(raw string) DocumentType {
	t := DocumentType(raw)
	for _, known := range DocumentTypes {
		if t == known {
			return t
		}
	}
	return TypeOther
}

type Document struct {
	ID            string         `json:"id"`
	PatientID     string         `json:"patient_id"`
	Filename      string         `json:"filename"`
	MimeType      string         `json:"mime_type"`
	StoragePath   string         `json:"storage_path"`
	Type          DocumentType   `json:"type,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Content       string         `json:"content,omitempty"`
	TokenEstimate int            `json:"token_estimate,omitempty"`
	Status        DocumentStatus `json:"status"`
	Error         string         `json:"error,omitempty"`
	DocumentDate  time.Time      `json:"document_date"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Classification is the model's verdict on an extracted document.
// DocumentDate is the clinical date found in the text, zero when none was.
type Classification struct {
	Type         DocumentType `json:"type"`
	Confidence   float64      `json:"confidence"`
	Summary      string       `json:"summary"`
	DocumentDate time.Time    `json:"document_date,omitempty"`
}

type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BirthDate time.Time `json:"birth_date"`
	CreatedAt time.Time `json:"created_at"`
}
