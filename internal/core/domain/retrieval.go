package domain

import (
	"time"
	"unicode/utf8"
)

// Query is the retrieval-facing view of a chat turn. PatientID is empty when
// the request carries no patient binding.
type Query struct {
	Text      string
	PatientID string
	History   []ChatMessage
}

func (q Query) HasPatient() bool {
	return q.PatientID != ""
}

type SearchFilter struct {
	PatientID    string
	DocumentType DocumentType
}

type RetrievedPassage struct {
	DocumentID   string       `json:"document_id"`
	PatientID    string       `json:"patient_id,omitempty"`
	DocumentType DocumentType `json:"document_type,omitempty"`
	Filename     string       `json:"filename"`
	ChunkIndex   int          `json:"chunk_index"`
	Text         string       `json:"text"`
	Score        float64      `json:"score"`
	Confidence   float64      `json:"confidence"`
	DocumentDate time.Time    `json:"document_date"`
}

type FullDocumentRef struct {
	DocumentID    string       `json:"document_id"`
	PatientID     string       `json:"patient_id,omitempty"`
	DocumentType  DocumentType `json:"document_type,omitempty"`
	Filename      string       `json:"filename"`
	Content       string       `json:"content"`
	TokenEstimate int          `json:"token_estimate"`
	Confidence    float64      `json:"confidence"`
	DocumentDate  time.Time    `json:"document_date"`
}

// RetrievalResult is what one engine pass produces before assembly.
type RetrievalResult struct {
	Passages      []RetrievedPassage `json:"passages"`
	FullDocuments []FullDocumentRef  `json:"full_documents"`
}

func (r RetrievalResult) Empty() bool {
	return len(r.Passages) == 0 && len(r.FullDocuments) == 0
}

type ContextItemKind string

const (
	ItemPassage      ContextItemKind = "passage"
	ItemFullDocument ContextItemKind = "full_document"
)

type ContextItem struct {
	Kind          ContextItemKind `json:"kind"`
	DocumentID    string          `json:"document_id"`
	DocumentType  DocumentType    `json:"document_type,omitempty"`
	Filename      string          `json:"filename"`
	ChunkIndex    int             `json:"chunk_index,omitempty"`
	Text          string          `json:"text"`
	Confidence    float64         `json:"confidence"`
	TokenEstimate int             `json:"token_estimate"`
	DocumentDate  time.Time       `json:"document_date"`
}

// ContextBundle is the assembled, budget-bounded context for one turn.
// An empty bundle with ContextUsed=false is a valid outcome, not an error.
type ContextBundle struct {
	Strategy      ContextStrategy `json:"strategy"`
	Items         []ContextItem   `json:"items"`
	TokenEstimate int             `json:"token_estimate"`
	BudgetTokens  int             `json:"budget_tokens"`
	Confidence    float64         `json:"confidence"`
	ContextUsed   bool            `json:"context_used"`
	Truncated     bool            `json:"truncated,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
}

func (b ContextBundle) PassageCount() int {
	n := 0
	for _, it := range b.Items {
		if it.Kind == ItemPassage {
			n++
		}
	}
	return n
}

func (b ContextBundle) FullDocumentCount() int {
	n := 0
	for _, it := range b.Items {
		if it.Kind == ItemFullDocument {
			n++
		}
	}
	return n
}

func (b ContextBundle) DocumentIDs() []string {
	seen := make(map[string]struct{}, len(b.Items))
	ids := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		if _, ok := seen[it.DocumentID]; ok {
			continue
		}
		seen[it.DocumentID] = struct{}{}
		ids = append(ids, it.DocumentID)
	}
	return ids
}

// EstimateTokens approximates the token cost of a text from its rune count.
// The same estimator is used for budgeting and for reported totals so the
// two never disagree.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
