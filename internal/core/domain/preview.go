package domain

// RelevanceBuckets counts assembled items by confidence band:
// high >= 0.75, medium >= 0.45, low below that.
type RelevanceBuckets struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

type PreviewItem struct {
	Kind          ContextItemKind `json:"kind"`
	DocumentID    string          `json:"document_id"`
	DocumentType  DocumentType    `json:"document_type,omitempty"`
	Filename      string          `json:"filename"`
	Confidence    float64         `json:"confidence"`
	TokenEstimate int             `json:"token_estimate"`
	Excerpt       string          `json:"excerpt"`
}

// ContextPreview is the dry-run view of assembly: what a chat turn with the
// same query would inject, plus aggregate shape, with no completion call and
// no persisted state.
type ContextPreview struct {
	Context       ContextMetadata      `json:"context"`
	Items         []PreviewItem        `json:"items"`
	TypeBreakdown map[DocumentType]int `json:"type_breakdown"`
	Buckets       RelevanceBuckets     `json:"relevance_buckets"`
}
