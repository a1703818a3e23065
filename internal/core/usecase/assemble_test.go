package usecase

import (
	"strings"
	"testing"
	"time"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

func TestAssembleFullDocumentSupersedesPassage(t *testing.T) {
	assembler := NewContextAssembler(AssemblerConfig{})
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	bundle := assembler.Assemble(domain.StrategyHybridSmart, domain.RetrievalResult{
		Passages: []domain.RetrievedPassage{
			{DocumentID: "doc-1", Text: "passage from doc-1", Confidence: 0.9, DocumentDate: date},
			{DocumentID: "doc-2", Text: "passage from doc-2", Confidence: 0.6, DocumentDate: date},
		},
		FullDocuments: []domain.FullDocumentRef{
			{DocumentID: "doc-1", Content: "entire doc-1", TokenEstimate: 10, DocumentDate: date},
		},
	}, 1000)

	if len(bundle.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(bundle.Items))
	}
	seen := map[string]domain.ContextItemKind{}
	for _, item := range bundle.Items {
		if _, dup := seen[item.DocumentID]; dup {
			t.Fatalf("duplicate document %s in bundle", item.DocumentID)
		}
		seen[item.DocumentID] = item.Kind
	}
	if seen["doc-1"] != domain.ItemFullDocument {
		t.Fatalf("expected full document to supersede the doc-1 passage")
	}
	if seen["doc-2"] != domain.ItemPassage {
		t.Fatalf("expected doc-2 to stay a passage")
	}
}

func TestAssembleFullDocumentInheritsBestPassageConfidence(t *testing.T) {
	assembler := NewContextAssembler(AssemblerConfig{DefaultDocConfidence: 0.5})
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	bundle := assembler.Assemble(domain.StrategyHybridPriorityFull, domain.RetrievalResult{
		Passages: []domain.RetrievedPassage{
			{DocumentID: "doc-1", ChunkIndex: 0, Text: "weak", Confidence: 0.3, DocumentDate: date},
			{DocumentID: "doc-1", ChunkIndex: 1, Text: "strong", Confidence: 0.8, DocumentDate: date},
		},
		FullDocuments: []domain.FullDocumentRef{
			{DocumentID: "doc-1", Content: "doc one", TokenEstimate: 5, DocumentDate: date},
			{DocumentID: "doc-2", Content: "doc two", TokenEstimate: 5, DocumentDate: date},
		},
	}, 1000)

	byID := map[string]domain.ContextItem{}
	for _, item := range bundle.Items {
		byID[item.DocumentID] = item
	}
	if byID["doc-1"].Confidence != 0.8 {
		t.Fatalf("expected doc-1 to inherit 0.8, got %f", byID["doc-1"].Confidence)
	}
	if byID["doc-2"].Confidence != 0.5 {
		t.Fatalf("expected doc-2 default 0.5, got %f", byID["doc-2"].Confidence)
	}
}

func TestAssembleKeepsSingleBestPassagePerDocument(t *testing.T) {
	assembler := NewContextAssembler(AssemblerConfig{})
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	bundle := assembler.Assemble(domain.StrategyVectorsOnly, domain.RetrievalResult{
		Passages: []domain.RetrievedPassage{
			{DocumentID: "doc-1", ChunkIndex: 2, Text: "better", Confidence: 0.9, DocumentDate: date},
			{DocumentID: "doc-1", ChunkIndex: 0, Text: "worse", Confidence: 0.4, DocumentDate: date},
		},
	}, 1000)

	if len(bundle.Items) != 1 {
		t.Fatalf("expected one item per document, got %d", len(bundle.Items))
	}
	if bundle.Items[0].ChunkIndex != 2 || bundle.Items[0].Text != "better" {
		t.Fatalf("expected the higher-confidence passage, got %+v", bundle.Items[0])
	}
}

func TestAssembleRespectsTokenBudgetWholeItems(t *testing.T) {
	assembler := NewContextAssembler(AssemblerConfig{})
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	bundle := assembler.Assemble(domain.StrategyVectorsOnly, domain.RetrievalResult{
		Passages: []domain.RetrievedPassage{
			{DocumentID: "doc-1", Text: strings.Repeat("a", 200), Confidence: 0.9, DocumentDate: date},
			{DocumentID: "doc-2", Text: strings.Repeat("b", 200), Confidence: 0.8, DocumentDate: date},
			{DocumentID: "doc-3", Text: strings.Repeat("c", 200), Confidence: 0.7, DocumentDate: date},
		},
	}, 110)

	// Each passage is ~50 tokens: two fit, the third would exceed 110.
	if len(bundle.Items) != 2 {
		t.Fatalf("expected 2 items within budget, got %d", len(bundle.Items))
	}
	if bundle.TokenEstimate > 110 {
		t.Fatalf("token estimate %d exceeds budget", bundle.TokenEstimate)
	}
	if !bundle.Truncated {
		t.Fatalf("expected truncation flag")
	}
	if len(bundle.Warnings) == 0 {
		t.Fatalf("expected truncation warning")
	}
}

func TestAssembleEmptyResultIsValidBundle(t *testing.T) {
	assembler := NewContextAssembler(AssemblerConfig{})

	bundle := assembler.Assemble(domain.StrategyVectorsOnly, domain.RetrievalResult{}, 500)
	if bundle.ContextUsed {
		t.Fatalf("expected context_used=false")
	}
	if len(bundle.Items) != 0 || bundle.TokenEstimate != 0 {
		t.Fatalf("expected empty bundle, got %+v", bundle)
	}
	if bundle.Confidence != 0 {
		t.Fatalf("expected zero confidence for empty bundle, got %f", bundle.Confidence)
	}
}

func TestAssembleOrdersByConfidenceDescending(t *testing.T) {
	assembler := NewContextAssembler(AssemblerConfig{DefaultDocConfidence: 0.5})
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	bundle := assembler.Assemble(domain.StrategyHybridPriorityVectors, domain.RetrievalResult{
		Passages: []domain.RetrievedPassage{
			{DocumentID: "doc-low", Text: "low", Confidence: 0.2, DocumentDate: date},
			{DocumentID: "doc-high", Text: "high", Confidence: 0.95, DocumentDate: date},
		},
		FullDocuments: []domain.FullDocumentRef{
			{DocumentID: "doc-mid", Content: "mid", TokenEstimate: 1, DocumentDate: date},
		},
	}, 1000)

	if len(bundle.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(bundle.Items))
	}
	want := []string{"doc-high", "doc-mid", "doc-low"}
	for i, id := range want {
		if bundle.Items[i].DocumentID != id {
			t.Fatalf("expected order %v, got item %d = %s", want, i, bundle.Items[i].DocumentID)
		}
	}
}

func TestPreviewReportsBreakdownAndBuckets(t *testing.T) {
	assembler := NewContextAssembler(AssemblerConfig{ExcerptRunes: 10})
	date := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	decision := domain.StrategyDecision{Strategy: domain.StrategyHybridSmart, Reasons: []string{"default"}}

	preview := assembler.Preview(decision, domain.RetrievalResult{
		Passages: []domain.RetrievedPassage{
			{DocumentID: "doc-1", DocumentType: domain.TypeLabReport, Text: "glucose values from the march panel", Confidence: 0.9, DocumentDate: date},
			{DocumentID: "doc-2", DocumentType: domain.TypeClinicalNote, Text: "short note", Confidence: 0.5, DocumentDate: date},
			{DocumentID: "doc-3", Text: "untyped", Confidence: 0.1, DocumentDate: date},
		},
	}, 1000)

	if preview.Context.Strategy != domain.StrategyHybridSmart || !preview.Context.ContextUsed {
		t.Fatalf("unexpected preview context: %+v", preview.Context)
	}
	if preview.TypeBreakdown[domain.TypeLabReport] != 1 || preview.TypeBreakdown[domain.TypeOther] != 1 {
		t.Fatalf("unexpected type breakdown: %+v", preview.TypeBreakdown)
	}
	if preview.Buckets.High != 1 || preview.Buckets.Medium != 1 || preview.Buckets.Low != 1 {
		t.Fatalf("unexpected buckets: %+v", preview.Buckets)
	}
	if len(preview.Items[0].Excerpt) == 0 || len([]rune(preview.Items[0].Excerpt)) > 13 {
		t.Fatalf("expected bounded excerpt, got %q", preview.Items[0].Excerpt)
	}
}
