package usecase

import (
	"sort"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

const (
	bucketHighConfidence   = 0.75
	bucketMediumConfidence = 0.45
)

type AssemblerConfig struct {
	DefaultDocConfidence float64
	ExcerptRunes         int
}

func (c AssemblerConfig) normalize() AssemblerConfig {
	if c.DefaultDocConfidence <= 0 || c.DefaultDocConfidence > 1 {
		c.DefaultDocConfidence = 0.5
	}
	if c.ExcerptRunes <= 0 {
		c.ExcerptRunes = 240
	}
	return c
}

// ContextAssembler merges retrieval output into an ordered, deduplicated,
// token-budgeted bundle. Every call produces a fresh bundle; nothing is
// mutated afterwards.
type ContextAssembler struct {
	cfg AssemblerConfig
}

func NewContextAssembler(cfg AssemblerConfig) *ContextAssembler {
	return &ContextAssembler{cfg: cfg.normalize()}
}

// Assemble deduplicates to one item per source document (a full document
// supersedes that document's passages, otherwise the best passage
// represents it), orders by descending confidence, and adds items whole
// until the next would exceed the budget.
func (a *ContextAssembler) Assemble(strategy domain.ContextStrategy, result domain.RetrievalResult, budgetTokens int) domain.ContextBundle {
	bundle := domain.ContextBundle{
		Strategy:     strategy,
		BudgetTokens: budgetTokens,
	}

	items := a.dedupeItems(result)
	sortContextItems(items)

	used := 0
	included := make([]domain.ContextItem, 0, len(items))
	for _, item := range items {
		if used+item.TokenEstimate > budgetTokens {
			bundle.Truncated = true
			bundle.Warnings = append(bundle.Warnings, "token budget reached before all retrieved items were included")
			break
		}
		used += item.TokenEstimate
		included = append(included, item)
	}

	bundle.Items = included
	bundle.TokenEstimate = used
	bundle.ContextUsed = len(included) > 0
	bundle.Confidence = meanConfidence(included)
	return bundle
}

// dedupeItems builds at most one context item per document id. Full
// documents inherit the confidence of their best contained passage, or the
// configured default when no passage references them.
func (a *ContextAssembler) dedupeItems(result domain.RetrievalResult) []domain.ContextItem {
	bestPassage := make(map[string]domain.RetrievedPassage, len(result.Passages))
	for _, p := range result.Passages {
		current, ok := bestPassage[p.DocumentID]
		if !ok || p.Confidence > current.Confidence {
			bestPassage[p.DocumentID] = p
		}
	}

	items := make([]domain.ContextItem, 0, len(result.FullDocuments)+len(bestPassage))
	covered := make(map[string]struct{}, len(result.FullDocuments))

	for _, doc := range result.FullDocuments {
		if _, ok := covered[doc.DocumentID]; ok {
			continue
		}
		covered[doc.DocumentID] = struct{}{}

		confidence := a.cfg.DefaultDocConfidence
		if best, ok := bestPassage[doc.DocumentID]; ok {
			confidence = best.Confidence
		}
		tokens := doc.TokenEstimate
		if tokens <= 0 {
			tokens = domain.EstimateTokens(doc.Content)
		}
		items = append(items, domain.ContextItem{
			Kind:          domain.ItemFullDocument,
			DocumentID:    doc.DocumentID,
			DocumentType:  doc.DocumentType,
			Filename:      doc.Filename,
			Text:          doc.Content,
			Confidence:    confidence,
			TokenEstimate: tokens,
			DocumentDate:  doc.DocumentDate,
		})
	}

	for _, p := range result.Passages {
		if _, ok := covered[p.DocumentID]; ok {
			continue
		}
		covered[p.DocumentID] = struct{}{}
		best := bestPassage[p.DocumentID]
		items = append(items, domain.ContextItem{
			Kind:          domain.ItemPassage,
			DocumentID:    best.DocumentID,
			DocumentType:  best.DocumentType,
			Filename:      best.Filename,
			ChunkIndex:    best.ChunkIndex,
			Text:          best.Text,
			Confidence:    best.Confidence,
			TokenEstimate: domain.EstimateTokens(best.Text),
			DocumentDate:  best.DocumentDate,
		})
	}

	return items
}

// Preview reproduces the exact bundle a chat turn would assemble and adds
// the inspection metadata: type breakdown, relevance buckets, excerpts.
func (a *ContextAssembler) Preview(decision domain.StrategyDecision, result domain.RetrievalResult, budgetTokens int) *domain.ContextPreview {
	bundle := a.Assemble(decision.Strategy, result, budgetTokens)

	preview := &domain.ContextPreview{
		Context:       bundle.Metadata(decision),
		Items:         make([]domain.PreviewItem, 0, len(bundle.Items)),
		TypeBreakdown: make(map[domain.DocumentType]int),
	}
	for _, item := range bundle.Items {
		docType := item.DocumentType
		if docType == "" {
			docType = domain.TypeOther
		}
		preview.TypeBreakdown[docType]++
		switch {
		case item.Confidence >= bucketHighConfidence:
			preview.Buckets.High++
		case item.Confidence >= bucketMediumConfidence:
			preview.Buckets.Medium++
		default:
			preview.Buckets.Low++
		}
		preview.Items = append(preview.Items, domain.PreviewItem{
			Kind:          item.Kind,
			DocumentID:    item.DocumentID,
			DocumentType:  item.DocumentType,
			Filename:      item.Filename,
			Confidence:    item.Confidence,
			TokenEstimate: item.TokenEstimate,
			Excerpt:       excerpt(item.Text, a.cfg.ExcerptRunes),
		})
	}
	return preview
}

func sortContextItems(items []domain.ContextItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Confidence != items[j].Confidence {
			return items[i].Confidence > items[j].Confidence
		}
		if !items[i].DocumentDate.Equal(items[j].DocumentDate) {
			return items[i].DocumentDate.After(items[j].DocumentDate)
		}
		if items[i].DocumentID != items[j].DocumentID {
			return items[i].DocumentID < items[j].DocumentID
		}
		return items[i].ChunkIndex < items[j].ChunkIndex
	})
}

func meanConfidence(items []domain.ContextItem) float64 {
	if len(items) == 0 {
		return 0
	}
	sum := 0.0
	for _, item := range items {
		sum += item.Confidence
	}
	return sum / float64(len(items))
}

func excerpt(text string, maxRunes int) string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes]) + "..."
}
