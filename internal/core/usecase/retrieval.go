package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
)

type RetrievalEngineConfig struct {
	TopN        int
	CallTimeout time.Duration
}

func (c RetrievalEngineConfig) normalize() RetrievalEngineConfig {
	if c.TopN <= 0 {
		c.TopN = 10
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
	return c
}

// RetrievalEngine executes one context strategy per call. It holds no
// per-query state: every call computes a fresh result from the collaborators.
type RetrievalEngine struct {
	vectors ports.VectorIndex
	docs    ports.PatientDocumentStore
	scorer  *RelevanceScorer
	cfg     RetrievalEngineConfig
	now     func() time.Time
}

func NewRetrievalEngine(
	vectors ports.VectorIndex,
	docs ports.PatientDocumentStore,
	scorer *RelevanceScorer,
	cfg RetrievalEngineConfig,
) *RetrievalEngine {
	return &RetrievalEngine{
		vectors: vectors,
		docs:    docs,
		scorer:  scorer,
		cfg:     cfg.normalize(),
		now:     time.Now,
	}
}

// Retrieve runs the strategy under the token budget and returns the strategy
// actually executed: an explicitly requested hybrid_smart without a patient
// degrades to vectors_only, every other patient-requiring strategy without a
// patient fails with MissingPatientContext.
func (e *RetrievalEngine) Retrieve(ctx context.Context, q domain.Query, strategy domain.ContextStrategy, budgetTokens int) (domain.RetrievalResult, domain.ContextStrategy, error) {
	if strategy.RequiresPatient() && !q.HasPatient() {
		if strategy != domain.StrategyHybridSmart {
			return domain.RetrievalResult{}, strategy,
				domain.WrapError(domain.ErrMissingPatientContext, "retrieve", fmt.Errorf("strategy %s requires a patient id", strategy))
		}
		strategy = domain.StrategyVectorsOnly
	}

	switch strategy {
	case domain.StrategyVectorsOnly:
		passages, err := e.searchPassages(ctx, q)
		if err != nil {
			return domain.RetrievalResult{}, strategy, err
		}
		return domain.RetrievalResult{Passages: passages}, strategy, nil

	case domain.StrategyFullDocsOnly:
		docs, err := e.patientDocuments(ctx, q.PatientID)
		if err != nil {
			return domain.RetrievalResult{}, strategy, err
		}
		return domain.RetrievalResult{FullDocuments: docs}, strategy, nil

	default:
		passages, docs, err := e.fetchBoth(ctx, q)
		if err != nil {
			return domain.RetrievalResult{}, strategy, err
		}
		switch strategy {
		case domain.StrategyHybridSmart:
			docs = smartAugment(passages, docs, budgetTokens)
		case domain.StrategyHybridPriorityVectors:
			passages, docs = fillVectorsFirst(passages, docs, budgetTokens)
		case domain.StrategyHybridPriorityFull:
			docs, passages = fillFullDocsFirst(docs, passages, budgetTokens)
		}
		return domain.RetrievalResult{Passages: passages, FullDocuments: docs}, strategy, nil
	}
}

func (e *RetrievalEngine) searchPassages(ctx context.Context, q domain.Query) ([]domain.RetrievedPassage, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	passages, err := e.vectors.Search(callCtx, q.Text, e.cfg.TopN, domain.SearchFilter{PatientID: q.PatientID})
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "vector search", err)
	}

	asOf := e.now()
	queryTokens := toTokenSet(q.Text)
	for i := range passages {
		passages[i].Confidence = e.scorer.Score(queryTokens, passages[i].Text, passages[i].Score, passages[i].DocumentDate, asOf)
	}
	sortPassages(passages)
	return passages, nil
}

func (e *RetrievalEngine) patientDocuments(ctx context.Context, patientID string) ([]domain.FullDocumentRef, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
	defer cancel()

	docs, err := e.docs.DocumentsForPatient(callCtx, patientID)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRetrievalUnavailable, "document store", err)
	}

	refs := make([]domain.FullDocumentRef, 0, len(docs))
	for _, doc := range docs {
		tokens := doc.TokenEstimate
		if tokens <= 0 {
			tokens = domain.EstimateTokens(doc.Content)
		}
		refs = append(refs, domain.FullDocumentRef{
			DocumentID:    doc.ID,
			PatientID:     doc.PatientID,
			DocumentType:  doc.Type,
			Filename:      doc.Filename,
			Content:       doc.Content,
			TokenEstimate: tokens,
			DocumentDate:  doc.DocumentDate,
		})
	}
	sortFullDocsByRecency(refs)
	return refs, nil
}

// fetchBoth issues the vector and document lookups concurrently and joins
// them before returning. A failure on either branch fails the whole pass;
// the caller decides how to degrade.
func (e *RetrievalEngine) fetchBoth(ctx context.Context, q domain.Query) ([]domain.RetrievedPassage, []domain.FullDocumentRef, error) {
	var (
		wg       sync.WaitGroup
		passages []domain.RetrievedPassage
		docs     []domain.FullDocumentRef
	)
	errChan := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		found, err := e.searchPassages(ctx, q)
		if err != nil {
			errChan <- err
			return
		}
		passages = found
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		found, err := e.patientDocuments(ctx, q.PatientID)
		if err != nil {
			errChan <- err
			return
		}
		docs = found
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, nil, err
		}
	}
	return passages, docs, nil
}

// smartAugment keeps the vector result and attaches the full document behind
// the single best passage, but only when it is projected to fit what remains
// of the budget after the passages.
func smartAugment(passages []domain.RetrievedPassage, docs []domain.FullDocumentRef, budgetTokens int) []domain.FullDocumentRef {
	if len(passages) == 0 || budgetTokens <= 0 {
		return nil
	}
	used := 0
	for _, p := range passages {
		cost := domain.EstimateTokens(p.Text)
		if used+cost > budgetTokens {
			break
		}
		used += cost
	}
	remaining := budgetTokens - used
	topDocID := passages[0].DocumentID
	for _, doc := range docs {
		if doc.DocumentID != topDocID {
			continue
		}
		if doc.TokenEstimate <= remaining {
			return []domain.FullDocumentRef{doc}
		}
		return nil
	}
	return nil
}

// fillVectorsFirst projects the budget over passages in confidence order,
// then hands the remainder to full documents in recency order.
func fillVectorsFirst(passages []domain.RetrievedPassage, docs []domain.FullDocumentRef, budgetTokens int) ([]domain.RetrievedPassage, []domain.FullDocumentRef) {
	kept, used := fitPassages(passages, budgetTokens)
	keptDocs, _ := fitFullDocs(docs, budgetTokens-used)
	return kept, keptDocs
}

// fillFullDocsFirst projects the budget over full documents in recency
// order, then hands the remainder to passages in confidence order.
func fillFullDocsFirst(docs []domain.FullDocumentRef, passages []domain.RetrievedPassage, budgetTokens int) ([]domain.FullDocumentRef, []domain.RetrievedPassage) {
	keptDocs, used := fitFullDocs(docs, budgetTokens)
	kept, _ := fitPassages(passages, budgetTokens-used)
	return keptDocs, kept
}

func fitPassages(passages []domain.RetrievedPassage, budgetTokens int) ([]domain.RetrievedPassage, int) {
	if budgetTokens <= 0 {
		return nil, 0
	}
	used := 0
	kept := make([]domain.RetrievedPassage, 0, len(passages))
	for _, p := range passages {
		cost := domain.EstimateTokens(p.Text)
		if used+cost > budgetTokens {
			break
		}
		used += cost
		kept = append(kept, p)
	}
	return kept, used
}

func fitFullDocs(docs []domain.FullDocumentRef, budgetTokens int) ([]domain.FullDocumentRef, int) {
	if budgetTokens <= 0 {
		return nil, 0
	}
	used := 0
	kept := make([]domain.FullDocumentRef, 0, len(docs))
	for _, doc := range docs {
		if used+doc.TokenEstimate > budgetTokens {
			break
		}
		used += doc.TokenEstimate
		kept = append(kept, doc)
	}
	return kept, used
}

// sortPassages orders by descending confidence; ties prefer the more recent
// document, then the lower document id, then the lower chunk index.
func sortPassages(passages []domain.RetrievedPassage) {
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Confidence != passages[j].Confidence {
			return passages[i].Confidence > passages[j].Confidence
		}
		if !passages[i].DocumentDate.Equal(passages[j].DocumentDate) {
			return passages[i].DocumentDate.After(passages[j].DocumentDate)
		}
		if passages[i].DocumentID != passages[j].DocumentID {
			return passages[i].DocumentID < passages[j].DocumentID
		}
		return passages[i].ChunkIndex < passages[j].ChunkIndex
	})
}

func sortFullDocsByRecency(docs []domain.FullDocumentRef) {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].DocumentDate.Equal(docs[j].DocumentDate) {
			return docs[i].DocumentDate.After(docs[j].DocumentDate)
		}
		return docs[i].DocumentID < docs[j].DocumentID
	})
}
