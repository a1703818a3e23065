package domain

import "fmt"

// ContextStrategy names one of the retrieval shapes the engine can execute
// for a chat turn.
type ContextStrategy string

const (
	StrategyVectorsOnly           ContextStrategy = "vectors_only"
	StrategyFullDocsOnly          ContextStrategy = "full_docs_only"
	StrategyHybridSmart           ContextStrategy = "hybrid_smart"
	StrategyHybridPriorityVectors ContextStrategy = "hybrid_priority_vectors"
	StrategyHybridPriorityFull    ContextStrategy = "hybrid_priority_full"
)

func ParseContextStrategy(raw string) (ContextStrategy, error) {
	s := ContextStrategy(raw)
	if !s.Valid() {
		return "", WrapError(ErrInvalidRequest, "parse context strategy", fmt.Errorf("unknown strategy %q", raw))
	}
	return s, nil
}

func (s ContextStrategy) Valid() bool {
	switch s {
	case StrategyVectorsOnly, StrategyFullDocsOnly, StrategyHybridSmart,
		StrategyHybridPriorityVectors, StrategyHybridPriorityFull:
		return true
	}
	return false
}

// RequiresPatient reports whether the strategy reads the patient document
// store and therefore cannot run without a patient id.
func (s ContextStrategy) RequiresPatient() bool {
	return s != StrategyVectorsOnly
}

func (s ContextStrategy) UsesVectors() bool {
	return s != StrategyFullDocsOnly
}

func (s ContextStrategy) UsesFullDocuments() bool {
	return s != StrategyVectorsOnly
}

// StrategyDecision records how a strategy was chosen for one request so the
// response can carry an auditable trail.
type StrategyDecision struct {
	Strategy    ContextStrategy `json:"strategy"`
	Explicit    bool            `json:"explicit"`
	Substituted bool            `json:"substituted,omitempty"`
	Reasons     []string        `json:"reasons,omitempty"`
}
