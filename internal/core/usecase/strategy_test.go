package usecase

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

func newTestSelector(t *testing.T) *StrategySelector {
	t.Helper()
	policy, err := NewHeuristicPolicy(HeuristicConfig{})
	if err != nil {
		t.Fatalf("build heuristic policy: %v", err)
	}
	return NewStrategySelector(policy)
}

func TestSelectExplicitStrategyPassesThrough(t *testing.T) {
	selector := newTestSelector(t)

	decision, err := selector.Select(domain.Query{Text: "anything", PatientID: "PAT001"}, "full_docs_only")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Strategy != domain.StrategyFullDocsOnly {
		t.Fatalf("expected full_docs_only, got %s", decision.Strategy)
	}
	if !decision.Explicit {
		t.Fatalf("expected explicit decision")
	}
}

func TestSelectUnknownExplicitStrategyIsInvalidRequest(t *testing.T) {
	selector := newTestSelector(t)

	_, err := selector.Select(domain.Query{Text: "anything"}, "vectors_first")
	if err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
	if !domain.IsKind(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request kind, got %v", err)
	}
}

func TestSelectWithoutPatientAlwaysVectorsOnly(t *testing.T) {
	selector := newTestSelector(t)

	// Lab markers normally force hybrid_priority_full, but not without a patient.
	decision, err := selector.Select(domain.Query{Text: "show my recent lab results and glucose trend"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Strategy != domain.StrategyVectorsOnly {
		t.Fatalf("expected vectors_only without patient, got %s", decision.Strategy)
	}
	if decision.Explicit {
		t.Fatalf("expected heuristic decision")
	}
}

func TestSelectLabMarkersPreferFullDocuments(t *testing.T) {
	selector := newTestSelector(t)

	decision, err := selector.Select(domain.Query{
		Text:      "muestra los resultados de laboratorio recientes",
		PatientID: "PAT002",
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Strategy != domain.StrategyHybridPriorityFull {
		t.Fatalf("expected hybrid_priority_full, got %s", decision.Strategy)
	}
}

func TestSelectNumericUnitsPreferFullDocuments(t *testing.T) {
	selector := newTestSelector(t)

	decision, err := selector.Select(domain.Query{
		Text:      "is a value of 7.2 mmol/l concerning for this patient",
		PatientID: "PAT002",
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Strategy != domain.StrategyHybridPriorityFull {
		t.Fatalf("expected hybrid_priority_full, got %s", decision.Strategy)
	}
}

func TestSelectShortLookupUsesVectorsOnly(t *testing.T) {
	selector := newTestSelector(t)

	decision, err := selector.Select(domain.Query{Text: "dolor abdominal", PatientID: "PAT001"}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Strategy != domain.StrategyVectorsOnly {
		t.Fatalf("expected vectors_only for short lookup, got %s", decision.Strategy)
	}
}

func TestSelectShortFollowUpKeepsClinicalThread(t *testing.T) {
	selector := newTestSelector(t)

	decision, err := selector.Select(domain.Query{
		Text:      "y antes",
		PatientID: "PAT001",
		History: []domain.ChatMessage{
			{Role: domain.RoleUser, Content: "resultados de laboratorio de marzo"},
		},
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Strategy != domain.StrategyHybridSmart {
		t.Fatalf("expected hybrid_smart for clinical follow-up, got %s", decision.Strategy)
	}
}

func TestSelectDefaultIsHybridSmart(t *testing.T) {
	selector := newTestSelector(t)

	decision, err := selector.Select(domain.Query{
		Text:      "how has the patient responded to the current treatment plan",
		PatientID: "PAT001",
	}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decision.Strategy != domain.StrategyHybridSmart {
		t.Fatalf("expected hybrid_smart default, got %s", decision.Strategy)
	}
	if len(decision.Reasons) == 0 {
		t.Fatalf("expected a recorded reason")
	}
}

func TestLoadStrategyLexiconOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	content := "lab_markers:\n  - ferritin\nlookup_phrases:\n  - tell me about\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write lexicon: %v", err)
	}

	lexicon, err := LoadStrategyLexicon(path)
	if err != nil {
		t.Fatalf("load lexicon: %v", err)
	}
	if len(lexicon.LabMarkers) != 1 || lexicon.LabMarkers[0] != "ferritin" {
		t.Fatalf("expected overridden lab markers, got %v", lexicon.LabMarkers)
	}
	if lexicon.UnitPattern == "" {
		t.Fatalf("expected default unit pattern to survive")
	}

	policy, err := NewHeuristicPolicy(HeuristicConfig{Lexicon: lexicon})
	if err != nil {
		t.Fatalf("build policy: %v", err)
	}
	decision := policy.Decide(domain.Query{Text: "latest ferritin please", PatientID: "PAT001"})
	if decision.Strategy != domain.StrategyHybridPriorityFull {
		t.Fatalf("expected custom marker to trigger hybrid_priority_full, got %s", decision.Strategy)
	}
}
