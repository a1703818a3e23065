package usecase

import (
	"testing"
	"time"
)

func TestRelevanceScoreClampsToUnitInterval(t *testing.T) {
	scorer := NewRelevanceScorer(RelevanceConfig{})
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := asOf.AddDate(0, -1, 0)

	got := scorer.Score(toTokenSet("glucose hba1c"), "glucose hba1c panel", 3.5, recent, asOf)
	if got > 1 {
		t.Fatalf("expected score <= 1, got %f", got)
	}
	got = scorer.Score(toTokenSet("glucose"), "unrelated", -0.7, recent, asOf)
	if got < 0 {
		t.Fatalf("expected score >= 0, got %f", got)
	}
}

func TestRelevanceScoreKeywordBoostIsBounded(t *testing.T) {
	scorer := NewRelevanceScorer(RelevanceConfig{KeywordBoostMax: 0.2})
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	recent := asOf.AddDate(0, -1, 0)

	base := scorer.Score(toTokenSet("creatinine"), "no relation at all", 0.5, recent, asOf)
	boosted := scorer.Score(toTokenSet("creatinine"), "creatinine level stable", 0.5, recent, asOf)
	if boosted <= base {
		t.Fatalf("expected overlap to raise score, base %f boosted %f", base, boosted)
	}
	if boosted > base+0.2+1e-9 {
		t.Fatalf("expected boost capped at 0.2, base %f boosted %f", base, boosted)
	}
}

func TestRelevanceScoreRecencyDecayLinearWithFloor(t *testing.T) {
	scorer := NewRelevanceScorer(RelevanceConfig{
		RecencyThreshold:   365 * 24 * time.Hour,
		RecencyDecayWindow: 2 * 365 * 24 * time.Hour,
	})
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tokens := toTokenSet("none")

	fresh := scorer.Score(tokens, "text", 0.8, asOf.AddDate(0, -6, 0), asOf)
	if fresh != 0.8 {
		t.Fatalf("expected no decay inside threshold, got %f", fresh)
	}

	halfway := scorer.Score(tokens, "text", 0.8, asOf.AddDate(-2, 0, 0), asOf)
	if halfway >= fresh || halfway <= 0 {
		t.Fatalf("expected partial decay at two years, got %f", halfway)
	}

	ancient := scorer.Score(tokens, "text", 0.8, asOf.AddDate(-10, 0, 0), asOf)
	if ancient != 0 {
		t.Fatalf("expected floor of zero for ancient document, got %f", ancient)
	}
}

func TestRelevanceScoreDeterministic(t *testing.T) {
	scorer := NewRelevanceScorer(RelevanceConfig{})
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	docDate := asOf.AddDate(-3, 0, 0)
	tokens := toTokenSet("dolor abdominal")

	first := scorer.Score(tokens, "dolor abdominal persistente", 0.61, docDate, asOf)
	second := scorer.Score(tokens, "dolor abdominal persistente", 0.61, docDate, asOf)
	if first != second {
		t.Fatalf("expected identical scores for identical inputs, got %f and %f", first, second)
	}
}

func TestRelevanceScoreZeroDateSkipsDecay(t *testing.T) {
	scorer := NewRelevanceScorer(RelevanceConfig{})
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	got := scorer.Score(toTokenSet("x"), "y", 0.4, time.Time{}, asOf)
	if got != 0.4 {
		t.Fatalf("expected undated document to keep base score, got %f", got)
	}
}
