package usecase

import (
	"strings"
	"time"
	"unicode"
)

// RelevanceConfig bounds the scorer. Zero values fall back to defaults.
type RelevanceConfig struct {
	KeywordBoostMax    float64
	RecencyThreshold   time.Duration
	RecencyDecayWindow time.Duration
}

func (c RelevanceConfig) normalize() RelevanceConfig {
	if c.KeywordBoostMax <= 0 {
		c.KeywordBoostMax = 0.2
	}
	if c.KeywordBoostMax > 1 {
		c.KeywordBoostMax = 1
	}
	if c.RecencyThreshold <= 0 {
		c.RecencyThreshold = 365 * 24 * time.Hour
	}
	if c.RecencyDecayWindow <= 0 {
		c.RecencyDecayWindow = 4 * 365 * 24 * time.Hour
	}
	return c
}

// RelevanceScorer turns raw retrieval scores into calibrated confidences.
// Scoring is pure: the reference time is an explicit input, so equal inputs
// always produce equal outputs.
type RelevanceScorer struct {
	cfg RelevanceConfig
}

func NewRelevanceScorer(cfg RelevanceConfig) *RelevanceScorer {
	return &RelevanceScorer{cfg: cfg.normalize()}
}

// Score combines the clamped base score with a bounded keyword-overlap
// boost, clamps again, then applies linear recency decay. The result is
// always in [0,1].
func (s *RelevanceScorer) Score(queryTokens map[string]struct{}, text string, baseScore float64, documentDate, asOf time.Time) float64 {
	confidence := clamp01(baseScore)
	boost := s.cfg.KeywordBoostMax * tokenOverlap(queryTokens, toTokenSet(text))
	confidence = clamp01(confidence + boost)
	return confidence * s.recencyFactor(documentDate, asOf)
}

// recencyFactor is 1 for documents younger than the threshold, then decays
// linearly across the decay window down to a floor of 0.
func (s *RelevanceScorer) recencyFactor(documentDate, asOf time.Time) float64 {
	if documentDate.IsZero() || !documentDate.Before(asOf) {
		return 1
	}
	age := asOf.Sub(documentDate)
	if age <= s.cfg.RecencyThreshold {
		return 1
	}
	past := age - s.cfg.RecencyThreshold
	if past >= s.cfg.RecencyDecayWindow {
		return 0
	}
	return 1 - float64(past)/float64(s.cfg.RecencyDecayWindow)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func tokenOverlap(query, text map[string]struct{}) float64 {
	if len(query) == 0 || len(text) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := text[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
