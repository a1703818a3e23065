package usecase

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

// StrategyPolicy decides a retrieval strategy for a query. Implementations
// must be total: every query yields a decision.
type StrategyPolicy interface {
	Decide(q domain.Query) domain.StrategyDecision
}

// StrategySelector resolves the strategy for a turn: explicit requests pass
// through after validation, everything else is delegated to the policy.
type StrategySelector struct {
	policy StrategyPolicy
}

func NewStrategySelector(policy StrategyPolicy) *StrategySelector {
	return &StrategySelector{policy: policy}
}

func (s *StrategySelector) Select(q domain.Query, explicit string) (domain.StrategyDecision, error) {
	if explicit != "" {
		strategy, err := domain.ParseContextStrategy(explicit)
		if err != nil {
			return domain.StrategyDecision{}, err
		}
		return domain.StrategyDecision{
			Strategy: strategy,
			Explicit: true,
			Reasons:  []string{"strategy requested by client"},
		}, nil
	}
	return s.policy.Decide(q), nil
}

// StrategyLexicon is the replaceable keyword surface of the heuristic
// policy. Lists are matched case-insensitively against query tokens.
type StrategyLexicon struct {
	LabMarkers    []string `yaml:"lab_markers"`
	LookupPhrases []string `yaml:"lookup_phrases"`
	UnitPattern   string   `yaml:"unit_pattern"`
}

func defaultLexicon() StrategyLexicon {
	return StrategyLexicon{
		LabMarkers: []string{
			"lab", "labs", "laboratory", "laboratorio", "analisis",
			"results", "resultados", "panel", "glucose", "glucosa",
			"hba1c", "hemoglobin", "hemoglobina", "cholesterol",
			"colesterol", "ldl", "hdl", "triglycerides", "trigliceridos",
			"creatinine", "creatinina", "tsh", "leukocytes", "leucocitos",
		},
		LookupPhrases: []string{
			"what is", "que es", "define", "meaning of", "significado de",
		},
		UnitPattern: `\b\d+(?:[.,]\d+)?\s*(?:mg/dl|mmol/l|g/dl|g/l|ui/l|u/l|mcg|ng/ml|%)`,
	}
}

// LoadStrategyLexicon reads a lexicon override from a YAML file. Fields left
// empty in the file keep their defaults.
func LoadStrategyLexicon(path string) (StrategyLexicon, error) {
	lexicon := defaultLexicon()
	data, err := os.ReadFile(path)
	if err != nil {
		return lexicon, fmt.Errorf("read strategy lexicon: %w", err)
	}
	var loaded StrategyLexicon
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return lexicon, fmt.Errorf("parse strategy lexicon: %w", err)
	}
	if len(loaded.LabMarkers) > 0 {
		lexicon.LabMarkers = loaded.LabMarkers
	}
	if len(loaded.LookupPhrases) > 0 {
		lexicon.LookupPhrases = loaded.LookupPhrases
	}
	if loaded.UnitPattern != "" {
		lexicon.UnitPattern = loaded.UnitPattern
	}
	return lexicon, nil
}

type HeuristicConfig struct {
	Lexicon         StrategyLexicon
	ShortQueryWords int
}

// HeuristicPolicy classifies queries with keyword and unit-pattern signals.
// Checks run in priority order; the final branch is unconditional, so the
// policy is total.
type HeuristicPolicy struct {
	shortQueryWords int
	labMarkers      map[string]struct{}
	lookupPhrases   []string
	unitPattern     *regexp.Regexp
}

func NewHeuristicPolicy(cfg HeuristicConfig) (*HeuristicPolicy, error) {
	lexicon := cfg.Lexicon
	if len(lexicon.LabMarkers) == 0 && len(lexicon.LookupPhrases) == 0 && lexicon.UnitPattern == "" {
		lexicon = defaultLexicon()
	}
	if lexicon.UnitPattern == "" {
		lexicon.UnitPattern = defaultLexicon().UnitPattern
	}
	unitPattern, err := regexp.Compile(lexicon.UnitPattern)
	if err != nil {
		return nil, fmt.Errorf("compile unit pattern: %w", err)
	}

	markers := make(map[string]struct{}, len(lexicon.LabMarkers))
	for _, marker := range lexicon.LabMarkers {
		markers[strings.ToLower(strings.TrimSpace(marker))] = struct{}{}
	}
	phrases := make([]string, 0, len(lexicon.LookupPhrases))
	for _, phrase := range lexicon.LookupPhrases {
		phrases = append(phrases, strings.ToLower(strings.TrimSpace(phrase)))
	}

	shortWords := cfg.ShortQueryWords
	if shortWords <= 0 {
		shortWords = 3
	}
	return &HeuristicPolicy{
		shortQueryWords: shortWords,
		labMarkers:      markers,
		lookupPhrases:   phrases,
		unitPattern:     unitPattern,
	}, nil
}

func (p *HeuristicPolicy) Decide(q domain.Query) domain.StrategyDecision {
	if !q.HasPatient() {
		return heuristicDecision(domain.StrategyVectorsOnly, "no patient bound to the request")
	}
	if p.hasLabSignal(q.Text) {
		return heuristicDecision(domain.StrategyHybridPriorityFull, "lab or numeric markers in query")
	}
	if p.isShortLookup(q.Text) {
		if p.historyHasLabSignal(q.History) {
			return heuristicDecision(domain.StrategyHybridSmart, "short follow-up inside a clinical thread")
		}
		return heuristicDecision(domain.StrategyVectorsOnly, "short lookup query")
	}
	return heuristicDecision(domain.StrategyHybridSmart, "default for patient-bound conversational query")
}

func (p *HeuristicPolicy) hasLabSignal(text string) bool {
	lower := strings.ToLower(text)
	if p.unitPattern.MatchString(lower) {
		return true
	}
	for _, token := range splitAlphaNumLower(text) {
		if _, ok := p.labMarkers[token]; ok {
			return true
		}
	}
	return false
}

func (p *HeuristicPolicy) isShortLookup(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range p.lookupPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	words := splitAlphaNumLower(text)
	return len(words) > 0 && len(words) <= p.shortQueryWords
}

func (p *HeuristicPolicy) historyHasLabSignal(history []domain.ChatMessage) bool {
	for _, msg := range history {
		if msg.Role != domain.RoleUser && msg.Role != domain.RoleAssistant {
			continue
		}
		if p.hasLabSignal(msg.Content) {
			return true
		}
	}
	return false
}

func heuristicDecision(strategy domain.ContextStrategy, reason string) domain.StrategyDecision {
	return domain.StrategyDecision{Strategy: strategy, Reasons: []string{reason}}
}
