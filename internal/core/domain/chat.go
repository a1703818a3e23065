package domain

import (
	"fmt"
	"time"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

type ChatMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolName  string     `json:"tool_name,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

type ToolCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type ToolEvent struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
	Output string `json:"output"`
}

type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	// FinishToolLimit marks a turn that hit the tool-call ceiling and was
	// answered with whatever the model produced, not failed.
	FinishToolLimit FinishReason = "tool_limit"
)

type CompletionResult struct {
	Text         string       `json:"text"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        TokenUsage   `json:"usage"`
	Model        string       `json:"model,omitempty"`
}

type ModelTier string

const (
	TierAdvanced ModelTier = "advanced"
	TierFast     ModelTier = "fast"
)

// ParseModelTier maps the caller-facing model selector onto a tier.
// An empty selector falls back to the advanced tier.
func ParseModelTier(raw string) (ModelTier, error) {
	switch ModelTier(raw) {
	case "", TierAdvanced:
		return TierAdvanced, nil
	case TierFast:
		return TierFast, nil
	default:
		return "", WrapError(ErrInvalidRequest, "parse model tier", fmt.Errorf("unknown model %q", raw))
	}
}

// ToolDefinition describes a tool offered to the completion service,
// parameters as a JSON schema object.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type CompletionOptions struct {
	Tools       []ToolDefinition `json:"tools,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
}

// TurnState is the chat orchestrator's lifecycle position. Transitions only
// move forward; COMPLETED and FAILED are terminal.
type TurnState string

const (
	TurnReceived            TurnState = "received"
	TurnStrategySelected    TurnState = "strategy_selected"
	TurnContextAssembled    TurnState = "context_assembled"
	TurnCompletionRequested TurnState = "completion_requested"
	TurnToolCallLoop        TurnState = "tool_call_loop"
	TurnCompleted           TurnState = "completed"
	TurnFailed              TurnState = "failed"
)

type ChatLimits struct {
	MaxToolCalls      int           `json:"max_tool_calls"`
	Timeout           time.Duration `json:"timeout"`
	CompletionTimeout time.Duration `json:"completion_timeout"`
	ToolTimeout       time.Duration `json:"tool_timeout"`
	HistoryTurns      int           `json:"history_turns"`
}

type ChatRequest struct {
	SessionID string        `json:"session_id,omitempty"`
	PatientID string        `json:"patient_id,omitempty"`
	Strategy  string        `json:"strategy,omitempty"`
	Model     string        `json:"model,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

// ContextMetadata is the audit block attached to every chat and preview
// response. It is derived from the assembled bundle, never recomputed.
type ContextMetadata struct {
	Strategy          ContextStrategy `json:"strategy"`
	Explicit          bool            `json:"explicit_strategy"`
	Substituted       bool            `json:"substituted,omitempty"`
	Reasons           []string        `json:"reasons,omitempty"`
	ContextUsed       bool            `json:"context_used"`
	PassageCount      int             `json:"passage_count"`
	FullDocumentCount int             `json:"full_document_count"`
	TokenEstimate     int             `json:"token_estimate"`
	BudgetTokens      int             `json:"budget_tokens"`
	Confidence        float64         `json:"confidence"`
	Truncated         bool            `json:"truncated,omitempty"`
	Warnings          []string        `json:"warnings,omitempty"`
	DocumentIDs       []string        `json:"document_ids,omitempty"`
}

// Metadata projects the bundle and its strategy decision into the response
// audit block.
func (b ContextBundle) Metadata(decision StrategyDecision) ContextMetadata {
	return ContextMetadata{
		Strategy:          b.Strategy,
		Explicit:          decision.Explicit,
		Substituted:       decision.Substituted,
		Reasons:           decision.Reasons,
		ContextUsed:       b.ContextUsed,
		PassageCount:      b.PassageCount(),
		FullDocumentCount: b.FullDocumentCount(),
		TokenEstimate:     b.TokenEstimate,
		BudgetTokens:      b.BudgetTokens,
		Confidence:        b.Confidence,
		Truncated:         b.Truncated,
		Warnings:          b.Warnings,
		DocumentIDs:       b.DocumentIDs(),
	}
}

type ChatResponse struct {
	ID           string          `json:"id"`
	SessionID    string          `json:"session_id"`
	State        TurnState       `json:"state"`
	Answer       string          `json:"answer"`
	FinishReason FinishReason    `json:"finish_reason"`
	Model        string          `json:"model,omitempty"`
	Usage        TokenUsage      `json:"usage"`
	Context      ContextMetadata `json:"context"`
	ToolEvents   []ToolEvent     `json:"tool_events,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ChatTurn is the persisted record of one completed turn.
type ChatTurn struct {
	ID               string          `json:"id"`
	SessionID        string          `json:"session_id"`
	PatientID        string          `json:"patient_id,omitempty"`
	Question         string          `json:"question"`
	Answer           string          `json:"answer"`
	Strategy         ContextStrategy `json:"strategy"`
	ContextUsed      bool            `json:"context_used"`
	Confidence       float64         `json:"confidence"`
	ContextTokens    int             `json:"context_tokens"`
	PromptTokens     int             `json:"prompt_tokens"`
	CompletionTokens int             `json:"completion_tokens"`
	CreatedAt        time.Time       `json:"created_at"`
}
