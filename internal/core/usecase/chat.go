package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/core/ports"
)

const (
	toolSearchPassages      = "search_passages"
	toolGetPatientDocuments = "get_patient_documents"

	defaultToolTopN = 5
)

const (
	defaultMaxToolCalls        = 5
	defaultChatTimeout         = 90 * time.Second
	defaultCompletionTimeout   = 60 * time.Second
	defaultToolTimeout         = 15 * time.Second
	defaultHistoryTurns        = 6
	defaultContextBudget       = 3000
	defaultMaxCompletionTokens = 1024
	defaultTemperature         = 0.2
)

// toolLimitFallback answers a turn whose model never produced text before
// the tool budget ran out.
const toolLimitFallback = "I reached the tool lookup limit for this turn before finishing. Ask again with a narrower question so I can answer directly."

// ChatConfig tunes the orchestration around a single assistant turn.
type ChatConfig struct {
	Limits              domain.ChatLimits
	ContextBudgetTokens int
	MaxCompletionTokens int
	Temperature         float64
	ToolsEnabled        bool
}

func (c ChatConfig) normalize() ChatConfig {
	if c.Limits.MaxToolCalls <= 0 {
		c.Limits.MaxToolCalls = defaultMaxToolCalls
	}
	if c.Limits.Timeout <= 0 {
		c.Limits.Timeout = defaultChatTimeout
	}
	if c.Limits.CompletionTimeout <= 0 {
		c.Limits.CompletionTimeout = defaultCompletionTimeout
	}
	if c.Limits.ToolTimeout <= 0 {
		c.Limits.ToolTimeout = defaultToolTimeout
	}
	if c.Limits.HistoryTurns <= 0 {
		c.Limits.HistoryTurns = defaultHistoryTurns
	}
	if c.ContextBudgetTokens <= 0 {
		c.ContextBudgetTokens = defaultContextBudget
	}
	if c.MaxCompletionTokens <= 0 {
		c.MaxCompletionTokens = defaultMaxCompletionTokens
	}
	if c.Temperature <= 0 {
		c.Temperature = defaultTemperature
	}
	return c
}

// ChatUseCase drives one assistant turn end to end: pick a retrieval
// strategy, assemble the context bundle under the token budget, then run the
// completion loop with bounded tool calls. Collaborator outages downgrade
// the turn where an answer can still be produced and fail it where it
// cannot.
type ChatUseCase struct {
	selector   *StrategySelector
	engine     *RetrievalEngine
	assembler  *ContextAssembler
	completion ports.CompletionService
	sessions   ports.SessionStore
	vectors    ports.VectorIndex
	documents  ports.PatientDocumentStore
	cfg        ChatConfig
	now        func() time.Time
}

func NewChatUseCase(
	selector *StrategySelector,
	engine *RetrievalEngine,
	assembler *ContextAssembler,
	completion ports.CompletionService,
	sessions ports.SessionStore,
	vectors ports.VectorIndex,
	documents ports.PatientDocumentStore,
	cfg ChatConfig,
) *ChatUseCase {
	return &ChatUseCase{
		selector:   selector,
		engine:     engine,
		assembler:  assembler,
		completion: completion,
		sessions:   sessions,
		vectors:    vectors,
		documents:  documents,
		cfg:        cfg.normalize(),
		now:        time.Now,
	}
}

// Chat runs a full turn and returns the answer together with the audit
// trail of how its context was built.
func (uc *ChatUseCase) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	question, err := latestUserMessage(req.Messages)
	if err != nil {
		return nil, err
	}
	tier, err := domain.ParseModelTier(req.Model)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	loopCtx, cancel := context.WithTimeout(ctx, uc.cfg.Limits.Timeout)
	defer cancel()

	query := domain.Query{
		Text:      question,
		PatientID: req.PatientID,
		History:   uc.conversationHistory(loopCtx, req),
	}

	decision, err := uc.selector.Select(query, req.Strategy)
	if err != nil {
		return nil, err
	}

	result, degraded, err := uc.retrieveForDecision(loopCtx, query, &decision)
	if err != nil {
		return nil, err
	}
	bundle := uc.assembler.Assemble(decision.Strategy, result, uc.cfg.ContextBudgetTokens)
	if degraded {
		bundle.Warnings = append(bundle.Warnings, "retrieval unavailable, answering without document context")
	}

	messages := promptMessages(bundle, req.Messages)
	opts := domain.CompletionOptions{
		MaxTokens:   uc.cfg.MaxCompletionTokens,
		Temperature: uc.cfg.Temperature,
	}
	if uc.cfg.ToolsEnabled {
		opts.Tools = chatToolDefinitions()
	}

	var (
		usage     domain.TokenUsage
		events    []domain.ToolEvent
		last      *domain.CompletionResult
		toolCalls int
		toolLimit bool
	)
	for {
		last, err = uc.complete(loopCtx, tier, messages, opts)
		if err != nil {
			return nil, err
		}
		usage = addUsage(usage, last.Usage)
		if !uc.cfg.ToolsEnabled || len(last.ToolCalls) == 0 {
			break
		}
		if toolCalls >= uc.cfg.Limits.MaxToolCalls {
			toolLimit = true
			break
		}
		messages = append(messages, domain.ChatMessage{
			Role:      domain.RoleAssistant,
			Content:   last.Text,
			ToolCalls: last.ToolCalls,
		})
		for _, call := range last.ToolCalls {
			if toolCalls >= uc.cfg.Limits.MaxToolCalls {
				toolLimit = true
				break
			}
			toolCalls++
			event := uc.executeTool(loopCtx, query, call)
			events = append(events, event)
			messages = append(messages, domain.ChatMessage{
				Role:     domain.RoleTool,
				Content:  event.Output,
				ToolName: event.Tool,
			})
		}
		if toolLimit {
			break
		}
	}

	answer := strings.TrimSpace(last.Text)
	finish := last.FinishReason
	meta := bundle.Metadata(decision)
	if toolLimit {
		finish = domain.FinishToolLimit
		meta.Warnings = append(meta.Warnings, "tool call limit reached before the model finished")
		if answer == "" {
			answer = toolLimitFallback
		}
	}

	resp := &domain.ChatResponse{
		ID:           uuid.NewString(),
		SessionID:    req.SessionID,
		State:        domain.TurnCompleted,
		Answer:       answer,
		FinishReason: finish,
		Model:        last.Model,
		Usage:        usage,
		Context:      meta,
		ToolEvents:   events,
		CreatedAt:    uc.now().UTC(),
	}
	uc.recordTurn(ctx, req, question, resp)
	return resp, nil
}

// Preview runs strategy selection and context assembly for a prospective
// request without calling the model or persisting anything.
func (uc *ChatUseCase) Preview(ctx context.Context, req domain.ChatRequest) (*domain.ContextPreview, error) {
	question, err := latestUserMessage(req.Messages)
	if err != nil {
		return nil, err
	}
	query := domain.Query{
		Text:      question,
		PatientID: req.PatientID,
		History:   uc.conversationHistory(ctx, req),
	}
	decision, err := uc.selector.Select(query, req.Strategy)
	if err != nil {
		return nil, err
	}
	result, degraded, err := uc.retrieveForDecision(ctx, query, &decision)
	if err != nil {
		return nil, err
	}
	preview := uc.assembler.Preview(decision, result, uc.cfg.ContextBudgetTokens)
	if degraded {
		preview.Context.Warnings = append(preview.Context.Warnings, "retrieval unavailable, preview shows no document context")
	}
	return preview, nil
}

// retrieveForDecision retrieves for the decided strategy and records any
// silent substitution on the decision. A retrieval outage is reported as
// degraded instead of an error so the turn can proceed without context.
func (uc *ChatUseCase) retrieveForDecision(ctx context.Context, query domain.Query, decision *domain.StrategyDecision) (domain.RetrievalResult, bool, error) {
	result, effective, err := uc.engine.Retrieve(ctx, query, decision.Strategy, uc.cfg.ContextBudgetTokens)
	if err != nil {
		if !domain.IsKind(err, domain.ErrRetrievalUnavailable) {
			return domain.RetrievalResult{}, false, err
		}
		return domain.RetrievalResult{}, true, nil
	}
	if effective != decision.Strategy {
		decision.Strategy = effective
		decision.Substituted = true
		decision.Reasons = append(decision.Reasons, "no patient bound, reduced to "+string(effective))
	}
	return result, false, nil
}

func (uc *ChatUseCase) complete(ctx context.Context, tier domain.ModelTier, messages []domain.ChatMessage, opts domain.CompletionOptions) (*domain.CompletionResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, uc.cfg.Limits.CompletionTimeout)
	defer cancel()

	result, err := uc.completion.Complete(callCtx, tier, messages, opts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCompletionUnavailable, "completion", err)
	}
	if result == nil {
		return nil, domain.WrapError(domain.ErrCompletionUnavailable, "completion", errors.New("empty completion result"))
	}
	return result, nil
}

// executeTool runs a single model-requested tool against the retrieval
// collaborators. Failures are reported back to the model as error payloads
// instead of aborting the turn.
func (uc *ChatUseCase) executeTool(ctx context.Context, query domain.Query, call domain.ToolCall) domain.ToolEvent {
	toolCtx, cancel := context.WithTimeout(ctx, uc.cfg.Limits.ToolTimeout)
	defer cancel()

	switch call.Name {
	case toolSearchPassages:
		return uc.runSearchPassages(toolCtx, query, call)
	case toolGetPatientDocuments:
		return uc.runGetPatientDocuments(toolCtx, query)
	default:
		return toolErrorEvent(call.Name, fmt.Errorf("unknown tool %q", call.Name))
	}
}

func (uc *ChatUseCase) runSearchPassages(ctx context.Context, query domain.Query, call domain.ToolCall) domain.ToolEvent {
	text := stringInput(call.Arguments, "query")
	if text == "" {
		text = query.Text
	}
	topN := intInput(call.Arguments, "top_n", defaultToolTopN)

	passages, err := uc.vectors.Search(ctx, text, topN, domain.SearchFilter{PatientID: query.PatientID})
	if err != nil {
		return toolErrorEvent(toolSearchPassages, err)
	}

	type passagePayload struct {
		DocumentID   string  `json:"document_id"`
		DocumentType string  `json:"document_type"`
		Filename     string  `json:"filename,omitempty"`
		Text         string  `json:"text"`
		Score        float64 `json:"score"`
	}
	payload := make([]passagePayload, 0, len(passages))
	for _, p := range passages {
		payload = append(payload, passagePayload{
			DocumentID:   p.DocumentID,
			DocumentType: string(p.DocumentType),
			Filename:     p.Filename,
			Text:         p.Text,
			Score:        p.Score,
		})
	}
	return toolOKEvent(toolSearchPassages, payload)
}

func (uc *ChatUseCase) runGetPatientDocuments(ctx context.Context, query domain.Query) domain.ToolEvent {
	if !query.HasPatient() {
		return toolErrorEvent(toolGetPatientDocuments, errors.New("no patient bound to this conversation"))
	}
	docs, err := uc.documents.DocumentsForPatient(ctx, query.PatientID)
	if err != nil {
		return toolErrorEvent(toolGetPatientDocuments, err)
	}

	type documentPayload struct {
		DocumentID   string `json:"document_id"`
		DocumentType string `json:"document_type"`
		Filename     string `json:"filename"`
		DocumentDate string `json:"document_date,omitempty"`
		Summary      string `json:"summary,omitempty"`
	}
	payload := make([]documentPayload, 0, len(docs))
	for _, d := range docs {
		item := documentPayload{
			DocumentID:   d.ID,
			DocumentType: string(d.Type),
			Filename:     d.Filename,
			Summary:      d.Summary,
		}
		if !d.DocumentDate.IsZero() {
			item.DocumentDate = d.DocumentDate.Format("2006-01-02")
		}
		payload = append(payload, item)
	}
	return toolOKEvent(toolGetPatientDocuments, payload)
}

// conversationHistory rebuilds the context the selector sees: persisted
// session turns first, then the prior messages of the request itself. A
// failing session store yields an empty history rather than a failed turn.
func (uc *ChatUseCase) conversationHistory(ctx context.Context, req domain.ChatRequest) []domain.ChatMessage {
	var history []domain.ChatMessage
	if uc.sessions != nil && req.SessionID != "" && uc.cfg.Limits.HistoryTurns > 0 {
		turns, err := uc.sessions.RecentTurns(ctx, req.SessionID, uc.cfg.Limits.HistoryTurns)
		if err == nil {
			for _, turn := range turns {
				history = append(history, domain.ChatMessage{Role: domain.RoleUser, Content: turn.Question})
				if turn.Answer != "" {
					history = append(history, domain.ChatMessage{Role: domain.RoleAssistant, Content: turn.Answer})
				}
			}
		}
	}
	if len(req.Messages) > 1 {
		history = append(history, req.Messages[:len(req.Messages)-1]...)
	}
	return history
}

// recordTurn persists the finished turn for session continuity. Storage
// failures leave the response intact, history is advisory.
func (uc *ChatUseCase) recordTurn(ctx context.Context, req domain.ChatRequest, question string, resp *domain.ChatResponse) {
	if uc.sessions == nil {
		return
	}
	turn := domain.ChatTurn{
		ID:               resp.ID,
		SessionID:        resp.SessionID,
		PatientID:        req.PatientID,
		Question:         question,
		Answer:           resp.Answer,
		Strategy:         resp.Context.Strategy,
		ContextUsed:      resp.Context.ContextUsed,
		Confidence:       resp.Context.Confidence,
		ContextTokens:    resp.Context.TokenEstimate,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		CreatedAt:        resp.CreatedAt,
	}
	_ = uc.sessions.AppendTurn(ctx, turn)
}

// promptMessages injects the assembled context as a single system message
// ahead of the caller's conversation.
func promptMessages(bundle domain.ContextBundle, conversation []domain.ChatMessage) []domain.ChatMessage {
	messages := make([]domain.ChatMessage, 0, len(conversation)+1)
	if bundle.ContextUsed {
		messages = append(messages, domain.ChatMessage{Role: domain.RoleSystem, Content: renderContext(bundle)})
	}
	return append(messages, conversation...)
}

// renderContext formats the bundle for the model, most relevant item first.
func renderContext(bundle domain.ContextBundle) string {
	var b strings.Builder
	b.WriteString("Patient record context retrieved for this conversation. ")
	b.WriteString("Ground every clinical statement in the excerpts below and say so when they do not cover the question.\n")
	for i, item := range bundle.Items {
		b.WriteString(fmt.Sprintf("\n[%d] %s", i+1, item.DocumentType))
		if item.Filename != "" {
			b.WriteString(" " + item.Filename)
		}
		if !item.DocumentDate.IsZero() {
			b.WriteString(" (" + item.DocumentDate.Format("2006-01-02") + ")")
		}
		b.WriteString(fmt.Sprintf(", confidence %.2f\n", item.Confidence))
		b.WriteString(item.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// chatToolDefinitions lists the retrieval tools offered to the model during
// a turn. Both are read-only lookups scoped to the request's patient.
func chatToolDefinitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{
		{
			Name:        toolSearchPassages,
			Description: "Search indexed clinical passages for the current patient by free-text query.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string", "description": "Search query text."},
					"top_n": map[string]any{"type": "integer", "description": "Maximum passages to return."},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        toolGetPatientDocuments,
			Description: "List the processed documents on file for the current patient.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

// latestUserMessage returns the newest non-empty user message, the question
// the turn answers.
func latestUserMessage(messages []domain.ChatMessage) (string, error) {
	if len(messages) == 0 {
		return "", domain.WrapError(domain.ErrInvalidRequest, "chat", errors.New("at least one message is required"))
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != domain.RoleUser {
			continue
		}
		if text := strings.TrimSpace(messages[i].Content); text != "" {
			return text, nil
		}
	}
	return "", domain.WrapError(domain.ErrInvalidRequest, "chat", errors.New("no user message with content"))
}

func addUsage(total, call domain.TokenUsage) domain.TokenUsage {
	total.PromptTokens += call.PromptTokens
	total.CompletionTokens += call.CompletionTokens
	total.TotalTokens = total.PromptTokens + total.CompletionTokens
	return total
}

func toolOKEvent(tool string, payload any) domain.ToolEvent {
	raw, err := json.Marshal(payload)
	if err != nil {
		return toolErrorEvent(tool, err)
	}
	return domain.ToolEvent{Tool: tool, Status: "ok", Output: string(raw)}
}

func toolErrorEvent(tool string, err error) domain.ToolEvent {
	return domain.ToolEvent{Tool: tool, Status: "error", Output: fmt.Sprintf(`{"error":%q}`, err.Error())}
}

func stringInput(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func intInput(args map[string]any, key string, fallback int) int {
	if args == nil {
		return fallback
	}
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
