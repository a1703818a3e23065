package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clinicore/medical-assistant/internal/core/domain"
	"github.com/clinicore/medical-assistant/internal/infrastructure/resilience"
)

// Client talks to one Ollama host serving three models: the advanced chat
// model, the fast model for classification and cheap turns, and the
// embedding model.
type Client struct {
	baseURL       string
	advancedModel string
	fastModel     string
	embedModel    string
	httpClient    *http.Client
	executor      *resilience.Executor
}

type Options struct {
	HTTPTimeout        time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL, advancedModel, fastModel, embedModel string) *Client {
	return NewWithOptions(baseURL, advancedModel, fastModel, embedModel, Options{})
}

func NewWithOptions(baseURL, advancedModel, fastModel, embedModel string, options Options) *Client {
	timeout := options.HTTPTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		advancedModel: advancedModel,
		fastModel:     fastModel,
		embedModel:    embedModel,
		httpClient:    &http.Client{Timeout: timeout},
		executor:      options.ResilienceExecutor,
	}
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	Function wireFunctionCall `json:"function"`
}

type wireFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type wireTool struct {
	Type     string           `json:"type"`
	Function wireToolFunction `json:"function"`
}

type wireToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []wireMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Tools    []wireTool     `json:"tools,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Message         wireMessage `json:"message"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// Complete sends one non-streaming chat call to the model for the requested
// tier and maps the reply, including any tool calls, onto the domain result.
func (c *Client) Complete(ctx context.Context, tier domain.ModelTier, messages []domain.ChatMessage, opts domain.CompletionOptions) (*domain.CompletionResult, error) {
	model := c.modelFor(tier)
	request := chatRequest{
		Model:    model,
		Messages: toWireMessages(messages),
		Stream:   false,
		Options:  map[string]any{},
	}
	if opts.MaxTokens > 0 {
		request.Options["num_predict"] = opts.MaxTokens
	}
	if opts.Temperature > 0 {
		request.Options["temperature"] = opts.Temperature
	}
	for _, tool := range opts.Tools {
		request.Tools = append(request.Tools, wireTool{
			Type: "function",
			Function: wireToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.Parameters,
			},
		})
	}

	var response chatResponse
	if err := c.call(ctx, "chat", "/api/chat", request, &response); err != nil {
		return nil, err
	}
	return response.toDomain(model), nil
}

func (c *Client) modelFor(tier domain.ModelTier) string {
	if tier == domain.TierFast {
		return c.fastModel
	}
	return c.advancedModel
}

func toWireMessages(messages []domain.ChatMessage) []wireMessage {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: m.Role, Content: m.Content, ToolName: m.ToolName}
		for _, call := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				Function: wireFunctionCall{Name: call.Name, Arguments: call.Arguments},
			})
		}
		out = append(out, wm)
	}
	return out
}

func (r *chatResponse) toDomain(model string) *domain.CompletionResult {
	result := &domain.CompletionResult{
		Text:  strings.TrimSpace(r.Message.Content),
		Model: model,
		Usage: domain.TokenUsage{
			PromptTokens:     r.PromptEvalCount,
			CompletionTokens: r.EvalCount,
			TotalTokens:      r.PromptEvalCount + r.EvalCount,
		},
	}
	for i, call := range r.Message.ToolCalls {
		result.ToolCalls = append(result.ToolCalls, domain.ToolCall{
			ID:        fmt.Sprintf("call-%d", i+1),
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	result.FinishReason = finishReasonFor(r.DoneReason, len(result.ToolCalls) > 0)
	return result
}

func finishReasonFor(doneReason string, hasToolCalls bool) domain.FinishReason {
	if hasToolCalls {
		return domain.FinishToolCalls
	}
	if doneReason == "length" {
		return domain.FinishLength
	}
	return domain.FinishStop
}

// Classifier assigns a document type, confidence, summary and clinical date
// to extracted text using the fast model in strict-JSON mode.
type Classifier struct {
	client *Client
}

func NewClassifier(client *Client) *Classifier {
	return &Classifier{client: client}
}

func (c *Classifier) Classify(ctx context.Context, text string) (domain.Classification, error) {
	respText, err := c.client.generateJSON(ctx, buildClassificationPrompt(text))
	if err != nil {
		return domain.Classification{}, err
	}

	var raw struct {
		Type         string  `json:"type"`
		Confidence   float64 `json:"confidence"`
		Summary      string  `json:"summary"`
		DocumentDate string  `json:"document_date"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &raw); err != nil {
		return domain.Classification{}, fmt.Errorf("parse classification json: %w", err)
	}

	cls := domain.Classification{
		Type:       domain.ParseDocumentType(raw.Type),
		Confidence: raw.Confidence,
		Summary:    strings.TrimSpace(raw.Summary),
	}
	if cls.Confidence < 0 {
		cls.Confidence = 0
	}
	if cls.Confidence > 1 {
		cls.Confidence = 1
	}
	if raw.DocumentDate != "" {
		if parsed, err := time.Parse("2006-01-02", raw.DocumentDate); err == nil {
			cls.DocumentDate = parsed
		}
	}
	return cls, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := e.client.call(ctx, "embed", "/api/embed", request, &response); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return vectors[0], nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	request := map[string]any{
		"model":  c.fastModel,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}
	var response struct {
		Response string `json:"response"`
	}
	if err := c.call(ctx, "generate", "/api/generate", request, &response); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func (c *Client) call(ctx context.Context, operation, path string, payload, out any) error {
	run := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, payload, out, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "ollama."+operation, run, classifyOllamaError)
	} else {
		err = run(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
