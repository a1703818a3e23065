package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

func TestCompleteMapsToolCallsAndUsage(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{"function": {"name": "search_passages", "arguments": {"query": "hba1c"}}}]
			},
			"done_reason": "stop",
			"prompt_eval_count": 321,
			"eval_count": 17
		}`))
	}))
	defer server.Close()

	client := New(server.URL, "adv-model", "fast-model", "embed-model")
	result, err := client.Complete(context.Background(), domain.TierAdvanced,
		[]domain.ChatMessage{{Role: domain.RoleUser, Content: "latest hba1c?"}},
		domain.CompletionOptions{
			Tools:       []domain.ToolDefinition{{Name: "search_passages", Parameters: map[string]any{"type": "object"}}},
			MaxTokens:   256,
			Temperature: 0.2,
		},
	)
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if captured["model"] != "adv-model" {
		t.Fatalf("expected advanced model, got %v", captured["model"])
	}
	if _, ok := captured["tools"]; !ok {
		t.Fatalf("expected tools in request payload")
	}
	if len(result.ToolCalls) != 1 || result.ToolCalls[0].Name != "search_passages" {
		t.Fatalf("unexpected tool calls %+v", result.ToolCalls)
	}
	if result.ToolCalls[0].Arguments["query"] != "hba1c" {
		t.Fatalf("unexpected tool arguments %+v", result.ToolCalls[0].Arguments)
	}
	if result.FinishReason != domain.FinishToolCalls {
		t.Fatalf("expected tool_calls finish reason, got %s", result.FinishReason)
	}
	if result.Usage.PromptTokens != 321 || result.Usage.CompletionTokens != 17 || result.Usage.TotalTokens != 338 {
		t.Fatalf("unexpected usage %+v", result.Usage)
	}
}

func TestCompleteFastTierUsesFastModel(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hi"},"done_reason":"stop"}`))
	}))
	defer server.Close()

	client := New(server.URL, "adv-model", "fast-model", "embed-model")
	result, err := client.Complete(context.Background(), domain.TierFast,
		[]domain.ChatMessage{{Role: domain.RoleUser, Content: "hello"}}, domain.CompletionOptions{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if captured["model"] != "fast-model" {
		t.Fatalf("expected fast model, got %v", captured["model"])
	}
	if result.Text != "hi" || result.FinishReason != domain.FinishStop {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestClassifyParsesTypeAndDate(t *testing.T) {
	var capturedPrompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		capturedPrompt, _ = payload["prompt"].(string)
		if payload["model"] != "fast-model" {
			t.Fatalf("expected fast model for classification, got %v", payload["model"])
		}
		_, _ = w.Write([]byte(`{"response":"{\"type\":\"lab_report\",\"confidence\":0.93,\"summary\":\"CBC panel.\",\"document_date\":\"2025-03-04\"}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "adv-model", "fast-model", "embed-model")
	classifier := NewClassifier(client)
	cls, err := classifier.Classify(context.Background(), "Hemoglobin 13.2 g/dl drawn on 2025-03-04.")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Type != domain.TypeLabReport {
		t.Fatalf("expected lab_report, got %s", cls.Type)
	}
	if cls.Confidence != 0.93 {
		t.Fatalf("expected confidence 0.93, got %f", cls.Confidence)
	}
	want := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	if !cls.DocumentDate.Equal(want) {
		t.Fatalf("expected document date %s, got %s", want, cls.DocumentDate)
	}
	if !strings.Contains(capturedPrompt, "lab_report") || !strings.Contains(capturedPrompt, "Hemoglobin") {
		t.Fatalf("unexpected prompt: %s", capturedPrompt)
	}
}

func TestClassifyUnknownTypeFallsBackToOther(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"response":"{\"type\":\"grocery_list\",\"confidence\":0.4,\"summary\":\"?\",\"document_date\":\"\"}"}`))
	}))
	defer server.Close()

	client := New(server.URL, "adv-model", "fast-model", "embed-model")
	cls, err := NewClassifier(client).Classify(context.Background(), "milk, eggs")
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Type != domain.TypeOther {
		t.Fatalf("expected other, got %s", cls.Type)
	}
	if !cls.DocumentDate.IsZero() {
		t.Fatalf("expected zero document date, got %s", cls.DocumentDate)
	}
}

func TestEmbedIncludesHTTPBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL, "adv-model", "fast-model", "embed-model")
	embedder := NewEmbedder(client)
	_, err := embedder.Embed(context.Background(), []string{"hello"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected response body in error, got %v", err)
	}
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error for 502, got %v", err)
	}
}
