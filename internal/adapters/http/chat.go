package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/clinicore/medical-assistant/internal/core/domain"
)

func (rt *Router) chat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	resp, err := rt.chatUC.Chat(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, "chat", err)
		return
	}

	rt.recordChatObservations("chat", resp, time.Since(start))
	slog.Info("chat_turn",
		"request_id", requestIDFromContext(r.Context()),
		"session_id", resp.SessionID,
		"strategy", resp.Context.Strategy,
		"explicit_strategy", resp.Context.Explicit,
		"substituted", resp.Context.Substituted,
		"context_used", resp.Context.ContextUsed,
		"passages", resp.Context.PassageCount,
		"full_documents", resp.Context.FullDocumentCount,
		"token_estimate", resp.Context.TokenEstimate,
		"confidence", resp.Context.Confidence,
		"finish_reason", resp.FinishReason,
		"tool_events", len(resp.ToolEvents),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) previewContext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	start := time.Now()
	preview, err := rt.previewUC.Preview(r.Context(), req)
	if err != nil {
		rt.writeError(w, r, "context_preview", err)
		return
	}

	if rt.httpMetrics != nil {
		meta := preview.Context
		rt.httpMetrics.RecordStrategyRequest("api", "context_preview", string(meta.Strategy))
		rt.httpMetrics.RecordContextObservation(
			"api",
			"context_preview",
			meta.PassageCount+meta.FullDocumentCount,
			meta.TokenEstimate,
			meta.Confidence,
			time.Since(start),
		)
	}
	slog.Info("context_preview",
		"request_id", requestIDFromContext(r.Context()),
		"strategy", preview.Context.Strategy,
		"context_used", preview.Context.ContextUsed,
		"items", len(preview.Items),
		"token_estimate", preview.Context.TokenEstimate,
	)

	writeJSON(w, http.StatusOK, preview)
}

func (rt *Router) recordChatObservations(endpoint string, resp *domain.ChatResponse, elapsed time.Duration) {
	if rt.httpMetrics == nil {
		return
	}
	meta := resp.Context
	rt.httpMetrics.RecordStrategyRequest("api", endpoint, string(meta.Strategy))
	rt.httpMetrics.RecordContextObservation(
		"api",
		endpoint,
		meta.PassageCount+meta.FullDocumentCount,
		meta.TokenEstimate,
		meta.Confidence,
		elapsed,
	)
	rt.httpMetrics.RecordTurn("api", endpoint, string(resp.FinishReason))
	for _, event := range resp.ToolEvents {
		rt.httpMetrics.RecordToolCall("api", event.Tool, event.Status)
	}
	rt.httpMetrics.RecordTokenUsage("api", endpoint, resp.Model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
}
