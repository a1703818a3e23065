package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValidatorRejectsChatWithoutMessages(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(t)

	payload, _ := json.Marshal(map[string]any{"messages": []any{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
	}
	if fx.chat.calls != 0 {
		t.Fatalf("handler must not run on contract violation, got %d calls", fx.chat.calls)
	}
}

func TestValidatorRejectsUnknownStrategy(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(t)

	req := postJSONRequest("/v1/chat", chatPayload(t, map[string]any{"strategy": "everything_everywhere"}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
	}
	if fx.chat.calls != 0 {
		t.Fatalf("handler must not run on contract violation, got %d calls", fx.chat.calls)
	}
}

func TestValidatorRejectsMissingMessageContent(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(t)

	payload, _ := json.Marshal(map[string]any{
		"messages": []map[string]any{{"role": "user"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.Code, res.Body.String())
	}
	if fx.chat.calls != 0 {
		t.Fatalf("handler must not run on contract violation, got %d calls", fx.chat.calls)
	}
}

func TestValidatorPassesValidChatThrough(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(t)

	req := postJSONRequest("/v1/chat", chatPayload(t, map[string]any{
		"session_id": "sess-1",
		"patient_id": "pat-1",
		"strategy":   "hybrid_priority_vectors",
		"model":      "fast",
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if fx.chat.calls != 1 {
		t.Fatalf("expected handler to run once, got %d calls", fx.chat.calls)
	}
}

func TestValidatorLeavesMultipartUploadsToHandler(t *testing.T) {
	fx := newRouterFixture()
	handler := fx.handler(t)

	body, contentType := multipartUpload(t, "pat-1", "note.txt", "follow-up in two weeks")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if fx.ingest.gotFilename != "note.txt" {
		t.Fatalf("expected upload to reach handler, got filename %q", fx.ingest.gotFilename)
	}
}

func TestValidatorFallsThroughForUnroutedPaths(t *testing.T) {
	handler := newRouterFixture().handler(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	// not part of the contract, the mux answers
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}
