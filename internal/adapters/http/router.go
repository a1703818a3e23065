package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/clinicore/medical-assistant/internal/core/ports"
	"github.com/clinicore/medical-assistant/internal/observability/metrics"
)

type Router struct {
	chatUC      ports.ChatService
	previewUC   ports.ContextPreviewer
	ingestUC    ports.DocumentIngestor
	documentsUC ports.DocumentReader
	patientsUC  ports.PatientDirectory

	httpMetrics *metrics.HTTPServerMetrics
	validator   *RequestValidator
}

func NewRouter(
	chatUC ports.ChatService,
	previewUC ports.ContextPreviewer,
	ingestUC ports.DocumentIngestor,
	documentsUC ports.DocumentReader,
	patientsUC ports.PatientDirectory,
	httpMetrics *metrics.HTTPServerMetrics,
	validator *RequestValidator,
) *Router {
	return &Router{
		chatUC:      chatUC,
		previewUC:   previewUC,
		ingestUC:    ingestUC,
		documentsUC: documentsUC,
		patientsUC:  patientsUC,
		httpMetrics: httpMetrics,
		validator:   validator,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/chat", rt.chat)
	mux.HandleFunc("/v1/context/preview", rt.previewContext)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	mux.HandleFunc("/v1/patients", rt.registerPatient)
	mux.HandleFunc("/v1/patients/", rt.patientSubtree)

	var handler http.Handler = mux
	if rt.validator != nil {
		handler = rt.validator.Middleware(handler)
	}
	if rt.httpMetrics != nil {
		handler = rt.httpMetrics.Middleware("api", handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// patientSubtree serves /v1/patients/{id} and /v1/patients/{id}/documents.
func (rt *Router) patientSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/patients/")
	if rest == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "patient id is required"})
		return
	}
	if id, ok := strings.CutSuffix(rest, "/documents"); ok && !strings.Contains(id, "/") {
		rt.listPatientDocuments(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	rt.getPatient(w, r, rest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
