package httpadapter

import (
	"net/http"
	"strings"
)

// maxUploadBytes caps multipart parsing memory; larger files spill to disk.
const maxUploadMemoryBytes = 16 << 20

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemoryBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}
	patientID := strings.TrimSpace(r.FormValue("patient_id"))
	if patientID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "form field 'patient_id' is required"})
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingestUC.Upload(
		r.Context(),
		patientID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(w, r, "upload_document", err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, err := rt.documentsUC.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "get_document", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) listPatientDocuments(w http.ResponseWriter, r *http.Request, patientID string) {
	docs, err := rt.documentsUC.ListByPatient(r.Context(), patientID)
	if err != nil {
		rt.writeError(w, r, "list_patient_documents", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}
