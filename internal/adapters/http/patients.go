package httpadapter

import (
	"encoding/json"
	"net/http"
)

func (rt *Router) registerPatient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Name      string `json:"name"`
		BirthDate string `json:"birth_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	patient, err := rt.patientsUC.Register(r.Context(), req.Name, req.BirthDate)
	if err != nil {
		rt.writeError(w, r, "register_patient", err)
		return
	}
	writeJSON(w, http.StatusCreated, patient)
}

func (rt *Router) getPatient(w http.ResponseWriter, r *http.Request, id string) {
	patient, err := rt.patientsUC.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, "get_patient", err)
		return
	}
	writeJSON(w, http.StatusOK, patient)
}
