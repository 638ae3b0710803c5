package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Priority/internal/analysis"
)

type ResultsHandler struct {
	analyzer *analysis.Analyzer
}

func NewResultsHandler(a *analysis.Analyzer) *ResultsHandler {
	return &ResultsHandler{analyzer: a}
}

func (h *ResultsHandler) Results(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	res, err := h.analyzer.Results(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *ResultsHandler) Sensitivity(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req analysis.SensitivityRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Target == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target required"})
		return
	}
	rep, err := h.analyzer.Sensitivity(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *ResultsHandler) Budget(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req analysis.BudgetRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.analyzer.Budget(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
