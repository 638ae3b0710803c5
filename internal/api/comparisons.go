package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/analysis"
	"github.com/MikeSquared-Agency/Priority/internal/store"
	"github.com/MikeSquared-Agency/Priority/internal/validation"
)

// maxComparisonBody bounds a comparison upsert body.
const maxComparisonBody = 1 << 20

type ComparisonsHandler struct {
	store    store.Store
	analyzer *analysis.Analyzer
}

func NewComparisonsHandler(s store.Store, a *analysis.Analyzer) *ComparisonsHandler {
	return &ComparisonsHandler{store: s, analyzer: a}
}

type PutComparisonsRequest struct {
	Comparisons []ahp.Comparison `json:"comparisons"`
}

// Put upserts the calling evaluator's judgments. The body is checked against
// the comparison schema before it is decoded.
func (h *ComparisonsHandler) Put(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxComparisonBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if problems := validation.ValidateComparisonsBytes(body); len(problems) > 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": strings.Join(problems, "; ")})
		return
	}
	var req PutComparisonsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	stored, err := h.analyzer.SubmitComparisons(r.Context(), id, r.Header.Get(EvaluatorHeader), req.Comparisons)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comparisons": stored})
}

// List returns stored judgments, filtered by the evaluator query parameter
// when present.
func (h *ComparisonsHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	p, err := h.store.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "project not found"})
		return
	}
	comps, err := h.store.ListComparisons(r.Context(), id, r.URL.Query().Get("evaluator"))
	if err != nil {
		writeError(w, err)
		return
	}
	if comps == nil {
		comps = []store.Comparison{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comparisons": comps})
}
