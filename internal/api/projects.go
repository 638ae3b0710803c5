package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/analysis"
	"github.com/MikeSquared-Agency/Priority/internal/store"
)

type ProjectsHandler struct {
	store    store.Store
	analyzer *analysis.Analyzer
}

func NewProjectsHandler(s store.Store, a *analysis.Analyzer) *ProjectsHandler {
	return &ProjectsHandler{store: s, analyzer: a}
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (h *ProjectsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name required"})
		return
	}
	p := &store.Project{Name: req.Name, Description: req.Description}
	if err := h.store.CreateProject(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// Get returns the project with its hierarchy, evaluators and judgments.
func (h *ProjectsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	snap, err := h.store.Snapshot(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if snap == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "project not found"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type AddCriterionRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

func (h *ProjectsHandler) AddCriterion(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req AddCriterionRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id required"})
		return
	}
	c := &store.Criterion{ProjectID: id, ID: req.ID, Name: req.Name, ParentID: req.ParentID}
	if err := h.analyzer.AddCriterion(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type AddAlternativeRequest struct {
	ID   string   `json:"id"`
	Name string   `json:"name,omitempty"`
	Cost *float64 `json:"cost,omitempty"`
}

func (h *ProjectsHandler) AddAlternative(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req AddAlternativeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id required"})
		return
	}
	if req.Cost != nil && *req.Cost <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cost must be positive"})
		return
	}
	a := &store.Alternative{ProjectID: id, ID: req.ID, Name: req.Name, Cost: req.Cost}
	if err := h.store.AddAlternative(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

type PutEvaluatorRequest struct {
	Weight float64 `json:"weight"`
}

func (h *ProjectsHandler) PutEvaluator(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(w, r)
	if !ok {
		return
	}
	var req PutEvaluatorRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Weight == 0 {
		req.Weight = ahp.DefaultEvaluatorWeight
	}
	if req.Weight < 0 {
		writeError(w, ahp.ErrInvalidEvaluatorWeight)
		return
	}
	e := &store.Evaluator{ProjectID: id, ID: chi.URLParam(r, "evaluator"), Weight: req.Weight}
	if err := h.store.UpsertEvaluator(r.Context(), e); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid project id"})
		return uuid.Nil, false
	}
	return id, true
}
