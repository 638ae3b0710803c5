package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Priority/internal/analysis"
)

type AdminHandler struct {
	analyzer *analysis.Analyzer
}

func NewAdminHandler(a *analysis.Analyzer) *AdminHandler {
	return &AdminHandler{analyzer: a}
}

func (h *AdminHandler) Cache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.analyzer.CacheStats())
}

func (h *AdminHandler) FlushCache(w http.ResponseWriter, r *http.Request) {
	n := h.analyzer.FlushCache()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "flushed", "entries": n})
}
