// Package handlers provides HTTP handlers for browsing recorded runs.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aristath/qboost/internal/modules/results"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler provides HTTP handlers for run browsing endpoints
type Handler struct {
	store *results.Store
	log   zerolog.Logger
}

// NewHandler creates a new results handler
func NewHandler(store *results.Store, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "results").Logger(),
	}
}

// HandleList handles GET /api/runs
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.store.List(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	if runs == nil {
		runs = []results.RunRow{}
	}

	response := map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode runs response")
	}
}

// HandleGet handles GET /api/runs/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	row := h.lookupRun(w, r)
	if row == nil {
		return
	}

	meta, err := results.LoadMetadata(row.Path)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", row.ID).Msg("Failed to load run metadata")
		http.Error(w, "Failed to load run metadata", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(meta); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode metadata response")
	}
}

// HandleHistories handles GET /api/runs/{id}/histories
func (h *Handler) HandleHistories(w http.ResponseWriter, r *http.Request) {
	row := h.lookupRun(w, r)
	if row == nil {
		return
	}

	histories, err := results.LoadHistories(row.Path)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", row.ID).Msg("Failed to load run histories")
		http.Error(w, "Failed to load run histories", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(histories); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode histories response")
	}
}

// HandleHamiltonian handles GET /api/runs/{id}/hamiltonian
func (h *Handler) HandleHamiltonian(w http.ResponseWriter, r *http.Request) {
	row := h.lookupRun(w, r)
	if row == nil {
		return
	}

	dump, err := results.LoadHamiltonian(row.Path)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", row.ID).Msg("Failed to load run hamiltonian")
		http.Error(w, "Failed to load run hamiltonian", http.StatusInternalServerError)
		return
	}

	// Reshape the row-major dump into nested rows for JSON consumers
	matrix := make([][]float64, dump.Dim)
	for i := 0; i < dump.Dim; i++ {
		matrix[i] = dump.Data[i*dump.Dim : (i+1)*dump.Dim]
	}

	response := map[string]interface{}{
		"dim":    dump.Dim,
		"matrix": matrix,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode hamiltonian response")
	}
}

// lookupRun resolves the {id} URL parameter against the store, writing the
// appropriate error response when the run cannot be served.
func (h *Handler) lookupRun(w http.ResponseWriter, r *http.Request) *results.RunRow {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Run ID is required", http.StatusBadRequest)
		return nil
	}

	row, err := h.store.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to query run")
		http.Error(w, "Failed to query run", http.StatusInternalServerError)
		return nil
	}
	if row == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return nil
	}
	return row
}
