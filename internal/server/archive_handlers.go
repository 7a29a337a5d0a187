package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/qboost/internal/modules/results"
	"github.com/aristath/qboost/internal/reliability"
)

// ArchiveHandlers provides HTTP handlers for run archive management.
// The service is nil when no object store is configured; every endpoint
// then responds 503.
type ArchiveHandlers struct {
	service *reliability.ArchiveService
	store   *results.Store
	log     zerolog.Logger
}

// NewArchiveHandlers creates archive handlers.
func NewArchiveHandlers(service *reliability.ArchiveService, store *results.Store, log zerolog.Logger) *ArchiveHandlers {
	return &ArchiveHandlers{
		service: service,
		store:   store,
		log:     log.With().Str("handler", "archives").Logger(),
	}
}

// RegisterRoutes registers the archive routes on the given router.
func (h *ArchiveHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/archives", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/{id}", h.HandleArchiveRun)
	})
}

// HandleList handles GET /api/archives
func (h *ArchiveHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, "Archiving is not configured", http.StatusServiceUnavailable)
		return
	}

	archives, err := h.service.List(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list archives")
		http.Error(w, "Failed to list archives", http.StatusInternalServerError)
		return
	}

	if archives == nil {
		archives = []reliability.ArchiveInfo{}
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"archives": archives,
		"count":    len(archives),
	})
}

// HandleArchiveRun handles POST /api/archives/{id} by packing the
// run's artifact directory and uploading it to the object store.
func (h *ArchiveHandlers) HandleArchiveRun(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		http.Error(w, "Archiving is not configured", http.StatusServiceUnavailable)
		return
	}

	id := chi.URLParam(r, "id")
	row, err := h.store.Get(id)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to query run")
		http.Error(w, "Failed to query run", http.StatusInternalServerError)
		return
	}
	if row == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	info, err := h.service.ArchiveRun(r.Context(), row.ID, row.Path)
	if err != nil {
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to archive run")
		http.Error(w, "Failed to archive run", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, info)
}

func (h *ArchiveHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
