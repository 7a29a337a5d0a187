package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the run browsing routes on the given router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Get("/{id}", h.HandleGet)
	r.Get("/{id}/histories", h.HandleHistories)
	r.Get("/{id}/hamiltonian", h.HandleHamiltonian)
}
