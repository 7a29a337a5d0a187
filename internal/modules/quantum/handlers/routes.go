package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all Hamiltonian inspection routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/quantum", func(r chi.Router) {
		r.Get("/hamiltonians", h.HandleListFamilies)
		r.Get("/spectrum", h.HandleSpectrum)
		r.Post("/expectation", h.HandleExpectation)
	})
}
