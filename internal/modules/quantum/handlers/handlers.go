// Package handlers provides HTTP handlers for Hamiltonian inspection:
// listing the registered families, exact spectra, and expectation values
// against caller-supplied states.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/qboost/internal/modules/quantum"
)

// maxInspectQubits bounds the register size the inspection endpoints
// will build. Dense construction and eigensolves above this stall the
// request.
const maxInspectQubits = 10

// Handler handles Hamiltonian inspection HTTP requests
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new quantum handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log: log.With().Str("handler", "quantum").Logger(),
	}
}

// ExpectationRequest represents a request to evaluate a state against a
// Hamiltonian family
type ExpectationRequest struct {
	Family  string    `json:"family"`
	NQubits int       `json:"nqubits"`
	State   []float64 `json:"state"`
}

// HandleListFamilies handles GET /api/quantum/hamiltonians
func (h *Handler) HandleListFamilies(w http.ResponseWriter, r *http.Request) {
	names := quantum.FamilyNames()

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"families": names,
			"count":    len(names),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleSpectrum handles GET /api/quantum/spectrum
func (h *Handler) HandleSpectrum(w http.ResponseWriter, r *http.Request) {
	family := r.URL.Query().Get("family")
	if family == "" {
		http.Error(w, "family query parameter is required", http.StatusBadRequest)
		return
	}

	nqubits, err := strconv.Atoi(r.URL.Query().Get("nqubits"))
	if err != nil {
		http.Error(w, "nqubits must be an integer", http.StatusBadRequest)
		return
	}
	if nqubits > maxInspectQubits {
		http.Error(w, fmt.Sprintf("nqubits must be at most %d", maxInspectQubits), http.StatusBadRequest)
		return
	}

	ham, err := quantum.BuildFamily(family, nqubits)
	if err != nil {
		h.respondQuantumError(w, err)
		return
	}

	eigenvalues, err := ham.Eigenvalues()
	if err != nil {
		h.log.Error().Err(err).Str("family", family).Int("nqubits", nqubits).Msg("Eigendecomposition failed")
		http.Error(w, "Failed to compute spectrum", http.StatusInternalServerError)
		return
	}

	// Ascending order, the first entry is the ground energy
	response := map[string]interface{}{
		"data": map[string]interface{}{
			"family":        family,
			"nqubits":       nqubits,
			"dim":           ham.Dim(),
			"eigenvalues":   eigenvalues,
			"ground_energy": eigenvalues[0],
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleExpectation handles POST /api/quantum/expectation
func (h *Handler) HandleExpectation(w http.ResponseWriter, r *http.Request) {
	var req ExpectationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Family == "" {
		http.Error(w, "family is required", http.StatusBadRequest)
		return
	}
	if req.NQubits > maxInspectQubits {
		http.Error(w, fmt.Sprintf("nqubits must be at most %d", maxInspectQubits), http.StatusBadRequest)
		return
	}

	norm2 := 0.0
	for _, amp := range req.State {
		norm2 += amp * amp
	}
	if math.Abs(norm2-1) > 1e-6 {
		http.Error(w, "state vector must be normalized", http.StatusBadRequest)
		return
	}

	ham, err := quantum.BuildFamily(req.Family, req.NQubits)
	if err != nil {
		h.respondQuantumError(w, err)
		return
	}

	energy, err := ham.Expectation(req.State)
	if err != nil {
		h.respondQuantumError(w, err)
		return
	}

	fluctuation, err := ham.EnergyFluctuation(req.State)
	if err != nil {
		h.respondQuantumError(w, err)
		return
	}

	response := map[string]interface{}{
		"data": map[string]interface{}{
			"family":      req.Family,
			"nqubits":     req.NQubits,
			"energy":      energy,
			"fluctuation": fluctuation,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}

	h.writeJSON(w, http.StatusOK, response)
}

// respondQuantumError maps configuration and dimension errors to 400,
// everything else to 500.
func (h *Handler) respondQuantumError(w http.ResponseWriter, err error) {
	var cfgErr *quantum.ConfigurationError
	var dimErr *quantum.DimensionMismatchError
	if errors.As(err, &cfgErr) || errors.As(err, &dimErr) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.log.Error().Err(err).Msg("Hamiltonian operation failed")
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
