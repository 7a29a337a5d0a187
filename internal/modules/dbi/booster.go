// Package dbi implements double-bracket iteration, a matrix flow that
// rotates a Hamiltonian toward diagonal form without changing its
// spectrum.
package dbi

import (
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/qboost/internal/modules/quantum"
)

// Booster drives the canonical double-bracket flow. Each step conjugates
// the Hamiltonian by exp(s*W) with W the commutator of the diagonal part
// with the full matrix, which contracts the off-diagonal norm for small
// enough steps.
type Booster struct {
	step float64
	log  zerolog.Logger
}

// New creates a booster with the given default flow step.
func New(step float64, log zerolog.Logger) (*Booster, error) {
	if step <= 0 {
		return nil, &quantum.ConfigurationError{Field: "stepsize", Message: "must be positive"}
	}
	return &Booster{
		step: step,
		log:  log.With().Str("component", "dbi_booster").Logger(),
	}, nil
}

// Run applies nsteps flow steps to the Hamiltonian and returns the
// rotated Hamiltonian together with the zero-state energy and energy
// fluctuation recorded after each step. When optimizeStep is set, every
// step size is chosen by minimizing the resulting off-diagonal norm;
// otherwise the default step is used throughout.
//
// The input Hamiltonian is never modified. With nsteps zero the returned
// Hamiltonian is an identical copy and the histories are empty.
func (b *Booster) Run(h *quantum.Hamiltonian, nsteps int, optimizeStep bool) (*quantum.Hamiltonian, []float64, []float64, error) {
	if h == nil {
		return nil, nil, nil, &quantum.ConfigurationError{Field: "hamiltonian", Message: "must not be nil"}
	}
	if nsteps < 0 {
		return nil, nil, nil, &quantum.ConfigurationError{Field: "dbi_steps", Message: "must not be negative"}
	}

	current := h
	energies := make([]float64, 0, nsteps)
	fluctuations := make([]float64, 0, nsteps)
	zero := quantum.ZeroState(h.NQubits())

	b.log.Info().
		Int("steps", nsteps).
		Bool("optimize_step", optimizeStep).
		Float64("off_diagonal_norm", h.OffDiagonalNorm()).
		Msg("Starting double-bracket flow")

	for i := 0; i < nsteps; i++ {
		next, step, err := b.flowStep(current, optimizeStep)
		if err != nil {
			return nil, nil, nil, err
		}
		current = next

		energy, err := current.Expectation(zero)
		if err != nil {
			return nil, nil, nil, err
		}
		fluctuation, err := current.EnergyFluctuation(zero)
		if err != nil {
			return nil, nil, nil, err
		}
		energies = append(energies, energy)
		fluctuations = append(fluctuations, fluctuation)

		b.log.Debug().
			Int("step", i).
			Float64("step_size", step).
			Float64("off_diagonal_norm", current.OffDiagonalNorm()).
			Float64("zero_state_energy", energy).
			Msg("Applied flow step")
	}

	if current == h {
		out, err := quantum.New(h.NQubits(), h.Matrix())
		if err != nil {
			return nil, nil, nil, err
		}
		current = out
	}

	b.log.Info().
		Float64("off_diagonal_norm", current.OffDiagonalNorm()).
		Msg("Double-bracket flow finished")

	return current, energies, fluctuations, nil
}

// flowStep applies one conjugation by exp(s*W). The generator W is
// antisymmetric for a symmetric Hamiltonian, so exp(s*W) is orthogonal
// and its transpose is its inverse.
func (b *Booster) flowStep(h *quantum.Hamiltonian, optimizeStep bool) (*quantum.Hamiltonian, float64, error) {
	m := h.Matrix()
	generator := quantum.Commutator(quantum.DiagonalOf(m), m)

	step := b.step
	if optimizeStep {
		step = b.searchStep(m, generator, b.step)
	}

	var scaled mat.Dense
	scaled.Scale(step, generator)
	rotation, err := quantum.Expm(&scaled)
	if err != nil {
		return nil, 0, &quantum.NumericalInstabilityError{Operation: "double-bracket flow step", Err: err}
	}

	rotated := conjugate(rotation, m)
	quantum.Symmetrize(rotated)
	if !quantum.AllFinite(rotated) {
		return nil, 0, &quantum.NumericalInstabilityError{Operation: "double-bracket flow step"}
	}

	out, err := quantum.New(h.NQubits(), rotated)
	if err != nil {
		return nil, 0, err
	}
	return out, step, nil
}

// conjugate computes p * m * p^T.
func conjugate(p, m *mat.Dense) *mat.Dense {
	var pm, out mat.Dense
	pm.Mul(p, m)
	out.Mul(&pm, p.T())
	return &out
}
