package boost

import (
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/qboost/internal/modules/circuit"
	"github.com/aristath/qboost/internal/modules/quantum"
)

// Rotator conjugates a Hamiltonian by the unitary realized from a
// trained circuit, so the optimized frame is absorbed into the operator
// and the next round can restart from the zero state.
type Rotator struct {
	backend circuit.Backend
	log     zerolog.Logger
}

// NewRotator creates a rotator that realizes unitaries on the given
// backend.
func NewRotator(backend circuit.Backend, log zerolog.Logger) *Rotator {
	return &Rotator{
		backend: backend,
		log:     log.With().Str("component", "rotator").Logger(),
	}
}

// Rotate returns U^T H U where U is the unitary of the circuit at its
// current parameters. The zero-state energy of the result equals the
// circuit-state energy of the input.
func (r *Rotator) Rotate(h *quantum.Hamiltonian, c *circuit.Circuit) (*quantum.Hamiltonian, error) {
	if r.backend == nil {
		return nil, &quantum.ConfigurationError{Field: "backend", Message: "must not be nil"}
	}
	if h == nil {
		return nil, &quantum.ConfigurationError{Field: "hamiltonian", Message: "must not be nil"}
	}
	if c == nil {
		return nil, &quantum.ConfigurationError{Field: "circuit", Message: "must not be nil"}
	}
	if h.NQubits() != c.NQubits() {
		return nil, &quantum.DimensionMismatchError{
			Context:  "rotation hamiltonian qubits",
			Expected: c.NQubits(),
			Actual:   h.NQubits(),
		}
	}

	u, err := r.backend.Unitary(c, c.Parameters())
	if err != nil {
		return nil, err
	}

	var hu, rotated mat.Dense
	hu.Mul(h.Matrix(), u)
	rotated.Mul(u.T(), &hu)
	quantum.Symmetrize(&rotated)
	if !quantum.AllFinite(&rotated) {
		return nil, &quantum.NumericalInstabilityError{Operation: "hamiltonian rotation"}
	}

	out, err := quantum.New(h.NQubits(), &rotated)
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Int("nqubits", h.NQubits()).
		Float64("off_diagonal_norm", out.OffDiagonalNorm()).
		Msg("Rotated hamiltonian into trained frame")

	return out, nil
}
