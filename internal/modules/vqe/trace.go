// Package vqe trains parameterized circuits against Hamiltonians by
// classical minimization of the energy expectation value.
package vqe

// Trace records the optimization path of one training round: the
// parameter vector, energy, and energy fluctuation at the starting point
// and after every major optimizer iteration.
type Trace struct {
	Parameters   [][]float64
	Energies     []float64
	Fluctuations []float64
}

// Append adds one row to the trace. The parameter slice is copied, so
// callers may reuse their storage.
func (t *Trace) Append(params []float64, energy, fluctuation float64) {
	p := make([]float64, len(params))
	copy(p, params)
	t.Parameters = append(t.Parameters, p)
	t.Energies = append(t.Energies, energy)
	t.Fluctuations = append(t.Fluctuations, fluctuation)
}

// Len returns the number of recorded rows.
func (t *Trace) Len() int { return len(t.Energies) }
