// Package quantum implements dense real-symmetric Hamiltonian models:
// named spin-chain families, expectation and fluctuation evaluation
// against state vectors, exact spectra, and the matrix exponential used
// by the double-bracket flow.
//
// Everything is real float64. The supported families are real symmetric
// matrices (Y⊗Y is real) and the circuit layer realizes real orthogonal
// unitaries, so real symmetric matrices carry the original Hermitian
// structure exactly.
package quantum

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Hamiltonian is an immutable dense operator on an nqubits register.
// Rotation and diagonalization never mutate an instance; they produce
// new ones.
type Hamiltonian struct {
	matrix  *mat.Dense
	nqubits int
}

// New wraps a dense matrix as a Hamiltonian, copying the input so later
// caller mutation cannot leak in. The matrix must be square with
// dimension 2^nqubits.
func New(nqubits int, matrix *mat.Dense) (*Hamiltonian, error) {
	if nqubits < 1 {
		return nil, &ConfigurationError{Field: "nqubits", Message: "must be positive"}
	}
	if matrix == nil {
		return nil, &ConfigurationError{Field: "hamiltonian", Message: "matrix is nil"}
	}
	dim := 1 << nqubits
	r, c := matrix.Dims()
	if r != c || r != dim {
		return nil, &ConfigurationError{
			Field:   "hamiltonian",
			Message: fmt.Sprintf("matrix must be %dx%d for %d qubits, got %dx%d", dim, dim, nqubits, r, c),
		}
	}
	return &Hamiltonian{matrix: mat.DenseCopyOf(matrix), nqubits: nqubits}, nil
}

// NQubits returns the register size.
func (h *Hamiltonian) NQubits() int { return h.nqubits }

// Dim returns the operator dimension, 2^nqubits.
func (h *Hamiltonian) Dim() int { return 1 << h.nqubits }

// Matrix returns a copy of the operator matrix.
func (h *Hamiltonian) Matrix() *mat.Dense {
	return mat.DenseCopyOf(h.matrix)
}

// Diagonal returns a new matrix holding only the operator's diagonal,
// the generator ingredient of the double-bracket flow.
func (h *Hamiltonian) Diagonal() *mat.Dense {
	return DiagonalOf(h.matrix)
}

// OffDiagonalNorm returns the Frobenius norm of the off-diagonal part.
func (h *Hamiltonian) OffDiagonalNorm() float64 {
	return OffDiagonalNorm(h.matrix)
}

// Expectation returns <state|H|state> for a real state vector.
func (h *Hamiltonian) Expectation(state []float64) (float64, error) {
	dim := h.Dim()
	if len(state) != dim {
		return 0, &DimensionMismatchError{Context: "expectation value", Expected: dim, Actual: len(state)}
	}
	v := mat.NewVecDense(dim, state)
	y := mat.NewVecDense(dim, nil)
	y.MulVec(h.matrix, v)
	return mat.Dot(v, y), nil
}

// EnergyFluctuation returns sqrt(|<H^2> - <H>^2|) for a real state
// vector, the spread of the energy distribution in that state.
func (h *Hamiltonian) EnergyFluctuation(state []float64) (float64, error) {
	dim := h.Dim()
	if len(state) != dim {
		return 0, &DimensionMismatchError{Context: "energy fluctuation", Expected: dim, Actual: len(state)}
	}
	v := mat.NewVecDense(dim, state)
	y := mat.NewVecDense(dim, nil)
	y.MulVec(h.matrix, v)
	energy := mat.Dot(v, y)
	squared := mat.Dot(y, y)
	return math.Sqrt(math.Abs(squared - energy*energy)), nil
}

// Eigenvalues returns the full spectrum in ascending order.
func (h *Hamiltonian) Eigenvalues() ([]float64, error) {
	dim := h.Dim()
	sym := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		for j := i; j < dim; j++ {
			sym.SetSym(i, j, (h.matrix.At(i, j)+h.matrix.At(j, i))/2)
		}
	}
	var es mat.EigenSym
	if !es.Factorize(sym, false) {
		return nil, fmt.Errorf("failed to factorize %dx%d hamiltonian", dim, dim)
	}
	return es.Values(nil), nil
}

// GroundEnergy returns the smallest eigenvalue, the exact reference the
// variational result is compared against.
func (h *Hamiltonian) GroundEnergy() (float64, error) {
	values, err := h.Eigenvalues()
	if err != nil {
		return 0, err
	}
	return floats.Min(values), nil
}
