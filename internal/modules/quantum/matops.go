package quantum

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Commutator returns a*b - b*a.
func Commutator(a, b *mat.Dense) *mat.Dense {
	var ab, ba mat.Dense
	ab.Mul(a, b)
	ba.Mul(b, a)
	var out mat.Dense
	out.Sub(&ab, &ba)
	return &out
}

// Symmetrize replaces m with (m + m^T)/2 to absorb the float drift that
// orthogonal conjugation leaves on a symmetric operator.
func Symmetrize(m *mat.Dense) {
	r, c := m.Dims()
	if r != c {
		return
	}
	for i := 0; i < r; i++ {
		for j := i + 1; j < c; j++ {
			v := (m.At(i, j) + m.At(j, i)) / 2
			m.Set(i, j, v)
			m.Set(j, i, v)
		}
	}
}

// AllFinite reports whether every element of m is a finite number.
func AllFinite(m *mat.Dense) bool {
	raw := m.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// OffDiagonalNorm returns the Frobenius norm of m with its diagonal
// removed. This is the quantity the double-bracket flow contracts.
func OffDiagonalNorm(m *mat.Dense) float64 {
	r, c := m.Dims()
	sum := 0.0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if i == j {
				continue
			}
			v := m.At(i, j)
			sum += v * v
		}
	}
	return math.Sqrt(sum)
}

// DiagonalOf returns a new matrix holding only the diagonal of m.
func DiagonalOf(m *mat.Dense) *mat.Dense {
	r, _ := m.Dims()
	d := mat.NewDense(r, r, nil)
	for i := 0; i < r; i++ {
		d.Set(i, i, m.At(i, i))
	}
	return d
}

// ZeroState returns the all-zero computational basis state |0...0> for
// the given qubit count, the fixed reference state for terminal and
// per-step evaluations.
func ZeroState(nqubits int) []float64 {
	state := make([]float64, 1<<nqubits)
	state[0] = 1
	return state
}
