package quantum

import "gonum.org/v1/gonum/mat"

// Single-site operator blocks. Y itself is imaginary; iY is real and
// (iY)_i (iY)_j = -Y_i Y_j, which lets two-site YY terms stay in real
// arithmetic.
func pauliX() *mat.Dense  { return mat.NewDense(2, 2, []float64{0, 1, 1, 0}) }
func pauliZ() *mat.Dense  { return mat.NewDense(2, 2, []float64{1, 0, 0, -1}) }
func pauliIY() *mat.Dense { return mat.NewDense(2, 2, []float64{0, 1, -1, 0}) }

func eye(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// siteOperator builds the n-qubit operator applying the given 2x2 blocks
// on their sites and identity elsewhere. Qubit 0 is the leftmost
// Kronecker factor, so qubit q addresses bit n-1-q of a basis index.
func siteOperator(nqubits int, blocks map[int]*mat.Dense) *mat.Dense {
	op := mat.NewDense(1, 1, []float64{1})
	for q := 0; q < nqubits; q++ {
		block := blocks[q]
		if block == nil {
			block = eye(2)
		}
		next := &mat.Dense{}
		next.Kronecker(op, block)
		op = next
	}
	return op
}

// addSingleSite accumulates coeff * B_i into total.
func addSingleSite(total *mat.Dense, nqubits int, block *mat.Dense, site int, coeff float64) {
	term := siteOperator(nqubits, map[int]*mat.Dense{site: block})
	addScaled(total, coeff, term)
}

// addTwoSite accumulates coeff * B_i B_j into total.
func addTwoSite(total *mat.Dense, nqubits int, block *mat.Dense, i, j int, coeff float64) {
	term := siteOperator(nqubits, map[int]*mat.Dense{i: block, j: block})
	addScaled(total, coeff, term)
}
