package quantum

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewValidation(t *testing.T) {
	valid := mat.NewDense(2, 2, []float64{1, 0, 0, -1})

	tests := []struct {
		name    string
		nqubits int
		matrix  *mat.Dense
	}{
		{"zero qubits", 0, valid},
		{"negative qubits", -3, valid},
		{"nil matrix", 1, nil},
		{"wrong dimension", 2, valid},
		{"non-square", 1, mat.NewDense(2, 3, nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.nqubits, tt.matrix)
			require.Error(t, err)

			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %T", err)
		})
	}
}

func TestNewCopiesInput(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 2, -1})
	h, err := New(1, m)
	require.NoError(t, err)

	m.Set(0, 0, 99)
	assert.Equal(t, 1.0, h.Matrix().At(0, 0))
}

func TestMatrixReturnsCopy(t *testing.T) {
	h, err := XXZ(2)
	require.NoError(t, err)

	first := h.Matrix()
	first.Set(0, 0, 42)

	assert.Equal(t, 1.0, h.Matrix().At(0, 0))
}

func TestXXZTwoQubits(t *testing.T) {
	h, err := XXZ(2)
	require.NoError(t, err)
	assert.Equal(t, 2, h.NQubits())
	assert.Equal(t, 4, h.Dim())

	// Periodic two-site chain counts each bond twice:
	// H = 2 XX + 2 YY + ZZ.
	want := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, -1, 4, 0,
		0, 4, -1, 0,
		0, 0, 0, 1,
	})
	assert.True(t, mat.EqualApprox(want, h.Matrix(), 1e-12))

	values, err := h.Eigenvalues()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-5, 1, 1, 3}, values, 1e-9)

	ground, err := h.GroundEnergy()
	require.NoError(t, err)
	assert.InDelta(t, -5.0, ground, 1e-9)
}

func TestTFIMTwoQubits(t *testing.T) {
	h, err := TFIM(2)
	require.NoError(t, err)

	values, err := h.Eigenvalues()
	require.NoError(t, err)

	sqrt8 := 2 * math.Sqrt2
	assert.InDeltaSlice(t, []float64{-sqrt8, -2, 2, sqrt8}, values, 1e-9)
}

func TestFamiliesRejectTinyRegisters(t *testing.T) {
	for _, name := range FamilyNames() {
		_, err := BuildFamily(name, 1)
		var cfgErr *ConfigurationError
		assert.True(t, errors.As(err, &cfgErr), "family %s should reject 1 qubit", name)
	}
}

func TestBuildFamilyUnknown(t *testing.T) {
	_, err := BuildFamily("heisenberg3d", 4)
	require.Error(t, err)

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "hamiltonian", cfgErr.Field)
	assert.Contains(t, cfgErr.Error(), "xxz")
}

func TestBuildFamilyCaseInsensitive(t *testing.T) {
	h, err := BuildFamily("XXZ", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, h.NQubits())
}

func TestFamilyNames(t *testing.T) {
	assert.Equal(t, []string{"tfim", "xxz"}, FamilyNames())
}

func TestExpectationBasisStates(t *testing.T) {
	h, err := XXZ(2)
	require.NoError(t, err)

	e0, err := h.Expectation([]float64{1, 0, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, e0, 1e-12)

	e1, err := h.Expectation([]float64{0, 1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, e1, 1e-12)
}

func TestExpectationDimensionMismatch(t *testing.T) {
	h, err := XXZ(2)
	require.NoError(t, err)

	_, err = h.Expectation([]float64{1, 0})
	require.Error(t, err)

	var dimErr *DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)

	_, err = h.EnergyFluctuation([]float64{1, 0})
	assert.True(t, errors.As(err, &dimErr))
}

func TestEnergyFluctuationBasisState(t *testing.T) {
	h, err := XXZ(2)
	require.NoError(t, err)

	// H|01> has entries (0, -1, 4, 0): <H> = -1, <H^2> = 17.
	f, err := h.EnergyFluctuation([]float64{0, 1, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 4.0, f, 1e-12)
}

func TestEnergyFluctuationVanishesOnEigenstate(t *testing.T) {
	h, err := XXZ(2)
	require.NoError(t, err)

	inv := 1 / math.Sqrt2
	ground := []float64{0, inv, -inv, 0}

	e, err := h.Expectation(ground)
	require.NoError(t, err)
	assert.InDelta(t, -5.0, e, 1e-9)

	f, err := h.EnergyFluctuation(ground)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, f, 1e-9)
}

func TestDiagonalAndOffDiagonalNorm(t *testing.T) {
	h, err := XXZ(2)
	require.NoError(t, err)

	diag := h.Diagonal()
	want := mat.NewDense(4, 4, nil)
	want.Set(0, 0, 1)
	want.Set(1, 1, -1)
	want.Set(2, 2, -1)
	want.Set(3, 3, 1)
	assert.True(t, mat.EqualApprox(want, diag, 1e-12))

	// The only off-diagonal entries are the two 4s.
	assert.InDelta(t, math.Sqrt(32), h.OffDiagonalNorm(), 1e-12)
}
