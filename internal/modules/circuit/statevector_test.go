package circuit

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/aristath/qboost/internal/modules/quantum"
)

func TestExecuteZeroParametersEvenLayers(t *testing.T) {
	// With zero angles every RY is the identity, and two identical layers
	// of involutive CZ entanglers cancel pairwise, so the circuit acts as
	// the identity on the zero state.
	c, err := New(3, 2)
	require.NoError(t, err)

	b := NewStatevectorBackend(1)
	state, err := b.Execute(c, c.Parameters())
	require.NoError(t, err)

	want := quantum.ZeroState(3)
	assert.InDeltaSlice(t, want, state, 1e-12)
}

func TestExecuteSingleQubitRotation(t *testing.T) {
	c, err := New(1, 1)
	require.NoError(t, err)

	theta := 0.8
	b := NewStatevectorBackend(1)
	state, err := b.Execute(c, []float64{theta, 0})
	require.NoError(t, err)

	require.Len(t, state, 2)
	assert.InDelta(t, math.Cos(theta/2), state[0], 1e-12)
	assert.InDelta(t, math.Sin(theta/2), state[1], 1e-12)
}

func TestExecuteEntanglerSign(t *testing.T) {
	// Pi rotations on qubits 0 and 1 prepare |110>, which sits in the
	// (-1) sector of CZ(0,1). Qubit 0 maps to the most significant bit,
	// so the flipped amplitude is index 6.
	c, err := New(3, 1)
	require.NoError(t, err)

	params := make([]float64, c.NParameters())
	params[0] = math.Pi
	params[1] = math.Pi

	b := NewStatevectorBackend(1)
	state, err := b.Execute(c, params)
	require.NoError(t, err)

	want := make([]float64, 8)
	want[6] = -1
	assert.InDeltaSlice(t, want, state, 1e-12)
}

func TestExecutePreservesNorm(t *testing.T) {
	c, err := New(4, 3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(5))
	params := make([]float64, c.NParameters())
	for i := range params {
		params[i] = rng.NormFloat64()
	}

	b := NewStatevectorBackend(1)
	state, err := b.Execute(c, params)
	require.NoError(t, err)

	norm := 0.0
	for _, a := range state {
		norm += a * a
	}
	assert.InDelta(t, 1.0, norm, 1e-12)
}

func TestExecuteParameterLengthMismatch(t *testing.T) {
	c, err := New(2, 1)
	require.NoError(t, err)

	b := NewStatevectorBackend(1)
	_, err = b.Execute(c, []float64{1, 2})
	var dimErr *quantum.DimensionMismatchError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)
}

func TestUnitaryIsOrthogonal(t *testing.T) {
	c, err := New(3, 2)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(9))
	params := make([]float64, c.NParameters())
	for i := range params {
		params[i] = rng.NormFloat64()
	}

	b := NewStatevectorBackend(1)
	u, err := b.Unitary(c, params)
	require.NoError(t, err)

	var gram mat.Dense
	gram.Mul(u.T(), u)

	dim := 8
	for i := 0; i < dim; i++ {
		for j := 0; j < dim; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, gram.At(i, j), 1e-10)
		}
	}
}

func TestUnitaryFirstColumnMatchesExecute(t *testing.T) {
	c, err := New(3, 2)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(3))
	params := make([]float64, c.NParameters())
	for i := range params {
		params[i] = rng.NormFloat64()
	}

	b := NewStatevectorBackend(1)
	state, err := b.Execute(c, params)
	require.NoError(t, err)
	u, err := b.Unitary(c, params)
	require.NoError(t, err)

	for i := 0; i < 8; i++ {
		assert.InDelta(t, state[i], u.At(i, 0), 1e-12)
	}
}

func TestUnitaryZeroParametersEvenLayersIsIdentity(t *testing.T) {
	c, err := New(2, 2)
	require.NoError(t, err)

	b := NewStatevectorBackend(1)
	u, err := b.Unitary(c, c.Parameters())
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			assert.InDelta(t, want, u.At(i, j), 1e-12)
		}
	}
}

func TestThreadCountDoesNotChangeResults(t *testing.T) {
	c, err := New(4, 2)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(17))
	params := make([]float64, c.NParameters())
	for i := range params {
		params[i] = rng.NormFloat64()
	}

	serial := NewStatevectorBackend(1)
	pooled := NewStatevectorBackend(4)

	stateSerial, err := serial.Execute(c, params)
	require.NoError(t, err)
	statePooled, err := pooled.Execute(c, params)
	require.NoError(t, err)
	assert.InDeltaSlice(t, stateSerial, statePooled, 1e-15)

	uSerial, err := serial.Unitary(c, params)
	require.NoError(t, err)
	uPooled, err := pooled.Unitary(c, params)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(uSerial, uPooled, 1e-15))
}

func TestNewBackendUnknown(t *testing.T) {
	_, err := NewBackend("tensor-network", Options{})
	var cfgErr *quantum.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "backend", cfgErr.Field)
	assert.Contains(t, cfgErr.Message, Statevector)
}

func TestNewBackendStatevector(t *testing.T) {
	b, err := NewBackend("Statevector", Options{Threads: 2})
	require.NoError(t, err)
	assert.Equal(t, Statevector, b.Name())

	sv, ok := b.(*StatevectorBackend)
	require.True(t, ok)
	assert.Equal(t, 2, sv.Threads())
}

func TestBackendNamesIncludeBuiltin(t *testing.T) {
	assert.Contains(t, BackendNames(), Statevector)
}
