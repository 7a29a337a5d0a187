package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qboost/internal/modules/quantum"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		nqubits int
		nlayers int
		field   string
	}{
		{name: "zero qubits", nqubits: 0, nlayers: 1, field: "nqubits"},
		{name: "negative qubits", nqubits: -3, nlayers: 1, field: "nqubits"},
		{name: "zero layers", nqubits: 2, nlayers: 0, field: "nlayers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.nqubits, tt.nlayers)
			var cfgErr *quantum.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestNParameters(t *testing.T) {
	c, err := New(3, 2)
	require.NoError(t, err)
	assert.Equal(t, 12, c.NParameters())
	assert.Len(t, c.Parameters(), 12)
	assert.Equal(t, 3, c.NQubits())
	assert.Equal(t, 2, c.NLayers())
}

func TestSetParametersCopies(t *testing.T) {
	c, err := New(2, 1)
	require.NoError(t, err)

	params := []float64{0.1, 0.2, 0.3, 0.4}
	require.NoError(t, c.SetParameters(params))

	params[0] = 99
	assert.Equal(t, 0.1, c.Parameters()[0], "circuit must not alias caller storage")

	got := c.Parameters()
	got[1] = -1
	assert.Equal(t, 0.2, c.Parameters()[1], "Parameters must return a copy")
}

func TestSetParametersLengthMismatch(t *testing.T) {
	c, err := New(2, 1)
	require.NoError(t, err)

	var dimErr *quantum.DimensionMismatchError
	require.ErrorAs(t, c.SetParameters([]float64{1, 2}), &dimErr)
	assert.Equal(t, 4, dimErr.Expected)
	assert.Equal(t, 2, dimErr.Actual)
}

func TestCloneIsIndependent(t *testing.T) {
	c, err := New(2, 1)
	require.NoError(t, err)
	require.NoError(t, c.SetParameters([]float64{1, 2, 3, 4}))

	clone := c.Clone()
	require.NoError(t, clone.SetParameters([]float64{5, 6, 7, 8}))

	assert.Equal(t, []float64{1, 2, 3, 4}, c.Parameters())
	assert.Equal(t, []float64{5, 6, 7, 8}, clone.Parameters())
}

func TestGatesStructure(t *testing.T) {
	c, err := New(4, 1)
	require.NoError(t, err)

	gates := c.Gates()
	// 4 RY + CZ(0,1) + CZ(2,3) + 4 RY + CZ(1,2) + closing CZ(0,3).
	require.Len(t, gates, 12)

	for i := 0; i < 4; i++ {
		assert.Equal(t, GateRY, gates[i].Kind)
		assert.Equal(t, i, gates[i].Target)
		assert.Equal(t, i, gates[i].ParamIndex)
		assert.Equal(t, -1, gates[i].Control)
	}
	assert.Equal(t, Gate{Kind: GateCZ, Target: 1, Control: 0, ParamIndex: -1}, gates[4])
	assert.Equal(t, Gate{Kind: GateCZ, Target: 3, Control: 2, ParamIndex: -1}, gates[5])
	for i := 6; i < 10; i++ {
		assert.Equal(t, GateRY, gates[i].Kind)
		assert.Equal(t, i-6, gates[i].Target)
		assert.Equal(t, i-2, gates[i].ParamIndex)
	}
	assert.Equal(t, Gate{Kind: GateCZ, Target: 2, Control: 1, ParamIndex: -1}, gates[10])
	assert.Equal(t, Gate{Kind: GateCZ, Target: 3, Control: 0, ParamIndex: -1}, gates[11])
}

func TestGatesSingleQubitHasNoEntanglers(t *testing.T) {
	c, err := New(1, 2)
	require.NoError(t, err)

	for _, g := range c.Gates() {
		assert.Equal(t, GateRY, g.Kind)
	}
	assert.Len(t, c.Gates(), 4)
}

func TestGatesConsumeAllParameters(t *testing.T) {
	c, err := New(5, 3)
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, g := range c.Gates() {
		if g.Kind != GateRY {
			continue
		}
		assert.False(t, seen[g.ParamIndex], "parameter slot used twice")
		seen[g.ParamIndex] = true
	}
	assert.Len(t, seen, c.NParameters())
}
