package vqe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceAppendCopiesParameters(t *testing.T) {
	trace := &Trace{}

	params := []float64{1, 2, 3}
	trace.Append(params, -0.5, 0.1)
	params[0] = 99

	assert.Equal(t, []float64{1, 2, 3}, trace.Parameters[0])
	assert.Equal(t, []float64{-0.5}, trace.Energies)
	assert.Equal(t, []float64{0.1}, trace.Fluctuations)
	assert.Equal(t, 1, trace.Len())
}

func TestTraceLenTracksRows(t *testing.T) {
	trace := &Trace{}
	assert.Equal(t, 0, trace.Len())

	trace.Append([]float64{0}, 1, 0)
	trace.Append([]float64{1}, 0.5, 0)
	assert.Equal(t, 2, trace.Len())
	assert.Len(t, trace.Parameters, 2)
	assert.Len(t, trace.Fluctuations, 2)
}
