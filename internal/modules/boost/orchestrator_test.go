package boost

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qboost/internal/modules/circuit"
	"github.com/aristath/qboost/internal/modules/progress"
	"github.com/aristath/qboost/internal/modules/quantum"
	"github.com/aristath/qboost/internal/modules/vqe"
)

func newTestOrchestrator() *Orchestrator {
	backend := circuit.NewStatevectorBackend(1)
	trainer := vqe.NewTrainer(backend, zerolog.Nop())
	rotator := NewRotator(backend, zerolog.Nop())
	return NewOrchestrator(trainer, rotator, zerolog.Nop())
}

func baseSpec() Spec {
	return Spec{
		NQubits:     2,
		NLayers:     2,
		NBoost:      1,
		DBISteps:    0,
		DBIStepSize: 0.01,
		Optimizer:   vqe.NelderMead,
		Tol:         1e-3,
		Hamiltonian: "xxz",
		Seed:        42,
	}
}

func TestRunSingleRound(t *testing.T) {
	res, err := newTestOrchestrator().Run(context.Background(), baseSpec(), nil)
	require.NoError(t, err)

	require.Len(t, res.Rounds, 1)
	round := res.Rounds[0]
	require.NotNil(t, round)
	assert.Equal(t, 0, round.Index)
	require.NotNil(t, round.Trace)
	assert.NotZero(t, round.Trace.Len())
	assert.Empty(t, round.DBIEnergies)

	assert.InDelta(t, -5.0, res.GroundEnergy, 1e-9)
	assert.Equal(t, round.Training.BestLoss, res.BestLoss)
	assert.Equal(t, round.Training.Success, res.Success)

	// With no flow steps the final Hamiltonian is just the rotated one,
	// whose zero-state energy is the trained circuit energy.
	assert.InDelta(t, res.BestLoss, res.FinalEnergy, 1e-9)
	assert.GreaterOrEqual(t, res.FinalEnergy, res.GroundEnergy-1e-9)
}

func TestRunLaterRoundsRestartFromZero(t *testing.T) {
	spec := baseSpec()
	spec.NBoost = 2
	spec.BoostFrequency = 3
	spec.DBISteps = 1

	res, err := newTestOrchestrator().Run(context.Background(), spec, nil)
	require.NoError(t, err)

	require.Len(t, res.Rounds, 2)
	for b := 0; b < 2; b++ {
		require.Contains(t, res.Rounds, b)
		assert.Equal(t, b, res.Rounds[b].Index)
	}

	first := res.Rounds[1].Trace.Parameters[0]
	assert.Equal(t, make([]float64, len(first)), first, "second round must start from the zero vector")

	// Round zero starts from the seeded random vector instead.
	zeroRow := res.Rounds[0].Trace.Parameters[0]
	nonZero := false
	for _, v := range zeroRow {
		if v != 0 {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}

func TestRunRecordsFlowHistories(t *testing.T) {
	spec := baseSpec()
	spec.DBISteps = 2

	res, err := newTestOrchestrator().Run(context.Background(), spec, nil)
	require.NoError(t, err)

	round := res.Rounds[0]
	assert.Len(t, round.DBIEnergies, 2)
	assert.Len(t, round.DBIFluctuations, 2)
	require.NotNil(t, res.FinalHamiltonian)

	// The last flow history row matches the final zero-state evaluation.
	assert.InDelta(t, round.DBIEnergies[1], res.FinalEnergy, 1e-12)
	assert.InDelta(t, round.DBIFluctuations[1], res.FinalFluctuation, 1e-12)
}

func TestRunProgressPhases(t *testing.T) {
	spec := baseSpec()
	spec.DBISteps = 1

	var updates []progress.Update
	cb := func(u progress.Update) { updates = append(updates, u) }

	_, err := newTestOrchestrator().Run(context.Background(), spec, cb)
	require.NoError(t, err)

	require.Len(t, updates, 2)
	assert.Equal(t, "vqe_training", updates[0].Phase)
	assert.Equal(t, "round_0", updates[0].SubPhase)
	assert.Equal(t, 1, updates[0].Total)
	assert.Equal(t, "dbi_flow", updates[1].Phase)
	assert.Contains(t, updates[1].Details, "off_diagonal_norm")
}

func TestRunContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestOrchestrator().Run(ctx, baseSpec(), nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec)
		field  string
	}{
		{name: "too many qubits", mutate: func(s *Spec) { s.NQubits = 20 }, field: "nqubits"},
		{name: "zero rounds", mutate: func(s *Spec) { s.NBoost = 0 }, field: "nboost"},
		{name: "negative frequency", mutate: func(s *Spec) { s.BoostFrequency = -1 }, field: "boost_frequency"},
		{name: "negative flow steps", mutate: func(s *Spec) { s.DBISteps = -1 }, field: "dbi_steps"},
		{name: "negative tol", mutate: func(s *Spec) { s.Tol = -1 }, field: "tol"},
		{name: "unknown optimizer", mutate: func(s *Spec) { s.Optimizer = "powell" }, field: "optimizer"},
		{name: "bad step size", mutate: func(s *Spec) { s.DBIStepSize = 0 }, field: "stepsize"},
		{name: "unknown family", mutate: func(s *Spec) { s.Hamiltonian = "heisenberg" }, field: "hamiltonian"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := baseSpec()
			tt.mutate(&spec)

			_, err := newTestOrchestrator().Run(context.Background(), spec, nil)
			var cfgErr *quantum.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
