package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/qboost/internal/config"
)

func defaultRunConfig() config.RunConfig {
	return config.RunConfig{
		Backend:     "statevector",
		Threads:     1,
		Optimizer:   "neldermead",
		Tol:         1e-2,
		NQubits:     6,
		NLayers:     5,
		NBoost:      1,
		DBISteps:    1,
		DBIStepSize: 0.01,
		Hamiltonian: "xxz",
		Seed:        42,
	}
}

func TestRunFlagsOverlay(t *testing.T) {
	t.Run("unset flags keep the defaults", func(t *testing.T) {
		fs := flag.NewFlagSet("run", flag.ContinueOnError)
		flags := newRunFlags(fs, defaultRunConfig())
		require.NoError(t, fs.Parse(nil))

		runCfg := defaultRunConfig()
		flags.overlay(fs, &runCfg)
		assert.Equal(t, defaultRunConfig(), runCfg)
	})

	t.Run("set flags overwrite the defaults", func(t *testing.T) {
		fs := flag.NewFlagSet("run", flag.ContinueOnError)
		flags := newRunFlags(fs, defaultRunConfig())
		require.NoError(t, fs.Parse([]string{
			"-nqubits", "4",
			"-optimizer", "bfgs",
			"-stepsize", "0.05",
			"-optimize_dbi_step",
			"-seed", "7",
		}))

		runCfg := defaultRunConfig()
		flags.overlay(fs, &runCfg)

		assert.Equal(t, 4, runCfg.NQubits)
		assert.Equal(t, "bfgs", runCfg.Optimizer)
		assert.InDelta(t, 0.05, runCfg.DBIStepSize, 1e-12)
		assert.True(t, runCfg.OptimizeDBIStep)
		assert.Equal(t, int64(7), runCfg.Seed)

		// Untouched fields stay at their defaults
		assert.Equal(t, 5, runCfg.NLayers)
		assert.Equal(t, "xxz", runCfg.Hamiltonian)
	})
}

func TestFlagsBeatExperimentFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "experiment.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nqubits: 8\nnlayers: 3\nhamiltonian: tfim\n"), 0644))

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	flags := newRunFlags(fs, defaultRunConfig())
	require.NoError(t, fs.Parse([]string{"-nqubits", "2"}))

	runCfg := defaultRunConfig()
	require.NoError(t, runCfg.ApplyExperiment(path))
	flags.overlay(fs, &runCfg)

	// The explicit flag wins over the file
	assert.Equal(t, 2, runCfg.NQubits)
	// The file wins over the environment defaults
	assert.Equal(t, 3, runCfg.NLayers)
	assert.Equal(t, "tfim", runCfg.Hamiltonian)
}
