package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aristath/qboost/internal/config"
	"github.com/aristath/qboost/internal/database"
	"github.com/aristath/qboost/internal/events"
	"github.com/aristath/qboost/internal/modules/results"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunService(t *testing.T) (*RunService, *events.Bus, string) {
	t.Helper()

	dataDir := t.TempDir()
	db, err := database.New(database.Config{
		Path:    filepath.Join(dataDir, "runs.db"),
		Profile: database.ProfileDurable,
		Name:    "runs",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := results.NewStore(db, zerolog.Nop())
	require.NoError(t, err)

	bus := events.NewBus(zerolog.Nop())
	manager := events.NewManager(bus, zerolog.Nop())
	recorder := results.NewRecorder(zerolog.Nop())

	service := NewRunService(dataDir, store, recorder, manager, zerolog.Nop())
	return service, bus, dataDir
}

func fastRunConfig() config.RunConfig {
	return config.RunConfig{
		Backend:     "statevector",
		Threads:     1,
		Optimizer:   "neldermead",
		Tol:         1e-3,
		NQubits:     2,
		NLayers:     2,
		NBoost:      1,
		DBISteps:    1,
		DBIStepSize: 0.01,
		Hamiltonian: "xxz",
		Seed:        42,
	}
}

func TestExecuteProducesArtifactsAndIndex(t *testing.T) {
	service, _, _ := newTestRunService(t)

	meta, err := service.Execute(context.Background(), fastRunConfig())
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.NotEmpty(t, meta.RunID)
	assert.Equal(t, "xxz", meta.Hamiltonian)
	assert.InDelta(t, -5.0, meta.TrueGroundEnergy, 1e-9)
	assert.LessOrEqual(t, meta.BestLoss, 0.0)
	assert.Greater(t, meta.DurationSeconds, 0.0)
	require.NotNil(t, meta.Host)
	assert.NotEmpty(t, meta.Host.GoVersion)

	// Artifacts exist in the per-run directory
	row := requireIndexedRun(t, service, meta.RunID)
	for _, name := range []string{
		results.MetadataFile,
		results.EnergiesFile,
		results.ParametersFile,
		results.DBIEnergiesFile,
		results.HamiltonianFile,
	} {
		_, err := os.Stat(filepath.Join(row.Path, name))
		assert.NoError(t, err, "expected artifact %s", name)
	}

	assert.Equal(t, meta.BestLoss, row.BestLoss)
	assert.Equal(t, meta.Energy, row.FinalEnergy)
	assert.InDelta(t, -5.0, row.GroundEnergy, 1e-9)
}

func requireIndexedRun(t *testing.T, service *RunService, runID string) *results.RunRow {
	t.Helper()
	row, err := service.store.Get(runID)
	require.NoError(t, err)
	require.NotNil(t, row, "run should be indexed")
	return row
}

func TestExecuteRejectsInvalidConfig(t *testing.T) {
	service, _, _ := newTestRunService(t)

	cfg := fastRunConfig()
	cfg.NQubits = 1

	_, err := service.Execute(context.Background(), cfg)
	require.Error(t, err)

	// A rejected run must not hold the execution slot
	assert.False(t, service.Status().Running)
}

func TestExecuteEmitsLifecycleEvents(t *testing.T) {
	service, bus, _ := newTestRunService(t)

	started := make(chan *events.Event, 1)
	completed := make(chan *events.Event, 1)
	saved := make(chan *events.Event, 1)
	progressed := make(chan *events.Event, 16)

	_ = bus.Subscribe(events.RunStarted, func(e *events.Event) { started <- e })
	_ = bus.Subscribe(events.RunCompleted, func(e *events.Event) { completed <- e })
	_ = bus.Subscribe(events.ResultSaved, func(e *events.Event) { saved <- e })
	_ = bus.Subscribe(events.RunProgress, func(e *events.Event) { progressed <- e })

	meta, err := service.Execute(context.Background(), fastRunConfig())
	require.NoError(t, err)

	waitEvent := func(name string, ch chan *events.Event) *events.Event {
		select {
		case e := <-ch:
			return e
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected %s event not received", name)
			return nil
		}
	}

	e := waitEvent("run_started", started)
	typed, ok := e.GetTypedData().(*events.RunStatusData)
	require.True(t, ok)
	assert.Equal(t, meta.RunID, typed.RunID)
	assert.Equal(t, "started", typed.Status)

	e = waitEvent("run_completed", completed)
	typed, ok = e.GetTypedData().(*events.RunStatusData)
	require.True(t, ok)
	assert.Equal(t, "completed", typed.Status)
	assert.Greater(t, typed.Duration, 0.0)

	e = waitEvent("result_saved", saved)
	savedData, ok := e.GetTypedData().(*events.ResultSavedData)
	require.True(t, ok)
	assert.Equal(t, meta.RunID, savedData.RunID)
	assert.NotEmpty(t, savedData.Path)

	// One training and one flow update for the single round
	e = waitEvent("run_progress", progressed)
	typed, ok = e.GetTypedData().(*events.RunStatusData)
	require.True(t, ok)
	require.NotNil(t, typed.Progress)
	assert.NotEmpty(t, typed.Progress.Phase)
}

func TestExecuteReportsNonConvergence(t *testing.T) {
	service, _, _ := newTestRunService(t)

	cfg := fastRunConfig()
	cfg.Tol = 1e-12
	cfg.BoostFrequency = 2
	cfg.DBISteps = 0

	meta, err := service.Execute(context.Background(), cfg)
	require.NoError(t, err, "non-convergence is an outcome, not an error")
	assert.False(t, meta.Success)
	assert.Contains(t, meta.Message, "did not converge")

	row := requireIndexedRun(t, service, meta.RunID)
	assert.False(t, row.Success)
}

func TestExecuteHonorsContextCancellation(t *testing.T) {
	service, _, _ := newTestRunService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Execute(ctx, fastRunConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, service.Status().Running)
}

func TestStartRejectsConcurrentRuns(t *testing.T) {
	service, _, _ := newTestRunService(t)

	// Occupy the slot directly so the outcome does not depend on timing
	release, err := service.acquire("run_busy", func() {})
	require.NoError(t, err)
	defer release()

	_, err = service.Start(fastRunConfig())
	assert.ErrorIs(t, err, ErrRunInProgress)

	_, err = service.Execute(context.Background(), fastRunConfig())
	assert.ErrorIs(t, err, ErrRunInProgress)

	status := service.Status()
	assert.True(t, status.Running)
	assert.Equal(t, "run_busy", status.RunID)
}

func TestStartReleasesSlotWhenFinished(t *testing.T) {
	service, bus, _ := newTestRunService(t)

	done := make(chan struct{}, 1)
	_ = bus.Subscribe(events.RunCompleted, func(e *events.Event) { done <- struct{}{} })

	runID, err := service.Start(fastRunConfig())
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Background run did not complete")
	}

	// The slot is released shortly after completion
	deadline := time.Now().Add(2 * time.Second)
	for service.Status().Running {
		if time.Now().After(deadline) {
			t.Fatal("Execution slot not released")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCancelWithoutActiveRun(t *testing.T) {
	service, _, _ := newTestRunService(t)
	assert.False(t, service.Cancel())
}

func TestStatusDefaultsToIdle(t *testing.T) {
	service, _, _ := newTestRunService(t)
	status := service.Status()
	assert.False(t, status.Running)
	assert.Empty(t, status.RunID)
}
