// Package services provides core business services shared across multiple modules.
//
// This package contains RunService, which assembles the boosting pipeline
// from configuration, executes it, and persists the outcome.
package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/aristath/qboost/internal/config"
	"github.com/aristath/qboost/internal/events"
	"github.com/aristath/qboost/internal/modules/boost"
	"github.com/aristath/qboost/internal/modules/circuit"
	"github.com/aristath/qboost/internal/modules/progress"
	"github.com/aristath/qboost/internal/modules/quantum"
	"github.com/aristath/qboost/internal/modules/results"
	"github.com/aristath/qboost/internal/modules/vqe"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRunInProgress is returned when a run is requested while another run
// holds the execution slot. The pipeline is single-flight: every run owns
// the optimizer, the backend thread pool, and its output directory.
var ErrRunInProgress = errors.New("a run is already in progress")

const runDescription = "Boosted variational ground state search"

// Status describes the service's current execution slot.
type Status struct {
	Running bool   `json:"running"`
	RunID   string `json:"run_id,omitempty"`
}

// RunService executes boosting runs and records their artifacts.
type RunService struct {
	dataDir      string
	store        *results.Store
	recorder     *results.Recorder
	eventManager *events.Manager
	log          zerolog.Logger

	mu       sync.Mutex
	running  bool
	activeID string
	cancel   context.CancelFunc
}

// NewRunService creates a run service.
func NewRunService(
	dataDir string,
	store *results.Store,
	recorder *results.Recorder,
	eventManager *events.Manager,
	log zerolog.Logger,
) *RunService {
	return &RunService{
		dataDir:      dataDir,
		store:        store,
		recorder:     recorder,
		eventManager: eventManager,
		log:          log.With().Str("service", "run").Logger(),
	}
}

// Status reports whether a run is active and which one.
func (s *RunService) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Running: s.running, RunID: s.activeID}
}

// Cancel stops the active run, if any. Returns false when nothing is running.
func (s *RunService) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.cancel == nil {
		return false
	}
	s.cancel()
	return true
}

// Execute runs the pipeline synchronously and returns the saved metadata.
// Used by the CLI run command.
func (s *RunService) Execute(ctx context.Context, runCfg config.RunConfig) (*results.Metadata, error) {
	if err := runCfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)
	release, err := s.acquire(runID, cancel)
	if err != nil {
		cancel()
		return nil, err
	}
	defer release()

	return s.execute(runCtx, runID, runCfg)
}

// Start launches the pipeline in the background and returns its run ID.
// Used by the HTTP run endpoint. Returns ErrRunInProgress when the
// execution slot is taken.
func (s *RunService) Start(runCfg config.RunConfig) (string, error) {
	if err := runCfg.Validate(); err != nil {
		return "", err
	}

	runID := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	release, err := s.acquire(runID, cancel)
	if err != nil {
		cancel()
		return "", err
	}

	go func() {
		defer release()
		if _, err := s.execute(ctx, runID, runCfg); err != nil {
			s.log.Error().Err(err).Str("run_id", runID).Msg("Run failed")
		}
	}()

	return runID, nil
}

// acquire claims the execution slot for runID. The returned release func
// frees the slot and cancels the run context.
func (s *RunService) acquire(runID string, cancel context.CancelFunc) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil, ErrRunInProgress
	}
	s.running = true
	s.activeID = runID
	s.cancel = cancel

	release := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.running = false
		s.activeID = ""
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
	}
	return release, nil
}

// execute assembles the pipeline, runs it, and persists the outcome.
// Optimizer non-convergence is a valid outcome, not an error: the run
// completes with Success=false in its metadata.
func (s *RunService) execute(ctx context.Context, runID string, runCfg config.RunConfig) (*results.Metadata, error) {
	started := time.Now()

	s.log.Info().
		Str("run_id", runID).
		Str("hamiltonian", runCfg.Hamiltonian).
		Int("nqubits", runCfg.NQubits).
		Int("nlayers", runCfg.NLayers).
		Int("nboost", runCfg.NBoost).
		Str("optimizer", runCfg.Optimizer).
		Msg("Starting run")

	s.emitStatus(runID, runCfg, &events.RunStatusData{
		Status:      "started",
		Description: runDescription,
	})

	backend, err := circuit.NewBackend(runCfg.Backend, circuit.Options{Threads: runCfg.Threads})
	if err != nil {
		return nil, s.fail(runID, runCfg, started, err)
	}

	trainer := vqe.NewTrainer(backend, s.log)
	rotator := boost.NewRotator(backend, s.log)
	orchestrator := boost.NewOrchestrator(trainer, rotator, s.log)

	spec := boost.Spec{
		NQubits:         runCfg.NQubits,
		NLayers:         runCfg.NLayers,
		NBoost:          runCfg.NBoost,
		BoostFrequency:  runCfg.BoostFrequency,
		DBISteps:        runCfg.DBISteps,
		DBIStepSize:     runCfg.DBIStepSize,
		OptimizeDBIStep: runCfg.OptimizeDBIStep,
		Optimizer:       runCfg.Optimizer,
		Tol:             runCfg.Tol,
		Hamiltonian:     runCfg.Hamiltonian,
		Seed:            runCfg.Seed,
	}

	result, err := orchestrator.Run(ctx, spec, s.progressBridge(runID, runCfg))
	if err != nil {
		return nil, s.fail(runID, runCfg, started, err)
	}

	// Rebuild the untransformed Hamiltonian for the artifact dump.
	original, err := quantum.BuildFamily(runCfg.Hamiltonian, runCfg.NQubits)
	if err != nil {
		return nil, s.fail(runID, runCfg, started, err)
	}

	duration := time.Since(started)
	dir := filepath.Join(runCfg.OutputDir(s.dataDir), runID)
	meta := s.buildMetadata(runID, runCfg, result, duration)

	if err := s.recorder.Save(dir, meta, original, result); err != nil {
		return nil, s.fail(runID, runCfg, started, err)
	}

	if err := s.store.Insert(results.RunRow{
		ID:              runID,
		CreatedAt:       meta.CreatedAt,
		Optimizer:       runCfg.Optimizer,
		Hamiltonian:     runCfg.Hamiltonian,
		NQubits:         runCfg.NQubits,
		NLayers:         runCfg.NLayers,
		NBoost:          runCfg.NBoost,
		Seed:            runCfg.Seed,
		BestLoss:        result.BestLoss,
		FinalEnergy:     result.FinalEnergy,
		GroundEnergy:    result.GroundEnergy,
		Success:         result.Success,
		Message:         result.Message,
		Path:            dir,
		DurationSeconds: duration.Seconds(),
	}); err != nil {
		return nil, s.fail(runID, runCfg, started, err)
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped(events.ResultSaved, "run_service", &events.ResultSavedData{
			RunID:        runID,
			Path:         dir,
			FinalEnergy:  result.FinalEnergy,
			GroundEnergy: result.GroundEnergy,
			BestLoss:     result.BestLoss,
			Success:      result.Success,
		})
	}

	s.emitStatus(runID, runCfg, &events.RunStatusData{
		Status:      "completed",
		Description: runDescription,
		Duration:    duration.Seconds(),
		Metadata: map[string]interface{}{
			"final_energy":  result.FinalEnergy,
			"ground_energy": result.GroundEnergy,
			"best_loss":     result.BestLoss,
			"success":       result.Success,
		},
	})

	s.log.Info().
		Str("run_id", runID).
		Float64("final_energy", result.FinalEnergy).
		Float64("ground_energy", result.GroundEnergy).
		Bool("converged", result.Success).
		Dur("duration", duration).
		Msg("Run completed")

	return meta, nil
}

// progressBridge adapts pipeline progress updates to run progress events.
func (s *RunService) progressBridge(runID string, runCfg config.RunConfig) progress.DetailedCallback {
	if s.eventManager == nil {
		return nil
	}
	return func(u progress.Update) {
		s.emitStatus(runID, runCfg, &events.RunStatusData{
			Status:      "progress",
			Description: runDescription,
			Progress: &events.RunProgressInfo{
				Current:  u.Current,
				Total:    u.Total,
				Message:  u.Message,
				Phase:    u.Phase,
				SubPhase: u.SubPhase,
				Details:  u.Details,
			},
		})
	}
}

func (s *RunService) emitStatus(runID string, runCfg config.RunConfig, data *events.RunStatusData) {
	if s.eventManager == nil {
		return
	}
	data.RunID = runID
	data.Hamiltonian = runCfg.Hamiltonian
	data.Timestamp = time.Now()
	s.eventManager.EmitTyped(data.EventType(), "run_service", data)
}

func (s *RunService) fail(runID string, runCfg config.RunConfig, started time.Time, err error) error {
	s.emitStatus(runID, runCfg, &events.RunStatusData{
		Status:      "failed",
		Description: runDescription,
		Error:       err.Error(),
		Duration:    time.Since(started).Seconds(),
	})
	return fmt.Errorf("run %s: %w", runID, err)
}

func (s *RunService) buildMetadata(runID string, runCfg config.RunConfig, result *boost.RunResult, duration time.Duration) *results.Metadata {
	return &results.Metadata{
		RunID:            runID,
		CreatedAt:        time.Now().UTC(),
		Backend:          runCfg.Backend,
		Threads:          runCfg.Threads,
		Optimizer:        runCfg.Optimizer,
		Tol:              runCfg.Tol,
		NQubits:          runCfg.NQubits,
		NLayers:          runCfg.NLayers,
		NBoost:           runCfg.NBoost,
		BoostFrequency:   runCfg.BoostFrequency,
		DBISteps:         runCfg.DBISteps,
		DBIStepSize:      runCfg.DBIStepSize,
		OptimizeDBIStep:  runCfg.OptimizeDBIStep,
		Hamiltonian:      runCfg.Hamiltonian,
		Seed:             runCfg.Seed,
		BestLoss:         result.BestLoss,
		TrueGroundEnergy: result.GroundEnergy,
		Success:          result.Success,
		Message:          result.Message,
		Energy:           result.FinalEnergy,
		Fluctuations:     result.FinalFluctuation,
		DurationSeconds:  duration.Seconds(),
		Host:             s.recorder.CollectHostInfo(),
	}
}
