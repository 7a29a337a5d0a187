package boost

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/aristath/qboost/internal/modules/circuit"
	"github.com/aristath/qboost/internal/modules/dbi"
	"github.com/aristath/qboost/internal/modules/progress"
	"github.com/aristath/qboost/internal/modules/quantum"
	"github.com/aristath/qboost/internal/modules/vqe"
)

// maxQubits caps the register size so the dense representation stays
// within a few hundred megabytes.
const maxQubits = 12

// Spec collects the knobs of a boosting run.
type Spec struct {
	NQubits         int
	NLayers         int
	NBoost          int
	BoostFrequency  int
	DBISteps        int
	DBIStepSize     float64
	OptimizeDBIStep bool
	Optimizer       string
	Tol             float64
	Hamiltonian     string
	Seed            int64
}

// Orchestrator runs the boosting loop: train the circuit, rotate the
// Hamiltonian into the trained frame, contract it with double-bracket
// flow, and repeat on the boosted operator.
type Orchestrator struct {
	trainer *vqe.Trainer
	rotator *Rotator
	log     zerolog.Logger
}

// NewOrchestrator wires a trainer and rotator into an orchestrator.
func NewOrchestrator(trainer *vqe.Trainer, rotator *Rotator, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		trainer: trainer,
		rotator: rotator,
		log:     log.With().Str("component", "orchestrator").Logger(),
	}
}

// Run executes the full boosting loop configured by spec. All inputs
// are validated before any numerical work starts. Every round after the
// first restarts training from the zero parameter vector, since the
// previous optimum has been rotated into the Hamiltonian.
//
// The callback receives one update per completed phase and may be nil.
func (o *Orchestrator) Run(ctx context.Context, spec Spec, cb progress.DetailedCallback) (*RunResult, error) {
	if err := o.validate(spec); err != nil {
		return nil, err
	}

	booster, err := dbi.New(spec.DBIStepSize, o.log)
	if err != nil {
		return nil, err
	}
	h, err := quantum.BuildFamily(spec.Hamiltonian, spec.NQubits)
	if err != nil {
		return nil, err
	}
	c, err := circuit.New(spec.NQubits, spec.NLayers)
	if err != nil {
		return nil, err
	}

	ground, err := h.GroundEnergy()
	if err != nil {
		return nil, err
	}

	o.log.Info().
		Str("hamiltonian", spec.Hamiltonian).
		Int("nqubits", spec.NQubits).
		Int("nlayers", spec.NLayers).
		Int("nboost", spec.NBoost).
		Float64("ground_energy", ground).
		Msg("Starting boosting run")

	rng := rand.New(rand.NewSource(spec.Seed))
	params := make([]float64, c.NParameters())
	for i := range params {
		params[i] = rng.NormFloat64()
	}

	current := h
	rounds := make(map[int]*RoundRecord, spec.NBoost)
	var lastTraining *vqe.Result

	for b := 0; b < spec.NBoost; b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b > 0 {
			params = make([]float64, c.NParameters())
		}

		training, trace, err := o.trainer.Train(c, current, spec.Optimizer, params, spec.Tol, spec.BoostFrequency)
		if err != nil {
			return nil, fmt.Errorf("round %d training: %w", b, err)
		}
		progress.CallDetailed(cb, progress.Update{
			Phase:    "vqe_training",
			SubPhase: fmt.Sprintf("round_%d", b),
			Current:  b + 1,
			Total:    spec.NBoost,
			Message:  training.Message,
			Details: map[string]any{
				"best_loss":  training.BestLoss,
				"iterations": training.MajorIterations,
			},
		})

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rotated, err := o.rotator.Rotate(current, c)
		if err != nil {
			return nil, fmt.Errorf("round %d rotation: %w", b, err)
		}
		boosted, dbiEnergies, dbiFluctuations, err := booster.Run(rotated, spec.DBISteps, spec.OptimizeDBIStep)
		if err != nil {
			return nil, fmt.Errorf("round %d flow: %w", b, err)
		}
		progress.CallDetailed(cb, progress.Update{
			Phase:    "dbi_flow",
			SubPhase: fmt.Sprintf("round_%d", b),
			Current:  b + 1,
			Total:    spec.NBoost,
			Message:  fmt.Sprintf("applied %d flow steps", spec.DBISteps),
			Details: map[string]any{
				"off_diagonal_norm": boosted.OffDiagonalNorm(),
			},
		})

		rounds[b] = &RoundRecord{
			Index:           b,
			Training:        training,
			Trace:           trace,
			DBIEnergies:     dbiEnergies,
			DBIFluctuations: dbiFluctuations,
		}
		current = boosted
		lastTraining = training

		o.log.Info().
			Int("round", b).
			Float64("best_loss", training.BestLoss).
			Bool("success", training.Success).
			Float64("off_diagonal_norm", current.OffDiagonalNorm()).
			Msg("Finished boosting round")
	}

	zero := quantum.ZeroState(spec.NQubits)
	finalEnergy, err := current.Expectation(zero)
	if err != nil {
		return nil, err
	}
	finalFluctuation, err := current.EnergyFluctuation(zero)
	if err != nil {
		return nil, err
	}

	result := &RunResult{
		Rounds:           rounds,
		FinalParameters:  c.Parameters(),
		FinalEnergy:      finalEnergy,
		FinalFluctuation: finalFluctuation,
		BestLoss:         lastTraining.BestLoss,
		GroundEnergy:     ground,
		Success:          lastTraining.Success,
		Message:          lastTraining.Message,
		FinalHamiltonian: current,
	}

	o.log.Info().
		Float64("final_energy", finalEnergy).
		Float64("ground_energy", ground).
		Bool("success", result.Success).
		Msg("Boosting run finished")

	return result, nil
}

func (o *Orchestrator) validate(spec Spec) error {
	if spec.NQubits > maxQubits {
		return &quantum.ConfigurationError{
			Field:   "nqubits",
			Message: fmt.Sprintf("must not exceed %d for the dense representation", maxQubits),
		}
	}
	if spec.NBoost < 1 {
		return &quantum.ConfigurationError{Field: "nboost", Message: "must be at least 1"}
	}
	if spec.BoostFrequency < 0 {
		return &quantum.ConfigurationError{Field: "boost_frequency", Message: "must not be negative"}
	}
	if spec.DBISteps < 0 {
		return &quantum.ConfigurationError{Field: "dbi_steps", Message: "must not be negative"}
	}
	if spec.Tol < 0 {
		return &quantum.ConfigurationError{Field: "tol", Message: "must not be negative"}
	}
	if !vqe.Supported(spec.Optimizer) {
		return &quantum.ConfigurationError{
			Field:   "optimizer",
			Message: fmt.Sprintf("unknown optimizer %q", spec.Optimizer),
		}
	}
	return nil
}
