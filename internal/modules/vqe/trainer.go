package vqe

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/qboost/internal/modules/circuit"
	"github.com/aristath/qboost/internal/modules/quantum"
)

// Trainer minimizes the energy expectation of a parameterized circuit
// against a Hamiltonian.
type Trainer struct {
	backend circuit.Backend
	log     zerolog.Logger
}

// NewTrainer creates a trainer that evaluates circuits on the given
// backend.
func NewTrainer(backend circuit.Backend, log zerolog.Logger) *Trainer {
	return &Trainer{
		backend: backend,
		log:     log.With().Str("component", "vqe_trainer").Logger(),
	}
}

// Result summarizes one training round. Success reflects whether the
// optimizer reported convergence; a non-converged run is still a valid
// result carrying the best point found.
type Result struct {
	BestLoss        float64
	BestParameters  []float64
	Success         bool
	Message         string
	MajorIterations int
	FuncEvaluations int
}

// Train minimizes the energy of the circuit against the Hamiltonian,
// starting from the given parameter vector. The returned trace holds one
// row for the starting point and one per major optimizer iteration. On
// return the circuit is left at the best parameters found.
//
// A maxIterations of zero means no iteration cap. Optimizer
// non-convergence is not an error: it is reported through Success and
// Message. Errors are reserved for invalid inputs and evaluation
// failures.
func (t *Trainer) Train(
	c *circuit.Circuit,
	h *quantum.Hamiltonian,
	optimizerName string,
	initial []float64,
	tol float64,
	maxIterations int,
) (*Result, *Trace, error) {
	if t.backend == nil {
		return nil, nil, &quantum.ConfigurationError{Field: "backend", Message: "must not be nil"}
	}
	if c == nil {
		return nil, nil, &quantum.ConfigurationError{Field: "circuit", Message: "must not be nil"}
	}
	if h == nil {
		return nil, nil, &quantum.ConfigurationError{Field: "hamiltonian", Message: "must not be nil"}
	}
	if h.NQubits() != c.NQubits() {
		return nil, nil, &quantum.DimensionMismatchError{
			Context:  "training hamiltonian qubits",
			Expected: c.NQubits(),
			Actual:   h.NQubits(),
		}
	}
	if len(initial) != c.NParameters() {
		return nil, nil, &quantum.DimensionMismatchError{
			Context:  "initial parameters",
			Expected: c.NParameters(),
			Actual:   len(initial),
		}
	}
	if tol < 0 {
		return nil, nil, &quantum.ConfigurationError{Field: "tol", Message: "must not be negative"}
	}
	if maxIterations < 0 {
		return nil, nil, &quantum.ConfigurationError{Field: "max_iterations", Message: "must not be negative"}
	}
	method, needsGradient, err := newMethod(optimizerName)
	if err != nil {
		return nil, nil, err
	}

	t.log.Info().
		Str("optimizer", optimizerName).
		Int("parameters", c.NParameters()).
		Float64("tol", tol).
		Int("max_iterations", maxIterations).
		Msg("Starting VQE training")

	// Evaluation failures inside optimizer callbacks are captured here
	// and surfaced after Minimize returns; the objective reports NaN so
	// the optimizer stops making progress on garbage.
	var evalErr error
	measure := func(x []float64) (float64, float64, error) {
		state, err := t.backend.Execute(c, x)
		if err != nil {
			return math.NaN(), math.NaN(), err
		}
		energy, err := h.Expectation(state)
		if err != nil {
			return math.NaN(), math.NaN(), err
		}
		fluctuation, err := h.EnergyFluctuation(state)
		if err != nil {
			return math.NaN(), math.NaN(), err
		}
		return energy, fluctuation, nil
	}
	objective := func(x []float64) float64 {
		energy, _, err := measure(x)
		if err != nil && evalErr == nil {
			evalErr = err
		}
		return energy
	}

	problem := optimize.Problem{Func: objective}
	if needsGradient {
		problem.Grad = func(grad, x []float64) {
			fd.Gradient(grad, objective, x, nil)
		}
	}

	trace := &Trace{}
	recorder := &traceRecorder{trace: trace, measure: measure}
	settings := &optimize.Settings{Recorder: recorder}
	if maxIterations > 0 {
		settings.MajorIterations = maxIterations
	}
	if tol > 0 {
		settings.Converger = &optimize.FunctionConverge{Absolute: tol, Iterations: 20}
	}

	start := make([]float64, len(initial))
	copy(start, initial)

	result, optErr := optimize.Minimize(problem, start, settings, method)
	if evalErr != nil {
		return nil, nil, evalErr
	}
	if recorder.err != nil {
		return nil, nil, recorder.err
	}
	if optErr != nil {
		return nil, nil, &quantum.NumericalInstabilityError{Operation: "vqe training", Err: optErr}
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	best := make([]float64, len(result.X))
	copy(best, result.X)
	res := &Result{
		BestLoss:        result.F,
		BestParameters:  best,
		Success:         successStatuses[result.Status],
		MajorIterations: result.Stats.MajorIterations,
		FuncEvaluations: result.Stats.FuncEvaluations,
	}
	if res.Success {
		res.Message = fmt.Sprintf("optimization converged: status=%v", result.Status)
	} else {
		res.Message = fmt.Sprintf("optimization did not converge: status=%v", result.Status)
	}

	if err := c.SetParameters(best); err != nil {
		return nil, nil, err
	}

	t.log.Info().
		Float64("best_loss", res.BestLoss).
		Bool("success", res.Success).
		Int("major_iterations", res.MajorIterations).
		Int("func_evaluations", res.FuncEvaluations).
		Msg("VQE training finished")

	return res, trace, nil
}

// traceRecorder appends one trace row at optimizer initialization and
// after every major iteration, so the starting point is always row zero.
type traceRecorder struct {
	trace   *Trace
	measure func(x []float64) (float64, float64, error)
	err     error
}

func (r *traceRecorder) Init() error { return nil }

func (r *traceRecorder) Record(loc *optimize.Location, op optimize.Operation, _ *optimize.Stats) error {
	if op&(optimize.InitIteration|optimize.MajorIteration) == 0 {
		return nil
	}
	energy, fluctuation, err := r.measure(loc.X)
	if err != nil {
		r.err = err
		return err
	}
	r.trace.Append(loc.X, energy, fluctuation)
	return nil
}
