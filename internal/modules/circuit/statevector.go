package circuit

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/qboost/internal/modules/quantum"
)

// parallelThreshold is the state dimension below which gate kernels run
// serially even when a worker pool is configured. Small registers finish
// faster than the goroutine handoff costs.
const parallelThreshold = 1 << 11

// StatevectorBackend simulates circuits by dense state-vector evolution.
// Amplitudes are real throughout: RY rotations and CZ entanglers keep a
// real initial state real, which halves memory and lets the rest of the
// pipeline work with plain float64 matrices.
type StatevectorBackend struct {
	threads int
}

// NewStatevectorBackend creates a simulator using the given number of
// worker threads for unitary realization and large state updates.
func NewStatevectorBackend(threads int) *StatevectorBackend {
	if threads < 1 {
		threads = 1
	}
	return &StatevectorBackend{threads: threads}
}

// Name returns the registry name of the backend.
func (b *StatevectorBackend) Name() string { return Statevector }

// Threads returns the configured worker count.
func (b *StatevectorBackend) Threads() int { return b.threads }

// Execute applies the circuit with the given parameters to the zero state
// and returns the final amplitudes, ordered so that qubit 0 is the most
// significant bit of the basis index.
func (b *StatevectorBackend) Execute(c *Circuit, params []float64) ([]float64, error) {
	if err := validateParams(c, params); err != nil {
		return nil, err
	}
	state := quantum.ZeroState(c.NQubits())
	b.applyGates(state, c.NQubits(), c.Gates(), params)
	return state, nil
}

// Unitary realizes the circuit matrix column by column: column j is the
// circuit applied to basis state j. Columns are independent, so they are
// distributed over a worker pool when more than one thread is configured.
func (b *StatevectorBackend) Unitary(c *Circuit, params []float64) (*mat.Dense, error) {
	if err := validateParams(c, params); err != nil {
		return nil, err
	}
	n := c.NQubits()
	dim := 1 << n
	gates := c.Gates()
	u := mat.NewDense(dim, dim, nil)

	buildColumn := func(j int) {
		state := make([]float64, dim)
		state[j] = 1
		serial := &StatevectorBackend{threads: 1}
		serial.applyGates(state, n, gates, params)
		for i := 0; i < dim; i++ {
			u.Set(i, j, state[i])
		}
	}

	if b.threads < 2 {
		for j := 0; j < dim; j++ {
			buildColumn(j)
		}
		return u, nil
	}

	jobs := make(chan int, dim)
	var wg sync.WaitGroup
	for w := 0; w < b.threads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				buildColumn(j)
			}
		}()
	}
	for j := 0; j < dim; j++ {
		jobs <- j
	}
	close(jobs)
	wg.Wait()
	return u, nil
}

func validateParams(c *Circuit, params []float64) error {
	if c == nil {
		return &quantum.ConfigurationError{Field: "circuit", Message: "must not be nil"}
	}
	if len(params) != c.NParameters() {
		return &quantum.DimensionMismatchError{
			Context:  "circuit parameters",
			Expected: c.NParameters(),
			Actual:   len(params),
		}
	}
	return nil
}

func (b *StatevectorBackend) applyGates(state []float64, nqubits int, gates []Gate, params []float64) {
	for _, g := range gates {
		switch g.Kind {
		case GateRY:
			b.applyRY(state, nqubits, g.Target, params[g.ParamIndex])
		case GateCZ:
			b.applyCZ(state, nqubits, g.Control, g.Target)
		}
	}
}

// applyRY rotates the target qubit by theta about Y. Basis indices pair
// up as (i, i|mask) with the target bit clear in i; each pair mixes
// through the 2x2 rotation block.
func (b *StatevectorBackend) applyRY(state []float64, nqubits, target int, theta float64) {
	mask := 1 << (nqubits - 1 - target)
	cos := math.Cos(theta / 2)
	sin := math.Sin(theta / 2)
	b.forRange(len(state), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if i&mask != 0 {
				continue
			}
			j := i | mask
			a, c := state[i], state[j]
			state[i] = cos*a - sin*c
			state[j] = sin*a + cos*c
		}
	})
}

// applyCZ negates amplitudes where both the control and target bits are
// set.
func (b *StatevectorBackend) applyCZ(state []float64, nqubits, control, target int) {
	cmask := 1 << (nqubits - 1 - control)
	tmask := 1 << (nqubits - 1 - target)
	both := cmask | tmask
	b.forRange(len(state), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if i&both == both {
				state[i] = -state[i]
			}
		}
	})
}

// forRange runs fn over contiguous chunks of [0, dim). Chunks are
// processed in parallel when the pool is sized for it and the state is
// large enough to amortize the dispatch. RY pairs never straddle chunk
// ownership: the partner index i|mask is written only by the worker that
// owns i.
func (b *StatevectorBackend) forRange(dim int, fn func(lo, hi int)) {
	if b.threads < 2 || dim < parallelThreshold {
		fn(0, dim)
		return
	}
	chunk := (dim + b.threads - 1) / b.threads
	var wg sync.WaitGroup
	for lo := 0; lo < dim; lo += chunk {
		hi := lo + chunk
		if hi > dim {
			hi = dim
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}
