package circuit

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/aristath/qboost/internal/modules/quantum"
)

// Statevector is the name of the built-in dense simulator backend.
const Statevector = "statevector"

// Options configures backend construction.
type Options struct {
	// Threads sizes the worker pool used when realizing unitaries and
	// updating large state vectors. Values below 2 mean serial execution.
	Threads int
}

// Backend evaluates circuits. Execute applies the circuit to the zero
// state and returns the resulting amplitudes; Unitary realizes the full
// matrix of the circuit in the computational basis.
type Backend interface {
	Name() string
	Execute(c *Circuit, params []float64) ([]float64, error)
	Unitary(c *Circuit, params []float64) (*mat.Dense, error)
}

// Factory builds a backend from options.
type Factory func(Options) Backend

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		Statevector: func(opts Options) Backend { return NewStatevectorBackend(opts.Threads) },
	}
)

// RegisterBackend makes a backend constructor available under the given
// name, replacing any previous registration.
func RegisterBackend(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[strings.ToLower(name)] = factory
}

// NewBackend constructs the backend registered under name.
func NewBackend(name string, opts Options) (Backend, error) {
	registryMu.RLock()
	factory, ok := registry[strings.ToLower(name)]
	registryMu.RUnlock()
	if !ok {
		return nil, &quantum.ConfigurationError{
			Field:   "backend",
			Message: fmt.Sprintf("unknown backend %q, known backends: %s", name, strings.Join(BackendNames(), ", ")),
		}
	}
	return factory(opts), nil
}

// BackendNames returns the registered backend names in sorted order.
func BackendNames() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
