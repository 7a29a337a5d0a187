package vqe

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/optimize"

	"github.com/aristath/qboost/internal/modules/quantum"
)

// NelderMead is the default optimizer. It needs no gradients, which keeps
// each iteration at a single circuit execution.
const NelderMead = "neldermead"

type methodSpec struct {
	build         func() optimize.Method
	needsGradient bool
}

var methods = map[string]methodSpec{
	NelderMead: {build: func() optimize.Method { return &optimize.NelderMead{} }},
	"bfgs":     {build: func() optimize.Method { return &optimize.BFGS{} }, needsGradient: true},
	"lbfgs":    {build: func() optimize.Method { return &optimize.LBFGS{} }, needsGradient: true},
	"cg":       {build: func() optimize.Method { return &optimize.CG{} }, needsGradient: true},
}

// newMethod resolves an optimizer name to a fresh gonum method instance
// and reports whether the method consumes gradients.
func newMethod(name string) (optimize.Method, bool, error) {
	spec, ok := methods[strings.ToLower(name)]
	if !ok {
		return nil, false, &quantum.ConfigurationError{
			Field:   "optimizer",
			Message: fmt.Sprintf("unknown optimizer %q, known optimizers: %s", name, strings.Join(OptimizerNames(), ", ")),
		}
	}
	return spec.build(), spec.needsGradient, nil
}

// Supported reports whether name resolves to a known optimizer.
func Supported(name string) bool {
	_, ok := methods[strings.ToLower(name)]
	return ok
}

// OptimizerNames returns the supported optimizer names in sorted order.
func OptimizerNames() []string {
	names := make([]string, 0, len(methods))
	for name := range methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
