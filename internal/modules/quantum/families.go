package quantum

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
)

const (
	// xxzDelta is the anisotropy of the XXZ family.
	xxzDelta = 0.5
	// tfimField is the transverse field strength of the TFIM family,
	// fixed at the critical point.
	tfimField = 1.0
)

// FamilyFunc constructs a named Hamiltonian family for a register size.
type FamilyFunc func(nqubits int) (*Hamiltonian, error)

var families = map[string]FamilyFunc{
	"xxz":  XXZ,
	"tfim": TFIM,
}

// BuildFamily constructs the Hamiltonian family registered under name.
func BuildFamily(name string, nqubits int) (*Hamiltonian, error) {
	build, ok := families[strings.ToLower(name)]
	if !ok {
		return nil, &ConfigurationError{
			Field:   "hamiltonian",
			Message: fmt.Sprintf("unknown family %q (known: %s)", name, strings.Join(FamilyNames(), ", ")),
		}
	}
	return build(nqubits)
}

// FamilyNames returns the registered family names in sorted order.
func FamilyNames() []string {
	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// XXZ builds the periodic Heisenberg XXZ chain
//
//	H = sum_i [ X_i X_{i+1} + Y_i Y_{i+1} + delta Z_i Z_{i+1} ]
//
// with delta = 0.5 and i+1 taken modulo nqubits.
func XXZ(nqubits int) (*Hamiltonian, error) {
	if nqubits < 2 {
		return nil, &ConfigurationError{Field: "nqubits", Message: "xxz family requires at least 2 qubits"}
	}
	dim := 1 << nqubits
	total := mat.NewDense(dim, dim, nil)
	for i := 0; i < nqubits; i++ {
		j := (i + 1) % nqubits
		addTwoSite(total, nqubits, pauliX(), i, j, 1)
		addTwoSite(total, nqubits, pauliIY(), i, j, -1)
		addTwoSite(total, nqubits, pauliZ(), i, j, xxzDelta)
	}
	return New(nqubits, total)
}

// TFIM builds the periodic transverse-field Ising model
//
//	H = -sum_i [ Z_i Z_{i+1} + h X_i ]
//
// with h = 1.0 and i+1 taken modulo nqubits.
func TFIM(nqubits int) (*Hamiltonian, error) {
	if nqubits < 2 {
		return nil, &ConfigurationError{Field: "nqubits", Message: "tfim family requires at least 2 qubits"}
	}
	dim := 1 << nqubits
	total := mat.NewDense(dim, dim, nil)
	for i := 0; i < nqubits; i++ {
		j := (i + 1) % nqubits
		addTwoSite(total, nqubits, pauliZ(), i, j, -1)
		addSingleSite(total, nqubits, pauliX(), i, -tfimField)
	}
	return New(nqubits, total)
}
