// Package circuit provides the layered hardware-efficient ansatz and the
// execution backends that realize it as state vectors and unitaries.
package circuit

import (
	"github.com/aristath/qboost/internal/modules/quantum"
)

// GateKind identifies a gate type in the unrolled ansatz sequence.
type GateKind int

const (
	// GateRY is a single-qubit Y-axis rotation.
	GateRY GateKind = iota
	// GateCZ is a controlled-Z entangler.
	GateCZ
)

// Gate is one operation in the unrolled ansatz sequence. RY gates carry
// the index of the parameter slot feeding their angle; CZ gates are
// parameter-free with an explicit control qubit.
type Gate struct {
	Kind       GateKind
	Target     int
	Control    int // -1 for single-qubit gates
	ParamIndex int // -1 for parameter-free gates
}

// Circuit is a parameterized ansatz on nqubits with nlayers layers. Each
// layer applies RY rotations on every qubit, CZ entanglers on even
// neighbor pairs, a second RY column, CZ entanglers on odd pairs, and a
// closing CZ between the first and last qubit. The gate structure is
// fixed at construction; only the parameter vector changes.
type Circuit struct {
	nqubits    int
	nlayers    int
	parameters []float64
}

// New creates a circuit with all parameters initialized to zero.
func New(nqubits, nlayers int) (*Circuit, error) {
	if nqubits < 1 {
		return nil, &quantum.ConfigurationError{Field: "nqubits", Message: "must be positive"}
	}
	if nlayers < 1 {
		return nil, &quantum.ConfigurationError{Field: "nlayers", Message: "must be positive"}
	}
	return &Circuit{
		nqubits:    nqubits,
		nlayers:    nlayers,
		parameters: make([]float64, 2*nqubits*nlayers),
	}, nil
}

// NQubits returns the register size.
func (c *Circuit) NQubits() int { return c.nqubits }

// NLayers returns the layer count.
func (c *Circuit) NLayers() int { return c.nlayers }

// NParameters returns the length of the parameter vector: two RY columns
// of nqubits angles per layer.
func (c *Circuit) NParameters() int { return 2 * c.nqubits * c.nlayers }

// Parameters returns a copy of the current parameter vector.
func (c *Circuit) Parameters() []float64 {
	out := make([]float64, len(c.parameters))
	copy(out, c.parameters)
	return out
}

// SetParameters overwrites the parameter vector. The input is copied.
func (c *Circuit) SetParameters(params []float64) error {
	if len(params) != c.NParameters() {
		return &quantum.DimensionMismatchError{
			Context:  "circuit parameters",
			Expected: c.NParameters(),
			Actual:   len(params),
		}
	}
	copy(c.parameters, params)
	return nil
}

// Clone returns an independent copy of the circuit.
func (c *Circuit) Clone() *Circuit {
	clone := &Circuit{
		nqubits:    c.nqubits,
		nlayers:    c.nlayers,
		parameters: make([]float64, len(c.parameters)),
	}
	copy(clone.parameters, c.parameters)
	return clone
}

// Gates returns the unrolled gate sequence. Parameter slots are consumed
// in order: the first RY column of layer l uses slots [2*l*n, 2*l*n+n),
// the second column the following n slots.
func (c *Circuit) Gates() []Gate {
	gates := make([]Gate, 0, c.nlayers*(3*c.nqubits+1))
	param := 0
	for l := 0; l < c.nlayers; l++ {
		for q := 0; q < c.nqubits; q++ {
			gates = append(gates, Gate{Kind: GateRY, Target: q, Control: -1, ParamIndex: param})
			param++
		}
		for q := 0; q+1 < c.nqubits; q += 2 {
			gates = append(gates, Gate{Kind: GateCZ, Target: q + 1, Control: q, ParamIndex: -1})
		}
		for q := 0; q < c.nqubits; q++ {
			gates = append(gates, Gate{Kind: GateRY, Target: q, Control: -1, ParamIndex: param})
			param++
		}
		for q := 1; q+1 < c.nqubits; q += 2 {
			gates = append(gates, Gate{Kind: GateCZ, Target: q + 1, Control: q, ParamIndex: -1})
		}
		if c.nqubits > 1 {
			gates = append(gates, Gate{Kind: GateCZ, Target: c.nqubits - 1, Control: 0, ParamIndex: -1})
		}
	}
	return gates
}
