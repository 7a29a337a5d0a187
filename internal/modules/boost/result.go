// Package boost orchestrates the training loop that alternates
// variational optimization with double-bracket diagonalization of the
// target Hamiltonian.
package boost

import (
	"github.com/aristath/qboost/internal/modules/quantum"
	"github.com/aristath/qboost/internal/modules/vqe"
)

// RoundRecord captures everything produced by one boosting round: the
// optimizer trace of the training phase, its summary, and the per-step
// zero-state histories of the flow phase.
type RoundRecord struct {
	Index           int
	Training        *vqe.Result
	Trace           *vqe.Trace
	DBIEnergies     []float64
	DBIFluctuations []float64
}

// RunResult is the outcome of a full boosting run. Rounds is keyed by
// round index. Success, Message, and BestLoss mirror the final training
// round; FinalEnergy and FinalFluctuation are evaluated on the zero
// state under the fully rotated Hamiltonian.
type RunResult struct {
	Rounds           map[int]*RoundRecord
	FinalParameters  []float64
	FinalEnergy      float64
	FinalFluctuation float64
	BestLoss         float64
	GroundEnergy     float64
	Success          bool
	Message          string
	FinalHamiltonian *quantum.Hamiltonian
}
