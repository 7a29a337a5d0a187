package main

import (
	"flag"

	"github.com/aristath/qboost/internal/config"
)

// runFlags holds pointers to the run parameter flags of a subcommand.
// Defaults come from the environment-loaded configuration, so a flag the
// caller never sets leaves the configured value in place.
type runFlags struct {
	backend         *string
	nthreads        *int
	optimizer       *string
	tol             *float64
	nqubits         *int
	nlayers         *int
	nboost          *int
	boostFrequency  *int
	dbiSteps        *int
	stepsize        *float64
	optimizeDBIStep *bool
	hamiltonian     *string
	seed            *int64
	outputFolder    *string
}

// newRunFlags registers the run parameter flags on fs.
func newRunFlags(fs *flag.FlagSet, defaults config.RunConfig) *runFlags {
	return &runFlags{
		backend:         fs.String("backend", defaults.Backend, "execution backend name"),
		nthreads:        fs.Int("nthreads", defaults.Threads, "backend worker pool size"),
		optimizer:       fs.String("optimizer", defaults.Optimizer, "classical optimizer name"),
		tol:             fs.Float64("tol", defaults.Tol, "optimizer convergence threshold"),
		nqubits:         fs.Int("nqubits", defaults.NQubits, "number of qubits"),
		nlayers:         fs.Int("nlayers", defaults.NLayers, "ansatz layers"),
		nboost:          fs.Int("nboost", defaults.NBoost, "boosting rounds"),
		boostFrequency:  fs.Int("boost_frequency", defaults.BoostFrequency, "optimizer iteration cap per round (0 = unbounded)"),
		dbiSteps:        fs.Int("dbi_steps", defaults.DBISteps, "double-bracket steps per round"),
		stepsize:        fs.Float64("stepsize", defaults.DBIStepSize, "fixed flow step size"),
		optimizeDBIStep: fs.Bool("optimize_dbi_step", defaults.OptimizeDBIStep, "search for the flow step size instead of using -stepsize"),
		hamiltonian:     fs.String("hamiltonian", defaults.Hamiltonian, "Hamiltonian family name"),
		seed:            fs.Int64("seed", defaults.Seed, "seed for the initial circuit parameters"),
		outputFolder:    fs.String("output_folder", defaults.OutputFolder, "artifact directory (default: derived from the parameters)"),
	}
}

// overlay applies the flags the caller explicitly set onto r, leaving the
// rest untouched. Called after any experiment file has been applied, so
// flags always win.
func (f *runFlags) overlay(fs *flag.FlagSet, r *config.RunConfig) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "backend":
			r.Backend = *f.backend
		case "nthreads":
			r.Threads = *f.nthreads
		case "optimizer":
			r.Optimizer = *f.optimizer
		case "tol":
			r.Tol = *f.tol
		case "nqubits":
			r.NQubits = *f.nqubits
		case "nlayers":
			r.NLayers = *f.nlayers
		case "nboost":
			r.NBoost = *f.nboost
		case "boost_frequency":
			r.BoostFrequency = *f.boostFrequency
		case "dbi_steps":
			r.DBISteps = *f.dbiSteps
		case "stepsize":
			r.DBIStepSize = *f.stepsize
		case "optimize_dbi_step":
			r.OptimizeDBIStep = *f.optimizeDBIStep
		case "hamiltonian":
			r.Hamiltonian = *f.hamiltonian
		case "seed":
			r.Seed = *f.seed
		case "output_folder":
			r.OutputFolder = *f.outputFolder
		}
	})
}
