package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Experiment is an overlay for run parameters, read from YAML experiment
// files or from the launch endpoint's JSON body. Every field is optional;
// absent keys keep the configured default, so overlays only state what
// they change.
type Experiment struct {
	Backend         *string  `yaml:"backend" json:"backend"`
	Threads         *int     `yaml:"nthreads" json:"nthreads"`
	Optimizer       *string  `yaml:"optimizer" json:"optimizer"`
	Tol             *float64 `yaml:"tol" json:"tol"`
	NQubits         *int     `yaml:"nqubits" json:"nqubits"`
	NLayers         *int     `yaml:"nlayers" json:"nlayers"`
	NBoost          *int     `yaml:"nboost" json:"nboost"`
	BoostFrequency  *int     `yaml:"boost_frequency" json:"boost_frequency"`
	DBISteps        *int     `yaml:"dbi_steps" json:"dbi_steps"`
	DBIStepSize     *float64 `yaml:"stepsize" json:"stepsize"`
	OptimizeDBIStep *bool    `yaml:"optimize_dbi_step" json:"optimize_dbi_step"`
	Hamiltonian     *string  `yaml:"hamiltonian" json:"hamiltonian"`
	Seed            *int64   `yaml:"seed" json:"seed"`
	OutputFolder    *string  `yaml:"output_folder" json:"output_folder"`
}

// ApplyExperiment overlays the experiment file at path onto the run
// configuration and revalidates the result.
func (r *RunConfig) ApplyExperiment(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read experiment file: %w", err)
	}

	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return fmt.Errorf("failed to parse experiment file %s: %w", path, err)
	}
	exp.Overlay(r)

	if err := r.Validate(); err != nil {
		return fmt.Errorf("experiment file %s: %w", path, err)
	}
	return nil
}

// Overlay applies the experiment's set fields onto the run configuration.
func (e *Experiment) Overlay(r *RunConfig) {
	if e.Backend != nil {
		r.Backend = *e.Backend
	}
	if e.Threads != nil {
		r.Threads = *e.Threads
	}
	if e.Optimizer != nil {
		r.Optimizer = *e.Optimizer
	}
	if e.Tol != nil {
		r.Tol = *e.Tol
	}
	if e.NQubits != nil {
		r.NQubits = *e.NQubits
	}
	if e.NLayers != nil {
		r.NLayers = *e.NLayers
	}
	if e.NBoost != nil {
		r.NBoost = *e.NBoost
	}
	if e.BoostFrequency != nil {
		r.BoostFrequency = *e.BoostFrequency
	}
	if e.DBISteps != nil {
		r.DBISteps = *e.DBISteps
	}
	if e.DBIStepSize != nil {
		r.DBIStepSize = *e.DBIStepSize
	}
	if e.OptimizeDBIStep != nil {
		r.OptimizeDBIStep = *e.OptimizeDBIStep
	}
	if e.Hamiltonian != nil {
		r.Hamiltonian = *e.Hamiltonian
	}
	if e.Seed != nil {
		r.Seed = *e.Seed
	}
	if e.OutputFolder != nil {
		r.OutputFolder = *e.OutputFolder
	}
}
