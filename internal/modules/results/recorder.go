// Package results persists the artifacts of completed boosting runs and
// maintains a queryable index of them.
//
// Each run is written to its own directory: dense numeric histories go to
// msgpack containers keyed by round index, the training Hamiltonian matrix
// to its own container, and a human-readable metadata.json ties the dump
// together. The metadata file is written last so its presence marks a
// complete dump.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/aristath/qboost/internal/modules/boost"
	"github.com/aristath/qboost/internal/modules/quantum"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/vmihailenco/msgpack/v5"
)

// Artifact file names within a run directory.
const (
	MetadataFile        = "metadata.json"
	EnergiesFile        = "energies.msgpack"
	FluctuationsFile    = "fluctuations.msgpack"
	ParametersFile      = "parameters.msgpack"
	DBIEnergiesFile     = "dbi_energies.msgpack"
	DBIFluctuationsFile = "dbi_fluctuations.msgpack"
	HamiltonianFile     = "hamiltonian.msgpack"
)

// HostInfo captures the machine a run executed on, for replicability.
type HostInfo struct {
	Hostname      string `json:"hostname,omitempty"`
	Platform      string `json:"platform,omitempty"`
	KernelVersion string `json:"kernel_version,omitempty"`
	GoVersion     string `json:"go_version"`
	CPUs          int    `json:"cpus,omitempty"`
}

// Metadata describes a completed run: the configuration it ran with and
// the outcomes it produced.
type Metadata struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`

	// Configuration echo
	Backend         string  `json:"backend"`
	Threads         int     `json:"nthreads"`
	Optimizer       string  `json:"optimizer"`
	Tol             float64 `json:"tol"`
	NQubits         int     `json:"nqubits"`
	NLayers         int     `json:"nlayers"`
	NBoost          int     `json:"nboost"`
	BoostFrequency  int     `json:"boost_frequency"`
	DBISteps        int     `json:"dbi_steps"`
	DBIStepSize     float64 `json:"stepsize"`
	OptimizeDBIStep bool    `json:"optimize_dbi_step"`
	Hamiltonian     string  `json:"hamiltonian"`
	Seed            int64   `json:"seed"`

	// Outcomes
	BestLoss         float64 `json:"best_loss"`
	TrueGroundEnergy float64 `json:"true_ground_energy"`
	Success          bool    `json:"success"`
	Message          string  `json:"message"`
	Energy           float64 `json:"energy"`
	Fluctuations     float64 `json:"fluctuations"`
	DurationSeconds  float64 `json:"duration_seconds"`

	Host *HostInfo `json:"host,omitempty"`
}

// Histories bundles the per-round series of a run. Keys are round indices
// rendered as decimal strings.
type Histories struct {
	Energies        map[string][]float64   `msgpack:"energies" json:"energies"`
	Fluctuations    map[string][]float64   `msgpack:"fluctuations" json:"fluctuations"`
	Parameters      map[string][][]float64 `msgpack:"parameters" json:"parameters"`
	DBIEnergies     map[string][]float64   `msgpack:"dbi_energies" json:"dbi_energies"`
	DBIFluctuations map[string][]float64   `msgpack:"dbi_fluctuations" json:"dbi_fluctuations"`
}

// HamiltonianDump stores the dense matrix of the training Hamiltonian in
// row-major order.
type HamiltonianDump struct {
	Dim  int       `msgpack:"dim" json:"dim"`
	Data []float64 `msgpack:"data" json:"data"`
}

// Recorder writes run artifacts to disk.
type Recorder struct {
	log zerolog.Logger
}

// NewRecorder creates a recorder.
func NewRecorder(log zerolog.Logger) *Recorder {
	return &Recorder{
		log: log.With().Str("component", "recorder").Logger(),
	}
}

// Save writes the full artifact set for a run into dir. The directory is
// created if needed. Histories are extracted from the result's per-round
// records; original is the untransformed training Hamiltonian.
func (r *Recorder) Save(dir string, meta *Metadata, original *quantum.Hamiltonian, result *boost.RunResult) error {
	if meta == nil || original == nil || result == nil {
		return fmt.Errorf("recorder requires metadata, hamiltonian, and result")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	histories := extractHistories(result)

	if err := writeMsgpackFile(filepath.Join(dir, EnergiesFile), histories.Energies); err != nil {
		return err
	}
	if err := writeMsgpackFile(filepath.Join(dir, FluctuationsFile), histories.Fluctuations); err != nil {
		return err
	}
	if err := writeMsgpackFile(filepath.Join(dir, ParametersFile), histories.Parameters); err != nil {
		return err
	}
	if err := writeMsgpackFile(filepath.Join(dir, DBIEnergiesFile), histories.DBIEnergies); err != nil {
		return err
	}
	if err := writeMsgpackFile(filepath.Join(dir, DBIFluctuationsFile), histories.DBIFluctuations); err != nil {
		return err
	}

	if err := writeMsgpackFile(filepath.Join(dir, HamiltonianFile), dumpHamiltonian(original)); err != nil {
		return err
	}

	// Metadata goes last: its presence marks a complete dump.
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, MetadataFile), metaBytes, 0644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	r.log.Info().
		Str("run_id", meta.RunID).
		Str("dir", dir).
		Int("rounds", len(result.Rounds)).
		Msg("Run artifacts saved")

	return nil
}

// CollectHostInfo gathers host context for run metadata. Failures are
// tolerated; whatever could be collected is returned.
func (r *Recorder) CollectHostInfo() *HostInfo {
	info := &HostInfo{GoVersion: runtime.Version()}

	if hi, err := host.Info(); err == nil {
		info.Hostname = hi.Hostname
		info.Platform = hi.Platform
		info.KernelVersion = hi.KernelVersion
	} else {
		r.log.Debug().Err(err).Msg("Could not collect host info")
	}

	if n, err := cpu.Counts(true); err == nil {
		info.CPUs = n
	}

	return info
}

// LoadMetadata reads the metadata.json of a run directory.
func LoadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &meta, nil
}

// LoadHistories reads all per-round series of a run directory.
func LoadHistories(dir string) (*Histories, error) {
	h := &Histories{}

	if err := readMsgpackFile(filepath.Join(dir, EnergiesFile), &h.Energies); err != nil {
		return nil, err
	}
	if err := readMsgpackFile(filepath.Join(dir, FluctuationsFile), &h.Fluctuations); err != nil {
		return nil, err
	}
	if err := readMsgpackFile(filepath.Join(dir, ParametersFile), &h.Parameters); err != nil {
		return nil, err
	}
	if err := readMsgpackFile(filepath.Join(dir, DBIEnergiesFile), &h.DBIEnergies); err != nil {
		return nil, err
	}
	if err := readMsgpackFile(filepath.Join(dir, DBIFluctuationsFile), &h.DBIFluctuations); err != nil {
		return nil, err
	}

	return h, nil
}

// LoadHamiltonian reads the Hamiltonian matrix dump of a run directory.
func LoadHamiltonian(dir string) (*HamiltonianDump, error) {
	var dump HamiltonianDump
	if err := readMsgpackFile(filepath.Join(dir, HamiltonianFile), &dump); err != nil {
		return nil, err
	}
	return &dump, nil
}

func extractHistories(result *boost.RunResult) *Histories {
	h := &Histories{
		Energies:        make(map[string][]float64, len(result.Rounds)),
		Fluctuations:    make(map[string][]float64, len(result.Rounds)),
		Parameters:      make(map[string][][]float64, len(result.Rounds)),
		DBIEnergies:     make(map[string][]float64, len(result.Rounds)),
		DBIFluctuations: make(map[string][]float64, len(result.Rounds)),
	}

	for b, round := range result.Rounds {
		key := strconv.Itoa(b)
		if round.Trace != nil {
			h.Energies[key] = round.Trace.Energies
			h.Fluctuations[key] = round.Trace.Fluctuations
			h.Parameters[key] = round.Trace.Parameters
		}
		h.DBIEnergies[key] = round.DBIEnergies
		h.DBIFluctuations[key] = round.DBIFluctuations
	}

	return h
}

func dumpHamiltonian(h *quantum.Hamiltonian) *HamiltonianDump {
	m := h.Matrix()
	rows, cols := m.Dims()

	dump := &HamiltonianDump{
		Dim:  rows,
		Data: make([]float64, 0, rows*cols),
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dump.Data = append(dump.Data, m.At(i, j))
		}
	}
	return dump
}

func writeMsgpackFile(path string, v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readMsgpackFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := msgpack.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
