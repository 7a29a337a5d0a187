// Package config provides configuration management functionality.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir   string // Base directory for run artifacts and the run index (always absolute)
	LogLevel  string
	LogPretty bool
	Port      int
	DevMode   bool
	Run       RunConfig
	Archive   ArchiveConfig
}

// RunConfig holds the defaults for a boosting run. Flags and experiment
// files overlay these values.
type RunConfig struct {
	Backend         string
	Threads         int
	Optimizer       string
	Tol             float64
	NQubits         int
	NLayers         int
	NBoost          int
	BoostFrequency  int
	DBISteps        int
	DBIStepSize     float64
	OptimizeDBIStep bool
	Hamiltonian     string
	Seed            int64
	OutputFolder    string // Empty means derive from the run parameters
}

// ArchiveConfig holds the S3-compatible storage settings used for run
// archives. Archiving stays disabled unless an endpoint and bucket are
// configured.
type ArchiveConfig struct {
	Enabled       bool
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	MinKeep       int // Archives kept regardless of age
	RetentionDays int // 0 keeps everything beyond MinKeep
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve the data directory to an absolute path and make sure it
	// exists before anything tries to write under it.
	dataDir := getEnv("QBOOST_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		Port:      getEnvAsInt("QBOOST_PORT", 8001),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		Run:       loadRunConfig(),
		Archive:   loadArchiveConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadRunConfig loads run parameter defaults from the environment.
func loadRunConfig() RunConfig {
	return RunConfig{
		Backend:         getEnv("QBOOST_BACKEND", "statevector"),
		Threads:         getEnvAsInt("QBOOST_NTHREADS", 1),
		Optimizer:       getEnv("QBOOST_OPTIMIZER", "neldermead"),
		Tol:             getEnvAsFloat("QBOOST_TOL", 1e-2),
		NQubits:         getEnvAsInt("QBOOST_NQUBITS", 6),
		NLayers:         getEnvAsInt("QBOOST_NLAYERS", 5),
		NBoost:          getEnvAsInt("QBOOST_NBOOST", 1),
		BoostFrequency:  getEnvAsInt("QBOOST_BOOST_FREQUENCY", 0),
		DBISteps:        getEnvAsInt("QBOOST_DBI_STEPS", 1),
		DBIStepSize:     getEnvAsFloat("QBOOST_STEPSIZE", 0.01),
		OptimizeDBIStep: getEnvAsBool("QBOOST_OPTIMIZE_DBI_STEP", false),
		Hamiltonian:     getEnv("QBOOST_HAMILTONIAN", "xxz"),
		Seed:            getEnvAsInt64("QBOOST_SEED", 42),
		OutputFolder:    getEnv("QBOOST_OUTPUT_FOLDER", ""),
	}
}

// loadArchiveConfig loads S3 archive settings from the environment.
func loadArchiveConfig() ArchiveConfig {
	endpoint := getEnv("QBOOST_S3_ENDPOINT", "")
	bucket := getEnv("QBOOST_S3_BUCKET", "")
	return ArchiveConfig{
		Enabled:       getEnvAsBool("QBOOST_ARCHIVE_ENABLED", endpoint != "" && bucket != ""),
		Endpoint:      endpoint,
		Region:        getEnv("QBOOST_S3_REGION", "auto"),
		Bucket:        bucket,
		AccessKey:     getEnv("QBOOST_S3_ACCESS_KEY", ""),
		SecretKey:     getEnv("QBOOST_S3_SECRET_KEY", ""),
		MinKeep:       getEnvAsInt("QBOOST_ARCHIVE_MIN_KEEP", 3),
		RetentionDays: getEnvAsInt("QBOOST_ARCHIVE_RETENTION_DAYS", 30),
	}
}

// Validate checks numeric ranges. Name-valued fields (backend, optimizer,
// Hamiltonian family) are validated by the registries that resolve them.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return c.Run.Validate()
}

// Validate checks the numeric run parameters.
func (r *RunConfig) Validate() error {
	if r.NQubits < 2 {
		return fmt.Errorf("nqubits must be at least 2, got %d", r.NQubits)
	}
	if r.NLayers < 1 {
		return fmt.Errorf("nlayers must be at least 1, got %d", r.NLayers)
	}
	if r.NBoost < 1 {
		return fmt.Errorf("nboost must be at least 1, got %d", r.NBoost)
	}
	if r.BoostFrequency < 0 {
		return fmt.Errorf("boost_frequency must not be negative, got %d", r.BoostFrequency)
	}
	if r.DBISteps < 0 {
		return fmt.Errorf("dbi_steps must not be negative, got %d", r.DBISteps)
	}
	if r.DBIStepSize <= 0 {
		return fmt.Errorf("stepsize must be positive, got %g", r.DBIStepSize)
	}
	if r.Tol < 0 {
		return fmt.Errorf("tol must not be negative, got %g", r.Tol)
	}
	if r.Threads < 1 {
		return fmt.Errorf("nthreads must be at least 1, got %d", r.Threads)
	}
	return nil
}

// OutputDir returns the artifact directory for this run configuration
// under dataDir. An explicit OutputFolder wins; otherwise the directory
// name combines a readable parameter prefix with a fingerprint of the
// full configuration, so configurations that differ in any parameter
// never share an auto directory.
func (r *RunConfig) OutputDir(dataDir string) string {
	if r.OutputFolder != "" {
		if filepath.IsAbs(r.OutputFolder) {
			return r.OutputFolder
		}
		return filepath.Join(dataDir, r.OutputFolder)
	}
	name := fmt.Sprintf("%s_%dq_%dl_%d_%s", r.Optimizer, r.NQubits, r.NLayers, r.Seed, r.fingerprint())
	return filepath.Join(dataDir, "results", name)
}

// fingerprint hashes every run parameter into a short stable hex tag.
func (r *RunConfig) fingerprint() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s|%g|%d|%d|%d|%d|%d|%g|%t|%s|%d",
		r.Backend, r.Threads, r.Optimizer, r.Tol,
		r.NQubits, r.NLayers, r.NBoost, r.BoostFrequency,
		r.DBISteps, r.DBIStepSize, r.OptimizeDBIStep, r.Hamiltonian, r.Seed)))
	return hex.EncodeToString(sum[:4])
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
