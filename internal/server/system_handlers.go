package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/qboost/internal/database"
	"github.com/aristath/qboost/internal/modules/results"
	"github.com/aristath/qboost/internal/services"
)

// SystemHandlers handles system-wide monitoring endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	runsDB      *database.DB
	store       *results.Store
	runService  *services.RunService
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	runsDB *database.DB,
	store *results.Store,
	runService *services.RunService,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		runsDB:      runsDB,
		store:       store,
		runService:  runService,
	}
}

// SystemStatusResponse describes the system status payload
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	RunActive     bool    `json:"run_active"`
	ActiveRunID   string  `json:"active_run_id,omitempty"`
	TotalRuns     int     `json:"total_runs"`
	LastChecked   string  `json:"last_checked"`
}

// DatabaseStatsResponse describes the run index statistics payload
type DatabaseStatsResponse struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	FreelistPages int64   `json:"freelist_pages"`
	LastChecked   string  `json:"last_checked"`
}

// DiskUsageResponse describes the disk usage payload
type DiskUsageResponse struct {
	DataDirMB  float64 `json:"data_dir_mb"`
	ResultsMB  float64 `json:"results_mb"`
	LogsDirMB  float64 `json:"logs_dir_mb"`
	FreeDiskGB float64 `json:"free_disk_gb"`
}

// HandleSystemStatus returns process health, resource usage, and the
// state of the run execution slot
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, ramPercent := h.getSystemStats()
	runStatus := h.runService.Status()

	totalRuns, err := h.store.Count()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count runs")
		totalRuns = -1
	}

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startupTime).Seconds(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		RunActive:     runStatus.Running,
		ActiveRunID:   runStatus.RunID,
		TotalRuns:     totalRuns,
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, response)
}

// HandleDatabaseStats returns run index database statistics
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	stats, err := h.runsDB.GetStats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to collect database stats")
		http.Error(w, "Failed to collect database stats", http.StatusInternalServerError)
		return
	}

	response := DatabaseStatsResponse{
		Name:          "runs.db",
		Path:          h.runsDB.Path(),
		SizeMB:        float64(stats.SizeBytes) / 1024 / 1024,
		WALSizeMB:     float64(stats.WALSizeBytes) / 1024 / 1024,
		PageCount:     stats.PageCount,
		FreelistPages: stats.FreelistCount,
		LastChecked:   time.Now().Format(time.RFC3339),
	}

	h.writeJSON(w, response)
}

// HandleDiskUsage returns disk usage statistics
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting disk usage")

	response := DiskUsageResponse{
		DataDirMB: h.getDirSize(h.dataDir),
		ResultsMB: h.getDirSize(filepath.Join(h.dataDir, "results")),
		LogsDirMB: h.getDirSize(filepath.Join(h.dataDir, "logs")),
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(h.dataDir, &stat); err != nil {
		h.log.Warn().Err(err).Msg("Failed to stat filesystem")
	} else {
		response.FreeDiskGB = float64(stat.Bavail) * float64(stat.Bsize) / 1024 / 1024 / 1024
	}

	h.writeJSON(w, response)
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// getSystemStats calculates CPU and RAM usage percentages.
// The CPU sample is 100ms so the status endpoint answers fast enough
// for dashboards polling with short timeouts.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
