package reliability

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/qboost/internal/database"
	"github.com/aristath/qboost/internal/modules/results"
	"github.com/rs/zerolog"
)

// MaintenanceJob performs daily upkeep of the run index database and the
// data directory: integrity check, WAL checkpoint, disk space check and
// growth stats.
type MaintenanceJob struct {
	db      *database.DB
	store   *results.Store
	dataDir string
	log     zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job.
func NewMaintenanceJob(db *database.DB, store *results.Store, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		store:   store,
		dataDir: dataDir,
		log:     log.With().Str("job", "maintenance").Logger(),
	}
}

// Name returns the job name for scheduler registration.
func (j *MaintenanceJob) Name() string {
	return "maintenance"
}

// Run executes the maintenance job.
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting maintenance")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Step 1: Integrity check on the run index
	if err := j.db.HealthCheck(ctx); err != nil {
		j.log.Error().Err(err).Msg("CRITICAL: Run index health check failed")
		return fmt.Errorf("CRITICAL: run index health check failed: %w", err)
	}

	// Step 2: WAL checkpoint (prevent bloat)
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
		// Not critical, the checkpoint runs again tomorrow
	}

	// Step 3: Check disk space
	if err := j.checkDiskSpace(); err != nil {
		return err // HALT if critical
	}

	// Step 4: Growth stats
	j.logGrowthStats()

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Maintenance completed successfully")

	return nil
}

// VacuumIndex compacts the run index database. Meant for a monthly
// schedule, the index only shrinks when old run rows are removed.
func (j *MaintenanceJob) VacuumIndex() error {
	before, err := j.db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}

	if err := j.db.Vacuum(); err != nil {
		return err
	}

	after, err := j.db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}

	j.log.Info().
		Float64("size_before_mb", float64(before.SizeBytes)/1024/1024).
		Float64("size_after_mb", float64(after.SizeBytes)/1024/1024).
		Msg("VACUUM completed")

	return nil
}

// checkDiskSpace verifies sufficient disk space is available for new
// run artifacts.
func (j *MaintenanceJob) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	if err := syscall.Statfs(j.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	availableGB := float64(availableBytes) / 1e9

	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	// CRITICAL: Less than 500MB
	if availableGB < 0.5 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space for run artifacts")
		return fmt.Errorf("CRITICAL: Only %.2f GB free", availableGB)
	}

	if availableGB < 10.0 {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}

	return nil
}

// logGrowthStats reports index and artifact directory sizes.
func (j *MaintenanceJob) logGrowthStats() {
	runCount, err := j.store.Count()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to count runs")
		runCount = -1
	}

	stats, err := j.db.GetStats()
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to read index stats")
		stats = &database.Stats{}
	}

	resultsMB := dirSizeMB(filepath.Join(j.dataDir, "results"))

	j.log.Info().
		Int("runs", runCount).
		Float64("index_mb", float64(stats.SizeBytes)/1024/1024).
		Float64("wal_mb", float64(stats.WALSizeBytes)/1024/1024).
		Float64("results_mb", resultsMB).
		Msg("Data directory metrics")
}

// dirSizeMB sums the size of all regular files under dir. Missing
// directories count as zero.
func dirSizeMB(dir string) float64 {
	var total int64
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return float64(total) / 1024 / 1024
}

// VacuumJob compacts the run index on a monthly schedule. Kept separate
// from the daily maintenance pass, VACUUM rewrites the whole file.
type VacuumJob struct {
	maintenance *MaintenanceJob
}

// NewVacuumJob creates a new vacuum job.
func NewVacuumJob(maintenance *MaintenanceJob) *VacuumJob {
	return &VacuumJob{maintenance: maintenance}
}

// Name returns the job name for scheduler registration.
func (j *VacuumJob) Name() string {
	return "vacuum_index"
}

// Run executes one VACUUM pass.
func (j *VacuumJob) Run() error {
	return j.maintenance.VacuumIndex()
}

// ArchiveRotationJob runs archive retention rotation on a schedule.
type ArchiveRotationJob struct {
	service       *ArchiveService
	retentionDays int
	log           zerolog.Logger
}

// NewArchiveRotationJob creates a new archive rotation job.
func NewArchiveRotationJob(service *ArchiveService, retentionDays int, log zerolog.Logger) *ArchiveRotationJob {
	return &ArchiveRotationJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "archive_rotation").Logger(),
	}
}

// Name returns the job name for scheduler registration.
func (j *ArchiveRotationJob) Name() string {
	return "archive_rotation"
}

// Run executes one rotation pass.
func (j *ArchiveRotationJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := j.service.Rotate(ctx, j.retentionDays); err != nil {
		j.log.Error().Err(err).Msg("Archive rotation failed")
		return err
	}
	return nil
}
