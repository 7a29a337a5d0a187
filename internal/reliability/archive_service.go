package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aristath/qboost/internal/events"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

const (
	// archivePrefix is the object key prefix for run archives.
	archivePrefix = "archives/"

	// archiveStampLayout is the timestamp embedded in archive names.
	archiveStampLayout = "20060102-150405"

	// minKeepFloor is the smallest number of archives rotation may keep.
	minKeepFloor = 3
)

// ObjectStorage is the object store surface the archive service needs.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// ArchiveInfo describes one run archive stored in the bucket.
type ArchiveInfo struct {
	Key       string    `json:"key"`
	RunID     string    `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// ArchiveService packs run directories into tar.gz archives and manages
// their lifecycle in object storage. Each archive is uploaded together
// with a .sha256 sidecar so a download can be verified without opening
// the tarball.
type ArchiveService struct {
	store        ObjectStorage
	eventManager *events.Manager
	dataDir      string
	minKeep      int
	log          zerolog.Logger
}

// NewArchiveService creates an archive service. minKeep values below 3
// are raised to 3 so rotation can never empty the bucket.
func NewArchiveService(
	store ObjectStorage,
	eventManager *events.Manager,
	dataDir string,
	minKeep int,
	log zerolog.Logger,
) *ArchiveService {
	if minKeep < minKeepFloor {
		minKeep = minKeepFloor
	}
	return &ArchiveService{
		store:        store,
		eventManager: eventManager,
		dataDir:      dataDir,
		minKeep:      minKeep,
		log:          log.With().Str("service", "archive").Logger(),
	}
}

// ArchiveRun packs the artifact directory of runID into a tar.gz archive
// and uploads it with its checksum sidecar.
func (s *ArchiveService) ArchiveRun(ctx context.Context, runID, runDir string) (*ArchiveInfo, error) {
	s.log.Info().Str("run_id", runID).Str("dir", runDir).Msg("Starting run archive")
	startTime := time.Now()

	info, err := os.Stat(runDir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat run directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("run path %s is not a directory", runDir)
	}

	stagingDir, err := os.MkdirTemp(s.dataDir, "archive-staging-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	timestamp := time.Now().UTC()
	archiveName := fmt.Sprintf("qboost-run-%s-%s.tar.gz", runID, timestamp.Format(archiveStampLayout))
	archivePath := filepath.Join(stagingDir, archiveName)

	if err := s.buildArchive(archivePath, runDir); err != nil {
		return nil, fmt.Errorf("failed to create archive: %w", err)
	}

	checksum, err := s.calculateChecksum(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate checksum: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat archive: %w", err)
	}

	archiveFile, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer archiveFile.Close()

	key := archivePrefix + archiveName
	if err := s.store.Upload(ctx, key, archiveFile); err != nil {
		return nil, fmt.Errorf("failed to upload archive: %w", err)
	}

	// Sidecar in sha256sum format so standard tooling can verify
	sidecar := fmt.Sprintf("%s  %s\n", strings.TrimPrefix(checksum, "sha256:"), archiveName)
	if err := s.store.Upload(ctx, key+".sha256", strings.NewReader(sidecar)); err != nil {
		return nil, fmt.Errorf("failed to upload checksum sidecar: %w", err)
	}

	if s.eventManager != nil {
		s.eventManager.EmitTyped(events.ArchiveCreated, "archive", &events.ArchiveCreatedData{
			Key:       key,
			SizeBytes: archiveInfo.Size(),
			Checksum:  checksum,
		})
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("key", key).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Run archive completed")

	return &ArchiveInfo{
		Key:       key,
		RunID:     runID,
		Timestamp: timestamp.Truncate(time.Second),
		SizeBytes: archiveInfo.Size(),
	}, nil
}

// List returns all run archives in the bucket, newest first. Checksum
// sidecars and keys that do not parse as archive names are skipped.
func (s *ArchiveService) List(ctx context.Context) ([]ArchiveInfo, error) {
	objects, err := s.store.List(ctx, archivePrefix+"qboost-run-")
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}

	archives := make([]ArchiveInfo, 0, len(objects))
	now := time.Now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		runID, timestamp, ok := parseArchiveKey(*obj.Key)
		if !ok {
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		archives = append(archives, ArchiveInfo{
			Key:       *obj.Key,
			RunID:     runID,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Timestamp.After(archives[j].Timestamp)
	})

	return archives, nil
}

// Rotate deletes archives older than retentionDays, always keeping the
// newest minKeep regardless of age. retentionDays 0 keeps everything.
func (s *ArchiveService) Rotate(ctx context.Context, retentionDays int) error {
	s.log.Info().Int("retention_days", retentionDays).Msg("Starting archive rotation")

	archives, err := s.List(ctx)
	if err != nil {
		return err
	}

	if len(archives) <= s.minKeep {
		s.log.Info().Int("count", len(archives)).Msg("Too few archives to rotate")
		return nil
	}

	var cutoffTime time.Time
	if retentionDays > 0 {
		cutoffTime = time.Now().AddDate(0, 0, -retentionDays)
	}

	deleted := make([]string, 0)
	for i, archive := range archives {
		// The newest minKeep survive unconditionally
		if i < s.minKeep {
			continue
		}
		if retentionDays == 0 {
			continue
		}
		if !archive.Timestamp.Before(cutoffTime) {
			continue
		}

		if err := s.store.Delete(ctx, archive.Key); err != nil {
			s.log.Error().Err(err).Str("key", archive.Key).Msg("Failed to delete old archive")
			continue
		}
		if err := s.store.Delete(ctx, archive.Key+".sha256"); err != nil {
			s.log.Warn().Err(err).Str("key", archive.Key).Msg("Failed to delete checksum sidecar")
		}

		s.log.Info().
			Str("key", archive.Key).
			Time("timestamp", archive.Timestamp).
			Msg("Deleted old archive")

		deleted = append(deleted, archive.Key)
	}

	if len(deleted) > 0 && s.eventManager != nil {
		s.eventManager.EmitTyped(events.ArchivePruned, "archive", &events.ArchivePrunedData{
			Deleted: deleted,
			Kept:    len(archives) - len(deleted),
		})
	}

	s.log.Info().
		Int("deleted", len(deleted)).
		Int("remaining", len(archives)-len(deleted)).
		Msg("Archive rotation completed")

	return nil
}

// parseArchiveKey extracts the run id and timestamp from an archive
// object key. Run ids contain hyphens, so the timestamp is read from
// the fixed-width tail of the name.
func parseArchiveKey(key string) (string, time.Time, bool) {
	name := strings.TrimPrefix(key, archivePrefix)
	if !strings.HasPrefix(name, "qboost-run-") || !strings.HasSuffix(name, ".tar.gz") {
		return "", time.Time{}, false
	}

	trimmed := strings.TrimSuffix(strings.TrimPrefix(name, "qboost-run-"), ".tar.gz")
	if len(trimmed) < len(archiveStampLayout)+2 {
		return "", time.Time{}, false
	}

	stamp := trimmed[len(trimmed)-len(archiveStampLayout):]
	runID := trimmed[:len(trimmed)-len(archiveStampLayout)-1]
	if runID == "" {
		return "", time.Time{}, false
	}

	timestamp, err := time.Parse(archiveStampLayout, stamp)
	if err != nil {
		return "", time.Time{}, false
	}

	return runID, timestamp, true
}

// calculateChecksum calculates the SHA256 checksum of a file.
func (s *ArchiveService) calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// buildArchive writes a tar.gz of every regular file in sourceDir.
func (s *ArchiveService) buildArchive(archivePath, sourceDir string) error {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to read run directory: %w", err)
	}

	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		filePath := filepath.Join(sourceDir, entry.Name())
		if err := s.addFileToArchive(tarWriter, filePath, entry.Name()); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", entry.Name(), err)
		}
	}

	return nil
}

// addFileToArchive adds a single file to a tar archive.
func (s *ArchiveService) addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	if _, err := io.Copy(tarWriter, file); err != nil {
		return err
	}

	return nil
}
