package results

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/qboost/internal/database"
	"github.com/rs/zerolog"
)

// RunRow is one entry in the run index.
type RunRow struct {
	ID              string    `json:"run_id"`
	CreatedAt       time.Time `json:"created_at"`
	Optimizer       string    `json:"optimizer"`
	Hamiltonian     string    `json:"hamiltonian"`
	NQubits         int       `json:"nqubits"`
	NLayers         int       `json:"nlayers"`
	NBoost          int       `json:"nboost"`
	Seed            int64     `json:"seed"`
	BestLoss        float64   `json:"best_loss"`
	FinalEnergy     float64   `json:"final_energy"`
	GroundEnergy    float64   `json:"ground_energy"`
	Success         bool      `json:"success"`
	Message         string    `json:"message"`
	Path            string    `json:"path"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Store indexes completed runs in the runs database.
// The index is the only record of which run directories exist, so it runs
// on the durable connection profile.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// NewStore creates a run store and ensures its schema exists.
func NewStore(db *database.DB, log zerolog.Logger) (*Store, error) {
	s := &Store{
		db:  db,
		log: log.With().Str("repository", "runs").Logger(),
	}
	if err := s.ensureSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			optimizer TEXT NOT NULL,
			hamiltonian TEXT NOT NULL,
			nqubits INTEGER NOT NULL,
			nlayers INTEGER NOT NULL,
			nboost INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			best_loss REAL NOT NULL,
			final_energy REAL NOT NULL,
			ground_energy REAL NOT NULL,
			success INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL,
			duration_seconds REAL NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create runs table: %w", err)
	}

	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`)
	if err != nil {
		return fmt.Errorf("failed to create runs index: %w", err)
	}

	return nil
}

// Insert records a completed run.
func (s *Store) Insert(row RunRow) error {
	success := 0
	if row.Success {
		success = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO runs
		(id, created_at, optimizer, hamiltonian, nqubits, nlayers, nboost, seed,
		 best_loss, final_energy, ground_energy, success, message, path, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		row.ID,
		row.CreatedAt.Unix(),
		row.Optimizer,
		row.Hamiltonian,
		row.NQubits,
		row.NLayers,
		row.NBoost,
		row.Seed,
		row.BestLoss,
		row.FinalEnergy,
		row.GroundEnergy,
		success,
		row.Message,
		row.Path,
		row.DurationSeconds,
	)

	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	s.log.Info().
		Str("run_id", row.ID).
		Str("path", row.Path).
		Msg("Run indexed")

	return nil
}

// Get returns a run by ID, or nil when no run matches.
func (s *Store) Get(id string) (*RunRow, error) {
	row, err := scanRun(s.db.QueryRow(`
		SELECT id, created_at, optimizer, hamiltonian, nqubits, nlayers, nboost, seed,
			   best_loss, final_energy, ground_energy, success, message, path, duration_seconds
		FROM runs
		WHERE id = ?
	`, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	return row, nil
}

// List returns runs ordered newest first. A non-positive limit returns all.
func (s *Store) List(limit int) ([]RunRow, error) {
	query := `
		SELECT id, created_at, optimizer, hamiltonian, nqubits, nlayers, nboost, seed,
			   best_loss, final_energy, ground_energy, success, message, path, duration_seconds
		FROM runs
		ORDER BY created_at DESC, id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		row, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Count returns the number of indexed runs.
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc rowScanner) (*RunRow, error) {
	var row RunRow
	var createdAtUnix int64
	var success int

	err := sc.Scan(
		&row.ID,
		&createdAtUnix,
		&row.Optimizer,
		&row.Hamiltonian,
		&row.NQubits,
		&row.NLayers,
		&row.NBoost,
		&row.Seed,
		&row.BestLoss,
		&row.FinalEnergy,
		&row.GroundEnergy,
		&success,
		&row.Message,
		&row.Path,
		&row.DurationSeconds,
	)
	if err != nil {
		return nil, err
	}

	row.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	row.Success = success != 0
	return &row, nil
}
