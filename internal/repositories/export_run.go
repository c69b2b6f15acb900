package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/labeltree/internal/models"
	"github.com/desertthunder/labeltree/internal/shared"
)

// ExportRunRepository persists [models.ExportRun] summaries.
type ExportRunRepository struct {
	db *sql.DB
}

// NewExportRunRepository creates a new ExportRunRepository with the given database connection
func NewExportRunRepository(db *sql.DB) *ExportRunRepository {
	return &ExportRunRepository{db: db}
}

// Create assigns an ID and timestamp, validates and inserts the run.
func (r *ExportRunRepository) Create(run *models.ExportRun) error {
	if run.ID == "" {
		run.ID = shared.GenerateID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	if err := run.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	_, err := r.db.Exec(`
		INSERT INTO export_runs (
			id, playlist_id, playlist_name, releases_requested, releases_unmatched,
			tracks_written, duplicates_skipped, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.PlaylistID,
		run.PlaylistName,
		run.ReleasesRequested,
		run.ReleasesUnmatched,
		run.TracksWritten,
		run.DuplicatesSkipped,
		run.CreatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("export run %s already recorded: %w", run.ID, err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert export run: %w", err)
	}
	return nil
}

// Get retrieves a run by ID.
func (r *ExportRunRepository) Get(id string) (*models.ExportRun, error) {
	row := r.db.QueryRow(`
		SELECT id, playlist_id, playlist_name, releases_requested, releases_unmatched,
			tracks_written, duplicates_skipped, created_at
		FROM export_runs WHERE id = ?
	`, id)

	run, err := scanExportRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("export run %s: %w", id, ErrNoRows)
	}
	return run, err
}

// List returns the most recent runs first, at most limit of them (all when limit <= 0).
func (r *ExportRunRepository) List(limit int) ([]*models.ExportRun, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(`
		SELECT id, playlist_id, playlist_name, releases_requested, releases_unmatched,
			tracks_written, duplicates_skipped, created_at
		FROM export_runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list export runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ExportRun
	for rows.Next() {
		run, err := scanExportRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExportRun(s scanner) (*models.ExportRun, error) {
	var run models.ExportRun
	var createdAt int64

	err := s.Scan(
		&run.ID,
		&run.PlaylistID,
		&run.PlaylistName,
		&run.ReleasesRequested,
		&run.ReleasesUnmatched,
		&run.TracksWritten,
		&run.DuplicatesSkipped,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan export run: %w", err)
	}

	run.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &run, nil
}
