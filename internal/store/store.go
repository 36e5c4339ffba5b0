// Package store persists sweep results in a local SQLite database so
// past runs can be listed and reloaded.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cae-assist/cae-cli/internal/optimize"
)

// ErrSweepNotFound is returned when loading an unknown sweep ID.
var ErrSweepNotFound = errors.New("sweep not found")

// DB wraps the sweep history database.
type DB struct {
	*sql.DB
}

// SweepMeta is one row of the sweep index.
type SweepMeta struct {
	ID        string
	Parameter string
	Min       float64
	Max       float64
	Steps     int
	Mode      string
	Trials    int
	BestIndex int
	BestScore float64
	CreatedAt time.Time
}

// Open opens (and if needed initializes) the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sweep db: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sweeps (
			id TEXT PRIMARY KEY,
			parameter TEXT NOT NULL,
			min_value DOUBLE NOT NULL,
			max_value DOUBLE NOT NULL,
			steps INTEGER NOT NULL,
			step_mode TEXT NOT NULL,
			best_index INTEGER NOT NULL DEFAULT 0,
			best_score DOUBLE NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS trials (
			sweep_id TEXT NOT NULL,
			trial_index INTEGER NOT NULL,
			parameter_value DOUBLE NOT NULL,
			quality_score DOUBLE NOT NULL,
			elapsed_seconds DOUBLE NOT NULL,
			artifact_path TEXT NOT NULL DEFAULT '',
			error TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (sweep_id, trial_index),
			FOREIGN KEY(sweep_id) REFERENCES sweeps(id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init sweep db schema: %w", err)
	}

	return &DB{db}, nil
}

// SaveResult stores a completed sweep under the given ID. The write is
// transactional so a partially stored sweep never appears in listings.
func (db *DB) SaveResult(ctx context.Context, id string, result *optimize.Result) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	var bestScore float64
	if best, ok := result.Best(); ok {
		bestScore = best.QualityScore
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sweeps (id, parameter, min_value, max_value, steps, step_mode, best_index, best_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, result.Spec.Name, result.Spec.Min, result.Spec.Max,
		result.Spec.Steps, string(result.Spec.Mode), result.BestIndex, bestScore)
	if err != nil {
		return fmt.Errorf("insert sweep %s: %w", id, err)
	}

	for _, rec := range result.History {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trials (sweep_id, trial_index, parameter_value, quality_score, elapsed_seconds, artifact_path, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, rec.Index, rec.ParameterValue, rec.QualityScore,
			rec.ElapsedSeconds, rec.ArtifactPath, rec.Error)
		if err != nil {
			return fmt.Errorf("insert trial %d of sweep %s: %w", rec.Index, id, err)
		}
	}

	return tx.Commit()
}

// ListSweeps returns sweep metadata, newest first.
func (db *DB) ListSweeps(ctx context.Context, limit int) ([]SweepMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT s.id, s.parameter, s.min_value, s.max_value, s.steps, s.step_mode,
		       s.best_index, s.best_score, s.created_at,
		       (SELECT COUNT(*) FROM trials t WHERE t.sweep_id = s.id)
		FROM sweeps s
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sweeps: %w", err)
	}
	defer rows.Close()

	var out []SweepMeta
	for rows.Next() {
		var m SweepMeta
		if err := rows.Scan(&m.ID, &m.Parameter, &m.Min, &m.Max, &m.Steps, &m.Mode,
			&m.BestIndex, &m.BestScore, &m.CreatedAt, &m.Trials); err != nil {
			return nil, fmt.Errorf("scan sweep row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadResult rebuilds a stored sweep result by ID.
func (db *DB) LoadResult(ctx context.Context, id string) (*optimize.Result, error) {
	result := &optimize.Result{}
	var mode string
	err := db.QueryRowContext(ctx, `
		SELECT parameter, min_value, max_value, steps, step_mode, best_index
		FROM sweeps WHERE id = ?`, id).
		Scan(&result.Spec.Name, &result.Spec.Min, &result.Spec.Max,
			&result.Spec.Steps, &mode, &result.BestIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSweepNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load sweep %s: %w", id, err)
	}
	result.Spec.Mode = optimize.StepMode(mode)

	rows, err := db.QueryContext(ctx, `
		SELECT trial_index, parameter_value, quality_score, elapsed_seconds, artifact_path, error
		FROM trials WHERE sweep_id = ? ORDER BY trial_index`, id)
	if err != nil {
		return nil, fmt.Errorf("load trials of sweep %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec optimize.TrialRecord
		if err := rows.Scan(&rec.Index, &rec.ParameterValue, &rec.QualityScore,
			&rec.ElapsedSeconds, &rec.ArtifactPath, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan trial row: %w", err)
		}
		result.History = append(result.History, rec)
	}
	return result, rows.Err()
}
