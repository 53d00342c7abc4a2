// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records resolver runs in a SQLite database so that
// unmatched records can be reviewed after the run.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kmccurley/cryptobib/pkg/types"
)

// Decision statuses stored in the ledger.
const (
	StatusAccepted  = "accepted"
	StatusUnmatched = "unmatched"
)

// ErrNoRuns is returned when the ledger holds no run.
var ErrNoRuns = errors.New("ledger has no runs")

// Store manages the ledger database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Run summarizes one recorded resolver run.
type Run struct {
	ID        int64     `json:"id" yaml:"id"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	Sources   []string  `json:"sources" yaml:"sources"`
	Accepted  int       `json:"accepted" yaml:"accepted"`
	Unmatched int       `json:"unmatched" yaml:"unmatched"`
}

// Open opens or creates the ledger at path, creating its directory and
// schema as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TEXT NOT NULL,
			source_files TEXT NOT NULL,
			accepted INTEGER NOT NULL,
			unmatched INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			bibkey TEXT NOT NULL,
			title TEXT,
			doi TEXT,
			status TEXT NOT NULL,
			distance REAL,
			warnings TEXT,
			rejections TEXT,
			PRIMARY KEY (run_id, bibkey)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_status ON decisions(run_id, status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun stores the decisions of one resolver run and returns its id.
func (s *Store) RecordRun(ctx context.Context, sources []string, decisions []types.Decision) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	accepted := 0
	for _, d := range decisions {
		if d.Accepted() {
			accepted++
		}
	}

	sourcesJSON, _ := json.Marshal(sources)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, source_files, accepted, unmatched) VALUES (?, ?, ?, ?)`,
		s.now().UTC().Format(time.RFC3339Nano), string(sourcesJSON), accepted, len(decisions)-accepted,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO decisions (run_id, bibkey, title, doi, status, distance, warnings, rejections)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range decisions {
		status := StatusUnmatched
		if d.Accepted() {
			status = StatusAccepted
		}
		warningsJSON, _ := json.Marshal(d.Warnings)
		rejectionsJSON, _ := json.Marshal(d.Rejections)
		if _, err := stmt.ExecContext(ctx,
			runID, d.Key, d.Title, d.DOI, status, d.Distance,
			string(warningsJSON), string(rejectionsJSON),
		); err != nil {
			return 0, fmt.Errorf("inserting decision %s: %w", d.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// Runs lists every recorded run, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, source_files, accepted, unmatched FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                Run
			started, sources string
		)
		if err := rows.Scan(&r.ID, &started, &sources, &r.Accepted, &r.Unmatched); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("run %d: parsing start time: %w", r.ID, err)
		}
		if err := json.Unmarshal([]byte(sources), &r.Sources); err != nil {
			return nil, fmt.Errorf("run %d: decoding sources: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LatestRun returns the id of the most recent run.
func (s *Store) LatestRun(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT max(id) FROM runs`).Scan(&id); err != nil {
		return 0, fmt.Errorf("querying latest run: %w", err)
	}
	if !id.Valid {
		return 0, ErrNoRuns
	}
	return id.Int64, nil
}

// Unmatched returns the unmatched decisions of a run, ordered by key. A
// runID of 0 selects the latest run. The selected run id is returned.
func (s *Store) Unmatched(ctx context.Context, runID int64) (int64, []types.Decision, error) {
	return s.decisions(ctx, runID, StatusUnmatched)
}

// Decisions returns every decision of a run, ordered by key. A runID of 0
// selects the latest run.
func (s *Store) Decisions(ctx context.Context, runID int64) (int64, []types.Decision, error) {
	return s.decisions(ctx, runID, "")
}

func (s *Store) decisions(ctx context.Context, runID int64, status string) (int64, []types.Decision, error) {
	if runID == 0 {
		latest, err := s.LatestRun(ctx)
		if err != nil {
			return 0, nil, err
		}
		runID = latest
	}

	query := `SELECT bibkey, title, doi, distance, warnings, rejections FROM decisions WHERE run_id = ?`
	args := []any{runID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY bibkey`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	var out []types.Decision
	for rows.Next() {
		var (
			d                    types.Decision
			title, doi           sql.NullString
			distance             sql.NullFloat64
			warnings, rejections sql.NullString
		)
		if err := rows.Scan(&d.Key, &title, &doi, &distance, &warnings, &rejections); err != nil {
			return 0, nil, fmt.Errorf("scanning decision: %w", err)
		}
		d.Title = title.String
		d.DOI = doi.String
		d.Distance = distance.Float64
		if warnings.Valid {
			if err := json.Unmarshal([]byte(warnings.String), &d.Warnings); err != nil {
				return 0, nil, fmt.Errorf("%s: decoding warnings: %w", d.Key, err)
			}
		}
		if rejections.Valid {
			if err := json.Unmarshal([]byte(rejections.String), &d.Rejections); err != nil {
				return 0, nil, fmt.Errorf("%s: decoding rejections: %w", d.Key, err)
			}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return runID, out, nil
}
