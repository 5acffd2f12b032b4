// Package profile persists per-run opcode execution counts to SQLite, so
// repeated runs of a program can be compared without re-instrumenting
// anything.
package profile

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/AntonioAlbt/pl0vm/vm"
)

// Store handles SQLite storage for execution profiles.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the profile database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Busy timeout covers concurrent runs sharing one database.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		program TEXT NOT NULL,
		started_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs table: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS counts (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		opcode INTEGER NOT NULL,
		mnemonic TEXT NOT NULL,
		executions INTEGER NOT NULL,
		PRIMARY KEY (run_id, opcode)
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating counts table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// RecordRun stores one run's opcode counters and returns the run id.
func (s *Store) RecordRun(program string, counts map[vm.Opcode]uint64) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO runs (program, started_at) VALUES (?, ?)`,
		program, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for op, n := range counts {
		if _, err := tx.Exec(
			`INSERT INTO counts (run_id, opcode, mnemonic, executions) VALUES (?, ?, ?, ?)`,
			runID, int(op), op.Name(), int64(n)); err != nil {
			return 0, fmt.Errorf("inserting count for %s: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// RunCounts reads back the counters recorded for a run, keyed by mnemonic.
func (s *Store) RunCounts(runID int64) (map[string]uint64, error) {
	rows, err := s.db.Query(
		`SELECT mnemonic, executions FROM counts WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]uint64)
	for rows.Next() {
		var mnemonic string
		var n int64
		if err := rows.Scan(&mnemonic, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		out[mnemonic] = uint64(n)
	}
	return out, rows.Err()
}
