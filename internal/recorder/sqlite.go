package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboards can read while a refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_runs (
			run_id        TEXT PRIMARY KEY,
			provider      TEXT,
			started_at    INTEGER NOT NULL,
			finished_at   INTEGER NOT NULL,
			period_count  INTEGER,
			ticker_count  INTEGER,
			call_count    INTEGER,
			failure_count INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON fetch_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS fetch_failures (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id   TEXT NOT NULL REFERENCES fetch_runs(run_id),
			seq      INTEGER NOT NULL,
			period   TEXT NOT NULL,
			ticker   TEXT NOT NULL,
			reason   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run ON fetch_failures(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_ticker ON fetch_failures(ticker)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun inserts the run and its failures in one transaction.
func (r *SQLiteRecorder) RecordRun(run *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO fetch_runs
		(run_id, provider, started_at, finished_at, period_count, ticker_count, call_count, failure_count)
		VALUES (?,?,?,?,?,?,?,?)`,
		run.RunID, run.Provider, run.StartedAt.Unix(), run.FinishedAt.Unix(),
		run.Periods, run.Tickers, run.Calls, len(run.Failures),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for i, f := range run.Failures {
		if _, err := tx.Exec(`INSERT INTO fetch_failures (run_id, seq, period, ticker, reason) VALUES (?,?,?,?,?)`,
			run.RunID, i, f.Period, f.Ticker, f.Reason,
		); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}
	return tx.Commit()
}

// FailureCounts returns how many times each ticker has failed across all
// recorded runs.
func (r *SQLiteRecorder) FailureCounts() (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT ticker, COUNT(*) FROM fetch_failures GROUP BY ticker`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var ticker string
		var n int
		if err := rows.Scan(&ticker, &n); err != nil {
			return nil, err
		}
		out[ticker] = n
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}
