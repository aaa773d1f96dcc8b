package recorder

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresRecorder persists run history to PostgreSQL.
type PostgresRecorder struct {
	db *sqlx.DB
}

type runRow struct {
	RunID        string    `db:"run_id"`
	Provider     string    `db:"provider"`
	StartedAt    time.Time `db:"started_at"`
	FinishedAt   time.Time `db:"finished_at"`
	PeriodCount  int       `db:"period_count"`
	TickerCount  int       `db:"ticker_count"`
	CallCount    int       `db:"call_count"`
	FailureCount int       `db:"failure_count"`
}

type failureRow struct {
	RunID  string `db:"run_id"`
	Seq    int    `db:"seq"`
	Period string `db:"period"`
	Ticker string `db:"ticker"`
	Reason string `db:"reason"`
}

// NewPostgresRecorder connects using a lib/pq connection string and creates
// the tables if needed.
func NewPostgresRecorder(connStr string) (*PostgresRecorder, error) {
	db, err := sqlx.Connect("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	r := &PostgresRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Println("[INFO] postgres recorder connected")
	return r, nil
}

func (r *PostgresRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_runs (
			run_id        UUID PRIMARY KEY,
			provider      TEXT,
			started_at    TIMESTAMPTZ NOT NULL,
			finished_at   TIMESTAMPTZ NOT NULL,
			period_count  INTEGER,
			ticker_count  INTEGER,
			call_count    INTEGER,
			failure_count INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS fetch_failures (
			id     BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES fetch_runs(run_id),
			seq    INTEGER NOT NULL,
			period TEXT NOT NULL,
			ticker TEXT NOT NULL,
			reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_ticker ON fetch_failures(ticker)`,
	}
	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordRun inserts the run and its failures in one transaction.
func (r *PostgresRecorder) RecordRun(run *RunRecord) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExec(`INSERT INTO fetch_runs
		(run_id, provider, started_at, finished_at, period_count, ticker_count, call_count, failure_count)
		VALUES (:run_id, :provider, :started_at, :finished_at, :period_count, :ticker_count, :call_count, :failure_count)`,
		runRow{
			RunID:        run.RunID,
			Provider:     run.Provider,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			PeriodCount:  run.Periods,
			TickerCount:  run.Tickers,
			CallCount:    run.Calls,
			FailureCount: len(run.Failures),
		},
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(run.Failures) > 0 {
		rows := make([]failureRow, len(run.Failures))
		for i, f := range run.Failures {
			rows[i] = failureRow{RunID: run.RunID, Seq: i, Period: f.Period, Ticker: f.Ticker, Reason: f.Reason}
		}
		if _, err := tx.NamedExec(`INSERT INTO fetch_failures (run_id, seq, period, ticker, reason)
			VALUES (:run_id, :seq, :period, :ticker, :reason)`, rows); err != nil {
			return fmt.Errorf("insert failures: %w", err)
		}
	}
	return tx.Commit()
}

func (r *PostgresRecorder) FailureCounts() (map[string]int, error) {
	var rows []struct {
		Ticker string `db:"ticker"`
		N      int    `db:"n"`
	}
	if err := r.db.Select(&rows, `SELECT ticker, COUNT(*) AS n FROM fetch_failures GROUP BY ticker`); err != nil {
		return nil, fmt.Errorf("failure counts: %w", err)
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Ticker] = row.N
	}
	return out, nil
}

func (r *PostgresRecorder) Close() error {
	log.Println("[INFO] closing postgres recorder")
	return r.db.Close()
}
