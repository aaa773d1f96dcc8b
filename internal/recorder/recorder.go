package recorder

import "time"

// RunRecord summarizes one fetch-and-reduce run. Price data is never stored;
// only what is needed to diagnose provider failures over time.
type RunRecord struct {
	RunID      string
	Provider   string
	StartedAt  time.Time
	FinishedAt time.Time
	Periods    int
	Tickers    int
	Calls      int
	Failures   []FailureRecord
}

// FailureRecord is one failed (period, ticker) fetch within a run.
type FailureRecord struct {
	Period string
	Ticker string
	Reason string
}

// Recorder persists run history for analysis.
type Recorder interface {
	RecordRun(run *RunRecord) error
	// FailureCounts returns how many times each ticker has failed across
	// all recorded runs.
	FailureCounts() (map[string]int, error)
	Close() error
}
