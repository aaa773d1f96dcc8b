package recorder

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteRecorder_RecordRun(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRecorder: %v", err)
	}
	defer r.Close()

	now := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	runs := []*RunRecord{
		{
			RunID: "run-1", Provider: "mock", StartedAt: now, FinishedAt: now.Add(time.Second),
			Periods: 2, Tickers: 3, Calls: 6,
			Failures: []FailureRecord{
				{Period: "p1", Ticker: "XLK", Reason: "fetch failed"},
				{Period: "p2", Ticker: "XLK", Reason: "fetch failed"},
				{Period: "p2", Ticker: "XLE", Reason: "fetch failed"},
			},
		},
		{
			RunID: "run-2", Provider: "mock", StartedAt: now.Add(time.Hour), FinishedAt: now.Add(time.Hour),
			Periods: 2, Tickers: 3, Calls: 6,
		},
	}
	for _, run := range runs {
		if err := r.RecordRun(run); err != nil {
			t.Fatalf("RecordRun(%s): %v", run.RunID, err)
		}
	}

	counts, err := r.FailureCounts()
	if err != nil {
		t.Fatalf("FailureCounts: %v", err)
	}
	if counts["XLK"] != 2 || counts["XLE"] != 1 || len(counts) != 2 {
		t.Errorf("FailureCounts = %v, want XLK:2 XLE:1", counts)
	}

	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM fetch_runs`).Scan(&n); err != nil {
		t.Fatalf("count runs: %v", err)
	}
	if n != 2 {
		t.Errorf("fetch_runs rows = %d, want 2", n)
	}
}

func TestSQLiteRecorder_DuplicateRunRollsBack(t *testing.T) {
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRecorder: %v", err)
	}
	defer r.Close()

	run := &RunRecord{RunID: "dup", StartedAt: time.Now(), FinishedAt: time.Now(),
		Failures: []FailureRecord{{Period: "p", Ticker: "A", Reason: "x"}}}
	if err := r.RecordRun(run); err != nil {
		t.Fatalf("first RecordRun: %v", err)
	}
	if err := r.RecordRun(run); err == nil {
		t.Fatal("expected primary key violation on second insert")
	}

	counts, err := r.FailureCounts()
	if err != nil {
		t.Fatalf("FailureCounts: %v", err)
	}
	if counts["A"] != 1 {
		t.Errorf("failed run leaked rows: A=%d, want 1", counts["A"])
	}
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	if err := r.RecordRun(&RunRecord{RunID: "x"}); err != nil {
		t.Errorf("RecordRun: %v", err)
	}
	if counts, err := r.FailureCounts(); err != nil || len(counts) != 0 {
		t.Errorf("FailureCounts = %v, %v; want empty", counts, err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
