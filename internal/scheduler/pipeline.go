package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"SectorCycles/internal/collector"
	"SectorCycles/internal/model"
	"SectorCycles/internal/notifier"
	"SectorCycles/internal/recorder"
	"SectorCycles/internal/reducer"
)

// ErrAllFailed means every pair of a refresh failed. The previously published
// snapshot is kept.
var ErrAllFailed = errors.New("every fetch failed")

// Pipeline fetches every configured pair, reduces the results and publishes
// the outcome as an immutable snapshot.
type Pipeline struct {
	Collector     *collector.Collector
	Recorder      recorder.Recorder
	Notifier      notifier.Notifier // nil disables run summaries
	Periods       []model.Period
	Tickers       []string
	DefaultPeriod string

	flight  singleflight.Group
	current atomic.Pointer[model.Snapshot]
	now     func() time.Time
}

// NewPipeline creates a pipeline. rec may be nil.
func NewPipeline(col *collector.Collector, rec recorder.Recorder, n notifier.Notifier, periods []model.Period, tickers []string, defaultPeriod string) *Pipeline {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Pipeline{
		Collector:     col,
		Recorder:      rec,
		Notifier:      n,
		Periods:       periods,
		Tickers:       tickers,
		DefaultPeriod: defaultPeriod,
		now:           time.Now,
	}
}

// Current returns the latest published snapshot, or nil before the first
// refresh completes.
func (p *Pipeline) Current() *model.Snapshot {
	return p.current.Load()
}

// Refresh rebuilds the snapshot from scratch. Callers arriving while a
// rebuild is running share its result instead of starting another one.
// Individual pair failures never fail the refresh. A cancelled context, or a
// run in which every pair failed while an earlier snapshot exists, returns an
// error and leaves the published snapshot in place.
func (p *Pipeline) Refresh(ctx context.Context) (*model.Snapshot, error) {
	v, err, shared := p.flight.Do("refresh", func() (any, error) {
		return p.rebuild(ctx)
	})
	if shared {
		log.Println("[INFO] joined refresh already in progress")
	}
	snap, _ := v.(*model.Snapshot)
	return snap, err
}

func (p *Pipeline) rebuild(ctx context.Context) (*model.Snapshot, error) {
	runID := uuid.NewString()
	started := p.now()
	log.Printf("[INFO] refresh %s: %d periods × %d tickers via %s", runID, len(p.Periods), len(p.Tickers), p.Collector.Client.Name())

	result, failures := p.Collector.FetchAll(ctx, p.Periods, p.Tickers)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("refresh %s aborted: %w", runID, err)
	}

	snap := &model.Snapshot{
		RunID:         runID,
		Provider:      p.Collector.Client.Name(),
		BuiltAt:       p.now(),
		Periods:       p.Periods,
		Tickers:       p.Tickers,
		DefaultPeriod: p.DefaultPeriod,
		Failures:      failures,
		Tables:        reducer.Reduce(result, p.Tickers, p.Periods),
	}
	if err := p.Recorder.RecordRun(runRecord(snap, started)); err != nil {
		log.Printf("[ERROR] record run %s: %v", runID, err)
	}

	calls := len(p.Periods) * len(p.Tickers)
	if prev := p.current.Load(); prev != nil && calls > 0 && len(failures) == calls {
		log.Printf("[WARN] refresh %s: all %d fetches failed, keeping snapshot %s", runID, calls, prev.RunID)
		p.trySend(ctx, fmt.Sprintf("⚠️ refresh failed: all %d fetches failed, still serving data from %s",
			calls, prev.BuiltAt.Format("2006-01-02 15:04")))
		return prev, fmt.Errorf("refresh %s: %w", runID, ErrAllFailed)
	}

	p.current.Store(snap)
	log.Printf("[INFO] refresh %s published: %d failures in %v", runID, len(failures), snap.BuiltAt.Sub(started).Round(time.Millisecond))
	p.trySend(ctx, notifier.FormatRunSummary(snap))
	return snap, nil
}

func runRecord(s *model.Snapshot, started time.Time) *recorder.RunRecord {
	rec := &recorder.RunRecord{
		RunID:      s.RunID,
		Provider:   s.Provider,
		StartedAt:  started,
		FinishedAt: s.BuiltAt,
		Periods:    len(s.Periods),
		Tickers:    len(s.Tickers),
		Calls:      len(s.Periods) * len(s.Tickers),
	}
	for _, f := range s.Failures {
		rec.Failures = append(rec.Failures, recorder.FailureRecord{Period: f.Period, Ticker: f.Ticker, Reason: f.Reason()})
	}
	return rec
}

func (p *Pipeline) trySend(ctx context.Context, text string) {
	if p.Notifier == nil {
		return
	}
	if err := notifier.SendWithRetry(ctx, p.Notifier, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
