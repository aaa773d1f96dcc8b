package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SectorCycles/internal/collector"
	"SectorCycles/internal/model"
	"SectorCycles/internal/recorder"
)

type memRecorder struct {
	mu   sync.Mutex
	runs []*recorder.RunRecord
}

func (m *memRecorder) RecordRun(r *recorder.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, r)
	return nil
}

func (m *memRecorder) FailureCounts() (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int)
	for _, r := range m.runs {
		for _, f := range r.Failures {
			out[f.Ticker]++
		}
	}
	return out, nil
}

func (m *memRecorder) Close() error { return nil }

type memNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (m *memNotifier) Send(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return nil
}

func date(s string) time.Time {
	t, _ := model.ParseDate(s)
	return t
}

var testPeriods = []model.Period{
	{Name: "p1", Start: date("2020-01-01"), End: date("2020-01-15")},
	{Name: "p2", Start: date("2021-03-01"), End: date("2021-03-10")},
}

func newTestPipeline(fetcher *collector.MockFetcher) (*Pipeline, *memRecorder, *memNotifier) {
	rec := &memRecorder{}
	n := &memNotifier{}
	col := collector.NewCollector(fetcher, 1, nil)
	p := NewPipeline(col, rec, n, testPeriods, []string{"XLB", "XLK", "XLE"}, "p2")
	return p, rec, n
}

func TestPipeline_RefreshPublishesSnapshot(t *testing.T) {
	fetcher := &collector.MockFetcher{Price: 50, Fail: map[string]error{"XLK": errors.New("boom")}}
	p, rec, n := newTestPipeline(fetcher)

	assert.Nil(t, p.Current())

	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, p.Current())

	assert.NotEmpty(t, snap.RunID)
	assert.Equal(t, "mock", snap.Provider)
	assert.Equal(t, "p2", snap.DefaultPeriod)
	assert.Equal(t, 6, fetcher.Calls())
	assert.Equal(t, []string{"XLK", "XLK"}, snap.Failures.Tickers())

	for _, period := range testPeriods {
		frame, ok := snap.Tables[period.Name]
		require.True(t, ok, "missing frame for %s", period.Name)
		assert.Equal(t, []string{"XLB", "XLE"}, frame.Tickers())
		assert.NotEmpty(t, frame.Dates)
	}

	require.Len(t, rec.runs, 1)
	run := rec.runs[0]
	assert.Equal(t, snap.RunID, run.RunID)
	assert.Equal(t, 6, run.Calls)
	require.Len(t, run.Failures, 2)
	assert.Equal(t, "p1", run.Failures[0].Period)
	assert.Equal(t, "p2", run.Failures[1].Period)
	assert.Contains(t, run.Failures[0].Reason, "boom")

	require.Len(t, n.sent, 1)
	assert.Contains(t, n.sent[0], "2 fetches failed")
}

func TestPipeline_RefreshReplacesSnapshot(t *testing.T) {
	fetcher := &collector.MockFetcher{Price: 50}
	p, _, _ := newTestPipeline(fetcher)

	first, err := p.Refresh(context.Background())
	require.NoError(t, err)
	second, err := p.Refresh(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Same(t, second, p.Current())
	assert.Equal(t, 12, fetcher.Calls())
	// The earlier snapshot is untouched by the rebuild.
	assert.Len(t, first.Tables["p1"].Columns, 3)
}

func TestPipeline_CancelledRefreshKeepsPrevious(t *testing.T) {
	p, rec, _ := newTestPipeline(&collector.MockFetcher{Price: 50})
	first, err := p.Refresh(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Refresh(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Same(t, first, p.Current())
	assert.Len(t, rec.runs, 1)
}

// gatedFetcher blocks every provider call until gate is closed.
type gatedFetcher struct {
	collector.MockFetcher
	once    sync.Once
	started chan struct{}
	gate    chan struct{}
}

func (g *gatedFetcher) FetchDailyBars(ctx context.Context, ticker string, start, end time.Time) (model.RawSeries, error) {
	g.once.Do(func() { close(g.started) })
	<-g.gate
	return g.MockFetcher.FetchDailyBars(ctx, ticker, start, end)
}

func TestPipeline_ConcurrentRefreshesShareOneRun(t *testing.T) {
	f := &gatedFetcher{started: make(chan struct{}), gate: make(chan struct{})}
	rec := &memRecorder{}
	p := NewPipeline(collector.NewCollector(f, 1, nil), rec, nil, testPeriods, []string{"XLB", "XLK", "XLE"}, "p2")
	ctx := context.Background()

	const callers = 10
	snaps := make([]*model.Snapshot, callers)
	var wg sync.WaitGroup
	refresh := func(i int) {
		defer wg.Done()
		s, err := p.Refresh(ctx)
		assert.NoError(t, err)
		snaps[i] = s
	}

	wg.Add(1)
	go refresh(0)
	<-f.started
	for i := 1; i < callers; i++ {
		wg.Add(1)
		go refresh(i)
	}
	time.Sleep(100 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, 6, f.Calls(), "one rebuild is 2 periods × 3 tickers")
	assert.Len(t, rec.runs, 1)
	for i, s := range snaps {
		assert.Same(t, p.Current(), s, "caller %d got a different snapshot", i)
	}

	// A refresh after the shared one has finished rebuilds again.
	_, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, f.Calls())
}

func TestPipeline_AllFailedKeepsPrevious(t *testing.T) {
	fetcher := &collector.MockFetcher{Price: 50}
	p, rec, n := newTestPipeline(fetcher)
	ctx := context.Background()

	first, err := p.Refresh(ctx)
	require.NoError(t, err)

	limited := errors.New("status 429")
	fetcher.Fail = map[string]error{"XLB": limited, "XLK": limited, "XLE": limited}
	snap, err := p.Refresh(ctx)
	require.ErrorIs(t, err, ErrAllFailed)
	assert.Same(t, first, snap)
	assert.Same(t, first, p.Current())

	require.Len(t, rec.runs, 2)
	assert.Len(t, rec.runs[1].Failures, 6)
	require.Len(t, n.sent, 2)
	assert.Contains(t, n.sent[1], "all 6 fetches failed")
}

func TestPipeline_FirstRunPublishesEvenIfAllFailed(t *testing.T) {
	down := errors.New("down")
	p, _, _ := newTestPipeline(&collector.MockFetcher{Fail: map[string]error{"XLB": down, "XLK": down, "XLE": down}})

	snap, err := p.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, snap, p.Current())
	assert.Len(t, snap.Failures, 6)
	assert.Empty(t, snap.Tables["p1"].Columns)
}

func TestHandleCommand(t *testing.T) {
	p, _, n := newTestPipeline(&collector.MockFetcher{Price: 50, Fail: map[string]error{"XLE": errors.New("down")}})
	s := NewScheduler(context.Background(), p)
	ctx := context.Background()

	assert.Contains(t, s.HandleCommand(ctx, "/status"), "No data yet")

	assert.Equal(t, "", s.HandleCommand(ctx, "/refresh"))
	require.NotNil(t, p.Current())
	assert.Len(t, n.sent, 1)

	assert.Contains(t, s.HandleCommand(ctx, "/status"), "Provider: mock")
	assert.Contains(t, s.HandleCommand(ctx, "/failures"), "p1 / XLE")
	assert.Contains(t, s.HandleCommand(ctx, "/p1@SectorBot"), "<b>p1</b>")

	help := s.HandleCommand(ctx, "hello")
	assert.True(t, strings.HasPrefix(help, "Available commands"))
	assert.Contains(t, help, "/p2")
	assert.Contains(t, s.HandleCommand(ctx, ""), "Available commands")
}

func TestScheduler_RegisterRefresh(t *testing.T) {
	p, _, _ := newTestPipeline(&collector.MockFetcher{Price: 50})
	s := NewScheduler(context.Background(), p)

	require.NoError(t, s.RegisterRefresh(""))
	assert.Empty(t, s.Cron.Entries())

	require.NoError(t, s.RegisterRefresh("0 30 6 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 1)

	assert.Error(t, s.RegisterRefresh("not a cron"))
}
