package collector

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"SectorCycles/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Tickers in Fail produce an error, tickers in Empty produce no rows, tickers
// in Series return that data, and everything else gets synthetic bars.
type MockFetcher struct {
	Price  float64
	Series map[string]model.RawSeries
	Fail   map[string]error
	Empty  map[string]bool

	calls atomic.Int64
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls returns how many times FetchDailyBars has been invoked.
func (m *MockFetcher) Calls() int { return int(m.calls.Load()) }

func (m *MockFetcher) FetchDailyBars(_ context.Context, ticker string, start, end time.Time) (model.RawSeries, error) {
	m.calls.Add(1)
	if err, ok := m.Fail[ticker]; ok {
		return nil, err
	}
	if m.Empty[ticker] {
		return nil, nil
	}
	if s, ok := m.Series[ticker]; ok {
		return s, nil
	}
	return generateMockBars(m.Price, ticker, start, end), nil
}

// generateMockBars emits one weekday bar per day in [start, end). Prices are
// deterministic per ticker.
func generateMockBars(basePrice float64, ticker string, start, end time.Time) model.RawSeries {
	if basePrice <= 0 {
		basePrice = 100
	}
	seed := 0
	for _, r := range ticker {
		seed += int(r)
	}
	p0 := basePrice * (1 + float64(seed%50)/100)

	var bars model.RawSeries
	i := 0
	for d := model.Date(start); d.Before(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		p := p0 * (1 + float64(i%40-20)*0.001)
		bars = append(bars, model.OHLCV{
			Time:     d,
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			AdjClose: p * 0.98,
			Volume:   1000000,
		})
		i++
	}
	return bars
}

// Collector fetches every (period, ticker) pair through a Client.
type Collector struct {
	Client     *Client
	MaxWorkers int
	Limiter    *rate.Limiter
}

// NewCollector creates a new Collector. maxWorkers <= 1 fetches sequentially;
// a nil limiter disables pacing.
func NewCollector(fetcher Fetcher, maxWorkers int, limiter *rate.Limiter) *Collector {
	return &Collector{Client: NewClient(fetcher), MaxWorkers: maxWorkers, Limiter: limiter}
}

type pairJob struct {
	idx    int
	period model.Period
	ticker string
}

// FetchAll calls the provider exactly once per (period, ticker) pair. A
// failed pair is logged and recorded in the returned FailureLog; it never
// stops the remaining pairs. Results and failures follow configuration
// order, period-major, whether or not the calls run in parallel.
func (c *Collector) FetchAll(ctx context.Context, periods []model.Period, tickers []string) (model.FetchResult, model.FailureLog) {
	jobs := make([]pairJob, 0, len(periods)*len(tickers))
	for _, p := range periods {
		for _, t := range tickers {
			jobs = append(jobs, pairJob{idx: len(jobs), period: p, ticker: t})
		}
	}

	// Each job writes only its own slot; the accumulators are built afterwards.
	outcomes := make([]model.PairOutcome, len(jobs))
	run := func(j pairJob) {
		outcomes[j.idx] = c.fetchPair(ctx, j.period, j.ticker)
	}

	workers := min(max(c.MaxWorkers, 1), len(jobs))
	if workers <= 1 {
		for _, j := range jobs {
			run(j)
		}
	} else {
		jobCh := make(chan pairJob, len(jobs))
		for _, j := range jobs {
			jobCh <- j
		}
		close(jobCh)

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range jobCh {
					run(j)
				}
			}()
		}
		wg.Wait()
	}

	result := make(model.FetchResult, len(periods))
	for _, p := range periods {
		result[p.Name] = make(map[string]model.RawSeries)
	}
	var failures model.FailureLog
	for _, o := range outcomes {
		if o.OK() {
			result[o.Period][o.Ticker] = o.Series
			continue
		}
		failures = append(failures, model.Failure{Period: o.Period, Ticker: o.Ticker, Err: o.Err})
	}
	return result, failures
}

func (c *Collector) fetchPair(ctx context.Context, p model.Period, ticker string) model.PairOutcome {
	out := model.PairOutcome{Period: p.Name, Ticker: ticker}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			log.Printf("[WARN] rate limiter wait for %s/%s: %v", p.Name, ticker, err)
		}
	}
	series, err := c.Client.Fetch(ctx, ticker, p.Start, p.End)
	if err != nil {
		log.Printf("[WARN] fetch %s for period %s failed: %v", ticker, p.Name, err)
		out.Err = err
		return out
	}
	out.Series = series
	return out
}
