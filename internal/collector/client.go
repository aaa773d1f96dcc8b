package collector

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"SectorCycles/internal/model"
)

var (
	// ErrFetchFailed marks every failed fetch. A provider error and an empty
	// result both wrap it and are otherwise indistinguishable.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrInvalidRequest is returned for an empty ticker or start >= end.
	ErrInvalidRequest = errors.New("invalid fetch request")
)

// Client wraps a single provider call per request and normalizes its result.
// It holds no state across calls.
type Client struct {
	fetcher Fetcher
}

// NewClient creates a Client over the given fetcher.
func NewClient(f Fetcher) *Client {
	return &Client{fetcher: f}
}

// Name returns the underlying provider name.
func (c *Client) Name() string { return c.fetcher.Name() }

// Fetch retrieves the adjusted daily series for ticker in [start, end).
// The returned series is non-empty and ordered by date ascending; anything
// else is reported as an error wrapping ErrFetchFailed.
func (c *Client) Fetch(ctx context.Context, ticker string, start, end time.Time) (model.RawSeries, error) {
	if ticker == "" {
		return nil, fmt.Errorf("%w: empty ticker", ErrInvalidRequest)
	}
	start, end = model.Date(start), model.Date(end)
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s not before end %s", ErrInvalidRequest,
			start.Format(model.DateLayout), end.Format(model.DateLayout))
	}

	bars, err := c.fetcher.FetchDailyBars(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, ticker, err)
	}

	window := model.Period{Start: start, End: end}
	series := make(model.RawSeries, 0, len(bars))
	for _, b := range bars {
		b.Time = model.Date(b.Time)
		if !window.Contains(b.Time) {
			continue
		}
		series = append(series, b)
	}
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: %s: no data between %s and %s", ErrFetchFailed, ticker,
			start.Format(model.DateLayout), end.Format(model.DateLayout))
	}

	sort.SliceStable(series, func(i, j int) bool { return series[i].Time.Before(series[j].Time) })
	return series, nil
}
