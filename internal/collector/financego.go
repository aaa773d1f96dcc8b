package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"

	"SectorCycles/internal/model"
)

// FinanceGoFetcher implements Fetcher on top of the finance-go chart client.
type FinanceGoFetcher struct{}

// NewFinanceGoFetcher creates a new finance-go backed fetcher.
func NewFinanceGoFetcher() *FinanceGoFetcher { return &FinanceGoFetcher{} }

func (f *FinanceGoFetcher) Name() string { return "financego" }

func (f *FinanceGoFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (model.RawSeries, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	params := &chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	}

	var series model.RawSeries
	iter := chart.Get(params)
	for iter.Next() {
		b := iter.Bar()
		if b.AdjClose.Equal(decimal.Zero) {
			continue
		}
		series = append(series, model.OHLCV{
			Time:     time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:     b.Open.InexactFloat64(),
			High:     b.High.InexactFloat64(),
			Low:      b.Low.InexactFloat64(),
			Close:    b.Close.InexactFloat64(),
			AdjClose: b.AdjClose.InexactFloat64(),
			Volume:   float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("finance-go chart: %w", err)
	}
	return series, nil
}
