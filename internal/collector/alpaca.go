package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"SectorCycles/internal/model"
)

// AlpacaFetcher implements Fetcher using the Alpaca market-data API. Bars are
// requested with split and dividend adjustment, so the adjusted close is the
// bar close.
type AlpacaFetcher struct {
	client *marketdata.Client
	feed   string
}

// NewAlpacaFetcher creates a fetcher with the given credentials. dataURL and
// feed are optional.
func NewAlpacaFetcher(apiKey, apiSecret, dataURL, feed string) *AlpacaFetcher {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaFetcher{
		client: marketdata.NewClient(opts),
		feed:   feed,
	}
}

func (f *AlpacaFetcher) Name() string { return "alpaca" }

func (f *AlpacaFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (model.RawSeries, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	bars, err := f.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		End:        end,
		Adjustment: marketdata.All,
		Feed:       marketdata.Feed(f.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars: %w", err)
	}

	series := make(model.RawSeries, 0, len(bars))
	for _, b := range bars {
		series = append(series, model.OHLCV{
			Time:     b.Timestamp,
			Open:     b.Open,
			High:     b.High,
			Low:      b.Low,
			Close:    b.Close,
			AdjClose: b.Close,
			Volume:   float64(b.Volume),
		})
	}
	return series, nil
}
