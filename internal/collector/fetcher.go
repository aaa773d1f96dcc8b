package collector

import (
	"context"
	"time"

	"SectorCycles/internal/model"
)

// Fetcher defines the interface for fetching daily bars from a data provider.
// Implementations return the provider's rows as-is; Client normalizes them.
type Fetcher interface {
	FetchDailyBars(ctx context.Context, ticker string, start, end time.Time) (model.RawSeries, error)
	Name() string
}
