// Package reducer projects fetched series down to adjusted closes and aligns
// them into one date-indexed frame per period.
package reducer

import (
	"sort"
	"time"

	"SectorCycles/internal/model"
)

// Reduce builds one frame per configured period. Columns follow the ticker
// order and exist only for tickers present in result under that period.
// Rows are the sorted union of all dates seen in the period (outer join);
// a ticker without a row on a date has an invalid cell there. Reduce is pure.
func Reduce(result model.FetchResult, tickers []string, periods []model.Period) model.AdjustedCloseTable {
	table := make(model.AdjustedCloseTable, len(periods))
	for _, p := range periods {
		table[p.Name] = reducePeriod(p.Name, result[p.Name], tickers)
	}
	return table
}

func reducePeriod(period string, byTicker map[string]model.RawSeries, tickers []string) *model.PriceFrame {
	frame := &model.PriceFrame{Period: period, Dates: []time.Time{}, Columns: []model.Column{}}

	closes := make([]map[time.Time]float64, 0, len(tickers))
	present := make([]string, 0, len(tickers))
	seen := make(map[time.Time]struct{})
	for _, t := range tickers {
		series, ok := byTicker[t]
		if !ok || len(series) == 0 {
			continue
		}
		col := extractAdjCloses(series)
		for d := range col {
			seen[d] = struct{}{}
		}
		closes = append(closes, col)
		present = append(present, t)
	}

	for d := range seen {
		frame.Dates = append(frame.Dates, d)
	}
	sort.Slice(frame.Dates, func(i, j int) bool { return frame.Dates[i].Before(frame.Dates[j]) })

	for i, t := range present {
		col := model.Column{
			Ticker: t,
			Values: make([]float64, len(frame.Dates)),
			Valid:  make([]bool, len(frame.Dates)),
		}
		for r, d := range frame.Dates {
			if v, ok := closes[i][d]; ok {
				col.Values[r] = v
				col.Valid[r] = true
			}
		}
		frame.Columns = append(frame.Columns, col)
	}
	return frame
}

// extractAdjCloses keys adjusted closes by calendar date. A later row for the
// same date replaces an earlier one.
func extractAdjCloses(series model.RawSeries) map[time.Time]float64 {
	out := make(map[time.Time]float64, len(series))
	for _, b := range series {
		out[model.Date(b.Time)] = b.AdjClose
	}
	return out
}
