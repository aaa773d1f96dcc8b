package model

import "time"

// Column holds one ticker's adjusted closes aligned to a frame's dates.
// Valid[i] is false where the ticker had no row on Dates[i].
type Column struct {
	Ticker string
	Values []float64
	Valid  []bool
}

// At returns the value at row i and whether it is present.
func (c *Column) At(i int) (float64, bool) {
	if i < 0 || i >= len(c.Values) || !c.Valid[i] {
		return 0, false
	}
	return c.Values[i], true
}

// Last returns the most recent present value.
func (c *Column) Last() (float64, bool) {
	for i := len(c.Values) - 1; i >= 0; i-- {
		if c.Valid[i] {
			return c.Values[i], true
		}
	}
	return 0, false
}

// PriceFrame is a date-indexed table with one adjusted-close column per ticker.
type PriceFrame struct {
	Period  string
	Dates   []time.Time
	Columns []Column
}

// Column looks up a ticker's column.
func (f *PriceFrame) Column(ticker string) (*Column, bool) {
	for i := range f.Columns {
		if f.Columns[i].Ticker == ticker {
			return &f.Columns[i], true
		}
	}
	return nil, false
}

// Tickers returns the column names in order.
func (f *PriceFrame) Tickers() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Ticker
	}
	return out
}

// AdjustedCloseTable maps period name to its frame.
type AdjustedCloseTable map[string]*PriceFrame

// Snapshot is the immutable product of one pipeline run. It is shared
// read-only by every viewer once published.
type Snapshot struct {
	RunID         string
	Provider      string
	BuiltAt       time.Time
	Periods       []Period
	Tickers       []string
	DefaultPeriod string
	Failures      FailureLog
	Tables        AdjustedCloseTable
}

// Period looks up a configured period by name.
func (s *Snapshot) Period(name string) (Period, bool) {
	for _, p := range s.Periods {
		if p.Name == name {
			return p, true
		}
	}
	return Period{}, false
}

// PeriodNames returns the configured period names in order.
func (s *Snapshot) PeriodNames() []string {
	out := make([]string, len(s.Periods))
	for i, p := range s.Periods {
		out[i] = p.Name
	}
	return out
}
