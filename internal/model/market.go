package model

import "time"

// DateLayout is the calendar-date format used in configuration and on the wire.
const DateLayout = "2006-01-02"

// OHLCV represents a single daily bar. AdjClose is the close adjusted for
// dividends and splits.
type OHLCV struct {
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   float64
}

// RawSeries is the result of fetching one (period, ticker) pair, ordered by
// date ascending.
type RawSeries []OHLCV

// Period is a named calendar interval [Start, End).
type Period struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the half-open interval.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Date truncates t to midnight UTC of its calendar day.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}
