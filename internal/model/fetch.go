package model

// FetchResult maps period name to ticker to series. Only successful fetches
// are stored; a present ticker always has a non-empty series.
type FetchResult map[string]map[string]RawSeries


// PairOutcome is the result of one provider call.
type PairOutcome struct {
	Period string
	Ticker string
	Series RawSeries
	Err    error
}

// OK reports whether the pair produced data.
func (o PairOutcome) OK() bool { return o.Err == nil && len(o.Series) > 0 }

// Failure records one failed (period, ticker) fetch.
type Failure struct {
	Period string
	Ticker string
	Err    error
}

// Reason returns the error text, or "" when none was recorded.
func (f Failure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// FailureLog holds failures in processing order. A ticker appears once per
// failing period.
type FailureLog []Failure

// Tickers returns the failed tickers in append order, duplicates included.
func (l FailureLog) Tickers() []string {
	out := make([]string, len(l))
	for i, f := range l {
		out[i] = f.Ticker
	}
	return out
}

// ForPeriod returns the failures recorded for one period.
func (l FailureLog) ForPeriod(period string) FailureLog {
	var out FailureLog
	for _, f := range l {
		if f.Period == period {
			out = append(out, f)
		}
	}
	return out
}
