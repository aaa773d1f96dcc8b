package notifier

import (
	"fmt"
	"html"
	"strings"

	"SectorCycles/internal/model"
)

// FormatRunSummary describes a finished refresh: row counts per period and
// how many pairs failed.
func FormatRunSummary(s *model.Snapshot) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>Sector cycles refreshed</b> | %s\n", s.BuiltAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Provider: %s | %d tickers × %d periods\n\n", s.Provider, len(s.Tickers), len(s.Periods)))

	for _, p := range s.Periods {
		rows := 0
		if f, ok := s.Tables[p.Name]; ok {
			rows = len(f.Dates)
		}
		failed := len(s.Failures.ForPeriod(p.Name))
		b.WriteString(fmt.Sprintf("  %s: %d rows, %d/%d tickers", p.Name, rows, len(s.Tickers)-failed, len(s.Tickers)))
		if failed > 0 {
			b.WriteString(" ⚠️")
		}
		b.WriteString("\n")
	}

	if len(s.Failures) == 0 {
		b.WriteString("\nAll fetches succeeded ✅")
	} else {
		b.WriteString(fmt.Sprintf("\n%d fetches failed, send /failures for details", len(s.Failures)))
	}
	return b.String()
}

// FormatFailures lists failed pairs in the order they were recorded.
func FormatFailures(failures model.FailureLog) string {
	if len(failures) == 0 {
		return "No failed fetches ✅"
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⚠️ <b>Failed fetches</b> (%d)\n\n", len(failures)))
	for _, f := range failures {
		b.WriteString(fmt.Sprintf("  %s / %s", f.Period, f.Ticker))
		if r := f.Reason(); r != "" {
			b.WriteString(": " + html.EscapeString(r))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatPeriodSummary shows the first and latest adjusted close of every
// column in a frame.
func FormatPeriodSummary(p model.Period, frame *model.PriceFrame) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>%s</b> | %s → %s\n\n", p.Name, p.Start.Format(model.DateLayout), p.End.Format(model.DateLayout)))

	if frame == nil || len(frame.Columns) == 0 {
		b.WriteString("No data for this period")
		return b.String()
	}
	for i := range frame.Columns {
		c := &frame.Columns[i]
		last, ok := c.Last()
		if !ok {
			b.WriteString(fmt.Sprintf("  %s: n/a\n", c.Ticker))
			continue
		}
		first, _ := firstValue(c)
		b.WriteString(fmt.Sprintf("  %s: %.2f → %.2f\n", c.Ticker, first, last))
	}
	return b.String()
}

func firstValue(c *model.Column) (float64, bool) {
	for i := range c.Values {
		if v, ok := c.At(i); ok {
			return v, true
		}
	}
	return 0, false
}
