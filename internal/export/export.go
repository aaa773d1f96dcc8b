// Package export writes adjusted-close frames as CSV or Parquet downloads.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"SectorCycles/internal/model"
)

// Row is one (date, ticker) cell in long format.
type Row struct {
	Period   string  `parquet:"period" json:"period"`
	Date     string  `parquet:"date" json:"date"`
	Ticker   string  `parquet:"ticker" json:"ticker"`
	AdjClose float64 `parquet:"adj_close" json:"adj_close"`
}

// Rows flattens a frame, skipping invalid cells. Rows are date-major,
// columns in frame order.
func Rows(frame *model.PriceFrame) []Row {
	var rows []Row
	for i, d := range frame.Dates {
		date := d.Format(model.DateLayout)
		for ci := range frame.Columns {
			if v, ok := frame.Columns[ci].At(i); ok {
				rows = append(rows, Row{Period: frame.Period, Date: date, Ticker: frame.Columns[ci].Ticker, AdjClose: v})
			}
		}
	}
	return rows
}

// WriteCSV writes the frame in wide format: a date column followed by one
// column per ticker. Missing cells are empty.
func WriteCSV(w io.Writer, frame *model.PriceFrame) error {
	cw := csv.NewWriter(w)
	header := append([]string{"date"}, frame.Tickers()...)
	if err := cw.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for i, d := range frame.Dates {
		rec[0] = d.Format(model.DateLayout)
		for ci := range frame.Columns {
			rec[ci+1] = ""
			if v, ok := frame.Columns[ci].At(i); ok {
				rec[ci+1] = strconv.FormatFloat(v, 'f', -1, 64)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteParquet writes the frame in long format.
func WriteParquet(w io.Writer, frame *model.PriceFrame) error {
	return parquet.Write(w, Rows(frame))
}
