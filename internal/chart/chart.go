// Package chart turns an adjusted-close frame into a rendering-agnostic
// multi-series line chart description.
package chart

import (
	"fmt"

	"SectorCycles/internal/model"
)

const (
	XLabel = "Date"
	YLabel = "Sector ETF price"
)

// Trace is one line in the chart. Y has one entry per shared X value; nil
// entries are gaps.
type Trace struct {
	Name string     `json:"name"`
	Mode string     `json:"mode"`
	Y    []*float64 `json:"y"`
}

// Spec describes a line chart over a shared date axis.
type Spec struct {
	Title  string   `json:"title"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
	X      []string `json:"x"`
	Traces []Trace  `json:"traces"`
}

// Title returns the chart title for a period.
func Title(period string) string {
	return fmt.Sprintf("%s Sector ETF Adjusted Close", period)
}

// Render builds one trace per frame column against the frame's dates.
func Render(frame *model.PriceFrame, title, xLabel, yLabel string) *Spec {
	spec := &Spec{
		Title:  title,
		XLabel: xLabel,
		YLabel: yLabel,
		X:      make([]string, len(frame.Dates)),
		Traces: make([]Trace, 0, len(frame.Columns)),
	}
	for i, d := range frame.Dates {
		spec.X[i] = d.Format(model.DateLayout)
	}
	for ci := range frame.Columns {
		col := &frame.Columns[ci]
		tr := Trace{Name: col.Ticker, Mode: "lines", Y: make([]*float64, len(frame.Dates))}
		for i := range frame.Dates {
			if v, ok := col.At(i); ok {
				tr.Y[i] = &v
			}
		}
		spec.Traces = append(spec.Traces, tr)
	}
	return spec
}

// RenderPeriod renders a frame with the standard title and axis labels.
func RenderPeriod(frame *model.PriceFrame) *Spec {
	return Render(frame, Title(frame.Period), XLabel, YLabel)
}
