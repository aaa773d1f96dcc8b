package server

import (
	"errors"
	"fmt"
	"log"

	"SectorCycles/internal/chart"
	"SectorCycles/internal/model"
)

var (
	// ErrUnknownPeriod means the requested name is not a configured period.
	ErrUnknownPeriod = errors.New("unknown period")
	// ErrLookupMiss means a configured period has no frame in the snapshot.
	// The pipeline always builds one frame per period, so this is a bug.
	ErrLookupMiss = errors.New("period missing from adjusted-close table")
	// ErrNotReady means no snapshot has been published yet.
	ErrNotReady = errors.New("no snapshot published yet")
)

// SnapshotSource exposes the latest published snapshot.
type SnapshotSource interface {
	Current() *model.Snapshot
}

// frame resolves a period name against a snapshot.
func frame(snap *model.Snapshot, period string) (*model.PriceFrame, error) {
	if snap == nil {
		return nil, ErrNotReady
	}
	if _, ok := snap.Period(period); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
	f, ok := snap.Tables[period]
	if !ok || f == nil {
		log.Printf("[ERROR] run %s: period %q has no adjusted-close frame", snap.RunID, period)
		return nil, fmt.Errorf("%w: %q", ErrLookupMiss, period)
	}
	return f, nil
}

// Select returns the chart for a period of the current snapshot. It reads
// shared state only and never fetches.
func Select(src SnapshotSource, period string) (*chart.Spec, error) {
	f, err := frame(src.Current(), period)
	if err != nil {
		return nil, err
	}
	return chart.RenderPeriod(f), nil
}
