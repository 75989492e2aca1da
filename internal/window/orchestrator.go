package window

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rowanhm/stitch/internal/oracle"
	"github.com/rowanhm/stitch/internal/stitch"
	"github.com/rowanhm/stitch/internal/store"
	"github.com/rowanhm/stitch/internal/timeline"
)

// RawRow is one unparsed sensor stream row as ingestion hands it over:
// a millisecond timestamp, the producing source, and an opaque payload.
type RawRow struct {
	TSMillis int64  `json:"ts"`
	Source   string `json:"source"`
	Payload  string `json:"payload"`
}

// Orchestrator runs one reconciliation cycle per aggregation window.
type Orchestrator struct {
	store     *store.Store
	engine    *stitch.Engine
	generator oracle.Generator

	// recentClose is how long after its last close an activity remains
	// stitchable. Matches the engine's pause tolerance: anything older
	// could never pass the temporal pre-filter anyway.
	recentClose time.Duration

	logger *slog.Logger
}

// NewOrchestrator wires the pipeline. All collaborators are required;
// nil logger falls back to slog.Default().
func NewOrchestrator(st *store.Store, engine *stitch.Engine, gen oracle.Generator, recentClose time.Duration, logger *slog.Logger) *Orchestrator {
	if st == nil || engine == nil || gen == nil {
		panic("window: nil collaborator")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:       st,
		engine:      engine,
		generator:   gen,
		recentClose: recentClose,
		logger:      logger,
	}
}

// MapRows converts raw stream rows to typed sensor events for one
// window: rows outside the window or with empty payloads are dropped,
// survivors are ordered by timestamp (stable for ties).
func MapRows(rows []RawRow, window timeline.TimeSpan) []timeline.SensorEvent {
	var events []timeline.SensorEvent
	for _, r := range rows {
		t := time.UnixMilli(r.TSMillis).UTC()
		if !window.Contains(t) || r.Payload == "" {
			continue
		}
		events = append(events, timeline.SensorEvent{
			Timestamp: t,
			Source:    r.Source,
			Payload:   r.Payload,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

// ProcessWindow runs one full cycle: generate, reconcile, persist.
//
// A window with no sensor events is recorded as reconciled without an
// oracle call - the boundary must still advance or the next window
// would close every ongoing activity at a stale timestamp.
func (o *Orchestrator) ProcessWindow(ctx context.Context, rows []RawRow, window timeline.TimeSpan) (stitch.Result, error) {
	events := MapRows(rows, window)
	o.logger.Info("processing window",
		"start", window.Start, "end", window.End,
		"raw_rows", len(rows), "sensor_events", len(events))

	if len(events) == 0 {
		prevEnd, err := o.store.LastWindowEnd(ctx)
		if err != nil {
			return stitch.Result{}, err
		}
		stitchables, err := o.store.Stitchables(ctx, window.Start, o.recentClose)
		if err != nil {
			return stitch.Result{}, err
		}
		res, err := o.engine.Reconcile(ctx, stitchables, timeline.CandidateTimeline{}, window, prevEnd)
		if err != nil {
			return stitch.Result{}, err
		}
		if err := o.store.Apply(ctx, res.Output, window); err != nil {
			return stitch.Result{}, err
		}
		return res, nil
	}

	tl, err := o.generator.GenerateTimeline(ctx, events, window)
	if err != nil {
		return stitch.Result{}, fmt.Errorf("generate timeline: %w", err)
	}

	stitchables, err := o.store.Stitchables(ctx, window.Start, o.recentClose)
	if err != nil {
		return stitch.Result{}, err
	}

	prevEnd, err := o.store.LastWindowEnd(ctx)
	if err != nil {
		return stitch.Result{}, err
	}

	res, err := o.engine.Reconcile(ctx, stitchables, tl, window, prevEnd)
	if err != nil {
		return stitch.Result{}, fmt.Errorf("reconcile window: %w", err)
	}

	if err := o.store.Apply(ctx, res.Output, window); err != nil {
		return stitch.Result{}, fmt.Errorf("persist window: %w", err)
	}

	return res, nil
}
