package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rowanhm/stitch/internal/stitch"
	"github.com/rowanhm/stitch/internal/testutil"
	"github.com/rowanhm/stitch/internal/timeline"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Output is the engine's reconciliation output.
	Output timeline.ReconciliationOutput

	// Violations are the structural violations the engine observed.
	Violations []timeline.Violation

	// MergeCalls lists the semantic pairs actually sent to the oracle,
	// in scripted-merger observation order.
	MergeCalls []testutil.PairKey
}

// Run executes a scenario against the real reconciliation engine.
//
// The semantic oracle is a ScriptedMerger populated from the scenario's
// merges section; every other collaborator is the production code path.
// Engine logs are discarded so scenario runs stay quiet under go test.
func Run(scenario *Scenario) (*Result, error) {
	window, previousEnd, err := buildWindow(scenario)
	if err != nil {
		return nil, err
	}

	stitchables, err := buildStitchables(scenario)
	if err != nil {
		return nil, err
	}

	tl, err := buildTimeline(scenario)
	if err != nil {
		return nil, err
	}

	merger, err := buildMerger(scenario)
	if err != nil {
		return nil, err
	}

	params, err := buildParams(scenario)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := stitch.New(merger, params, logger)

	res, err := engine.Reconcile(context.Background(), stitchables, tl, window, previousEnd)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	return &Result{
		Output:     res.Output,
		Violations: res.Violations,
		MergeCalls: merger.Calls(),
	}, nil
}

func buildWindow(scenario *Scenario) (timeline.TimeSpan, *time.Time, error) {
	start, err := time.Parse(time.RFC3339, scenario.Window.Start)
	if err != nil {
		return timeline.TimeSpan{}, nil, fmt.Errorf("window.start: %w", err)
	}
	dur, err := time.ParseDuration(scenario.Window.Duration)
	if err != nil {
		return timeline.TimeSpan{}, nil, fmt.Errorf("window.duration: %w", err)
	}
	window, err := timeline.NewTimeSpan(start, start.Add(dur))
	if err != nil {
		return timeline.TimeSpan{}, nil, err
	}

	var previousEnd *time.Time
	if scenario.PreviousWindowEnd != "" {
		t, err := time.Parse(time.RFC3339, scenario.PreviousWindowEnd)
		if err != nil {
			return timeline.TimeSpan{}, nil, fmt.Errorf("previous_window_end: %w", err)
		}
		previousEnd = &t
	}
	return window, previousEnd, nil
}

func buildStitchables(scenario *Scenario) ([]timeline.StitchableActivity, error) {
	stitchables := make([]timeline.StitchableActivity, 0, len(scenario.Existing))
	for i, e := range scenario.Existing {
		at, err := time.Parse(time.RFC3339, e.LatestEvent.At)
		if err != nil {
			return nil, fmt.Errorf("existing[%d].latest_event.at: %w", i, err)
		}
		kind, err := timeline.ParseEventKind(e.LatestEvent.Kind)
		if err != nil {
			return nil, fmt.Errorf("existing[%d].latest_event.kind: %w", i, err)
		}
		s := timeline.StitchableActivity{
			ID:              e.ID,
			Name:            e.Name,
			Description:     e.Description,
			LatestEventTime: at,
			LatestEventKind: kind,
		}
		if e.LastActiveEnd != "" {
			anchor, err := time.Parse(time.RFC3339, e.LastActiveEnd)
			if err != nil {
				return nil, fmt.Errorf("existing[%d].last_active_end: %w", i, err)
			}
			s.LatestConfirmedActiveEnd = anchor
		}
		stitchables = append(stitchables, s)
	}
	return stitchables, nil
}

func buildTimeline(scenario *Scenario) (timeline.CandidateTimeline, error) {
	var tl timeline.CandidateTimeline
	for i, c := range scenario.Candidates {
		tl.Activities = append(tl.Activities, timeline.CandidateActivity{
			LLMID:       c.ID,
			Name:        c.Name,
			Description: c.Description,
		})
		for j, ev := range c.Events {
			offset, err := timeline.ParseOffset(ev.Offset)
			if err != nil {
				return timeline.CandidateTimeline{}, fmt.Errorf("candidates[%d].events[%d].offset: %w", i, j, err)
			}
			kind, err := timeline.ParseEventKind(ev.Kind)
			if err != nil {
				return timeline.CandidateTimeline{}, fmt.Errorf("candidates[%d].events[%d].kind: %w", i, j, err)
			}
			tl.Events = append(tl.Events, timeline.CandidateEvent{
				ActivityID: c.ID,
				Offset:     offset,
				Kind:       kind,
			})
		}
	}
	return tl, nil
}

func buildMerger(scenario *Scenario) (*testutil.ScriptedMerger, error) {
	merger := testutil.NewScriptedMerger()
	for i, m := range scenario.Merges {
		merger.Match(m.Existing, m.Candidate, timeline.Descriptor{
			Name:        m.Name,
			Description: m.Description,
		})
		if m.Delay != "" {
			d, err := time.ParseDuration(m.Delay)
			if err != nil {
				return nil, fmt.Errorf("merges[%d].delay: %w", i, err)
			}
			merger.Delay(m.Existing, m.Candidate, d)
		}
	}
	return merger, nil
}

func buildParams(scenario *Scenario) (stitch.Params, error) {
	var params stitch.Params
	if scenario.Params.MaxActivityPause != "" {
		d, err := time.ParseDuration(scenario.Params.MaxActivityPause)
		if err != nil {
			return stitch.Params{}, fmt.Errorf("params.max_activity_pause_time: %w", err)
		}
		params.MaxActivityPause = d
	}
	if scenario.Params.UninterruptedThreshold != "" {
		d, err := time.ParseDuration(scenario.Params.UninterruptedThreshold)
		if err != nil {
			return stitch.Params{}, fmt.Errorf("params.uninterrupted_threshold: %w", err)
		}
		params.UninterruptedThreshold = d
	}
	params.LevenshteinThreshold = scenario.Params.LevenshteinThreshold
	return params, nil
}
