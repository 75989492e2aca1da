package stitch

import (
	"context"
	"log/slog"
	"time"

	"github.com/rowanhm/stitch/internal/timeline"
)

// DefaultMaxActivityPause is the global pause tolerance: the largest gap
// between an activity's anchor and a candidate's first event at which
// stitching is still considered.
const DefaultMaxActivityPause = 5 * time.Minute

// Params configures one engine instance. Zero values are replaced with
// the package defaults by New.
type Params struct {
	// MaxActivityPause is the pause tolerance for the temporal pre-filter.
	MaxActivityPause time.Duration

	// UninterruptedThreshold is the gap below which an ongoing match is a
	// seamless continuation (no re-open recorded).
	UninterruptedThreshold time.Duration

	// LevenshteinThreshold is the maximum spaceless edit distance for the
	// programmatic name match.
	LevenshteinThreshold int
}

// Engine runs the full reconciliation pipeline for one window. It is
// stateless across invocations; the only external collaborator is the
// semantic merge oracle.
type Engine struct {
	merger Merger
	params Params
	logger *slog.Logger
}

// New creates an Engine. merger must not be nil; nil logger falls back
// to slog.Default().
func New(merger Merger, params Params, logger *slog.Logger) *Engine {
	if merger == nil {
		panic("stitch: nil merger")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if params.MaxActivityPause <= 0 {
		params.MaxActivityPause = DefaultMaxActivityPause
	}
	if params.UninterruptedThreshold <= 0 {
		params.UninterruptedThreshold = DefaultUninterruptedThreshold
	}
	if params.LevenshteinThreshold <= 0 {
		params.LevenshteinThreshold = DefaultLevenshteinThreshold
	}
	return &Engine{merger: merger, params: params, logger: logger}
}

// Result is the engine's return value: the reconciliation output plus
// every structural violation observed along the way. Violations are
// best-effort observability, never fatal; they are logged by the engine
// and surfaced here for callers that want to report them.
type Result struct {
	Output     timeline.ReconciliationOutput
	Violations []timeline.Violation
}

// Reconcile runs validate -> pre-filter -> programmatic -> semantic ->
// assemble for one window and returns the resulting deltas.
//
// previousWindowEnd is nil on the first-ever run; the output is then
// empty by construction. The only error source is the semantic oracle,
// whose failures propagate unchanged - the caller owns retry policy for
// the whole window.
func (e *Engine) Reconcile(
	ctx context.Context,
	stitchables []timeline.StitchableActivity,
	tl timeline.CandidateTimeline,
	window timeline.TimeSpan,
	previousWindowEnd *time.Time,
) (Result, error) {
	var res Result

	res.Violations = timeline.Validate(tl, window)
	for _, v := range res.Violations {
		e.logger.Warn("candidate timeline violation", "code", v.Code, "detail", v.Message)
	}

	potential := FindPotentialMatches(stitchables, tl, window.Start, e.params.MaxActivityPause)

	matches := MatchProgrammatically(stitchables, tl, potential, e.params.LevenshteinThreshold, e.logger)

	semantic, merged, err := MatchSemantically(ctx, stitchables, tl, potential, matches, e.merger, e.logger)
	if err != nil {
		return Result{}, err
	}
	for existingID, llmID := range semantic {
		matches[existingID] = llmID
	}

	res.Output = Assemble(stitchables, matches, merged, tl, window, previousWindowEnd, e.params.UninterruptedThreshold, e.logger)

	if previousWindowEnd != nil {
		res.Output.NewActivities = CollectNewActivities(tl, matches, window)
		outputViolations := timeline.ValidateOutput(res.Output, stitchables, window, *previousWindowEnd)
		for _, v := range outputViolations {
			e.logger.Warn("reconciliation output violation", "code", v.Code, "detail", v.Message)
		}
		res.Violations = append(res.Violations, outputViolations...)
	}

	e.logger.Info("window reconciled",
		"stitchables", len(stitchables),
		"candidates", len(tl.Activities),
		"matched", len(matches),
		"stitched_events", len(res.Output.StitchedEvents),
		"closures", len(res.Output.ClosureEvents),
		"new_activities", len(res.Output.NewActivities))

	return res, nil
}
