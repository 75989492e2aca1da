package stitch

import (
	"time"

	"github.com/rowanhm/stitch/internal/timeline"
)

// PotentialMatch lists the candidate llm ids that are temporally
// plausible continuations of one existing activity.
//
// INVARIANT (CP-1): Candidates preserves the candidate timeline's
// declaration order, and the slice of PotentialMatch preserves the
// stitchable snapshot's order. Both orders feed the greedy matchers and
// must not be re-sorted.
type PotentialMatch struct {
	ExistingID string
	Candidates []string
}

// FindPotentialMatches computes, per stitchable activity, which candidate
// activities could plausibly continue it.
//
// A candidate is plausible when its first event's absolute timestamp
// (window start + smallest offset) is no more than maxPause after the
// existing activity's anchor time. Candidates that start before the
// anchor are plausible as well: overlap is the oracle's problem, not a
// temporal exclusion.
//
// Candidates with no events have no first timestamp and are never
// offered. Stitchables with no plausible candidates are omitted from the
// result entirely.
func FindPotentialMatches(
	stitchables []timeline.StitchableActivity,
	tl timeline.CandidateTimeline,
	windowStart time.Time,
	maxPause time.Duration,
) []PotentialMatch {
	firstTimes := candidateFirstTimes(tl, windowStart)

	var matches []PotentialMatch
	for _, s := range stitchables {
		if s.ID == "" {
			panic("stitch: stitchable activity with empty id")
		}
		anchor := s.AnchorTime()

		var candidates []string
		for _, a := range tl.Activities {
			first, ok := firstTimes[a.LLMID]
			if !ok {
				continue
			}
			if first.Sub(anchor) <= maxPause {
				candidates = append(candidates, a.LLMID)
			}
		}
		if len(candidates) > 0 {
			matches = append(matches, PotentialMatch{ExistingID: s.ID, Candidates: candidates})
		}
	}

	return matches
}

// candidateFirstTimes maps each candidate llm id to the absolute
// timestamp of its earliest event. Candidates without events are absent.
func candidateFirstTimes(tl timeline.CandidateTimeline, windowStart time.Time) map[string]time.Time {
	firsts := make(map[string]time.Time, len(tl.Activities))
	seen := make(map[string]bool, len(tl.Activities))
	for _, e := range tl.Events {
		t := windowStart.Add(e.Offset)
		if !seen[e.ActivityID] || t.Before(firsts[e.ActivityID]) {
			firsts[e.ActivityID] = t
			seen[e.ActivityID] = true
		}
	}
	return firsts
}
