package stitch

import (
	"log/slog"
	"sort"
	"time"

	"github.com/rowanhm/stitch/internal/timeline"
)

// DefaultUninterruptedThreshold is the pause below which a stitched
// continuation is treated as seamless: the candidate's leading open event
// is dropped and no boundary is recorded.
const DefaultUninterruptedThreshold = 30 * time.Second

// Assemble turns accepted matches (and non-matches) into the concrete
// events and metadata updates that keep each logical activity a single
// growing record.
//
// previousWindowEnd is the continuity boundary: the end of the last
// window that was fully reconciled. When it is nil (first-ever run) there
// is no deterministic boundary to judge continuity against, so Assemble
// returns an all-empty output and logs a warning.
//
// Per stitchable activity:
//
//   - Unmatched and ongoing: nothing continued it, so it is deemed to
//     have ended at the last confirmed boundary - a close event at
//     previousWindowEnd.
//   - Unmatched and already closed: no output at all.
//   - Matched: a metadata update is always queued (the semantic merge
//     descriptor if the pair was resolved by the oracle, otherwise the
//     activity's own unchanged descriptor - programmatic matches are
//     judged already near-identical). For ongoing activities the gap
//     between previousWindowEnd and the candidate's first event decides
//     the shape: above uninterruptedThreshold the candidate's leading
//     open survives as an explicit re-open; at or below it the leading
//     open is dropped entirely and the continuation is seamless. The
//     remaining candidate events are re-timestamped from window-relative
//     offsets to absolute time and appended under the existing id.
//     Recently closed activities get no gap handling: all candidate
//     events are appended as-is.
//
// Each llm id is assembled at most once even if several existing
// activities reference it through the match maps; later references are
// skipped (CP-3 guard against overlapping merge maps).
func Assemble(
	stitchables []timeline.StitchableActivity,
	matches map[string]string,
	mergedDescriptors map[string]timeline.Descriptor,
	tl timeline.CandidateTimeline,
	window timeline.TimeSpan,
	previousWindowEnd *time.Time,
	uninterruptedThreshold time.Duration,
	logger *slog.Logger,
) timeline.ReconciliationOutput {
	var out timeline.ReconciliationOutput

	if previousWindowEnd == nil {
		logger.Warn("no previous window boundary: skipping reconciliation output for first run")
		return out
	}
	boundary := *previousWindowEnd

	assembled := make(map[string]bool, len(matches))

	for _, s := range stitchables {
		llmID, matched := matches[s.ID]

		if !matched {
			if s.Ongoing() {
				out.ClosureEvents = append(out.ClosureEvents, timeline.StitchedEvent{
					ActivityID: s.ID,
					Timestamp:  boundary,
					Kind:       timeline.EventClose,
				})
				logger.Debug("closing unmatched ongoing activity",
					"activity_id", s.ID, "name", s.Name, "at", boundary)
			}
			continue
		}

		if assembled[llmID] {
			logger.Warn("candidate already assembled, skipping duplicate reference",
				"llm_id", llmID, "activity_id", s.ID)
			continue
		}
		assembled[llmID] = true

		descriptor := timeline.Descriptor{Name: s.Name, Description: s.Description}
		if merged, ok := mergedDescriptors[llmID]; ok {
			descriptor = merged
		}
		out.MetadataUpdates = append(out.MetadataUpdates, timeline.MetadataUpdate{
			ActivityID: s.ID,
			Descriptor: descriptor,
		})

		events := eventsByOffset(tl.EventsFor(llmID))
		if len(events) == 0 {
			continue
		}
		firstTime := window.Start.Add(events[0].Offset)

		if s.Ongoing() {
			pause := firstTime.Sub(boundary)
			if pause <= uninterruptedThreshold {
				// Seamless continuation: the leading open is never recorded.
				events = events[1:]
				logger.Debug("seamless continuation",
					"activity_id", s.ID, "llm_id", llmID, "pause", pause)
			} else {
				logger.Debug("gap continuation, re-opening",
					"activity_id", s.ID, "llm_id", llmID, "pause", pause, "open_at", firstTime)
			}
		}

		for _, e := range events {
			out.StitchedEvents = append(out.StitchedEvents, timeline.StitchedEvent{
				ActivityID: s.ID,
				Timestamp:  window.Start.Add(e.Offset),
				Kind:       e.Kind,
			})
		}
	}

	return out
}

// CollectNewActivities returns the candidates nothing claimed, with their
// events re-timestamped to absolute time. These start fresh durable
// records. Candidate declaration order is preserved.
func CollectNewActivities(
	tl timeline.CandidateTimeline,
	matches map[string]string,
	window timeline.TimeSpan,
) []timeline.NewActivity {
	claimed := make(map[string]bool, len(matches))
	for _, llmID := range matches {
		claimed[llmID] = true
	}

	var fresh []timeline.NewActivity
	for _, a := range tl.Activities {
		if claimed[a.LLMID] {
			continue
		}
		events := eventsByOffset(tl.EventsFor(a.LLMID))
		if len(events) == 0 {
			continue
		}
		na := timeline.NewActivity{Descriptor: a.Descriptor()}
		for _, e := range events {
			na.Events = append(na.Events, timeline.StitchedEvent{
				Timestamp: window.Start.Add(e.Offset),
				Kind:      e.Kind,
			})
		}
		fresh = append(fresh, na)
	}

	return fresh
}

// eventsByOffset orders candidate events by offset (stable), matching the
// validator's view of per-activity event sequence.
func eventsByOffset(events []timeline.CandidateEvent) []timeline.CandidateEvent {
	out := make([]timeline.CandidateEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Offset < out[j].Offset
	})
	return out
}
