package timeline

import (
	"fmt"
	"sort"
	"time"
)

// Violation codes (V100-V199).
const (
	// Candidate timeline violations (V100-V109)
	ViolationOffsetOutOfWindow = "V100" // event offset resolves outside the window
	ViolationFirstEventNotOpen = "V101" // first event for an activity is not open
	ViolationNonAlternating    = "V102" // event kinds do not alternate open/close
	ViolationUnknownActivity   = "V103" // event references an undeclared activity
	ViolationNoEvents          = "V104" // declared activity has no events
	ViolationDuplicateActivity = "V105" // llm id declared more than once

	// Reconciliation output violations (V110-V119)
	ViolationStitchOutOfWindow  = "V110" // stitched event timestamp outside the window
	ViolationClosureOutOfWindow = "V111" // closure event timestamp outside the window
	ViolationUnknownStitchable  = "V112" // output references an unknown existing activity
)

// Violation is one structural finding. Violations are observability
// signals, not errors: callers log them and proceed best-effort. The
// generation oracle's output is probabilistic; discarding a whole window
// over a structural quirk would waste the upstream generation cost.
type Violation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s", v.Code, v.Message)
}

// Validate structurally checks a candidate timeline against its window.
// It never fails; it returns every finding (possibly none) as
// human-readable violations.
//
// Checks:
//   - every event offset resolves to an absolute time inside the window
//   - per activity, the first event is open and kinds alternate
//   - every event references a declared activity
//   - every declared activity has at least one event
func Validate(tl CandidateTimeline, window TimeSpan) []Violation {
	var violations []Violation

	declared := make(map[string]bool, len(tl.Activities))
	for _, a := range tl.Activities {
		if declared[a.LLMID] {
			violations = append(violations, Violation{
				Code:    ViolationDuplicateActivity,
				Message: fmt.Sprintf("activity %q declared more than once", a.LLMID),
			})
			continue
		}
		declared[a.LLMID] = true
	}

	maxOffset := window.Duration()
	referenced := make(map[string]bool, len(declared))
	for i, e := range tl.Events {
		if e.Offset < 0 || e.Offset > maxOffset {
			violations = append(violations, Violation{
				Code: ViolationOffsetOutOfWindow,
				Message: fmt.Sprintf("event[%d] for %q: offset %s outside window of %s",
					i, e.ActivityID, FormatOffset(e.Offset), FormatOffset(maxOffset)),
			})
		}
		if !declared[e.ActivityID] {
			violations = append(violations, Violation{
				Code:    ViolationUnknownActivity,
				Message: fmt.Sprintf("event[%d] references undeclared activity %q", i, e.ActivityID),
			})
		}
		referenced[e.ActivityID] = true
	}

	// Alternation is judged per activity with events sorted by offset.
	// Candidate events are validated in offset order, not emission order,
	// because the assembler re-timestamps by offset.
	for _, a := range tl.Activities {
		events := sortedByOffset(tl.EventsFor(a.LLMID))
		if len(events) == 0 {
			violations = append(violations, Violation{
				Code:    ViolationNoEvents,
				Message: fmt.Sprintf("activity %q declares no events", a.LLMID),
			})
			continue
		}
		if events[0].Kind != EventOpen {
			violations = append(violations, Violation{
				Code:    ViolationFirstEventNotOpen,
				Message: fmt.Sprintf("activity %q: first event is %s, want open", a.LLMID, events[0].Kind),
			})
		}
		for i := 1; i < len(events); i++ {
			if events[i].Kind == events[i-1].Kind {
				violations = append(violations, Violation{
					Code: ViolationNonAlternating,
					Message: fmt.Sprintf("activity %q: consecutive %s events at %s and %s",
						a.LLMID, events[i].Kind, FormatOffset(events[i-1].Offset), FormatOffset(events[i].Offset)),
				})
			}
		}
	}

	return violations
}

// ValidateOutput checks post-stitch output: stitched and closure event
// timestamps fall within the window (closures may land on the previous
// window boundary, hence the widened lower bound), and every referenced
// existing-activity id was a known stitchable activity. Same soft-fail
// semantics as Validate.
func ValidateOutput(out ReconciliationOutput, stitchables []StitchableActivity, window TimeSpan, previousWindowEnd time.Time) []Violation {
	var violations []Violation

	known := make(map[string]bool, len(stitchables))
	for _, s := range stitchables {
		known[s.ID] = true
	}

	for _, e := range out.StitchedEvents {
		if !window.Contains(e.Timestamp) {
			violations = append(violations, Violation{
				Code: ViolationStitchOutOfWindow,
				Message: fmt.Sprintf("stitched %s for %q at %v outside window [%v, %v]",
					e.Kind, e.ActivityID, e.Timestamp, window.Start, window.End),
			})
		}
		if !known[e.ActivityID] {
			violations = append(violations, Violation{
				Code:    ViolationUnknownStitchable,
				Message: fmt.Sprintf("stitched event references unknown activity %q", e.ActivityID),
			})
		}
	}

	for _, e := range out.ClosureEvents {
		if e.Timestamp.Before(previousWindowEnd) || e.Timestamp.After(window.End) {
			violations = append(violations, Violation{
				Code: ViolationClosureOutOfWindow,
				Message: fmt.Sprintf("closure for %q at %v outside [%v, %v]",
					e.ActivityID, e.Timestamp, previousWindowEnd, window.End),
			})
		}
		if !known[e.ActivityID] {
			violations = append(violations, Violation{
				Code:    ViolationUnknownStitchable,
				Message: fmt.Sprintf("closure event references unknown activity %q", e.ActivityID),
			})
		}
	}

	for _, u := range out.MetadataUpdates {
		if !known[u.ActivityID] {
			violations = append(violations, Violation{
				Code:    ViolationUnknownStitchable,
				Message: fmt.Sprintf("metadata update references unknown activity %q", u.ActivityID),
			})
		}
	}

	return violations
}

// sortedByOffset returns a copy of events ordered by offset, preserving
// emission order for equal offsets (stable).
func sortedByOffset(events []CandidateEvent) []CandidateEvent {
	out := make([]CandidateEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Offset < out[j].Offset
	})
	return out
}
