package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validateWindowStart = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func tenMinuteWindow(t *testing.T) TimeSpan {
	t.Helper()
	w, err := NewTimeSpan(validateWindowStart, validateWindowStart.Add(10*time.Minute))
	require.NoError(t, err)
	return w
}

func codes(violations []Violation) []string {
	var out []string
	for _, v := range violations {
		out = append(out, v.Code)
	}
	return out
}

func TestValidate_CleanTimeline(t *testing.T) {
	tl := CandidateTimeline{
		Activities: []CandidateActivity{
			{LLMID: "a", Name: "brew coffee"},
			{LLMID: "b", Name: "stretch break"},
		},
		Events: []CandidateEvent{
			{ActivityID: "a", Offset: 20 * time.Second, Kind: EventOpen},
			{ActivityID: "a", Offset: 3 * time.Minute, Kind: EventClose},
			{ActivityID: "a", Offset: 5 * time.Minute, Kind: EventOpen},
			{ActivityID: "b", Offset: 6 * time.Minute, Kind: EventOpen},
		},
	}

	assert.Empty(t, Validate(tl, tenMinuteWindow(t)))
}

func TestValidate_EmptyTimeline(t *testing.T) {
	assert.Empty(t, Validate(CandidateTimeline{}, tenMinuteWindow(t)))
}

func TestValidate_OffsetOutsideWindow(t *testing.T) {
	tl := CandidateTimeline{
		Activities: []CandidateActivity{{LLMID: "a", Name: "x"}},
		Events: []CandidateEvent{
			{ActivityID: "a", Offset: 0, Kind: EventOpen},
			{ActivityID: "a", Offset: 12 * time.Minute, Kind: EventClose},
		},
	}

	got := Validate(tl, tenMinuteWindow(t))
	assert.Equal(t, []string{ViolationOffsetOutOfWindow}, codes(got))
}

func TestValidate_OffsetAtWindowEndAllowed(t *testing.T) {
	// An offset equal to the window duration lands exactly on the end
	// boundary and is tolerated.
	tl := CandidateTimeline{
		Activities: []CandidateActivity{{LLMID: "a", Name: "x"}},
		Events: []CandidateEvent{
			{ActivityID: "a", Offset: 0, Kind: EventOpen},
			{ActivityID: "a", Offset: 10 * time.Minute, Kind: EventClose},
		},
	}

	assert.Empty(t, Validate(tl, tenMinuteWindow(t)))
}

func TestValidate_FirstEventNotOpen(t *testing.T) {
	tl := CandidateTimeline{
		Activities: []CandidateActivity{{LLMID: "a", Name: "x"}},
		Events: []CandidateEvent{
			{ActivityID: "a", Offset: time.Minute, Kind: EventClose},
			{ActivityID: "a", Offset: 2 * time.Minute, Kind: EventOpen},
		},
	}

	got := Validate(tl, tenMinuteWindow(t))
	assert.Equal(t, []string{ViolationFirstEventNotOpen}, codes(got))
}

func TestValidate_AlternationJudgedInOffsetOrder(t *testing.T) {
	// Emission order is close-then-open, but offset order is open at
	// 00:30, close at 02:00: no violation.
	tl := CandidateTimeline{
		Activities: []CandidateActivity{{LLMID: "a", Name: "x"}},
		Events: []CandidateEvent{
			{ActivityID: "a", Offset: 2 * time.Minute, Kind: EventClose},
			{ActivityID: "a", Offset: 30 * time.Second, Kind: EventOpen},
		},
	}

	assert.Empty(t, Validate(tl, tenMinuteWindow(t)))
}

func TestValidate_ConsecutiveSameKind(t *testing.T) {
	tl := CandidateTimeline{
		Activities: []CandidateActivity{{LLMID: "a", Name: "x"}},
		Events: []CandidateEvent{
			{ActivityID: "a", Offset: time.Minute, Kind: EventOpen},
			{ActivityID: "a", Offset: 2 * time.Minute, Kind: EventOpen},
		},
	}

	got := Validate(tl, tenMinuteWindow(t))
	assert.Equal(t, []string{ViolationNonAlternating}, codes(got))
}

func TestValidate_UndeclaredActivityReference(t *testing.T) {
	tl := CandidateTimeline{
		Events: []CandidateEvent{
			{ActivityID: "ghost", Offset: time.Minute, Kind: EventOpen},
		},
	}

	got := Validate(tl, tenMinuteWindow(t))
	assert.Equal(t, []string{ViolationUnknownActivity}, codes(got))
}

func TestValidate_ActivityWithoutEvents(t *testing.T) {
	tl := CandidateTimeline{
		Activities: []CandidateActivity{{LLMID: "a", Name: "x"}},
	}

	got := Validate(tl, tenMinuteWindow(t))
	assert.Equal(t, []string{ViolationNoEvents}, codes(got))
}

func TestValidate_DuplicateActivityID(t *testing.T) {
	tl := CandidateTimeline{
		Activities: []CandidateActivity{
			{LLMID: "a", Name: "x"},
			{LLMID: "a", Name: "y"},
		},
		Events: []CandidateEvent{
			{ActivityID: "a", Offset: time.Minute, Kind: EventOpen},
		},
	}

	got := Validate(tl, tenMinuteWindow(t))
	assert.Contains(t, codes(got), ViolationDuplicateActivity)
}

func TestValidate_MultipleFindingsAccumulate(t *testing.T) {
	tl := CandidateTimeline{
		Activities: []CandidateActivity{
			{LLMID: "a", Name: "x"},
			{LLMID: "silent", Name: "y"},
		},
		Events: []CandidateEvent{
			{ActivityID: "a", Offset: 15 * time.Minute, Kind: EventClose},
			{ActivityID: "ghost", Offset: time.Minute, Kind: EventOpen},
		},
	}

	got := codes(Validate(tl, tenMinuteWindow(t)))
	assert.Contains(t, got, ViolationOffsetOutOfWindow)
	assert.Contains(t, got, ViolationUnknownActivity)
	assert.Contains(t, got, ViolationFirstEventNotOpen)
	assert.Contains(t, got, ViolationNoEvents)
}

func TestValidateOutput_Clean(t *testing.T) {
	window := tenMinuteWindow(t)
	stitchables := []StitchableActivity{{ID: "act-1", Name: "brew coffee"}}
	out := ReconciliationOutput{
		StitchedEvents: []StitchedEvent{
			{ActivityID: "act-1", Timestamp: window.Start.Add(3 * time.Minute), Kind: EventClose},
		},
		ClosureEvents: []StitchedEvent{
			{ActivityID: "act-1", Timestamp: window.Start, Kind: EventClose},
		},
		MetadataUpdates: []MetadataUpdate{
			{ActivityID: "act-1", Descriptor: Descriptor{Name: "Brew coffee"}},
		},
	}

	assert.Empty(t, ValidateOutput(out, stitchables, window, window.Start))
}

func TestValidateOutput_StitchedOutsideWindow(t *testing.T) {
	window := tenMinuteWindow(t)
	stitchables := []StitchableActivity{{ID: "act-1", Name: "x"}}
	out := ReconciliationOutput{
		StitchedEvents: []StitchedEvent{
			{ActivityID: "act-1", Timestamp: window.Start.Add(-time.Second), Kind: EventOpen},
		},
	}

	got := ValidateOutput(out, stitchables, window, window.Start)
	assert.Equal(t, []string{ViolationStitchOutOfWindow}, codes(got))
}

func TestValidateOutput_ClosureMayLandOnPreviousBoundary(t *testing.T) {
	window := tenMinuteWindow(t)
	previousEnd := window.Start.Add(-2 * time.Minute)
	stitchables := []StitchableActivity{{ID: "act-1", Name: "x"}}
	out := ReconciliationOutput{
		ClosureEvents: []StitchedEvent{
			{ActivityID: "act-1", Timestamp: previousEnd, Kind: EventClose},
		},
	}

	assert.Empty(t, ValidateOutput(out, stitchables, window, previousEnd))
}

func TestValidateOutput_ClosureBeforePreviousBoundary(t *testing.T) {
	window := tenMinuteWindow(t)
	previousEnd := window.Start
	stitchables := []StitchableActivity{{ID: "act-1", Name: "x"}}
	out := ReconciliationOutput{
		ClosureEvents: []StitchedEvent{
			{ActivityID: "act-1", Timestamp: previousEnd.Add(-time.Second), Kind: EventClose},
		},
	}

	got := ValidateOutput(out, stitchables, window, previousEnd)
	assert.Equal(t, []string{ViolationClosureOutOfWindow}, codes(got))
}

func TestValidateOutput_UnknownActivityReferences(t *testing.T) {
	window := tenMinuteWindow(t)
	out := ReconciliationOutput{
		StitchedEvents: []StitchedEvent{
			{ActivityID: "ghost", Timestamp: window.Start.Add(time.Minute), Kind: EventOpen},
		},
		MetadataUpdates: []MetadataUpdate{
			{ActivityID: "ghost", Descriptor: Descriptor{Name: "x"}},
		},
	}

	got := codes(ValidateOutput(out, nil, window, window.Start))
	assert.Equal(t, []string{ViolationUnknownStitchable, ViolationUnknownStitchable}, got)
}
