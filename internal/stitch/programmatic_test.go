package stitch

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rowanhm/stitch/internal/timeline"
)

// testLogger discards output; pipeline logging is not under test.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func namedTimeline(activities ...timeline.CandidateActivity) timeline.CandidateTimeline {
	var tl timeline.CandidateTimeline
	for _, a := range activities {
		tl.Activities = append(tl.Activities, a)
		tl.Events = append(tl.Events, timeline.CandidateEvent{
			ActivityID: a.LLMID,
			Kind:       timeline.EventOpen,
		})
	}
	return tl
}

func potentialFor(existingID string, llmIDs ...string) []PotentialMatch {
	return []PotentialMatch{{ExistingID: existingID, Candidates: llmIDs}}
}

func TestMatchProgrammatically_NormalizedNameEqual(t *testing.T) {
	stitchables := []timeline.StitchableActivity{makeOngoing("act-1", "Brew Coffee")}
	tl := namedTimeline(timeline.CandidateActivity{LLMID: "a", Name: "brew-coffee"})

	got := MatchProgrammatically(stitchables, tl, potentialFor("act-1", "a"), DefaultLevenshteinThreshold, testLogger())

	assert.Equal(t, map[string]string{"act-1": "a"}, got)
}

func TestMatchProgrammatically_LevenshteinWithinThreshold(t *testing.T) {
	stitchables := []timeline.StitchableActivity{makeOngoing("act-1", "checking emails")}
	tl := namedTimeline(timeline.CandidateActivity{LLMID: "a", Name: "checking email"})

	got := MatchProgrammatically(stitchables, tl, potentialFor("act-1", "a"), 2, testLogger())

	assert.Equal(t, map[string]string{"act-1": "a"}, got)
}

func TestMatchProgrammatically_LevenshteinBeyondThreshold(t *testing.T) {
	s := makeOngoing("act-1", "checking emails")
	s.Description = "Going through the inbox"
	tl := namedTimeline(timeline.CandidateActivity{
		LLMID:       "a",
		Name:        "cooking dinner",
		Description: "Preparing pasta",
	})

	got := MatchProgrammatically([]timeline.StitchableActivity{s}, tl, potentialFor("act-1", "a"), 2, testLogger())

	assert.Empty(t, got)
}

func TestMatchProgrammatically_LevenshteinBoundary(t *testing.T) {
	// Spaceless distance exactly at the default threshold matches; one
	// past it falls through to the description rule.
	tests := []struct {
		name          string
		candidateName string
		want          map[string]string
	}{
		// "writingreport" -> "writingreportv2" inserts "v2", distance 2.
		{"distance two matches", "writing report v2", map[string]string{"act-1": "a"}},
		// "writingreport" -> "writingreportsv2" inserts "sv2", distance 3.
		{"distance three does not", "writing reports v2", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := makeOngoing("act-1", "writing report")
			s.Description = "Drafting the quarterly summary"
			tl := namedTimeline(timeline.CandidateActivity{
				LLMID:       "a",
				Name:        tt.candidateName,
				Description: "Polishing slides",
			})

			got := MatchProgrammatically([]timeline.StitchableActivity{s}, tl, potentialFor("act-1", "a"), DefaultLevenshteinThreshold, testLogger())

			if tt.want == nil {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMatchProgrammatically_EmptyDescriptionsEqual(t *testing.T) {
	// Rule 3 is literal equality, so two absent descriptions match even
	// when the names share nothing.
	stitchables := []timeline.StitchableActivity{makeOngoing("act-1", "fold laundry")}
	tl := namedTimeline(timeline.CandidateActivity{LLMID: "a", Name: "water the plants"})

	got := MatchProgrammatically(stitchables, tl, potentialFor("act-1", "a"), 2, testLogger())

	assert.Equal(t, map[string]string{"act-1": "a"}, got)
}

func TestMatchProgrammatically_DescriptionFallback(t *testing.T) {
	s := makeOngoing("act-1", "morning routine")
	s.Description = "Making coffee and reading the news"
	tl := namedTimeline(timeline.CandidateActivity{
		LLMID:       "a",
		Name:        "coffee and headlines",
		Description: "making coffee and reading the news",
	})

	got := MatchProgrammatically([]timeline.StitchableActivity{s}, tl, potentialFor("act-1", "a"), 2, testLogger())

	assert.Equal(t, map[string]string{"act-1": "a"}, got)
}

func TestMatchProgrammatically_FirstHitWins(t *testing.T) {
	// Two candidates both satisfy the rule; the first in pre-filter
	// order is claimed and scanning stops.
	stitchables := []timeline.StitchableActivity{makeOngoing("act-1", "brew coffee")}
	tl := namedTimeline(
		timeline.CandidateActivity{LLMID: "first", Name: "brew coffee"},
		timeline.CandidateActivity{LLMID: "second", Name: "brew coffee"},
	)

	got := MatchProgrammatically(stitchables, tl, potentialFor("act-1", "first", "second"), 2, testLogger())

	assert.Equal(t, map[string]string{"act-1": "first"}, got)
}

func TestMatchProgrammatically_ClaimedCandidateSkipped(t *testing.T) {
	// Both stitchables would claim "a"; injectivity forces the second
	// onto the next plausible candidate.
	stitchables := []timeline.StitchableActivity{
		makeOngoing("act-1", "brew coffee"),
		makeOngoing("act-2", "brew coffee"),
	}
	tl := namedTimeline(
		timeline.CandidateActivity{LLMID: "a", Name: "brew coffee"},
		timeline.CandidateActivity{LLMID: "b", Name: "brew coffee"},
	)
	potential := []PotentialMatch{
		{ExistingID: "act-1", Candidates: []string{"a", "b"}},
		{ExistingID: "act-2", Candidates: []string{"a", "b"}},
	}

	got := MatchProgrammatically(stitchables, tl, potential, 2, testLogger())

	assert.Equal(t, map[string]string{"act-1": "a", "act-2": "b"}, got)
}

func TestMatchProgrammatically_InjectiveWhenCandidatesRunOut(t *testing.T) {
	stitchables := []timeline.StitchableActivity{
		makeOngoing("act-1", "brew coffee"),
		makeOngoing("act-2", "brew coffee"),
	}
	tl := namedTimeline(timeline.CandidateActivity{LLMID: "a", Name: "brew coffee"})
	potential := []PotentialMatch{
		{ExistingID: "act-1", Candidates: []string{"a"}},
		{ExistingID: "act-2", Candidates: []string{"a"}},
	}

	got := MatchProgrammatically(stitchables, tl, potential, 2, testLogger())

	assert.Equal(t, map[string]string{"act-1": "a"}, got)
}

func TestMatchProgrammatically_UnknownStitchablePanics(t *testing.T) {
	tl := namedTimeline(timeline.CandidateActivity{LLMID: "a", Name: "brew coffee"})

	assert.Panics(t, func() {
		MatchProgrammatically(nil, tl, potentialFor("ghost", "a"), 2, testLogger())
	})
}
