package stitch

import (
	"log/slog"

	"github.com/rowanhm/stitch/internal/timeline"
)

// DefaultLevenshteinThreshold is the maximum spaceless edit distance at
// which two names are still considered the same activity.
const DefaultLevenshteinThreshold = 2

// MatchProgrammatically runs the fast deterministic text-similarity pass.
//
// For each stitchable activity (snapshot order) it scans that activity's
// plausible candidates (pre-filter order) and claims the FIRST candidate
// that satisfies the rule, then stops scanning for that stitchable. Both
// sides of a claimed pair are excluded from further matching, so the
// result is injective in both directions (CP-3).
//
// Match rule, first hit wins:
//  1. normalized names equal
//  2. spaceless Levenshtein distance between names <= threshold
//  3. normalized descriptions equal
//
// This is greedy and order-dependent by design (CP-1): a global
// best-score assignment would be a behavior change, not an improvement.
func MatchProgrammatically(
	stitchables []timeline.StitchableActivity,
	tl timeline.CandidateTimeline,
	potential []PotentialMatch,
	threshold int,
	logger *slog.Logger,
) map[string]string {
	byID := make(map[string]timeline.StitchableActivity, len(stitchables))
	for _, s := range stitchables {
		byID[s.ID] = s
	}

	matched := make(map[string]string)
	claimed := make(map[string]bool)

	for _, pm := range potential {
		existing, ok := byID[pm.ExistingID]
		if !ok {
			panic("stitch: potential match for unknown stitchable " + pm.ExistingID)
		}

		for _, llmID := range pm.Candidates {
			if claimed[llmID] {
				continue
			}
			candidate, ok := tl.Activity(llmID)
			if !ok {
				continue
			}
			if !textuallySimilar(existing, candidate, threshold) {
				continue
			}

			matched[existing.ID] = llmID
			claimed[llmID] = true
			logger.Debug("programmatic match",
				"existing_id", existing.ID,
				"existing_name", existing.Name,
				"llm_id", llmID,
				"candidate_name", candidate.Name)
			break
		}
	}

	return matched
}

// textuallySimilar applies the three-step similarity rule in order.
func textuallySimilar(existing timeline.StitchableActivity, candidate timeline.CandidateActivity, threshold int) bool {
	existingName := Normalize(existing.Name)
	candidateName := Normalize(candidate.Name)

	if existingName == candidateName {
		return true
	}
	if levenshtein(stripSpaces(existingName), stripSpaces(candidateName)) <= threshold {
		return true
	}

	// Literal equality: two empty descriptions are equal and match.
	return Normalize(existing.Description) == Normalize(candidate.Description)
}
