package stitch

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/rowanhm/stitch/internal/timeline"
)

// Merger is the external semantic merge oracle. Given two descriptors it
// returns a merged descriptor when they describe the same activity, or
// nil for no match. Implementations must be safe for concurrent calls;
// no ordering contract is assumed on completion.
//
// Implemented by oracle.Gemini (production) and testutil.ScriptedMerger
// (tests).
type Merger interface {
	MatchPair(ctx context.Context, existing, candidate timeline.Descriptor) (*timeline.Descriptor, error)
}

// semanticPair is one (existing, candidate) oracle request. Its position
// in the enumeration slice is its request index; results are applied in
// that order regardless of completion order (CP-2).
type semanticPair struct {
	existingID string
	llmID      string
	existing   timeline.Descriptor
	candidate  timeline.Descriptor
}

// MatchSemantically runs the concurrent oracle-backed fallback pass over
// every still-unmatched (existing, candidate) pair the pre-filter deemed
// plausible.
//
// All pair checks are issued to the oracle at once - single fan-out,
// single join, no streaming. Each result is written into a pre-sized
// slice at its request index. Only after every call has completed are
// results applied, strictly in request order: a merge is accepted only if
// both sides are still unclaimed at that moment. The final matching is
// therefore deterministic under any oracle latency jitter.
//
// Oracle failures abort the whole phase and propagate to the caller,
// which owns retry policy for the entire window. Outstanding calls are
// cancelled cooperatively through the errgroup context.
func MatchSemantically(
	ctx context.Context,
	stitchables []timeline.StitchableActivity,
	tl timeline.CandidateTimeline,
	potential []PotentialMatch,
	alreadyMatched map[string]string,
	merger Merger,
	logger *slog.Logger,
) (map[string]string, map[string]timeline.Descriptor, error) {
	matches := make(map[string]string)
	merged := make(map[string]timeline.Descriptor)

	pairs := enumeratePairs(stitchables, tl, potential, alreadyMatched)
	if len(pairs) == 0 {
		return matches, merged, nil
	}

	logger.Debug("semantic fan-out", "pairs", len(pairs))

	// CP-2: results land at their request index, never appended in
	// completion order.
	results := make([]*timeline.Descriptor, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pairs {
		g.Go(func() error {
			desc, err := merger.MatchPair(gctx, p.existing, p.candidate)
			if err != nil {
				return fmt.Errorf("match pair (%s, %s): %w", p.existingID, p.llmID, err)
			}
			results[i] = desc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	claimedExisting := make(map[string]bool)
	claimedCandidate := make(map[string]bool)
	for i, p := range pairs {
		if results[i] == nil {
			continue
		}
		if claimedExisting[p.existingID] || claimedCandidate[p.llmID] {
			continue
		}
		claimedExisting[p.existingID] = true
		claimedCandidate[p.llmID] = true
		matches[p.existingID] = p.llmID
		merged[p.llmID] = *results[i]
		logger.Info("semantic match",
			"existing_id", p.existingID,
			"llm_id", p.llmID,
			"merged_name", results[i].Name)
	}

	return matches, merged, nil
}

// enumeratePairs builds the ordered request list: for each stitchable in
// snapshot order, each of its plausible candidates in pre-filter order,
// skipping anything the programmatic pass already claimed.
func enumeratePairs(
	stitchables []timeline.StitchableActivity,
	tl timeline.CandidateTimeline,
	potential []PotentialMatch,
	alreadyMatched map[string]string,
) []semanticPair {
	claimedCandidate := make(map[string]bool, len(alreadyMatched))
	for _, llmID := range alreadyMatched {
		claimedCandidate[llmID] = true
	}

	byID := make(map[string]timeline.StitchableActivity, len(stitchables))
	for _, s := range stitchables {
		byID[s.ID] = s
	}

	var pairs []semanticPair
	for _, pm := range potential {
		if _, done := alreadyMatched[pm.ExistingID]; done {
			continue
		}
		existing, ok := byID[pm.ExistingID]
		if !ok {
			continue
		}
		for _, llmID := range pm.Candidates {
			if claimedCandidate[llmID] {
				continue
			}
			candidate, ok := tl.Activity(llmID)
			if !ok {
				continue
			}
			pairs = append(pairs, semanticPair{
				existingID: existing.ID,
				llmID:      llmID,
				existing:   timeline.Descriptor{Name: existing.Name, Description: existing.Description},
				candidate:  candidate.Descriptor(),
			})
		}
	}

	return pairs
}
