// Package testutil provides deterministic test doubles for the
// reconciliation pipeline: a scripted merge oracle with controllable
// completion order, and a scripted timeline generator.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/rowanhm/stitch/internal/timeline"
)

// PairKey identifies one (existing, candidate) merge request by the
// names of both descriptors.
type PairKey struct {
	Existing  string
	Candidate string
}

// ScriptedMerger is a Merger test double with predetermined verdicts.
//
// Pairs not present in the script are "no match". Per-call latencies can
// be injected to permute completion order and exercise the engine's
// index-preserved join: identical scripts with different latencies must
// yield identical matchings.
//
// Thread-safety: safe for the engine's concurrent fan-out.
type ScriptedMerger struct {
	mu        sync.Mutex
	verdicts  map[PairKey]timeline.Descriptor
	latencies map[PairKey]time.Duration
	calls     []PairKey
	err       error
}

// NewScriptedMerger creates an empty scripted merger (every pair is a
// non-match until scripted).
func NewScriptedMerger() *ScriptedMerger {
	return &ScriptedMerger{
		verdicts:  make(map[PairKey]timeline.Descriptor),
		latencies: make(map[PairKey]time.Duration),
	}
}

// Match scripts a merged descriptor for a pair of descriptor names.
func (m *ScriptedMerger) Match(existing, candidate string, merged timeline.Descriptor) *ScriptedMerger {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdicts[PairKey{Existing: existing, Candidate: candidate}] = merged
	return m
}

// Delay injects an artificial latency for a pair, shuffling completion
// order relative to request order.
func (m *ScriptedMerger) Delay(existing, candidate string, d time.Duration) *ScriptedMerger {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies[PairKey{Existing: existing, Candidate: candidate}] = d
	return m
}

// Fail makes every subsequent call return err.
func (m *ScriptedMerger) Fail(err error) *ScriptedMerger {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// MatchPair implements the stitch.Merger interface.
func (m *ScriptedMerger) MatchPair(ctx context.Context, existing, candidate timeline.Descriptor) (*timeline.Descriptor, error) {
	key := PairKey{Existing: existing.Name, Candidate: candidate.Name}

	m.mu.Lock()
	err := m.err
	delay := m.latencies[key]
	verdict, matched := m.verdicts[key]
	m.calls = append(m.calls, key)
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if !matched {
		return nil, nil
	}
	v := verdict
	return &v, nil
}

// Calls returns every pair requested so far, in request-arrival order.
// The order is nondeterministic under concurrent fan-out; use it for
// membership assertions, not sequence assertions.
func (m *ScriptedMerger) Calls() []PairKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PairKey, len(m.calls))
	copy(out, m.calls)
	return out
}

// FixedGenerator is a timeline generation oracle that always returns the
// same candidate timeline, regardless of input events.
type FixedGenerator struct {
	Timeline timeline.CandidateTimeline
}

// GenerateTimeline implements the oracle.Generator interface.
func (g *FixedGenerator) GenerateTimeline(ctx context.Context, events []timeline.SensorEvent, window timeline.TimeSpan) (timeline.CandidateTimeline, error) {
	return g.Timeline, nil
}
