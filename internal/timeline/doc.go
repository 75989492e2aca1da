// Package timeline defines the data model shared by the reconciliation
// pipeline: candidate timelines produced by the generation oracle, the
// stitchable snapshot of durable activities, and the reconciliation output
// the engine hands back for persistence.
//
// ARCHITECTURE:
//
// The package is pure data plus validation - no I/O, no clocks, no oracle
// calls. Everything that flows between the orchestrator, the engine, and
// the store is declared here so the layers above agree on one vocabulary.
//
// Candidate timelines are ephemeral. The oracle emits one per aggregation
// window as JSON; DecodeCandidate checks it against an embedded CUE schema
// before any Go code looks at it, then Validate applies the structural
// rules the schema cannot express (event alternation, offset bounds,
// referential integrity). Validation findings are values, never errors:
// the oracle's output is probabilistic and a structural quirk must not
// discard a whole window's generation cost.
//
// ORDERING INVARIANT:
//
// CandidateTimeline.Activities is an ordered slice, not a map. Iteration
// order of activities and events drives the greedy matchers downstream,
// so the decode preserves source order exactly and nothing in this
// package re-sorts it.
package timeline
