// Package stitch implements the timeline reconciliation engine.
//
// Once per aggregation window the generation oracle proposes a candidate
// timeline: a set of activities with open/close events at window-relative
// offsets. The engine decides, for every durable activity that was open
// or recently active, whether one of the candidates continues it. A
// continued activity keeps growing as a single record; anything else is
// closed at the last confirmed boundary or started fresh.
//
// PIPELINE:
//
// Data flows strictly top to bottom:
//
//  1. timeline.Validate          - structural soft-fail check (logged only)
//  2. FindPotentialMatches       - temporal plausibility per pause tolerance
//  3. MatchProgrammatically      - deterministic name/description similarity
//  4. MatchSemantically          - concurrent merge-oracle fallback
//  5. Assemble                   - events + metadata deltas for the caller
//
// The engine holds no state across invocations. Each call receives a
// frozen stitchable snapshot and a frozen candidate timeline and returns
// a pure ReconciliationOutput; the caller owns persistence.
//
// CRITICAL PATTERNS:
//
// CP-1: Order-Dependent Greedy Matching
// The programmatic matcher is first-hit greedy over (stitchable order x
// pre-filter candidate order). This is deliberate: reproducibility comes
// from preserving input order, not from a global best-score assignment.
// Nothing in this package may re-sort the inputs.
//
// CP-2: Index-Preserved Concurrent Join
// The semantic phase fans out every pair check to the merge oracle at
// once and joins on all of them. Results are written into a pre-sized
// slice by request index and applied strictly in request order, so the
// final matching is identical regardless of oracle completion order.
// This is the single most important correctness property of the package.
//
// CP-3: Two-Way Injectivity
// No existing activity and no candidate llm id is ever matched twice.
// Claimed-id sets are threaded through both matching phases.
package stitch
