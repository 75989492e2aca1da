// Package harness provides scenario-driven conformance testing for the
// reconciliation engine.
//
// Scenarios are YAML files that declare a reconciliation window, the
// durable activities visible at its start, the candidate timeline the
// oracle proposed, and a script of semantic merge verdicts. The harness
// runs the real engine against a scripted merge oracle and snapshots the
// resulting ReconciliationOutput for golden comparison.
//
// # Scenario Format
//
//	name: seamless_continuation
//	description: "Ongoing activity continued within the pause window"
//	window:
//	  start: 2026-01-10T09:00:00Z
//	  duration: 10m
//	previous_window_end: 2026-01-10T09:00:00Z
//	existing:
//	  - id: act-1
//	    name: Brew coffee
//	    latest_event: { at: 2026-01-10T08:58:00Z, kind: open }
//	    last_active_end: 2026-01-10T09:00:00Z
//	candidates:
//	  - id: a
//	    name: brew coffee
//	    events:
//	      - { offset: "00:20", kind: open }
//	      - { offset: "03:10", kind: close }
//	merges:
//	  - existing: Brew coffee
//	    candidate: make espresso
//	    name: Brew coffee
//	    description: "merged description"
//
// Omitting previous_window_end models the first-ever run, for which the
// engine produces an all-empty output.
//
// # Deterministic Execution
//
// The merge oracle is a testutil.ScriptedMerger: verdicts are keyed by
// descriptor-name pairs and optional per-pair latencies let a scenario
// scramble completion order without changing the output. Snapshots are
// therefore stable across runs and suitable for golden files, which live
// under testdata/golden and are regenerated with:
//
//	go test ./internal/harness -update
package harness
