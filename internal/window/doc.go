// Package window glues the reconciliation pipeline to one aggregation
// window: it maps raw sensor stream rows to typed events, asks the
// generation oracle for a candidate timeline, runs the stitch engine
// against the durable snapshot, and applies the resulting deltas to the
// store.
//
// The orchestrator is the only caller-facing entry point of the
// pipeline. Windows are processed strictly one at a time: the catch-up
// queue is a single-writer FIFO loop, so window N+1 always sees the
// boundary window N committed. An oracle failure aborts the run and
// leaves the store untouched for that window; the caller owns retries.
package window
