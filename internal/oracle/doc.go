// Package oracle holds the LLM-backed collaborators of the
// reconciliation pipeline: the timeline generation oracle that proposes
// a candidate timeline from raw sensor events, and the semantic merge
// oracle that judges whether two activity descriptors describe the same
// activity.
//
// Both are thin clients over the Gemini API. The engine treats them as
// black boxes: no retries, no backoff, no partial consumption - failures
// propagate unchanged to the caller, which owns retry policy for the
// whole aggregation window. Merge calls must be safe to issue
// concurrently; Gemini satisfies this with a stateless client.
package oracle
