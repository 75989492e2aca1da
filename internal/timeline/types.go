package timeline

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeSpan is a half-open aggregation window [Start, End).
//
// INVARIANT: End is strictly after Start. Construct via NewTimeSpan to
// enforce this; a zero TimeSpan is invalid.
type TimeSpan struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewTimeSpan creates a TimeSpan, rejecting empty or inverted windows.
func NewTimeSpan(start, end time.Time) (TimeSpan, error) {
	if !end.After(start) {
		return TimeSpan{}, fmt.Errorf("invalid time span: end %v not after start %v", end, start)
	}
	return TimeSpan{Start: start, End: end}, nil
}

// Duration returns the window length.
func (s TimeSpan) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Contains reports whether t falls inside the window. The end boundary is
// included: an event stamped exactly at window end belongs to this window,
// matching how offsets are validated (0 <= offset <= duration).
func (s TimeSpan) Contains(t time.Time) bool {
	return !t.Before(s.Start) && !t.After(s.End)
}

// EventKind distinguishes activity boundary events.
type EventKind int

const (
	// EventOpen marks the start (or resumption) of an activity.
	EventOpen EventKind = iota + 1
	// EventClose marks the end (or pause) of an activity.
	EventClose
)

// String returns the wire name used in oracle JSON and the store.
func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// MarshalJSON serializes the kind as its wire name.
func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON parses the wire name of an event kind.
func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseEventKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseEventKind parses the wire name of an event kind.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "open":
		return EventOpen, nil
	case "close":
		return EventClose, nil
	default:
		return 0, fmt.Errorf("unknown event kind %q", s)
	}
}

// Descriptor is the human-readable identity of an activity: a short name
// and a one-to-two sentence description. The merge oracle consumes and
// produces Descriptors.
type Descriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CandidateActivity is one activity proposed by the generation oracle for
// a single window. LLMID is a token unique only within its timeline; it
// never escapes the reconciliation cycle that consumed it.
type CandidateActivity struct {
	LLMID       string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Descriptor returns the activity's name/description pair.
func (a CandidateActivity) Descriptor() Descriptor {
	return Descriptor{Name: a.Name, Description: a.Description}
}

// CandidateEvent is a boundary event in a candidate timeline. Offset is
// relative to the window start.
type CandidateEvent struct {
	ActivityID string        `json:"activity"`
	Offset     time.Duration `json:"offset"`
	Kind       EventKind     `json:"type"`
}

// CandidateTimeline is the generation oracle's proposal for one window.
// It is ephemeral: decoded, validated, reconciled, then discarded.
//
// INVARIANT: Activities preserves the oracle's declaration order and
// Events preserves emission order. Downstream matching is greedy and
// order-dependent, so neither slice may be re-sorted.
type CandidateTimeline struct {
	Activities []CandidateActivity
	Events     []CandidateEvent
}

// Activity returns the declared activity with the given llm id, or false
// if no such activity exists.
func (t CandidateTimeline) Activity(llmID string) (CandidateActivity, bool) {
	for _, a := range t.Activities {
		if a.LLMID == llmID {
			return a, true
		}
	}
	return CandidateActivity{}, false
}

// EventsFor returns the events referencing llmID, in emission order.
func (t CandidateTimeline) EventsFor(llmID string) []CandidateEvent {
	var out []CandidateEvent
	for _, e := range t.Events {
		if e.ActivityID == llmID {
			out = append(out, e)
		}
	}
	return out
}

// SensorEvent is one raw observation inside a window: a screenshot
// interpretation, an app-usage row, or any other ingested signal. The
// orchestrator feeds these to the generation oracle verbatim; the engine
// never sees them.
type SensorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Payload   string    `json:"payload"`
}

// StitchableActivity is a durable activity that may be continued by the
// current window: either ongoing (latest event is open) or closed recently
// enough that the pause tolerance still admits a continuation.
//
// LatestConfirmedActiveEnd is the continuity anchor for ongoing
// activities: the end of the previous window in which the activity was
// last confirmed active. For recently closed activities the anchor is
// LatestEventTime instead.
type StitchableActivity struct {
	ID                       string
	Name                     string
	Description              string
	LatestEventTime          time.Time
	LatestEventKind          EventKind
	LatestConfirmedActiveEnd time.Time
}

// Ongoing reports whether the activity's latest durable event is an open.
func (s StitchableActivity) Ongoing() bool {
	return s.LatestEventKind == EventOpen
}

// AnchorTime returns the timestamp a candidate's first event is measured
// against when judging continuity.
func (s StitchableActivity) AnchorTime() time.Time {
	if s.Ongoing() {
		return s.LatestConfirmedActiveEnd
	}
	return s.LatestEventTime
}

// StitchedEvent is an absolute-time boundary event destined for an
// existing durable activity.
type StitchedEvent struct {
	ActivityID string    `json:"activity_id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       EventKind `json:"kind"`
}

// MetadataUpdate carries the (possibly merged) descriptor for a matched
// activity. Updates are queued even when the descriptor is unchanged; the
// consumer is expected to treat them as idempotent.
type MetadataUpdate struct {
	ActivityID string     `json:"activity_id"`
	Descriptor Descriptor `json:"descriptor"`
}

// NewActivity is a candidate activity nothing claimed: it starts a fresh
// durable record. Events are already re-timestamped to absolute time.
type NewActivity struct {
	Descriptor Descriptor      `json:"descriptor"`
	Events     []StitchedEvent `json:"events"`
}

// ReconciliationOutput is the engine's sole return value. Ownership
// transfers to the caller, which persists it; the engine holds no state
// across invocations.
type ReconciliationOutput struct {
	// StitchedEvents are candidate events re-homed onto matched existing
	// activities.
	StitchedEvents []StitchedEvent `json:"stitched_events"`

	// ClosureEvents close ongoing activities that nothing continued.
	ClosureEvents []StitchedEvent `json:"closure_events"`

	// MetadataUpdates are descriptor refreshes for matched activities.
	MetadataUpdates []MetadataUpdate `json:"metadata_updates"`

	// NewActivities are unclaimed candidates that start fresh records.
	NewActivities []NewActivity `json:"new_activities"`
}

// Empty reports whether the output carries no work at all.
func (o ReconciliationOutput) Empty() bool {
	return len(o.StitchedEvents) == 0 &&
		len(o.ClosureEvents) == 0 &&
		len(o.MetadataUpdates) == 0 &&
		len(o.NewActivities) == 0
}
