package timeline

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// wireTimeline mirrors the oracle's JSON layout. Offsets and event kinds
// stay as strings here; conversion to typed values happens after the CUE
// schema has accepted the document.
type wireTimeline struct {
	Activities []wireActivity `json:"activities"`
	Events     []wireEvent    `json:"events"`
}

type wireActivity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type wireEvent struct {
	Activity string `json:"activity"`
	Offset   string `json:"offset"`
	Type     string `json:"type"`
}

// DecodeCandidate parses and schema-checks a generation-oracle timeline.
//
// A document that fails here is unusable (malformed JSON, wrong shape,
// unparseable offset) and is reported as a hard error. Structural rules a
// well-formed document may still break - dangling activity references,
// non-alternating events, out-of-window offsets - are the soft-fail
// domain of Validate, not of this function.
//
// Source order of activities and events is preserved exactly.
func DecodeCandidate(data []byte) (CandidateTimeline, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return CandidateTimeline{}, fmt.Errorf("compile timeline schema: %w", err)
	}

	if err := cuejson.Validate(data, schema); err != nil {
		return CandidateTimeline{}, fmt.Errorf("timeline rejected by schema: %w", err)
	}

	var wire wireTimeline
	if err := json.Unmarshal(data, &wire); err != nil {
		return CandidateTimeline{}, fmt.Errorf("decode timeline: %w", err)
	}

	tl := CandidateTimeline{
		Activities: make([]CandidateActivity, 0, len(wire.Activities)),
		Events:     make([]CandidateEvent, 0, len(wire.Events)),
	}

	for _, a := range wire.Activities {
		tl.Activities = append(tl.Activities, CandidateActivity{
			LLMID:       a.ID,
			Name:        a.Name,
			Description: a.Description,
		})
	}

	for i, e := range wire.Events {
		offset, err := ParseOffset(e.Offset)
		if err != nil {
			return CandidateTimeline{}, fmt.Errorf("event[%d]: %w", i, err)
		}
		kind, err := ParseEventKind(e.Type)
		if err != nil {
			return CandidateTimeline{}, fmt.Errorf("event[%d]: %w", i, err)
		}
		tl.Events = append(tl.Events, CandidateEvent{
			ActivityID: e.Activity,
			Offset:     offset,
			Kind:       kind,
		})
	}

	return tl, nil
}
