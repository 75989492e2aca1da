package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rowanhm/stitch/internal/timeline"
)

// Scenario defines one reconciliation conformance scenario.
// It declares the world before the window, the oracle's proposal for the
// window, and the scripted semantic verdicts the engine will observe.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Window is the reconciliation window under test.
	Window WindowClause `yaml:"window"`

	// PreviousWindowEnd is the end of the last reconciled window,
	// RFC 3339. Empty models the first-ever run.
	PreviousWindowEnd string `yaml:"previous_window_end,omitempty"`

	// Existing lists the durable activities visible at window start.
	Existing []ExistingClause `yaml:"existing,omitempty"`

	// Candidates is the oracle's proposed timeline, in declaration order.
	Candidates []CandidateClause `yaml:"candidates,omitempty"`

	// Merges scripts the semantic oracle. Pairs not listed here get a
	// no-match verdict.
	Merges []MergeClause `yaml:"merges,omitempty"`

	// Params overrides engine tuning knobs. Zero values keep defaults.
	Params ParamsClause `yaml:"params,omitempty"`
}

// WindowClause declares the window as a start instant plus a duration.
type WindowClause struct {
	Start    string `yaml:"start"`
	Duration string `yaml:"duration"`
}

// ExistingClause declares one stitchable activity.
type ExistingClause struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// LatestEvent is the activity's most recent durable boundary event.
	LatestEvent EventRef `yaml:"latest_event"`

	// LastActiveEnd is the continuity anchor for ongoing activities,
	// RFC 3339. Required when latest_event.kind is open.
	LastActiveEnd string `yaml:"last_active_end,omitempty"`
}

// EventRef is a timestamped boundary event reference.
type EventRef struct {
	At   string `yaml:"at"`
	Kind string `yaml:"kind"`
}

// CandidateClause declares one candidate activity and its events.
type CandidateClause struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Events      []CandidateEvent `yaml:"events"`
}

// CandidateEvent is one candidate boundary event with a window-relative
// mm:ss offset.
type CandidateEvent struct {
	Offset string `yaml:"offset"`
	Kind   string `yaml:"kind"`
}

// MergeClause scripts one positive semantic verdict. Existing and
// Candidate are descriptor names; Name and Description form the merged
// descriptor. Delay optionally stalls the verdict to scramble
// completion order.
type MergeClause struct {
	Existing    string `yaml:"existing"`
	Candidate   string `yaml:"candidate"`
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Delay       string `yaml:"delay,omitempty"`
}

// ParamsClause overrides engine parameters.
type ParamsClause struct {
	MaxActivityPause       string `yaml:"max_activity_pause_time,omitempty"`
	UninterruptedThreshold string `yaml:"uninterrupted_threshold,omitempty"`
	LevenshteinThreshold   int    `yaml:"levenshtein_threshold,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos fail loudly instead of silently
// weakening a scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and parseable.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Window.Start == "" {
		return fmt.Errorf("window.start is required")
	}
	if _, err := time.Parse(time.RFC3339, s.Window.Start); err != nil {
		return fmt.Errorf("window.start: %w", err)
	}
	if s.Window.Duration == "" {
		return fmt.Errorf("window.duration is required")
	}
	if _, err := time.ParseDuration(s.Window.Duration); err != nil {
		return fmt.Errorf("window.duration: %w", err)
	}
	if s.PreviousWindowEnd != "" {
		if _, err := time.Parse(time.RFC3339, s.PreviousWindowEnd); err != nil {
			return fmt.Errorf("previous_window_end: %w", err)
		}
	}

	for i, e := range s.Existing {
		if e.ID == "" {
			return fmt.Errorf("existing[%d]: id is required", i)
		}
		if e.Name == "" {
			return fmt.Errorf("existing[%d]: name is required", i)
		}
		if _, err := time.Parse(time.RFC3339, e.LatestEvent.At); err != nil {
			return fmt.Errorf("existing[%d].latest_event.at: %w", i, err)
		}
		kind, err := timeline.ParseEventKind(e.LatestEvent.Kind)
		if err != nil {
			return fmt.Errorf("existing[%d].latest_event.kind: %w", i, err)
		}
		if kind == timeline.EventOpen && e.LastActiveEnd == "" {
			return fmt.Errorf("existing[%d]: last_active_end is required for ongoing activities", i)
		}
		if e.LastActiveEnd != "" {
			if _, err := time.Parse(time.RFC3339, e.LastActiveEnd); err != nil {
				return fmt.Errorf("existing[%d].last_active_end: %w", i, err)
			}
		}
	}

	for i, c := range s.Candidates {
		if c.ID == "" {
			return fmt.Errorf("candidates[%d]: id is required", i)
		}
		if c.Name == "" {
			return fmt.Errorf("candidates[%d]: name is required", i)
		}
		if len(c.Events) == 0 {
			return fmt.Errorf("candidates[%d]: events list is required and must be non-empty", i)
		}
		for j, ev := range c.Events {
			if _, err := timeline.ParseOffset(ev.Offset); err != nil {
				return fmt.Errorf("candidates[%d].events[%d].offset: %w", i, j, err)
			}
			if _, err := timeline.ParseEventKind(ev.Kind); err != nil {
				return fmt.Errorf("candidates[%d].events[%d].kind: %w", i, j, err)
			}
		}
	}

	for i, m := range s.Merges {
		if m.Existing == "" || m.Candidate == "" {
			return fmt.Errorf("merges[%d]: existing and candidate are required", i)
		}
		if m.Name == "" {
			return fmt.Errorf("merges[%d]: name is required", i)
		}
		if m.Delay != "" {
			if _, err := time.ParseDuration(m.Delay); err != nil {
				return fmt.Errorf("merges[%d].delay: %w", i, err)
			}
		}
	}

	if s.Params.MaxActivityPause != "" {
		if _, err := time.ParseDuration(s.Params.MaxActivityPause); err != nil {
			return fmt.Errorf("params.max_activity_pause_time: %w", err)
		}
	}
	if s.Params.UninterruptedThreshold != "" {
		if _, err := time.ParseDuration(s.Params.UninterruptedThreshold); err != nil {
			return fmt.Errorf("params.uninterrupted_threshold: %w", err)
		}
	}
	if s.Params.LevenshteinThreshold < 0 {
		return fmt.Errorf("params.levenshtein_threshold must be non-negative")
	}

	return nil
}
