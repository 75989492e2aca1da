package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/rowanhm/stitch/internal/timeline"
)

// Snapshot captures a scenario execution for golden comparison. Field
// order is fixed so marshaled output is byte-stable across runs.
type Snapshot struct {
	ScenarioName    string                    `json:"scenario_name"`
	Violations      []string                  `json:"violations"`
	StitchedEvents  []timeline.StitchedEvent  `json:"stitched_events"`
	ClosureEvents   []timeline.StitchedEvent  `json:"closure_events"`
	MetadataUpdates []timeline.MetadataUpdate `json:"metadata_updates"`
	NewActivities   []timeline.NewActivity    `json:"new_activities"`
}

// snapshotOf normalizes a result into a Snapshot. Nil slices become
// empty so goldens always render [] rather than null.
func snapshotOf(name string, result *Result) Snapshot {
	snapshot := Snapshot{
		ScenarioName:    name,
		Violations:      []string{},
		StitchedEvents:  []timeline.StitchedEvent{},
		ClosureEvents:   []timeline.StitchedEvent{},
		MetadataUpdates: []timeline.MetadataUpdate{},
		NewActivities:   []timeline.NewActivity{},
	}
	for _, v := range result.Violations {
		snapshot.Violations = append(snapshot.Violations, v.String())
	}
	snapshot.StitchedEvents = append(snapshot.StitchedEvents, result.Output.StitchedEvents...)
	snapshot.ClosureEvents = append(snapshot.ClosureEvents, result.Output.ClosureEvents...)
	snapshot.MetadataUpdates = append(snapshot.MetadataUpdates, result.Output.MetadataUpdates...)
	snapshot.NewActivities = append(snapshot.NewActivities, result.Output.NewActivities...)
	return snapshot
}

// RunWithGolden executes a scenario and compares the output snapshot
// against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result against the golden
// file for scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := json.MarshalIndent(snapshotOf(scenarioName, result), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
