package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rowanhm/stitch/internal/timeline"
)

// createTestStore creates a store on a throwaway database file.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testWindowStart = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func testWindow(t *testing.T) timeline.TimeSpan {
	t.Helper()
	w, err := timeline.NewTimeSpan(testWindowStart, testWindowStart.Add(10*time.Minute))
	require.NoError(t, err)
	return w
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	// Schema re-applied without error; the version row is preserved.
	var version int
	require.NoError(t, s2.db.QueryRow("SELECT version FROM schema_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestCreateActivity_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	events := []timeline.StitchedEvent{
		{Timestamp: testWindowStart.Add(20 * time.Second), Kind: timeline.EventOpen},
		{Timestamp: testWindowStart.Add(3 * time.Minute), Kind: timeline.EventClose},
	}
	id, err := s.CreateActivity(ctx, timeline.Descriptor{
		Name:        "Brew coffee",
		Description: "Morning espresso routine",
	}, events, window.End)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.ActivityEvents(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, timeline.EventOpen, got[0].Kind)
	assert.Equal(t, testWindowStart.Add(20*time.Second), got[0].Timestamp)
	assert.Equal(t, timeline.EventClose, got[1].Kind)
}

func TestStitchables_OngoingAlwaysIncluded(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	// Opened an hour ago, never closed.
	_, err := s.CreateActivity(ctx, timeline.Descriptor{Name: "Write report"},
		[]timeline.StitchedEvent{
			{Timestamp: testWindowStart.Add(-time.Hour), Kind: timeline.EventOpen},
		}, window.Start)
	require.NoError(t, err)

	got, err := s.Stitchables(ctx, window.Start, 5*time.Minute)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "Write report", got[0].Name)
	assert.True(t, got[0].Ongoing())
	assert.Equal(t, window.Start, got[0].LatestConfirmedActiveEnd)
}

func TestStitchables_RecentlyClosedIncluded(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	_, err := s.CreateActivity(ctx, timeline.Descriptor{Name: "Fold laundry"},
		[]timeline.StitchedEvent{
			{Timestamp: testWindowStart.Add(-10 * time.Minute), Kind: timeline.EventOpen},
			{Timestamp: testWindowStart.Add(-2 * time.Minute), Kind: timeline.EventClose},
		}, testWindowStart.Add(-2*time.Minute))
	require.NoError(t, err)

	got, err := s.Stitchables(ctx, window.Start, 5*time.Minute)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.False(t, got[0].Ongoing())
	assert.Equal(t, testWindowStart.Add(-2*time.Minute), got[0].LatestEventTime)
}

func TestStitchables_StaleClosedExcluded(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	_, err := s.CreateActivity(ctx, timeline.Descriptor{Name: "Old errand"},
		[]timeline.StitchedEvent{
			{Timestamp: testWindowStart.Add(-time.Hour), Kind: timeline.EventOpen},
			{Timestamp: testWindowStart.Add(-30 * time.Minute), Kind: timeline.EventClose},
		}, testWindowStart.Add(-30*time.Minute))
	require.NoError(t, err)

	got, err := s.Stitchables(ctx, window.Start, 5*time.Minute)
	require.NoError(t, err)

	assert.Empty(t, got)
}

func TestStitchables_LatestEventDecides(t *testing.T) {
	// An activity re-opened after a close is ongoing: only the latest
	// event counts.
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	_, err := s.CreateActivity(ctx, timeline.Descriptor{Name: "On and off"},
		[]timeline.StitchedEvent{
			{Timestamp: testWindowStart.Add(-time.Hour), Kind: timeline.EventOpen},
			{Timestamp: testWindowStart.Add(-50 * time.Minute), Kind: timeline.EventClose},
			{Timestamp: testWindowStart.Add(-40 * time.Minute), Kind: timeline.EventOpen},
		}, window.Start)
	require.NoError(t, err)

	got, err := s.Stitchables(ctx, window.Start, 5*time.Minute)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.True(t, got[0].Ongoing())
}

func TestStitchables_SnapshotOrderIsCreationOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	names := []string{"zebra", "apple", "mango"}
	for _, name := range names {
		_, err := s.CreateActivity(ctx, timeline.Descriptor{Name: name},
			[]timeline.StitchedEvent{
				{Timestamp: testWindowStart.Add(-time.Minute), Kind: timeline.EventOpen},
			}, window.Start)
		require.NoError(t, err)
	}

	got, err := s.Stitchables(ctx, window.Start, 5*time.Minute)
	require.NoError(t, err)

	require.Len(t, got, 3)
	for i, name := range names {
		assert.Equal(t, name, got[i].Name, "creation order, not name order")
	}
}

func TestLastWindowEnd_FirstRun(t *testing.T) {
	s := createTestStore(t)

	end, err := s.LastWindowEnd(context.Background())
	require.NoError(t, err)
	assert.Nil(t, end)
}

func TestApply_FullOutput(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	ongoingID, err := s.CreateActivity(ctx, timeline.Descriptor{Name: "Brew coffee"},
		[]timeline.StitchedEvent{
			{Timestamp: testWindowStart.Add(-2 * time.Minute), Kind: timeline.EventOpen},
		}, window.Start)
	require.NoError(t, err)

	abandonedID, err := s.CreateActivity(ctx, timeline.Descriptor{Name: "Fold laundry"},
		[]timeline.StitchedEvent{
			{Timestamp: testWindowStart.Add(-5 * time.Minute), Kind: timeline.EventOpen},
		}, window.Start)
	require.NoError(t, err)

	out := timeline.ReconciliationOutput{
		StitchedEvents: []timeline.StitchedEvent{
			{ActivityID: ongoingID, Timestamp: testWindowStart.Add(3 * time.Minute), Kind: timeline.EventClose},
		},
		ClosureEvents: []timeline.StitchedEvent{
			{ActivityID: abandonedID, Timestamp: window.Start, Kind: timeline.EventClose},
		},
		MetadataUpdates: []timeline.MetadataUpdate{
			{ActivityID: ongoingID, Descriptor: timeline.Descriptor{
				Name:        "Brew morning coffee",
				Description: "Espresso routine",
			}},
		},
		NewActivities: []timeline.NewActivity{
			{
				Descriptor: timeline.Descriptor{Name: "Stretch break"},
				Events: []timeline.StitchedEvent{
					{Timestamp: testWindowStart.Add(6 * time.Minute), Kind: timeline.EventOpen},
					{Timestamp: testWindowStart.Add(8 * time.Minute), Kind: timeline.EventClose},
				},
			},
		},
	}

	require.NoError(t, s.Apply(ctx, out, window))

	// Stitched close landed on the ongoing activity.
	events, err := s.ActivityEvents(ctx, ongoingID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, timeline.EventClose, events[1].Kind)

	// Closure landed on the abandoned activity.
	events, err = s.ActivityEvents(ctx, abandonedID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, window.Start, events[1].Timestamp)

	// Boundary advanced.
	end, err := s.LastWindowEnd(ctx)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, window.End, *end)

	// Metadata update renamed and re-anchored the matched activity.
	var name string
	var lastActiveEnd int64
	require.NoError(t, s.db.QueryRow(
		"SELECT name, last_active_end FROM activities WHERE id = ?", ongoingID).
		Scan(&name, &lastActiveEnd))
	assert.Equal(t, "Brew morning coffee", name)
	assert.Equal(t, millis(window.End), lastActiveEnd)

	// The new activity closed recently enough to stay stitchable.
	stitchables, err := s.Stitchables(ctx, window.End, 5*time.Minute)
	require.NoError(t, err)
	var names []string
	for _, sa := range stitchables {
		names = append(names, sa.Name)
	}
	assert.Contains(t, names, "Stretch break")
}

func TestApply_EmptyOutputStillAdvancesBoundary(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	require.NoError(t, s.Apply(ctx, timeline.ReconciliationOutput{}, window))

	end, err := s.LastWindowEnd(ctx)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, window.End, *end)
}

func TestApply_UnknownMetadataTargetRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	out := timeline.ReconciliationOutput{
		MetadataUpdates: []timeline.MetadataUpdate{
			{ActivityID: "ghost", Descriptor: timeline.Descriptor{Name: "x"}},
		},
	}

	require.Error(t, s.Apply(ctx, out, window))

	// Nothing committed: the boundary did not advance.
	end, err := s.LastWindowEnd(ctx)
	require.NoError(t, err)
	assert.Nil(t, end)
}

func TestApply_EventForUnknownActivityRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	window := testWindow(t)

	out := timeline.ReconciliationOutput{
		StitchedEvents: []timeline.StitchedEvent{
			{ActivityID: "ghost", Timestamp: window.Start, Kind: timeline.EventClose},
		},
	}

	// Foreign key enforcement rejects the dangling reference.
	require.Error(t, s.Apply(ctx, out, window))

	end, err := s.LastWindowEnd(ctx)
	require.NoError(t, err)
	assert.Nil(t, end)
}

func TestLastWindowEnd_MaxOfSeveral(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	w1, err := timeline.NewTimeSpan(testWindowStart, testWindowStart.Add(10*time.Minute))
	require.NoError(t, err)
	w2, err := timeline.NewTimeSpan(w1.End, w1.End.Add(10*time.Minute))
	require.NoError(t, err)

	require.NoError(t, s.Apply(ctx, timeline.ReconciliationOutput{}, w1))
	require.NoError(t, s.Apply(ctx, timeline.ReconciliationOutput{}, w2))

	end, err := s.LastWindowEnd(ctx)
	require.NoError(t, err)
	require.NotNil(t, end)
	assert.Equal(t, w2.End, *end)
}
