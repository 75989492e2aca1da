package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rowanhm/stitch/internal/timeline"
)

// Stitchables returns the frozen snapshot of activities the engine may
// stitch onto: every activity that is ongoing (latest event is open) or
// whose latest event is no older than recentWindow before now.
//
// CP-4: Snapshot order is ORDER BY created_at ASC, id ASC COLLATE BINARY.
// The order feeds greedy matching downstream and must be stable.
func (s *Store) Stitchables(ctx context.Context, now time.Time, recentWindow time.Duration) ([]timeline.StitchableActivity, error) {
	cutoff := millis(now.Add(-recentWindow))

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.description, a.last_active_end, e.ts, e.kind
		FROM activities a
		JOIN events e ON e.activity_id = a.id
		WHERE e.id = (
			SELECT e2.id FROM events e2
			WHERE e2.activity_id = a.id
			ORDER BY e2.ts DESC, e2.id COLLATE BINARY DESC
			LIMIT 1
		)
		AND (e.kind = 'open' OR e.ts >= ?)
		ORDER BY a.created_at ASC, a.id COLLATE BINARY ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stitchables: %w", err)
	}
	defer rows.Close()

	var stitchables []timeline.StitchableActivity
	for rows.Next() {
		var (
			sa            timeline.StitchableActivity
			lastActiveEnd int64
			eventTS       int64
			kind          string
		)
		if err := rows.Scan(&sa.ID, &sa.Name, &sa.Description, &lastActiveEnd, &eventTS, &kind); err != nil {
			return nil, fmt.Errorf("scan stitchable: %w", err)
		}
		k, err := timeline.ParseEventKind(kind)
		if err != nil {
			return nil, fmt.Errorf("scan stitchable %s: %w", sa.ID, err)
		}
		sa.LatestEventTime = fromMillis(eventTS)
		sa.LatestEventKind = k
		sa.LatestConfirmedActiveEnd = fromMillis(lastActiveEnd)
		stitchables = append(stitchables, sa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stitchables: %w", err)
	}

	if stitchables == nil {
		stitchables = []timeline.StitchableActivity{}
	}
	return stitchables, nil
}

// LastWindowEnd returns the end of the most recently reconciled window,
// or nil if no window has ever been reconciled (first run).
func (s *Store) LastWindowEnd(ctx context.Context) (*time.Time, error) {
	var endTS sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(end_ts) FROM windows`).Scan(&endTS)
	if err != nil {
		return nil, fmt.Errorf("query last window end: %w", err)
	}
	if !endTS.Valid {
		return nil, nil
	}
	t := fromMillis(endTS.Int64)
	return &t, nil
}

// ActivityEvents returns all events for an activity ordered by
// timestamp, id ascending (CP-4).
func (s *Store) ActivityEvents(ctx context.Context, activityID string) ([]timeline.StitchedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT activity_id, ts, kind FROM events
		WHERE activity_id = ?
		ORDER BY ts ASC, id COLLATE BINARY ASC
	`, activityID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []timeline.StitchedEvent
	for rows.Next() {
		var (
			e    timeline.StitchedEvent
			ts   int64
			kind string
		)
		if err := rows.Scan(&e.ActivityID, &ts, &kind); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		k, err := timeline.ParseEventKind(kind)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = fromMillis(ts)
		e.Kind = k
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if events == nil {
		events = []timeline.StitchedEvent{}
	}
	return events, nil
}
