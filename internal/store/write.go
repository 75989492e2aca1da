package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rowanhm/stitch/internal/timeline"
)

// newID returns a UUIDv7 string. Time-sortable, so insertion order and
// id order agree.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateActivity inserts a fresh activity with its initial events and
// returns the new id. lastActiveEnd should be the end of the window the
// activity was observed in.
func (s *Store) CreateActivity(ctx context.Context, desc timeline.Descriptor, events []timeline.StitchedEvent, lastActiveEnd time.Time) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("create activity: begin: %w", err)
	}
	defer tx.Rollback()

	id, err := insertActivity(ctx, tx, desc, events, lastActiveEnd)
	if err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("create activity: commit: %w", err)
	}
	return id, nil
}

// Apply persists one window's ReconciliationOutput atomically (CP-1):
// stitched and closure events are appended, metadata updates applied,
// new activities created, matched activities re-anchored to the window
// end, and the window recorded as reconciled. Any failure rolls the
// whole window back.
func (s *Store) Apply(ctx context.Context, out timeline.ReconciliationOutput, window timeline.TimeSpan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply window: begin: %w", err)
	}
	defer tx.Rollback()

	now := millis(time.Now().UTC())

	for _, e := range out.StitchedEvents {
		if err := insertEvent(ctx, tx, e.ActivityID, e.Timestamp, e.Kind); err != nil {
			return err
		}
	}
	for _, e := range out.ClosureEvents {
		if err := insertEvent(ctx, tx, e.ActivityID, e.Timestamp, e.Kind); err != nil {
			return err
		}
	}

	for _, u := range out.MetadataUpdates {
		res, err := tx.ExecContext(ctx, `
			UPDATE activities
			SET name = ?, description = ?, last_active_end = ?, updated_at = ?
			WHERE id = ?
		`, u.Descriptor.Name, u.Descriptor.Description, millis(window.End), now, u.ActivityID)
		if err != nil {
			return fmt.Errorf("apply window: update %s: %w", u.ActivityID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("apply window: update %s: %w", u.ActivityID, err)
		}
		if n == 0 {
			return fmt.Errorf("apply window: metadata update for unknown activity %s", u.ActivityID)
		}
	}

	for _, na := range out.NewActivities {
		if _, err := insertActivity(ctx, tx, na.Descriptor, na.Events, window.End); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO windows (id, start_ts, end_ts, reconciled_at)
		VALUES (?, ?, ?, ?)
	`, newID(), millis(window.Start), millis(window.End), now)
	if err != nil {
		return fmt.Errorf("apply window: record window: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply window: commit: %w", err)
	}
	return nil
}

// execer is the subset of *sql.DB / *sql.Tx the insert helpers need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertActivity(ctx context.Context, tx execer, desc timeline.Descriptor, events []timeline.StitchedEvent, lastActiveEnd time.Time) (string, error) {
	id := newID()
	now := millis(time.Now().UTC())

	_, err := tx.ExecContext(ctx, `
		INSERT INTO activities (id, name, description, last_active_end, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, desc.Name, desc.Description, millis(lastActiveEnd), now, now)
	if err != nil {
		return "", fmt.Errorf("insert activity %q: %w", desc.Name, err)
	}

	for _, e := range events {
		if err := insertEvent(ctx, tx, id, e.Timestamp, e.Kind); err != nil {
			return "", err
		}
	}
	return id, nil
}

func insertEvent(ctx context.Context, tx execer, activityID string, ts time.Time, kind timeline.EventKind) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events (id, activity_id, ts, kind)
		VALUES (?, ?, ?, ?)
	`, newID(), activityID, millis(ts), kind.String())
	if err != nil {
		return fmt.Errorf("insert event for %s: %w", activityID, err)
	}
	return nil
}
