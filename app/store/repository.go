package store

import (
	"database/sql"
	"fmt"
	"time"
)

// MaxRuns bounds the run history kept in memory.
const MaxRuns = 500

var _ Repository = (*Store)(nil)

type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// RecordRun stores a finished run and upserts the state of every list it saw.
// A skipped list keeps its last known resolved count.
func (s *Store) RecordRun(run Run, counts []ListCount) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, cause, started_at, finished_at, lists, updated, skipped)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Cause, toMillis(run.StartedAt), toMillis(run.FinishedAt), run.Lists, run.Updated, run.Skipped)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, c := range counts {
		var resolved sql.NullInt64
		if c.Resolved != nil {
			resolved = sql.NullInt64{Int64: int64(*c.Resolved), Valid: true}
		}
		var changedAt sql.NullInt64
		if c.ChangedAt != nil {
			changedAt = sql.NullInt64{Int64: toMillis(*c.ChangedAt), Valid: true}
		}

		_, err = tx.Exec(`
			INSERT INTO list_counts (list_id, name, displayed, resolved, status, source, checked_at, changed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (list_id) DO UPDATE SET
				name = excluded.name,
				displayed = excluded.displayed,
				resolved = COALESCE(excluded.resolved, list_counts.resolved),
				status = excluded.status,
				source = excluded.source,
				checked_at = excluded.checked_at,
				changed_at = COALESCE(excluded.changed_at, list_counts.changed_at)
		`, c.ListID, c.Name, c.Displayed, resolved, string(c.Status), c.Source, toMillis(c.CheckedAt), changedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert list count %s: %w", c.ListID, err)
		}
	}

	_, err = tx.Exec(`
		DELETE FROM runs
		WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC LIMIT ?)
	`, MaxRuns)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}

	return nil
}

func (s *Store) GetRunCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// GetRecentRuns returns up to limit runs, newest first.
func (s *Store) GetRecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, cause, started_at, finished_at, lists, updated, skipped
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var startedAt, finishedAt int64
		if err := rows.Scan(&run.ID, &run.Cause, &startedAt, &finishedAt, &run.Lists, &run.Updated, &run.Skipped); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = fromMillis(startedAt)
		run.FinishedAt = fromMillis(finishedAt)
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}

func (s *Store) GetListCounts() ([]ListCount, error) {
	rows, err := s.db.Query(`
		SELECT list_id, name, displayed, resolved, status, source, checked_at, changed_at
		FROM list_counts
		ORDER BY name, list_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query list counts: %w", err)
	}
	defer rows.Close()

	var counts []ListCount
	for rows.Next() {
		var c ListCount
		var resolved, changedAt sql.NullInt64
		var status string
		var checkedAt int64
		if err := rows.Scan(&c.ListID, &c.Name, &c.Displayed, &resolved, &status, &c.Source, &checkedAt, &changedAt); err != nil {
			return nil, fmt.Errorf("failed to scan list count: %w", err)
		}

		c.Status = ListStatus(status)
		c.CheckedAt = fromMillis(checkedAt)
		if resolved.Valid {
			v := int(resolved.Int64)
			c.Resolved = &v
		}
		if changedAt.Valid {
			t := fromMillis(changedAt.Int64)
			c.ChangedAt = &t
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate list counts: %w", err)
	}

	return counts, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
