package fan

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// historyTimeFormat has a fixed width so stored timestamps sort as text.
	historyTimeFormat = "2006-01-02T15:04:05.000000Z"
)

// HistoryEntry is one recorded transition.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	Device    string    `json:"device"`
	Command   string    `json:"command"`
	Source    string    `json:"source"`
	State     State     `json:"state"`
	CreatedAt time.Time `json:"created_at"`
}

// SQLiteHistory records transitions in the state_history table.
//
// It implements Recorder and gives a local audit trail even when no
// telemetry backend is configured.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory creates a history store on an open, migrated database.
func NewSQLiteHistory(db *sql.DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

// RecordTransition inserts one history row.
func (h *SQLiteHistory) RecordTransition(ctx context.Context, t Transition) error {
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := h.db.ExecContext(ctx,
		`INSERT INTO state_history (device, command, source, power, speed, oscillation, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Device,
		t.Command.String(),
		t.Source,
		t.State.Power,
		t.State.Speed.String(),
		t.State.Oscillation,
		at.UTC().Format(historyTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
// limit defaults to 50 and is clamped to 200.
func (h *SQLiteHistory) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, device, command, source, power, speed, oscillation, created_at
		 FROM state_history
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, limit)
	for rows.Next() {
		var entry HistoryEntry
		var speed, createdAt string

		if err := rows.Scan(&entry.ID, &entry.Device, &entry.Command, &entry.Source,
			&entry.State.Power, &speed, &entry.State.Oscillation, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}

		if err := entry.State.Speed.UnmarshalText([]byte(speed)); err != nil {
			return nil, fmt.Errorf("decoding speed: %w", err)
		}

		entry.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many were removed.
func (h *SQLiteHistory) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(historyTimeFormat)
	result, err := h.db.ExecContext(ctx, "DELETE FROM state_history WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
