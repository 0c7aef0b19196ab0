package shopping

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// SQLiteCache stores the assignment in the app database, keyed by a slot
// name so several devices sharing one database keep separate assignments.
type SQLiteCache struct {
	db   *sql.DB
	slot string
}

// NewSQLiteCache creates a cache bound to the given slot.
func NewSQLiteCache(db *sql.DB, slot string) *SQLiteCache {
	return &SQLiteCache{db: db, slot: slot}
}

func (c *SQLiteCache) Get() (*GroupingAssignment, error) {
	row := c.db.QueryRowContext(context.Background(),
		`SELECT fingerprint, names FROM grouping_cache WHERE slot = ?`, c.slot)

	var fingerprint, namesJSON string
	if err := row.Scan(&fingerprint, &namesJSON); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load grouping cache: %w", err)
	}

	var names map[string]string
	if err := json.Unmarshal([]byte(namesJSON), &names); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grouping cache names: %w", err)
	}

	return &GroupingAssignment{Names: names, Fingerprint: fingerprint}, nil
}

func (c *SQLiteCache) Set(a GroupingAssignment) error {
	namesJSON, err := json.Marshal(a.Names)
	if err != nil {
		return fmt.Errorf("failed to marshal grouping cache names: %w", err)
	}

	_, err = c.db.ExecContext(context.Background(),
		`INSERT INTO grouping_cache (slot, fingerprint, names, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET
		   fingerprint = excluded.fingerprint,
		   names = excluded.names,
		   updated_at = excluded.updated_at`,
		c.slot, a.Fingerprint, string(namesJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store grouping cache: %w", err)
	}
	return nil
}
