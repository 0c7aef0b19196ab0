package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chalet-planner/internal/quantity"
	"chalet-planner/internal/shopping"

	"github.com/google/uuid"
)

// SQLiteStore persists source items in the app database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an existing database connection.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Snapshot returns every source item of the trip, in stable per-date entry
// order.
func (s *SQLiteStore) Snapshot(ctx context.Context) ([]shopping.SourceItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, date, meal_label, text, checked, quantity, unit
		 FROM source_items
		 ORDER BY date, position, item_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query source items: %w", err)
	}
	defer rows.Close()

	var items []shopping.SourceItem
	for rows.Next() {
		var (
			item shopping.SourceItem
			qty  sql.NullFloat64
			unit sql.NullString
		)
		if err := rows.Scan(&item.ItemID, &item.Date, &item.MealLabel, &item.Text, &item.Checked, &qty, &unit); err != nil {
			return nil, fmt.Errorf("failed to scan source item: %w", err)
		}
		if qty.Valid {
			v := qty.Float64
			item.Quantity = &v
		}
		if unit.Valid {
			item.Unit = quantity.Unit(unit.String)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate source items: %w", err)
	}
	return items, nil
}

// AddItem inserts a new source item, generating an id when none is set, and
// returns the stored item.
func (s *SQLiteStore) AddItem(ctx context.Context, item shopping.SourceItem) (shopping.SourceItem, error) {
	if item.ItemID == "" {
		item.ItemID = uuid.NewString()
	}

	var position int
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) + 1 FROM source_items WHERE date = ?`, item.Date)
	if err := row.Scan(&position); err != nil {
		return shopping.SourceItem{}, fmt.Errorf("failed to compute item position: %w", err)
	}

	var qty any
	if item.Quantity != nil {
		qty = *item.Quantity
	}
	var unit any
	if item.Unit != "" {
		unit = string(item.Unit)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_items (item_id, date, meal_label, text, checked, quantity, unit, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ItemID, item.Date, item.MealLabel, item.Text, item.Checked, qty, unit, position, time.Now().UTC())
	if err != nil {
		return shopping.SourceItem{}, fmt.Errorf("failed to insert source item: %w", err)
	}
	return item, nil
}

// RemoveItem deletes one source item from its meal/date record.
func (s *SQLiteStore) RemoveItem(ctx context.Context, date, itemID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM source_items WHERE date = ? AND item_id = ?`, date, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete source item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check deleted rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source item %s not found on %s", itemID, date)
	}
	return nil
}

// ToggleItem sets the checked state of one item. Writing the current state
// again is a no-op.
func (s *SQLiteStore) ToggleItem(ctx context.Context, date, itemID string, checked bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE source_items SET checked = ? WHERE date = ? AND item_id = ?`,
		checked, date, itemID)
	if err != nil {
		return fmt.Errorf("failed to toggle source item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check toggled rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source item %s not found on %s", itemID, date)
	}
	return nil
}

// SetQuantity updates the quantity and unit of one item; nil clears them.
func (s *SQLiteStore) SetQuantity(ctx context.Context, date, itemID string, qty *float64, unit quantity.Unit) error {
	var q any
	if qty != nil {
		q = *qty
	}
	var u any
	if unit != "" {
		u = string(unit)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE source_items SET quantity = ?, unit = ? WHERE date = ? AND item_id = ?`,
		q, u, date, itemID)
	if err != nil {
		return fmt.Errorf("failed to update quantity: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check updated rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("source item %s not found on %s", itemID, date)
	}
	return nil
}
