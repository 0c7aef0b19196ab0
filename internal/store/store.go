// Package store implements the boundary that owns the trip's SourceItems:
// a local SQLite store for standalone use and a websocket client for the
// shared realtime backend. The consolidation engine only reads snapshots
// and toggles; creating and removing items is a surface concern.
package store

import (
	"context"

	"chalet-planner/internal/quantity"
	"chalet-planner/internal/shopping"
)

// Store is the source-item boundary the surfaces and the engine talk to.
// ToggleItem must be a semantic no-op when the item is already in the
// requested state.
type Store interface {
	Snapshot(ctx context.Context) ([]shopping.SourceItem, error)
	AddItem(ctx context.Context, item shopping.SourceItem) (shopping.SourceItem, error)
	RemoveItem(ctx context.Context, date, itemID string) error
	ToggleItem(ctx context.Context, date, itemID string, checked bool) error
	SetQuantity(ctx context.Context, date, itemID string, qty *float64, unit quantity.Unit) error
}
