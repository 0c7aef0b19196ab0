// Package shopping consolidates the per-meal shopping entries of a trip
// into one deduplicated, unit-aggregated list, and propagates purchase
// toggles back to the underlying entries.
package shopping

import (
	"chalet-planner/internal/quantity"
)

// SourceItem is one participant-authored shopping entry scoped to a meal on
// a specific day. Items are owned by the meal/date record they belong to;
// this package only reads them and issues toggle requests against them.
type SourceItem struct {
	Date      string         `json:"date"` // YYYY-MM-DD
	MealLabel string         `json:"mealLabel"`
	ItemID    string         `json:"itemId"`
	Text      string         `json:"text"`
	Checked   bool           `json:"checked"`
	Quantity  *float64       `json:"quantity,omitempty"`
	Unit      quantity.Unit  `json:"unit,omitempty"`
}

// ConsolidatedItem is a derived group of SourceItems believed to refer to
// the same purchasable ingredient. It is recomputed from scratch on every
// read and never stored.
type ConsolidatedItem struct {
	GroupKey         string          `json:"groupKey"`
	CanonicalName    string          `json:"canonicalName"`
	Sources          []SourceItem    `json:"sources"`
	Checked          bool            `json:"checked"`
	PartiallyChecked bool            `json:"partiallyChecked"`
	Quantity         quantity.Result `json:"quantity"`
}

// ToggleReport says how many of the issued per-item toggles went through,
// so callers can tell a fully applied group toggle from a partial one.
type ToggleReport struct {
	Attempted int `json:"attempted"`
	Applied   int `json:"applied"`
}
