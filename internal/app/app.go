// Package app wires the store, the consolidation engine, and the oracles
// into the operations the surfaces (CLI, bot, HTTP API) expose.
package app

import (
	"context"
	"fmt"

	"chalet-planner/internal/clipper"
	"chalet-planner/internal/llm"
	"chalet-planner/internal/shopping"
	"chalet-planner/internal/store"
)

// App bundles the engine with its collaborators.
type App struct {
	store     store.Store
	engine    *shopping.Engine
	estimator llm.QuantityEstimator
	clipper   *clipper.Clipper
}

// NewApp creates the application service layer.
func NewApp(s store.Store, engine *shopping.Engine, estimator llm.QuantityEstimator, clip *clipper.Clipper) *App {
	return &App{
		store:     s,
		engine:    engine,
		estimator: estimator,
		clipper:   clip,
	}
}

// ConsolidatedList derives the current shopping list from a fresh snapshot.
func (a *App) ConsolidatedList(ctx context.Context) ([]shopping.ConsolidatedItem, error) {
	items, err := a.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read source items: %w", err)
	}
	return a.engine.Consolidate(items), nil
}

// RefreshGrouping asks the grouping oracle to re-cluster the current items.
func (a *App) RefreshGrouping(ctx context.Context) error {
	items, err := a.store.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read source items: %w", err)
	}
	return a.engine.RefreshGrouping(ctx, items)
}

// ToggleGroup toggles every source of the named consolidated group. The
// group is resolved against a fresh snapshot so the toggle always works
// from observed state.
func (a *App) ToggleGroup(ctx context.Context, groupKey string) (shopping.ToggleReport, error) {
	groups, err := a.ConsolidatedList(ctx)
	if err != nil {
		return shopping.ToggleReport{}, err
	}
	for _, g := range groups {
		if g.GroupKey == groupKey {
			return a.engine.ToggleConsolidated(ctx, g)
		}
	}
	return shopping.ToggleReport{}, fmt.Errorf("no consolidated group %q", groupKey)
}

// AddItem appends a participant-authored entry to a meal's list.
func (a *App) AddItem(ctx context.Context, item shopping.SourceItem) (shopping.SourceItem, error) {
	if item.Text == "" {
		return shopping.SourceItem{}, fmt.Errorf("item text must not be empty")
	}
	if item.Date == "" {
		return shopping.SourceItem{}, fmt.Errorf("item date must not be empty")
	}
	return a.store.AddItem(ctx, item)
}

// RemoveItem removes one entry from its meal's list.
func (a *App) RemoveItem(ctx context.Context, date, itemID string) error {
	return a.store.RemoveItem(ctx, date, itemID)
}

// EstimateMeal asks the quantity oracle how much of each of one meal's
// items the group needs and writes the estimates back onto the items.
// Items the oracle judges unrelated to the meal are left untouched. It
// returns the number of items updated.
func (a *App) EstimateMeal(ctx context.Context, date, mealLabel string, headcount int) (int, error) {
	items, err := a.store.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read source items: %w", err)
	}

	var refs []llm.ItemRef
	itemDates := make(map[string]string)
	for _, item := range items {
		if item.Date != date || item.MealLabel != mealLabel {
			continue
		}
		refs = append(refs, llm.ItemRef{ID: item.ItemID, Text: item.Text})
		itemDates[item.ItemID] = item.Date
	}
	if len(refs) == 0 {
		return 0, fmt.Errorf("no items for %s on %s", mealLabel, date)
	}

	estimates, err := a.estimator.EstimateQuantities(ctx, mealLabel, headcount, refs)
	if err != nil {
		return 0, fmt.Errorf("quantity estimation failed: %w", err)
	}

	updated := 0
	for _, est := range estimates {
		if est.Quantity == nil || est.Unit == nil {
			continue
		}
		itemDate, ok := itemDates[est.ID]
		if !ok {
			continue
		}
		if err := a.store.SetQuantity(ctx, itemDate, est.ID, est.Quantity, *est.Unit); err != nil {
			return updated, fmt.Errorf("failed to store estimate for %s: %w", est.ID, err)
		}
		updated++
	}
	return updated, nil
}

// ImportRecipe clips a recipe page's ingredients into a meal's list.
func (a *App) ImportRecipe(ctx context.Context, url, date, mealLabel string) ([]shopping.SourceItem, error) {
	if a.clipper == nil {
		return nil, fmt.Errorf("recipe import is not configured")
	}
	return a.clipper.ImportURL(ctx, url, date, mealLabel)
}
