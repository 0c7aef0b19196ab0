package shopping

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"chalet-planner/internal/llm"
	"chalet-planner/internal/quantity"

	"golang.org/x/sync/errgroup"
)

// ItemToggler is the write half of the store boundary that owns the
// individual SourceItems. Setting an item to its current state must be a
// semantic no-op.
type ItemToggler interface {
	ToggleItem(ctx context.Context, date, itemID string, checked bool) error
}

// Engine derives the consolidated shopping list from the current SourceItem
// snapshot and propagates group toggles back to the store. It holds no
// snapshot of its own; every call works on the items the caller hands it.
type Engine struct {
	toggler ItemToggler
	grouper llm.Grouper
	cache   AssignmentCache
}

// NewEngine creates a consolidation engine.
func NewEngine(toggler ItemToggler, grouper llm.Grouper, cache AssignmentCache) *Engine {
	return &Engine{
		toggler: toggler,
		grouper: grouper,
		cache:   cache,
	}
}

// groupAccum collects the members of one group during consolidation.
type groupAccum struct {
	key        string
	oracleName string // raw canonical name from the oracle, "" on text fallback
	sources    []SourceItem
}

// Consolidate partitions the snapshot into ConsolidatedItems. Each item
// lands in exactly one group: under the oracle-assigned canonical name when
// a cached assignment is still valid for the snapshot's fingerprint, or
// under its own normalized text otherwise. The pass is pure and may be
// repeated freely.
func (e *Engine) Consolidate(items []SourceItem) []ConsolidatedItem {
	assignment := e.validAssignment(items)

	var order []string
	groups := make(map[string]*groupAccum)

	for _, item := range items {
		key := normalize(item.Text)
		oracleName := ""
		if assignment != nil {
			if name, ok := assignment.Names[item.ItemID]; ok {
				// Distinct oracle names that coincide under normalization
				// share one group.
				key = normalize(name)
				oracleName = strings.TrimSpace(name)
			}
		}

		g, ok := groups[key]
		if !ok {
			g = &groupAccum{key: key}
			groups[key] = g
			order = append(order, key)
		}
		if g.oracleName == "" && oracleName != "" {
			g.oracleName = oracleName
		}
		g.sources = append(g.sources, item)
	}

	result := make([]ConsolidatedItem, 0, len(order))
	for _, key := range order {
		g := groups[key]

		checkedCount := 0
		entries := make([]quantity.Entry, 0, len(g.sources))
		for _, src := range g.sources {
			if src.Checked {
				checkedCount++
			}
			entries = append(entries, quantity.Entry{Quantity: src.Quantity, Unit: src.Unit})
		}

		result = append(result, ConsolidatedItem{
			GroupKey:         key,
			CanonicalName:    canonicalName(g),
			Sources:          g.sources,
			Checked:          checkedCount == len(g.sources),
			PartiallyChecked: checkedCount > 0 && checkedCount < len(g.sources),
			Quantity:         quantity.Aggregate(entries),
		})
	}

	// Open groups first, fully purchased ones at the bottom; alphabetical
	// within each bucket. Ordinal compare on the normalized name is enough,
	// stability is the contract here, not locale collation.
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Checked != result[j].Checked {
			return !result[i].Checked
		}
		return normalize(result[i].CanonicalName) < normalize(result[j].CanonicalName)
	})

	return result
}

// canonicalName prefers the oracle's name for the group. On text fallback
// the longest member text wins (first seen on ties), which favors the more
// descriptive entry.
func canonicalName(g *groupAccum) string {
	if g.oracleName != "" {
		return g.oracleName
	}
	best := ""
	for _, src := range g.sources {
		text := strings.TrimSpace(src.Text)
		if len(text) > len(best) {
			best = text
		}
	}
	return best
}

// validAssignment loads the cached assignment and checks it against the
// snapshot's fingerprint. A miss, a read error, or a mismatch all mean
// "group by text"; stale cache is a normal condition, never an error.
func (e *Engine) validAssignment(items []SourceItem) *GroupingAssignment {
	if e.cache == nil {
		return nil
	}
	a, err := e.cache.Get()
	if err != nil || a == nil {
		return nil
	}
	if a.Fingerprint != Fingerprint(items) {
		return nil
	}
	return a
}

// RefreshGrouping sends the deduplicated item set to the grouping oracle
// and, on success, stores the returned assignment together with the
// fingerprint computed at call time. On failure the previously cached
// assignment stays untouched and in use. Concurrent refreshes race on the
// cache slot; the last successful writer wins, which is fine because the
// assignment is revalidated against the live fingerprint on every read.
func (e *Engine) RefreshGrouping(ctx context.Context, items []SourceItem) error {
	seen := make(map[string]struct{})
	refs := make([]llm.ItemRef, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ItemID]; ok {
			continue
		}
		seen[item.ItemID] = struct{}{}
		refs = append(refs, llm.ItemRef{ID: item.ItemID, Text: item.Text})
	}

	fingerprint := Fingerprint(items)

	groups, err := e.grouper.GroupItems(ctx, refs)
	if err != nil {
		return fmt.Errorf("grouping refresh failed: %w", err)
	}

	names := make(map[string]string)
	for _, group := range groups {
		name := strings.TrimSpace(group.CanonicalName)
		if name == "" {
			continue
		}
		for _, id := range group.ItemIDs {
			names[id] = name
		}
	}

	if err := e.cache.Set(GroupingAssignment{Names: names, Fingerprint: fingerprint}); err != nil {
		return fmt.Errorf("failed to store grouping assignment: %w", err)
	}
	return nil
}

// ToggleConsolidated moves every source of the group to the opposite of the
// group's current fully-checked state: not fully checked becomes fully
// checked, fully checked becomes fully unchecked. Sources already in the
// target state are skipped as no-ops. Dates are updated concurrently, but
// items within one date go one at a time because the per-date owner is a
// single mutable record. A failed item does not stop the rest; the report
// says how many of the issued toggles went through, and the first error is
// returned after all sources were attempted.
func (e *Engine) ToggleConsolidated(ctx context.Context, item ConsolidatedItem) (ToggleReport, error) {
	target := !item.Checked

	var dates []string
	byDate := make(map[string][]SourceItem)
	for _, src := range item.Sources {
		if _, ok := byDate[src.Date]; !ok {
			dates = append(dates, src.Date)
		}
		byDate[src.Date] = append(byDate[src.Date], src)
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		report ToggleReport
	)

	for _, date := range dates {
		sources := byDate[date]
		g.Go(func() error {
			var firstErr error
			for _, src := range sources {
				if src.Checked == target {
					continue
				}
				mu.Lock()
				report.Attempted++
				mu.Unlock()

				if err := e.toggler.ToggleItem(ctx, src.Date, src.ItemID, target); err != nil {
					if firstErr == nil {
						firstErr = err
					}
					continue
				}

				mu.Lock()
				report.Applied++
				mu.Unlock()
			}
			return firstErr
		})
	}

	if err := g.Wait(); err != nil {
		return report, fmt.Errorf("toggle propagation incomplete: %w", err)
	}
	return report, nil
}
