package shopping

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"chalet-planner/internal/llm"
	"chalet-planner/internal/quantity"
)

// --- Fakes ---

type toggleCall struct {
	Date    string
	ItemID  string
	Checked bool
}

type fakeToggler struct {
	mu        sync.Mutex
	calls     []toggleCall
	failItems map[string]bool
}

func (f *fakeToggler) ToggleItem(ctx context.Context, date, itemID string, checked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, toggleCall{Date: date, ItemID: itemID, Checked: checked})
	if f.failItems[itemID] {
		return fmt.Errorf("store rejected toggle of %s", itemID)
	}
	return nil
}

func (f *fakeToggler) callsForDate(date string) []toggleCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []toggleCall
	for _, c := range f.calls {
		if c.Date == date {
			out = append(out, c)
		}
	}
	return out
}

type fakeGrouper struct {
	groups   []llm.ItemGroup
	err      error
	gotItems []llm.ItemRef
}

func (f *fakeGrouper) GroupItems(ctx context.Context, items []llm.ItemRef) ([]llm.ItemGroup, error) {
	f.gotItems = items
	if f.err != nil {
		return nil, f.err
	}
	return f.groups, nil
}

func qty(v float64) *float64 {
	return &v
}

// --- Consolidation ---

func TestConsolidateTextFallback(t *testing.T) {
	items := []SourceItem{
		{Date: "2026-02-14", MealLabel: "Dinner", ItemID: "a", Text: "Milk", Checked: true},
		{Date: "2026-02-15", MealLabel: "Breakfast", ItemID: "b", Text: " milk "},
		{Date: "2026-02-14", MealLabel: "Dinner", ItemID: "c", Text: "Eggs"},
	}
	engine := NewEngine(&fakeToggler{}, &fakeGrouper{}, NewMemoryCache())

	groups := engine.Consolidate(items)
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}

	var milk, eggs *ConsolidatedItem
	for i := range groups {
		switch groups[i].GroupKey {
		case "milk":
			milk = &groups[i]
		case "eggs":
			eggs = &groups[i]
		}
	}
	if milk == nil || eggs == nil {
		t.Fatalf("Expected milk and eggs groups, got %+v", groups)
	}

	if len(milk.Sources) != 2 {
		t.Errorf("Expected 2 milk sources, got %d", len(milk.Sources))
	}
	if milk.CanonicalName != "Milk" {
		t.Errorf("Expected canonical name 'Milk' (first seen on tie), got '%s'", milk.CanonicalName)
	}
	if milk.Checked || !milk.PartiallyChecked {
		t.Errorf("Expected milk to be partially checked, got checked=%v partial=%v", milk.Checked, milk.PartiallyChecked)
	}
	if eggs.Checked || eggs.PartiallyChecked {
		t.Errorf("Expected eggs to be fully unchecked, got checked=%v partial=%v", eggs.Checked, eggs.PartiallyChecked)
	}
}

func TestConsolidatePartitionInvariant(t *testing.T) {
	items := []SourceItem{
		{ItemID: "a", Text: "Bread"},
		{ItemID: "b", Text: "bread"},
		{ItemID: "c", Text: "Red wine"},
		{ItemID: "d", Text: "Cheese"},
		{ItemID: "e", Text: "cheese "},
	}
	engine := NewEngine(&fakeToggler{}, &fakeGrouper{}, NewMemoryCache())

	groups := engine.Consolidate(items)

	seen := make(map[string]int)
	total := 0
	for _, g := range groups {
		for _, src := range g.Sources {
			seen[src.ItemID]++
			total++
		}
	}
	if total != len(items) {
		t.Fatalf("Expected %d sources across groups, got %d", len(items), total)
	}
	for _, item := range items {
		if seen[item.ItemID] != 1 {
			t.Errorf("Expected item %s to appear exactly once, appeared %d times", item.ItemID, seen[item.ItemID])
		}
	}
}

func TestConsolidateLongestTextWinsCanonicalName(t *testing.T) {
	items := []SourceItem{
		{ItemID: "a", Text: "cream"},
		{ItemID: "b", Text: "cream"},
	}
	// Different texts group separately without an assignment; same text
	// groups together and keeps the longer spelling when one exists.
	itemsLong := []SourceItem{
		{ItemID: "a", Text: "Cream"},
		{ItemID: "b", Text: "CREAM"},
	}
	engine := NewEngine(&fakeToggler{}, &fakeGrouper{}, NewMemoryCache())

	if got := engine.Consolidate(items)[0].CanonicalName; got != "cream" {
		t.Errorf("Expected canonical name 'cream', got '%s'", got)
	}
	if got := engine.Consolidate(itemsLong)[0].CanonicalName; got != "Cream" {
		t.Errorf("Expected first-seen 'Cream' on equal lengths, got '%s'", got)
	}
}

func TestConsolidateWithValidAssignment(t *testing.T) {
	items := []SourceItem{
		{Date: "2026-02-14", ItemID: "a", Text: "tomatoes"},
		{Date: "2026-02-15", ItemID: "b", Text: "cherry tomatos"},
		{Date: "2026-02-15", ItemID: "c", Text: "sunscreen"},
	}
	cache := NewMemoryCache()
	_ = cache.Set(GroupingAssignment{
		Names: map[string]string{
			"a": "Tomatoes",
			"b": "Tomatoes",
			// "c" deliberately missing from the oracle response.
		},
		Fingerprint: Fingerprint(items),
	})
	engine := NewEngine(&fakeToggler{}, &fakeGrouper{}, cache)

	groups := engine.Consolidate(items)
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}

	var tomatoes, sunscreen *ConsolidatedItem
	for i := range groups {
		switch groups[i].GroupKey {
		case "tomatoes":
			tomatoes = &groups[i]
		case "sunscreen":
			sunscreen = &groups[i]
		}
	}
	if tomatoes == nil || len(tomatoes.Sources) != 2 {
		t.Fatalf("Expected a merged tomatoes group with 2 sources, got %+v", groups)
	}
	if tomatoes.CanonicalName != "Tomatoes" {
		t.Errorf("Expected oracle canonical name 'Tomatoes', got '%s'", tomatoes.CanonicalName)
	}
	if sunscreen == nil || len(sunscreen.Sources) != 1 {
		t.Errorf("Expected item missing from the assignment to fall back to its own text")
	}
}

func TestConsolidateMergesCoincidingCanonicalNames(t *testing.T) {
	items := []SourceItem{
		{ItemID: "a", Text: "lait"},
		{ItemID: "b", Text: "milk"},
	}
	cache := NewMemoryCache()
	_ = cache.Set(GroupingAssignment{
		Names: map[string]string{
			"a": "Milk",
			"b": "milk ",
		},
		Fingerprint: Fingerprint(items),
	})
	engine := NewEngine(&fakeToggler{}, &fakeGrouper{}, cache)

	groups := engine.Consolidate(items)
	if len(groups) != 1 {
		t.Fatalf("Expected canonical names coinciding under normalization to merge, got %d groups", len(groups))
	}
	if groups[0].CanonicalName != "Milk" {
		t.Errorf("Expected first-seen raw name 'Milk', got '%s'", groups[0].CanonicalName)
	}
	if len(groups[0].Sources) != 2 {
		t.Errorf("Expected 2 sources in merged group, got %d", len(groups[0].Sources))
	}
}

func TestConsolidateStaleAssignmentFallsBackToText(t *testing.T) {
	items := []SourceItem{
		{ItemID: "a", Text: "tomatoes"},
		{ItemID: "b", Text: "cherry tomatos"},
	}
	cache := NewMemoryCache()
	_ = cache.Set(GroupingAssignment{
		Names:       map[string]string{"a": "Tomatoes", "b": "Tomatoes"},
		Fingerprint: Fingerprint(items),
	})
	engine := NewEngine(&fakeToggler{}, &fakeGrouper{}, cache)

	if got := len(engine.Consolidate(items)); got != 1 {
		t.Fatalf("Expected assignment to merge the group while valid, got %d groups", got)
	}

	// Any change to the text collection invalidates the assignment, even
	// an unrelated addition.
	edited := append([]SourceItem{}, items...)
	edited = append(edited, SourceItem{ItemID: "c", Text: "charcoal"})

	groups := engine.Consolidate(edited)
	if len(groups) != 3 {
		t.Fatalf("Expected text fallback after fingerprint mismatch, got %d groups", len(groups))
	}
}

func TestConsolidateSortOrder(t *testing.T) {
	items := []SourceItem{
		{ItemID: "a", Text: "zucchini", Checked: true},
		{ItemID: "b", Text: "apples", Checked: true},
		{ItemID: "c", Text: "yeast"},
		{ItemID: "d", Text: "butter"},
		{ItemID: "e", Text: "flour", Checked: true},
		{ItemID: "f", Text: "flour"},
	}
	engine := NewEngine(&fakeToggler{}, &fakeGrouper{}, NewMemoryCache())

	groups := engine.Consolidate(items)
	var names []string
	for _, g := range groups {
		names = append(names, g.CanonicalName)
	}

	// Unchecked and partially checked first, alphabetical within buckets.
	want := []string{"butter", "flour", "yeast", "apples", "zucchini"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Expected order %v, got %v", want, names)
	}
}

func TestConsolidateQuantityAggregation(t *testing.T) {
	items := []SourceItem{
		{ItemID: "a", Text: "flour", Quantity: qty(500), Unit: quantity.UnitGram},
		{ItemID: "b", Text: "Flour", Quantity: qty(2), Unit: quantity.UnitKilogram},
		{ItemID: "c", Text: "flour"}, // no quantity, excluded not zeroed
	}
	engine := NewEngine(&fakeToggler{}, &fakeGrouper{}, NewMemoryCache())

	groups := engine.Consolidate(items)
	if len(groups) != 1 {
		t.Fatalf("Expected 1 group, got %d", len(groups))
	}
	q := groups[0].Quantity
	if q.Kind != quantity.KindSingle {
		t.Fatalf("Expected single quantity, got %s", q.Kind)
	}
	if q.Single.Total != 2.5 || q.Single.Unit != quantity.UnitKilogram {
		t.Errorf("Expected 2.5 kg, got %g %s", q.Single.Total, q.Single.Unit)
	}
}

func TestConsolidateIdempotent(t *testing.T) {
	items := []SourceItem{
		{Date: "2026-02-14", ItemID: "a", Text: "Milk", Checked: true},
		{Date: "2026-02-15", ItemID: "b", Text: "milk"},
		{Date: "2026-02-15", ItemID: "c", Text: "Eggs", Quantity: qty(6)},
	}
	cache := NewMemoryCache()
	_ = cache.Set(GroupingAssignment{
		Names:       map[string]string{"a": "Milk", "b": "Milk"},
		Fingerprint: Fingerprint(items),
	})
	engine := NewEngine(&fakeToggler{}, &fakeGrouper{}, cache)

	first := engine.Consolidate(items)
	second := engine.Consolidate(items)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical output on identical snapshot, got\n%+v\nvs\n%+v", first, second)
	}
}

// --- Refresh ---

func TestRefreshGroupingStoresAssignment(t *testing.T) {
	items := []SourceItem{
		{Date: "2026-02-14", ItemID: "a", Text: "Milk"},
		{Date: "2026-02-15", ItemID: "a", Text: "Milk"}, // duplicate id deduplicated
		{Date: "2026-02-15", ItemID: "b", Text: "Eggs"},
	}
	grouper := &fakeGrouper{
		groups: []llm.ItemGroup{
			{CanonicalName: "Milk", ItemIDs: []string{"a"}},
			{CanonicalName: "Eggs", ItemIDs: []string{"b"}},
		},
	}
	cache := NewMemoryCache()
	engine := NewEngine(&fakeToggler{}, grouper, cache)

	if err := engine.RefreshGrouping(context.Background(), items); err != nil {
		t.Fatalf("RefreshGrouping failed: %v", err)
	}

	if len(grouper.gotItems) != 2 {
		t.Errorf("Expected deduplicated request of 2 items, got %d", len(grouper.gotItems))
	}

	a, err := cache.Get()
	if err != nil || a == nil {
		t.Fatalf("Expected a stored assignment, got %v (err %v)", a, err)
	}
	if a.Fingerprint != Fingerprint(items) {
		t.Error("Expected stored fingerprint to match the snapshot at call time")
	}
	if a.Names["a"] != "Milk" || a.Names["b"] != "Eggs" {
		t.Errorf("Unexpected stored names: %v", a.Names)
	}
}

func TestRefreshGroupingFailureLeavesCacheIntact(t *testing.T) {
	items := []SourceItem{{ItemID: "a", Text: "Milk"}}
	previous := GroupingAssignment{
		Names:       map[string]string{"a": "Milk"},
		Fingerprint: Fingerprint(items),
	}
	cache := NewMemoryCache()
	_ = cache.Set(previous)

	grouper := &fakeGrouper{err: fmt.Errorf("oracle unavailable")}
	engine := NewEngine(&fakeToggler{}, grouper, cache)

	err := engine.RefreshGrouping(context.Background(), items)
	if err == nil {
		t.Fatal("Expected an error when the oracle fails, got nil")
	}

	a, _ := cache.Get()
	if a == nil || !reflect.DeepEqual(*a, previous) {
		t.Errorf("Expected cached assignment to stay untouched, got %+v", a)
	}
}

// --- Toggle propagation ---

func TestToggleMovesGroupTowardChecked(t *testing.T) {
	group := ConsolidatedItem{
		GroupKey: "milk",
		Sources: []SourceItem{
			{Date: "2026-02-14", ItemID: "a", Text: "Milk", Checked: true},
			{Date: "2026-02-14", ItemID: "b", Text: "milk"},
			{Date: "2026-02-15", ItemID: "c", Text: "Milk"},
		},
		PartiallyChecked: true,
	}
	toggler := &fakeToggler{}
	engine := NewEngine(toggler, &fakeGrouper{}, NewMemoryCache())

	report, err := engine.ToggleConsolidated(context.Background(), group)
	if err != nil {
		t.Fatalf("ToggleConsolidated failed: %v", err)
	}

	// The already-checked source is skipped as a no-op.
	if report.Attempted != 2 || report.Applied != 2 {
		t.Errorf("Expected report {2 2}, got %+v", report)
	}
	for _, c := range toggler.calls {
		if !c.Checked {
			t.Errorf("Expected all toggles to target checked=true, got %+v", c)
		}
		if c.ItemID == "a" {
			t.Error("Expected already-checked item 'a' to be skipped")
		}
	}
}

func TestToggleFullyCheckedGroupUnchecksAll(t *testing.T) {
	group := ConsolidatedItem{
		GroupKey: "milk",
		Sources: []SourceItem{
			{Date: "2026-02-14", ItemID: "a", Checked: true},
			{Date: "2026-02-14", ItemID: "b", Checked: true},
			{Date: "2026-02-15", ItemID: "c", Checked: true},
		},
		Checked: true,
	}
	toggler := &fakeToggler{}
	engine := NewEngine(toggler, &fakeGrouper{}, NewMemoryCache())

	report, err := engine.ToggleConsolidated(context.Background(), group)
	if err != nil {
		t.Fatalf("ToggleConsolidated failed: %v", err)
	}
	if report.Attempted != 3 || report.Applied != 3 {
		t.Errorf("Expected report {3 3}, got %+v", report)
	}
	for _, c := range toggler.calls {
		if c.Checked {
			t.Errorf("Expected all toggles to target checked=false, got %+v", c)
		}
	}
}

func TestToggleKeepsPerDateOrder(t *testing.T) {
	group := ConsolidatedItem{
		GroupKey: "milk",
		Sources: []SourceItem{
			{Date: "2026-02-14", ItemID: "a"},
			{Date: "2026-02-15", ItemID: "b"},
			{Date: "2026-02-14", ItemID: "c"},
			{Date: "2026-02-14", ItemID: "d"},
		},
	}
	toggler := &fakeToggler{}
	engine := NewEngine(toggler, &fakeGrouper{}, NewMemoryCache())

	if _, err := engine.ToggleConsolidated(context.Background(), group); err != nil {
		t.Fatalf("ToggleConsolidated failed: %v", err)
	}

	calls := toggler.callsForDate("2026-02-14")
	var ids []string
	for _, c := range calls {
		ids = append(ids, c.ItemID)
	}
	want := []string{"a", "c", "d"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected sequential order %v within one date, got %v", want, ids)
	}
}

func TestTogglePartialFailure(t *testing.T) {
	group := ConsolidatedItem{
		GroupKey: "milk",
		Sources: []SourceItem{
			{Date: "2026-02-14", ItemID: "a"},
			{Date: "2026-02-14", ItemID: "b"},
			{Date: "2026-02-14", ItemID: "c"},
		},
	}
	toggler := &fakeToggler{failItems: map[string]bool{"b": true}}
	engine := NewEngine(toggler, &fakeGrouper{}, NewMemoryCache())

	report, err := engine.ToggleConsolidated(context.Background(), group)
	if err == nil {
		t.Fatal("Expected an error after a failed toggle, got nil")
	}

	// All sources are still attempted; no rollback of applied ones.
	if report.Attempted != 3 {
		t.Errorf("Expected 3 attempted toggles, got %d", report.Attempted)
	}
	if report.Applied != 2 {
		t.Errorf("Expected 2 applied toggles, got %d", report.Applied)
	}
	if len(toggler.calls) != 3 {
		t.Errorf("Expected toggle to be issued for every source, got %d calls", len(toggler.calls))
	}
}
