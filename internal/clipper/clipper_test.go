package clipper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chalet-planner/internal/llm"
	"chalet-planner/internal/quantity"
	"chalet-planner/internal/shopping"
)

// --- Mocks ---

type mockStore struct {
	added       []shopping.SourceItem
	shouldError bool
}

func (m *mockStore) Snapshot(ctx context.Context) ([]shopping.SourceItem, error) {
	return m.added, nil
}

func (m *mockStore) AddItem(ctx context.Context, item shopping.SourceItem) (shopping.SourceItem, error) {
	if m.shouldError {
		return shopping.SourceItem{}, fmt.Errorf("mock store error")
	}
	item.ItemID = fmt.Sprintf("id-%d", len(m.added)+1)
	m.added = append(m.added, item)
	return item, nil
}

func (m *mockStore) RemoveItem(ctx context.Context, date, itemID string) error { return nil }

func (m *mockStore) ToggleItem(ctx context.Context, date, itemID string, checked bool) error {
	return nil
}

func (m *mockStore) SetQuantity(ctx context.Context, date, itemID string, qty *float64, unit quantity.Unit) error {
	return nil
}

type mockExtractor struct {
	ingredients []llm.ExtractedIngredient
	gotText     string
	shouldError bool
}

func (m *mockExtractor) ExtractIngredients(ctx context.Context, pageText string) ([]llm.ExtractedIngredient, error) {
	m.gotText = pageText
	if m.shouldError {
		return nil, fmt.Errorf("mock ai error")
	}
	return m.ingredients, nil
}

// --- Tests ---

func TestFetchAndCleanHTML(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		html := `
		<html>
			<head><script>alert('bad');</script></head>
			<body>
				<h1>Raclette night</h1>
				<div class="ads">Buy stuff!</div>
				<p>800 g raclette cheese, 1 kg potatoes.</p>
				<footer>Copyright 2026</footer>
			</body>
		</html>`
		w.Write([]byte(html))
	}))
	defer ts.Close()

	c := NewClipper(&mockStore{}, &mockExtractor{})

	cleanText, err := c.fetchAndCleanHTML(ts.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if strings.Contains(cleanText, "alert('bad')") {
		t.Error("Failed to remove <script> tags")
	}
	if strings.Contains(cleanText, "Buy stuff!") {
		t.Error("Failed to remove .ads class")
	}
	if strings.Contains(cleanText, "Copyright 2026") {
		t.Error("Failed to remove <footer>")
	}
	if !strings.Contains(cleanText, "raclette cheese") {
		t.Error("Expected to find body content")
	}
}

func TestImportURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>800 g raclette cheese, some gherkins</body></html>"))
	}))
	defer ts.Close()

	grams := 800.0
	unitG := quantity.UnitGram
	extractor := &mockExtractor{
		ingredients: []llm.ExtractedIngredient{
			{Text: "raclette cheese", Quantity: &grams, Unit: &unitG},
			{Text: "gherkins"},
			{Text: ""}, // blank lines from the model are dropped
		},
	}
	st := &mockStore{}
	c := NewClipper(st, extractor)

	added, err := c.ImportURL(context.Background(), ts.URL, "2026-02-14", "Dinner")
	if err != nil {
		t.Fatalf("ImportURL failed: %v", err)
	}

	if len(added) != 2 {
		t.Fatalf("Expected 2 items added, got %d", len(added))
	}
	if added[0].Text != "raclette cheese" || added[0].Date != "2026-02-14" || added[0].MealLabel != "Dinner" {
		t.Errorf("Unexpected first item: %+v", added[0])
	}
	if added[0].Quantity == nil || *added[0].Quantity != 800 || added[0].Unit != quantity.UnitGram {
		t.Errorf("Expected 800 g on first item, got %+v", added[0])
	}
	if added[1].Quantity != nil || added[1].Unit != "" {
		t.Errorf("Expected no quantity on second item, got %+v", added[1])
	}
	if !strings.Contains(extractor.gotText, "raclette cheese") {
		t.Error("Expected page text to reach the extractor")
	}
}

func TestImportURLExtractionFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>content</body></html>"))
	}))
	defer ts.Close()

	st := &mockStore{}
	c := NewClipper(st, &mockExtractor{shouldError: true})

	_, err := c.ImportURL(context.Background(), ts.URL, "2026-02-14", "Dinner")
	if err == nil {
		t.Fatal("Expected an error when extraction fails, got nil")
	}
	if len(st.added) != 0 {
		t.Errorf("Expected no items added on failure, got %d", len(st.added))
	}
}
