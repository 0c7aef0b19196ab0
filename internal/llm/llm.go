package llm

import (
	"context"

	"chalet-planner/internal/quantity"
)

// ItemRef identifies one distinct shopping entry sent to an oracle.
type ItemRef struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ItemGroup is one semantic cluster returned by the grouping oracle. Every
// item id should appear in at most one group; ids left out of the response
// are treated by the caller as singleton groups keyed by their own text.
type ItemGroup struct {
	CanonicalName string   `json:"canonicalName"`
	ItemIDs       []string `json:"itemIds"`
}

// Grouper is an interface for a service that clusters free-text item names
// and assigns each cluster a canonical display name.
type Grouper interface {
	GroupItems(ctx context.Context, items []ItemRef) ([]ItemGroup, error)
}

// QuantityEstimate is a per-item suggestion from the quantity oracle.
// Quantity and Unit are nil when the item is judged unrelated to the meal.
type QuantityEstimate struct {
	ID       string         `json:"id"`
	Quantity *float64       `json:"quantity"`
	Unit     *quantity.Unit `json:"unit"`
}

// QuantityEstimator is an interface for a service that suggests how much of
// each item a meal needs for a given headcount.
type QuantityEstimator interface {
	EstimateQuantities(ctx context.Context, mealLabel string, headcount int, items []ItemRef) ([]QuantityEstimate, error)
}

// ExtractedIngredient is one shopping line pulled out of a recipe page.
// Quantity and Unit are nil when the page does not state an amount that
// maps onto the closed unit set.
type ExtractedIngredient struct {
	Text     string         `json:"text"`
	Quantity *float64       `json:"quantity"`
	Unit     *quantity.Unit `json:"unit"`
}

// IngredientExtractor is an interface for a service that turns the text of
// a recipe page into shopping item lines.
type IngredientExtractor interface {
	ExtractIngredients(ctx context.Context, pageText string) ([]ExtractedIngredient, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
