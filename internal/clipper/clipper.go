package clipper

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"chalet-planner/internal/llm"
	"chalet-planner/internal/shopping"
	"chalet-planner/internal/store"

	"github.com/PuerkitoBio/goquery"
)

// Clipper imports the ingredient list of a recipe page into one meal's
// shopping entries.
type Clipper struct {
	store     store.Store
	extractor llm.IngredientExtractor
}

// NewClipper creates a new Clipper instance.
func NewClipper(s store.Store, extractor llm.IngredientExtractor) *Clipper {
	return &Clipper{
		store:     s,
		extractor: extractor,
	}
}

// ImportURL fetches the URL, extracts the ingredients using AI, and adds
// them as source items to the given meal/date. It returns the items as
// stored.
func (c *Clipper) ImportURL(ctx context.Context, url, date, mealLabel string) ([]shopping.SourceItem, error) {
	content, err := c.fetchAndCleanHTML(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	ingredients, err := c.extractor.ExtractIngredients(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("ai extraction failed: %w", err)
	}

	var added []shopping.SourceItem
	for _, ing := range ingredients {
		if ing.Text == "" {
			continue
		}
		item := shopping.SourceItem{
			Date:      date,
			MealLabel: mealLabel,
			Text:      ing.Text,
			Quantity:  ing.Quantity,
		}
		if ing.Unit != nil {
			item.Unit = *ing.Unit
		}

		stored, err := c.store.AddItem(ctx, item)
		if err != nil {
			return added, fmt.Errorf("failed to add item %q: %w", ing.Text, err)
		}
		added = append(added, stored)
	}

	return added, nil
}

func (c *Clipper) fetchAndCleanHTML(url string) (string, error) {
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	// Remove noise to save LLM tokens
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Find("body").Text(), nil
}
