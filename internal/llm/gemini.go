package llm

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"chalet-planner/internal/config"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiModel = "gemini-1.5-flash"

//go:embed grouping_prompt.md
var groupingPrompt string

//go:embed quantity_prompt.md
var quantityPrompt string

//go:embed clip_prompt.md
var clipPrompt string

// GeminiClient talks to the Google Gemini API and implements both the
// grouping and the quantity-estimation oracle.
type GeminiClient struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(geminiModel)
	return &GeminiClient{client: client, model: model}, nil
}

type groupingPromptData struct {
	Items []ItemRef
}

type quantityPromptData struct {
	MealLabel string
	Headcount int
	Items     []ItemRef
}

// GroupItems asks the model to cluster free-text item names into
// same-ingredient groups with canonical names.
func (c *GeminiClient) GroupItems(ctx context.Context, items []ItemRef) ([]ItemGroup, error) {
	prompt, err := buildPrompt("grouping", groupingPrompt, groupingPromptData{Items: items})
	if err != nil {
		return nil, err
	}

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("grouping oracle call failed: %w", err)
	}

	return parseGroups(raw)
}

// EstimateQuantities asks the model how much of each item a meal needs.
func (c *GeminiClient) EstimateQuantities(ctx context.Context, mealLabel string, headcount int, items []ItemRef) ([]QuantityEstimate, error) {
	prompt, err := buildPrompt("quantity", quantityPrompt, quantityPromptData{
		MealLabel: mealLabel,
		Headcount: headcount,
		Items:     items,
	})
	if err != nil {
		return nil, err
	}

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("quantity oracle call failed: %w", err)
	}

	return parseEstimates(raw)
}

type clipPromptData struct {
	PageText string
}

// ExtractIngredients pulls shopping item lines out of recipe page text.
func (c *GeminiClient) ExtractIngredients(ctx context.Context, pageText string) ([]ExtractedIngredient, error) {
	prompt, err := buildPrompt("clip", clipPrompt, clipPromptData{PageText: pageText})
	if err != nil {
		return nil, err
	}

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("ingredient extraction failed: %w", err)
	}

	return parseIngredients(raw)
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content generated")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", fmt.Errorf("generated content is not text")
	}

	return string(text), nil
}

// Close closes the underlying Gemini client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func buildPrompt(name, tmplText string, data any) (string, error) {
	tmpl, err := template.New(name).Parse(tmplText)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// despite being told not to.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

func parseGroups(raw string) ([]ItemGroup, error) {
	var parsed struct {
		Groups []ItemGroup `json:"groups"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse grouping response: %w. Response: %s", err, raw)
	}
	return parsed.Groups, nil
}

func parseIngredients(raw string) ([]ExtractedIngredient, error) {
	var parsed struct {
		Ingredients []ExtractedIngredient `json:"ingredients"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse extraction response: %w. Response: %s", err, raw)
	}
	return parsed.Ingredients, nil
}

func parseEstimates(raw string) ([]QuantityEstimate, error) {
	var parsed struct {
		Estimates []QuantityEstimate `json:"estimates"`
	}
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse quantity response: %w. Response: %s", err, raw)
	}
	return parsed.Estimates, nil
}
