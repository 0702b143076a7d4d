// Package ai generates listing drafts from item photos. A provider
// failure is recoverable: the caller posts with blank fields instead
// of failing the flow.
package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Draft is the AI-suggested starting point for a new listing.
type Draft struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Category       string  `json:"category"`
	SuggestedPrice float64 `json:"suggestedPrice"`
}

// DescriptionGenerator produces a listing draft from an image.
type DescriptionGenerator interface {
	Generate(ctx context.Context, imageData []byte, mimeType string) (Draft, error)
}

// GeminiClient implements DescriptionGenerator on the Gemini API.
type GeminiClient struct {
	model *genai.GenerativeModel
}

// NewGeminiClient builds a client bound to a JSON-only model.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	model := client.GenerativeModel("gemini-2.0-flash-001")
	model.ResponseMIMEType = "application/json"
	return &GeminiClient{model: model}, nil
}

const draftPrompt = `Analyze this image of an item for sale. Provide a JSON response with:
- title: A catchy, concise title (max 50 chars)
- description: A compelling description highlighting condition and features (100-200 chars)
- category: One of: electronics, furniture, clothing, sports, music, kitchen, books, toys, other
- suggestedPrice: A fair price in USD as a number

Respond ONLY with valid JSON, no markdown.`

// Generate asks the model for a draft based on the photo.
func (c *GeminiClient) Generate(ctx context.Context, imageData []byte, mimeType string) (Draft, error) {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	resp, err := c.model.GenerateContent(ctx,
		genai.Text(draftPrompt),
		genai.Blob{MIMEType: mimeType, Data: imageData},
	)
	if err != nil {
		return Draft{}, fmt.Errorf("gemini request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return Draft{}, fmt.Errorf("gemini returned no content")
	}

	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return Draft{}, fmt.Errorf("gemini returned unexpected part type")
	}

	var draft Draft
	if err := json.Unmarshal([]byte(text), &draft); err != nil {
		return Draft{}, fmt.Errorf("failed to parse gemini response: %w", err)
	}
	return draft, nil
}
