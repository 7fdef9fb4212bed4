// Package llm wraps the Gemini SDK behind a small text-generation
// interface so the rest of the pipeline can be tested without network
// access.
package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/viper"
	"google.golang.org/genai"
)

// DefaultModel is the default Gemini model for digest generation.
const DefaultModel = "gemini-flash-lite-latest"

// TextGenerator produces free-form text for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Client is a Gemini-backed TextGenerator.
type Client struct {
	modelName string
	gClient   *genai.Client
}

// NewClient creates a Gemini client. The API key is resolved from the
// STASH_GEMINI_API_KEY or GEMINI_API_KEY environment variables, then the
// ai.api_key config key.
func NewClient(modelName string) (*Client, error) {
	apiKey := os.Getenv("STASH_GEMINI_API_KEY")
	if apiKey == "" {
		if apiKey = os.Getenv("GEMINI_API_KEY"); apiKey == "" {
			apiKey = viper.GetString("ai.api_key")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY or ai.api_key in config")
	}

	if modelName == "" {
		modelName = viper.GetString("ai.model")
		if modelName == "" {
			modelName = DefaultModel
		}
	}

	ctx := context.Background()
	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{modelName: modelName, gClient: gClient}, nil
}

// GenerateText sends a single-turn prompt and returns the model's text.
func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}
