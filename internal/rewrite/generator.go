package rewrite

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Generator is the text-transform capability behind the engine. The
// production implementation talks to the Gemini API; tests substitute a
// fake.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error)
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiGenerator{client: client, model: model}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(temperature)),
		MaxOutputTokens: int32(maxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

type disabledGenerator struct {
	reason string
}

// NewDisabledGenerator returns a Generator that always fails with the
// given reason. Used when no API key is configured so the engine falls
// back to original titles instead of the service refusing to start.
func NewDisabledGenerator(reason string) Generator {
	return &disabledGenerator{reason: reason}
}

func (g *disabledGenerator) Generate(_ context.Context, _ string, _ float64, _ int) (string, error) {
	return "", fmt.Errorf("generation unavailable: %s", g.reason)
}
