package planner

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiGenerator calls the Gemini API. A client is opened per call; plan
// generation is rare and this keeps the generator free of lifecycle state.
type GeminiGenerator struct {
	apiKey string
	model  string
}

// NewGeminiGenerator returns a Generator, or ErrNotConfigured when apiKey is
// empty.
func NewGeminiGenerator(apiKey, model string) (*GeminiGenerator, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNotConfigured
	}
	return &GeminiGenerator{apiKey: apiKey, model: model}, nil
}

// Generate sends prompt and returns the concatenated text parts of the first
// candidate.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer client.Close()

	m := client.GenerativeModel(g.model)
	m.ResponseMIMEType = "application/json"

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}
