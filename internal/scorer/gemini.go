package scorer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"mediacull/internal/score"
)

// Gemini scores frames through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini scorer.
func NewGemini(ctx context.Context, model, apiKey string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Name implements Scorer.
func (g *Gemini) Name() string { return ProviderGemini }

// Score implements Scorer.
func (g *Gemini) Score(ctx context.Context, frame Frame, hints string) (score.Record, string, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemPrompt}},
		},
	}

	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: frame.MIME, Data: frame.Data}},
		{Text: buildPrompt(hints)},
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return score.Record{}, "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return score.Record{}, "", errors.New("received empty response from Gemini API")
	}

	content := strings.TrimSpace(resp.Text())
	if content == "" {
		return score.Record{}, "", errors.New("empty Gemini response text")
	}

	rec, raw := normalizeResponse(content)
	return rec, raw, nil
}
