// Package scorer sends candidate frames to a vision model and returns
// normalized quality records. Three backends share one prompt and one
// response contract: the model returns a single JSON object, and whatever
// comes back is normalized so scoring itself never produces a malformed
// record. Transport failures are the only errors a backend reports.
package scorer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mediacull/internal/jsonutil"
	"mediacull/internal/score"
)

// Providers supported by New.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const systemPrompt = "You are a photo selection assistant. Return only JSON."

// Frame is one image payload to score.
type Frame struct {
	Data []byte
	MIME string
}

// Scorer rates a frame. The string return is the normalized raw JSON suitable
// for caching alongside the record.
type Scorer interface {
	Name() string
	Score(ctx context.Context, frame Frame, hints string) (score.Record, string, error)
}

// Options configures a backend.
type Options struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
}

// New builds the scorer for opts.Provider.
func New(ctx context.Context, opts Options) (Scorer, error) {
	switch opts.Provider {
	case ProviderOllama:
		return NewOllama(opts.BaseURL, opts.Model), nil
	case ProviderOpenAI:
		return NewOpenAI(opts.Model, opts.BaseURL, opts.APIKey), nil
	case ProviderGemini:
		return NewGemini(ctx, opts.Model, opts.APIKey)
	default:
		return nil, fmt.Errorf("unknown scorer provider %q", opts.Provider)
	}
}

// DefaultModel returns the provider's default model name, or "" when the
// provider has no sensible default and the model must be configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderGemini:
		return "gemini-3-flash-preview"
	case ProviderOpenAI:
		return "gpt-4.1-mini"
	default:
		return ""
	}
}

// schemaTemplate is marshaled into the prompt so the model sees the exact
// shape to produce. Keys marshal in sorted order, keeping prompts stable.
var schemaTemplate = map[string]any{
	"overall_score":       0.0,
	"sharpness":           0.0,
	"subject_visibility":  0.0,
	"composition":         0.0,
	"duplication_penalty": 0.0,
	"reasoning":           "",
}

func buildPrompt(hints string) string {
	schema, _ := json.Marshal(schemaTemplate)

	var b strings.Builder
	b.WriteString("You are evaluating a photograph for a curated highlight collection. ")
	b.WriteString("Return ONLY JSON. Do NOT output anything else. ")
	b.WriteString("No extra text, no explanations, no markdown. ")
	b.WriteString("The JSON MUST match this schema exactly, with no extra keys: ")
	b.Write(schema)
	b.WriteString(" All numeric fields must be between 0.0 and 1.0. ")
	b.WriteString("overall_score is your single judgment of whether this image is worth keeping. ")
	b.WriteString("sharpness rates subject focus; background blur is acceptable. ")
	b.WriteString("subject_visibility rates how clearly the main subject appears. ")
	b.WriteString("composition rates framing and balance. ")
	b.WriteString("duplication_penalty stays 0.0 unless the image looks like a burst-shot duplicate. ")
	b.WriteString("reasoning must be one short sentence. ")
	b.WriteString("If the image is inappropriate or cannot be judged, still return JSON with a low overall_score.")
	if hints != "" {
		b.WriteString(" Context: ")
		b.WriteString(hints)
	}
	return b.String()
}

// normalizeResponse turns arbitrary model output into a record plus the raw
// JSON to cache. Output with no recoverable JSON object degrades to an
// all-defaults record rather than an error.
func normalizeResponse(content string) (score.Record, string) {
	raw, err := jsonutil.ExtractObject(content)
	if err != nil {
		raw = "{}"
	}
	rec := score.Normalize(raw)
	return rec, score.InjectNormalized(raw, rec)
}
