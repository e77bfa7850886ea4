package scorer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"mediacull/internal/score"
)

// OpenAI scores frames through an OpenAI-compatible chat completions API.
// A custom base URL points it at gateways like OpenRouter.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI returns an OpenAI scorer.
func NewOpenAI(model, baseURL, apiKey string) *OpenAI {
	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if strings.TrimSpace(baseURL) != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client: openai.NewClient(clientOpts...),
		model:  model,
	}
}

// Name implements Scorer.
func (c *OpenAI) Name() string { return ProviderOpenAI }

// Score implements Scorer.
func (c *OpenAI) Score(ctx context.Context, frame Frame, hints string) (score.Record, string, error) {
	dataURL := "data:" + frame.MIME + ";base64," + base64.StdEncoding.EncodeToString(frame.Data)

	params := openai.ChatCompletionNewParams{
		Model:       c.model,
		Temperature: openai.Float(0.2),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(buildPrompt(hints)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURL,
				}),
			}),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil && shouldFallbackPlainMode(err) {
		// Some gateways reject response_format; the prompt plus extraction
		// still yields parseable JSON without it.
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{}
		resp, err = c.client.Chat.Completions.New(ctx, params)
	}
	if err != nil {
		return score.Record{}, "", fmt.Errorf("openai chat failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return score.Record{}, "", errors.New("openai returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return score.Record{}, "", errors.New("empty openai response content")
	}

	rec, raw := normalizeResponse(content)
	return rec, raw, nil
}

func shouldFallbackPlainMode(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "response_format") ||
		strings.Contains(msg, "json_object") ||
		(strings.Contains(msg, "unsupported") && strings.Contains(msg, "format"))
}
