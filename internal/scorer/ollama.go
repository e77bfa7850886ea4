package scorer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"mediacull/internal/score"
)

// Ollama talks to a local Ollama server over its chat API.
type Ollama struct {
	baseURL    string
	model      string
	client     *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewOllama returns an Ollama scorer for baseURL (e.g. http://localhost:11434).
func NewOllama(baseURL, model string) *Ollama {
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		client:     &http.Client{Timeout: 30 * time.Second},
		maxRetries: 2,
		backoff:    800 * time.Millisecond,
	}
}

// Name implements Scorer.
func (o *Ollama) Name() string { return ProviderOllama }

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
	Messages []ollamaMessage `json:"messages"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// Score implements Scorer. Failed requests are retried with linear backoff
// before the candidate is reported failed.
func (o *Ollama) Score(ctx context.Context, frame Frame, hints string) (score.Record, string, error) {
	payload := ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{Role: "system", Content: systemPrompt},
			{
				Role:    "user",
				Content: buildPrompt(hints),
				Images:  []string{base64.StdEncoding.EncodeToString(frame.Data)},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return score.Record{}, "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			log.Debug().Int("attempt", attempt).Err(lastErr).Msg("retrying Ollama request")
			select {
			case <-ctx.Done():
				return score.Record{}, "", ctx.Err()
			case <-time.After(o.backoff * time.Duration(attempt)):
			}
		}

		content, err := o.chat(ctx, body)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return score.Record{}, "", ctx.Err()
			}
			continue
		}

		rec, raw := normalizeResponse(content)
		return rec, raw, nil
	}

	return score.Record{}, "", fmt.Errorf("ollama chat failed after %d attempts: %w", o.maxRetries+1, lastErr)
}

func (o *Ollama) chat(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", fmt.Errorf("ollama HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(preview)))
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if parsed.Message.Content == "" {
		return "", errors.New("empty ollama response content")
	}
	return parsed.Message.Content, nil
}

// Ping checks that the server answers its tags endpoint. Used as a
// pre-pipeline dependency check so a dead server fails fast.
func (o *Ollama) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("cannot reach Ollama server at %s: %w", o.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama server at %s returned HTTP %d", o.baseURL, resp.StatusCode)
	}
	return nil
}
