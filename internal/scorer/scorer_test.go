package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("")

	for _, want := range []string{
		"overall_score",
		"sharpness",
		"subject_visibility",
		"composition",
		"duplication_penalty",
		"reasoning",
		"Return ONLY JSON",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("buildPrompt() missing %q", want)
		}
	}
	if strings.Contains(prompt, "Context:") {
		t.Error("buildPrompt() without hints should not carry a context section")
	}

	withHints := buildPrompt("taken 2024-06-01, camera Fujifilm X-T4")
	if !strings.Contains(withHints, "Context: taken 2024-06-01") {
		t.Errorf("buildPrompt() with hints = %q, want context appended", withHints)
	}
}

func TestNormalizeResponse(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantOverall float64
		wantReason  string
	}{
		{
			name:        "clean json",
			content:     `{"overall_score": 0.8, "reasoning": "sharp subject"}`,
			wantOverall: 0.8,
			wantReason:  "sharp subject",
		},
		{
			name:        "fenced json",
			content:     "```json\n{\"overall_score\": 0.4}\n```",
			wantOverall: 0.4,
		},
		{
			name:        "chatter around json",
			content:     `Sure! Here is the result: {"overall_score": 0.55} Hope that helps.`,
			wantOverall: 0.55,
		},
		{
			name:        "no json at all",
			content:     "I cannot rate this image.",
			wantOverall: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, raw := normalizeResponse(tt.content)
			if rec.OverallScore != tt.wantOverall {
				t.Errorf("OverallScore = %v, want %v", rec.OverallScore, tt.wantOverall)
			}
			if rec.Reasoning != tt.wantReason {
				t.Errorf("Reasoning = %q, want %q", rec.Reasoning, tt.wantReason)
			}
			if !json.Valid([]byte(raw)) {
				t.Errorf("raw = %q, want valid JSON", raw)
			}
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New(context.Background(), Options{Provider: "anthropic"}); err == nil {
		t.Fatal("New() expected error for unknown provider, got nil")
	}
}

func TestDefaultModel(t *testing.T) {
	if got := DefaultModel(ProviderGemini); got == "" {
		t.Error("DefaultModel(gemini) = \"\", want a model name")
	}
	if got := DefaultModel(ProviderOllama); got != "" {
		t.Errorf("DefaultModel(ollama) = %q, want empty (model must be configured)", got)
	}
}

func ollamaReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"message": map[string]any{"role": "assistant", "content": content},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode reply: %v", err)
	}
}

func TestOllamaScore(t *testing.T) {
	var gotReq ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q, want /api/chat", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		ollamaReply(t, w, `{"overall_score": 0.72, "sharpness": 0.9, "reasoning": "clear shot"}`)
	}))
	defer server.Close()

	o := NewOllama(server.URL, "llava")
	rec, raw, err := o.Score(context.Background(), Frame{Data: []byte("img"), MIME: "image/jpeg"}, "")
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if rec.OverallScore != 0.72 || rec.Sharpness != 0.9 {
		t.Errorf("record = %+v, want overall 0.72 sharpness 0.9", rec)
	}
	if !strings.Contains(raw, "clear shot") {
		t.Errorf("raw = %q, want reasoning retained", raw)
	}

	if gotReq.Model != "llava" {
		t.Errorf("request model = %q, want llava", gotReq.Model)
	}
	if gotReq.Stream {
		t.Error("request stream = true, want false")
	}
	if len(gotReq.Messages) != 2 {
		t.Fatalf("len(messages) = %d, want system + user", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("messages[0].Role = %q, want system", gotReq.Messages[0].Role)
	}
	if len(gotReq.Messages[1].Images) != 1 || gotReq.Messages[1].Images[0] == "" {
		t.Error("user message should carry one base64 image")
	}
}

func TestOllamaScoreRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "model loading", http.StatusInternalServerError)
			return
		}
		ollamaReply(t, w, `{"overall_score": 0.5}`)
	}))
	defer server.Close()

	o := NewOllama(server.URL, "llava")
	o.backoff = time.Millisecond

	rec, _, err := o.Score(context.Background(), Frame{Data: []byte("img")}, "")
	if err != nil {
		t.Fatalf("Score() error = %v after recovery", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if rec.OverallScore != 0.5 {
		t.Errorf("OverallScore = %v, want 0.5", rec.OverallScore)
	}
}

func TestOllamaScoreExhaustsRetries(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	o := NewOllama(server.URL, "llava")
	o.backoff = time.Millisecond

	_, _, err := o.Score(context.Background(), Frame{Data: []byte("img")}, "")
	if err == nil {
		t.Fatal("Score() expected error after exhausted retries, got nil")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3 (initial + 2 retries)", attempts)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want HTTP status folded in", err)
	}
}

func TestOllamaMalformedContentDefaults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ollamaReply(t, w, "sorry, I can't do that")
	}))
	defer server.Close()

	o := NewOllama(server.URL, "llava")
	rec, raw, err := o.Score(context.Background(), Frame{Data: []byte("img")}, "")
	if err != nil {
		t.Fatalf("Score() error = %v, malformed content should not fail", err)
	}
	if rec.OverallScore != 0 || rec.Reasoning != "" {
		t.Errorf("record = %+v, want all defaults", rec)
	}
	if !json.Valid([]byte(raw)) {
		t.Errorf("raw = %q, want valid JSON", raw)
	}
}

func TestOllamaPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %q, want /api/tags", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	o := NewOllama(server.URL+"/", "llava")
	if err := o.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	server.Close()
	if err := o.Ping(context.Background()); err == nil {
		t.Error("Ping() expected error against closed server, got nil")
	}
}
