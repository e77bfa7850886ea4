package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mediacull.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load() with explicit missing path expected error, got nil")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Provider != ProviderOllama {
		t.Errorf("Provider = %q, want %q", cfg.Provider, ProviderOllama)
	}
	if cfg.BaseURL != "http://localhost:11434" {
		t.Errorf("BaseURL = %q, want default Ollama endpoint", cfg.BaseURL)
	}
	if cfg.Video.MinClip != 2 || cfg.Video.MaxClip != 6 {
		t.Errorf("clip bounds = %.1f/%.1f, want 2/6", cfg.Video.MinClip, cfg.Video.MaxClip)
	}
	if cfg.Video.DedupeHammingThreshold != 6 {
		t.Errorf("video threshold = %d, want 6", cfg.Video.DedupeHammingThreshold)
	}
	if !cfg.Video.Dedupe || !cfg.Photo.Dedupe {
		t.Error("dedupe should default to enabled for both runs")
	}
	if cfg.Video.DedupeScope != "per_source_video" {
		t.Errorf("video scope = %q, want per_source_video", cfg.Video.DedupeScope)
	}
}

func TestLoadNestedKeys(t *testing.T) {
	path := writeConfig(t, `
provider: openai
model: gpt-4o-mini
workers: 8
photo:
  target_count: 25
video:
  max_clip: 8
  dedupe_scope: global
  preset: shorts9x16
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.Provider)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want gpt-4o-mini", cfg.Model)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.Photo.TargetCount != 25 {
		t.Errorf("Photo.TargetCount = %d, want 25", cfg.Photo.TargetCount)
	}
	if cfg.Video.MaxClip != 8 {
		t.Errorf("Video.MaxClip = %.1f, want 8", cfg.Video.MaxClip)
	}
	if cfg.Video.DedupeScope != "global" {
		t.Errorf("Video.DedupeScope = %q, want global", cfg.Video.DedupeScope)
	}
	// Untouched keys keep their defaults.
	if cfg.Video.MinClip != 2 {
		t.Errorf("Video.MinClip = %.1f, want default 2", cfg.Video.MinClip)
	}
}

func TestLoadFlatAliases(t *testing.T) {
	path := writeConfig(t, `
video_dedupe: false
video_dedupe_hamming_threshold: 10
video_target_digest_seconds: 90
delete_split_files: true
target_count: 5
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Video.Dedupe {
		t.Error("video_dedupe: false should disable video dedupe")
	}
	if cfg.Video.DedupeHammingThreshold != 10 {
		t.Errorf("threshold = %d, want 10", cfg.Video.DedupeHammingThreshold)
	}
	if cfg.Video.TargetDigestSeconds != 90 {
		t.Errorf("TargetDigestSeconds = %.1f, want 90", cfg.Video.TargetDigestSeconds)
	}
	if !cfg.Video.DeleteSplitFiles {
		t.Error("delete_split_files: true should carry through")
	}
	if cfg.Photo.TargetCount != 5 {
		t.Errorf("Photo.TargetCount = %d, want 5", cfg.Photo.TargetCount)
	}
}

func TestFinalizePresetBudget(t *testing.T) {
	tests := []struct {
		name     string
		preset   string
		explicit float64
		want     float64
	}{
		{"youtube default", PresetYouTube16x9, 0, 60},
		{"shorts default", PresetShorts9x16, 0, 45},
		{"clips_only default", PresetClipsOnly, 0, 60},
		{"explicit wins over preset", PresetShorts9x16, 120, 120},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Video.Preset = tt.preset
			cfg.Video.TargetDigestSeconds = tt.explicit
			if err := cfg.Finalize(); err != nil {
				t.Fatalf("Finalize() error = %v", err)
			}
			if cfg.Video.TargetDigestSeconds != tt.want {
				t.Errorf("TargetDigestSeconds = %.1f, want %.1f", cfg.Video.TargetDigestSeconds, tt.want)
			}
		})
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad provider",
			mutate:  func(c *Config) { c.Provider = "claude" },
			wantErr: "invalid provider",
		},
		{
			name:    "bad preset",
			mutate:  func(c *Config) { c.Video.Preset = "tiktok" },
			wantErr: "invalid preset",
		},
		{
			name:    "bad scope",
			mutate:  func(c *Config) { c.Video.DedupeScope = "per_folder" },
			wantErr: "dedupe scope",
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Workers = 0 },
			wantErr: "workers",
		},
		{
			name:    "inverted clip bounds",
			mutate:  func(c *Config) { c.Video.MinClip = 10; c.Video.MaxClip = 4 },
			wantErr: "clip bounds",
		},
		{
			name:    "negative threshold",
			mutate:  func(c *Config) { c.Photo.DedupeHammingThreshold = -1 },
			wantErr: "hamming_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Finalize()
			if err == nil {
				t.Fatal("Finalize() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Finalize() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}
