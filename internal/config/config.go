// Package config loads run configuration: defaults, optional YAML file, and
// preset-derived values. CLI flags override file values at the command layer.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"mediacull/internal/dedupe"
)

// Scorer providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Output presets.
const (
	PresetYouTube16x9 = "youtube16x9"
	PresetShorts9x16  = "shorts9x16"
	PresetClipsOnly   = "clips_only"
)

// Config holds all pipeline configuration.
type Config struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	BaseURL       string  `yaml:"base_url"`
	Workers       int     `yaml:"workers"`
	KeepTemp      bool    `yaml:"keep_temp"`
	MinBrightness float64 `yaml:"min_brightness"`

	Photo PhotoConfig `yaml:"photo"`
	Video VideoConfig `yaml:"video"`
}

// PhotoConfig configures the photo run.
type PhotoConfig struct {
	TargetCount            int  `yaml:"target_count"`
	Dedupe                 bool `yaml:"dedupe"`
	DedupeHammingThreshold int  `yaml:"dedupe_hamming_threshold"`
}

// VideoConfig configures the video run.
type VideoConfig struct {
	MinClip                float64 `yaml:"min_clip"`
	MaxClip                float64 `yaml:"max_clip"`
	MaxSelectedClips       int     `yaml:"max_selected_clips"`
	TargetDigestSeconds    float64 `yaml:"target_digest_seconds"`
	Dedupe                 bool    `yaml:"dedupe"`
	DedupeHammingThreshold int     `yaml:"dedupe_hamming_threshold"`
	DedupeScope            string  `yaml:"dedupe_scope"`
	Preset                 string  `yaml:"preset"`
	HWAccel                bool    `yaml:"hwaccel"`
	DeleteSplitFiles       bool    `yaml:"delete_split_files"`
}

// Load reads configuration from path, or from a conventional location when
// path is empty, merged over defaults. OLLAMA_BASE_URL replaces the built-in
// base URL before the file applies. A missing conventional file is fine; an
// explicitly named file must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := applyFlatAliases(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Default returns the built-in configuration. TargetDigestSeconds stays zero
// here so Finalize can tell an explicit value from a preset default.
func Default() *Config {
	return &Config{
		Provider:      ProviderOllama,
		BaseURL:       "http://localhost:11434",
		Workers:       4,
		MinBrightness: 15,
		Photo: PhotoConfig{
			TargetCount:            10,
			Dedupe:                 true,
			DedupeHammingThreshold: dedupe.DefaultHammingThreshold,
		},
		Video: VideoConfig{
			MinClip:                2,
			MaxClip:                6,
			MaxSelectedClips:       20,
			Dedupe:                 true,
			DedupeHammingThreshold: dedupe.DefaultHammingThreshold,
			DedupeScope:            string(dedupe.ScopePerSource),
			Preset:                 PresetYouTube16x9,
		},
	}
}

// Finalize fills preset-derived defaults and validates the result. Call it
// after all overrides (file, flags) are applied.
func (c *Config) Finalize() error {
	if c.Video.TargetDigestSeconds == 0 {
		switch c.Video.Preset {
		case PresetShorts9x16:
			c.Video.TargetDigestSeconds = 45
		default:
			c.Video.TargetDigestSeconds = 60
		}
	}
	return c.validate()
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("invalid provider %q (want %s, %s, or %s)",
			c.Provider, ProviderOllama, ProviderOpenAI, ProviderGemini)
	}

	switch c.Video.Preset {
	case PresetYouTube16x9, PresetShorts9x16, PresetClipsOnly:
	default:
		return fmt.Errorf("invalid preset %q (want %s, %s, or %s)",
			c.Video.Preset, PresetYouTube16x9, PresetShorts9x16, PresetClipsOnly)
	}

	if _, err := dedupe.ParseScope(c.Video.DedupeScope); err != nil {
		return err
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Photo.TargetCount < 0 {
		return fmt.Errorf("photo target_count must not be negative, got %d", c.Photo.TargetCount)
	}
	if c.Photo.DedupeHammingThreshold < 0 || c.Video.DedupeHammingThreshold < 0 {
		return fmt.Errorf("dedupe_hamming_threshold must not be negative")
	}
	if c.Video.MinClip <= 0 || c.Video.MaxClip < c.Video.MinClip {
		return fmt.Errorf("invalid clip bounds: min_clip %.1f, max_clip %.1f",
			c.Video.MinClip, c.Video.MaxClip)
	}
	if c.Video.MaxSelectedClips < 0 {
		return fmt.Errorf("max_selected_clips must not be negative, got %d", c.Video.MaxSelectedClips)
	}
	if c.Video.TargetDigestSeconds < 0 {
		return fmt.Errorf("target_digest_seconds must not be negative, got %.1f", c.Video.TargetDigestSeconds)
	}
	return nil
}

// flatAliases maps legacy top-level keys onto the nested layout, kept for
// config files written against the earlier flat schema.
func applyFlatAliases(data []byte, cfg *Config) error {
	var flat struct {
		VideoDedupe              *bool    `yaml:"video_dedupe"`
		VideoDedupeThreshold     *int     `yaml:"video_dedupe_hamming_threshold"`
		VideoDedupeScope         *string  `yaml:"video_dedupe_scope"`
		VideoMaxSelectedClips    *int     `yaml:"video_max_selected_clips"`
		VideoTargetDigestSeconds *float64 `yaml:"video_target_digest_seconds"`
		DeleteSplitFiles         *bool    `yaml:"delete_split_files"`
		PhotoDedupe              *bool    `yaml:"photo_dedupe"`
		PhotoDedupeThreshold     *int     `yaml:"photo_dedupe_hamming_threshold"`
		TargetCount              *int     `yaml:"target_count"`
	}
	if err := yaml.Unmarshal(data, &flat); err != nil {
		return err
	}

	if flat.VideoDedupe != nil {
		cfg.Video.Dedupe = *flat.VideoDedupe
	}
	if flat.VideoDedupeThreshold != nil {
		cfg.Video.DedupeHammingThreshold = *flat.VideoDedupeThreshold
	}
	if flat.VideoDedupeScope != nil {
		cfg.Video.DedupeScope = *flat.VideoDedupeScope
	}
	if flat.VideoMaxSelectedClips != nil {
		cfg.Video.MaxSelectedClips = *flat.VideoMaxSelectedClips
	}
	if flat.VideoTargetDigestSeconds != nil {
		cfg.Video.TargetDigestSeconds = *flat.VideoTargetDigestSeconds
	}
	if flat.DeleteSplitFiles != nil {
		cfg.Video.DeleteSplitFiles = *flat.DeleteSplitFiles
	}
	if flat.PhotoDedupe != nil {
		cfg.Photo.Dedupe = *flat.PhotoDedupe
	}
	if flat.PhotoDedupeThreshold != nil {
		cfg.Photo.DedupeHammingThreshold = *flat.PhotoDedupeThreshold
	}
	if flat.TargetCount != nil {
		cfg.Photo.TargetCount = *flat.TargetCount
	}
	return nil
}

func findConfigFile() string {
	candidates := []string{
		"./mediacull.yaml",
		"./mediacull.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "mediacull", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
