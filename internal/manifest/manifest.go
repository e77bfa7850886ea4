// Package manifest defines the durable JSON run documents. Manifests are the
// source of truth for resumed runs: every flush rewrites the whole document to
// a temp file in the target directory and renames it into place, so readers
// never observe a partial write.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mediacull/internal/score"
)

// Version identifies the manifest schema. Version 2 added dedupe clusters and
// per-step state blocks.
const Version = 2

// RunConfig echoes the effective settings of the run that produced the
// manifest, so a later reader can tell how the outputs were chosen.
type RunConfig struct {
	Provider            string  `json:"provider"`
	Model               string  `json:"model"`
	Preset              string  `json:"preset,omitempty"`
	TargetCount         int     `json:"target_count,omitempty"`
	TargetDigestSeconds float64 `json:"target_digest_seconds,omitempty"`
	MaxSelectedClips    int     `json:"max_selected_clips,omitempty"`
	MinClip             float64 `json:"min_clip,omitempty"`
	MaxClip             float64 `json:"max_clip,omitempty"`
	Dedupe              bool    `json:"dedupe"`
	HammingThreshold    int     `json:"hamming_threshold,omitempty"`
	DedupeScope         string  `json:"dedupe_scope,omitempty"`
	Resume              bool    `json:"resume"`
	Force               bool    `json:"force"`
}

// Summary is the run roll-up reported on every exit path.
type Summary struct {
	TotalFiles           int     `json:"total_files"`
	Processed            int     `json:"processed"`
	Skipped              int     `json:"skipped"`
	Failed               int     `json:"failed"`
	DurationSeconds      float64 `json:"duration_seconds"`
	RemovedDuplicates    int     `json:"removed_duplicates"`
	TotalSelectedSeconds float64 `json:"total_selected_seconds,omitempty"`
}

// PhotoRecord is one scanned image in the photo manifest.
type PhotoRecord struct {
	Path        string       `json:"path"`
	Identity    string       `json:"identity,omitempty"`
	Hash        string       `json:"hash,omitempty"`
	Width       int          `json:"width,omitempty"`
	Height      int          `json:"height,omitempty"`
	TakenAt     time.Time    `json:"taken_at,omitzero"`
	Score       score.Record `json:"score"`
	Cached      bool         `json:"cached,omitempty"`
	Selected    bool         `json:"selected"`
	DuplicateOf string       `json:"duplicate_of,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// PhotoManifest is the photo run document.
type PhotoManifest struct {
	Version   int           `json:"version"`
	RunID     string        `json:"run_id"`
	CreatedAt time.Time     `json:"created_at"`
	Input     string        `json:"input"`
	Config    RunConfig     `json:"config"`
	Photos    []PhotoRecord `json:"photos"`
	Summary   Summary       `json:"summary"`
}

// ClipRecord is one scored clip of a source video.
type ClipRecord struct {
	ClipPath   string        `json:"clip_path"`
	FramePath  string        `json:"frame_path,omitempty"`
	Identity   string        `json:"identity,omitempty"`
	Start      float64       `json:"start"`
	End        float64       `json:"end"`
	Duration   float64       `json:"duration"`
	FrameHash  string        `json:"frame_hash,omitempty"`
	Brightness float64       `json:"brightness,omitempty"`
	Score      *score.Record `json:"score,omitempty"`
	Cached     bool          `json:"cached,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// SelectedClip is a clip admitted into the digest, in playback order.
type SelectedClip struct {
	Path  string  `json:"path"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Score float64 `json:"score"`
}

// DuplicateGroup records one near-duplicate cluster by clip path.
type DuplicateGroup struct {
	Representative string   `json:"representative"`
	Duplicates     []string `json:"duplicates"`
}

// SourceResult is the per-source-video block of the video manifest. Steps
// holds the step name to status mapping used to rebuild job state on resume.
type SourceResult struct {
	SourceVideo          string            `json:"source_video"`
	Steps                map[string]string `json:"steps,omitempty"`
	Clips                []ClipRecord      `json:"clips,omitempty"`
	DuplicateGroups      []DuplicateGroup  `json:"duplicate_groups,omitempty"`
	SelectedClips        []SelectedClip    `json:"selected_clips"`
	DigestPath           string            `json:"digest_path,omitempty"`
	TotalSelectedSeconds float64           `json:"total_selected_seconds"`
	RemovedDuplicates    int               `json:"removed_duplicates"`
	SkippedClips         int               `json:"skipped_clips"`
	Error                string            `json:"error,omitempty"`
}

// VideoManifest is the video run document.
type VideoManifest struct {
	Version   int            `json:"version"`
	RunID     string         `json:"run_id"`
	CreatedAt time.Time      `json:"created_at"`
	Input     string         `json:"input"`
	Config    RunConfig      `json:"config"`
	Sources   []SourceResult `json:"sources"`
	Summary   Summary        `json:"summary"`
}

// Source returns the block for sourceVideo, or nil if absent.
func (m *VideoManifest) Source(sourceVideo string) *SourceResult {
	for i := range m.Sources {
		if m.Sources[i].SourceVideo == sourceVideo {
			return &m.Sources[i]
		}
	}
	return nil
}

// UpsertSource replaces the block for result.SourceVideo, appending when the
// source is new. Order of first appearance is preserved across flushes.
func (m *VideoManifest) UpsertSource(result SourceResult) {
	for i := range m.Sources {
		if m.Sources[i].SourceVideo == result.SourceVideo {
			m.Sources[i] = result
			return
		}
	}
	m.Sources = append(m.Sources, result)
}

// Save writes v as indented JSON via a temp file in the same directory
// followed by a rename.
func Save(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".manifest-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp manifest: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// LoadPhotos reads a photo manifest. A missing file yields an empty manifest
// rather than an error so first runs and resumed runs share one code path.
func LoadPhotos(path string) (*PhotoManifest, error) {
	m := &PhotoManifest{Version: Version}
	if err := load(path, m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadVideos reads a video manifest, with the same missing-file behavior as
// LoadPhotos.
func LoadVideos(path string) (*VideoManifest, error) {
	m := &VideoManifest{Version: Version}
	if err := load(path, m); err != nil {
		return nil, err
	}
	return m, nil
}

func load(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return nil
}

// Writer flushes a manifest after each completed source unit. The mutex keeps
// concurrent workers from interleaving temp-file swaps on the same path.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter returns a Writer targeting path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Path returns the manifest location.
func (w *Writer) Path() string {
	return w.path
}

// Flush serializes v and swaps it into place.
func (w *Writer) Flush(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Save(w.path, v)
}
