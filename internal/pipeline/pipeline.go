// Package pipeline orchestrates the photo and video runs: scanning,
// fingerprint-gated scoring, deduplication, selection, artifact emission, and
// manifest persistence. Source-units run on a bounded worker pool; one unit's
// failure never aborts its siblings.
package pipeline

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newRunID returns a time-ordered identifier for one pipeline run.
func newRunID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

// copyFile copies src to dst, creating parent directories. The copy goes to a
// temp name first so a crash never leaves a half-written file at dst.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dst, err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), ".copy-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := out.Name()

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to place %s: %w", dst, err)
	}
	return nil
}

// removeTemp deletes the scratch directory, refusing when the temp dir does
// not resolve to a location inside the output dir.
func removeTemp(paths VideoPaths) error {
	rel, err := filepath.Rel(paths.OutputDir, paths.TempDir)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("temp dir %s is not inside output dir %s, refusing to remove", paths.TempDir, paths.OutputDir)
	}
	return os.RemoveAll(paths.TempDir)
}

// roundSeconds trims a duration to two decimal places for summaries.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}
